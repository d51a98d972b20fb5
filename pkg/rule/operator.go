package rule

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AccelByte/extend-chat-moderation/pkg/match"
)

// prolongPrefix makes a rewrite repeat its argument once per matched rune,
// so "@prolong *" turns "badword" into "*******".
const prolongPrefix = "@prolong "

// applyState is what a directive knows about the rule match that runs it.
type applyState struct {
	rule    *Rule
	span    match.Span
	matched string
	spanFor string // message the span offsets refer to
	source  string

	delayLeft time.Duration // remaining cooldown, for {delay}
}

func (st *applyState) ruleID() string {
	if st == nil || st.rule == nil {
		return ""
	}
	return st.rule.ID()
}

func (st *applyState) sourceName() string {
	if st == nil {
		return ""
	}
	if st.source != "" {
		return st.source
	}
	return st.ruleID()
}

// RunActions executes directives outside any rule, e.g. the actions of a
// warning trigger fired by antispam.
func (ec *EvaluationContext) RunActions(ctx context.Context, source string, actions []Directive) (ControlFlow, error) {
	return ec.run(ctx, actions, &applyState{source: source})
}

// run applies directives in order. A deny records the cancellation and the
// remaining directives still run, so points, commands and messages placed
// after it take effect; stop ends the walk.
func (ec *EvaluationContext) run(ctx context.Context, directives []Directive, st *applyState) (ControlFlow, error) {
	flow := FlowContinue
	for _, d := range directives {
		f, err := ec.apply(ctx, d, st)
		if err != nil {
			return FlowContinue, err
		}
		flow = flow.then(f)
		if f == FlowStop {
			break
		}
	}
	return flow, nil
}

func (ec *EvaluationContext) apply(ctx context.Context, d Directive, st *applyState) (ControlFlow, error) {
	switch d.Kind {
	case DirectiveReplace:
		if d.Target != "" {
			ec.setMessage(strings.Replace(ec.Message, d.Target, ec.expand(d.Replacement, st), 1))
		}

	case DirectiveRewrite:
		replacement := d.Replacement
		if d.WholeMessage || st == nil || st.rule == nil {
			ec.setMessage(ec.expand(replacement, st))
			break
		}
		if strings.HasPrefix(replacement, prolongPrefix) {
			unit := ec.expand(strings.TrimPrefix(replacement, prolongPrefix), st)
			replacement = strings.Repeat(unit, utf8.RuneCountInString(st.matched))
		} else {
			replacement = ec.expand(replacement, st)
		}
		ec.rewriteMatch(st, replacement)

	case DirectiveDeny:
		ec.Verdict.Cancel(!d.Loud)
		return ec.cancelFlow(), nil

	case DirectiveCancelSilently:
		ec.Verdict.Cancel(true)
		return FlowCancelledSilently, nil

	case DirectiveIgnoreLogging:
		ec.Verdict.LoggingIgnored = true

	case DirectiveIgnoreSpying:
		ec.Verdict.SpyingIgnored = true

	case DirectiveAddWarningPoints:
		return ec.awardPoints(ctx, d, st)

	case DirectiveRequireCooldown:
		until := ec.now().Add(d.Duration)
		if ec.Cooldowns != nil {
			ec.Cooldowns.EngageCooldown(CooldownKey{RuleID: st.ruleID(), Global: d.Global}, until)
		}
		ec.Verdict.AddEvent(Event{Kind: EventCooldownEngaged, RuleID: st.ruleID(), Until: until})

	case DirectiveStopProcessing:
		return FlowStop, nil

	case DirectiveCommand:
		line := strings.TrimPrefix(ec.expand(d.Command, st), "/")
		ec.Verdict.Commands = append(ec.Verdict.Commands, Command{
			Line:    line,
			Console: d.Console,
			Source:  st.sourceName(),
		})

	case DirectiveSetData:
		if ec.Data == nil {
			return FlowContinue, fmt.Errorf("save key %s: no player data store", d.Key)
		}
		if err := ec.Data.Set(ctx, d.Key, ec.expand(d.Value, st)); err != nil {
			return FlowContinue, fmt.Errorf("save key %s: %w", d.Key, err)
		}

	case DirectiveWarn:
		ec.Verdict.Messages = append(ec.Verdict.Messages, ec.expand(d.Message, st))

	default:
		return FlowContinue, fmt.Errorf("%w: %s", ErrUnknownDirective, d.Kind)
	}

	return FlowContinue, nil
}

func (ec *EvaluationContext) cancelFlow() ControlFlow {
	if ec.Verdict.CancelledSilently {
		return FlowCancelledSilently
	}
	return FlowCancelled
}

// rewriteMatch replaces the matched span. When an earlier directive already
// changed the message the span is stale, and the first occurrence of the
// matched text is replaced instead.
func (ec *EvaluationContext) rewriteMatch(st *applyState, replacement string) {
	if st.spanFor == ec.Message && st.span.End <= len(ec.Message) {
		rewritten := ec.Message[:st.span.Start] + replacement + ec.Message[st.span.End:]
		ec.setMessage(rewritten)
		st.span = match.Span{Start: st.span.Start, End: st.span.Start + len(replacement), Text: replacement}
		st.spanFor = rewritten
		return
	}
	ec.setMessage(strings.Replace(ec.Message, st.matched, replacement, 1))
}

func (ec *EvaluationContext) awardPoints(ctx context.Context, d Directive, st *applyState) (ControlFlow, error) {
	if ec.Points == nil || d.Amount < 1 {
		return FlowContinue, nil
	}

	outcome, err := ec.Points.AwardPoints(ctx, d.Set, d.Amount)
	if err != nil {
		return FlowContinue, fmt.Errorf("award %d points in %s: %w", d.Amount, d.Set, err)
	}
	if !outcome.Fired() {
		return FlowContinue, nil
	}

	ec.Verdict.AddEvent(Event{
		Kind:    EventWarningTriggered,
		RuleID:  st.ruleID(),
		Set:     outcome.Set,
		Score:   outcome.Score,
		Trigger: outcome.Trigger,
	})

	nested := &applyState{}
	if st != nil {
		*nested = *st
	}
	nested.source = "warning:" + outcome.Set
	return ec.run(ctx, outcome.Actions, nested)
}
