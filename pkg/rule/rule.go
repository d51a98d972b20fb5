package rule

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/AccelByte/extend-chat-moderation/pkg/match"
)

// Operator is a list of preconditions and an ordered directive program.
// Both rules and groups carry one.
type Operator struct {
	Conditions []Condition
	Directives []Directive
}

// Empty reports whether the operator does nothing.
func (o Operator) Empty() bool {
	return len(o.Conditions) == 0 && len(o.Directives) == 0
}

// Rule pairs a match expression with an operator, optionally inheriting a group.
// Rules are immutable once their rule set has been assembled.
type Rule struct {
	Name       string
	Category   Category
	Expression *match.Expression
	Operator   Operator
	GroupRef   string
	Disabled   bool

	File string
	Line int

	group *Group
}

// ID returns the rule's name, or "<category>:<file>:<line>" for unnamed rules.
func (r *Rule) ID() string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("%s:%s:%d", r.Category, filepath.Base(r.File), r.Line)
}

// GroupName returns the bound group's name, or "".
func (r *Rule) GroupName() string {
	if r.group == nil {
		return ""
	}
	return r.group.Name
}

// Group returns the bound group, if any.
func (r *Rule) Group() *Group {
	return r.group
}

// Ref returns the identity of the rule as reported in verdicts.
func (r *Rule) Ref() RuleRef {
	return RuleRef{ID: r.ID(), Name: r.Name, Group: r.GroupName()}
}

// operators returns the group's operator followed by the rule's own.
func (r *Rule) operators() []Operator {
	if r.group == nil || r.group.Operator.Empty() {
		return []Operator{r.Operator}
	}
	return []Operator{r.group.Operator, r.Operator}
}

// Apply evaluates the rule against the context. It returns whether the rule
// matched and applied, and the control flow its directives produced.
//
// A rule applies when its expression matches the current message and every
// condition of its group and itself passes. Group directives run before the
// rule's own. While one of the rule's cooldowns is active the message is
// cancelled instead, loudly when the delay carries a message.
func (r *Rule) Apply(ctx context.Context, ec *EvaluationContext) (bool, ControlFlow, error) {
	if r.Disabled || r.Expression == nil {
		return false, FlowContinue, nil
	}

	span, ok := r.Expression.Test(ec.Message)
	if !ok {
		return false, FlowContinue, nil
	}

	ops := r.operators()
	for _, op := range ops {
		for _, c := range op.Conditions {
			allowed, err := c.allows(ctx, ec)
			if err != nil {
				return false, FlowContinue, fmt.Errorf("rule %s: %w", r.ID(), err)
			}
			if !allowed {
				return false, FlowContinue, nil
			}
		}
	}

	ref := r.Ref()
	ec.Verdict.recordMatch(ref)
	ec.Verdict.AddEvent(Event{Kind: EventRuleMatched, RuleID: ref.ID, Before: ec.Message, After: ec.Message})
	event := len(ec.Verdict.Events) - 1

	st := &applyState{rule: r, span: span, matched: span.Text, spanFor: ec.Message}

	if d, until, ok := r.activeCooldown(ec, ops); ok {
		st.delayLeft = until.Sub(ec.now())
		silent := d.Message == ""
		ec.Verdict.Cancel(silent)
		ec.Verdict.AddEvent(Event{Kind: EventCooldownBlocked, RuleID: ref.ID, Until: until, Silently: silent})
		if !silent {
			ec.Verdict.Messages = append(ec.Verdict.Messages, ec.expand(d.Message, st))
		}
		return true, ec.cancelFlow(), nil
	}

	flow := FlowContinue
	for _, op := range ops {
		f, err := ec.run(ctx, op.Directives, st)
		if err != nil {
			return true, FlowContinue, fmt.Errorf("rule %s: %w", r.ID(), err)
		}
		flow = flow.then(f)
		if f == FlowStop {
			break
		}
	}

	ec.Verdict.Events[event].After = ec.Message
	return true, flow, nil
}

// activeCooldown returns the first cooldown directive of the rule that is
// still running, with its end.
func (r *Rule) activeCooldown(ec *EvaluationContext, ops []Operator) (Directive, time.Time, bool) {
	now := ec.now()
	for _, op := range ops {
		for _, d := range op.Directives {
			if d.Kind != DirectiveRequireCooldown {
				continue
			}
			if until := ec.cooldownUntil(CooldownKey{RuleID: r.ID(), Global: d.Global}); now.Before(until) {
				return d, until, true
			}
		}
	}
	return Directive{}, time.Time{}, false
}
