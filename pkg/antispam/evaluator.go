// Package antispam implements the stateful per-player checks that run before
// the rule sets: minimum delay, similarity to recent messages, rate limit and
// caps. Every check is evaluated on every message so each can award warning
// points; a rejection cancels the message but does not skip later checks.
package antispam

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-chat-moderation/pkg/match"
	"github.com/AccelByte/extend-chat-moderation/pkg/rule"
	"github.com/AccelByte/extend-chat-moderation/pkg/session"
	"github.com/AccelByte/extend-chat-moderation/pkg/warning"
)

// Check names as they appear in a verdict's failed_checks.
const (
	CheckDelay      = "delay"
	CheckSimilarity = "similarity"
	CheckRateLimit  = "rate_limit"
	CheckCaps       = "caps"
)

// failure describes a failed check.
type failure struct {
	cancel bool
	silent bool
	vars   map[string]float64 // amount formula variables
	text   map[string]string  // message placeholders
}

type check interface {
	name() string
	run(ec *rule.EvaluationContext, st *session.State) *failure
}

// reaction is what happens when a check fails.
type reaction struct {
	message string
	points  *points
}

type points struct {
	set    string
	amount *warning.Amount
}

type checks struct {
	list        []check
	reactions   map[string]reaction
	historySize int
	ratePeriod  time.Duration
}

// Evaluator runs the compiled checks. It is immutable and shared by all evaluations.
type Evaluator struct {
	fallback   *checks
	categories map[rule.Category]*checks
}

// Compile validates cfg and compiles the checks. Point sets must exist in sets.
func Compile(source string, cfg Config, sets warning.Sets) (*Evaluator, error) {
	e := &Evaluator{categories: make(map[rule.Category]*checks)}

	fallback, err := compileChecks(source, "default", cfg.Default, sets)
	if err != nil {
		return nil, err
	}
	e.fallback = fallback

	names := make([]string, 0, len(cfg.Categories))
	for name := range cfg.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		category, err := rule.ParseCategory(name)
		if err != nil {
			return nil, &rule.LoadError{File: source, Rule: "antispam." + name, Err: err}
		}
		c, err := compileChecks(source, name, cfg.Categories[name], sets)
		if err != nil {
			return nil, err
		}
		e.categories[category] = c
	}

	return e, nil
}

func compileChecks(source, name string, cfg Checks, sets warning.Sets) (*checks, error) {
	fail := func(check string, err error) error {
		return &rule.LoadError{File: source, Rule: "antispam." + name + "." + check, Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fail("config", err)
	}

	c := &checks{reactions: make(map[string]reaction)}
	add := func(ch check, message string, p PointsConfig, vars ...string) error {
		r := reaction{message: message}
		if p.Set != "" {
			if !sets.Has(p.Set) {
				return fail(ch.name(), fmt.Errorf("%w: %s", warning.ErrUnknownWarningSet, p.Set))
			}
			amount, err := warning.CompileAmount(p.Amount, vars...)
			if err != nil {
				return fail(ch.name(), err)
			}
			r.points = &points{set: p.Set, amount: amount}
		}
		c.list = append(c.list, ch)
		c.reactions[ch.name()] = r
		return nil
	}

	if cfg.Delay.Enabled {
		d, err := newDelayCheck(cfg.Delay)
		if err != nil {
			return nil, fail(CheckDelay, err)
		}
		if err := add(d, cfg.Delay.Message, cfg.Delay.Points, "delay", "remaining", "min_delay"); err != nil {
			return nil, err
		}
	}

	if cfg.RateLimit.Enabled {
		r := &rateCheck{cfg: cfg.RateLimit}
		if err := add(r, cfg.RateLimit.Message, cfg.RateLimit.Points, "messages_in_period", "limit"); err != nil {
			return nil, err
		}
		c.ratePeriod = cfg.RateLimit.Period
	}

	if cfg.Similarity.Enabled {
		s, err := newSimilarityCheck(cfg.Similarity)
		if err != nil {
			return nil, fail(CheckSimilarity, err)
		}
		if err := add(s, cfg.Similarity.Message, cfg.Similarity.Points, "similarity", "occurrences", "threshold"); err != nil {
			return nil, err
		}
		c.historySize = cfg.Similarity.History
	}

	if cfg.Caps.Enabled {
		k, err := newCapsCheck(cfg.Caps)
		if err != nil {
			return nil, fail(CheckCaps, err)
		}
		if err := add(k, cfg.Caps.Message, cfg.Caps.Points, "caps_percentage", "caps_in_row"); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (e *Evaluator) checksFor(category rule.Category) *checks {
	if e == nil {
		return nil
	}
	if c, ok := e.categories[category]; ok {
		return c
	}
	return e.fallback
}

// Evaluate runs every enabled check for the context's category against the
// sender's state. The caller holds the sender's lock.
func (e *Evaluator) Evaluate(ctx context.Context, ec *rule.EvaluationContext, st *session.State) (rule.ControlFlow, error) {
	c := e.checksFor(ec.Category)
	if c == nil {
		return rule.FlowContinue, nil
	}

	for _, ch := range c.list {
		f := ch.run(ec, st)
		if f == nil {
			continue
		}
		if err := e.react(ctx, ec, ch.name(), f, c.reactions[ch.name()]); err != nil {
			return rule.FlowContinue, err
		}
	}

	switch {
	case ec.Verdict.CancelledSilently:
		return rule.FlowCancelledSilently, nil
	case ec.Verdict.Cancelled:
		return rule.FlowCancelled, nil
	default:
		return rule.FlowContinue, nil
	}
}

func (e *Evaluator) react(ctx context.Context, ec *rule.EvaluationContext, name string, f *failure, r reaction) error {
	ec.Verdict.FailedChecks = append(ec.Verdict.FailedChecks, name)
	logrus.Debugf("antispam %s failed for %s in %s", name, senderID(ec), ec.Category)

	if f.cancel {
		ec.Verdict.Cancel(f.silent)
		ec.Verdict.AddEvent(rule.Event{Kind: rule.EventAntispamRejected, Check: name, Silently: f.silent})
	}

	if r.message != "" && !f.silent {
		ec.Verdict.Messages = append(ec.Verdict.Messages, ec.Expand(fill(r.message, f.text)))
	}

	if r.points == nil {
		return nil
	}
	amount, err := r.points.amount.Eval(f.vars)
	if err != nil {
		logrus.Warnf("antispam %s: %v", name, err)
		return nil
	}
	if amount < 1 {
		return nil
	}
	if _, err := ec.RunActions(ctx, "antispam:"+name, []rule.Directive{rule.AddWarningPoints(r.points.set, amount)}); err != nil {
		return fmt.Errorf("antispam %s: %w", name, err)
	}
	return nil
}

// Record stores a delivered message so later messages are checked against it.
func (e *Evaluator) Record(category rule.Category, text string, at time.Time, st *session.State) {
	var (
		size   int
		period time.Duration
	)
	if c := e.checksFor(category); c != nil {
		size, period = c.historySize, c.ratePeriod
	}
	st.RecordDelivered(string(category), text, at, size, period)
}

func fill(message string, text map[string]string) string {
	if len(text) == 0 {
		return message
	}
	pairs := make([]string, 0, len(text)*2)
	for k, v := range text {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(message)
}

func senderID(ec *rule.EvaluationContext) string {
	if ec.Sender == nil {
		return ""
	}
	return ec.Sender.ID()
}

func hasPermission(ec *rule.EvaluationContext, permission string) bool {
	return permission != "" && ec.Sender != nil && ec.Sender.HasPermission(permission)
}

func seconds(d time.Duration) string {
	return strconv.FormatInt(int64(math.Ceil(d.Seconds())), 10)
}

func compileRegexList(patterns []string) ([]*match.Expression, error) {
	out := make([]*match.Expression, 0, len(patterns))
	for _, p := range patterns {
		expr, err := match.Compile(p, match.Options{Regex: true, CaseInsensitive: true})
		if err != nil {
			return nil, err
		}
		out = append(out, expr)
	}
	return out, nil
}

func anyRegex(exprs []*match.Expression, text string) bool {
	for _, e := range exprs {
		if e.Matches(text) {
			return true
		}
	}
	return false
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid command pattern %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func anyGlob(globs []glob.Glob, label string) bool {
	for _, g := range globs {
		if g.Match(label) {
			return true
		}
	}
	return false
}
