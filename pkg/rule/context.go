package rule

import (
	"context"
	"time"
)

// Sender is the author of a message under evaluation.
type Sender interface {
	ID() string
	Name() string
	HasPermission(permission string) bool
}

// DataBag is the sender's persistent key-value data.
// Setting an empty value removes the key.
type DataBag interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// PointsOutcome is the result of awarding warning points to the sender.
type PointsOutcome struct {
	Set      string
	Previous int
	Score    int
	Trigger  string      // formula of the fired trigger, empty when none fired
	Actions  []Directive // directives of the fired trigger
}

// Fired reports whether a warning trigger fired.
func (o PointsOutcome) Fired() bool {
	return o.Trigger != ""
}

// PointsAwarder awards warning points and reports any trigger that fired.
// Implementations expect the sender's lock to be held by the caller.
type PointsAwarder interface {
	AwardPoints(ctx context.Context, set string, amount int) (PointsOutcome, error)
}

// CooldownKey identifies a cooldown entry for a rule.
type CooldownKey struct {
	RuleID string
	Global bool
}

// Cooldowns stores rule cooldowns. Per-sender entries belong to the
// sender of the current evaluation.
type Cooldowns interface {
	CooldownUntil(key CooldownKey) time.Time
	EngageCooldown(key CooldownKey, until time.Time)
}

// EvaluationContext carries the mutable state of one message evaluation.
// It is owned by a single evaluation and never shared.
type EvaluationContext struct {
	Category Category
	Sender   Sender
	Message  string
	Original string
	Vars     map[string]string
	Now      time.Time

	Data      DataBag
	Points    PointsAwarder
	Cooldowns Cooldowns

	Verdict *Verdict
}

// NewEvaluationContext creates a context for text sent by sender.
func NewEvaluationContext(category Category, sender Sender, text string, vars map[string]string, now time.Time) *EvaluationContext {
	return &EvaluationContext{
		Category: category,
		Sender:   sender,
		Message:  text,
		Original: text,
		Vars:     vars,
		Now:      now,
		Verdict:  NewVerdict(text),
	}
}

func (ec *EvaluationContext) cooldownUntil(key CooldownKey) time.Time {
	if ec.Cooldowns == nil {
		return time.Time{}
	}
	return ec.Cooldowns.CooldownUntil(key)
}

// setMessage replaces the working message and reports whether it changed.
func (ec *EvaluationContext) setMessage(text string) bool {
	if text == ec.Message {
		return false
	}
	ec.Message = text
	ec.Verdict.Changed = true
	return true
}
