package rule

import "time"

// EventKind names an observable side effect of an evaluation.
type EventKind string

const (
	EventRuleMatched      EventKind = "rule_matched"
	EventWarningTriggered EventKind = "warning_triggered"
	EventCooldownEngaged  EventKind = "cooldown_engaged"
	EventAntispamRejected EventKind = "antispam_rejected"
	EventCooldownBlocked  EventKind = "cooldown_blocked"
)

// RuleRef identifies a rule in a verdict.
type RuleRef struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Group string `json:"group,omitempty"`
}

// Command is a command scheduled by a rule or warning trigger.
type Command struct {
	Line    string `json:"line"`
	Console bool   `json:"console"`
	Source  string `json:"source,omitempty"`
}

// Event describes something that happened during evaluation.
type Event struct {
	Kind     EventKind `json:"kind"`
	RuleID   string    `json:"rule_id,omitempty"`
	Before   string    `json:"before,omitempty"`
	After    string    `json:"after,omitempty"`
	Set      string    `json:"set,omitempty"`
	Score    int       `json:"score,omitempty"`
	Trigger  string    `json:"trigger,omitempty"`
	Check    string    `json:"check,omitempty"`
	Until    time.Time `json:"until,omitempty"`
	Silently bool      `json:"silently,omitempty"`
}

// Verdict is the outcome of evaluating one message.
type Verdict struct {
	FinalMessage      string    `json:"final_message"`
	OriginalMessage   string    `json:"original_message"`
	Changed           bool      `json:"changed"`
	Cancelled         bool      `json:"cancelled"`
	CancelledSilently bool      `json:"cancelled_silently"`
	LoggingIgnored    bool      `json:"logging_ignored"`
	SpyingIgnored     bool      `json:"spying_ignored"`
	MatchedRule       *RuleRef  `json:"matched_rule,omitempty"`
	MatchedRules      []RuleRef `json:"matched_rules,omitempty"`
	Messages          []string  `json:"messages,omitempty"`
	Commands          []Command `json:"commands,omitempty"`
	Events            []Event   `json:"events,omitempty"`
	FailedChecks      []string  `json:"failed_checks,omitempty"`
	Degraded          bool      `json:"degraded,omitempty"`
}

// NewVerdict returns a pass-through verdict for text.
func NewVerdict(text string) *Verdict {
	return &Verdict{
		FinalMessage:    text,
		OriginalMessage: text,
	}
}

// Cancel marks the verdict cancelled. Once silent, a cancellation stays silent.
func (v *Verdict) Cancel(silently bool) {
	v.Cancelled = true
	if silently {
		v.CancelledSilently = true
	}
}

// AddEvent appends an event.
func (v *Verdict) AddEvent(e Event) {
	v.Events = append(v.Events, e)
}

func (v *Verdict) recordMatch(ref RuleRef) {
	if v.MatchedRule == nil {
		first := ref
		v.MatchedRule = &first
	}
	v.MatchedRules = append(v.MatchedRules, ref)
}
