package rule

import (
	"context"
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/AccelByte/extend-chat-moderation/pkg/match"
)

// ConditionKind enumerates the checks that gate a rule after its expression matched.
type ConditionKind int

const (
	ConditionRequirePermission ConditionKind = iota + 1
	ConditionIgnorePermission
	ConditionIgnoreString
	ConditionRequireCommand
	ConditionIgnoreCommand
	ConditionRequireKey
	ConditionIgnoreKey
	ConditionIgnoreCategory
)

// Condition is a precondition evaluated against the sender and message.
type Condition struct {
	Kind       ConditionKind
	Permission string
	Pattern    *match.Expression
	Commands   []glob.Glob
	Key        string
	Value      string // optional expected value for key conditions
	Categories []Category
	raw        string
}

// RequirePermission passes only when the sender has permission.
func RequirePermission(permission string) Condition {
	return Condition{Kind: ConditionRequirePermission, Permission: permission, raw: permission}
}

// IgnorePermission fails when the sender has permission.
func IgnorePermission(permission string) Condition {
	return Condition{Kind: ConditionIgnorePermission, Permission: permission, raw: permission}
}

// IgnoreString fails when the current message matches pattern.
func IgnoreString(pattern *match.Expression) Condition {
	return Condition{Kind: ConditionIgnoreString, Pattern: pattern, raw: pattern.Pattern()}
}

// RequireCommand passes only when the message is one of the given commands.
// Patterns are globs separated by '|', e.g. "/msg|/tell|//*".
func RequireCommand(patterns string) (Condition, error) {
	return commandCondition(ConditionRequireCommand, patterns)
}

// IgnoreCommand fails when the message is one of the given commands.
func IgnoreCommand(patterns string) (Condition, error) {
	return commandCondition(ConditionIgnoreCommand, patterns)
}

// RequireKey passes when the sender's data has key (set to value, when given).
func RequireKey(key, value string) Condition {
	return Condition{Kind: ConditionRequireKey, Key: key, Value: value, raw: key}
}

// IgnoreKey fails when the sender's data has key (set to value, when given).
func IgnoreKey(key, value string) Condition {
	return Condition{Kind: ConditionIgnoreKey, Key: key, Value: value, raw: key}
}

// IgnoreCategories fails for messages of the given categories.
func IgnoreCategories(categories ...Category) Condition {
	return Condition{Kind: ConditionIgnoreCategory, Categories: categories}
}

func commandCondition(kind ConditionKind, patterns string) (Condition, error) {
	cond := Condition{Kind: kind, raw: patterns}
	for _, p := range strings.Split(patterns, "|") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return Condition{}, fmt.Errorf("%w: command pattern %q: %v", ErrInvalidArgument, p, err)
		}
		cond.Commands = append(cond.Commands, g)
	}
	if len(cond.Commands) == 0 {
		return Condition{}, fmt.Errorf("%w: command pattern", ErrMissingArgument)
	}
	return cond, nil
}

func (c Condition) String() string {
	return c.raw
}

// allows reports whether the rule may run for the current evaluation.
func (c Condition) allows(ctx context.Context, ec *EvaluationContext) (bool, error) {
	switch c.Kind {
	case ConditionRequirePermission:
		return ec.Sender != nil && ec.Sender.HasPermission(c.Permission), nil

	case ConditionIgnorePermission:
		return ec.Sender == nil || !ec.Sender.HasPermission(c.Permission), nil

	case ConditionIgnoreString:
		return !c.Pattern.Matches(ec.Message), nil

	case ConditionRequireCommand:
		return c.matchesCommand(ec.Message), nil

	case ConditionIgnoreCommand:
		return !c.matchesCommand(ec.Message), nil

	case ConditionRequireKey, ConditionIgnoreKey:
		present, err := c.keyPresent(ctx, ec)
		if err != nil {
			return false, err
		}
		if c.Kind == ConditionRequireKey {
			return present, nil
		}
		return !present, nil

	case ConditionIgnoreCategory:
		for _, category := range c.Categories {
			if category == ec.Category {
				return false, nil
			}
		}
		return true, nil
	}

	return true, nil
}

func (c Condition) matchesCommand(message string) bool {
	label := CommandLabel(message)
	if label == "" {
		return false
	}
	for _, g := range c.Commands {
		if g.Match(label) {
			return true
		}
	}
	return false
}

func (c Condition) keyPresent(ctx context.Context, ec *EvaluationContext) (bool, error) {
	if ec.Data == nil {
		return false, nil
	}
	value, ok, err := ec.Data.Get(ctx, c.Key)
	if err != nil {
		return false, fmt.Errorf("read key %s: %w", c.Key, err)
	}
	if !ok {
		return false, nil
	}
	return c.Value == "" || value == c.Value, nil
}

// CommandLabel returns the lower-cased first word of a command message ("/msg"),
// or "" when the message is not a command.
func CommandLabel(message string) string {
	message = strings.TrimSpace(message)
	if !strings.HasPrefix(message, "/") {
		return ""
	}
	if i := strings.IndexAny(message, " \t"); i >= 0 {
		message = message[:i]
	}
	return strings.ToLower(message)
}
