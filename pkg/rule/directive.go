package rule

import (
	"fmt"
	"time"
)

// DirectiveKind enumerates the closed set of directive variants.
type DirectiveKind int

const (
	// DirectiveReplace replaces the first occurrence of Target with Replacement.
	DirectiveReplace DirectiveKind = iota + 1
	// DirectiveRewrite replaces the matched span, or the whole message when WholeMessage is set.
	DirectiveRewrite
	// DirectiveDeny cancels the message. Loud denials notify the sender.
	DirectiveDeny
	// DirectiveCancelSilently cancels the message without telling the sender.
	DirectiveCancelSilently
	DirectiveIgnoreLogging
	DirectiveIgnoreSpying
	// DirectiveAddWarningPoints awards Amount points in warning set Set.
	DirectiveAddWarningPoints
	// DirectiveRequireCooldown starts a cooldown for the matched rule. While
	// it is active the rule cancels matching messages, with Message if set.
	DirectiveRequireCooldown
	// DirectiveStopProcessing ends rule evaluation, keeping the message.
	DirectiveStopProcessing
	// DirectiveCommand schedules a command for dispatch after evaluation.
	DirectiveCommand
	// DirectiveSetData writes Value to the player's data bag under Key.
	DirectiveSetData
	// DirectiveWarn queues a message for the sender.
	DirectiveWarn
)

var directiveKindNames = map[DirectiveKind]string{
	DirectiveReplace:          "replace",
	DirectiveRewrite:          "rewrite",
	DirectiveDeny:             "deny",
	DirectiveCancelSilently:   "cancel_silently",
	DirectiveIgnoreLogging:    "ignore_logging",
	DirectiveIgnoreSpying:     "ignore_spying",
	DirectiveAddWarningPoints: "add_warning_points",
	DirectiveRequireCooldown:  "require_cooldown",
	DirectiveStopProcessing:   "stop_processing",
	DirectiveCommand:          "command",
	DirectiveSetData:          "set_data",
	DirectiveWarn:             "warn",
}

func (k DirectiveKind) String() string {
	if name, ok := directiveKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("directive(%d)", int(k))
}

// Directive is one step of a rule's operator program.
// Only the fields relevant to Kind are set.
type Directive struct {
	Kind DirectiveKind

	Target       string // Replace
	Replacement  string // Replace, Rewrite
	WholeMessage bool   // Rewrite

	Loud bool // Deny

	Set    string // AddWarningPoints
	Amount int    // AddWarningPoints

	Duration time.Duration // RequireCooldown
	Global   bool          // RequireCooldown

	Command string // Command
	Console bool   // Command

	Key   string // SetData
	Value string // SetData

	Message string // Warn, RequireCooldown
}

// Replace builds a directive that swaps the first occurrence of target.
func Replace(target, replacement string) Directive {
	return Directive{Kind: DirectiveReplace, Target: target, Replacement: replacement}
}

// RewriteMatch builds a directive that replaces the matched span.
func RewriteMatch(replacement string) Directive {
	return Directive{Kind: DirectiveRewrite, Replacement: replacement}
}

// RewriteMessage builds a directive that replaces the entire message.
func RewriteMessage(replacement string) Directive {
	return Directive{Kind: DirectiveRewrite, Replacement: replacement, WholeMessage: true}
}

// Deny builds a cancelling directive.
func Deny(loud bool) Directive {
	return Directive{Kind: DirectiveDeny, Loud: loud}
}

func CancelSilently() Directive {
	return Directive{Kind: DirectiveCancelSilently}
}

func IgnoreLogging() Directive {
	return Directive{Kind: DirectiveIgnoreLogging}
}

func IgnoreSpying() Directive {
	return Directive{Kind: DirectiveIgnoreSpying}
}

// AddWarningPoints builds a directive awarding points to a warning set.
func AddWarningPoints(set string, amount int) Directive {
	return Directive{Kind: DirectiveAddWarningPoints, Set: set, Amount: amount}
}

// RequireCooldown builds a cooldown directive, per sender unless global.
// message is sent when a message is cancelled by the active cooldown; an
// empty message cancels silently.
func RequireCooldown(d time.Duration, global bool, message string) Directive {
	return Directive{Kind: DirectiveRequireCooldown, Duration: d, Global: global, Message: message}
}

func StopProcessing() Directive {
	return Directive{Kind: DirectiveStopProcessing}
}

// RunCommand builds a command directive. Console commands run as the server.
func RunCommand(line string, console bool) Directive {
	return Directive{Kind: DirectiveCommand, Command: line, Console: console}
}

// SetData builds a directive writing to the sender's data bag. An empty value deletes the key.
func SetData(key, value string) Directive {
	return Directive{Kind: DirectiveSetData, Key: key, Value: value}
}

func Warn(message string) Directive {
	return Directive{Kind: DirectiveWarn, Message: message}
}

func (d Directive) String() string {
	switch d.Kind {
	case DirectiveReplace:
		return fmt.Sprintf("replace %q -> %q", d.Target, d.Replacement)
	case DirectiveRewrite:
		if d.WholeMessage {
			return fmt.Sprintf("rewrite message -> %q", d.Replacement)
		}
		return fmt.Sprintf("rewrite match -> %q", d.Replacement)
	case DirectiveDeny:
		if d.Loud {
			return "deny"
		}
		return "deny silently"
	case DirectiveAddWarningPoints:
		return fmt.Sprintf("points %s %d", d.Set, d.Amount)
	case DirectiveRequireCooldown:
		if d.Global {
			return fmt.Sprintf("cooldown %s global", d.Duration)
		}
		return fmt.Sprintf("cooldown %s", d.Duration)
	case DirectiveCommand:
		if d.Console {
			return fmt.Sprintf("console %q", d.Command)
		}
		return fmt.Sprintf("command %q", d.Command)
	case DirectiveSetData:
		return fmt.Sprintf("save %s=%q", d.Key, d.Value)
	case DirectiveWarn:
		return fmt.Sprintf("warn %q", d.Message)
	default:
		return d.Kind.String()
	}
}
