package rule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/AccelByte/extend-chat-moderation/pkg/match"
)

func init() {
	// rule flags
	registerKeyword(scopeRule, setName, "name")
	registerKeyword(scopeRule, setGroupRef, "group")
	registerKeyword(scopeRule, flag(func(b *block) { b.disabled = true }), "disabled")
	registerKeyword(scopeRule, flag(func(b *block) { b.opts.Regex = false }), "literal")
	registerKeyword(scopeRule, flag(func(b *block) { b.opts.CaseInsensitive = false }), "case sensitive")
	registerKeyword(scopeRule, flag(func(b *block) { b.opts.StripColors = true }), "strip colors", "strip colours")
	registerKeyword(scopeRule, flag(func(b *block) { b.opts.StripAccents = true }), "strip accents")
	registerKeyword(scopeRule, ignoreType, "ignore type", "ignore types")

	// conditions
	registerKeyword(scopeOperator, permission(RequirePermission), "require perm", "require permission")
	registerKeyword(scopeOperator, permission(IgnorePermission), "ignore perm", "ignore permission")
	registerKeyword(scopeOperator, ignoreString, "ignore string")
	registerKeyword(scopeOperator, commands(RequireCommand), "require command", "require commands")
	registerKeyword(scopeOperator, commands(IgnoreCommand), "ignore command", "ignore commands")
	registerKeyword(scopeOperator, dataKey(RequireKey), "require key")
	registerKeyword(scopeOperator, dataKey(IgnoreKey), "ignore key")

	// directives
	registerKeyword(scopeOperator, rewrite(RewriteMatch), "then replace")
	registerKeyword(scopeOperator, rewrite(RewriteMessage), "then rewrite")
	registerKeyword(scopeOperator, swap, "then swap")
	registerKeyword(scopeOperator, points, "then points")
	registerKeyword(scopeOperator, delay(true), "delay")
	registerKeyword(scopeOperator, delay(false), "player delay")
	registerKeyword(scopeAny, deny, "then deny")
	registerKeyword(scopeAny, directive(StopProcessing()), "then abort", "then stop")
	registerKeyword(scopeAny, directive(IgnoreLogging()), "dont log")
	registerKeyword(scopeAny, directive(IgnoreSpying()), "dont spy")
	registerKeyword(scopeAny, command(false), "then command", "then commands")
	registerKeyword(scopeAny, command(true), "then console", "then consolecommand")
	registerKeyword(scopeAny, warn, "then warn", "then message", "then alert")
	registerKeyword(scopeAny, saveKey, "save key")
}

func flag(set func(b *block)) keywordHandler {
	return func(b *block, args string) error {
		if args != "" {
			return fmt.Errorf("%w: unexpected %q", ErrInvalidArgument, args)
		}
		set(b)
		return nil
	}
}

func directive(d Directive) keywordHandler {
	return func(b *block, args string) error {
		if args != "" {
			return fmt.Errorf("%w: unexpected %q", ErrInvalidArgument, args)
		}
		b.addDirective(d)
		return nil
	}
}

func setName(b *block, args string) error {
	if args == "" {
		return fmt.Errorf("%w: name", ErrMissingArgument)
	}
	if b.name != "" {
		return fmt.Errorf("%w: name", ErrDuplicateDirective)
	}
	b.name = args
	return nil
}

func setGroupRef(b *block, args string) error {
	if args == "" {
		return fmt.Errorf("%w: group", ErrMissingArgument)
	}
	if b.groupRef != "" {
		return fmt.Errorf("%w: group", ErrDuplicateDirective)
	}
	b.groupRef = args
	return nil
}

func ignoreType(b *block, args string) error {
	if b.category != CategoryGlobal {
		return fmt.Errorf("%w: ignore type outside global rules", ErrDirectiveNotAllowed)
	}
	var categories []Category
	for _, name := range strings.FieldsFunc(args, splitList) {
		c, err := ParseCategory(name)
		if err != nil {
			return err
		}
		categories = append(categories, c)
	}
	if len(categories) == 0 {
		return fmt.Errorf("%w: ignore type", ErrMissingArgument)
	}
	b.op.Conditions = append(b.op.Conditions, IgnoreCategories(categories...))
	return nil
}

func splitList(r rune) bool {
	return r == ' ' || r == ',' || r == '|' || r == '\t'
}

func permission(build func(string) Condition) keywordHandler {
	return func(b *block, args string) error {
		if args == "" {
			return fmt.Errorf("%w: permission", ErrMissingArgument)
		}
		b.op.Conditions = append(b.op.Conditions, build(args))
		return nil
	}
}

func ignoreString(b *block, args string) error {
	if args == "" {
		return fmt.Errorf("%w: ignore string", ErrMissingArgument)
	}
	expr, err := match.Compile(args, match.DefaultOptions())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	b.op.Conditions = append(b.op.Conditions, IgnoreString(expr))
	return nil
}

func commands(build func(string) (Condition, error)) keywordHandler {
	return func(b *block, args string) error {
		c, err := build(args)
		if err != nil {
			return err
		}
		b.op.Conditions = append(b.op.Conditions, c)
		return nil
	}
}

func dataKey(build func(key, value string) Condition) keywordHandler {
	return func(b *block, args string) error {
		key, value, _ := strings.Cut(args, " ")
		if key == "" {
			return fmt.Errorf("%w: key", ErrMissingArgument)
		}
		b.op.Conditions = append(b.op.Conditions, build(key, strings.TrimSpace(value)))
		return nil
	}
}

func rewrite(build func(string) Directive) keywordHandler {
	return func(b *block, args string) error {
		if args == "" {
			return fmt.Errorf("%w: replacement", ErrMissingArgument)
		}
		b.addDirective(build(args))
		return nil
	}
}

func swap(b *block, args string) error {
	target, replacement, ok := strings.Cut(args, "->")
	target = strings.TrimSpace(target)
	if !ok || target == "" {
		return fmt.Errorf("%w: expected \"<target> -> <replacement>\"", ErrInvalidArgument)
	}
	b.addDirective(Replace(target, strings.TrimSpace(replacement)))
	return nil
}

func points(b *block, args string) error {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return fmt.Errorf("%w: expected \"<set> <amount>\"", ErrInvalidArgument)
	}
	amount, err := strconv.Atoi(fields[1])
	if err != nil {
		return fmt.Errorf("%w: points amount %q", ErrInvalidArgument, fields[1])
	}
	b.addDirective(AddWarningPoints(fields[0], amount))
	return nil
}

func delay(global bool) keywordHandler {
	return func(b *block, args string) error {
		if args == "" {
			return fmt.Errorf("%w: delay duration", ErrMissingArgument)
		}
		d, message, err := parseDelay(args)
		if err != nil {
			return err
		}
		b.addDirective(RequireCooldown(d, global, message))
		return nil
	}
}

// parseDelay splits "<duration> [message]" where the duration is one token
// ("30s", "30") or a number and a unit ("30 seconds").
func parseDelay(args string) (time.Duration, string, error) {
	fields := strings.Fields(args)
	if len(fields) >= 2 {
		if d, err := ParseDuration(fields[0] + " " + fields[1]); err == nil {
			return d, afterFields(args, 2), nil
		}
	}
	d, err := ParseDuration(fields[0])
	if err != nil {
		return 0, "", err
	}
	return d, afterFields(args, 1), nil
}

// afterFields returns s without its first n whitespace-separated fields.
func afterFields(s string, n int) string {
	s = strings.TrimSpace(s)
	for i := 0; i < n; i++ {
		end := strings.IndexFunc(s, unicode.IsSpace)
		if end < 0 {
			return ""
		}
		s = strings.TrimSpace(s[end:])
	}
	return s
}

func deny(b *block, args string) error {
	switch strings.ToLower(args) {
	case "":
		b.addDirective(Deny(true))
	case "silently", "silent":
		b.addDirective(Deny(false))
	default:
		return fmt.Errorf("%w: unexpected %q", ErrInvalidArgument, args)
	}
	return nil
}

func command(console bool) keywordHandler {
	return func(b *block, args string) error {
		if args == "" {
			return fmt.Errorf("%w: command", ErrMissingArgument)
		}
		b.addDirective(RunCommand(args, console))
		return nil
	}
}

func warn(b *block, args string) error {
	if args == "" {
		return fmt.Errorf("%w: message", ErrMissingArgument)
	}
	b.addDirective(Warn(args))
	return nil
}

func saveKey(b *block, args string) error {
	key, value, _ := strings.Cut(args, " ")
	if key == "" {
		return fmt.Errorf("%w: key", ErrMissingArgument)
	}
	b.addDirective(SetData(key, strings.TrimSpace(value)))
	return nil
}

// ParseDuration parses "10s", "1h30m", a bare number of seconds, or
// "<n> <unit>" with units such as seconds, minutes, hours and days.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return checkDuration(s, d)
	}

	number, unit, _ := strings.Cut(s, " ")
	n, err := strconv.Atoi(number)
	if err != nil {
		return 0, fmt.Errorf("%w: duration %q", ErrInvalidArgument, s)
	}

	var base time.Duration
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "", "s", "sec", "secs", "second", "seconds":
		base = time.Second
	case "m", "min", "mins", "minute", "minutes":
		base = time.Minute
	case "h", "hour", "hours":
		base = time.Hour
	case "d", "day", "days":
		base = 24 * time.Hour
	default:
		return 0, fmt.Errorf("%w: duration unit %q", ErrInvalidArgument, unit)
	}
	return checkDuration(s, time.Duration(n)*base)
}

func checkDuration(s string, d time.Duration) (time.Duration, error) {
	if d <= 0 {
		return 0, fmt.Errorf("%w: duration %q must be positive", ErrInvalidArgument, s)
	}
	return d, nil
}
