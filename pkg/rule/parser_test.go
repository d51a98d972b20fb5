package rule

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestParseRuleFile(t *testing.T) {
	src := `
# swearing
match f[u*]ck
name swear-filter
strip colors
strip accents
ignore perm chat.bypass
then replace @prolong *
then points swearing 2
dont spy

match discord\.gg/\w+
literal
case sensitive
then deny silently
then console alert {player} advertised
`
	f := mustParseRules(t, CategoryChat, src)

	if len(f.Rules) != 2 {
		t.Fatalf("Expected 2 rules, got %d", len(f.Rules))
	}

	first := f.Rules[0]
	if first.ID() != "swear-filter" || first.Line != 3 {
		t.Errorf("Unexpected first rule id=%s line=%d", first.ID(), first.Line)
	}
	opts := first.Expression.Options()
	if !opts.StripColors || !opts.StripAccents || !opts.CaseInsensitive {
		t.Errorf("Unexpected options %+v", opts)
	}
	if len(first.Operator.Conditions) != 1 || len(first.Operator.Directives) != 3 {
		t.Errorf("Unexpected operator %+v", first.Operator)
	}
	if d := first.Operator.Directives[1]; d.Kind != DirectiveAddWarningPoints || d.Set != "swearing" || d.Amount != 2 {
		t.Errorf("Unexpected points directive %s", d)
	}

	second := f.Rules[1]
	if second.ID() != "chat:chat.rs:12" {
		t.Errorf("Unexpected second rule id %s", second.ID())
	}
	if second.Expression.Options().Regex || second.Expression.Options().CaseInsensitive {
		t.Errorf("Expected literal case-sensitive expression")
	}
	if d := second.Operator.Directives[0]; d.Kind != DirectiveDeny || d.Loud {
		t.Errorf("Expected silent deny, got %s", d)
	}
	if d := second.Operator.Directives[1]; d.Kind != DirectiveCommand || !d.Console {
		t.Errorf("Expected console command, got %s", d)
	}
}

func TestParseRuleFile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		category Category
		src      string
		wantErr  error
		wantLine int
	}{
		{name: "unknown directive", category: CategoryChat, src: "match x\nthen explode\n", wantErr: ErrUnknownDirective, wantLine: 2},
		{name: "directive before match", category: CategoryChat, src: "then deny\n", wantErr: ErrMissingMatch, wantLine: 1},
		{name: "ignore type outside global", category: CategoryChat, src: "match x\nignore type sign\n", wantErr: ErrDirectiveNotAllowed, wantLine: 2},
		{name: "import inside global", category: CategoryGlobal, src: "@import global\n", wantErr: ErrDirectiveNotAllowed, wantLine: 1},
		{name: "bad points amount", category: CategoryChat, src: "match x\nthen points swearing lots\n", wantErr: ErrInvalidArgument, wantLine: 2},
		{name: "bad delay", category: CategoryChat, src: "match x\ndelay soon\n", wantErr: ErrInvalidArgument, wantLine: 2},
		{name: "duplicate name", category: CategoryChat, src: "match x\nname a\nname b\n", wantErr: ErrDuplicateDirective, wantLine: 3},
		{name: "bad swap", category: CategoryChat, src: "match x\nthen swap nothing\n", wantErr: ErrInvalidArgument, wantLine: 2},
		{name: "unknown category", category: CategoryGlobal, src: "match x\nignore type lobby\n", wantErr: ErrUnknownCategory, wantLine: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRuleFile("test.rs", tt.category, strings.NewReader(tt.src))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("Expected LoadError, got %T", err)
			}
			if loadErr.Line != tt.wantLine {
				t.Errorf("Expected line %d, got %d", tt.wantLine, loadErr.Line)
			}
		})
	}
}

func TestParseRuleFile_InvalidExpression(t *testing.T) {
	_, err := ParseRuleFile("chat.rs", CategoryChat, strings.NewReader("\n\nmatch ([a-z\n"))

	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Expected LoadError, got %v", err)
	}
	if loadErr.Line != 3 || loadErr.Rule != "chat:chat.rs:3" {
		t.Errorf("Unexpected location %+v", loadErr)
	}
}

func TestParseGroupFile(t *testing.T) {
	groups := mustParseGroups(t, "group Ads\nignore perm ads.bypass\nthen deny\n\ngroup swears\nthen points swearing 1\n")

	if groups.Count() != 2 {
		t.Fatalf("Expected 2 groups, got %d", groups.Count())
	}
	g, ok := groups.Resolve("ADS")
	if !ok || g.Name != "Ads" {
		t.Fatalf("Expected case-insensitive lookup of Ads, got %+v", g)
	}
	if names := groups.Names(); names[0] != "Ads" || names[1] != "swears" {
		t.Errorf("Unexpected names %v", names)
	}

	_, err := ParseGroupFile("groups.rs", strings.NewReader("group a\nthen deny\ngroup A\n"))
	if !errors.Is(err, ErrDuplicateGroup) {
		t.Errorf("Expected duplicate group error, got %v", err)
	}

	_, err = ParseGroupFile("groups.rs", strings.NewReader("group a\nstrip colors\n"))
	if !errors.Is(err, ErrDirectiveNotAllowed) {
		t.Errorf("Expected rule-only flag to be rejected in a group, got %v", err)
	}
}

func TestParseActions(t *testing.T) {
	actions, err := ParseActions("warning:swearing", []string{
		"then console mute {player} 5m",
		"then warn You have been muted",
		"save key muted_until {now_plus:5m}",
	})
	if err != nil {
		t.Fatalf("ParseActions failed: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("Expected 3 actions, got %d", len(actions))
	}

	_, err = ParseActions("warning:swearing", []string{"then points swearing 1"})
	if !errors.Is(err, ErrDirectiveNotAllowed) {
		t.Errorf("Expected points to be rejected in triggers, got %v", err)
	}
}

func TestParseDuration(t *testing.T) {
	tests := map[string]time.Duration{
		"10s":       10 * time.Second,
		"1h30m":     90 * time.Minute,
		"15":        15 * time.Second,
		"2 minutes": 2 * time.Minute,
		"1 day":     24 * time.Hour,
	}
	for in, want := range tests {
		got, err := ParseDuration(in)
		if err != nil || got != want {
			t.Errorf("ParseDuration(%q) = %v, %v; want %v", in, got, err, want)
		}
	}

	for _, in := range []string{"", "soon", "-5s", "3 fortnights"} {
		if _, err := ParseDuration(in); err == nil {
			t.Errorf("Expected error for %q", in)
		}
	}
}

func TestParseDelayMessage(t *testing.T) {
	tests := []struct {
		line     string
		global   bool
		duration time.Duration
		message  string
	}{
		{line: "delay 30s", global: true, duration: 30 * time.Second},
		{line: "delay 30 seconds Wait {delay}s", global: true, duration: 30 * time.Second, message: "Wait {delay}s"},
		{line: "player delay 10s  Slow down, {player}", duration: 10 * time.Second, message: "Slow down, {player}"},
		{line: "player delay 5 Wait", duration: 5 * time.Second, message: "Wait"},
	}
	for _, tt := range tests {
		f := mustParseRules(t, CategoryChat, "match x\n"+tt.line+"\n")
		d := f.Rules[0].Operator.Directives[0]
		if d.Kind != DirectiveRequireCooldown || d.Global != tt.global || d.Duration != tt.duration || d.Message != tt.message {
			t.Errorf("%q: unexpected directive %+v", tt.line, d)
		}
	}
}

func TestRuleSet_EvaluationAlwaysTerminates(t *testing.T) {
	src := `
match a
then swap a -> aa
match b+
then replace @prolong b
then warn {matched_message}
match (?i)stop
then abort
match z
then deny
`
	sets := mustAssemble(t, nil, nil, mustParseRules(t, CategoryChat, src))

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("every evaluation returns and reports a consistent verdict", prop.ForAll(
		func(text string) bool {
			ec := newTestContext(text, newTestSender())
			flow, err := sets[CategoryChat].Evaluate(context.Background(), ec)
			if err != nil {
				return false
			}
			if flow.Cancelled() != ec.Verdict.Cancelled {
				return false
			}
			if ec.Message != text && !ec.Verdict.Changed {
				return false
			}
			return len(ec.Verdict.MatchedRules) <= 4
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
