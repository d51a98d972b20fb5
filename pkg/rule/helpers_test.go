package rule

import (
	"context"
	"strings"
	"testing"
	"time"
)

type testSender struct {
	id    string
	name  string
	perms map[string]bool
}

func newTestSender(perms ...string) *testSender {
	s := &testSender{id: "p-1", name: "Steve", perms: make(map[string]bool)}
	for _, p := range perms {
		s.perms[p] = true
	}
	return s
}

func (s *testSender) ID() string                  { return s.id }
func (s *testSender) Name() string                { return s.name }
func (s *testSender) HasPermission(p string) bool { return s.perms[p] }

type mapBag map[string]string

func (b mapBag) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := b[key]
	return v, ok, nil
}

func (b mapBag) Set(_ context.Context, key, value string) error {
	if value == "" {
		delete(b, key)
		return nil
	}
	b[key] = value
	return nil
}

type mapCooldowns map[CooldownKey]time.Time

func (c mapCooldowns) CooldownUntil(key CooldownKey) time.Time { return c[key] }
func (c mapCooldowns) EngageCooldown(key CooldownKey, until time.Time) {
	c[key] = until
}

// thresholdPoints fires actions once a set reaches threshold.
type thresholdPoints struct {
	scores    map[string]int
	threshold int
	actions   []Directive
}

func (p *thresholdPoints) AwardPoints(_ context.Context, set string, amount int) (PointsOutcome, error) {
	if p.scores == nil {
		p.scores = make(map[string]int)
	}
	prev := p.scores[set]
	p.scores[set] = prev + amount
	out := PointsOutcome{Set: set, Previous: prev, Score: prev + amount}
	if out.Score >= p.threshold {
		out.Trigger = "score >= threshold"
		out.Actions = p.actions
	}
	return out, nil
}

var testNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestContext(text string, sender Sender) *EvaluationContext {
	ec := NewEvaluationContext(CategoryChat, sender, text, nil, testNow)
	ec.Data = mapBag{}
	ec.Cooldowns = mapCooldowns{}
	return ec
}

func mustParseRules(t *testing.T, category Category, src string) *File {
	t.Helper()
	f, err := ParseRuleFile(string(category)+".rs", category, strings.NewReader(src))
	if err != nil {
		t.Fatalf("Failed to parse rules: %v", err)
	}
	return f
}

func mustParseGroups(t *testing.T, src string) *GroupTable {
	t.Helper()
	g, err := ParseGroupFile("groups.rs", strings.NewReader(src))
	if err != nil {
		t.Fatalf("Failed to parse groups: %v", err)
	}
	return g
}

func mustAssemble(t *testing.T, groups *GroupTable, global *File, files ...*File) map[Category]*RuleSet {
	t.Helper()
	byCategory := make(map[Category]*File)
	for _, f := range files {
		byCategory[f.Category] = f
	}
	sets, err := Assemble(groups, global, byCategory)
	if err != nil {
		t.Fatalf("Failed to assemble rule sets: %v", err)
	}
	return sets
}
