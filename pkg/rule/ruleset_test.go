package rule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AccelByte/extend-chat-moderation/pkg/match"
)

func newRule(name, pattern string, directives ...Directive) *Rule {
	return &Rule{
		Name:       name,
		Category:   CategoryChat,
		Expression: match.MustCompile(pattern, match.DefaultOptions()),
		Operator:   Operator{Directives: directives},
	}
}

func TestRuleSet_ReplacesMatchedSpan(t *testing.T) {
	chat := mustParseRules(t, CategoryChat, "match badword\nthen replace ****\n")
	sets := mustAssemble(t, nil, nil, chat)

	ec := newTestContext("this badword here", newTestSender())
	flow, err := sets[CategoryChat].Evaluate(context.Background(), ec)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if flow != FlowContinue {
		t.Errorf("Expected continue, got %s", flow)
	}
	if ec.Message != "this **** here" {
		t.Errorf("Expected 'this **** here', got %q", ec.Message)
	}
	if !ec.Verdict.Changed || ec.Verdict.Cancelled {
		t.Errorf("Expected changed and not cancelled, got %+v", ec.Verdict)
	}
	if ec.Verdict.MatchedRule == nil || ec.Verdict.MatchedRule.ID != "chat:chat.rs:1" {
		t.Errorf("Unexpected matched rule: %+v", ec.Verdict.MatchedRule)
	}
	if len(ec.Verdict.Events) != 1 || ec.Verdict.Events[0].After != "this **** here" {
		t.Errorf("Expected one rule_matched event with the rewritten text, got %+v", ec.Verdict.Events)
	}
}

func TestRuleSet_OrderMatters(t *testing.T) {
	ab := newRule("a-to-b", "a", Replace("a", "b"))
	bc := newRule("b-to-c", "b", Replace("b", "c"))

	tests := []struct {
		name  string
		rules []*Rule
		want  string
	}{
		{name: "a then b", rules: []*Rule{ab, bc}, want: "c"},
		{name: "b then a", rules: []*Rule{bc, ab}, want: "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := newTestContext("a", newTestSender())
			if _, err := NewRuleSet(CategoryChat, tt.rules).Evaluate(context.Background(), ec); err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if ec.Message != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, ec.Message)
			}
		})
	}
}

func TestRuleSet_StopProcessing(t *testing.T) {
	set := NewRuleSet(CategoryChat, []*Rule{
		newRule("stop", "hello", StopProcessing()),
		newRule("deny", "hello", Deny(true)),
	})

	ec := newTestContext("hello there", newTestSender())
	flow, err := set.Evaluate(context.Background(), ec)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if flow != FlowStop {
		t.Errorf("Expected stop, got %s", flow)
	}
	if ec.Verdict.Cancelled {
		t.Error("Expected second rule not to run")
	}
	if ec.Message != "hello there" {
		t.Errorf("Expected message unchanged, got %q", ec.Message)
	}
}

func TestRule_DenyKeepsLaterDirectives(t *testing.T) {
	r := newRule("deny", "spam", Deny(false), AddWarningPoints("ads", 1), Warn("no ads"), RunCommand("log {player}", true))
	ec := newTestContext("spam", newTestSender())
	points := &thresholdPoints{threshold: 10}
	ec.Points = points

	matched, flow, err := r.Apply(context.Background(), ec)
	if err != nil || !matched {
		t.Fatalf("Expected match without error, got matched=%v err=%v", matched, err)
	}
	if flow != FlowCancelledSilently {
		t.Errorf("Expected silent cancellation, got %s", flow)
	}
	if !ec.Verdict.Cancelled || !ec.Verdict.CancelledSilently {
		t.Errorf("Expected silent cancel, got %+v", ec.Verdict)
	}
	if len(ec.Verdict.Messages) != 1 || ec.Verdict.Messages[0] != "no ads" {
		t.Errorf("Expected warning after deny, got %v", ec.Verdict.Messages)
	}
	if len(ec.Verdict.Commands) != 1 || ec.Verdict.Commands[0].Line != "log Steve" {
		t.Errorf("Expected command after deny, got %+v", ec.Verdict.Commands)
	}
	if points.scores["ads"] != 1 {
		t.Errorf("Expected 1 point after deny, got %d", points.scores["ads"])
	}
}

func TestRuleSet_DenyEndsRuleSet(t *testing.T) {
	chat := mustParseRules(t, CategoryChat, "match spam\nthen deny\nthen warn first\n\nmatch spam\nthen warn second\n")
	sets := mustAssemble(t, nil, nil, chat)

	ec := newTestContext("spam", newTestSender())
	flow, err := sets[CategoryChat].Evaluate(context.Background(), ec)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if flow != FlowCancelled {
		t.Errorf("Expected cancelled, got %s", flow)
	}
	if len(ec.Verdict.Messages) != 1 || ec.Verdict.Messages[0] != "first" {
		t.Errorf("Expected only the denying rule's warning, got %v", ec.Verdict.Messages)
	}
}

func TestRule_StopAfterDenyStaysCancelled(t *testing.T) {
	r := newRule("deny", "spam", Deny(true), StopProcessing(), Warn("never sent"))
	ec := newTestContext("spam", newTestSender())

	_, flow, err := r.Apply(context.Background(), ec)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if flow != FlowCancelled {
		t.Errorf("Expected cancelled, got %s", flow)
	}
	if len(ec.Verdict.Messages) != 0 {
		t.Errorf("Expected stop to end the directives, got %v", ec.Verdict.Messages)
	}
}

func TestRule_SilentCancelIsSticky(t *testing.T) {
	ec := newTestContext("x", newTestSender())
	ec.Verdict.Cancel(true)
	ec.Verdict.Cancel(false)
	if !ec.Verdict.CancelledSilently {
		t.Error("Expected a loud cancel not to clear a silent one")
	}
}

func TestRule_GroupDirectivesRunFirst(t *testing.T) {
	groups := mustParseGroups(t, "group Swears\nthen warn group says {rule_group}\n")
	chat := mustParseRules(t, CategoryChat, "match damn\nname swear\ngroup swears\nthen warn rule says {rule_name}\n")
	sets := mustAssemble(t, groups, nil, chat)

	ec := newTestContext("damn it", newTestSender())
	if _, err := sets[CategoryChat].Evaluate(context.Background(), ec); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	want := []string{"group says Swears", "rule says swear"}
	if len(ec.Verdict.Messages) != len(want) {
		t.Fatalf("Expected %v, got %v", want, ec.Verdict.Messages)
	}
	for i := range want {
		if ec.Verdict.Messages[i] != want[i] {
			t.Errorf("Message %d: expected %q, got %q", i, want[i], ec.Verdict.Messages[i])
		}
	}
	if ec.Verdict.MatchedRule.Group != "Swears" {
		t.Errorf("Expected group Swears, got %q", ec.Verdict.MatchedRule.Group)
	}
}

func TestRule_GroupConditionsGate(t *testing.T) {
	groups := mustParseGroups(t, "group staff-exempt\nignore perm chat.bypass\n")
	chat := mustParseRules(t, CategoryChat, "match ads\ngroup staff-exempt\nthen deny\n")
	sets := mustAssemble(t, groups, nil, chat)

	staff := newTestContext("free ads", newTestSender("chat.bypass"))
	if _, err := sets[CategoryChat].Evaluate(context.Background(), staff); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if staff.Verdict.Cancelled {
		t.Error("Expected staff to bypass the group")
	}

	player := newTestContext("free ads", newTestSender())
	if _, err := sets[CategoryChat].Evaluate(context.Background(), player); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !player.Verdict.Cancelled {
		t.Error("Expected player message to be denied")
	}
}

func TestAssemble_GroupChangeReachesAllRules(t *testing.T) {
	chat := "match foo\ngroup g\n\nmatch bar\ngroup g\n"

	before := mustAssemble(t, mustParseGroups(t, "group g\nthen warn old\n"), nil, mustParseRules(t, CategoryChat, chat))
	after := mustAssemble(t, mustParseGroups(t, "group g\nthen warn new\n"), nil, mustParseRules(t, CategoryChat, chat))

	for _, text := range []string{"foo", "bar"} {
		ec := newTestContext(text, newTestSender())
		if _, err := before[CategoryChat].Evaluate(context.Background(), ec); err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if len(ec.Verdict.Messages) != 1 || ec.Verdict.Messages[0] != "old" {
			t.Errorf("%s before reload: expected [old], got %v", text, ec.Verdict.Messages)
		}

		ec = newTestContext(text, newTestSender())
		if _, err := after[CategoryChat].Evaluate(context.Background(), ec); err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if len(ec.Verdict.Messages) != 1 || ec.Verdict.Messages[0] != "new" {
			t.Errorf("%s after reload: expected [new], got %v", text, ec.Verdict.Messages)
		}
	}
}

func TestAssemble_UnknownGroup(t *testing.T) {
	chat := mustParseRules(t, CategoryChat, "match foo\ngroup missing\n")
	_, err := Assemble(nil, nil, map[Category]*File{CategoryChat: chat})

	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Expected LoadError, got %v", err)
	}
	if !errors.Is(err, ErrUnknownGroup) || loadErr.Line != 1 {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestAssemble_GlobalPlacement(t *testing.T) {
	global := mustParseRules(t, CategoryGlobal, "match x\nname global\nthen warn global\n")
	imported := mustParseRules(t, CategoryChat, "match x\nname first\nthen warn first\n@import global\nmatch x\nname last\nthen warn last\n")
	plain := mustParseRules(t, CategorySign, "match x\nname sign\nthen warn sign\n")

	sets := mustAssemble(t, nil, global, imported, plain)

	tests := []struct {
		category Category
		want     []string
	}{
		{category: CategoryChat, want: []string{"first", "global", "last"}},
		{category: CategorySign, want: []string{"sign", "global"}},
		{category: CategoryBook, want: []string{"global"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			rules := sets[tt.category].Rules()
			if len(rules) != len(tt.want) {
				t.Fatalf("Expected %d rules, got %d", len(tt.want), len(rules))
			}
			for i, r := range rules {
				if r.ID() != tt.want[i] {
					t.Errorf("Rule %d: expected %s, got %s", i, tt.want[i], r.ID())
				}
			}
		})
	}
}

func TestRule_IgnoreTypeSkipsCategory(t *testing.T) {
	global := mustParseRules(t, CategoryGlobal, "match x\nignore type sign, book\nthen deny\n")
	sets := mustAssemble(t, nil, global)

	for category, wantCancelled := range map[Category]bool{CategoryChat: true, CategorySign: false} {
		ec := newTestContext("x", newTestSender())
		ec.Category = category
		if _, err := sets[category].Evaluate(context.Background(), ec); err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if ec.Verdict.Cancelled != wantCancelled {
			t.Errorf("%s: expected cancelled=%v", category, wantCancelled)
		}
	}
}

func TestRule_Cooldown(t *testing.T) {
	chat := mustParseRules(t, CategoryChat, "match hi\nname greet\nplayer delay 10s\nthen warn hello\n")
	sets := mustAssemble(t, nil, nil, chat)
	cooldowns := mapCooldowns{}

	evaluate := func(now time.Time) *Verdict {
		ec := newTestContext("hi", newTestSender())
		ec.Cooldowns = cooldowns
		ec.Now = now
		if _, err := sets[CategoryChat].Evaluate(context.Background(), ec); err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		return ec.Verdict
	}

	if v := evaluate(testNow); len(v.Messages) != 1 || v.Cancelled {
		t.Fatalf("Expected first greeting, got %+v", v)
	}

	v := evaluate(testNow.Add(5 * time.Second))
	if !v.Cancelled || !v.CancelledSilently {
		t.Errorf("Expected silent cancel during cooldown, got %+v", v)
	}
	if v.MatchedRule == nil || v.MatchedRule.ID != "greet" {
		t.Errorf("Expected greet reported as matched, got %+v", v.MatchedRule)
	}
	if len(v.Messages) != 0 {
		t.Errorf("Expected no directives during cooldown, got %v", v.Messages)
	}

	if v := evaluate(testNow.Add(11 * time.Second)); len(v.Messages) != 1 || v.Cancelled {
		t.Errorf("Expected greeting after cooldown, got %+v", v)
	}

	if _, ok := cooldowns[CooldownKey{RuleID: "greet"}]; !ok {
		t.Error("Expected per-sender cooldown entry")
	}
}

func TestRule_CooldownMessage(t *testing.T) {
	chat := mustParseRules(t, CategoryChat, "match trade:\nname trade\ndelay 30 seconds Wait {delay}s before trading again\n")
	sets := mustAssemble(t, nil, nil, chat)
	cooldowns := mapCooldowns{}

	evaluate := func(now time.Time) *Verdict {
		ec := newTestContext("trade: diamonds", newTestSender())
		ec.Cooldowns = cooldowns
		ec.Now = now
		if _, err := sets[CategoryChat].Evaluate(context.Background(), ec); err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		return ec.Verdict
	}

	if v := evaluate(testNow); v.Cancelled || len(v.Messages) != 0 {
		t.Fatalf("Expected first trade delivered, got %+v", v)
	}
	if until := cooldowns[CooldownKey{RuleID: "trade", Global: true}]; !until.Equal(testNow.Add(30 * time.Second)) {
		t.Fatalf("Expected global cooldown until +30s, got %v", until)
	}

	v := evaluate(testNow.Add(10*time.Second + 500*time.Millisecond))
	if !v.Cancelled || v.CancelledSilently {
		t.Errorf("Expected loud cancel during cooldown, got %+v", v)
	}
	if len(v.Messages) != 1 || v.Messages[0] != "Wait 20s before trading again" {
		t.Errorf("Unexpected cooldown message %v", v.Messages)
	}

	var blocked bool
	for _, e := range v.Events {
		if e.Kind == EventCooldownBlocked && e.RuleID == "trade" {
			blocked = true
		}
	}
	if !blocked {
		t.Errorf("Expected %s event, got %+v", EventCooldownBlocked, v.Events)
	}
}

func TestRule_Conditions(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		text    string
		perms   []string
		data    mapBag
		matched bool
	}{
		{name: "require perm missing", src: "match x\nrequire perm vip", text: "x", matched: false},
		{name: "require perm present", src: "match x\nrequire perm vip", text: "x", perms: []string{"vip"}, matched: true},
		{name: "ignore string", src: "match x\nignore string xyz", text: "xyz", matched: false},
		{name: "ignore command glob", src: "match x\nignore command /msg|//*", text: "//set x", matched: false},
		{name: "ignore command other", src: "match x\nignore command /msg|//*", text: "/say x", matched: true},
		{name: "require command", src: "match x\nrequire command /msg|/tell", text: "/TELL bob x", matched: true},
		{name: "require key missing", src: "match x\nrequire key muted", text: "x", matched: false},
		{name: "require key value", src: "match x\nrequire key lang en", text: "x", data: mapBag{"lang": "en"}, matched: true},
		{name: "ignore key present", src: "match x\nignore key trusted", text: "x", data: mapBag{"trusted": "1"}, matched: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sets := mustAssemble(t, nil, nil, mustParseRules(t, CategoryChat, tt.src))
			ec := newTestContext(tt.text, newTestSender(tt.perms...))
			if tt.data != nil {
				ec.Data = tt.data
			}
			if _, err := sets[CategoryChat].Evaluate(context.Background(), ec); err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if got := ec.Verdict.MatchedRule != nil; got != tt.matched {
				t.Errorf("Expected matched=%v, got %v", tt.matched, got)
			}
		})
	}
}

func TestRule_WarningTriggerRunsActions(t *testing.T) {
	points := &thresholdPoints{threshold: 3, actions: []Directive{RunCommand("kick {player}", true)}}
	r := newRule("swear", "damn", AddWarningPoints("swearing", 1))

	var last *EvaluationContext
	for i := 0; i < 3; i++ {
		last = newTestContext("damn", newTestSender())
		last.Points = points
		if _, _, err := r.Apply(context.Background(), last); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if i < 2 && len(last.Verdict.Commands) != 0 {
			t.Fatalf("Expected no trigger on add %d", i+1)
		}
	}

	if len(last.Verdict.Commands) != 1 || last.Verdict.Commands[0].Line != "kick Steve" {
		t.Fatalf("Expected kick command on third add, got %+v", last.Verdict.Commands)
	}
	if last.Verdict.Commands[0].Source != "warning:swearing" {
		t.Errorf("Unexpected command source %q", last.Verdict.Commands[0].Source)
	}
}

func TestRule_WarningTriggerSeesRule(t *testing.T) {
	points := &thresholdPoints{threshold: 1, actions: []Directive{
		RunCommand("log {player} broke {rule_name} in {rule_group}", true),
	}}
	groups := mustParseGroups(t, "group Swears\n")
	chat := mustParseRules(t, CategoryChat, "match damn\nname swear\ngroup swears\nthen points swearing 1\n")
	sets := mustAssemble(t, groups, nil, chat)

	ec := newTestContext("damn", newTestSender())
	ec.Points = points
	if _, err := sets[CategoryChat].Evaluate(context.Background(), ec); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(ec.Verdict.Commands) != 1 || ec.Verdict.Commands[0].Line != "log Steve broke swear in Swears" {
		t.Fatalf("Unexpected trigger commands %+v", ec.Verdict.Commands)
	}
}

func TestRunActions_RuleVariablesWithoutRule(t *testing.T) {
	ec := newTestContext("hi", newTestSender())
	_, err := ec.RunActions(context.Background(), "antispam:caps", []Directive{
		Warn("[{rule_name}|{rule_group}] {player}"),
	})
	if err != nil {
		t.Fatalf("RunActions failed: %v", err)
	}
	if len(ec.Verdict.Messages) != 1 || ec.Verdict.Messages[0] != "[|] Steve" {
		t.Errorf("Expected empty rule variables, got %v", ec.Verdict.Messages)
	}
}

func TestRule_ZeroWidthMatchInsertsAtSpan(t *testing.T) {
	r := newRule("prefix", "^", RewriteMatch("> "))
	ec := newTestContext("hello", newTestSender())
	if _, _, err := r.Apply(context.Background(), ec); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if ec.Message != "> hello" {
		t.Errorf("Expected '> hello', got %q", ec.Message)
	}
}

func TestRule_SetDataAndVariables(t *testing.T) {
	chat := mustParseRules(t, CategoryChat, "match spam\nsave key muted_until {now_plus:10m}\nthen rewrite {player} said [{matched_message}] in {category} for {server}\n")
	sets := mustAssemble(t, nil, nil, chat)

	ec := NewEvaluationContext(CategoryChat, newTestSender(), "spam!", map[string]string{"server": "lobby"}, testNow)
	bag := mapBag{}
	ec.Data = bag
	if _, err := sets[CategoryChat].Evaluate(context.Background(), ec); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if ec.Message != "Steve said [spam] in chat for lobby" {
		t.Errorf("Unexpected rewrite %q", ec.Message)
	}
	wantUntil := "1735733400" // testNow + 10m
	if bag["muted_until"] != wantUntil {
		t.Errorf("Expected muted_until=%s, got %q", wantUntil, bag["muted_until"])
	}
}

func TestRule_ProlongReplacement(t *testing.T) {
	r := newRule("stars", "bad\\w+", RewriteMatch("@prolong *"))
	ec := newTestContext("a badword!", newTestSender())
	if _, _, err := r.Apply(context.Background(), ec); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if ec.Message != "a *******!" {
		t.Errorf("Expected 'a *******!', got %q", ec.Message)
	}
}

type failingBag struct{ mapBag }

func (failingBag) Set(context.Context, string, string) error { return errors.New("store down") }

func TestRule_DataStoreErrorPropagates(t *testing.T) {
	r := newRule("save", "x", SetData("k", "v"))
	ec := newTestContext("x", newTestSender())
	ec.Data = failingBag{mapBag{}}

	matched, _, err := r.Apply(context.Background(), ec)
	if err == nil || !matched {
		t.Fatalf("Expected matched rule with error, got matched=%v err=%v", matched, err)
	}
}
