package rule

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// RuleSet is the ordered list of rules for one category.
type RuleSet struct {
	category Category
	rules    []*Rule
}

// NewRuleSet creates a rule set. Rules are evaluated in the given order.
func NewRuleSet(category Category, rules []*Rule) *RuleSet {
	return &RuleSet{
		category: category,
		rules:    rules,
	}
}

// Category returns the category the set applies to.
func (s *RuleSet) Category() Category {
	return s.category
}

// Rules returns the rules in evaluation order.
func (s *RuleSet) Rules() []*Rule {
	if s == nil {
		return nil
	}
	return s.rules
}

// Len returns the number of rules.
func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Evaluate applies every rule in order until one stops or cancels the message.
func (s *RuleSet) Evaluate(ctx context.Context, ec *EvaluationContext) (ControlFlow, error) {
	if s.Len() == 0 {
		return FlowContinue, nil
	}

	logrus.Debugf("evaluating %s message against %d rules", s.category, len(s.rules))

	for _, r := range s.rules {
		matched, flow, err := r.Apply(ctx, ec)
		if err != nil {
			return FlowContinue, err
		}
		if matched {
			logrus.Debugf("rule %s matched, flow=%s", r.ID(), flow)
		}
		if flow.Halts() {
			return flow, nil
		}
	}

	return FlowContinue, nil
}

// File is the parsed content of one rule file.
type File struct {
	Name     string
	Category Category
	Rules    []*Rule
	// ImportGlobalAt is the index in Rules where global rules are spliced
	// in by an "@import global" line, or -1 to append them.
	ImportGlobalAt int
}

// Assemble binds group references and builds one rule set per category.
// Global rules are appended to each category, or inserted where the
// category file imports them.
func Assemble(groups *GroupTable, global *File, files map[Category]*File) (map[Category]*RuleSet, error) {
	if groups == nil {
		groups, _ = NewGroupTable()
	}

	all := make([]*File, 0, len(files)+1)
	if global != nil {
		all = append(all, global)
	}
	for _, c := range Categories() {
		if f := files[c]; f != nil {
			all = append(all, f)
		}
	}

	for _, f := range all {
		for _, r := range f.Rules {
			if r.GroupRef == "" {
				continue
			}
			g, ok := groups.Resolve(r.GroupRef)
			if !ok {
				return nil, loadErr(r.File, r.Line, r.ID(), fmt.Errorf("%w: %s", ErrUnknownGroup, r.GroupRef))
			}
			r.group = g
		}
	}

	var globalRules []*Rule
	if global != nil {
		globalRules = global.Rules
	}

	sets := make(map[Category]*RuleSet, len(Categories()))
	for _, c := range Categories() {
		var own []*Rule
		at := -1
		if f := files[c]; f != nil {
			own = f.Rules
			at = f.ImportGlobalAt
		}

		merged := make([]*Rule, 0, len(own)+len(globalRules))
		if at < 0 || at > len(own) {
			merged = append(merged, own...)
			merged = append(merged, globalRules...)
		} else {
			merged = append(merged, own[:at]...)
			merged = append(merged, globalRules...)
			merged = append(merged, own[at:]...)
		}
		sets[c] = NewRuleSet(c, merged)
	}

	return sets, nil
}
