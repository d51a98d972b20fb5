package pipeline

import (
	"fmt"

	"github.com/AccelByte/extend-chat-moderation/pkg/rule"
	"github.com/AccelByte/extend-chat-moderation/pkg/warning"
)

// validatePointSets checks that every "then points" directive in rules and
// groups names a configured warning set. This catches typos that would
// otherwise only surface when a message first matches the rule.
func validatePointSets(ruleSets map[rule.Category]*rule.RuleSet, groups *rule.GroupTable, sets warning.Sets) error {
	for _, name := range groups.Names() {
		g, _ := groups.Resolve(name)
		if set, ok := unknownSet(g.Operator, sets); !ok {
			return &rule.LoadError{File: g.File, Line: g.Line, Rule: "group " + g.Name, Err: fmt.Errorf("%w: %s", warning.ErrUnknownWarningSet, set)}
		}
	}

	for _, c := range rule.Categories() {
		for _, r := range ruleSets[c].Rules() {
			if set, ok := unknownSet(r.Operator, sets); !ok {
				return &rule.LoadError{File: r.File, Line: r.Line, Rule: r.ID(), Err: fmt.Errorf("%w: %s", warning.ErrUnknownWarningSet, set)}
			}
		}
	}

	return nil
}

func unknownSet(op rule.Operator, sets warning.Sets) (string, bool) {
	for _, d := range op.Directives {
		if d.Kind == rule.DirectiveAddWarningPoints && !sets.Has(d.Set) {
			return d.Set, false
		}
	}
	return "", true
}
