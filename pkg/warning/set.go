package warning

import (
	"fmt"
	"sort"

	"github.com/AccelByte/extend-chat-moderation/pkg/rule"
)

// SetConfig is the YAML form of a warning set.
type SetConfig struct {
	Decay    int             `yaml:"decay" json:"decay"`
	Triggers []TriggerConfig `yaml:"triggers" json:"triggers"`
}

// TriggerConfig binds a formula to directive lines run when it first holds.
type TriggerConfig struct {
	When    string   `yaml:"when" json:"when"`
	Actions []string `yaml:"actions" json:"actions"`
}

// Trigger is a compiled trigger.
type Trigger struct {
	Condition *Condition
	Actions   []rule.Directive
}

// Set is a named score bucket with decay and ordered triggers.
type Set struct {
	Name     string
	Decay    int
	Triggers []Trigger
}

// Sets is an immutable collection of warning sets keyed by name.
type Sets map[string]*Set

// Names returns the set names sorted.
func (s Sets) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a set exists.
func (s Sets) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Compile builds warning sets from configuration. Problems are reported as
// rule.LoadError with the offending set and trigger.
func Compile(source string, configs map[string]SetConfig) (Sets, error) {
	sets := make(Sets, len(configs))

	for _, name := range sortedKeys(configs) {
		cfg := configs[name]
		if cfg.Decay < 0 {
			return nil, &rule.LoadError{File: source, Rule: "warning set " + name, Err: fmt.Errorf("decay must not be negative, got %d", cfg.Decay)}
		}

		set := &Set{Name: name, Decay: cfg.Decay}
		for i, tc := range cfg.Triggers {
			where := fmt.Sprintf("warning set %s trigger %d", name, i+1)

			cond, err := CompileCondition(tc.When)
			if err != nil {
				return nil, &rule.LoadError{File: source, Rule: where, Err: err}
			}
			actions, err := rule.ParseActions(source, tc.Actions)
			if err != nil {
				return nil, &rule.LoadError{File: source, Rule: where, Err: err}
			}
			set.Triggers = append(set.Triggers, Trigger{Condition: cond, Actions: actions})
		}

		sets[name] = set
	}

	return sets, nil
}

func sortedKeys(m map[string]SetConfig) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
