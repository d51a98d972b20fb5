package checker

import (
	"fmt"
	"time"

	"github.com/AccelByte/extend-chat-moderation/pkg/antispam"
	"github.com/AccelByte/extend-chat-moderation/pkg/rule"
	"github.com/AccelByte/extend-chat-moderation/pkg/warning"
)

// DefaultMuteKey is the data-bag key holding a mute deadline in unix seconds.
const DefaultMuteKey = "muted_until"

// MuteConfig cancels messages from muted senders.
type MuteConfig struct {
	Enabled          bool     `yaml:"enabled"`
	DataKey          string   `yaml:"data_key"`
	Categories       []string `yaml:"categories"`
	BypassPermission string   `yaml:"bypass_permission"`
	Silent           bool     `yaml:"silent"`
	Message          string   `yaml:"message"`
}

// NewcomerConfig restricts senders who joined less than Window ago.
type NewcomerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Window           time.Duration `yaml:"window"`
	Categories       []string      `yaml:"categories"`
	BypassPermission string        `yaml:"bypass_permission"`
	Silent           bool          `yaml:"silent"`
	Message          string        `yaml:"message"`
}

// Snapshot is one immutable generation of compiled configuration.
type Snapshot struct {
	Source      string
	Generation  uint64
	LoadedAt    time.Time
	RuleSets    map[rule.Category]*rule.RuleSet
	Groups      *rule.GroupTable
	WarningSets warning.Sets
	Antispam    *antispam.Evaluator

	Mute               MuteConfig
	MuteCategories     map[rule.Category]bool
	Newcomer           NewcomerConfig
	NewcomerCategories map[rule.Category]bool
}

// NewSnapshot validates the mute and newcomer settings and builds a snapshot.
func NewSnapshot(source string, sets map[rule.Category]*rule.RuleSet, groups *rule.GroupTable, warningSets warning.Sets, spam *antispam.Evaluator, mute MuteConfig, newcomer NewcomerConfig) (*Snapshot, error) {
	if mute.DataKey == "" {
		mute.DataKey = DefaultMuteKey
	}
	muteCategories, err := categorySet(mute.Categories)
	if err != nil {
		return nil, &rule.LoadError{File: source, Rule: "mute", Err: err}
	}

	if newcomer.Enabled && newcomer.Window <= 0 {
		return nil, &rule.LoadError{File: source, Rule: "newcomer", Err: fmt.Errorf("window must be positive")}
	}
	newcomerCategories, err := categorySet(newcomer.Categories)
	if err != nil {
		return nil, &rule.LoadError{File: source, Rule: "newcomer", Err: err}
	}

	if groups == nil {
		groups, _ = rule.NewGroupTable()
	}
	if sets == nil {
		sets = make(map[rule.Category]*rule.RuleSet)
	}

	return &Snapshot{
		Source:             source,
		RuleSets:           sets,
		Groups:             groups,
		WarningSets:        warningSets,
		Antispam:           spam,
		Mute:               mute,
		MuteCategories:     muteCategories,
		Newcomer:           newcomer,
		NewcomerCategories: newcomerCategories,
	}, nil
}

// EmptySnapshot lets every message through.
func EmptySnapshot() *Snapshot {
	s, _ := NewSnapshot("", nil, nil, warning.Sets{}, nil, MuteConfig{}, NewcomerConfig{})
	return s
}

// RuleCount returns the number of rules evaluated for category.
func (s *Snapshot) RuleCount(category rule.Category) int {
	return s.RuleSets[category].Len()
}

// categorySet parses category names. An empty list applies to every category.
func categorySet(names []string) (map[rule.Category]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make(map[rule.Category]bool, len(names))
	for _, n := range names {
		c, err := rule.ParseCategory(n)
		if err != nil {
			return nil, err
		}
		out[c] = true
	}
	return out, nil
}

func applies(categories map[rule.Category]bool, c rule.Category) bool {
	return categories == nil || categories[c]
}
