package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-chat-moderation/pkg/antispam"
	"github.com/AccelByte/extend-chat-moderation/pkg/checker"
	"github.com/AccelByte/extend-chat-moderation/pkg/rule"
	"github.com/AccelByte/extend-chat-moderation/pkg/warning"
)

// Rule file names inside the rules directory. Category files are named
// after the category, e.g. chat.rs or private_message.rs.
const (
	GroupsFile  = "groups.rs"
	GlobalFile  = "global.rs"
	RuleFileExt = ".rs"
)

// Load reads the engine config at path and every rule file it refers to,
// and compiles them into a snapshot. Any problem is returned as a
// *rule.LoadError and no partial snapshot is produced.
func Load(path string) (*checker.Snapshot, error) {
	snap, _, err := load(path)
	return snap, err
}

func load(path string) (*checker.Snapshot, *Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, nil, &rule.LoadError{File: path, Err: err}
	}

	snap, err := Build(path, cfg)
	if err != nil {
		return nil, nil, err
	}
	return snap, cfg, nil
}

// Build compiles an already parsed config. source names the config file
// and anchors a relative rules_dir.
func Build(source string, cfg *Config) (*checker.Snapshot, error) {
	sets, err := warning.Compile(source, cfg.WarningSets)
	if err != nil {
		return nil, err
	}

	dir := cfg.RulesDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(filepath.Dir(source), dir)
	}

	groups, global, files, err := parseRulesDir(dir)
	if err != nil {
		return nil, err
	}

	ruleSets, err := rule.Assemble(groups, global, files)
	if err != nil {
		return nil, err
	}
	if err := validatePointSets(ruleSets, groups, sets); err != nil {
		return nil, err
	}

	spam, err := antispam.Compile(source, cfg.Antispam, sets)
	if err != nil {
		return nil, err
	}

	snap, err := checker.NewSnapshot(source, ruleSets, groups, sets, spam, cfg.Mute, cfg.Newcomer)
	if err != nil {
		return nil, err
	}

	logrus.Debugf("compiled %s: %d groups, %d warning sets", source, groups.Count(), len(sets))
	return snap, nil
}

// parseRulesDir parses the group, global and category files in dir. Every
// file is optional.
func parseRulesDir(dir string) (*rule.GroupTable, *rule.File, map[rule.Category]*rule.File, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, nil, nil, &rule.LoadError{File: dir, Err: fmt.Errorf("rules directory: %w", err)}
	}
	if !info.IsDir() {
		return nil, nil, nil, &rule.LoadError{File: dir, Err: fmt.Errorf("rules directory is not a directory")}
	}

	groups, _ := rule.NewGroupTable()
	err = withFile(filepath.Join(dir, GroupsFile), func(name string, f *os.File) error {
		var err error
		groups, err = rule.ParseGroupFile(name, f)
		return err
	})
	if err != nil {
		return nil, nil, nil, err
	}

	var global *rule.File
	err = withFile(filepath.Join(dir, GlobalFile), func(name string, f *os.File) error {
		var err error
		global, err = rule.ParseRuleFile(name, rule.CategoryGlobal, f)
		return err
	})
	if err != nil {
		return nil, nil, nil, err
	}

	files := make(map[rule.Category]*rule.File)
	for _, c := range rule.Categories() {
		err := withFile(filepath.Join(dir, string(c)+RuleFileExt), func(name string, f *os.File) error {
			parsed, err := rule.ParseRuleFile(name, c, f)
			if err != nil {
				return err
			}
			files[c] = parsed
			return nil
		})
		if err != nil {
			return nil, nil, nil, err
		}
	}

	return groups, global, files, nil
}

// withFile opens name and passes it to parse. A missing file is skipped.
func withFile(name string, parse func(string, *os.File) error) error {
	f, err := os.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		logrus.Debugf("rule file %s not present, skipping", name)
		return nil
	}
	if err != nil {
		return &rule.LoadError{File: name, Err: err}
	}
	defer f.Close()

	return parse(name, f)
}
