package rule

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/AccelByte/extend-chat-moderation/pkg/match"
)

const (
	commentPrefix = "#"
	matchKeyword  = "match"
	groupKeyword  = "group"
	importGlobal  = "@import global"
)

// block accumulates the lines of one rule, group or action list.
type block struct {
	scope    scope
	category Category
	file     string
	line     int

	pattern  string
	opts     match.Options
	name     string
	groupRef string
	disabled bool

	op Operator
}

func (b *block) addDirective(d Directive) {
	b.op.Directives = append(b.op.Directives, d)
}

// ruleID mirrors Rule.ID for error messages before the rule exists.
func (b *block) ruleID() string {
	if b.scope == scopeGroup {
		return "group " + b.name
	}
	r := Rule{Name: b.name, Category: b.category, File: b.file, Line: b.line}
	return r.ID()
}

func (b *block) build() (*Rule, error) {
	expr, err := match.Compile(b.pattern, b.opts)
	if err != nil {
		return nil, loadErr(b.file, b.line, b.ruleID(), err)
	}
	return &Rule{
		Name:       b.name,
		Category:   b.category,
		Expression: expr,
		Operator:   b.op,
		GroupRef:   b.groupRef,
		Disabled:   b.disabled,
		File:       b.file,
		Line:       b.line,
	}, nil
}

// ParseRuleFile parses a rule file for category. Each rule starts with a
// "match <expression>" line followed by flags, conditions and directives.
func ParseRuleFile(name string, category Category, r io.Reader) (*File, error) {
	f := &File{Name: name, Category: category, ImportGlobalAt: -1}

	var current *block
	finish := func() error {
		if current == nil {
			return nil
		}
		rule, err := current.build()
		if err != nil {
			return err
		}
		f.Rules = append(f.Rules, rule)
		current = nil
		return nil
	}

	err := scanLines(r, func(lineNo int, line string) error {
		switch {
		case strings.EqualFold(line, importGlobal):
			if category == CategoryGlobal {
				return loadErr(name, lineNo, "", fmt.Errorf("%w: %s in global rules", ErrDirectiveNotAllowed, importGlobal))
			}
			if f.ImportGlobalAt >= 0 {
				return loadErr(name, lineNo, "", fmt.Errorf("%w: %s", ErrDuplicateDirective, importGlobal))
			}
			if err := finish(); err != nil {
				return err
			}
			f.ImportGlobalAt = len(f.Rules)
			return nil

		case hasKeyword(line, matchKeyword):
			if err := finish(); err != nil {
				return err
			}
			pattern := argsAfter(line, 1)
			current = &block{
				scope:    scopeRule,
				category: category,
				file:     name,
				line:     lineNo,
				pattern:  pattern,
				opts:     match.DefaultOptions(),
			}
			if pattern == "" {
				return loadErr(name, lineNo, current.ruleID(), fmt.Errorf("%w: match expression", ErrMissingArgument))
			}
			return nil
		}

		if current == nil {
			return loadErr(name, lineNo, "", ErrMissingMatch)
		}
		if err := dispatch(current, line); err != nil {
			return loadErr(name, lineNo, current.ruleID(), err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := finish(); err != nil {
		return nil, err
	}
	return f, nil
}

// ParseGroupFile parses group definitions. Each group starts with a
// "group <name>" line followed by conditions and directives.
func ParseGroupFile(name string, r io.Reader) (*GroupTable, error) {
	table, _ := NewGroupTable()

	var current *block
	finish := func() error {
		if current == nil {
			return nil
		}
		g := &Group{Name: current.name, Operator: current.op, File: current.file, Line: current.line}
		current = nil
		return table.Add(g)
	}

	err := scanLines(r, func(lineNo int, line string) error {
		if hasKeyword(line, groupKeyword) {
			if err := finish(); err != nil {
				return err
			}
			groupName := argsAfter(line, 1)
			if groupName == "" {
				return loadErr(name, lineNo, "", fmt.Errorf("%w: group name", ErrMissingArgument))
			}
			current = &block{scope: scopeGroup, file: name, line: lineNo, name: groupName}
			return nil
		}

		if current == nil {
			return loadErr(name, lineNo, "", ErrMissingMatch)
		}
		if err := dispatch(current, line); err != nil {
			return loadErr(name, lineNo, current.ruleID(), err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := finish(); err != nil {
		return nil, err
	}
	return table, nil
}

// ParseActions parses the directive lines of a warning trigger. Only effects
// are allowed: deny, abort, commands, messages, logging flags and saved keys.
func ParseActions(source string, lines []string) ([]Directive, error) {
	b := &block{scope: scopeAction, file: source}
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}
		if err := dispatch(b, line); err != nil {
			return nil, loadErr(source, i+1, "", err)
		}
	}
	return b.op.Directives, nil
}

func scanLines(r io.Reader, fn func(lineNo int, line string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func hasKeyword(line, keyword string) bool {
	fields := strings.Fields(line)
	return len(fields) > 0 && strings.EqualFold(fields[0], keyword)
}
