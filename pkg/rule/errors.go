package rule

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDirective indicates a rule file line no keyword understands.
	ErrUnknownDirective = errors.New("unknown directive")

	// ErrMissingArgument indicates a directive without its required argument.
	ErrMissingArgument = errors.New("missing argument")

	// ErrInvalidArgument indicates a directive argument that cannot be parsed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDirectiveNotAllowed indicates a directive used where it has no meaning,
	// e.g. a rule-only flag inside a group or points inside a warning trigger.
	ErrDirectiveNotAllowed = errors.New("directive not allowed here")

	// ErrDuplicateDirective indicates a single-use directive declared twice.
	ErrDuplicateDirective = errors.New("directive already set")

	// ErrMissingMatch indicates directives before the first match or group line.
	ErrMissingMatch = errors.New("directive before any match or group line")

	// ErrUnknownGroup indicates a rule referencing a group that is not defined.
	ErrUnknownGroup = errors.New("unknown group")

	// ErrDuplicateGroup indicates two groups with the same (case-insensitive) name.
	ErrDuplicateGroup = errors.New("duplicate group")

	// ErrUnknownCategory indicates a category name that does not exist.
	ErrUnknownCategory = errors.New("unknown category")
)

// LoadError describes a configuration problem found while loading rules.
// A reload that produces a LoadError is discarded as a whole.
type LoadError struct {
	File string
	Line int
	Rule string
	Err  error
}

func (e *LoadError) Error() string {
	location := e.File
	if location == "" {
		location = "<config>"
	}
	if e.Line > 0 {
		location = fmt.Sprintf("%s:%d", location, e.Line)
	}
	if e.Rule != "" {
		return fmt.Sprintf("%s: rule %s: %v", location, e.Rule, e.Err)
	}
	return fmt.Sprintf("%s: %v", location, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func loadErr(file string, line int, rule string, err error) *LoadError {
	return &LoadError{File: file, Line: line, Rule: rule, Err: err}
}
