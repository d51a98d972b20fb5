// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package match compiles and evaluates the match expressions rules are built on.
//
// Expressions use the .NET/Java flavoured dialect of dlclark/regexp2 so existing
// rule files (lookbehind, possessive groups) load unchanged. Normalization such as
// color-code or accent stripping is applied to a copy of the input, and matches are
// reported as byte spans of the original text.
package match

import (
	"errors"
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single regex evaluation.
const DefaultTimeout = 100 * time.Millisecond

// ErrEmptyPattern is returned when compiling an empty pattern.
var ErrEmptyPattern = errors.New("empty match pattern")

// Options controls how an expression is compiled and how input is normalized.
type Options struct {
	Regex           bool
	CaseInsensitive bool
	StripAccents    bool
	StripColors     bool
	Timeout         time.Duration
}

// DefaultOptions returns the options a rule gets when it declares nothing else.
func DefaultOptions() Options {
	return Options{
		Regex:           true,
		CaseInsensitive: true,
		Timeout:         DefaultTimeout,
	}
}

// Span is a match location in the original (non-normalized) text.
type Span struct {
	Start int // byte offset, inclusive
	End   int // byte offset, exclusive
	Text  string
}

// Expression is an immutable compiled match expression.
type Expression struct {
	pattern string
	opts    Options
	re      *regexp2.Regexp
}

// Compile validates and compiles a pattern. It never panics on bad input.
func Compile(pattern string, opts Options) (*Expression, error) {
	if pattern == "" {
		return nil, ErrEmptyPattern
	}

	source := pattern
	if !opts.Regex {
		source = regexp2.Escape(pattern)
	}

	flags := regexp2.None
	if opts.CaseInsensitive {
		flags |= regexp2.IgnoreCase
	}

	re, err := regexp2.Compile(source, flags)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	re.MatchTimeout = opts.Timeout

	return &Expression{
		pattern: pattern,
		opts:    opts,
		re:      re,
	}, nil
}

// MustCompile is like Compile but panics on error. Intended for tests and constants.
func MustCompile(pattern string, opts Options) *Expression {
	e, err := Compile(pattern, opts)
	if err != nil {
		panic(err)
	}
	return e
}

// Pattern returns the source pattern as written.
func (e *Expression) Pattern() string {
	return e.pattern
}

// Options returns the compile options.
func (e *Expression) Options() Options {
	return e.opts
}

func (e *Expression) String() string {
	return e.pattern
}

// Test reports the first match of the expression in text.
// A regex timeout is treated as no match.
func (e *Expression) Test(text string) (Span, bool) {
	n := normalize(text, e.opts.StripColors, e.opts.StripAccents)

	m, err := e.re.FindRunesMatch(n.runes)
	if err != nil {
		logrus.Warnf("match expression %q aborted: %v", e.pattern, err)
		return Span{}, false
	}
	if m == nil {
		return Span{}, false
	}

	start, end := n.originalSpan(m.Index, m.Index+m.Length)
	return Span{
		Start: start,
		End:   end,
		Text:  text[start:end],
	}, true
}

// Matches is a convenience wrapper around Test.
func (e *Expression) Matches(text string) bool {
	_, ok := e.Test(text)
	return ok
}
