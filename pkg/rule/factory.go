package rule

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// scope says where a keyword may appear.
type scope uint8

const (
	scopeRule scope = 1 << iota
	scopeGroup
	scopeAction

	scopeOperator = scopeRule | scopeGroup
	scopeAny      = scopeRule | scopeGroup | scopeAction
)

func (s scope) String() string {
	switch s {
	case scopeRule:
		return "rule"
	case scopeGroup:
		return "group"
	case scopeAction:
		return "warning trigger"
	default:
		return "block"
	}
}

// keywordHandler applies one rule-file line to the block being built.
type keywordHandler func(b *block, args string) error

type keyword struct {
	name    string
	scopes  scope
	handler keywordHandler
}

// keywords stores registered keywords by their lower-case spelling.
var keywords = make(map[string]keyword)

// maxKeywordWords is the longest keyword spelling in words ("then deny" is two).
const maxKeywordWords = 2

// registerKeyword registers a handler under one or more spellings.
func registerKeyword(scopes scope, handler keywordHandler, spellings ...string) {
	for _, s := range spellings {
		keywords[s] = keyword{name: spellings[0], scopes: scopes, handler: handler}
		logrus.Tracef("registered rule keyword: %s", s)
	}
}

// lookupKeyword splits a line into its keyword and arguments, preferring the
// longest registered spelling.
func lookupKeyword(line string) (keyword, string, bool) {
	fields := strings.Fields(line)
	for n := min(maxKeywordWords, len(fields)); n > 0; n-- {
		spelling := strings.ToLower(strings.Join(fields[:n], " "))
		kw, ok := keywords[spelling]
		if !ok {
			continue
		}
		return kw, argsAfter(line, n), true
	}
	return keyword{}, "", false
}

// argsAfter returns line without its first n words, preserving inner spacing.
func argsAfter(line string, n int) string {
	rest := strings.TrimSpace(line)
	for i := 0; i < n; i++ {
		idx := strings.IndexAny(rest, " \t")
		if idx < 0 {
			return ""
		}
		rest = strings.TrimSpace(rest[idx:])
	}
	return rest
}

// dispatch applies a line to b, enforcing the keyword's scope.
func dispatch(b *block, line string) error {
	kw, args, ok := lookupKeyword(line)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDirective, firstWords(line, maxKeywordWords))
	}
	if kw.scopes&b.scope == 0 {
		return fmt.Errorf("%w: %q in %s", ErrDirectiveNotAllowed, kw.name, b.scope)
	}
	return kw.handler(b, args)
}

func firstWords(line string, n int) string {
	fields := strings.Fields(line)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}
