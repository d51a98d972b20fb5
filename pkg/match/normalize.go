package match

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normalized is a normalized copy of a text that remembers, for every rune,
// which rune of the original text produced it.
type normalized struct {
	runes   []rune
	index   []int // normalized rune -> original rune
	offsets []int // original rune -> byte offset, with a trailing len(text)
}

func normalize(text string, stripColors, stripAccents bool) normalized {
	original := make([]rune, 0, len(text))
	n := normalized{
		runes:   make([]rune, 0, len(text)),
		index:   make([]int, 0, len(text)),
		offsets: make([]int, 0, len(text)+1),
	}

	// ranging over the string keeps offsets right for invalid UTF-8 too
	for offset, r := range text {
		original = append(original, r)
		n.offsets = append(n.offsets, offset)
	}
	n.offsets = append(n.offsets, len(text))

	var accents transform.Transformer
	if stripAccents {
		accents = newAccentStripper()
	}

	for i := 0; i < len(original); i++ {
		r := original[i]

		if stripColors {
			if skip := colorCodeLength(original[i:]); skip > 0 {
				i += skip - 1
				continue
			}
		}

		if accents != nil && r >= utf8.RuneSelf {
			stripped, _, err := transform.String(accents, string(r))
			if err == nil {
				for _, sr := range stripped {
					n.runes = append(n.runes, sr)
					n.index = append(n.index, i)
				}
				continue
			}
		}

		n.runes = append(n.runes, r)
		n.index = append(n.index, i)
	}

	return n
}

// originalSpan converts a normalized rune range into a byte range of the original text.
func (n normalized) originalSpan(start, end int) (int, int) {
	if start >= len(n.index) {
		last := n.offsets[len(n.offsets)-1]
		return last, last
	}

	startRune := n.index[start]
	endRune := startRune
	if end > start {
		endRune = n.index[end-1] + 1
	}

	return n.offsets[startRune], n.offsets[endRune]
}

func newAccentStripper() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// colorCodeLength returns how many runes at the start of s form a legacy
// color code (&a, §l) or a hex color (&#a1b2c3), or 0.
func colorCodeLength(s []rune) int {
	if len(s) < 2 || (s[0] != '&' && s[0] != '§') {
		return 0
	}

	if s[1] == '#' && len(s) >= 8 {
		for _, r := range s[2:8] {
			if !isHex(r) {
				return 0
			}
		}
		return 8
	}

	if isColorChar(s[1]) {
		return 2
	}
	return 0
}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isColorChar(r rune) bool {
	return isHex(r) || strings.ContainsRune("klmnorKLMNOR", r)
}

// StripColors removes legacy and hex color codes from s.
func StripColors(s string) string {
	if !strings.ContainsAny(s, "&§") {
		return s
	}
	return string(normalize(s, true, false).runes)
}

// StripAccents removes combining marks from s ("café" -> "cafe").
func StripAccents(s string) string {
	out, _, err := transform.String(newAccentStripper(), s)
	if err != nil {
		return s
	}
	return out
}
