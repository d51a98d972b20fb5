package antispam

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/gobwas/glob"

	"github.com/AccelByte/extend-chat-moderation/pkg/match"
	"github.com/AccelByte/extend-chat-moderation/pkg/rule"
	"github.com/AccelByte/extend-chat-moderation/pkg/session"
)

type delayCheck struct {
	cfg       DelayConfig
	whitelist []*match.Expression
}

func newDelayCheck(cfg DelayConfig) (*delayCheck, error) {
	whitelist, err := compileRegexList(cfg.Whitelist)
	if err != nil {
		return nil, err
	}
	return &delayCheck{cfg: cfg, whitelist: whitelist}, nil
}

func (d *delayCheck) name() string { return CheckDelay }

func (d *delayCheck) run(ec *rule.EvaluationContext, st *session.State) *failure {
	if hasPermission(ec, d.cfg.BypassPermission) {
		return nil
	}
	last, ok := st.LastDelivered(string(ec.Category))
	if !ok || anyRegex(d.whitelist, ec.Message) {
		return nil
	}

	required := d.minDelay(ec)
	elapsed := ec.Now.Sub(last)
	if elapsed >= required {
		return nil
	}
	remaining := required - elapsed

	return &failure{
		cancel: true,
		silent: d.cfg.Silent,
		vars: map[string]float64{
			"delay":     elapsed.Seconds(),
			"remaining": remaining.Seconds(),
			"min_delay": required.Seconds(),
		},
		text: map[string]string{
			"remaining": seconds(remaining),
			"min_delay": seconds(required),
		},
	}
}

// minDelay picks the first group whose permission the sender holds.
func (d *delayCheck) minDelay(ec *rule.EvaluationContext) time.Duration {
	for _, g := range d.cfg.Groups {
		if hasPermission(ec, g.Permission) {
			return g.Delay
		}
	}
	return d.cfg.Default
}

type rateCheck struct {
	cfg RateLimitConfig
}

func (r *rateCheck) name() string { return CheckRateLimit }

func (r *rateCheck) run(ec *rule.EvaluationContext, st *session.State) *failure {
	if hasPermission(ec, r.cfg.BypassPermission) {
		return nil
	}
	count := st.Window(string(ec.Category)).Count(ec.Now, r.cfg.Period)
	if count < r.cfg.Max {
		return nil
	}
	return &failure{
		cancel: true,
		silent: r.cfg.Silent,
		vars: map[string]float64{
			"messages_in_period": float64(count),
			"limit":              float64(r.cfg.Max),
		},
		text: map[string]string{
			"limit":  strconv.Itoa(r.cfg.Max),
			"period": seconds(r.cfg.Period),
		},
	}
}

type similarityCheck struct {
	cfg            SimilarityConfig
	whitelist      []*match.Expression
	ignoreCommands []glob.Glob
}

func newSimilarityCheck(cfg SimilarityConfig) (*similarityCheck, error) {
	whitelist, err := compileRegexList(cfg.Whitelist)
	if err != nil {
		return nil, err
	}
	ignore, err := compileGlobs(cfg.IgnoreCommands)
	if err != nil {
		return nil, err
	}
	return &similarityCheck{cfg: cfg, whitelist: whitelist, ignoreCommands: ignore}, nil
}

func (s *similarityCheck) name() string { return CheckSimilarity }

func (s *similarityCheck) run(ec *rule.EvaluationContext, st *session.State) *failure {
	if hasPermission(ec, s.cfg.BypassPermission) || anyRegex(s.whitelist, ec.Message) {
		return nil
	}
	if label := rule.CommandLabel(ec.Message); label != "" {
		if anyGlob(s.ignoreCommands, label) {
			return nil
		}
		if s.cfg.MinArgs > 0 && len(strings.Fields(ec.Message))-1 < s.cfg.MinArgs {
			return nil
		}
	}

	occurrences, best := 1, 0.0
	for _, e := range st.History(string(ec.Category), s.cfg.History).Entries() {
		if ec.Now.Sub(e.At) > s.cfg.Forgive {
			continue
		}
		if sim := Similarity(e.Text, ec.Message); sim >= s.cfg.Threshold {
			occurrences++
			best = math.Max(best, sim)
		}
	}
	if occurrences < 2 || occurrences < s.cfg.StartAt {
		return nil
	}

	percent := math.Round(best * 100)
	return &failure{
		cancel: true,
		silent: s.cfg.Silent,
		vars: map[string]float64{
			"similarity":  percent,
			"occurrences": float64(occurrences),
			"threshold":   s.cfg.Threshold * 100,
		},
		text: map[string]string{
			"similarity": strconv.Itoa(int(percent)),
		},
	}
}

// Similarity returns how alike two messages are, from 0 (nothing shared) to
// 1 (equal after lowercasing and collapsing whitespace).
func Similarity(a, b string) float64 {
	a, b = normalizeForSimilarity(a), normalizeForSimilarity(b)
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func normalizeForSimilarity(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

var domainPattern = match.MustCompile(`^(https?://)?[\w-]+(\.[\w-]+)+(/\S*)?$`, match.Options{Regex: true, CaseInsensitive: true})

type capsCheck struct {
	cfg            CapsConfig
	whitelist      map[string]struct{}
	commands       []glob.Glob
	ignoreCommands []glob.Glob
}

func newCapsCheck(cfg CapsConfig) (*capsCheck, error) {
	commands, err := compileGlobs(cfg.Commands)
	if err != nil {
		return nil, err
	}
	ignore, err := compileGlobs(cfg.IgnoreCommands)
	if err != nil {
		return nil, err
	}
	whitelist := make(map[string]struct{}, len(cfg.Whitelist))
	for _, w := range cfg.Whitelist {
		whitelist[strings.ToLower(w)] = struct{}{}
	}
	if cfg.Action == "" {
		cfg.Action = CapsLowercase
	}
	return &capsCheck{cfg: cfg, whitelist: whitelist, commands: commands, ignoreCommands: ignore}, nil
}

func (c *capsCheck) name() string { return CheckCaps }

// exempt reports whether a word is left alone by the caps check.
func (c *capsCheck) exempt(word string) bool {
	trimmed := strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
	if _, ok := c.whitelist[trimmed]; ok {
		return true
	}
	return c.cfg.IgnoreDomains && domainPattern.Matches(word)
}

func (c *capsCheck) run(ec *rule.EvaluationContext, _ *session.State) *failure {
	if hasPermission(ec, c.cfg.BypassPermission) {
		return nil
	}
	if utf8.RuneCountInString(ec.Message) < c.cfg.MinLength {
		return nil
	}

	words := strings.Split(ec.Message, " ")
	if label := rule.CommandLabel(ec.Message); label != "" {
		if len(c.commands) > 0 && !anyGlob(c.commands, label) {
			return nil
		}
		if anyGlob(c.ignoreCommands, label) {
			return nil
		}
		// the label itself is never inspected
		words[0] = ""
	}

	var letters, upper, run, longest int
	for _, w := range words {
		run = 0
		if w == "" || c.exempt(w) {
			continue
		}
		for _, r := range w {
			switch {
			case unicode.IsUpper(r):
				letters++
				upper++
				run++
				longest = max(longest, run)
			case unicode.IsLetter(r):
				letters++
				run = 0
			}
		}
	}
	if letters == 0 {
		return nil
	}

	percent := upper * 100 / letters
	overPercent := c.cfg.MinPercentage > 0 && percent >= c.cfg.MinPercentage
	overRow := c.cfg.MinInRow > 0 && longest >= c.cfg.MinInRow
	if !overPercent && !overRow {
		return nil
	}

	f := &failure{
		vars: map[string]float64{
			"caps_percentage": float64(percent),
			"caps_in_row":     float64(longest),
		},
		text: map[string]string{
			"caps_percentage": strconv.Itoa(percent),
		},
	}
	if c.cfg.Action == CapsDeny {
		f.cancel = true
		return f
	}

	lowered := c.lowercase(ec.Message)
	if lowered != ec.Message {
		ec.Message = lowered
		ec.Verdict.Changed = true
	}
	return f
}

// lowercase lowers every non-exempt word with more than one capital,
// keeping the first letter of a sentence capitalized.
func (c *capsCheck) lowercase(message string) string {
	words := strings.Split(message, " ")
	sentenceStart := true
	skipLabel := rule.CommandLabel(message) != ""

	for i, w := range words {
		if w == "" {
			continue
		}
		if (i == 0 && skipLabel) || c.exempt(w) || countUpper(w) < 2 {
			sentenceStart = endsSentence(w)
			continue
		}

		lowered := strings.ToLower(w)
		if sentenceStart {
			r, size := utf8.DecodeRuneInString(lowered)
			lowered = string(unicode.ToUpper(r)) + lowered[size:]
		}
		words[i] = lowered
		sentenceStart = endsSentence(w)
	}
	return strings.Join(words, " ")
}

func endsSentence(word string) bool {
	return strings.HasSuffix(word, ".") || strings.HasSuffix(word, "!") || strings.HasSuffix(word, "?")
}

func countUpper(word string) int {
	n := 0
	for _, r := range word {
		if unicode.IsUpper(r) {
			n++
		}
	}
	return n
}
