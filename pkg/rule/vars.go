package rule

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const nowPlusPrefix = "now_plus:"

// Expand substitutes {variables} in s. Unknown variables are left untouched.
//
// Built-in variables: {player}, {player_id}, {message}, {original_message},
// {category}, {now} and {now_plus:<duration>} (unix seconds). Rule directives
// additionally see {matched_message}, {rule_name} and {rule_group}; the
// message of a rule held back by its cooldown sees {delay} (seconds left,
// also as {player_delay}). Request variables cannot shadow built-in names.
func (ec *EvaluationContext) Expand(s string) string {
	return ec.expand(s, nil)
}

func (ec *EvaluationContext) expand(s string, st *applyState) string {
	if !strings.Contains(s, "{") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for {
		open := strings.IndexByte(s, '{')
		if open < 0 {
			b.WriteString(s)
			break
		}
		closing := strings.IndexByte(s[open:], '}')
		if closing < 0 {
			b.WriteString(s)
			break
		}
		closing += open

		name := s[open+1 : closing]
		b.WriteString(s[:open])
		if value, ok := ec.lookup(name, st); ok {
			b.WriteString(value)
		} else {
			b.WriteString(s[open : closing+1])
		}
		s = s[closing+1:]
	}

	return b.String()
}

func (ec *EvaluationContext) lookup(name string, st *applyState) (string, bool) {
	switch name {
	case "player":
		if ec.Sender != nil {
			return ec.Sender.Name(), true
		}
	case "player_id":
		if ec.Sender != nil {
			return ec.Sender.ID(), true
		}
	case "message":
		return ec.Message, true
	case "original_message":
		return ec.Original, true
	case "category":
		return string(ec.Category), true
	case "now":
		return strconv.FormatInt(ec.now().Unix(), 10), true
	case "matched_message":
		if st != nil {
			return st.matched, true
		}
	case "rule_name":
		if st != nil && st.rule != nil {
			return st.rule.ID(), true
		}
		return "", true
	case "rule_group":
		if st != nil && st.rule != nil {
			return st.rule.GroupName(), true
		}
		return "", true
	case "delay", "player_delay":
		if st != nil && st.delayLeft > 0 {
			return strconv.FormatInt(int64(math.Ceil(st.delayLeft.Seconds())), 10), true
		}
	}

	if strings.HasPrefix(name, nowPlusPrefix) {
		d, err := time.ParseDuration(strings.TrimPrefix(name, nowPlusPrefix))
		if err == nil {
			return strconv.FormatInt(ec.now().Add(d).Unix(), 10), true
		}
	}

	value, ok := ec.Vars[name]
	return value, ok
}

func (ec *EvaluationContext) now() time.Time {
	if ec.Now.IsZero() {
		return time.Now()
	}
	return ec.Now
}
