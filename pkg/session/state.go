package session

import (
	"sync"
	"time"

	"github.com/AccelByte/extend-chat-moderation/pkg/rule"
)

// State is a player's in-memory evaluation state.
// It is not safe for concurrent use; callers hold the player's lock.
type State struct {
	lastDelivered map[string]time.Time
	history       map[string]*History
	windows       map[string]*Window
	cooldowns     map[string]time.Time
}

// NewState creates empty state.
func NewState() *State {
	return &State{
		lastDelivered: make(map[string]time.Time),
		history:       make(map[string]*History),
		windows:       make(map[string]*Window),
		cooldowns:     make(map[string]time.Time),
	}
}

// LastDelivered returns when the player last had a message delivered in category.
func (s *State) LastDelivered(category string) (time.Time, bool) {
	t, ok := s.lastDelivered[category]
	return t, ok
}

// History returns the delivered-message ring for category, sized on first use.
func (s *State) History(category string, size int) *History {
	h, ok := s.history[category]
	if !ok || h.Cap() != size {
		h = NewHistory(size)
		s.history[category] = h
	}
	return h
}

// Window returns the delivered-timestamp window for category.
func (s *State) Window(category string) *Window {
	w, ok := s.windows[category]
	if !ok {
		w = &Window{}
		s.windows[category] = w
	}
	return w
}

// RecordDelivered stores a delivered message for the antispam checks. The
// history keeps historySize entries and the rate window keeps timestamps
// newer than window; zero skips either.
func (s *State) RecordDelivered(category, text string, at time.Time, historySize int, window time.Duration) {
	s.lastDelivered[category] = at
	if historySize > 0 {
		s.History(category, historySize).Push(Entry{Text: text, At: at})
	}
	if window > 0 {
		s.Window(category).Add(at, window)
	}
}

// CooldownUntil returns the end of the player's cooldown for a rule.
func (s *State) CooldownUntil(ruleID string, now time.Time) time.Time {
	until, ok := s.cooldowns[ruleID]
	if !ok {
		return time.Time{}
	}
	if !now.Before(until) {
		delete(s.cooldowns, ruleID)
		return time.Time{}
	}
	return until
}

// EngageCooldown starts the player's cooldown for a rule.
func (s *State) EngageCooldown(ruleID string, until time.Time) {
	if until.After(s.cooldowns[ruleID]) {
		s.cooldowns[ruleID] = until
	}
}

// GlobalCooldowns holds rule cooldowns shared by every player.
type GlobalCooldowns struct {
	entries map[string]time.Time
	mu      sync.Mutex
}

// NewGlobalCooldowns creates an empty global cooldown table.
func NewGlobalCooldowns() *GlobalCooldowns {
	return &GlobalCooldowns{entries: make(map[string]time.Time)}
}

func (g *GlobalCooldowns) until(ruleID string, now time.Time) time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()

	until, ok := g.entries[ruleID]
	if ok && !now.Before(until) {
		delete(g.entries, ruleID)
		return time.Time{}
	}
	return until
}

func (g *GlobalCooldowns) engage(ruleID string, until time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if until.After(g.entries[ruleID]) {
		g.entries[ruleID] = until
	}
}

// Cooldowns adapts player and global cooldowns to the rule interpreter.
func (s *State) Cooldowns(global *GlobalCooldowns, now time.Time) rule.Cooldowns {
	return cooldowns{state: s, global: global, now: now}
}

type cooldowns struct {
	state  *State
	global *GlobalCooldowns
	now    time.Time
}

func (c cooldowns) CooldownUntil(key rule.CooldownKey) time.Time {
	if key.Global {
		if c.global == nil {
			return time.Time{}
		}
		return c.global.until(key.RuleID, c.now)
	}
	return c.state.CooldownUntil(key.RuleID, c.now)
}

func (c cooldowns) EngageCooldown(key rule.CooldownKey, until time.Time) {
	if key.Global {
		if c.global != nil {
			c.global.engage(key.RuleID, until)
		}
		return
	}
	c.state.EngageCooldown(key.RuleID, until)
}
