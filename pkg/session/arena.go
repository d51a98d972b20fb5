package session

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultSize is the default number of players kept in memory.
	DefaultSize = 10000
	// DefaultTTL is how long an idle player's state is kept.
	DefaultTTL = 30 * time.Minute
)

// Arena keeps per-player State in a bounded, expiring cache.
type Arena struct {
	cache *expirable.LRU[string, *State]
}

// NewArena creates an arena holding at most size players for ttl after last use.
func NewArena(size int, ttl time.Duration) *Arena {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Arena{
		cache: expirable.NewLRU[string, *State](size, nil, ttl),
	}
}

// State returns the player's state, creating it when missing, and refreshes
// its expiry. Callers must hold the player's lock while using the state.
func (a *Arena) State(player string) *State {
	st, ok := a.cache.Get(player)
	if !ok {
		st = NewState()
	}
	a.cache.Add(player, st)
	return st
}

// Peek returns the player's state without creating or refreshing it.
func (a *Arena) Peek(player string) (*State, bool) {
	return a.cache.Peek(player)
}

// Forget drops a player's state.
func (a *Arena) Forget(player string) {
	a.cache.Remove(player)
}

// Len returns the number of players in memory.
func (a *Arena) Len() int {
	return a.cache.Len()
}
