// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package session holds the in-memory, per-player state used while
// evaluating messages: lock stripes, antispam history and rule cooldowns.
package session

import (
	"hash/fnv"
	"sync"
)

// DefaultStripes is the number of lock stripes when none is configured.
const DefaultStripes = 256

// Locks serializes work per player with a fixed set of mutex stripes.
// A player always maps to the same stripe, so lock identity survives
// eviction of the player's state.
type Locks struct {
	stripes []sync.Mutex
}

// NewLocks creates n stripes (DefaultStripes when n <= 0).
func NewLocks(n int) *Locks {
	if n <= 0 {
		n = DefaultStripes
	}
	return &Locks{stripes: make([]sync.Mutex, n)}
}

// Lock acquires the player's stripe and returns the matching unlock.
func (l *Locks) Lock(player string) (unlock func()) {
	m := &l.stripes[l.index(player)]
	m.Lock()
	return m.Unlock
}

func (l *Locks) index(player string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(player))
	return int(h.Sum32() % uint32(len(l.stripes)))
}
