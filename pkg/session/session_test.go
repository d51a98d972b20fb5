package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AccelByte/extend-chat-moderation/pkg/rule"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestLocks_SamePlayerSameStripe(t *testing.T) {
	locks := NewLocks(16)
	for i := 0; i < 100; i++ {
		player := fmt.Sprintf("player-%d", i)
		assert.Equal(t, locks.index(player), locks.index(player))
	}
}

func TestLocks_Serializes(t *testing.T) {
	locks := NewLocks(4)
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("p-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestArena_StateIsReused(t *testing.T) {
	arena := NewArena(2, time.Minute)

	first := arena.State("a")
	first.RecordDelivered("chat", "hi", t0, 3, time.Minute)
	assert.Same(t, first, arena.State("a"))

	arena.State("b")
	arena.State("c") // evicts a
	_, ok := arena.Peek("a")
	assert.False(t, ok)
	assert.Equal(t, 2, arena.Len())
}

func TestHistory_Ring(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		h.Push(Entry{Text: fmt.Sprint(i), At: t0.Add(time.Duration(i) * time.Second)})
	}

	entries := h.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "3", entries[0].Text)
	assert.Equal(t, "5", entries[2].Text)
	assert.Equal(t, 3, h.Len())
}

func TestWindow_Count(t *testing.T) {
	w := &Window{}
	for i := 0; i < 5; i++ {
		w.Add(t0.Add(time.Duration(i)*time.Second), 10*time.Second)
	}

	assert.Equal(t, 5, w.Count(t0.Add(4*time.Second), 10*time.Second))
	assert.Equal(t, 2, w.Count(t0.Add(5*time.Second), 3*time.Second))
}

func TestWindow_AddPrunesExpired(t *testing.T) {
	st := NewState()
	for i := 0; i < 1000; i++ {
		st.RecordDelivered("chat", "hi", t0.Add(time.Duration(i)*time.Second), 0, 10*time.Second)
	}
	assert.Equal(t, 10, st.Window("chat").Len())

	st.RecordDelivered("sign", "hi", t0, 0, 0)
	assert.Equal(t, 0, st.Window("sign").Len(), "no rate window without a period")
}

func TestCooldowns(t *testing.T) {
	st := NewState()
	global := NewGlobalCooldowns()

	cd := st.Cooldowns(global, t0)
	cd.EngageCooldown(rule.CooldownKey{RuleID: "r"}, t0.Add(time.Minute))
	cd.EngageCooldown(rule.CooldownKey{RuleID: "g", Global: true}, t0.Add(time.Hour))

	assert.Equal(t, t0.Add(time.Minute), cd.CooldownUntil(rule.CooldownKey{RuleID: "r"}))
	assert.True(t, cd.CooldownUntil(rule.CooldownKey{RuleID: "r", Global: true}).IsZero())

	other := NewState().Cooldowns(global, t0)
	assert.Equal(t, t0.Add(time.Hour), other.CooldownUntil(rule.CooldownKey{RuleID: "g", Global: true}))

	later := st.Cooldowns(global, t0.Add(2*time.Minute))
	assert.True(t, later.CooldownUntil(rule.CooldownKey{RuleID: "r"}).IsZero(), "expired entries are dropped")
}
