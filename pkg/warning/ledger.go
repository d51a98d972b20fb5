// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package warning keeps per-player warning point scores, fires formula
// triggers as scores grow, and decays scores over time.
package warning

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-chat-moderation/pkg/rule"
)

// KeyPrefix prefixes the data-bag key holding a set's score.
const KeyPrefix = "warning_points."

// DataStore is the persistence the ledger needs.
type DataStore interface {
	Get(ctx context.Context, player, key string) (string, bool, error)
	Set(ctx context.Context, player, key, value string) error
}

// PlayerLister lists players with persisted data.
type PlayerLister interface {
	Players(ctx context.Context) ([]string, error)
}

// Locker serializes work per player.
type Locker interface {
	Lock(player string) (unlock func())
}

// Ledger stores warning points in the player data store.
type Ledger struct {
	data  DataStore
	locks Locker

	// tracked holds players with points that may need decay. A nil set map
	// means every set is checked (players seeded from the store).
	tracked map[string]map[string]struct{}
	mu      sync.Mutex
}

// NewLedger creates a ledger.
func NewLedger(data DataStore, locks Locker) *Ledger {
	return &Ledger{
		data:    data,
		locks:   locks,
		tracked: make(map[string]map[string]struct{}),
	}
}

// Key returns the data-bag key of a set.
func Key(set string) string {
	return KeyPrefix + set
}

// Seed registers every player the lister knows about for decay.
func (l *Ledger) Seed(ctx context.Context, lister PlayerLister) error {
	players, err := lister.Players(ctx)
	if err != nil {
		return fmt.Errorf("failed to list players: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range players {
		if _, exists := l.tracked[p]; !exists {
			l.tracked[p] = nil
		}
	}

	logrus.Infof("warning ledger seeded with %d players", len(players))
	return nil
}

// Add awards points while holding the player's lock.
func (l *Ledger) Add(ctx context.Context, sets Sets, player, set string, amount int) (rule.PointsOutcome, error) {
	unlock := l.locks.Lock(player)
	defer unlock()

	return l.Apply(ctx, sets, player, set, amount)
}

// Apply awards points assuming the caller holds the player's lock.
// Amounts below one are ignored. The first trigger whose formula holds fires.
func (l *Ledger) Apply(ctx context.Context, sets Sets, player, set string, amount int) (rule.PointsOutcome, error) {
	ws, ok := sets[set]
	if !ok {
		return rule.PointsOutcome{}, fmt.Errorf("%w: %s", ErrUnknownWarningSet, set)
	}

	previous, err := l.read(ctx, player, set)
	if err != nil {
		return rule.PointsOutcome{}, err
	}

	outcome := rule.PointsOutcome{Set: set, Previous: previous, Score: previous}
	if amount < 1 {
		return outcome, nil
	}

	outcome.Score = previous + amount
	if err := l.write(ctx, player, set, outcome.Score); err != nil {
		return rule.PointsOutcome{}, err
	}
	l.track(player, set)

	env := Env{Score: outcome.Score, Previous: previous, Amount: amount, Set: set}
	for _, trigger := range ws.Triggers {
		fired, err := trigger.Condition.Eval(env)
		if err != nil {
			logrus.Warnf("warning set %s: %v", set, err)
			continue
		}
		if fired {
			logrus.Infof("warning trigger %q fired for player %s (%s: %d -> %d)",
				trigger.Condition, player, set, previous, outcome.Score)
			outcome.Trigger = trigger.Condition.String()
			outcome.Actions = trigger.Actions
			break
		}
	}

	return outcome, nil
}

// Points returns a player's score in a set.
func (l *Ledger) Points(ctx context.Context, player, set string) (int, error) {
	return l.read(ctx, player, set)
}

// Awarder binds the ledger to one player for use inside an evaluation
// that already holds the player's lock.
func (l *Ledger) Awarder(sets Sets, player string) rule.PointsAwarder {
	return awarder{ledger: l, sets: sets, player: player}
}

type awarder struct {
	ledger *Ledger
	sets   Sets
	player string
}

func (a awarder) AwardPoints(ctx context.Context, set string, amount int) (rule.PointsOutcome, error) {
	return a.ledger.Apply(ctx, a.sets, a.player, set, amount)
}

// Decay subtracts each set's decay from every tracked score, never going
// below zero. Scores reaching zero are removed. It returns the number of
// scores changed.
func (l *Ledger) Decay(ctx context.Context, sets Sets) (int, error) {
	changed := 0
	var errs []error

	for player, playerSets := range l.snapshot() {
		names := sets.Names()
		if playerSets != nil {
			names = names[:0]
			for s := range playerSets {
				if sets.Has(s) {
					names = append(names, s)
				}
			}
		}

		n, err := l.decayPlayer(ctx, sets, player, names)
		changed += n
		if err != nil {
			errs = append(errs, err)
		}
	}

	if changed > 0 {
		logrus.Debugf("warning decay changed %d scores", changed)
	}
	return changed, errors.Join(errs...)
}

func (l *Ledger) decayPlayer(ctx context.Context, sets Sets, player string, names []string) (changed int, err error) {
	unlock := l.locks.Lock(player)
	defer unlock()

	var checked []string
	alive := make(map[string]struct{}, len(names))
	defer func() { l.settle(player, checked, alive, err == nil) }()

	for _, name := range names {
		current, err := l.read(ctx, player, name)
		if err != nil {
			return changed, err
		}

		next := max(0, current-sets[name].Decay)
		if next != current {
			if err := l.write(ctx, player, name, next); err != nil {
				return changed, err
			}
			changed++
		}
		if next > 0 {
			alive[name] = struct{}{}
		}
		checked = append(checked, name)
	}

	return changed, nil
}

// settle drops checked sets that reached zero from the decay index.
// Seeded players keep checking every set until one full pass succeeds.
// The caller holds the player's lock.
func (l *Ledger) settle(player string, checked []string, alive map[string]struct{}, complete bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sets, exists := l.tracked[player]
	if !exists {
		return
	}
	if sets == nil {
		if !complete {
			return
		}
		sets = make(map[string]struct{}, len(alive))
		for name := range alive {
			sets[name] = struct{}{}
		}
		l.tracked[player] = sets
	}
	for _, name := range checked {
		if _, ok := alive[name]; !ok {
			delete(sets, name)
		}
	}
	if len(sets) == 0 {
		delete(l.tracked, player)
	}
}

// Tracked returns the number of players awaiting decay.
func (l *Ledger) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.tracked)
}

func (l *Ledger) snapshot() map[string]map[string]struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]map[string]struct{}, len(l.tracked))
	for p, s := range l.tracked {
		if s == nil {
			out[p] = nil
			continue
		}
		cp := make(map[string]struct{}, len(s))
		for k := range s {
			cp[k] = struct{}{}
		}
		out[p] = cp
	}
	return out
}

func (l *Ledger) track(player, set string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sets, exists := l.tracked[player]
	if exists && sets == nil {
		return
	}
	if sets == nil {
		sets = make(map[string]struct{})
		l.tracked[player] = sets
	}
	sets[set] = struct{}{}
}

func (l *Ledger) read(ctx context.Context, player, set string) (int, error) {
	raw, ok, err := l.data.Get(ctx, player, Key(set))
	if err != nil {
		return 0, fmt.Errorf("failed to read %s for %s: %w", Key(set), player, err)
	}
	if !ok || raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		logrus.Warnf("ignoring malformed %s=%q for %s", Key(set), raw, player)
		return 0, nil
	}
	return max(0, n), nil
}

func (l *Ledger) write(ctx context.Context, player, set string, score int) error {
	value := ""
	if score > 0 {
		value = strconv.Itoa(score)
	}
	if err := l.data.Set(ctx, player, Key(set), value); err != nil {
		return fmt.Errorf("failed to write %s for %s: %w", Key(set), player, err)
	}
	return nil
}
