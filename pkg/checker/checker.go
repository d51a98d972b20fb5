// Package checker runs the message evaluation pipeline: antispam, mute and
// newcomer checks, then the category's rule set, all accumulating into one
// verdict. Configuration is held in an immutable Snapshot that Reload swaps
// atomically, so an evaluation always sees a single generation.
package checker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-chat-moderation/pkg/metrics"
	"github.com/AccelByte/extend-chat-moderation/pkg/rule"
	"github.com/AccelByte/extend-chat-moderation/pkg/session"
	"github.com/AccelByte/extend-chat-moderation/pkg/store"
	"github.com/AccelByte/extend-chat-moderation/pkg/warning"
)

// Check names reported in failed_checks besides the antispam ones.
const (
	CheckMute     = "mute"
	CheckNewcomer = "newcomer"
)

// Request is one message to evaluate.
type Request struct {
	Category rule.Category
	Sender   rule.Sender
	Text     string
	Vars     map[string]string
}

// Options tunes the per-player state kept in memory.
type Options struct {
	LockStripes int
	ArenaSize   int
	ArenaTTL    time.Duration
	Clock       func() time.Time
}

// Checker evaluates messages against the active snapshot.
type Checker struct {
	snapshot   atomic.Pointer[Snapshot]
	generation atomic.Uint64

	data   store.PlayerDataStore
	ledger *warning.Ledger
	locks  *session.Locks
	arena  *session.Arena
	global *session.GlobalCooldowns
	now    func() time.Time
}

// New creates a checker on data with an initial snapshot (nil lets everything through).
func New(data store.PlayerDataStore, snap *Snapshot, opts Options) *Checker {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	locks := session.NewLocks(opts.LockStripes)

	c := &Checker{
		data:   data,
		ledger: warning.NewLedger(data, locks),
		locks:  locks,
		arena:  session.NewArena(opts.ArenaSize, opts.ArenaTTL),
		global: session.NewGlobalCooldowns(),
		now:    opts.Clock,
	}
	if snap == nil {
		snap = EmptySnapshot()
	}
	c.Reload(snap)
	return c
}

// Snapshot returns the active snapshot.
func (c *Checker) Snapshot() *Snapshot {
	return c.snapshot.Load()
}

// Reload atomically activates snap and returns its generation. Evaluations
// already running keep the snapshot they started with.
func (c *Checker) Reload(snap *Snapshot) uint64 {
	snap.Generation = c.generation.Add(1)
	snap.LoadedAt = c.now()
	c.snapshot.Store(snap)

	metrics.SnapshotGeneration.Set(float64(snap.Generation))
	for _, category := range rule.Categories() {
		metrics.RulesLoaded.WithLabelValues(string(category)).Set(float64(snap.RuleCount(category)))
	}

	logrus.Infof("activated rule snapshot generation %d from %s", snap.Generation, snap.Source)
	return snap.Generation
}

// Ledger returns the warning points ledger.
func (c *Checker) Ledger() *warning.Ledger {
	return c.ledger
}

// SeedLedger registers players with stored data for decay, when the store can list them.
func (c *Checker) SeedLedger(ctx context.Context) error {
	lister, ok := c.data.(store.PlayerLister)
	if !ok {
		return nil
	}
	return c.ledger.Seed(ctx, lister)
}

// Evaluate runs the pipeline for one message. The returned verdict is never
// nil. When a store operation fails the verdict is a degraded pass-through
// and the error is an *EvaluationError.
func (c *Checker) Evaluate(ctx context.Context, req Request) (*rule.Verdict, error) {
	start := c.now()
	snap := c.Snapshot()

	if err := validate(req); err != nil {
		return c.degrade(req, "validate", err, start)
	}
	player := req.Sender.ID()

	unlock := c.locks.Lock(player)
	defer unlock()

	st := c.arena.State(player)
	ec := rule.NewEvaluationContext(req.Category, req.Sender, req.Text, req.Vars, start)
	ec.Data = store.NewBag(c.data, player)
	ec.Points = c.ledger.Awarder(snap.WarningSets, player)
	ec.Cooldowns = st.Cooldowns(c.global, start)

	if op, err := c.run(ctx, snap, ec, st); err != nil {
		return c.degrade(req, op, err, start)
	}

	v := ec.Verdict
	v.FinalMessage = ec.Message
	if !v.Cancelled {
		snap.Antispam.Record(req.Category, ec.Message, start, st)
	}

	observe(req.Category, v, c.now().Sub(start))
	return v, nil
}

// run returns the failing stage with any error.
func (c *Checker) run(ctx context.Context, snap *Snapshot, ec *rule.EvaluationContext, st *session.State) (string, error) {
	flow, err := snap.Antispam.Evaluate(ctx, ec, st)
	if err != nil {
		return "antispam", err
	}
	if flow.Cancelled() || ec.Verdict.Cancelled {
		return "", nil
	}

	muted, err := c.muted(ctx, snap, ec)
	if err != nil {
		return "mute", err
	}
	if muted {
		reject(ec, CheckMute, snap.Mute.Silent, snap.Mute.Message)
		return "", nil
	}

	if c.newcomer(snap, ec) {
		reject(ec, CheckNewcomer, snap.Newcomer.Silent, snap.Newcomer.Message)
		return "", nil
	}

	if _, err := snap.RuleSets[ec.Category].Evaluate(ctx, ec); err != nil {
		return "rules", err
	}
	return "", nil
}

func (c *Checker) muted(ctx context.Context, snap *Snapshot, ec *rule.EvaluationContext) (bool, error) {
	m := snap.Mute
	if !m.Enabled || !applies(snap.MuteCategories, ec.Category) || bypass(ec, m.BypassPermission) {
		return false, nil
	}
	if s, ok := ec.Sender.(muteAware); ok && s.IsMuted() {
		return true, nil
	}

	raw, ok, err := ec.Data.Get(ctx, m.DataKey)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", m.DataKey, err)
	}
	if !ok {
		return false, nil
	}
	until, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		logrus.Warnf("ignoring malformed %s %q for player %s", m.DataKey, raw, ec.Sender.ID())
		return false, nil
	}
	return ec.Now.Before(time.Unix(until, 0)), nil
}

func (c *Checker) newcomer(snap *Snapshot, ec *rule.EvaluationContext) bool {
	n := snap.Newcomer
	if !n.Enabled || !applies(snap.NewcomerCategories, ec.Category) || bypass(ec, n.BypassPermission) {
		return false
	}
	s, ok := ec.Sender.(joinAware)
	if !ok || s.JoinedAt().IsZero() {
		return false
	}
	return ec.Now.Sub(s.JoinedAt()) < n.Window
}

func bypass(ec *rule.EvaluationContext, permission string) bool {
	return permission != "" && ec.Sender.HasPermission(permission)
}

func reject(ec *rule.EvaluationContext, check string, silent bool, message string) {
	v := ec.Verdict
	v.Cancel(silent)
	v.FailedChecks = append(v.FailedChecks, check)
	v.AddEvent(rule.Event{Kind: rule.EventAntispamRejected, Check: check, Silently: silent})
	if message != "" && !silent {
		v.Messages = append(v.Messages, ec.Expand(message))
	}
}

func (c *Checker) degrade(req Request, op string, err error, start time.Time) (*rule.Verdict, error) {
	player := ""
	if req.Sender != nil {
		player = req.Sender.ID()
	}
	evalErr := &EvaluationError{Player: player, Op: op, Err: err}
	logrus.Errorf("degrading to pass-through: %v", evalErr)

	v := rule.NewVerdict(req.Text)
	v.Degraded = true
	metrics.EvaluationsTotal.WithLabelValues(string(req.Category), metrics.OutcomeDegraded).Inc()
	metrics.EvaluationDuration.WithLabelValues(string(req.Category)).Observe(c.now().Sub(start).Seconds())
	return v, evalErr
}

func validate(req Request) error {
	if req.Sender == nil || req.Sender.ID() == "" {
		return ErrNoSender
	}
	if req.Category == rule.CategoryGlobal {
		return ErrGlobalCategory
	}
	for _, c := range rule.Categories() {
		if c == req.Category {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", rule.ErrUnknownCategory, req.Category)
}

func observe(category rule.Category, v *rule.Verdict, elapsed time.Duration) {
	outcome := metrics.OutcomeDelivered
	switch {
	case v.Cancelled:
		outcome = metrics.OutcomeCancelled
	case v.Changed:
		outcome = metrics.OutcomeChanged
	}
	metrics.EvaluationsTotal.WithLabelValues(string(category), outcome).Inc()
	metrics.EvaluationDuration.WithLabelValues(string(category)).Observe(elapsed.Seconds())

	for _, r := range v.MatchedRules {
		metrics.RuleMatchesTotal.WithLabelValues(r.ID).Inc()
	}
	for _, check := range v.FailedChecks {
		metrics.AntispamRejectionsTotal.WithLabelValues(check).Inc()
	}
	for _, e := range v.Events {
		if e.Kind == rule.EventWarningTriggered {
			metrics.WarningTriggersTotal.WithLabelValues(e.Set).Inc()
		}
	}
}

// StartDecay runs warning point decay every period until ctx is done.
func (c *Checker) StartDecay(ctx context.Context, period time.Duration) {
	if period <= 0 {
		logrus.Info("warning point decay disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := c.DecayOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logrus.Errorf("warning point decay failed: %v", err)
				}
			}
		}
	}()
	logrus.Infof("warning point decay every %s", period)
}

// DecayOnce runs one decay pass with the active snapshot's warning sets.
func (c *Checker) DecayOnce(ctx context.Context) (int, error) {
	changed, err := c.ledger.Decay(ctx, c.Snapshot().WarningSets)
	metrics.DecayRunsTotal.Inc()
	metrics.DecayedEntries.Add(float64(changed))
	logrus.Debugf("warning point decay lowered %d entries", changed)
	return changed, err
}
