package pipeline

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-chat-moderation/pkg/checker"
	"github.com/AccelByte/extend-chat-moderation/pkg/metrics"
)

// Target receives snapshots. *checker.Checker implements it.
type Target interface {
	Reload(snap *checker.Snapshot) uint64
}

// Manager loads the engine config from disk and activates it on a target:
// config file -> snapshot -> atomic swap. A failed load keeps the previous
// snapshot active.
type Manager struct {
	path   string
	target Target

	mu      sync.Mutex
	config  *Config
	lastErr error
	stats   Stats
}

// Stats describes reload activity.
type Stats struct {
	Generation uint64    `json:"generation"`
	Reloads    int64     `json:"reloads"`
	Failures   int64     `json:"failures"`
	LastReload time.Time `json:"last_reload"`
	LastError  string    `json:"last_error,omitempty"`
}

// NewManager creates a manager for the engine config at path.
func NewManager(path string, target Target) *Manager {
	return &Manager{
		path:   path,
		target: target,
	}
}

// Reload loads the config and, if it compiles, activates it. It returns the
// new generation. Reloads are serialized.
func (m *Manager) Reload() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	logrus.Infof("loading engine config from %s", m.path)

	snap, cfg, err := load(m.path)
	if err != nil {
		m.stats.Failures++
		m.stats.LastError = err.Error()
		m.lastErr = err
		metrics.ReloadsTotal.WithLabelValues("failure").Inc()
		logrus.Errorf("engine config rejected, keeping generation %d: %v", m.stats.Generation, err)
		return m.stats.Generation, err
	}

	generation := m.target.Reload(snap)

	m.config = cfg
	m.lastErr = nil
	m.stats.Generation = generation
	m.stats.Reloads++
	m.stats.LastReload = snap.LoadedAt
	m.stats.LastError = ""
	metrics.ReloadsTotal.WithLabelValues("success").Inc()

	return generation, nil
}

// Config returns the config of the active snapshot, or nil before the first
// successful reload.
func (m *Manager) Config() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Watch reloads on every value received from trigger (typically SIGHUP)
// until ctx is done.
func (m *Manager) Watch(ctx context.Context, trigger <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-trigger:
			if !ok {
				return
			}
			logrus.Infof("received %v, reloading engine config", sig)
			// Errors are logged and counted by Reload.
			_, _ = m.Reload()
		}
	}
}

// GetStats returns current reload statistics.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
