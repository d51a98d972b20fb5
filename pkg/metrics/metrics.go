// Package metrics holds the Prometheus collectors of the moderation engine.
// Collectors are package-level and registered by the metrics server through
// Collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Evaluation outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomeChanged   = "changed"
	OutcomeCancelled = "cancelled"
	OutcomeDegraded  = "degraded"
)

var (
	// EvaluationsTotal counts evaluated messages by category and outcome.
	EvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatguard_evaluations_total",
		Help: "Total number of evaluated messages",
	}, []string{"category", "outcome"})

	EvaluationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatguard_evaluation_duration_seconds",
		Help:    "Time spent evaluating a message",
		Buckets: []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{"category"})

	RuleMatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatguard_rule_matches_total",
		Help: "Total number of rule matches",
	}, []string{"rule"})

	AntispamRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatguard_antispam_failures_total",
		Help: "Total number of failed antispam checks",
	}, []string{"check"})

	WarningTriggersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatguard_warning_triggers_total",
		Help: "Total number of fired warning triggers",
	}, []string{"set"})

	// SnapshotGeneration is the generation of the active rule snapshot.
	SnapshotGeneration = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatguard_snapshot_generation",
		Help: "Generation of the active rule snapshot",
	})

	RulesLoaded = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chatguard_rules_loaded",
		Help: "Number of rules in the active snapshot",
	}, []string{"category"})

	// ReloadsTotal counts reload attempts, result = "success" or "failure".
	ReloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatguard_reloads_total",
		Help: "Total number of snapshot reloads",
	}, []string{"result"})

	DecayRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatguard_decay_runs_total",
		Help: "Total number of warning point decay runs",
	})

	DecayedEntries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatguard_decayed_entries_total",
		Help: "Total number of warning point entries lowered by decay",
	})

	// PublishedTotal counts messages published to the bus by kind ("event" or "command").
	PublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatguard_published_total",
		Help: "Total number of published events and commands",
	}, []string{"kind"})

	PublishDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatguard_publish_dropped_total",
		Help: "Total number of events and commands that could not be published",
	}, []string{"kind"})
)

// Collectors returns every collector for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		EvaluationsTotal,
		EvaluationDuration,
		RuleMatchesTotal,
		AntispamRejectionsTotal,
		WarningTriggersTotal,
		SnapshotGeneration,
		RulesLoaded,
		ReloadsTotal,
		DecayRunsTotal,
		DecayedEntries,
		PublishedTotal,
		PublishDroppedTotal,
	}
}
