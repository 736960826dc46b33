package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"proxi-hq/guardian/pkg/config"
	"proxi-hq/guardian/pkg/policy/engine"
)

// PolicyMetrics tracks metrics related to policy decisions and mode
// state.
//
// Metrics:
//   - guardian_policy_decisions_total: decisions by mode and outcome
//   - guardian_policy_violations_total: denials by tool and reason
//   - guardian_policy_mode_changes_total: mode transitions by cause
//   - guardian_policy_grant_events_total: grant lifecycle events
//   - guardian_policy_grant_active: whether a temporary grant is active
//   - guardian_policy_grant_remaining_seconds: grant time left at the
//     last lifecycle event
type PolicyMetrics struct {
	registry *prometheus.Registry

	decisionsTotal   *prometheus.CounterVec
	violationsTotal  *prometheus.CounterVec
	modeChangesTotal *prometheus.CounterVec
	grantEventsTotal *prometheus.CounterVec
	grantActive      prometheus.Gauge
	grantRemaining   prometheus.Gauge
}

// NewPolicyMetrics creates and registers policy metrics with the
// provided registry. If registry is nil a new one is created.
func NewPolicyMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PolicyMetrics {
	if cfg == nil {
		cfg = &config.MetricsConfig{}
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "guardian"
	}
	subsystem := cfg.Subsystem
	if subsystem == "" {
		subsystem = "policy"
	}

	pm := &PolicyMetrics{
		registry: registry,

		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "decisions_total",
				Help:      "Total number of validation decisions",
			},
			[]string{"mode", "outcome"},
		),

		violationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "violations_total",
				Help:      "Total number of denied validations",
			},
			[]string{"tool", "reason"},
		),

		modeChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "mode_changes_total",
				Help:      "Total number of mode transitions",
			},
			[]string{"from", "to", "cause"},
		),

		grantEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "grant_events_total",
				Help:      "Total number of temporary grant lifecycle events",
			},
			[]string{"event"},
		),

		grantActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "grant_active",
				Help:      "Whether a temporary grant is currently active (1 or 0)",
			},
		),

		grantRemaining: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "grant_remaining_seconds",
				Help:      "Grant time remaining at the last lifecycle event, in seconds",
			},
		),
	}

	registry.MustRegister(
		pm.decisionsTotal,
		pm.violationsTotal,
		pm.modeChangesTotal,
		pm.grantEventsTotal,
		pm.grantActive,
		pm.grantRemaining,
	)

	return pm
}

// Registry returns the Prometheus registry the metrics are registered
// with.
func (pm *PolicyMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

// ModeChanged implements engine.EventRecorder.
func (pm *PolicyMetrics) ModeChanged(from, to string, cause engine.ModeChangeCause) {
	pm.modeChangesTotal.WithLabelValues(from, to, string(cause)).Inc()
}

// GrantEvent implements engine.EventRecorder.
func (pm *PolicyMetrics) GrantEvent(event engine.GrantEventType, remaining time.Duration) {
	pm.grantEventsTotal.WithLabelValues(string(event)).Inc()
	pm.grantRemaining.Set(remaining.Seconds())

	switch event {
	case engine.GrantGranted, engine.GrantExtended:
		pm.grantActive.Set(1)
	case engine.GrantRevoked, engine.GrantExpired:
		pm.grantActive.Set(0)
	}
}

// DecisionMade implements engine.EventRecorder.
func (pm *PolicyMetrics) DecisionMade(tool, mode string, reason engine.ReasonCode, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = string(reason)
		pm.violationsTotal.WithLabelValues(tool, string(reason)).Inc()
	}
	pm.decisionsTotal.WithLabelValues(mode, outcome).Inc()
}
