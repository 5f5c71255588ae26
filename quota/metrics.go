/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import "github.com/prometheus/client_golang/prometheus"

const (
	metricsLabelStrategy = "strategy"
	metricsLabelDecision = "decision"

	decisionAllowed  = "allowed"
	decisionRejected = "rejected"
)

// MetricsCollector represents a collector of limiter decisions.
type MetricsCollector interface {
	// IncDecisions increments the number of decisions made by the strategy.
	IncDecisions(strategy string, allowed bool)

	// IncBonusGrants increments the number of windows opened with the burst bonus.
	IncBonusGrants(strategy string)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels
}

// PrometheusMetrics represents Prometheus metrics for the limiter.
type PrometheusMetrics struct {
	DecisionsTotal   *prometheus.CounterVec
	BonusGrantsTotal *prometheus.CounterVec
}

var _ MetricsCollector = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	return &PrometheusMetrics{
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "quota_decisions_total",
			Help:        "Number of quota decisions.",
			ConstLabels: opts.ConstLabels,
		}, []string{metricsLabelStrategy, metricsLabelDecision}),
		BonusGrantsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "quota_bonus_grants_total",
			Help:        "Number of windows opened with the burst bonus.",
			ConstLabels: opts.ConstLabels,
		}, []string{metricsLabelStrategy}),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(pm.DecisionsTotal, pm.BonusGrantsTotal)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister(reg prometheus.Registerer) {
	reg.Unregister(pm.DecisionsTotal)
	reg.Unregister(pm.BonusGrantsTotal)
}

// IncDecisions increments the number of decisions made by the strategy.
func (pm *PrometheusMetrics) IncDecisions(strategy string, allowed bool) {
	decision := decisionRejected
	if allowed {
		decision = decisionAllowed
	}
	pm.DecisionsTotal.With(prometheus.Labels{metricsLabelStrategy: strategy, metricsLabelDecision: decision}).Inc()
}

// IncBonusGrants increments the number of windows opened with the burst bonus.
func (pm *PrometheusMetrics) IncBonusGrants(strategy string) {
	pm.BonusGrantsTotal.With(prometheus.Labels{metricsLabelStrategy: strategy}).Inc()
}

type disabledMetrics struct{}

func (disabledMetrics) IncDecisions(string, bool) {}
func (disabledMetrics) IncBonusGrants(string)     {}
