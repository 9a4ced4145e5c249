// Package telemetry exposes Prometheus collectors for the risk engine.
// All helper methods are nil-receiver safe so library code can carry an
// optional *Metrics without guarding every call site.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/quantforge/riskengine/pkg/types"
)

// Metrics bundles the engine's Prometheus collectors.
type Metrics struct {
	AlertsTotal      *prometheus.CounterVec
	HaltState        prometheus.Gauge
	ScenarioRuns     prometheus.Counter
	BacktestDuration prometheus.Histogram
}

// New creates and registers the collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riskengine",
			Name:      "alerts_total",
			Help:      "Monitoring alerts emitted, by level.",
		}, []string{"level"}),
		HaltState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "riskengine",
			Name:      "halt_state",
			Help:      "1 when the kill-switch has halted trading, 0 otherwise.",
		}),
		ScenarioRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "riskengine",
			Name:      "scenario_backtests_total",
			Help:      "Stress scenario backtests executed.",
		}),
		BacktestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "riskengine",
			Name:      "backtest_duration_seconds",
			Help:      "Wall time of individual backtest runs.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.AlertsTotal, m.HaltState, m.ScenarioRuns, m.BacktestDuration)
	return m
}

// RecordAlert counts one alert at the given level.
func (m *Metrics) RecordAlert(level types.AlertLevel) {
	if m == nil {
		return
	}
	m.AlertsTotal.WithLabelValues(level.String()).Inc()
}

// SetHalted records the current halt state.
func (m *Metrics) SetHalted(halted bool) {
	if m == nil {
		return
	}
	if halted {
		m.HaltState.Set(1)
	} else {
		m.HaltState.Set(0)
	}
}

// RecordScenarioRun counts one completed scenario backtest.
func (m *Metrics) RecordScenarioRun() {
	if m == nil {
		return
	}
	m.ScenarioRuns.Inc()
}

// ObserveBacktest records the duration of one backtest run in seconds.
func (m *Metrics) ObserveBacktest(seconds float64) {
	if m == nil {
		return
	}
	m.BacktestDuration.Observe(seconds)
}
