package prioritization

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricRunsTotal          = "aria_prioritization_runs_total"
	MetricRunDuration        = "aria_prioritization_duration_seconds"
	MetricRequirementsScored = "aria_requirements_scored_total"
	MetricAveragePriority    = "aria_prioritization_average_score"
)

// Run outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Metrics holds the prioritization collectors. Safe for concurrent use.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
	scored   prometheus.Counter
	average  prometheus.Gauge
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRunsTotal,
				Help: "Total number of prioritization runs by outcome",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRunDuration,
			Help:    "Histogram of successful prioritization run durations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		scored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRequirementsScored,
			Help: "Total number of requirements scored",
		}),
		average: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricAveragePriority,
			Help: "Average priority score of the most recent run",
		}),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.runs, m.duration, m.scored, m.average}
}

func (m *Metrics) observeRun(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeSuccess(seconds float64, count int, average float64) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(OutcomeSuccess).Inc()
	m.duration.Observe(seconds)
	m.scored.Add(float64(count))
	m.average.Set(average)
}
