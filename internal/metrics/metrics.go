package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "enhancebot"

// Outcome labels for JobsTotal.
const (
	OutcomeSucceeded   = "succeeded"
	OutcomeOversize    = "oversize"
	OutcomeRemoteError = "remote_error"
	OutcomePollTimeout = "poll_timeout"
	OutcomeFailed      = "failed"
)

// Metrics holds the bot's collectors. A nil *Metrics is valid and records
// nothing, which keeps tests and the CLI free of registry plumbing.
type Metrics struct {
	JobsTotal    *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
	PollAttempts prometheus.Histogram
	UpdatesTotal *prometheus.CounterVec
	InFlight     prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Enhancement jobs by terminal outcome.",
		}, []string{"outcome"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of each remote workflow step.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"step"}),
		PollAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_attempts",
			Help:      "Status queries issued per job before a terminal answer.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34, 50},
		}),
		UpdatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Chat updates received by kind.",
		}, []string{"kind"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Enhancement jobs currently running.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.JobsTotal, m.StepDuration, m.PollAttempts, m.UpdatesTotal, m.InFlight)
	}
	return m
}

func (m *Metrics) ObserveJob(outcome string) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveStep(step string, started time.Time) {
	if m == nil {
		return
	}
	m.StepDuration.WithLabelValues(step).Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObservePollAttempts(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PollAttempts.Observe(float64(n))
}

func (m *Metrics) ObserveUpdate(kind string) {
	if m == nil {
		return
	}
	m.UpdatesTotal.WithLabelValues(kind).Inc()
}

// JobStarted increments the in-flight gauge and returns its decrement.
func (m *Metrics) JobStarted() func() {
	if m == nil {
		return func() {}
	}
	m.InFlight.Inc()
	return m.InFlight.Dec
}
