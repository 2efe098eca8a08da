// Package metrics exposes analysis counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "live_analysis"

type Metrics struct {
	queriesSubmitted prometheus.Counter
	resultsAccepted  prometheus.Counter
	resultsDiscarded prometheus.Counter
	pollErrors       prometheus.Counter
	attemptsFinished *prometheus.CounterVec
	resultVisits     prometheus.Histogram
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		queriesSubmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_submitted_total",
			Help:      "Analysis queries written to the engine.",
		}),
		resultsAccepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_accepted_total",
			Help:      "Results matching the current query.",
		}),
		resultsDiscarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_discarded_total",
			Help:      "Stale results dropped by correlation id.",
		}),
		pollErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_errors_total",
			Help:      "Non-timeout errors while reading results.",
		}),
		attemptsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_finished_total",
			Help:      "Finished analysis attempts by final state.",
		}, []string{"state"}),
		resultVisits: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "result_visits",
			Help:      "Root visits of accepted results.",
			Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
		}),
	}
}

func (m *Metrics) QuerySubmitted() {
	m.queriesSubmitted.Inc()
}

func (m *Metrics) ResultAccepted(visits int) {
	m.resultsAccepted.Inc()
	m.resultVisits.Observe(float64(visits))
}

func (m *Metrics) ResultDiscarded() {
	m.resultsDiscarded.Inc()
}

func (m *Metrics) PollError() {
	m.pollErrors.Inc()
}

func (m *Metrics) AttemptFinished(state string) {
	m.attemptsFinished.WithLabelValues(state).Inc()
}
