// Package metrics exposes submission counters in the Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soaringjerry/cracks/internal/services"
)

type Metrics struct {
	registry    *prometheus.Registry
	submissions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	sessions    prometheus.Counter
	swept       prometheus.Counter
}

// New registers the service collectors, plus the Go and process collectors,
// on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cracks",
			Name:      "submissions_total",
			Help:      "Submissions by target and outcome.",
		}, []string{"target", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cracks",
			Name:      "submission_duration_seconds",
			Help:      "Time spent in the read-merge-write cycle.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"target"}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cracks",
			Name:      "sessions_started_total",
			Help:      "Visit sessions started.",
		}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cracks",
			Name:      "sessions_swept_total",
			Help:      "Expired visit sessions removed.",
		}),
	}
	m.registry.MustRegister(
		m.submissions, m.duration, m.sessions, m.swept,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveSubmission(target string, kind services.OutcomeKind, elapsed time.Duration) {
	m.submissions.WithLabelValues(target, string(kind)).Inc()
	m.duration.WithLabelValues(target).Observe(elapsed.Seconds())
}

func (m *Metrics) SessionStarted()     { m.sessions.Inc() }
func (m *Metrics) SessionsSwept(n int) { m.swept.Add(float64(n)) }

// Handler serves the registry at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

var _ services.SubmissionObserver = (*Metrics)(nil)
