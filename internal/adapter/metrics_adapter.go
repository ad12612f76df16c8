package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	m "failpass.dev/pkg/failpass/internal/model"
)

// Metrics records pipeline counters for offline inspection.
type Metrics interface {
	ObserveAttempt(backend m.Backend, stage m.Stage, outcome m.Outcome)
	ObserveRun(backend m.Backend, status m.RunStatus, elapsed time.Duration)
	WriteTextfile(path string) error
}

// PrometheusMetrics keeps counters in a private registry and dumps them in the
// node-exporter textfile format. Nothing is served over HTTP.
type PrometheusMetrics struct {
	registry *prometheus.Registry
	attempts *prometheus.CounterVec
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheusMetrics constructs PrometheusMetrics with its collectors registered.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	p := &PrometheusMetrics{
		registry: registry,
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "failpass",
			Name:      "attempts_total",
			Help:      "Synthesis attempts by backend, stage and outcome.",
		}, []string{"backend", "stage", "outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "failpass",
			Name:      "runs_total",
			Help:      "Finished runs by backend and terminal status.",
		}, []string{"backend", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "failpass",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"backend"}),
	}

	registry.MustRegister(p.attempts, p.runs, p.duration)

	return p
}

// ObserveAttempt implements Metrics.
func (p *PrometheusMetrics) ObserveAttempt(backend m.Backend, stage m.Stage, outcome m.Outcome) {
	p.attempts.WithLabelValues(string(backend), stage.String(), outcome.String()).Inc()
}

// ObserveRun implements Metrics.
func (p *PrometheusMetrics) ObserveRun(backend m.Backend, status m.RunStatus, elapsed time.Duration) {
	p.runs.WithLabelValues(string(backend), status.String()).Inc()
	p.duration.WithLabelValues(string(backend)).Observe(elapsed.Seconds())
}

// WriteTextfile implements Metrics.
func (p *PrometheusMetrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}

	if err := prometheus.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}

	return nil
}

// Registry exposes the underlying registry for tests and embedding.
func (p *PrometheusMetrics) Registry() *prometheus.Registry {
	return p.registry
}
