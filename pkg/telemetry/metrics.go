package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Invocation outcomes used as the status label.
const (
	StatusApplied  = "applied"
	StatusRejected = "rejected"
	StatusUndone   = "undone"
)

// Metrics provides Prometheus metrics for a management model.
type Metrics struct {
	config MetricsConfig

	invocations        *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	rejections         *prometheus.CounterVec
	compensations      *prometheus.CounterVec
	irreversible       *prometheus.CounterVec
	policyDenials      *prometheus.CounterVec
	journalErrors      prometheus.Counter
	treeSize           prometheus.Gauge
	journalLength      prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
// A disabled configuration yields a collector whose methods do nothing.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Total number of management invocations by outcome",
			},
			[]string{"operation", "status"},
		),
		invocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invocation_duration_seconds",
				Help:      "Duration of management invocations in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rejections_total",
				Help:      "Total number of rejected invocations by error class and code",
			},
			[]string{"class", "code"},
		),
		compensations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compensations_applied_total",
				Help:      "Total number of compensating invocations applied",
			},
			[]string{"operation"},
		),
		irreversible: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "irreversible_invocations_total",
				Help:      "Total number of applied invocations without a compensation",
			},
			[]string{"operation"},
		),
		policyDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_denials_total",
				Help:      "Total number of invocations denied by policy",
			},
			[]string{"policy"},
		),
		journalErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "journal_errors_total",
				Help:      "Total number of failed journal writes",
			},
		),
		treeSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tree_entities",
				Help:      "Current number of entities in the managed tree, root included",
			},
		),
		journalLength: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "journal_entries",
				Help:      "Current number of applied journal entries",
			},
		),
	}

	registry.MustRegister(
		m.invocations,
		m.invocationDuration,
		m.rejections,
		m.compensations,
		m.irreversible,
		m.policyDenials,
		m.journalErrors,
		m.treeSize,
		m.journalLength,
	)

	return m, nil
}

// RecordInvocation records an invocation outcome and its duration.
func (m *Metrics) RecordInvocation(operation, status string, duration time.Duration) {
	if m.invocations == nil {
		return
	}
	m.invocations.WithLabelValues(operation, status).Inc()
	m.invocationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRejection records a rejected invocation by error class and code.
func (m *Metrics) RecordRejection(class, code string) {
	if m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(class, code).Inc()
}

// RecordCompensation records an applied compensation.
func (m *Metrics) RecordCompensation(operation string) {
	if m.compensations == nil {
		return
	}
	m.compensations.WithLabelValues(operation).Inc()
}

// RecordIrreversible records an applied invocation that cannot be undone.
func (m *Metrics) RecordIrreversible(operation string) {
	if m.irreversible == nil {
		return
	}
	m.irreversible.WithLabelValues(operation).Inc()
}

// RecordPolicyDenial records an invocation blocked by the named policy.
func (m *Metrics) RecordPolicyDenial(policy string) {
	if m.policyDenials == nil {
		return
	}
	m.policyDenials.WithLabelValues(policy).Inc()
}

// RecordJournalError records a failed journal write.
func (m *Metrics) RecordJournalError() {
	if m.journalErrors == nil {
		return
	}
	m.journalErrors.Inc()
}

// SetTreeSize sets the entity count of the managed tree.
func (m *Metrics) SetTreeSize(count int) {
	if m.treeSize == nil {
		return
	}
	m.treeSize.Set(float64(count))
}

// SetJournalLength sets the number of applied journal entries.
func (m *Metrics) SetJournalLength(count int) {
	if m.journalLength == nil {
		return
	}
	m.journalLength.Set(float64(count))
}

// Registry returns the registry holding the collectors, or nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer serves the metrics endpoint until ctx is done.
func (m *Metrics) StartMetricsServer(ctx context.Context) error {
	if !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("address", m.config.ListenAddress).Msg("metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	return nil
}
