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

// Compile results used as metric label values.
const (
	ResultSuccess          = "success"
	ResultValidationFailed = "validation_failed"
	ResultPolicyDenied     = "policy_denied"
	ResultError            = "error"
)

// Metrics provides Prometheus metrics for catalog compilation.
type Metrics struct {
	config MetricsConfig

	compilations       *prometheus.CounterVec
	compileDuration    *prometheus.HistogramVec
	validationFailures *prometheus.CounterVec
	directives         *prometheus.HistogramVec
	policyViolations   *prometheus.CounterVec
	archiveWrites      *prometheus.CounterVec
	refreshes          prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
// A disabled configuration yields a collector whose methods are no-ops.
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

		compilations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compilations_total",
				Help:      "Total number of catalog compilations by result",
			},
			[]string{"result"},
		),
		compileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "compile_duration_seconds",
				Help:      "Duration of catalog compilation in seconds",
				Buckets:   buckets,
			},
			[]string{"result"},
		),
		validationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_failures_total",
				Help:      "Total number of parameter validation failures by parameter",
			},
			[]string{"parameter"},
		),
		directives: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "catalog_directives",
				Help:      "Number of directives in compiled catalogs",
				Buckets:   prometheus.LinearBuckets(5, 5, 10),
			},
			[]string{"osfamily"},
		),
		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of policy violations by policy and severity",
			},
			[]string{"policy", "severity"},
		),
		archiveWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "archive_writes_total",
				Help:      "Total number of catalog archive writes by status",
			},
			[]string{"status"},
		),
		refreshes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "planned_refreshes_total",
				Help:      "Total number of refresh events planned across diffs",
			},
		),
	}

	registry.MustRegister(
		m.compilations,
		m.compileDuration,
		m.validationFailures,
		m.directives,
		m.policyViolations,
		m.archiveWrites,
		m.refreshes,
	)

	return m, nil
}

// Registry returns the registry metrics are registered on, or nil when
// metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCompile records one compilation with its result and duration.
func (m *Metrics) RecordCompile(result string, duration time.Duration) {
	if m.compilations == nil {
		return
	}
	m.compilations.WithLabelValues(result).Inc()
	m.compileDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordValidationFailure records a validation failure naming parameter.
func (m *Metrics) RecordValidationFailure(parameter string) {
	if m.validationFailures == nil {
		return
	}
	if parameter == "" {
		parameter = "unknown"
	}
	m.validationFailures.WithLabelValues(parameter).Inc()
}

// ObserveCatalog records the size of a compiled catalog.
func (m *Metrics) ObserveCatalog(osFamily string, directives int) {
	if m.directives == nil {
		return
	}
	m.directives.WithLabelValues(osFamily).Observe(float64(directives))
}

// RecordPolicyViolation records a policy violation.
func (m *Metrics) RecordPolicyViolation(policy, severity string) {
	if m.policyViolations == nil {
		return
	}
	m.policyViolations.WithLabelValues(policy, severity).Inc()
}

// RecordArchiveWrite records a catalog archive write.
func (m *Metrics) RecordArchiveWrite(err error) {
	if m.archiveWrites == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.archiveWrites.WithLabelValues(status).Inc()
}

// AddRefreshes records refresh events planned by a diff.
func (m *Metrics) AddRefreshes(n int) {
	if m.refreshes == nil {
		return
	}
	m.refreshes.Add(float64(n))
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

// ServeMetrics exposes the metrics endpoint on addr until ctx is done.
func (m *Metrics) ServeMetrics(ctx context.Context, addr string) error {
	if m.registry == nil || addr == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Str("path", path).Msg("Serving metrics")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
