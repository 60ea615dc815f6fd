package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/trace"

	"github.com/openfroyo/froyo-neutron/pkg/engine"
)

// Telemetry bundles logging, tracing and metrics.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance and its logger to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	return t.Logger.WithContext(ctx)
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown flushes and stops the tracer.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.Tracer.Shutdown(ctx)
}

// CompileScope instruments one compilation: a span, a logger carrying
// the source, and a timer feeding the compile metrics.
type CompileScope struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer

	metrics *Metrics
}

// StartCompile begins an instrumented compilation of source. Without
// telemetry in ctx the scope only logs through FromContext.
func StartCompile(ctx context.Context, source, osFamily string) *CompileScope {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &CompileScope{
			Ctx:    ctx,
			Span:   trace.SpanFromContext(ctx),
			Logger: FromContext(ctx).WithSource(source),
			Timer:  NewTimer(),
		}
	}

	spanCtx, span := tel.Tracer.StartCompileSpan(ctx, source, osFamily)

	logger := tel.Logger.WithSource(source)
	if span.SpanContext().IsValid() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}

	return &CompileScope{
		Ctx:     spanCtx,
		Span:    span,
		Logger:  logger,
		Timer:   NewTimer(),
		metrics: tel.Metrics,
	}
}

// Succeeded ends the scope for a compiled catalog.
func (s *CompileScope) Succeeded(catalog *engine.Catalog, digest string) {
	s.Span.SetAttributes(
		AttrClass.String(catalog.Class),
		AttrDigest.String(digest),
		AttrDirectiveCount.Int(len(catalog.Directives)),
		AttrResult.String(ResultSuccess),
	)
	RecordSuccess(s.Span)
	s.Span.End()

	if s.metrics != nil {
		s.metrics.RecordCompile(ResultSuccess, s.Timer.Duration())
		s.metrics.ObserveCatalog(catalog.Facts.OSFamily, len(catalog.Directives))
	}

	s.Logger.WithCatalog(catalog.Class, digest).
		WithField("directives", len(catalog.Directives)).
		Debugf("Compiled catalog in %s", s.Timer.Duration())
}

// Failed ends the scope for a failed compilation. parameter names the
// offending parameter of a validation failure and is empty otherwise.
func (s *CompileScope) Failed(result, parameter string, err error) {
	s.Span.SetAttributes(AttrResult.String(result))
	if parameter != "" {
		s.Span.SetAttributes(AttrParameter.String(parameter))
	}
	var engErr *engine.EngineError
	if errors.As(err, &engErr) && engErr.Code != "" {
		s.Span.SetAttributes(AttrErrorCode.String(engErr.Code))
	}
	RecordError(s.Span, err)
	s.Span.End()

	if s.metrics != nil {
		s.metrics.RecordCompile(result, s.Timer.Duration())
		if result == ResultValidationFailed {
			s.metrics.RecordValidationFailure(parameter)
		}
	}

	logger := s.Logger.WithError(err)
	if parameter != "" {
		logger = logger.WithParameter(parameter)
	}
	if result == ResultError {
		logger.Errorf("Compilation %s", result)
		return
	}
	logger.Warnf("Compilation %s", result)
}

// PolicyEvaluated records the policy verdict on the compile span.
func (s *CompileScope) PolicyEvaluated(violations int, denied bool) {
	AddEvent(s.Span, "policy.evaluated",
		AttrViolations.Int(violations),
		AttrDenied.Bool(denied),
	)
}
