// Package telemetry provides observability instrumentation for froyo-neutron.
//
// It combines structured logging (zerolog), tracing (OpenTelemetry) and
// Prometheus metrics behind a single Telemetry value.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = version
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Compilations
//
// Each compilation runs inside a CompileScope, which owns a
// "catalog.compile" span, a logger carrying the parameter source, and a
// timer:
//
//	scope := telemetry.StartCompile(ctx, "params.yaml", facts.OSFamily)
//	catalog, err := neutron.Emit(params, facts)
//	if err != nil {
//	    scope.Failed(telemetry.ResultValidationFailed, "auth_password", err)
//	    return err
//	}
//	scope.Succeeded(catalog, digest)
//
// # Metrics
//
// Metrics live on a private registry (namespace froyo_neutron):
//
//   - compilations_total{result}
//   - compile_duration_seconds{result}
//   - validation_failures_total{parameter}
//   - catalog_directives{osfamily}
//   - policy_violations_total{policy,severity}
//   - archive_writes_total{status}
//   - planned_refreshes_total
//
// ServeMetrics exposes them over HTTP until its context is cancelled.
//
// # Tracing
//
// Tracing is off by default. The stdout exporter writes to stderr; the
// otlp exporter speaks gRPC to cfg.Tracing.Endpoint.
package telemetry
