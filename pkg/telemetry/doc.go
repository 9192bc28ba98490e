// Package telemetry provides observability instrumentation for netonboard.
//
// It combines structured logging (zerolog), distributed tracing
// (OpenTelemetry) and metrics (Prometheus) behind one Telemetry value that is
// built from configuration and carried through a context.
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = "1.4.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	tel.StartMetricsServer()
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
//	logger := tel.Logger.NewComponentLogger("engine")
//	logger = logger.WithPassID(passID).WithClass("VLAN")
//	logger.Info("deleting instance")
//	logger.WithError(err).Error("delete failed")
//
// # Distributed Tracing
//
// Passes, stages and device requests each get their own span:
//
//	ctx, span := tel.Tracer.StartPassSpan(ctx, passID)
//	defer span.End()
//
// A nil *Tracer hands out no-op spans, so instrumented code does not need to
// check whether tracing was configured.
//
// Supported exporters: "otlp" (gRPC), "stdout" and "none".
//
// # Metrics
//
// Key metrics exposed (with the default "netonboard" namespace):
//
//   - netonboard_passes_started_total
//   - netonboard_passes_completed_total{status}
//   - netonboard_pass_duration_seconds{status}
//   - netonboard_active_passes
//   - netonboard_deletion_steps_total{class,status}
//   - netonboard_deletion_step_duration_seconds{class}
//   - netonboard_device_requests_total{method,status}
//   - netonboard_device_request_duration_seconds{method}
//   - netonboard_errors_by_class_total{class}
//   - netonboard_errors_by_code_total{code}
//
// Like the tracer, a nil or disabled *Metrics records nothing.
package telemetry
