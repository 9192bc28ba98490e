package telemetry

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides a unified telemetry interface combining logging, tracing and metrics.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config

	metricsServer *http.Server
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

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.metricsServer != nil {
		if err := t.metricsServer.Shutdown(ctx); err != nil {
			return err
		}
	}
	return t.Tracer.Shutdown(ctx)
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
// The server is stopped by Shutdown.
func (t *Telemetry) StartMetricsServer() {
	t.metricsServer = t.Metrics.StartMetricsServer(func(err error) {
		t.Logger.WithError(err).Error("metrics server stopped")
	})
}

// Operation is one traced and timed unit of work, such as a handler run.
type Operation struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger

	name  string
	timer *Timer
}

// StartOperation opens an operation named name. The span is only started
// when ctx carries telemetry. A nil logger falls back to the one in ctx.
func StartOperation(ctx context.Context, logger *Logger, name string, attrs ...attribute.KeyValue) *Operation {
	if logger == nil {
		logger = FromContext(ctx)
	}
	op := &Operation{Ctx: ctx, Logger: logger, name: name, timer: NewTimer()}

	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return op
	}
	spanCtx, span := tel.Tracer.StartSpan(ctx, name, attrs...)
	if span.SpanContext().IsValid() {
		op.Logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}
	op.Ctx = op.Logger.WithContext(spanCtx)
	op.Span = span
	return op
}

// End closes the span, logs the outcome with its duration and returns err.
func (op *Operation) End(err error) error {
	elapsed := op.timer.Duration()
	if op.Span != nil {
		if err != nil {
			RecordError(op.Span, err)
		} else {
			RecordSuccess(op.Span)
		}
		op.Span.End()
	}
	if err != nil {
		op.Logger.WithError(err).Errorf("%s failed after %s", op.name, elapsed)
	} else {
		op.Logger.Debugf("%s done in %s", op.name, elapsed)
	}
	return err
}
