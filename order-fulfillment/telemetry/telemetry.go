package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	metricSDK "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	traceSDK "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config holds telemetry configuration for a process
type Config struct {
	ServiceName    string
	ServiceVersion string
	// OTLPEndpoint enables trace export when non-empty
	OTLPEndpoint string
}

// Telemetry records remote call metrics and spans
type Telemetry struct {
	tracer         trace.Tracer
	remoteCalls    metric.Int64Counter
	remoteDuration metric.Float64Histogram
	heartbeats     metric.Int64Counter
}

// New creates a Telemetry on top of the global providers.
// With no providers installed every instrument is a no-op.
func New(serviceName string) *Telemetry {
	meter := otel.Meter(serviceName)
	t := &Telemetry{tracer: otel.Tracer(serviceName)}

	t.remoteCalls, _ = meter.Int64Counter("remote_calls_total",
		metric.WithDescription("Remote domain service calls by outcome"))
	t.remoteDuration, _ = meter.Float64Histogram("remote_call_duration_seconds",
		metric.WithDescription("Remote domain service call latency"),
		metric.WithUnit("s"))
	t.heartbeats, _ = meter.Int64Counter("activity_heartbeats_total",
		metric.WithDescription("Liveness pulses emitted by long-running activities"))

	return t
}

// Init installs a prometheus metric reader and, when configured, an OTLP trace
// exporter as the global providers
func Init(ctx context.Context, cfg Config) (*Telemetry, func(), error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}
	meterProvider := metricSDK.NewMeterProvider(
		metricSDK.WithResource(res),
		metricSDK.WithReader(exporter),
	)

	traceOpts := []traceSDK.TracerProviderOption{traceSDK.WithResource(res)}
	if cfg.OTLPEndpoint != "" {
		traceExporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, nil, err
		}
		traceOpts = append(traceOpts, traceSDK.WithBatcher(traceExporter))
	}
	traceProvider := traceSDK.NewTracerProvider(traceOpts...)

	otel.SetMeterProvider(meterProvider)
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = traceProvider.Shutdown(ctx)
		_ = meterProvider.Shutdown(ctx)
	}

	return New(cfg.ServiceName), shutdown, nil
}

// StartSpan starts a span for an outbound operation
func (t *Telemetry) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

// RecordRemoteCall records the outcome and latency of one remote call attempt
func (t *Telemetry) RecordRemoteCall(ctx context.Context, domain, operation, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	if t.remoteCalls != nil {
		t.remoteCalls.Add(ctx, 1, attrs)
	}
	if t.remoteDuration != nil {
		t.remoteDuration.Record(ctx, elapsed.Seconds(), attrs)
	}
}

// RecordHeartbeat counts a liveness pulse of a long-running activity
func (t *Telemetry) RecordHeartbeat(ctx context.Context, activityType string) {
	if t.heartbeats != nil {
		t.heartbeats.Add(ctx, 1, metric.WithAttributes(attribute.String("activity", activityType)))
	}
}
