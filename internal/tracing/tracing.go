// Package tracing wires optional OpenTelemetry distributed tracing
// around the orchestrator's two externally-observable call boundaries —
// the inbound tools/call dispatch and the outbound per-agent router
// call — the way this codebase's own telemetry package wraps its
// externally observable operations, narrowed to tracing only (this
// codebase's module set doesn't carry an OTLP metrics exporter).
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// tracerName identifies this package's instrumentation scope.
const tracerName = "github.com/mcpfleet/orchestrator"

// Shutdown flushes and stops the installed tracer provider. It is a
// no-op when tracing was never configured.
type Shutdown func(ctx context.Context) error

// Configure installs a TracerProvider as the global default: an OTLP/HTTP
// exporter when endpoint is non-empty (from OTEL_EXPORTER_OTLP_ENDPOINT),
// or otel's built-in no-op provider otherwise, matching this codebase's
// "optional observability, never load-bearing for correctness" posture.
func Configure(ctx context.Context, endpoint, serviceName string) (Shutdown, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, fmt.Errorf("creating OTLP trace exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error { return tp.Shutdown(ctx) }, nil
}

// Tracer returns the package-scoped tracer, reading whatever provider is
// currently installed (real or no-op).
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span named name under ctx using the current global
// tracer provider.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}
