// Package tracing installs the process TracerProvider. No exporter is wired
// here; deployments that export spans register a processor on the returned
// provider.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Setup registers a TracerProvider for serviceName as the global provider
// and returns it along with its shutdown function.
func Setup(serviceName string, opts ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, func(context.Context) error) {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	base := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	}
	tp := sdktrace.NewTracerProvider(append(base, opts...)...)
	otel.SetTracerProvider(tp)
	return tp, tp.Shutdown
}

// TraceID returns the hex trace id of the span in ctx, or "" when no span is
// recording. Used to correlate log lines with traces.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
