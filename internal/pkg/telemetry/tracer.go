// Package telemetry initialises process-wide observability: the structured
// logger and, when an OTLP endpoint is configured, the OpenTelemetry SDK.
//
// Call SetupTracer once at the top of main(), defer the returned shutdown
// function, and every span created anywhere in the process is exported
// automatically.
//
//	shutdown, err := telemetry.SetupTracer(ctx, "marketplace-api", endpoint)
//	if err != nil { ... }
//	defer shutdown(context.Background())
package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ShutdownFunc must be called before the process exits to flush any
// buffered spans and close the exporter cleanly.
type ShutdownFunc func(ctx context.Context) error

// SetupTracer initialises the global OpenTelemetry TracerProvider and
// TextMapPropagator for the given service name, exporting over OTLP/HTTP to
// endpoint (host:port). An empty endpoint installs nothing and returns a
// no-op shutdown, so callers need no special casing for the disabled path.
func SetupTracer(ctx context.Context, serviceName, endpoint string) (ShutdownFunc, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(stripScheme(endpoint)),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to create OTLP trace exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)

	// W3C TraceContext + Baggage, so trace ids flow across process
	// boundaries without manual header handling.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("telemetry: error shutting down TracerProvider: %w", err)
		}
		return nil
	}, nil
}

// stripScheme removes "http://" or "https://" prefixes so the raw host:port
// string can be used directly with the exporter.
func stripScheme(endpoint string) string {
	for _, prefix := range []string{"http://", "https://"} {
		if strings.HasPrefix(endpoint, prefix) {
			return endpoint[len(prefix):]
		}
	}
	return endpoint
}
