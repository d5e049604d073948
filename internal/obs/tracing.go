// Copyright 2025 James Ross
package obs

import (
	"context"
	"os"

	"github.com/goldilockshq/profile-crawler/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// MaybeInitTracing initializes a global tracer provider when tracing is
// enabled and an endpoint is configured; otherwise it is a no-op returning
// a nil provider, which callers treat as "nothing to shut down".
func MaybeInitTracing(cfg *config.Config) (*sdktrace.TracerProvider, error) {
	if !cfg.Observability.Tracing.Enabled || cfg.Observability.Tracing.Endpoint == "" {
		return nil, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Observability.Tracing.Endpoint)}
	if cfg.Observability.Tracing.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptrace.New(context.Background(), otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String("profile-crawler"),
		semconv.HostNameKey.String(hostname),
		attribute.String("environment", cfg.Observability.Tracing.Environment),
	)

	rate := cfg.Observability.Tracing.SamplingRate
	if rate <= 0 {
		rate = 1.0
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(rate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}

// StartCheckSpan traces a single CHECK request for the given parameter key.
func StartCheckSpan(ctx context.Context, parametersKey string, layerIndex int) (context.Context, trace.Span) {
	tracer := otel.Tracer("explorer")
	return tracer.Start(ctx, "explorer.check",
		trace.WithAttributes(
			attribute.String("parameters_key", parametersKey),
			attribute.Int("layer_index", layerIndex),
		),
	)
}

// StartFetchPageSpan traces a single page download.
func StartFetchPageSpan(ctx context.Context, parametersKey string, pageNumber int) (context.Context, trace.Span) {
	tracer := otel.Tracer("downloader")
	return tracer.Start(ctx, "downloader.fetch_page",
		trace.WithAttributes(
			attribute.String("parameters_key", parametersKey),
			attribute.Int("page_number", pageNumber),
		),
	)
}
