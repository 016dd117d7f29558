package tracing

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"order-dispatch/internal/config"
)

// InitTracerProvider builds a tracer provider for the configured exporter.
// The stdout exporter writes to w. With exporter "none" spans are created
// but never exported.
func InitTracerProvider(appName string, cfg *config.TraceConfig, w io.Writer) (*sdktrace.TracerProvider, error) {
	res := resource.NewSchemaless(attribute.String("service.name", appName))

	var exp sdktrace.SpanExporter
	switch cfg.Exporter {
	case "stdout":
		e, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		exp = e
	case "jaeger":
		e, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
		if err != nil {
			return nil, fmt.Errorf("failed to create jaeger exporter: %w", err)
		}
		exp = e
	case "none", "":
		return sdktrace.NewTracerProvider(sdktrace.WithResource(res)), nil
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	), nil
}

// Shutdown flushes and stops tp, logging a failure instead of returning it.
// Meant to be deferred by the binaries.
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider, logger *slog.Logger) {
	if err := tp.Shutdown(ctx); err != nil {
		logger.ErrorContext(ctx, "failed to shut down tracer provider", slog.Any("err", err))
	}
}
