package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"order-dispatch/internal/config"
)

func TestInitTracerProvider_Stdout(t *testing.T) {
	var buf bytes.Buffer
	tp, err := InitTracerProvider("test-app", &config.TraceConfig{Exporter: "stdout"}, &buf)
	require.NoError(t, err)

	ctx := context.Background()
	_, span := tp.Tracer("test").Start(ctx, "dispatch")
	span.End()

	require.NoError(t, tp.ForceFlush(ctx))
	require.NoError(t, tp.Shutdown(ctx))

	assert.Contains(t, buf.String(), "dispatch")
	assert.Contains(t, buf.String(), "test-app")
}

func TestInitTracerProvider_None(t *testing.T) {
	var buf bytes.Buffer
	tp, err := InitTracerProvider("test-app", &config.TraceConfig{Exporter: "none"}, &buf)
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "dispatch")
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	assert.Zero(t, buf.Len())
}

func TestInitTracerProvider_Unsupported(t *testing.T) {
	_, err := InitTracerProvider("test-app", &config.TraceConfig{Exporter: "zipkin"}, nil)
	assert.Error(t, err)
}

// failingProcessor returns an error when the provider shuts it down
type failingProcessor struct{}

func (failingProcessor) OnStart(ctx context.Context, s sdktrace.ReadWriteSpan) {}

func (failingProcessor) OnEnd(s sdktrace.ReadOnlySpan) {}

func (failingProcessor) ForceFlush(ctx context.Context) error {
	return nil
}

func (failingProcessor) Shutdown(ctx context.Context) error {
	return errors.New("collector unreachable")
}

func TestShutdown_LogsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(failingProcessor{}))
	Shutdown(context.Background(), tp, logger)

	assert.Contains(t, buf.String(), "failed to shut down tracer provider")
	assert.Contains(t, buf.String(), "collector unreachable")
}

func TestShutdown_Clean(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	tp, err := InitTracerProvider("test-app", &config.TraceConfig{Exporter: "none"}, nil)
	require.NoError(t, err)
	Shutdown(context.Background(), tp, logger)

	assert.Zero(t, buf.Len())
}
