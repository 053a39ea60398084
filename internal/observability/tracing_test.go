package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("REGULON_TRACING_ENABLED", "TRUE")
	t.Setenv("REGULON_TRACING_EXPORTER", "OTLP")
	t.Setenv("REGULON_TRACING_SERVICE_NAME", "")
	t.Setenv("REGULON_TRACING_SAMPLE_RATIO", "1.5")
	t.Setenv("REGULON_OTLP_ENDPOINT", "collector:4317")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.Endpoint != "collector:4317" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.ServiceName != "regulon" {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}
	if cfg.SampleRatio != 1 {
		t.Fatalf("out-of-range ratio must fall back to 1, got %v", cfg.SampleRatio)
	}
}

func TestInitTracingStdoutExportsSpans(t *testing.T) {
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	var buf bytes.Buffer
	ctx := context.Background()
	shutdown, err := InitTracing(ctx, TracingConfig{
		Enabled:     true,
		ServiceName: "regulon-test",
		Exporter:    "stdout",
		SampleRatio: 1,
		Output:      &buf,
	}, nil)
	if err != nil {
		t.Fatalf("init tracing: %v", err)
	}

	_, span := otel.Tracer("test").Start(ctx, "simulate.Run")
	span.End()
	ShutdownWithTimeout(ctx, shutdown, nil)

	if !strings.Contains(buf.String(), "simulate.Run") {
		t.Fatalf("expected exported span, got:\n%s", buf.String())
	}
}

func TestInitTracingDisabled(t *testing.T) {
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("init tracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown: %v", err)
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	if _, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil); err == nil {
		t.Fatal("expected unsupported exporter error")
	}
}
