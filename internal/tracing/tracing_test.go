package tracing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"disabled ignores fields", Config{SamplingRate: 7, ExporterType: "zipkin"}, nil},
		{"defaults", Config{Enabled: true, ServiceName: "aria-api", SamplingRate: 0.1}, nil},
		{"grpc", Config{Enabled: true, ServiceName: "aria-api", ExporterType: ExporterOTLPGRPC, SamplingRate: 1}, nil},
		{"missing service", Config{Enabled: true, SamplingRate: 0.1}, ErrMissingServiceName},
		{"negative rate", Config{Enabled: true, ServiceName: "aria-api", SamplingRate: -0.1}, ErrInvalidSamplingRate},
		{"rate above one", Config{Enabled: true, ServiceName: "aria-api", SamplingRate: 1.5}, ErrInvalidSamplingRate},
		{"unknown exporter", Config{Enabled: true, ServiceName: "aria-api", ExporterType: "jaeger"}, ErrUnsupportedExporter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{ServiceName: "aria-api"}, discardLogger())
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if p.tp != nil {
		t.Error("disabled provider must not install an SDK provider")
	}
	if p.Tracer("aria") == nil {
		t.Error("expected fallback tracer")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown on disabled provider: %v", err)
	}
}

func TestNewProvider_RejectsInvalidConfig(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ServiceName: "aria-api", ExporterType: "stdout"}, discardLogger())
	if !errors.Is(err, ErrUnsupportedExporter) {
		t.Errorf("expected ErrUnsupportedExporter, got %v", err)
	}
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		rate float64
		root string
	}{
		{1, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		desc := newSampler(tt.rate).Description()
		if !strings.HasPrefix(desc, "ParentBased{root:"+tt.root) {
			t.Errorf("rate %g: unexpected sampler %s", tt.rate, desc)
		}
	}
}

// installProvider builds a Provider that records into memory and restores
// the previous global provider afterwards.
func installProvider(t *testing.T, cfg Config) (*Provider, *tracetest.SpanRecorder) {
	t.Helper()
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	rec := tracetest.NewSpanRecorder()
	p, err := newProvider(context.Background(), cfg, sdktrace.WithSpanProcessor(rec))
	if err != nil {
		t.Fatalf("newProvider failed: %v", err)
	}
	p.logger = discardLogger()
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p, rec
}

func TestProvider_Resource(t *testing.T) {
	_, rec := installProvider(t, Config{
		Enabled:      true,
		ServiceName:  "aria-api",
		Environment:  "staging",
		SamplingRate: 1,
	})

	_, end := StartSpan(context.Background(), "prioritization.Analyze")
	end(nil)

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	res := attribute.NewSet(spans[0].Resource().Attributes()...)
	for key, want := range map[attribute.Key]string{
		semconv.ServiceNameKey:    "aria-api",
		semconv.ServiceVersionKey: "dev",
		"environment":             "staging",
	} {
		if v, ok := res.Value(key); !ok || v.AsString() != want {
			t.Errorf("resource %s = %q, want %q", key, v.AsString(), want)
		}
	}
}

func TestProvider_NeverSampleDropsRootSpans(t *testing.T) {
	_, rec := installProvider(t, Config{Enabled: true, ServiceName: "aria-api", SamplingRate: 0})

	_, end := StartDBSpan(context.Background(), "sessions", DBOperationQuery)
	end(nil)

	if n := len(rec.Ended()); n != 0 {
		t.Errorf("expected no sampled spans, got %d", n)
	}
}
