package tracing

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInstallExportsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := install(exp)
	defer tp.Shutdown(context.Background())

	_, span := otel.Tracer("test").Start(context.Background(), "alert.poll")
	span.End()

	// The in-memory exporter drops its spans on shutdown, so flush instead.
	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "alert.poll" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	var service string
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	if service != ServiceName {
		t.Errorf("service.name = %q, want %q", service, ServiceName)
	}
}

func TestInstallSetsPropagator(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := install(exp)
	defer tp.Shutdown(context.Background())

	ctx, span := otel.Tracer("test").Start(context.Background(), "outbound")
	defer span.End()

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if carrier.Get("traceparent") == "" {
		t.Error("traceparent header not injected")
	}
}

func TestInitWithoutCollector(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://127.0.0.1:1")

	shutdown, err := Init(context.Background())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	shutdown(ctx)
}
