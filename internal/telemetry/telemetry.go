// Package telemetry records tool and turn signals into OpenTelemetry.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Scope is the instrumentation scope of every tracer and meter.
const Scope = "github.com/inspirepan/chatcore"

// Config selects where spans are exported.
type Config struct {
	ServiceName string
	// OTLPEndpoint is an OTLP/HTTP traces URL. Empty keeps the global
	// providers untouched.
	OTLPEndpoint string
}

// Setup installs a global tracer provider that batches spans to the OTLP
// endpoint. The returned function flushes and stops it.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if cfg.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
	if err != nil {
		return nil, fmt.Errorf("telemetry: otlp exporter: %w", err)
	}
	name := cfg.ServiceName
	if name == "" {
		name = "chatcore"
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Global builds the tool observer and turn tracer from the global
// providers.
func Global() (*ToolObserver, *TurnTracer, error) {
	meter := otel.GetMeterProvider().Meter(Scope)
	tracer := otel.GetTracerProvider().Tracer(Scope)
	tools, err := NewToolObserver(meter, tracer)
	if err != nil {
		return nil, nil, err
	}
	turns, err := NewTurnTracer(meter, tracer)
	if err != nil {
		return nil, nil, err
	}
	return tools, turns, nil
}
