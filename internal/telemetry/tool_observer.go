package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/inspirepan/chatcore/registry"
)

// ToolObserver records registry executions as a counter, a latency
// histogram and one span per invocation.
type ToolObserver struct {
	tracer trace.Tracer

	invocations metric.Int64Counter
	latency     metric.Float64Histogram
}

// NewToolObserver creates a tool observer bound to the provided meter/tracer.
func NewToolObserver(meter metric.Meter, tracer trace.Tracer) (*ToolObserver, error) {
	invocations, err := meter.Int64Counter(
		"chatcore.tool.invocations",
		metric.WithDescription("Number of tool invocations"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		"chatcore.tool.latency",
		metric.WithDescription("Tool latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return &ToolObserver{
		tracer:      tracer,
		invocations: invocations,
		latency:     latency,
	}, nil
}

// ObserveInvoke records one invocation result.
func (o *ToolObserver) ObserveInvoke(ctx context.Context, obs registry.InvokeObservation) {
	if o == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("tool_id", obs.ToolID),
		attribute.Bool("success", obs.Err == nil),
	}
	code := errorCode(obs.Err)
	if code != "" {
		attrs = append(attrs, attribute.String("error_code", code))
	}

	options := metric.WithAttributes(attrs...)
	o.invocations.Add(ctx, 1, options)
	o.latency.Record(ctx, obs.Duration.Seconds(), options)

	if o.tracer == nil {
		return
	}
	end := time.Now()
	_, span := o.tracer.Start(ctx, "tool.invoke",
		trace.WithAttributes(attrs...),
		trace.WithTimestamp(end.Add(-obs.Duration)),
	)
	if obs.Err != nil {
		span.RecordError(obs.Err)
		span.SetStatus(codes.Error, code)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(end))
}

func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, registry.ErrInvalidInput):
		return "invalid_input"
	default:
		return "execution_failed"
	}
}

var _ registry.Observer = (*ToolObserver)(nil)
