package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/inspirepan/chatcore"
)

// TurnTracer wraps chat turns in spans and counts their steps.
type TurnTracer struct {
	tracer trace.Tracer

	turns    metric.Int64Counter
	steps    metric.Int64Histogram
	duration metric.Float64Histogram
}

// TurnInfo labels a turn.
type TurnInfo struct {
	Provider string
	Model    string
	ToolMode string
	Tools    int
}

// NewTurnTracer creates a turn tracer bound to the provided meter/tracer.
func NewTurnTracer(meter metric.Meter, tracer trace.Tracer) (*TurnTracer, error) {
	turns, err := meter.Int64Counter(
		"chatcore.turn.count",
		metric.WithDescription("Number of chat turns"),
	)
	if err != nil {
		return nil, err
	}
	steps, err := meter.Int64Histogram(
		"chatcore.turn.steps",
		metric.WithDescription("Provider round-trips per turn"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"chatcore.turn.duration",
		metric.WithDescription("Turn duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return &TurnTracer{tracer: tracer, turns: turns, steps: steps, duration: duration}, nil
}

// Start opens a turn span. The returned function ends it with the turn's
// outcome and must be called exactly once.
func (t *TurnTracer) Start(ctx context.Context, info TurnInfo) (context.Context, func(*chatcore.TurnResult, error)) {
	if t == nil {
		return ctx, func(*chatcore.TurnResult, error) {}
	}
	attrs := []attribute.KeyValue{
		attribute.String("provider", info.Provider),
		attribute.String("model", info.Model),
		attribute.String("tool_mode", info.ToolMode),
		attribute.Int("tools", info.Tools),
	}
	start := time.Now()
	ctx, span := t.tracer.Start(ctx, "chat.turn", trace.WithAttributes(attrs...))
	return ctx, func(res *chatcore.TurnResult, err error) {
		var steps int
		var stop chatcore.StopReason
		if res != nil {
			steps = res.Steps
			stop = res.StopReason
			span.SetAttributes(
				attribute.Int("steps", res.Steps),
				attribute.Bool("exhausted", res.Exhausted),
				attribute.Int("input_tokens", res.Usage.InputTokens),
				attribute.Int("output_tokens", res.Usage.OutputTokens),
			)
		}
		outcome := append(attrs, attribute.String("stop_reason", string(stop)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()

		// ctx may already be canceled by the turn timeout.
		mctx := context.WithoutCancel(ctx)
		options := metric.WithAttributes(outcome...)
		t.turns.Add(mctx, 1, options)
		t.steps.Record(mctx, int64(steps), options)
		t.duration.Record(mctx, time.Since(start).Seconds(), options)
	}
}
