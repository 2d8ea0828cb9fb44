package chatcore

import (
	"context"
	"time"
)

// DefaultToolTimeout bounds a single tool execution when no timeout is configured.
const DefaultToolTimeout = 30 * time.Second

// StepRequest configures a single provider round-trip.
type StepRequest struct {
	Provider     Provider
	SystemPrompt string
	History      []Message
	Tools        []Tool
	NativeTools  []NativeTool
	// ToolChoice defaults to auto when any tool is attached and none otherwise.
	ToolChoice ToolChoice
}

// StepResult holds the assistant message followed by one tool result
// message per tool call, in call order.
type StepResult []Message

// Assistant returns the assistant message of the step.
func (r StepResult) Assistant() (AssistantMessage, bool) {
	for _, m := range r {
		if a, ok := m.(AssistantMessage); ok {
			return a, true
		}
	}
	return AssistantMessage{}, false
}

// ToolResults returns the tool result messages of the step.
func (r StepResult) ToolResults() []ToolResultMessage {
	var out []ToolResultMessage
	for _, m := range r {
		if tr, ok := m.(ToolResultMessage); ok {
			out = append(out, tr)
		}
	}
	return out
}

// StepInfo identifies the turn and step a provider request belongs to.
// Standalone steps carry no TurnID.
type StepInfo struct {
	TurnID string
	Step   int
}

type stepInfoKey struct{}

// StepInfoFrom returns the StepInfo attached to a provider request context.
func StepInfoFrom(ctx context.Context) (StepInfo, bool) {
	info, ok := ctx.Value(stepInfoKey{}).(StepInfo)
	return info, ok
}

func withStepInfo(ctx context.Context, info StepInfo) context.Context {
	return context.WithValue(ctx, stepInfoKey{}, info)
}

// Option configures Step and Turn.
type Option func(*runConfig)

type runConfig struct {
	stepEmitter
	toolTimeout  time.Duration
	onStepStart  func(step int)
	onStepFinish func(StepFinish)
}

func newRunConfig(opts []Option) runConfig {
	cfg := runConfig{toolTimeout: DefaultToolTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithOnDelta registers a callback for streaming deltas.
func WithOnDelta(fn func(MessageDelta)) Option {
	return func(c *runConfig) { c.onDelta = fn }
}

// WithOnMessage registers a callback for every completed message.
func WithOnMessage(fn func(Message)) Option {
	return func(c *runConfig) { c.onMessage = fn }
}

// WithToolTimeout bounds each tool execution. Non-positive values disable the bound.
func WithToolTimeout(d time.Duration) Option {
	return func(c *runConfig) { c.toolTimeout = d }
}

// WithOnStepStart registers a callback invoked before each provider request of a turn.
func WithOnStepStart(fn func(step int)) Option {
	return func(c *runConfig) { c.onStepStart = fn }
}

// WithOnStepFinish registers a callback invoked after each step of a turn.
func WithOnStepFinish(fn func(StepFinish)) Option {
	return func(c *runConfig) { c.onStepFinish = fn }
}

// Step runs one provider round-trip and executes the tool calls it produced.
// On cancellation the partial result is returned together with ctx.Err().
func Step(ctx context.Context, req StepRequest, opts ...Option) (StepResult, error) {
	return runStep(ctx, req, newRunConfig(opts), 1)
}
