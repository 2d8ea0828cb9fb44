package chatcore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxSteps bounds the provider round-trips of a tool-enabled turn.
const DefaultMaxSteps = 5

// TurnRequest configures a multi-step turn.
type TurnRequest struct {
	Provider     Provider
	SystemPrompt string
	History      []Message
	Tools        []Tool
	NativeTools  []NativeTool
	ToolChoice   ToolChoice
	// MaxSteps defaults to DefaultMaxSteps.
	MaxSteps int
}

// StepFinish describes a completed step of a turn.
type StepFinish struct {
	Step       int
	Messages   StepResult
	Usage      *Usage
	StopReason StopReason
	Duration   time.Duration
}

// TurnResult accumulates the output of every step of a turn.
type TurnResult struct {
	Messages   []Message
	Steps      int
	Usage      Usage
	StopReason StopReason
	// Exhausted is set when the step ceiling was reached while the model
	// still requested tools. It is a normal stop, not a failure.
	Exhausted bool
}

// Text returns the text of the last assistant message.
func (r TurnResult) Text() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if a, ok := r.Messages[i].(AssistantMessage); ok {
			return TextOf(a.Parts)
		}
	}
	return ""
}

// Turn runs steps until the model stops requesting tools or MaxSteps is
// reached. Step N+1 is only issued once every tool result of step N is
// available. On cancellation the messages of completed steps, and the
// partial messages of the interrupted step, are returned along with
// ctx.Err().
func Turn(ctx context.Context, req TurnRequest, opts ...Option) (TurnResult, error) {
	if req.Provider == nil {
		return TurnResult{}, ErrNoProvider
	}
	maxSteps := req.MaxSteps
	if maxSteps == 0 {
		maxSteps = DefaultMaxSteps
	}
	if maxSteps < 0 {
		return TurnResult{}, ErrInvalidMaxSteps
	}
	cfg := newRunConfig(opts)
	if info, ok := StepInfoFrom(ctx); !ok || info.TurnID == "" {
		ctx = withStepInfo(ctx, StepInfo{TurnID: uuid.NewString()})
	}

	history := make([]Message, len(req.History), len(req.History)+2*maxSteps)
	copy(history, req.History)

	var result TurnResult
	for step := 1; step <= maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if cfg.onStepStart != nil {
			cfg.onStepStart(step)
		}

		start := time.Now()
		res, err := runStep(ctx, StepRequest{
			Provider:     req.Provider,
			SystemPrompt: req.SystemPrompt,
			History:      history,
			Tools:        req.Tools,
			NativeTools:  req.NativeTools,
			ToolChoice:   req.ToolChoice,
		}, cfg, step)

		result.Messages = append(result.Messages, res...)
		history = append(history, res...)
		if len(res) > 0 {
			result.Steps = step
			finish := StepFinish{Step: step, Messages: res, Duration: time.Since(start)}
			if a, ok := res.Assistant(); ok {
				result.Usage.Add(a.Usage)
				result.StopReason = a.StopReason
				finish.Usage = a.Usage
				finish.StopReason = a.StopReason
			}
			if cfg.onStepFinish != nil {
				cfg.onStepFinish(finish)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				result.StopReason = StopAborted
			}
			return result, err
		}

		if len(res.ToolResults()) == 0 {
			return result, nil
		}
		if step == maxSteps {
			result.Exhausted = true
		}
	}
	return result, nil
}
