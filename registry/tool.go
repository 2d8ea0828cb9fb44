package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/inspirepan/chatcore"
)

// Tool adapts a registry definition into a chatcore.Tool. The model sees
// the definition id as the function name.
type Tool struct {
	reg *Registry
	def Definition
}

// Tool returns the adapter for id.
func (r *Registry) Tool(id string) (Tool, bool) {
	def, ok := r.Get(id)
	if !ok {
		return Tool{}, false
	}
	return Tool{reg: r, def: def}, true
}

// Tools returns adapters for ids in order, skipping unknown ids.
func (r *Registry) Tools(ids ...string) []chatcore.Tool {
	out := make([]chatcore.Tool, 0, len(ids))
	for _, id := range ids {
		if t, ok := r.Tool(id); ok {
			out = append(out, t)
		}
	}
	return out
}

func (t Tool) Spec() chatcore.ToolSpec {
	return chatcore.ToolSpec{
		Name:        t.def.ID,
		Description: t.def.Description,
		Parameters:  parametersOf(t.def),
	}
}

func (t Tool) Parallel() bool { return t.def.Parallel }

// Execute runs the tool through the registry. Execution failures become a
// result carrying {error:true,message}; only cancellation is returned as
// an error so the step can account for it.
func (t Tool) Execute(ctx context.Context, call chatcore.ToolCallPart) (chatcore.ToolResult, error) {
	input := map[string]any{}
	if len(call.ArgsJSON) > 0 && string(call.ArgsJSON) != "null" {
		if err := json.Unmarshal(call.ArgsJSON, &input); err != nil {
			return chatcore.FailureResult(call, fmt.Sprintf("invalid tool arguments: %v", err)), nil
		}
	}

	out, err := t.reg.Execute(ctx, t.def.ID, input)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return chatcore.ToolResult{}, err
		}
		return chatcore.FailureResult(call, FailureMessage(err)), nil
	}

	data, err := json.Marshal(out)
	if err != nil {
		return chatcore.FailureResult(call, fmt.Sprintf("tool output is not JSON: %v", err)), nil
	}
	return chatcore.ToolResult{
		CallID: call.CallID,
		Name:   call.Name,
		Parts:  []chatcore.Part{chatcore.TextPart{Text: string(data)}},
		Output: data,
	}, nil
}

// FailureMessage returns the user-facing message of an execution error.
func FailureMessage(err error) string {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Err.Error()
	}
	return err.Error()
}
