package chatcore

import (
	"context"
	"encoding/json"
)

// ToolSpec is the declarative tool schema exposed to the model.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolResult is the normalized tool execution result.
type ToolResult struct {
	CallID  string
	Name    string
	Parts   []Part
	Output  json.RawMessage
	IsError bool
	Details map[string]any
}

// Tool is an executable function tool.
type Tool interface {
	Spec() ToolSpec
	Execute(ctx context.Context, call ToolCallPart) (ToolResult, error)
}

// NativeTool names a capability executed by the provider itself.
type NativeTool string

const (
	NativeGoogleSearch  NativeTool = "google_search"
	NativeURLContext    NativeTool = "url_context"
	NativeCodeExecution NativeTool = "code_execution"
)

// ToolChoice is the tool-use policy sent with a request.
type ToolChoice string

const (
	ToolChoiceAuto ToolChoice = "auto"
	ToolChoiceNone ToolChoice = "none"
)

func collectToolSpecs(tools []Tool) []ToolSpec {
	specs := make([]ToolSpec, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, t.Spec())
	}
	return specs
}
