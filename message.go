package chatcore

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Role is the speaker role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is the canonical conversation unit.
type Message interface {
	role() Role
}

// RoleOf reports the role of m.
func RoleOf(m Message) Role {
	if m == nil {
		return ""
	}
	return m.role()
}

// UserMessage represents a user input message.
type UserMessage struct {
	Parts     []Part `json:"parts,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func (UserMessage) role() Role { return RoleUser }

func (m UserMessage) MarshalJSON() ([]byte, error) {
	type alias UserMessage
	return encodeTagged(RoleUser, alias(m))
}

// AssistantMessage represents an assistant response message.
type AssistantMessage struct {
	Parts      []Part     `json:"parts,omitempty"`
	Timestamp  int64      `json:"timestamp"`
	Usage      *Usage     `json:"usage,omitempty"`
	StopReason StopReason `json:"stop_reason,omitempty"`
}

func (AssistantMessage) role() Role { return RoleAssistant }

func (m AssistantMessage) MarshalJSON() ([]byte, error) {
	type alias AssistantMessage
	return encodeTagged(RoleAssistant, alias(m))
}

// ToolCalls returns the tool call parts of m in emission order.
func (m AssistantMessage) ToolCalls() []ToolCallPart {
	var calls []ToolCallPart
	for _, part := range m.Parts {
		switch p := part.(type) {
		case ToolCallPart:
			calls = append(calls, p)
		case *ToolCallPart:
			calls = append(calls, *p)
		}
	}
	return calls
}

// ToolResultMessage represents a tool execution result message.
type ToolResultMessage struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	IsError bool   `json:"is_error,omitempty"`
	Parts   []Part `json:"parts,omitempty"`
	// Output is the structured tool output rendered by clients.
	Output    json.RawMessage `json:"output,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Details   map[string]any  `json:"details,omitempty"`
}

func (ToolResultMessage) role() Role { return RoleTool }

func (m ToolResultMessage) MarshalJSON() ([]byte, error) {
	type alias ToolResultMessage
	return encodeTagged(RoleTool, alias(m))
}

// StopReason explains why generation stopped.
type StopReason string

const (
	StopStop    StopReason = "stop"
	StopLength  StopReason = "length"
	StopToolUse StopReason = "tool_use"
	StopError   StopReason = "error"
	StopAborted StopReason = "aborted"
)

// Usage reports token accounting.
type Usage struct {
	InputTokens      int `json:"input_tokens"`
	OutputTokens     int `json:"output_tokens"`
	CachedReadTokens int `json:"cached_read_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates o into u.
func (u *Usage) Add(o *Usage) {
	if u == nil || o == nil {
		return
	}
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.CachedReadTokens += o.CachedReadTokens
	u.TotalTokens += o.TotalTokens
}

func (m *UserMessage) UnmarshalJSON(data []byte) error {
	type alias UserMessage
	return decodeTagged(data, (*alias)(m), &m.Parts)
}

func (m *AssistantMessage) UnmarshalJSON(data []byte) error {
	type alias AssistantMessage
	return decodeTagged(data, (*alias)(m), &m.Parts)
}

func (m *ToolResultMessage) UnmarshalJSON(data []byte) error {
	type alias ToolResultMessage
	return decodeTagged(data, (*alias)(m), &m.Parts)
}

// encodeTagged marshals v and adds the "role" field.
func encodeTagged(role Role, v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(b, "role", role)
}

// decodeTagged fills target from data without its "parts" array, then
// decodes that array into concrete Part values.
func decodeTagged(data []byte, target any, parts *[]Part) error {
	var raw struct {
		Parts []json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rest, err := sjson.DeleteBytes(data, "parts")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(rest, target); err != nil {
		return err
	}
	decoded, err := unmarshalParts(raw.Parts)
	if err != nil {
		return err
	}
	*parts = decoded
	return nil
}

// UnmarshalMessage decodes a role-tagged JSON object into its concrete
// Message type.
func UnmarshalMessage(data []byte) (Message, error) {
	var m Message
	var err error
	switch role := Role(gjson.GetBytes(data, "role").String()); role {
	case RoleUser:
		var um UserMessage
		err = json.Unmarshal(data, &um)
		m = um
	case RoleAssistant:
		var am AssistantMessage
		err = json.Unmarshal(data, &am)
		m = am
	case RoleTool:
		var tm ToolResultMessage
		err = json.Unmarshal(data, &tm)
		m = tm
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownRole, role)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}
