// Package uimessage converts between the browser's UI message format and
// the conversation model, and encodes turn events as a UI message stream.
package uimessage

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/inspirepan/chatcore"
	"github.com/inspirepan/chatcore/invocation"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a chat message as exchanged with the browser. Parts are kept
// raw; they are classified when converted.
type Message struct {
	ID       string            `json:"id,omitempty"`
	Role     string            `json:"role"`
	Parts    []json.RawMessage `json:"parts,omitempty"`
	Content  string            `json:"content,omitempty"`
	Metadata json.RawMessage   `json:"metadata,omitempty"`
}

// Text returns the text content of m, falling back to the legacy content
// field when m carries no text parts.
func (m Message) Text() string {
	if s := invocation.TextContent(m.Parts); s != "" {
		return s
	}
	return m.Content
}

// SystemPrompt joins the text of every system message.
func SystemPrompt(msgs []Message) string {
	var parts []string
	for _, m := range msgs {
		if m.Role == RoleSystem {
			if s := strings.TrimSpace(m.Text()); s != "" {
				parts = append(parts, s)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

// ToModel converts UI messages into conversation history. System messages
// are skipped (see SystemPrompt). Tool invocations that never reached a
// terminal state are dropped since a call without a result cannot be
// replayed to a provider.
func ToModel(msgs []Message) []chatcore.Message {
	var out []chatcore.Message
	for _, m := range msgs {
		switch m.Role {
		case RoleUser:
			if um, ok := userToModel(m); ok {
				out = append(out, um)
			}
		case RoleAssistant:
			out = append(out, assistantToModel(m)...)
		}
	}
	return out
}

func userToModel(m Message) (chatcore.UserMessage, bool) {
	var parts []chatcore.Part
	for _, raw := range m.Parts {
		if !gjson.ValidBytes(raw) {
			continue
		}
		p := gjson.ParseBytes(raw)
		switch p.Get("type").String() {
		case "text":
			parts = append(parts, chatcore.TextPart{Text: p.Get("text").String()})
		case "file":
			if !strings.HasPrefix(p.Get("mediaType").String(), "image/") {
				continue
			}
			if img, ok := chatcore.ParseDataURL(p.Get("url").String()); ok {
				parts = append(parts, img)
			}
		}
	}
	if len(parts) == 0 && m.Content != "" {
		parts = append(parts, chatcore.TextPart{Text: m.Content})
	}
	if len(parts) == 0 {
		return chatcore.UserMessage{}, false
	}
	return chatcore.UserMessage{Parts: parts}, true
}

// assistantToModel splits an assistant message at its step boundaries.
// Each step becomes an AssistantMessage followed by the results of the
// tool calls first seen in that step.
func assistantToModel(m Message) []chatcore.Message {
	merged := map[string]invocation.Invocation{}
	for _, inv := range invocation.Normalize(m.Parts) {
		merged[inv.ToolCallID] = inv
	}

	var out []chatcore.Message
	emitted := map[string]bool{}
	for _, seg := range steps(m.Parts) {
		var (
			am      chatcore.AssistantMessage
			results []chatcore.Message
		)
		for _, raw := range seg {
			if !gjson.ValidBytes(raw) {
				continue
			}
			p := gjson.ParseBytes(raw)
			switch p.Get("type").String() {
			case "text":
				if s := p.Get("text").String(); s != "" {
					am.Parts = append(am.Parts, chatcore.TextPart{Text: s})
				}
			case "reasoning":
				if s := p.Get("text").String(); s != "" {
					am.Parts = append(am.Parts, chatcore.ThinkingPart{Thinking: s})
				}
			}
		}
		for _, local := range invocation.Normalize(seg) {
			inv := merged[local.ToolCallID]
			if emitted[inv.ToolCallID] || !inv.State.Terminal() {
				continue
			}
			emitted[inv.ToolCallID] = true
			am.Parts = append(am.Parts, chatcore.ToolCallPart{
				CallID:   inv.ToolCallID,
				Name:     inv.ToolName,
				ArgsJSON: argsOf(inv.Input),
			})
			results = append(results, resultOf(inv))
		}
		if len(am.Parts) == 0 {
			continue
		}
		out = append(out, am)
		out = append(out, results...)
	}
	return out
}

func steps(parts []json.RawMessage) [][]json.RawMessage {
	var (
		out [][]json.RawMessage
		cur []json.RawMessage
	)
	for _, raw := range parts {
		if gjson.GetBytes(raw, "type").String() == "step-start" {
			if len(cur) > 0 {
				out = append(out, cur)
			}
			cur = nil
			continue
		}
		cur = append(cur, raw)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func argsOf(input json.RawMessage) json.RawMessage {
	if len(input) == 0 || !gjson.ValidBytes(input) || !gjson.ParseBytes(input).IsObject() {
		return json.RawMessage(`{}`)
	}
	return input
}

func resultOf(inv invocation.Invocation) chatcore.ToolResultMessage {
	if inv.State == invocation.StateOutputError {
		return chatcore.ToolResultMessage{
			CallID:  inv.ToolCallID,
			Name:    inv.ToolName,
			IsError: true,
			Parts:   []chatcore.Part{chatcore.TextPart{Text: inv.ErrorText}},
		}
	}
	return chatcore.ToolResultMessage{
		CallID: inv.ToolCallID,
		Name:   inv.ToolName,
		Parts:  []chatcore.Part{chatcore.TextPart{Text: string(inv.Output)}},
		Output: inv.Output,
	}
}

// FromModel renders the messages produced by a turn as the parts of one
// assistant UI message, using split tool-call / tool-result parts.
func FromModel(msgs []chatcore.Message) []json.RawMessage {
	var parts []json.RawMessage
	add := func(fields ...field) {
		if b, err := build(fields...); err == nil {
			parts = append(parts, b)
		}
	}
	for _, msg := range msgs {
		switch m := msg.(type) {
		case chatcore.AssistantMessage:
			add(field{"type", "step-start"})
			for _, part := range m.Parts {
				switch p := part.(type) {
				case chatcore.ThinkingPart:
					add(field{"type", "reasoning"}, field{"text", p.Thinking})
				case chatcore.TextPart:
					add(field{"type", "text"}, field{"text", p.Text})
				case chatcore.ToolCallPart:
					add(field{"type", "tool-call"}, field{"toolCallId", p.CallID}, field{"toolName", p.Name}, field{"input", argsOf(p.ArgsJSON)})
				}
			}
		case chatcore.ToolResultMessage:
			if m.Output == nil {
				add(field{"type", "tool-error"}, field{"toolCallId", m.CallID}, field{"toolName", m.Name}, field{"errorText", errorText(m)})
				continue
			}
			add(field{"type", "tool-result"}, field{"toolCallId", m.CallID}, field{"toolName", m.Name}, field{"output", m.Output})
		}
	}
	return parts
}

func errorText(m chatcore.ToolResultMessage) string {
	if s := chatcore.TextOf(m.Parts); s != "" {
		return s
	}
	return "Tool execution failed"
}

// NewAssistant wraps the messages of a turn into an assistant UI message.
func NewAssistant(id string, msgs []chatcore.Message) Message {
	return Message{ID: id, Role: RoleAssistant, Parts: FromModel(msgs)}
}

type field struct {
	key string
	val any
}

// build assembles a JSON object in field order. json.RawMessage values are
// embedded verbatim.
func build(fields ...field) (json.RawMessage, error) {
	b := []byte(`{}`)
	var err error
	for _, f := range fields {
		switch v := f.val.(type) {
		case json.RawMessage:
			b, err = sjson.SetRawBytes(b, f.key, v)
		default:
			b, err = sjson.SetBytes(b, f.key, v)
		}
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}
