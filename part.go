package chatcore

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PartType describes the kind of content in a part.
type PartType string

const (
	PartText     PartType = "text"
	PartThinking PartType = "thinking"
	PartImage    PartType = "image"
	PartToolCall PartType = "tool_call"
)

// Part is a structured message fragment.
type Part interface {
	partType() PartType
}

// TextPart represents text content.
type TextPart struct {
	Text string `json:"text"`
}

func (TextPart) partType() PartType { return PartText }

func (p TextPart) MarshalJSON() ([]byte, error) {
	type alias TextPart
	return json.Marshal(struct {
		Type PartType `json:"type"`
		alias
	}{PartText, alias(p)})
}

// ThinkingPart represents model reasoning content.
type ThinkingPart struct {
	ID       string `json:"id,omitempty"`
	Thinking string `json:"thinking,omitempty"`
	// Signature is the opaque replay token some providers attach to reasoning.
	Signature string `json:"signature,omitempty"`
	// ModelName identifies the source model so foreign reasoning can be degraded to text.
	ModelName string `json:"model_name,omitempty"`
}

func (ThinkingPart) partType() PartType { return PartThinking }

func (p ThinkingPart) MarshalJSON() ([]byte, error) {
	type alias ThinkingPart
	return json.Marshal(struct {
		Type PartType `json:"type"`
		alias
	}{PartThinking, alias(p)})
}

// ImagePart represents inline image content such as a page screenshot.
type ImagePart struct {
	MimeType string `json:"mime_type"`
	DataB64  string `json:"data_b64"`
}

func (ImagePart) partType() PartType { return PartImage }

func (p ImagePart) MarshalJSON() ([]byte, error) {
	type alias ImagePart
	return json.Marshal(struct {
		Type PartType `json:"type"`
		alias
	}{PartImage, alias(p)})
}

// DataURL renders the image as a data: URL.
func (p ImagePart) DataURL() string {
	return "data:" + p.MimeType + ";base64," + p.DataB64
}

// ParseDataURL splits a base64 data: URL into an ImagePart.
func ParseDataURL(url string) (ImagePart, bool) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return ImagePart{}, false
	}
	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return ImagePart{}, false
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok || mime == "" {
		return ImagePart{}, false
	}
	return ImagePart{MimeType: mime, DataB64: data}, true
}

// ToolCallPart represents a tool call request.
type ToolCallPart struct {
	CallID   string          `json:"call_id"`
	Name     string          `json:"name"`
	ArgsJSON json.RawMessage `json:"args_json,omitempty"`
}

func (ToolCallPart) partType() PartType { return PartToolCall }

func (p ToolCallPart) MarshalJSON() ([]byte, error) {
	type alias ToolCallPart
	return json.Marshal(struct {
		Type PartType `json:"type"`
		alias
	}{PartToolCall, alias(p)})
}

// UnmarshalPart decodes a JSON object into a concrete Part type.
func UnmarshalPart(data []byte) (Part, error) {
	var raw struct {
		Type PartType `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	var (
		p   Part
		err error
	)
	switch raw.Type {
	case PartText:
		p, err = decodePart[TextPart](data)
	case PartThinking:
		p, err = decodePart[ThinkingPart](data)
	case PartImage:
		p, err = decodePart[ImagePart](data)
	case PartToolCall:
		p, err = decodePart[ToolCallPart](data)
	default:
		return nil, fmt.Errorf("unknown part type: %s", raw.Type)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func decodePart[T Part](data []byte) (T, error) {
	var p T
	err := json.Unmarshal(data, &p)
	return p, err
}

func unmarshalParts(rawParts []json.RawMessage) ([]Part, error) {
	parts := make([]Part, 0, len(rawParts))
	for _, raw := range rawParts {
		p, err := UnmarshalPart(raw)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// TextOf concatenates the text parts in order.
func TextOf(parts []Part) string {
	var b strings.Builder
	for _, part := range parts {
		switch p := part.(type) {
		case TextPart:
			b.WriteString(p.Text)
		case *TextPart:
			b.WriteString(p.Text)
		}
	}
	return b.String()
}
