package chatcompletion

import (
	"strings"

	"github.com/inspirepan/chatcore"
)

// ReasoningHandler abstracts provider-specific reasoning handling for
// OpenAI-compatible endpoints.
type ReasoningHandler interface {
	// ConvertThinkingToExtra converts the thinking parts of one assistant
	// message into an extra field. key is empty when the provider does not
	// accept reasoning on input; degradedText is prepended to the content
	// for thinking produced by another model.
	ConvertThinkingToExtra(parts []chatcore.ThinkingPart, targetModel string) (key string, value any, degradedText string)

	// ExtractThinking returns the thinking text carried by a streaming delta.
	ExtractThinking(delta map[string]any) (text string, isThinking bool)

	// FlushThinking returns the thinking accumulated since the last flush.
	FlushThinking() []chatcore.ThinkingPart
}

// NoOpReasoningHandler ignores reasoning entirely.
type NoOpReasoningHandler struct{}

func (NoOpReasoningHandler) ConvertThinkingToExtra([]chatcore.ThinkingPart, string) (string, any, string) {
	return "", nil, ""
}

func (NoOpReasoningHandler) ExtractThinking(map[string]any) (string, bool) { return "", false }

func (NoOpReasoningHandler) FlushThinking() []chatcore.ThinkingPart { return nil }

// reasoningKeys are the delta fields OpenAI-compatible servers use for
// thinking text.
var reasoningKeys = []string{"reasoning_content", "reasoning"}

// DefaultReasoningHandler reads reasoning_content (or reasoning) from
// deltas and sends same-model thinking back as reasoning_content.
type DefaultReasoningHandler struct {
	modelName string
	buf       strings.Builder
}

func NewDefaultReasoningHandler(modelName string) *DefaultReasoningHandler {
	return &DefaultReasoningHandler{modelName: modelName}
}

func (h *DefaultReasoningHandler) ConvertThinkingToExtra(parts []chatcore.ThinkingPart, targetModel string) (string, any, string) {
	var reasoning, degraded strings.Builder
	for _, p := range parts {
		if p.Thinking == "" {
			continue
		}
		if p.ModelName != "" && p.ModelName != targetModel {
			degraded.WriteString(p.Thinking)
			continue
		}
		reasoning.WriteString(p.Thinking)
	}
	if reasoning.Len() == 0 {
		return "", nil, degraded.String()
	}
	return reasoningKeys[0], reasoning.String(), degraded.String()
}

func (h *DefaultReasoningHandler) ExtractThinking(delta map[string]any) (string, bool) {
	for _, k := range reasoningKeys {
		if s, ok := delta[k].(string); ok && s != "" {
			h.buf.WriteString(s)
			return s, true
		}
	}
	return "", false
}

func (h *DefaultReasoningHandler) FlushThinking() []chatcore.ThinkingPart {
	if h.buf.Len() == 0 {
		return nil
	}
	part := chatcore.ThinkingPart{Thinking: h.buf.String(), ModelName: h.modelName}
	h.buf.Reset()
	return []chatcore.ThinkingPart{part}
}
