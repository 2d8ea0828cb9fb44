package chatcompletion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/ssestream"

	"github.com/inspirepan/chatcore"
	"github.com/inspirepan/chatcore/providers/base"
)

// Stream implements chatcore.ProviderStream over a chat completion stream.
type Stream struct {
	providerName string
	modelName    string
	stream       *ssestream.Stream[openai.ChatCompletionChunk]
	debug        *base.DebugLogger

	reasoningHandler ReasoningHandler

	mu sync.Mutex

	done bool
	err  error

	pending []chatcore.ProviderUpdate

	text       strings.Builder
	toolCalls  map[int]*toolCallAccumulator
	stopReason chatcore.StopReason
	usage      *chatcore.Usage
}

type toolCallAccumulator struct {
	id        string
	synthetic bool
	name      string
	args      strings.Builder
}

func NewStream(
	providerName string,
	modelName string,
	stream *ssestream.Stream[openai.ChatCompletionChunk],
	handler ReasoningHandler,
	debug *base.DebugLogger,
) *Stream {
	if handler == nil {
		handler = NoOpReasoningHandler{}
	}
	return &Stream{
		providerName:     providerName,
		modelName:        modelName,
		stream:           stream,
		debug:            debug,
		reasoningHandler: handler,
		toolCalls:        make(map[int]*toolCallAccumulator),
	}
}

func (s *Stream) Next(ctx context.Context) (chatcore.ProviderUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) > 0 {
		return s.dequeue()
	}
	if s.done {
		return nil, io.EOF
	}
	if s.err != nil {
		return nil, s.err
	}

	for {
		select {
		case <-ctx.Done():
			// Finalize a partial message so the caller still sees a
			// coherent AssistantMessage before the step reports ctx.Err().
			if !s.done {
				s.finalize()
				if len(s.pending) > 0 {
					return s.dequeue()
				}
			}
			return nil, io.EOF
		default:
		}

		if !s.stream.Next() {
			if err := s.stream.Err(); err != nil {
				s.err = classifyError(err)
				return nil, s.err
			}
			s.finalize()
			if len(s.pending) > 0 {
				return s.dequeue()
			}
			return nil, io.EOF
		}

		s.processChunk(s.stream.Current())
		if len(s.pending) > 0 {
			return s.dequeue()
		}
	}
}

func (s *Stream) Close() error {
	if s.debug != nil {
		_ = s.debug.Close()
	}
	return s.stream.Close()
}

func (s *Stream) enqueue(up chatcore.ProviderUpdate) {
	s.pending = append(s.pending, up)
}

func (s *Stream) dequeue() (chatcore.ProviderUpdate, error) {
	up := s.pending[0]
	s.pending = s.pending[1:]
	s.logDebug("update", up)
	return up, nil
}

func (s *Stream) logDebug(kind string, data any) {
	if s.debug == nil {
		return
	}
	rec := base.NewDebugRecord(kind, data)
	rec.Provider = s.providerName
	rec.Model = s.modelName
	_ = s.debug.Log(rec)
}

func (s *Stream) processChunk(chunk openai.ChatCompletionChunk) {
	s.logDebug("chunk", chunk.RawJSON())

	if chunk.Usage.TotalTokens > 0 {
		s.usage = &chatcore.Usage{
			InputTokens:      int(chunk.Usage.PromptTokens),
			OutputTokens:     int(chunk.Usage.CompletionTokens),
			TotalTokens:      int(chunk.Usage.TotalTokens),
			CachedReadTokens: int(chunk.Usage.PromptTokensDetails.CachedTokens),
		}
	}

	if len(chunk.Choices) == 0 {
		return
	}
	choice := chunk.Choices[0]
	delta := choice.Delta

	if choice.FinishReason != "" {
		s.stopReason = mapFinishReason(string(choice.FinishReason))
	}

	// A single chunk may carry thinking, text and tool calls together.
	if text, ok := s.reasoningHandler.ExtractThinking(deltaToMap(delta)); ok && text != "" {
		s.enqueue(chatcore.ProviderDeltaUpdate{Delta: chatcore.ThinkingDelta{Delta: text}})
	}

	if delta.Content != "" {
		s.text.WriteString(delta.Content)
		s.enqueue(chatcore.ProviderDeltaUpdate{Delta: chatcore.TextDelta{Delta: delta.Content}})
	}

	for _, tc := range delta.ToolCalls {
		idx := int(tc.Index)
		acc, ok := s.toolCalls[idx]
		if !ok {
			acc = &toolCallAccumulator{id: tc.ID}
			if acc.id == "" {
				// Some compatible endpoints omit call ids.
				acc.id, acc.synthetic = "call_"+uuid.NewString(), true
			}
			s.toolCalls[idx] = acc
		} else if tc.ID != "" && acc.synthetic && acc.args.Len() == 0 {
			acc.id, acc.synthetic = tc.ID, false
		}
		if tc.Function.Name != "" {
			acc.name = tc.Function.Name
		}
		if tc.Function.Arguments != "" {
			acc.args.WriteString(tc.Function.Arguments)
			s.enqueue(chatcore.ProviderDeltaUpdate{Delta: chatcore.ToolCallDelta{CallID: acc.id, Name: acc.name, ArgsDelta: tc.Function.Arguments}})
		}
	}
}

// finalize assembles the message as thinking, then text, then tool calls
// ordered by index.
func (s *Stream) finalize() {
	s.done = true

	var parts []chatcore.Part
	for _, p := range s.reasoningHandler.FlushThinking() {
		parts = append(parts, p)
	}
	if s.text.Len() > 0 {
		parts = append(parts, chatcore.TextPart{Text: s.text.String()})
	}

	idxs := make([]int, 0, len(s.toolCalls))
	for idx := range s.toolCalls {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)
	for _, idx := range idxs {
		acc := s.toolCalls[idx]
		if acc.name == "" {
			continue
		}
		args := acc.args.String()
		if strings.TrimSpace(args) == "" {
			args = "{}"
		}
		parts = append(parts, chatcore.ToolCallPart{CallID: acc.id, Name: acc.name, ArgsJSON: json.RawMessage(args)})
	}

	stop := s.stopReason
	if stop == "" {
		stop = chatcore.StopStop
	}
	s.enqueue(chatcore.ProviderMessageUpdate{Message: chatcore.AssistantMessage{
		Parts:      parts,
		Timestamp:  time.Now().UnixMilli(),
		Usage:      s.usage,
		StopReason: stop,
	}})
}

func mapFinishReason(reason string) chatcore.StopReason {
	switch reason {
	case "length":
		return chatcore.StopLength
	case "tool_calls", "function_call":
		return chatcore.StopToolUse
	default:
		return chatcore.StopStop
	}
}

func deltaToMap(delta openai.ChatCompletionChunkChoiceDelta) map[string]any {
	var m map[string]any
	_ = json.Unmarshal([]byte(delta.RawJSON()), &m)
	return m
}

var _ chatcore.ProviderStream = (*Stream)(nil)

// classifyError tags API errors with the kind implied by their status code.
func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return chatcore.ClassifyStatus(apiErr.StatusCode, err)
	}
	return err
}
