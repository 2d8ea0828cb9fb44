package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/inspirepan/chatcore"
	"github.com/inspirepan/chatcore/providers/base"
)

type stream struct {
	model  string
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
	debug  *base.DebugLogger

	mu      sync.Mutex
	done    bool
	err     error
	pending []chatcore.ProviderUpdate

	acc anthropic.Message
	// tools maps content block index to the tool_use block it opened.
	tools map[int64]chatcore.ToolCallPart
}

func newStream(model string, s *ssestream.Stream[anthropic.MessageStreamEventUnion], debug *base.DebugLogger) *stream {
	return &stream{model: model, stream: s, debug: debug, tools: map[int64]chatcore.ToolCallPart{}}
}

func (s *stream) Next(ctx context.Context) (chatcore.ProviderUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) > 0 {
		return s.dequeue(), nil
	}
	if s.done {
		return nil, io.EOF
	}
	if s.err != nil {
		return nil, s.err
	}

	for {
		if ctx.Err() != nil {
			s.finalize()
			return s.dequeue(), nil
		}
		if !s.stream.Next() {
			if err := s.stream.Err(); err != nil {
				s.err = classifyError(err)
				return nil, s.err
			}
			s.finalize()
			return s.dequeue(), nil
		}
		s.process(s.stream.Current())
		if len(s.pending) > 0 {
			return s.dequeue(), nil
		}
	}
}

func (s *stream) Close() error {
	if s.debug != nil {
		_ = s.debug.Close()
	}
	return s.stream.Close()
}

func (s *stream) dequeue() chatcore.ProviderUpdate {
	up := s.pending[0]
	s.pending = s.pending[1:]
	return up
}

func (s *stream) process(event anthropic.MessageStreamEventUnion) {
	if s.debug != nil {
		rec := base.NewDebugRecord("chunk", event.RawJSON())
		rec.Provider = "anthropic"
		rec.Model = s.model
		_ = s.debug.Log(rec)
	}
	if err := s.acc.Accumulate(event); err != nil {
		s.err = err
		return
	}

	switch ev := event.AsAny().(type) {
	case anthropic.ContentBlockStartEvent:
		if ev.ContentBlock.Type == "tool_use" {
			s.tools[ev.Index] = chatcore.ToolCallPart{CallID: ev.ContentBlock.ID, Name: ev.ContentBlock.Name}
		}
	case anthropic.ContentBlockDeltaEvent:
		switch ev.Delta.Type {
		case "text_delta":
			s.emit(chatcore.TextDelta{Delta: ev.Delta.Text})
		case "thinking_delta":
			s.emit(chatcore.ThinkingDelta{Delta: ev.Delta.Thinking})
		case "signature_delta":
			s.emit(chatcore.ThinkingDelta{Signature: ev.Delta.Signature})
		case "input_json_delta":
			if call, ok := s.tools[ev.Index]; ok && ev.Delta.PartialJSON != "" {
				s.emit(chatcore.ToolCallDelta{CallID: call.CallID, Name: call.Name, ArgsDelta: ev.Delta.PartialJSON})
			}
		}
	}
}

func (s *stream) emit(d chatcore.MessageDelta) {
	s.pending = append(s.pending, chatcore.ProviderDeltaUpdate{Delta: d})
}

// finalize converts the accumulated message, keeping block order.
func (s *stream) finalize() {
	s.done = true
	var parts []chatcore.Part
	for _, block := range s.acc.Content {
		switch block.Type {
		case "thinking":
			parts = append(parts, chatcore.ThinkingPart{Thinking: block.Thinking, Signature: block.Signature, ModelName: s.model})
		case "text":
			if block.Text != "" {
				parts = append(parts, chatcore.TextPart{Text: block.Text})
			}
		case "tool_use":
			args := json.RawMessage(block.Input)
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			parts = append(parts, chatcore.ToolCallPart{CallID: block.ID, Name: block.Name, ArgsJSON: args})
		}
	}

	u := s.acc.Usage
	usage := &chatcore.Usage{
		InputTokens:      int(u.InputTokens),
		OutputTokens:     int(u.OutputTokens),
		CachedReadTokens: int(u.CacheReadInputTokens),
		TotalTokens:      int(u.InputTokens + u.OutputTokens),
	}
	s.pending = append(s.pending, chatcore.ProviderMessageUpdate{Message: chatcore.AssistantMessage{
		Parts:      parts,
		Timestamp:  time.Now().UnixMilli(),
		Usage:      usage,
		StopReason: mapStopReason(s.acc.StopReason),
	}})
}

func mapStopReason(r anthropic.StopReason) chatcore.StopReason {
	switch r {
	case anthropic.StopReasonMaxTokens:
		return chatcore.StopLength
	case anthropic.StopReasonToolUse:
		return chatcore.StopToolUse
	default:
		return chatcore.StopStop
	}
}

var _ chatcore.ProviderStream = (*stream)(nil)

func classifyError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return chatcore.ClassifyStatus(apiErr.StatusCode, err)
	}
	return err
}
