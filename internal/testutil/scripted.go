package testutil

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/inspirepan/chatcore"
)

// Reply scripts one provider round-trip.
type Reply struct {
	Thinking  string
	Text      string
	ToolCalls []chatcore.ToolCallPart
	Usage     *chatcore.Usage

	// Err is returned by Stream itself.
	Err error
	// Block makes the stream wait for cancellation before finishing.
	Block bool
}

// ScriptedProvider replays canned replies and records every request.
// Once the script is exhausted the last reply repeats.
type ScriptedProvider struct {
	mu       sync.Mutex
	replies  []Reply
	requests []chatcore.ProviderRequest
}

// NewScripted returns a provider answering with replies in order.
func NewScripted(replies ...Reply) *ScriptedProvider {
	return &ScriptedProvider{replies: replies}
}

// Requests returns the requests received so far.
func (p *ScriptedProvider) Requests() []chatcore.ProviderRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]chatcore.ProviderRequest(nil), p.requests...)
}

func (p *ScriptedProvider) Stream(_ context.Context, req chatcore.ProviderRequest) (chatcore.ProviderStream, error) {
	p.mu.Lock()
	idx := len(p.requests)
	p.requests = append(p.requests, req)
	var reply Reply
	switch {
	case len(p.replies) == 0:
	case idx < len(p.replies):
		reply = p.replies[idx]
	default:
		reply = p.replies[len(p.replies)-1]
	}
	p.mu.Unlock()

	if reply.Err != nil {
		return nil, reply.Err
	}
	return newScriptedStream(reply), nil
}

type scriptedStream struct {
	block   bool
	pending []chatcore.ProviderUpdate
}

func newScriptedStream(r Reply) *scriptedStream {
	s := &scriptedStream{block: r.Block}
	msg := chatcore.AssistantMessage{
		Timestamp:  time.Now().UnixMilli(),
		Usage:      r.Usage,
		StopReason: chatcore.StopStop,
	}
	if r.Thinking != "" {
		s.pending = append(s.pending, chatcore.ProviderDeltaUpdate{Delta: chatcore.ThinkingDelta{Delta: r.Thinking}})
		msg.Parts = append(msg.Parts, chatcore.ThinkingPart{Thinking: r.Thinking})
	}
	if r.Text != "" {
		s.pending = append(s.pending, chatcore.ProviderDeltaUpdate{Delta: chatcore.TextDelta{Delta: r.Text}})
		msg.Parts = append(msg.Parts, chatcore.TextPart{Text: r.Text})
	}
	for _, call := range r.ToolCalls {
		s.pending = append(s.pending, chatcore.ProviderDeltaUpdate{Delta: chatcore.ToolCallDelta{CallID: call.CallID, Name: call.Name, ArgsDelta: string(call.ArgsJSON)}})
		msg.Parts = append(msg.Parts, call)
	}
	if len(r.ToolCalls) > 0 {
		msg.StopReason = chatcore.StopToolUse
	}
	s.pending = append(s.pending, chatcore.ProviderMessageUpdate{Message: msg})
	return s
}

func (s *scriptedStream) Next(ctx context.Context) (chatcore.ProviderUpdate, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if len(s.pending) == 0 {
		return nil, io.EOF
	}
	up := s.pending[0]
	s.pending = s.pending[1:]
	return up, nil
}

func (s *scriptedStream) Close() error { return nil }

// Call builds a tool call part.
func Call(id, name, args string) chatcore.ToolCallPart {
	return chatcore.ToolCallPart{CallID: id, Name: name, ArgsJSON: json.RawMessage(args)}
}

// FuncTool adapts a function into a chatcore.Tool.
type FuncTool struct {
	Name       string
	Concurrent bool
	Fn         func(ctx context.Context, args json.RawMessage) (string, error)
}

func (f FuncTool) Spec() chatcore.ToolSpec {
	return chatcore.ToolSpec{
		Name:        f.Name,
		Description: f.Name,
		Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
	}
}

func (f FuncTool) Parallel() bool { return f.Concurrent }

func (f FuncTool) Execute(ctx context.Context, call chatcore.ToolCallPart) (chatcore.ToolResult, error) {
	out, err := f.Fn(ctx, call.ArgsJSON)
	if err != nil {
		return chatcore.ToolResult{}, err
	}
	return chatcore.ToolResult{
		Parts:  []chatcore.Part{chatcore.TextPart{Text: out}},
		Output: json.RawMessage(out),
	}, nil
}
