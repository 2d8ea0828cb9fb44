package uimessage

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/inspirepan/chatcore"
)

// StreamHeader marks a response as a UI message stream.
const StreamHeader = "x-vercel-ai-ui-message-stream"

// Writer encodes a turn as server-sent UI message chunks.
// It is not safe for concurrent use.
type Writer struct {
	w       io.Writer
	flusher http.Flusher

	seq         int
	textID      string
	reasoningID string
	toolStarted map[string]bool
	stepOpen    bool
	err         error
}

// NewWriter returns a Writer on w. Chunks are flushed immediately when w
// is an http.Flusher.
func NewWriter(w io.Writer) *Writer {
	cw := &Writer{w: w, toolStarted: map[string]bool{}}
	cw.flusher, _ = w.(http.Flusher)
	return cw
}

// StartResponse writes the stream headers.
func StartResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set(StreamHeader, "v1")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// Err returns the first write error.
func (w *Writer) Err() error { return w.err }

func (w *Writer) write(fields ...field) {
	if w.err != nil {
		return
	}
	b, err := build(fields...)
	if err != nil {
		w.err = err
		return
	}
	w.raw(b)
}

func (w *Writer) raw(data []byte) {
	if w.err != nil {
		return
	}
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", data); err != nil {
		w.err = err
		return
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
}

func (w *Writer) nextID(prefix string) string {
	w.seq++
	return prefix + "-" + strconv.Itoa(w.seq)
}

// Start opens the assistant message.
func (w *Writer) Start(messageID string) {
	w.write(field{"type", "start"}, field{"messageId", messageID})
}

func (w *Writer) StartStep() {
	w.closeBlocks()
	w.stepOpen = true
	w.write(field{"type", "start-step"})
}

func (w *Writer) FinishStep() {
	w.closeBlocks()
	if !w.stepOpen {
		return
	}
	w.stepOpen = false
	w.write(field{"type", "finish-step"})
}

func (w *Writer) Text(delta string) {
	if delta == "" {
		return
	}
	w.closeReasoning()
	if w.textID == "" {
		w.textID = w.nextID("text")
		w.write(field{"type", "text-start"}, field{"id", w.textID})
	}
	w.write(field{"type", "text-delta"}, field{"id", w.textID}, field{"delta", delta})
}

func (w *Writer) Reasoning(delta string) {
	if delta == "" {
		return
	}
	w.closeText()
	if w.reasoningID == "" {
		w.reasoningID = w.nextID("reasoning")
		w.write(field{"type", "reasoning-start"}, field{"id", w.reasoningID})
	}
	w.write(field{"type", "reasoning-delta"}, field{"id", w.reasoningID}, field{"delta", delta})
}

func (w *Writer) closeText() {
	if w.textID == "" {
		return
	}
	w.write(field{"type", "text-end"}, field{"id", w.textID})
	w.textID = ""
}

func (w *Writer) closeReasoning() {
	if w.reasoningID == "" {
		return
	}
	w.write(field{"type", "reasoning-end"}, field{"id", w.reasoningID})
	w.reasoningID = ""
}

func (w *Writer) closeBlocks() {
	w.closeReasoning()
	w.closeText()
}

// ToolInput streams a fragment of a tool call's arguments.
func (w *Writer) ToolInput(callID, name, delta string) {
	if callID == "" {
		return
	}
	w.closeBlocks()
	if !w.toolStarted[callID] {
		w.toolStarted[callID] = true
		w.write(field{"type", "tool-input-start"}, field{"toolCallId", callID}, field{"toolName", name})
	}
	if delta != "" {
		w.write(field{"type", "tool-input-delta"}, field{"toolCallId", callID}, field{"inputTextDelta", delta})
	}
}

// ToolCall reports a complete tool call.
func (w *Writer) ToolCall(call chatcore.ToolCallPart) {
	w.closeBlocks()
	w.write(field{"type", "tool-input-available"}, field{"toolCallId", call.CallID}, field{"toolName", call.Name}, field{"input", argsOf(call.ArgsJSON)})
}

// ToolResult reports a tool outcome. Results without structured output are
// reported as errors.
func (w *Writer) ToolResult(res chatcore.ToolResultMessage) {
	w.closeBlocks()
	if res.Output == nil {
		w.write(field{"type", "tool-output-error"}, field{"toolCallId", res.CallID}, field{"errorText", errorText(res)})
		return
	}
	w.write(field{"type", "tool-output-available"}, field{"toolCallId", res.CallID}, field{"output", json.RawMessage(res.Output)})
}

// Error reports a failure of the turn.
func (w *Writer) Error(text string) {
	w.closeBlocks()
	w.write(field{"type", "error"}, field{"errorText", text})
}

// Finish closes the message and terminates the stream.
func (w *Writer) Finish() {
	w.FinishStep()
	w.write(field{"type", "finish"})
	w.raw([]byte("[DONE]"))
}

// Event translates one turn event into chunks. It reports whether the
// event ended the stream.
func (w *Writer) Event(ev chatcore.TurnEvent) bool {
	switch ev.Type {
	case chatcore.TurnEventStepStart:
		w.StartStep()
	case chatcore.TurnEventDelta:
		switch d := ev.Delta.(type) {
		case chatcore.TextDelta:
			w.Text(d.Delta)
		case chatcore.ThinkingDelta:
			w.Reasoning(d.Delta)
		case chatcore.ToolCallDelta:
			w.ToolInput(d.CallID, d.Name, d.ArgsDelta)
		}
	case chatcore.TurnEventMessage:
		switch m := ev.Message.(type) {
		case chatcore.AssistantMessage:
			for _, call := range m.ToolCalls() {
				w.ToolCall(call)
			}
		case chatcore.ToolResultMessage:
			w.ToolResult(m)
		}
	case chatcore.TurnEventStepFinish:
		w.FinishStep()
	case chatcore.TurnEventEnd:
		if ev.Err != nil {
			w.Error(chatcore.FriendlyError(ev.Err))
		}
		w.Finish()
		return true
	}
	return false
}
