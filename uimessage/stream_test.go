package uimessage

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/inspirepan/chatcore"
)

// chunks decodes an SSE body into chunk types, with "[DONE]" kept verbatim.
func chunks(t *testing.T, body string) []gjson.Result {
	t.Helper()
	var out []gjson.Result
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		data, ok := strings.CutPrefix(block, "data: ")
		require.True(t, ok, block)
		if data == "[DONE]" {
			out = append(out, gjson.Parse(`{"type":"[DONE]"}`))
			continue
		}
		require.True(t, gjson.Valid(data), data)
		out = append(out, gjson.Parse(data))
	}
	return out
}

func types(cs []gjson.Result) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Get("type").String()
	}
	return out
}

func TestWriterTurnEvents(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Start("msg-1")

	call := chatcore.ToolCallPart{CallID: "c1", Name: "calculator", ArgsJSON: json.RawMessage(`{"expression":"2*3"}`)}
	events := []chatcore.TurnEvent{
		{Type: chatcore.TurnEventStepStart, Step: 1},
		{Type: chatcore.TurnEventDelta, Delta: chatcore.ThinkingDelta{Delta: "hmm"}},
		{Type: chatcore.TurnEventDelta, Delta: chatcore.TextDelta{Delta: "Let me "}},
		{Type: chatcore.TurnEventDelta, Delta: chatcore.TextDelta{Delta: "check."}},
		{Type: chatcore.TurnEventDelta, Delta: chatcore.ToolCallDelta{CallID: "c1", Name: "calculator", ArgsDelta: `{"expression":`}},
		{Type: chatcore.TurnEventDelta, Delta: chatcore.ToolCallDelta{CallID: "c1", ArgsDelta: `"2*3"}`}},
		{Type: chatcore.TurnEventMessage, Message: chatcore.AssistantMessage{Parts: []chatcore.Part{call}}},
		{Type: chatcore.TurnEventMessage, Message: chatcore.ToolResultMessage{CallID: "c1", Name: "calculator", Output: json.RawMessage(`{"result":6}`)}},
		{Type: chatcore.TurnEventStepFinish, Step: 1},
		{Type: chatcore.TurnEventEnd},
	}
	for i, ev := range events {
		require.Equal(t, i == len(events)-1, w.Event(ev))
	}
	require.NoError(t, w.Err())

	cs := chunks(t, buf.String())
	require.Equal(t, []string{
		"start", "start-step",
		"reasoning-start", "reasoning-delta", "reasoning-end",
		"text-start", "text-delta", "text-delta", "text-end",
		"tool-input-start", "tool-input-delta", "tool-input-delta",
		"tool-input-available", "tool-output-available",
		"finish-step", "finish", "[DONE]",
	}, types(cs))

	require.Equal(t, "msg-1", cs[0].Get("messageId").String())
	require.Equal(t, cs[5].Get("id").String(), cs[8].Get("id").String())
	require.Equal(t, "calculator", cs[9].Get("toolName").String())
	require.JSONEq(t, `{"expression":"2*3"}`, cs[12].Get("input").Raw)
	require.Equal(t, int64(6), cs[13].Get("output.result").Int())
}

func TestWriterErrors(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Start("m")
	w.StartStep()
	w.ToolResult(chatcore.ToolResultMessage{CallID: "c1", IsError: true, Parts: []chatcore.Part{chatcore.TextPart{Text: "tool execution interrupted"}}})
	w.Event(chatcore.TurnEvent{Type: chatcore.TurnEventEnd, Err: &chatcore.ProviderError{Kind: chatcore.ProviderErrRateLimit, Err: errors.New("429")}})

	cs := chunks(t, buf.String())
	require.Equal(t, []string{"start", "start-step", "tool-output-error", "error", "finish-step", "finish", "[DONE]"}, types(cs))
	require.Equal(t, "tool execution interrupted", cs[2].Get("errorText").String())
	require.Equal(t, chatcore.FriendlyError(&chatcore.ProviderError{Kind: chatcore.ProviderErrRateLimit, Err: errors.New("429")}), cs[3].Get("errorText").String())
}
