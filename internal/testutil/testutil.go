// Package testutil provides shared helpers for provider and engine tests.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/inspirepan/chatcore"
)

const DefaultTimeout = 60 * time.Second

// SkipIfNoEnv skips the test if the environment variable is not set.
func SkipIfNoEnv(t *testing.T, envVar string) {
	t.Helper()
	if os.Getenv(envVar) == "" {
		t.Skipf("skipping: %s not set", envVar)
	}
}

// TestConfig holds configuration for a live provider test run.
type TestConfig struct {
	Provider chatcore.Provider
	Timeout  time.Duration
}

// DefaultConfig returns a TestConfig with default timeout.
func DefaultConfig(provider chatcore.Provider) TestConfig {
	return TestConfig{
		Provider: provider,
		Timeout:  DefaultTimeout,
	}
}

// Drained is the collected output of a provider stream.
type Drained struct {
	Text         string
	Message      *chatcore.AssistantMessage
	SawToolDelta bool
}

// Drain consumes stream until io.EOF.
func Drain(t *testing.T, ctx context.Context, stream chatcore.ProviderStream) Drained {
	t.Helper()
	var (
		out  Drained
		text strings.Builder
	)
	for {
		up, err := stream.Next(ctx)
		if err != nil && !errors.Is(err, io.EOF) {
			t.Fatalf("stream.Next failed: %v", err)
		}
		switch u := up.(type) {
		case chatcore.ProviderDeltaUpdate:
			switch d := u.Delta.(type) {
			case chatcore.TextDelta:
				text.WriteString(d.Delta)
			case chatcore.ToolCallDelta:
				out.SawToolDelta = true
			}
		case chatcore.ProviderMessageUpdate:
			msg := u.Message
			out.Message = &msg
		}
		if err != nil {
			break
		}
	}
	out.Text = text.String()
	if out.Text == "" && out.Message != nil {
		// Some providers do not stream text deltas.
		out.Text = chatcore.TextOf(out.Message.Parts)
	}
	return out
}

func streamRequest(t *testing.T, cfg TestConfig, req chatcore.ProviderRequest) Drained {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	stream, err := cfg.Provider.Stream(ctx, req)
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	defer stream.Close()
	return Drain(t, ctx, stream)
}

func userText(text string) chatcore.UserMessage {
	return chatcore.UserMessage{Parts: []chatcore.Part{chatcore.TextPart{Text: text}}}
}

// TestBasicTextGeneration tests basic text generation capability.
func TestBasicTextGeneration(t *testing.T, cfg TestConfig) {
	t.Helper()

	out := streamRequest(t, cfg, chatcore.ProviderRequest{
		History: []chatcore.Message{userText("Write a haiku")},
	})
	if out.Text == "" {
		t.Error("expected non-empty text response")
	}
	if out.Message != nil {
		if out.Message.Usage == nil {
			t.Log("warning: usage info not returned")
		} else if out.Message.Usage.OutputTokens == 0 {
			t.Error("expected non-zero output tokens")
		}
	}
	t.Logf("response: %q", out.Text)
}

// AddTool is a small function tool used by live tool-calling tests.
type AddTool struct{}

func (AddTool) Spec() chatcore.ToolSpec {
	return chatcore.ToolSpec{
		Name:        "add",
		Description: "Add two numbers together",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"a": map[string]any{"type": "number", "description": "First number"},
				"b": map[string]any{"type": "number", "description": "Second number"},
			},
			"required": []string{"a", "b"},
		},
	}
}

func (AddTool) Execute(_ context.Context, call chatcore.ToolCallPart) (chatcore.ToolResult, error) {
	var args struct {
		A float64 `json:"a"`
		B float64 `json:"b"`
	}
	if err := json.Unmarshal(call.ArgsJSON, &args); err != nil {
		return chatcore.ToolResult{}, err
	}
	return chatcore.ToolResult{
		Parts: []chatcore.Part{chatcore.TextPart{Text: fmt.Sprintf("%.2f", args.A+args.B)}},
	}, nil
}

// TestToolCalling tests tool calling capability.
func TestToolCalling(t *testing.T, cfg TestConfig) {
	t.Helper()

	out := streamRequest(t, cfg, chatcore.ProviderRequest{
		SystemPrompt: "You are a helpful assistant. Use the add tool when asked to add numbers.",
		History:      []chatcore.Message{userText("What is 123 + 456 and 444+888, use calculator pls?")},
		Tools:        []chatcore.ToolSpec{AddTool{}.Spec()},
		ToolChoice:   chatcore.ToolChoiceAuto,
	})
	if out.Message == nil {
		t.Fatal("expected assistant message")
	}
	calls := out.Message.ToolCalls()
	if !out.SawToolDelta && len(calls) == 0 {
		t.Fatal("expected at least one tool call")
	}
	if len(calls) > 0 {
		if calls[0].Name != "add" {
			t.Errorf("expected tool name 'add', got %q", calls[0].Name)
		}
		t.Logf("tool calls: %d, first call: %s(%s)", len(calls), calls[0].Name, string(calls[0].ArgsJSON))
	}
}

// TestSystemPrompt tests that system prompt is respected.
func TestSystemPrompt(t *testing.T, cfg TestConfig) {
	t.Helper()

	out := streamRequest(t, cfg, chatcore.ProviderRequest{
		SystemPrompt: "You are a pirate. Always respond like a pirate. Use 'Arrr' in your response.",
		History:      []chatcore.Message{userText("Hello, how are you?")},
	})
	text := strings.ToLower(out.Text)
	if !strings.Contains(text, "arrr") && !strings.Contains(text, "ahoy") && !strings.Contains(text, "matey") {
		t.Errorf("expected pirate-like response, got: %s", out.Text)
	}
	t.Logf("response: %s", out.Text)
}

// TestMultiTurn tests multi-turn conversation.
func TestMultiTurn(t *testing.T, cfg TestConfig) {
	t.Helper()

	out := streamRequest(t, cfg, chatcore.ProviderRequest{
		History: []chatcore.Message{
			userText("My name is Alice."),
			chatcore.AssistantMessage{Parts: []chatcore.Part{chatcore.TextPart{Text: "Hello Alice! Nice to meet you."}}},
			userText("What is my name?"),
		},
	})
	if !strings.Contains(strings.ToLower(out.Text), "alice") {
		t.Errorf("expected response to contain 'Alice', got: %s", out.Text)
	}
	t.Logf("response: %s", out.Text)
}

// TestTurnWithTool runs a full tool round-trip through chatcore.Turn.
func TestTurnWithTool(t *testing.T, cfg TestConfig) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	res, err := chatcore.Turn(ctx, chatcore.TurnRequest{
		Provider:     cfg.Provider,
		SystemPrompt: "Use the add tool for arithmetic, then answer with the number.",
		History:      []chatcore.Message{userText("What is 20 + 22?")},
		Tools:        []chatcore.Tool{AddTool{}},
	})
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}
	if !strings.Contains(res.Text(), "42") {
		t.Errorf("expected final answer to contain 42, got: %s", res.Text())
	}
	t.Logf("steps: %d, response: %s", res.Steps, res.Text())
}
