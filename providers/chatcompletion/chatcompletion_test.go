package chatcompletion_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/inspirepan/chatcore"
	"github.com/inspirepan/chatcore/internal/testutil"
	cc "github.com/inspirepan/chatcore/providers/chatcompletion"
)

const envKey = "OPENAI_API_KEY"

// fakeServer streams canned chat completion chunks and records request bodies.
type fakeServer struct {
	*httptest.Server
	mu     sync.Mutex
	bodies []string
}

func newFakeServer(t *testing.T, deltas ...string) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		fs.mu.Lock()
		fs.bodies = append(fs.bodies, string(b))
		fs.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range deltas {
			fmt.Fprintf(w, "data: %s\n\n", d)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) lastBody() gjson.Result {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return gjson.Parse(fs.bodies[len(fs.bodies)-1])
}

func chunk(delta string, finish string) string {
	fr := "null"
	if finish != "" {
		fr = `"` + finish + `"`
	}
	return `{"id":"c","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":` + delta + `,"finish_reason":` + fr + `}]}`
}

func TestStreamAssemblesMessage(t *testing.T) {
	srv := newFakeServer(t,
		chunk(`{"role":"assistant","reasoning_content":"thinking"}`, ""),
		chunk(`{"content":"Let me "}`, ""),
		chunk(`{"content":"compute."}`, ""),
		chunk(`{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"calculator","arguments":"{\"expression\""}}]}`, ""),
		chunk(`{"tool_calls":[{"index":0,"function":{"arguments":":\"1+1\"}"}}]}`, ""),
		chunk(`{}`, "tool_calls"),
		`{"id":"c","object":"chat.completion.chunk","created":1,"model":"m","choices":[],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`,
	)
	p := cc.New("m", cc.WithAPIKey("test"), cc.WithBaseURL(srv.URL))

	ctx := context.Background()
	stream, err := p.Stream(ctx, chatcore.ProviderRequest{
		SystemPrompt: "sys",
		History:      []chatcore.Message{chatcore.UserMessage{Parts: []chatcore.Part{chatcore.TextPart{Text: "1+1?"}}}},
		Tools:        []chatcore.ToolSpec{{Name: "calculator", Description: "math", Parameters: map[string]any{"type": "object"}}},
		ToolChoice:   chatcore.ToolChoiceAuto,
	})
	require.NoError(t, err)
	got := testutil.Drain(t, ctx, stream)

	require.Equal(t, "Let me compute.", got.Text)
	require.True(t, got.SawToolDelta)
	msg := got.Message
	require.Equal(t, chatcore.StopToolUse, msg.StopReason)
	require.NotNil(t, msg.Usage)
	require.Equal(t, 15, msg.Usage.TotalTokens)

	require.Equal(t, chatcore.ThinkingPart{Thinking: "thinking", ModelName: "m"}, msg.Parts[0])
	calls := msg.ToolCalls()
	require.Len(t, calls, 1)
	require.Equal(t, "call_1", calls[0].CallID)
	require.JSONEq(t, `{"expression":"1+1"}`, string(calls[0].ArgsJSON))

	body := srv.lastBody()
	require.Equal(t, "auto", body.Get("tool_choice").String())
	require.Equal(t, "calculator", body.Get("tools.0.function.name").String())
	require.Equal(t, "system", body.Get("messages.0.role").String())
	require.True(t, body.Get("stream").Bool())
}

func TestStreamSynthesizesMissingCallIDs(t *testing.T) {
	srv := newFakeServer(t,
		chunk(`{"tool_calls":[{"index":0,"type":"function","function":{"name":"random","arguments":""}}]}`, "tool_calls"),
	)
	p := cc.New("m", cc.WithAPIKey("test"), cc.WithBaseURL(srv.URL))
	stream, err := p.Stream(context.Background(), chatcore.ProviderRequest{})
	require.NoError(t, err)
	got := testutil.Drain(t, context.Background(), stream)

	calls := got.Message.ToolCalls()
	require.Len(t, calls, 1)
	require.True(t, strings.HasPrefix(calls[0].CallID, "call_"))
	require.JSONEq(t, `{}`, string(calls[0].ArgsJSON))
}

func TestHistoryConversion(t *testing.T) {
	srv := newFakeServer(t, chunk(`{"content":"ok"}`, "stop"))
	p := cc.New("m", cc.WithAPIKey("test"), cc.WithBaseURL(srv.URL))

	history := []chatcore.Message{
		chatcore.UserMessage{Parts: []chatcore.Part{chatcore.TextPart{Text: "weather?"}, chatcore.ImagePart{MimeType: "image/png", DataB64: "aGk="}}},
		chatcore.AssistantMessage{Parts: []chatcore.Part{testutil.Call("c1", "displayWeather", `{"location":"Oslo"}`)}},
		chatcore.ToolResultMessage{CallID: "c1", Name: "displayWeather", Output: json.RawMessage(`{"temperature":3}`)},
	}
	stream, err := p.Stream(context.Background(), chatcore.ProviderRequest{History: history, ToolChoice: chatcore.ToolChoiceNone})
	require.NoError(t, err)
	testutil.Drain(t, context.Background(), stream)

	body := srv.lastBody()
	require.False(t, body.Get("tool_choice").Exists(), "tool_choice requires tools")
	require.Equal(t, "data:image/png;base64,aGk=", body.Get("messages.0.content.1.image_url.url").String())
	require.Equal(t, "c1", body.Get("messages.1.tool_calls.0.id").String())
	require.Equal(t, "tool", body.Get("messages.2.role").String())
	require.JSONEq(t, `{"temperature":3}`, body.Get("messages.2.content").String())
}

func TestNativeTools(t *testing.T) {
	srv := newFakeServer(t, chunk(`{"content":"ok"}`, "stop"))
	req := chatcore.ProviderRequest{NativeTools: []chatcore.NativeTool{chatcore.NativeURLContext}, ToolChoice: chatcore.ToolChoiceAuto}

	plain := cc.New("m", cc.WithAPIKey("test"), cc.WithBaseURL(srv.URL))
	_, err := plain.Stream(context.Background(), req)
	require.ErrorIs(t, err, cc.ErrNativeToolsUnsupported)

	native := cc.New("m", cc.WithAPIKey("test"), cc.WithBaseURL(srv.URL), cc.WithNativeTools(func(tools []chatcore.NativeTool) []option.RequestOption {
		return []option.RequestOption{option.WithJSONSet("native", tools)}
	}))
	stream, err := native.Stream(context.Background(), req)
	require.NoError(t, err)
	testutil.Drain(t, context.Background(), stream)
	require.Equal(t, "url_context", srv.lastBody().Get("native.0").String())
}

func TestOpenAI_BasicTextGeneration(t *testing.T) {
	testutil.SkipIfNoEnv(t, envKey)
	testutil.TestBasicTextGeneration(t, testutil.DefaultConfig(cc.New("gpt-4o-mini")))
}

func TestOpenAI_ToolCalling(t *testing.T) {
	testutil.SkipIfNoEnv(t, envKey)
	testutil.TestToolCalling(t, testutil.DefaultConfig(cc.New("gpt-4o-mini")))
}

func TestOpenAI_MultiTurn(t *testing.T) {
	testutil.SkipIfNoEnv(t, envKey)
	testutil.TestMultiTurn(t, testutil.DefaultConfig(cc.New("gpt-4o-mini")))
}

func TestDebugRecordsCarryTurnAndStep(t *testing.T) {
	srv := newFakeServer(t, chunk(`{"role":"assistant","content":"hi"}`, "stop"))
	path := filepath.Join(t.TempDir(), "debug.jsonl")
	p := cc.New("m", cc.WithAPIKey("test"), cc.WithBaseURL(srv.URL), cc.WithDebug(path))

	res, err := chatcore.Turn(context.Background(), chatcore.TurnRequest{
		Provider: p,
		History:  []chatcore.Message{chatcore.UserMessage{Parts: []chatcore.Part{chatcore.TextPart{Text: "hello"}}}},
	})
	require.NoError(t, err)
	require.Equal(t, "hi", res.Text())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.NotEmpty(t, lines)
	turnID := gjson.Get(lines[0], "turn_id").String()
	require.NotEmpty(t, turnID)
	for _, line := range lines {
		require.Equal(t, turnID, gjson.Get(line, "turn_id").String())
		require.Equal(t, int64(1), gjson.Get(line, "step").Int())
	}
}

func TestAPIErrorClassifiedByStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"message":"region not allowed","type":"invalid_request_error"}}`)
	}))
	t.Cleanup(srv.Close)
	p := cc.New("m", cc.WithAPIKey("test"), cc.WithBaseURL(srv.URL), cc.WithRequestOption(option.WithMaxRetries(0)))

	ctx := context.Background()
	stream, err := p.Stream(ctx, chatcore.ProviderRequest{
		History: []chatcore.Message{chatcore.UserMessage{Parts: []chatcore.Part{chatcore.TextPart{Text: "hi"}}}},
	})
	require.NoError(t, err)
	defer stream.Close()
	_, err = stream.Next(ctx)
	require.Error(t, err)

	var pe *chatcore.ProviderError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, chatcore.ProviderErrAPIKey, pe.Kind)
	require.Equal(t, chatcore.ProviderErrAPIKey, chatcore.ClassifyProviderError(err).Kind)
}
