package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"goa.design/clue/log"

	"github.com/inspirepan/chatcore"
	"github.com/inspirepan/chatcore/internal/orchestrator"
	"github.com/inspirepan/chatcore/internal/store"
	"github.com/inspirepan/chatcore/internal/testutil"
	"github.com/inspirepan/chatcore/registry"
	"github.com/inspirepan/chatcore/tools"
)

var fixedNow = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

type fixture struct {
	srv      *httptest.Server
	provider *testutil.ScriptedProvider
	store    *store.Store
}

func openMeteo(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/geo", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") != "London" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"name":"London","country":"United Kingdom","latitude":51.5,"longitude":-0.12}]}`))
	})
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"current":{"time":"2026-10-16T12:00","temperature_2m":14.2,"relative_humidity_2m":81,
			"apparent_temperature":12.9,"weather_code":3,"wind_speed_10m":17.4}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newFixture(t *testing.T, replies ...testutil.Reply) fixture {
	t.Helper()
	meteo := openMeteo(t)
	reg := registry.New()
	require.NoError(t, tools.RegisterBuiltins(reg, tools.Options{Weather: tools.WeatherConfig{
		GeocodeURL:  meteo.URL + "/geo",
		ForecastURL: meteo.URL + "/forecast",
	}}))
	require.NoError(t, reg.Register(registry.Definition{
		ID:   "slow",
		Name: "Slow",
		Execute: func(ctx context.Context, _ map[string]any) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}))
	require.NoError(t, reg.Register(registry.Definition{
		ID:   "broken",
		Name: "Broken",
		Execute: func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("backend unavailable")
		},
	}))

	st, err := store.Open(filepath.Join(t.TempDir(), "chatcore.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	provider := testutil.NewScripted(replies...)
	svc, err := orchestrator.New(orchestrator.Config{
		Registry:     reg,
		Providers:    func(string) (chatcore.Provider, error) { return provider, nil },
		ProviderName: "google",
		DefaultModel: "gemini-2.5-flash",
		Installs:     st,
		TurnTimeout:  10 * time.Second,
	})
	require.NoError(t, err)

	api := New(Config{
		Registry:     reg,
		Orchestrator: svc,
		Store:        st,
		ToolTimeout:  50 * time.Millisecond,
		Now:          func() time.Time { return fixedNow },
	})
	logCtx := log.Context(context.Background(), log.WithOutput(io.Discard))
	srv := httptest.NewServer(api.Handler(logCtx))
	t.Cleanup(srv.Close)
	return fixture{srv: srv, provider: provider, store: st}
}

func (f fixture) do(t *testing.T, method, path, body string, header ...string) (int, string) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestHealthzAndCORS(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, int64(5), gjson.Get(body, "tools").Int())

	code, _ = f.do(t, http.MethodOptions, "/api/chat", "")
	require.Equal(t, http.StatusNoContent, code)
}

func TestAvailableTools(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodGet, "/api/tools/available", "")
	require.Equal(t, http.StatusOK, code)
	ids := gjson.Get(body, "#.id").Array()
	require.Equal(t, "displayWeather", ids[0].String())
	require.Equal(t, "Weather", gjson.Get(body, "0.name").String())
	require.Equal(t, "object", gjson.Get(body, "0.parameters.type").String())
	require.Equal(t, "location", gjson.Get(body, "0.parameters.required.0").String())
}

func TestSearchTools(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodGet, "/api/tools/search?q=calc", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, []any{"calculator"}, gjson.Get(body, "#.id").Value())

	code, body = f.do(t, http.MethodGet, "/api/tools/search?text=ask+%40wea&cursor=8", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, []any{"displayWeather"}, gjson.Get(body, "#.id").Value())

	code, _ = f.do(t, http.MethodGet, "/api/tools/search?text=x&cursor=abc", "")
	require.Equal(t, http.StatusBadRequest, code)
}

func TestExecuteTool(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/api/tools/execute", `{"toolId":"calculator","params":{"expression":"(2+3)*4"}}`)
	require.Equal(t, http.StatusOK, code)
	require.True(t, gjson.Get(body, "success").Bool())
	require.Equal(t, float64(20), gjson.Get(body, "result.result").Float())

	code, body = f.do(t, http.MethodPost, "/api/tools/execute", `{"toolId":"calculator","params":{"expression":"2+abc"}}`)
	require.Equal(t, http.StatusOK, code)
	require.True(t, gjson.Get(body, "result.error").Bool())

	code, body = f.do(t, http.MethodPost, "/api/tools/execute", `{"params":{}}`)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "Tool ID is required", gjson.Get(body, "error").String())

	code, _ = f.do(t, http.MethodPost, "/api/tools/execute", `{not json`)
	require.Equal(t, http.StatusBadRequest, code)

	code, body = f.do(t, http.MethodPost, "/api/tools/execute", `{"toolId":"nope"}`)
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "Tool 'nope' not found", gjson.Get(body, "error").String())

	code, body = f.do(t, http.MethodPost, "/api/tools/execute", `{"toolId":"broken"}`)
	require.Equal(t, http.StatusInternalServerError, code)
	require.Equal(t, "Tool execution failed", gjson.Get(body, "error").String())
	require.Equal(t, "backend unavailable", gjson.Get(body, "details").String())

	code, _ = f.do(t, http.MethodPost, "/api/tools/execute", `{"toolId":"slow"}`)
	require.Equal(t, http.StatusGatewayTimeout, code)
}

func TestMarketplace(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodGet, "/api/tools/marketplace?category=utility", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, []any{"displayWeather", "random"}, gjson.Get(body, "tools.#.id").Value())
	require.True(t, gjson.Get(body, "tools.0.enabled").Bool())

	code, body = f.do(t, http.MethodGet, "/api/tools/marketplace?search=ARITHMETIC", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, []any{"calculator"}, gjson.Get(body, "tools.#.id").Value())

	code, body = f.do(t, http.MethodGet, "/api/tools/marketplace?category=none", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, int64(0), gjson.Get(body, "tools.#").Int())

	code, _ = f.do(t, http.MethodGet, "/api/tools/marketplace?search="+strings.Repeat("x", 300), "")
	require.Equal(t, http.StatusBadRequest, code)
}

func TestInstallFlow(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/api/tools/installed", "", "user-id", "u1")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, []any{"displayWeather"}, gjson.Get(body, "tools.#.id").Value())
	require.Equal(t, fixedNow.Format(time.RFC3339), gjson.Get(body, "tools.0.installedAt").String())

	code, body = f.do(t, http.MethodPost, "/api/tools/install", `{"toolId":"calculator","userId":"u1"}`)
	require.Equal(t, http.StatusOK, code)
	require.True(t, gjson.Get(body, "success").Bool())
	require.Equal(t, "Tool calculator installed successfully", gjson.Get(body, "message").String())

	code, body = f.do(t, http.MethodGet, "/api/tools/installed", "", "user-id", "u1")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, []any{"calculator"}, gjson.Get(body, "tools.#.id").Value())
	require.Equal(t, "math", gjson.Get(body, "tools.0.category").String())

	code, _ = f.do(t, http.MethodPost, "/api/tools/install", `{"userId":"u1"}`)
	require.Equal(t, http.StatusBadRequest, code)
	code, _ = f.do(t, http.MethodPost, "/api/tools/install", `{"toolId":"nope"}`)
	require.Equal(t, http.StatusNotFound, code)

	code, _ = f.do(t, http.MethodDelete, "/api/tools/installed/calculator", "", "user-id", "u1")
	require.Equal(t, http.StatusOK, code)
	code, _ = f.do(t, http.MethodDelete, "/api/tools/installed/calculator", "", "user-id", "u1")
	require.Equal(t, http.StatusNotFound, code)
}

func TestScreenshot(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodPost, "/api/screenshot",
		`{"screenshot":"data:image/png;base64,AAAA","pageUrl":"https://example.com","pageTitle":"Example"}`)
	require.Equal(t, http.StatusOK, code)
	require.True(t, gjson.Get(body, "success").Bool())
	require.Equal(t, int64(len("data:image/png;base64,AAAA")), gjson.Get(body, "data.screenshotSize").Int())
	require.Equal(t, fixedNow.UnixMilli(), gjson.Get(body, "data.timestamp").Int())

	code, _ = f.do(t, http.MethodPost, "/api/screenshot", `{"screenshot":"data:image/png;base64,AAAA"}`)
	require.Equal(t, http.StatusBadRequest, code)
	code, body = f.do(t, http.MethodPost, "/api/screenshot",
		`{"screenshot":"https://example.com/a.png","pageUrl":"https://example.com","pageTitle":"Example"}`)
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, gjson.Get(body, "error").String(), "Expected data URL")

	code, _ = f.do(t, http.MethodGet, "/api/screenshot", "")
	require.Equal(t, http.StatusOK, code)
}

// sseChunks decodes a UI message stream body.
func sseChunks(t *testing.T, body string) []gjson.Result {
	t.Helper()
	var out []gjson.Result
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		data, ok := strings.CutPrefix(block, "data: ")
		require.True(t, ok, block)
		if data == "[DONE]" {
			out = append(out, gjson.Parse(`{"type":"[DONE]"}`))
			continue
		}
		out = append(out, gjson.Parse(data))
	}
	return out
}

func chunkOfType(cs []gjson.Result, typ string) (gjson.Result, bool) {
	for _, c := range cs {
		if c.Get("type").String() == typ {
			return c, true
		}
	}
	return gjson.Result{}, false
}

func TestChatWeatherScenario(t *testing.T) {
	f := newFixture(t,
		testutil.Reply{ToolCalls: []chatcore.ToolCallPart{testutil.Call("call-1", "displayWeather", `{"location":"London"}`)}},
		testutil.Reply{Text: "It is 14°C and overcast in London."},
	)

	req := map[string]any{
		"model": "gemini-2.5-flash",
		"messages": []any{map[string]any{
			"id":    "m1",
			"role":  "user",
			"parts": []any{map[string]any{"type": "text", "text": "@weather what is it like in London?"}},
		}},
	}
	data, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := http.Post(f.srv.URL+"/api/chat", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Equal(t, "v1", resp.Header.Get("x-vercel-ai-ui-message-stream"))
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	cs := sseChunks(t, string(raw))
	require.Equal(t, "start", cs[0].Get("type").String())
	require.Equal(t, "[DONE]", cs[len(cs)-1].Get("type").String())

	out, ok := chunkOfType(cs, "tool-output-available")
	require.True(t, ok, string(raw))
	require.Equal(t, "call-1", out.Get("toolCallId").String())
	require.Equal(t, "London, United Kingdom", out.Get("output.location").String())
	require.Equal(t, "Overcast", out.Get("output.weather").String())

	_, ok = chunkOfType(cs, "finish")
	require.True(t, ok)
	_, ok = chunkOfType(cs, "error")
	require.False(t, ok)

	reqs := f.provider.Requests()
	require.Len(t, reqs, 2)
	require.Equal(t, chatcore.ToolChoiceAuto, reqs[0].ToolChoice)
	require.Equal(t, "displayWeather", reqs[0].Tools[0].Name)
	require.Empty(t, reqs[0].NativeTools)
}

func TestChatProviderErrorIsFriendly(t *testing.T) {
	f := newFixture(t, testutil.Reply{Err: errors.New("429 Too Many Requests: rate limit exceeded")})

	code, body := f.do(t, http.MethodPost, "/api/chat",
		`{"messages":[{"role":"user","parts":[{"type":"text","text":"hi"}]}],"enableUrlContext":false,"enableCodeExecution":false}`)
	require.Equal(t, http.StatusOK, code)
	cs := sseChunks(t, body)
	errChunk, ok := chunkOfType(cs, "error")
	require.True(t, ok, body)
	require.Equal(t, chatcore.FriendlyError(chatcore.ClassifyProviderError(errors.New("429 Too Many Requests: rate limit exceeded"))), errChunk.Get("errorText").String())
	require.Equal(t, chatcore.ToolChoiceNone, f.provider.Requests()[0].ToolChoice)
}

func TestChatInvalidBody(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodPost, "/api/chat", `{"messages":`)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "Invalid request body", gjson.Get(body, "error").String())

	code, _ = f.do(t, http.MethodPost, "/api/chat", `{"messages":[]}`)
	require.Equal(t, http.StatusBadRequest, code)
}
