package invocation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTextAndReasoning(t *testing.T) {
	ps := parts(
		`{"type":"reasoning","text":"thinking "}`,
		`{"type":"text","text":"Hello "}`,
		`{"type":"tool-call","toolCallId":"a","toolName":"x"}`,
		`{"type":"reasoning","text":"more"}`,
		`{"type":"text","text":"world"}`,
	)
	require.Equal(t, "Hello world", TextContent(ps))
	r, ok := Reasoning(ps)
	require.True(t, ok)
	require.Equal(t, "thinking more", r)

	_, ok = Reasoning(parts(`{"type":"text","text":"plain"}`))
	require.False(t, ok)
}

func TestSources(t *testing.T) {
	got := Sources(parts(
		`{"type":"source","source":{"id":"s1","url":"https://a.example","title":"A"}}`,
		`{"type":"source-url","sourceId":"s2","url":"https://b.example"}`,
		`{"type":"text","text":"x"}`,
	))
	require.Equal(t, []Source{
		{ID: "s1", URL: "https://a.example", Title: "A"},
		{ID: "s2", URL: "https://b.example"},
	}, got)
}

func TestToolTitle(t *testing.T) {
	require.Equal(t, "Google Search", ToolTitle("google_search"))
	require.Equal(t, "🧮 Calculator", ToolTitle("calculator"))
	require.Equal(t, "Stock Price Lookup", ToolTitle("stock_price-lookup"))
	require.Equal(t, "MyTool", ToolTitle("myTool"))
}
