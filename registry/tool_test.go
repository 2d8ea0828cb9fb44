package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inspirepan/chatcore"
)

func TestToolAdapter(t *testing.T) {
	r := New()
	d := def("calc", "Calc", "math")
	d.Parallel = true
	require.NoError(t, r.Register(d))

	tools := r.Tools("calc", "missing")
	require.Len(t, tools, 1)
	tool := tools[0]
	require.Equal(t, "calc", tool.Spec().Name)
	require.True(t, tool.(chatcore.ParallelTool).Parallel())

	res, err := tool.Execute(context.Background(), chatcore.ToolCallPart{CallID: "c1", Name: "calc", ArgsJSON: json.RawMessage(`{"x":2}`)})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.JSONEq(t, `{"id":"calc","input":{"x":2}}`, string(res.Output))
}

func TestToolAdapterReportsFailuresAsOutput(t *testing.T) {
	r := New()
	d := def("calc", "Calc", "")
	d.Parameters = Schema{Fields: []Field{{Name: "expression", Type: TypeString, Required: true}}}
	require.NoError(t, r.Register(d))
	tool, ok := r.Tool("calc")
	require.True(t, ok)

	res, err := tool.Execute(context.Background(), chatcore.ToolCallPart{CallID: "c1", Name: "calc", ArgsJSON: json.RawMessage(`{}`)})
	require.NoError(t, err)
	require.True(t, res.IsError)
	var out chatcore.FailureOutput
	require.NoError(t, json.Unmarshal(res.Output, &out))
	require.True(t, out.Error)
	require.Contains(t, out.Message, "invalid tool input")

	res, err = tool.Execute(context.Background(), chatcore.ToolCallPart{CallID: "c2", Name: "calc", ArgsJSON: json.RawMessage(`{bad`)})
	require.NoError(t, err)
	require.True(t, res.IsError)
}
