package invocation

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func parts(ss ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(ss))
	for _, s := range ss {
		out = append(out, json.RawMessage(s))
	}
	return out
}

func TestNormalizeSplitCallAndResult(t *testing.T) {
	got := Normalize(parts(
		`{"type":"tool-call","toolCallId":"a","toolName":"calculator","input":{"expression":"2+2"}}`,
		`{"type":"tool-result","toolCallId":"a","output":{"result":4}}`,
	))
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].ToolCallID)
	require.Equal(t, "calculator", got[0].ToolName)
	require.Equal(t, StateOutputAvailable, got[0].State)
	require.JSONEq(t, `{"expression":"2+2"}`, string(got[0].Input))
	require.JSONEq(t, `{"result":4}`, string(got[0].Output))
	require.Empty(t, got[0].ErrorText)
}

func TestNormalizeTypedPartsWithoutID(t *testing.T) {
	got := Normalize(parts(
		`{"type":"tool-displayWeather","input":{"location":"Paris"}}`,
		`{"type":"tool-displayWeather","output":{"temperature":18}}`,
	))
	require.Len(t, got, 1)
	require.Equal(t, "typed-tool-displayWeather", got[0].ToolCallID)
	require.Equal(t, "displayWeather", got[0].ToolName)
	require.Equal(t, StateOutputAvailable, got[0].State)
	require.JSONEq(t, `{"location":"Paris"}`, string(got[0].Input))
}

func TestNormalizeTerminalStateDoesNotRegress(t *testing.T) {
	got := Normalize(parts(
		`{"type":"tool-invocation","toolCallId":"b","toolName":"random","state":"output-available","output":{"value":7}}`,
		`{"type":"tool-invocation","toolCallId":"b","state":"input-streaming","input":{"type":"number"}}`,
		`{"type":"tool-error","toolCallId":"b","error":"late failure"}`,
	))
	require.Len(t, got, 1)
	require.Equal(t, StateOutputAvailable, got[0].State)
	require.JSONEq(t, `{"value":7}`, string(got[0].Output))
	require.JSONEq(t, `{"type":"number"}`, string(got[0].Input))
	require.Empty(t, got[0].ErrorText)
}

func TestNormalizeErrorWinsOverOutput(t *testing.T) {
	got := Normalize(parts(
		`{"type":"tool-call","toolCallId":"e","toolName":"weather","args":{"location":"Nowhere"}}`,
		`{"type":"tool-error","toolCallId":"e","error":"location not found"}`,
	))
	require.Len(t, got, 1)
	require.Equal(t, StateOutputError, got[0].State)
	require.Equal(t, "location not found", got[0].ErrorText)
	require.JSONEq(t, `{"location":"Nowhere"}`, string(got[0].Input))
}

func TestNormalizeLegacyAliasesAndNesting(t *testing.T) {
	got := Normalize(parts(
		`{"type":"tool-invocation","toolInvocation":{"toolCallId":"n1","toolName":"calculator","state":"call","args":{"expression":"1+1"}}}`,
		`{"type":"tool-invocation","toolInvocation":{"toolCallId":"n2","toolName":"random","state":"result","result":{"value":3}}}`,
		`{"type":"tool-invocation","toolInvocation":{"toolCallId":"n3","toolName":"random","state":"partial-call"}}`,
	))
	require.Len(t, got, 3)
	require.Equal(t, StateInputAvailable, got[0].State)
	require.JSONEq(t, `{"expression":"1+1"}`, string(got[0].Input))
	require.Equal(t, StateOutputAvailable, got[1].State)
	require.JSONEq(t, `{"value":3}`, string(got[1].Output))
	require.Equal(t, StateInputStreaming, got[2].State)
}

func TestNormalizeDropsMalformedParts(t *testing.T) {
	got := Normalize(parts(
		`{"type":"text","text":"hello"}`,
		`not json`,
		`["array"]`,
		`{"type":"tool-call","toolName":"calculator"}`,
		`{"type":"tool-invocation","state":"call"}`,
		`{"type":"tool-"}`,
		`{"type":"tool-call","toolCallId":"ok","toolName":"calculator"}`,
	))
	require.Len(t, got, 1)
	require.Equal(t, "ok", got[0].ToolCallID)
	require.Equal(t, StateInputAvailable, got[0].State)
}

func TestNormalizeFirstAppearanceOrder(t *testing.T) {
	got := Normalize(parts(
		`{"type":"tool-call","toolCallId":"x","toolName":"a"}`,
		`{"type":"tool-call","toolCallId":"y","toolName":"b"}`,
		`{"type":"tool-result","toolCallId":"y","output":1}`,
		`{"type":"tool-result","toolCallId":"x","output":2}`,
		`{"type":"tool-result","toolCallId":"z","toolName":"c","output":3}`,
	))
	require.Equal(t, []string{"x", "y", "z"}, []string{got[0].ToolCallID, got[1].ToolCallID, got[2].ToolCallID})
	for _, inv := range got {
		require.Equal(t, StateOutputAvailable, inv.State)
	}
}

func TestNormalizeStreamingDoesNotRegressAvailable(t *testing.T) {
	got := Normalize(parts(
		`{"type":"tool-call","toolCallId":"s","toolName":"a","input":{}}`,
		`{"type":"tool-invocation","toolCallId":"s","state":"input-streaming"}`,
	))
	require.Equal(t, StateInputAvailable, got[0].State)
}

func TestNormalizeEmptyErrorGetsDefaultText(t *testing.T) {
	got := Normalize(parts(`{"type":"tool-error","toolCallId":"q"}`))
	require.Equal(t, StateOutputError, got[0].State)
	require.Equal(t, defaultErrorText, got[0].ErrorText)
}

func TestNormalizeLaterErrorTextFillsSettledError(t *testing.T) {
	got := Normalize(parts(
		`{"type":"tool-invocation","toolCallId":"a","state":"output-error"}`,
		`{"type":"tool-error","toolCallId":"a","error":"boom"}`,
	))
	require.Len(t, got, 1)
	require.Equal(t, StateOutputError, got[0].State)
	require.Equal(t, "boom", got[0].ErrorText)
}

func TestNormalizeRawErrorStateGetsDefaultText(t *testing.T) {
	got := Normalize(parts(`{"type":"tool-invocation","toolCallId":"a","toolName":"calc","state":"output-error"}`))
	require.Equal(t, StateOutputError, got[0].State)
	require.Equal(t, defaultErrorText, got[0].ErrorText)
}

func TestNormalizeSettledErrorKeepsFirstText(t *testing.T) {
	got := Normalize(parts(
		`{"type":"tool-error","toolCallId":"a","error":"first"}`,
		`{"type":"tool-error","toolCallId":"a","error":"second"}`,
	))
	require.Equal(t, "first", got[0].ErrorText)
}

type genPart struct {
	id    int
	shape int
}

func (g genPart) raw() json.RawMessage {
	id := fmt.Sprintf("id%d", g.id)
	switch g.shape {
	case 0:
		return json.RawMessage(fmt.Sprintf(`{"type":"tool-call","toolCallId":%q,"toolName":"t","input":{}}`, id))
	case 1:
		return json.RawMessage(fmt.Sprintf(`{"type":"tool-result","toolCallId":%q,"output":{"ok":true}}`, id))
	case 2:
		return json.RawMessage(fmt.Sprintf(`{"type":"tool-error","toolCallId":%q,"error":"boom"}`, id))
	case 3:
		return json.RawMessage(fmt.Sprintf(`{"type":"tool-invocation","toolCallId":%q,"state":"input-streaming"}`, id))
	case 4:
		return json.RawMessage(fmt.Sprintf(`{"type":"tool-invocation","toolCallId":%q,"state":"output-error"}`, id))
	default:
		return json.RawMessage(`{"type":"text","text":"noise"}`)
	}
}

func genParts() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, 29)).Map(func(ns []int) []genPart {
		out := make([]genPart, len(ns))
		for i, n := range ns {
			out[i] = genPart{id: n / 6, shape: n % 6}
		}
		return out
	})
}

func TestNormalizeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("one invocation per distinct id, in first-appearance order", prop.ForAll(
		func(ps []genPart) bool {
			var raws []json.RawMessage
			var want []string
			seen := map[string]bool{}
			for _, p := range ps {
				raws = append(raws, p.raw())
				if p.shape < 5 {
					id := fmt.Sprintf("id%d", p.id)
					if !seen[id] {
						seen[id] = true
						want = append(want, id)
					}
				}
			}
			got := Normalize(raws)
			if len(got) != len(want) {
				return false
			}
			for i := range got {
				if got[i].ToolCallID != want[i] {
					return false
				}
			}
			return true
		},
		genParts(),
	))

	properties.Property("once terminal an invocation stays terminal", prop.ForAll(
		func(ps []genPart) bool {
			var n Normalizer
			terminal := map[string]State{}
			for _, p := range ps {
				n.Add(p.raw())
				for _, inv := range n.Invocations() {
					if prev, ok := terminal[inv.ToolCallID]; ok && prev != inv.State {
						return false
					}
					if inv.State.Terminal() {
						terminal[inv.ToolCallID] = inv.State
					}
				}
			}
			return true
		},
		genParts(),
	))

	properties.Property("errorText only accompanies output-error", prop.ForAll(
		func(ps []genPart) bool {
			var raws []json.RawMessage
			for _, p := range ps {
				raws = append(raws, p.raw())
			}
			for _, inv := range Normalize(raws) {
				if (inv.ErrorText != "") != (inv.State == StateOutputError) {
					return false
				}
			}
			return true
		},
		genParts(),
	))

	properties.TestingRun(t)
}
