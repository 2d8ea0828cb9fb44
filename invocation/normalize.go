// Package invocation reconciles the tool-related parts of a chat message
// into one record per tool call.
//
// Messages reach the server in several historical encodings: combined
// tool-invocation parts (optionally nested under toolInvocation), split
// tool-call / tool-result / tool-error parts, and typed tool-<name> parts.
// Normalize classifies each raw part once and merges the fragments that
// share a tool call id.
package invocation

import (
	"encoding/json"
)

// defaultErrorText is used when a failure is reported without a message.
const defaultErrorText = "Tool execution failed"

// Invocation is the reconciled view of one tool call.
type Invocation struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName,omitempty"`
	State      State           `json:"state"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	ErrorText  string          `json:"errorText,omitempty"`
}

// Normalizer accumulates invocations from parts fed in message order.
// The zero value is ready to use.
type Normalizer struct {
	entries map[string]*Invocation
	order   []string
}

// Add merges one raw part. It reports whether the part was tool related
// and well formed; other parts are ignored.
func (n *Normalizer) Add(raw json.RawMessage) bool {
	rec, ok := classify(raw)
	if !ok {
		return false
	}
	if n.entries == nil {
		n.entries = map[string]*Invocation{}
	}
	e, ok := n.entries[rec.key]
	if !ok {
		e = &Invocation{ToolCallID: rec.toolCallID}
		n.entries[rec.key] = e
		n.order = append(n.order, rec.key)
	}
	merge(e, rec)
	return true
}

// Invocations returns the reconciled invocations in first-appearance order.
func (n *Normalizer) Invocations() []Invocation {
	out := make([]Invocation, 0, len(n.order))
	for _, key := range n.order {
		out = append(out, *n.entries[key])
	}
	return out
}

// Normalize reconciles the tool-related parts of one message.
func Normalize(parts []json.RawMessage) []Invocation {
	var n Normalizer
	for _, p := range parts {
		n.Add(p)
	}
	return n.Invocations()
}

func merge(e *Invocation, r record) {
	if e.State.Terminal() {
		// Frozen: only fill gaps consistent with the settled state.
		if e.ToolName == "" {
			e.ToolName = r.toolName
		}
		if e.Input == nil {
			e.Input = r.input
		}
		if e.State == StateOutputAvailable && e.Output == nil {
			e.Output = r.output
		}
		if e.State == StateOutputError && r.hasError && r.errorText != "" &&
			(e.ErrorText == "" || e.ErrorText == defaultErrorText) {
			e.ErrorText = r.errorText
		}
		return
	}

	if r.toolName != "" {
		e.ToolName = r.toolName
	}
	if r.input != nil {
		e.Input = r.input
	}
	if r.output != nil {
		e.Output = r.output
	}
	if r.hasError {
		e.ErrorText = r.errorText
		if e.ErrorText == "" {
			e.ErrorText = defaultErrorText
		}
	}

	next := derive(e, r)
	if next.rank() >= e.State.rank() {
		e.State = next
	}
	switch {
	case e.State != StateOutputError:
		e.ErrorText = ""
	case e.ErrorText == "":
		// A raw output-error state reported without a message.
		e.ErrorText = defaultErrorText
	}
}

func derive(e *Invocation, r record) State {
	switch {
	case e.ErrorText != "":
		return StateOutputError
	case e.Output != nil:
		return StateOutputAvailable
	}
	if s, ok := parseRawState(r.rawState); ok {
		return s
	}
	return StateInputAvailable
}
