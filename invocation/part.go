package invocation

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// kind is the explicit variant a raw part is classified into.
type kind int

const (
	kindOther kind = iota
	kindCombined
	kindCall
	kindResult
	kindError
	kindTyped
)

// record is a classified tool-related part. Absent fields stay empty.
type record struct {
	kind       kind
	key        string
	toolCallID string
	toolName   string
	input      json.RawMessage
	output     json.RawMessage
	errorText  string
	hasError   bool
	rawState   string
}

const typedPrefix = "tool-"

// classify decodes one raw part. Parts that are not tool related, or that
// lack the data needed to key them, yield ok=false.
func classify(raw json.RawMessage) (record, bool) {
	if !gjson.ValidBytes(raw) {
		return record{}, false
	}
	part := gjson.ParseBytes(raw)
	if !part.IsObject() {
		return record{}, false
	}
	typ := part.Get("type").String()

	var r record
	switch {
	case typ == "tool-invocation" || typ == "dynamic-tool":
		r.kind = kindCombined
		// Older clients nest the fields under toolInvocation.
		src := part
		if nested := part.Get("toolInvocation"); nested.IsObject() {
			src = nested
		}
		r.fill(src)
	case typ == "tool-call":
		r.kind = kindCall
		r.fill(part)
	case typ == "tool-result":
		r.kind = kindResult
		r.fill(part)
	case typ == "tool-error":
		r.kind = kindError
		r.fill(part)
		if !r.hasError {
			r.hasError = true
			r.errorText = firstString(part, "error", "message")
		}
	case strings.HasPrefix(typ, typedPrefix) && len(typ) > len(typedPrefix):
		r.kind = kindTyped
		r.fill(part)
		if r.toolName == "" {
			r.toolName = strings.TrimPrefix(typ, typedPrefix)
		}
		r.key = r.toolCallID
		if r.key == "" {
			r.key = "typed-" + typ
			r.toolCallID = r.key
		}
		return r, true
	default:
		return record{}, false
	}

	if r.toolCallID == "" {
		return record{}, false
	}
	r.key = r.toolCallID
	return r, true
}

func (r *record) fill(src gjson.Result) {
	r.toolCallID = src.Get("toolCallId").String()
	r.toolName = src.Get("toolName").String()
	r.input = firstRaw(src, "input", "args")
	r.output = firstRaw(src, "output", "result")
	r.rawState = src.Get("state").String()
	if e := src.Get("errorText"); present(e) {
		r.hasError = true
		r.errorText = e.String()
	}
}

func present(v gjson.Result) bool {
	return v.Exists() && v.Type != gjson.Null
}

func firstRaw(src gjson.Result, keys ...string) json.RawMessage {
	for _, k := range keys {
		if v := src.Get(k); present(v) {
			return json.RawMessage(v.Raw)
		}
	}
	return nil
}

func firstString(src gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := src.Get(k); present(v) {
			if v.Type == gjson.String {
				return v.String()
			}
			return v.Raw
		}
	}
	return ""
}
