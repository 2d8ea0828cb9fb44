package invocation

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// TextContent concatenates the text parts of a message.
func TextContent(parts []json.RawMessage) string {
	var b strings.Builder
	eachOfType(parts, "text", func(p gjson.Result) {
		b.WriteString(p.Get("text").String())
	})
	return b.String()
}

// Reasoning concatenates the reasoning parts of a message. ok is false
// when the message carries no reasoning part.
func Reasoning(parts []json.RawMessage) (text string, ok bool) {
	var b strings.Builder
	eachOfType(parts, "reasoning", func(p gjson.Result) {
		ok = true
		b.WriteString(p.Get("text").String())
	})
	return b.String(), ok
}

// Source is a citation attached to a message.
type Source struct {
	ID    string `json:"id,omitempty"`
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// Sources returns the citations of a message in order. Both the flat
// source-url form and the legacy nested source form are accepted.
func Sources(parts []json.RawMessage) []Source {
	var out []Source
	for _, raw := range parts {
		if !gjson.ValidBytes(raw) {
			continue
		}
		p := gjson.ParseBytes(raw)
		switch p.Get("type").String() {
		case "source":
			src := p
			if nested := p.Get("source"); nested.IsObject() {
				src = nested
			}
			out = append(out, Source{
				ID:    firstString(src, "id", "sourceId"),
				URL:   src.Get("url").String(),
				Title: src.Get("title").String(),
			})
		case "source-url":
			out = append(out, Source{
				ID:    p.Get("sourceId").String(),
				URL:   p.Get("url").String(),
				Title: p.Get("title").String(),
			})
		}
	}
	return out
}

func eachOfType(parts []json.RawMessage, typ string, fn func(gjson.Result)) {
	for _, raw := range parts {
		if !gjson.ValidBytes(raw) {
			continue
		}
		p := gjson.ParseBytes(raw)
		if p.Get("type").String() == typ {
			fn(p)
		}
	}
}

var toolTitles = map[string]string{
	"google_search":  "Google Search",
	"url_context":    "URL Context",
	"code_execution": "Code Execution",
	"displayWeather": "🌤️ Weather",
	"calculator":     "🧮 Calculator",
	"random":         "🎲 Random Generator",
}

// ToolTitle returns the human-readable title of a tool. Unknown names are
// converted from snake or kebab case to Title Case.
func ToolTitle(name string) string {
	if title, ok := toolTitles[name]; ok {
		return title
	}
	b := []byte(strings.NewReplacer("-", " ", "_", " ").Replace(name))
	prevWord := false
	for i, c := range b {
		word := c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
		if word && !prevWord && c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
		prevWord = word
	}
	return string(b)
}
