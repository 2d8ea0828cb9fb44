// Package mention turns @tool mentions in a user message into the tool set
// sent with the next request.
package mention

import (
	"regexp"
	"strings"

	"github.com/inspirepan/chatcore/registry"
)

var mentionRe = regexp.MustCompile(`@(\w+)`)

// Parse returns the lowercased mention tokens of text, without the leading
// @, deduplicated by first occurrence.
func Parse(text string) []string {
	matches := mentionRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		tok := strings.ToLower(m[1])
		if seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// Strip removes every mention from text and collapses the whitespace left
// behind.
func Strip(text string) string {
	return strings.Join(strings.Fields(mentionRe.ReplaceAllString(text, "")), " ")
}

// Resolve maps tokens onto available tools. A token matches a tool id
// first and otherwise the first tool whose name matches; both comparisons
// ignore case. Unmatched tokens are dropped and each tool appears at most
// once, in token order.
func Resolve(tokens []string, available []registry.Serialized) []registry.Serialized {
	if len(tokens) == 0 || len(available) == 0 {
		return nil
	}
	var out []registry.Serialized
	picked := map[string]bool{}
	for _, tok := range tokens {
		tool, ok := lookup(strings.ToLower(tok), available)
		if !ok || picked[tool.ID] {
			continue
		}
		picked[tool.ID] = true
		out = append(out, tool)
	}
	return out
}

func lookup(tok string, available []registry.Serialized) (registry.Serialized, bool) {
	for _, t := range available {
		if strings.ToLower(t.ID) == tok {
			return t, true
		}
	}
	for _, t := range available {
		if strings.ToLower(t.Name) == tok {
			return t, true
		}
	}
	return registry.Serialized{}, false
}

// ActiveQuery returns the partial mention ending at cursor, if the cursor
// sits inside one. It drives suggestion menus while the user types.
func ActiveQuery(text string, cursor int) (string, bool) {
	if cursor < 0 || cursor > len(text) {
		return "", false
	}
	head := text[:cursor]
	at := strings.LastIndexByte(head, '@')
	if at < 0 {
		return "", false
	}
	if at > 0 && isWordByte(head[at-1]) {
		return "", false
	}
	q := head[at+1:]
	for i := 0; i < len(q); i++ {
		if !isWordByte(q[i]) {
			return "", false
		}
	}
	return q, true
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
