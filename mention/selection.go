package mention

import "slices"

// Selection is the set of tools picked for the message being composed.
// It is cleared once the message is sent.
type Selection struct {
	ids []string
}

// Add selects id. Selecting an id twice has no effect.
func (s *Selection) Add(id string) {
	if id == "" || s.Has(id) {
		return
	}
	s.ids = append(s.ids, id)
}

// Remove deselects id.
func (s *Selection) Remove(id string) {
	s.ids = slices.DeleteFunc(s.ids, func(v string) bool { return v == id })
}

// Has reports whether id is selected.
func (s *Selection) Has(id string) bool {
	return slices.Contains(s.ids, id)
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.ids = nil
}

// IDs returns the selected ids in selection order.
func (s *Selection) IDs() []string {
	return slices.Clone(s.ids)
}

// Len returns the number of selected tools.
func (s *Selection) Len() int {
	return len(s.ids)
}

// Tokens merges the selection with the mentions parsed from text: selected
// ids first, then parsed tokens not already present.
func (s *Selection) Tokens(text string) []string {
	out := make([]string, 0, len(s.ids))
	seen := map[string]bool{}
	for _, id := range s.ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, tok := range Parse(text) {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}
