// Package highlight decides which tracked bodies get visual emphasis.
package highlight

import "strings"

// Inputs are the externally supplied search term and selected body id.
// An empty SelectedID means nothing is selected.
type Inputs struct {
	Term       string `json:"term"`
	SelectedID string `json:"selected_id"`
}

// IsHighlighted reports whether a body matches the selection or the search
// term. The body is highlighted when selectedID equals its id, or when term
// is non-empty and contained case-insensitively in its id or label.
func IsHighlighted(id, label, term, selectedID string) bool {
	if selectedID != "" && selectedID == id {
		return true
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return false
	}
	t := strings.ToLower(term)
	return strings.Contains(strings.ToLower(id), t) || strings.Contains(strings.ToLower(label), t)
}

// Match applies IsHighlighted with these inputs.
func (in Inputs) Match(id, label string) bool {
	return IsHighlighted(id, label, in.Term, in.SelectedID)
}
