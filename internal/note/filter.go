package note

import (
	"slices"
	"strings"
)

// Match reports whether the note satisfies every part of the filter:
// case-insensitive substring search across title, content and tag labels,
// exact category, and all of the tag ids.
func (f Filter) Match(n Note) bool {
	if category := strings.TrimSpace(f.Category); category != "" && n.Category != category {
		return false
	}

	for _, tagID := range f.Tags {
		tagID = strings.TrimSpace(tagID)
		if tagID == "" {
			continue
		}
		if !slices.ContainsFunc(n.Tags, func(tag Tag) bool { return tag.ID == tagID }) {
			return false
		}
	}

	query := strings.ToLower(strings.TrimSpace(f.Search))
	if query == "" {
		return true
	}
	labels := make([]string, 0, len(n.Tags))
	for _, tag := range n.Tags {
		labels = append(labels, tag.Label)
	}
	searchable := strings.ToLower(n.Title + " " + n.Content + " " + strings.Join(labels, " "))
	return strings.Contains(searchable, query)
}

// FilterNotes returns the notes matching the filter, keeping order.
func FilterNotes(notes []Note, f Filter) []Note {
	out := make([]Note, 0, len(notes))
	for _, n := range notes {
		if f.Match(n) {
			out = append(out, n)
		}
	}
	return out
}

// SortByUpdatedAt returns a copy of notes ordered by UpdatedAt, newest
// first. Ties fall back to CreatedAt and then to the id.
func SortByUpdatedAt(notes []Note) []Note {
	out := slices.Clone(notes)
	slices.SortStableFunc(out, func(a, b Note) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Categories lists the distinct non-empty categories in first-seen order.
func Categories(notes []Note) []string {
	var out []string
	for _, n := range notes {
		if n.Category != "" && !slices.Contains(out, n.Category) {
			out = append(out, n.Category)
		}
	}
	return out
}

// IndexByID returns the position of the note with the given id, or -1.
func IndexByID(notes []Note, id string) int {
	return slices.IndexFunc(notes, func(n Note) bool { return n.ID == id })
}
