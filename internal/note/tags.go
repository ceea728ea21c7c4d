package note

import (
	"strings"
	"unicode"
)

// Slugify derives a tag id from a label: lowercase, every run of
// characters that are neither letters nor digits becomes one hyphen,
// and leading or trailing hyphens are trimmed. A label without any
// letter or digit gets a random id.
func Slugify(label string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(strings.TrimSpace(label)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	if b.Len() == 0 {
		return NewID("tag")
	}
	return b.String()
}

// ParseTags splits comma separated input into tags, deduplicated by id.
func ParseTags(input string) []Tag {
	tokens := strings.Split(input, ",")
	tags := make([]Tag, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		label := collapseSpaces(token)
		if label == "" {
			continue
		}
		id := Slugify(label)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		tags = append(tags, Tag{ID: id, Label: label})
	}
	return tags
}

// FormatTags renders tags back into the comma separated input form.
func FormatTags(tags []Tag) string {
	labels := make([]string, 0, len(tags))
	for _, tag := range tags {
		labels = append(labels, tag.Label)
	}
	return strings.Join(labels, ", ")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
