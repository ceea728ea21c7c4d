package note

import (
	"math"
	"strings"
	"time"
)

// RawAttachment is an attachment of unknown shape, as read from a server
// payload or from local storage. Every field is optional.
type RawAttachment struct {
	ID         string   `json:"id,omitempty" yaml:"id,omitempty"`
	Name       string   `json:"name,omitempty" yaml:"name,omitempty"`
	Size       *float64 `json:"size,omitempty" yaml:"size,omitempty"`
	Type       string   `json:"type,omitempty" yaml:"type,omitempty"`
	PreviewURL string   `json:"previewUrl,omitempty" yaml:"previewUrl,omitempty"`
	DataURL    string   `json:"dataUrl,omitempty" yaml:"dataUrl,omitempty"`
}

// RawNote is a note of unknown shape. Category, tags and attachments may be
// missing or null; timestamps are RFC 3339 strings.
type RawNote struct {
	ID          string          `json:"id" yaml:"id"`
	Title       string          `json:"title" yaml:"title"`
	Content     string          `json:"content" yaml:"content"`
	Category    *string         `json:"category" yaml:"category"`
	Tags        []Tag           `json:"tags" yaml:"tags"`
	Attachments []RawAttachment `json:"attachments" yaml:"attachments"`
	CreatedAt   string          `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   string          `json:"updatedAt" yaml:"updatedAt"`
}

// NormalizeAttachment fills every optional attachment field with its default.
func NormalizeAttachment(raw RawAttachment) Attachment {
	preview := strings.TrimSpace(raw.PreviewURL)
	if preview == "" {
		preview = strings.TrimSpace(raw.DataURL)
	}
	dataURL := strings.TrimSpace(raw.DataURL)
	if dataURL == "" && strings.HasPrefix(preview, "data:") {
		dataURL = preview
	}

	id := strings.TrimSpace(raw.ID)
	if id == "" {
		id = NewID("att")
	}
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		name = DefaultAttachmentName
	}
	mimeType := strings.TrimSpace(raw.Type)
	if mimeType == "" {
		mimeType = DefaultAttachmentType
	}

	var size int64
	if raw.Size != nil && !math.IsNaN(*raw.Size) && !math.IsInf(*raw.Size, 0) && *raw.Size > 0 {
		size = int64(*raw.Size)
	}

	return Attachment{
		ID:         id,
		Name:       name,
		Size:       size,
		Type:       mimeType,
		PreviewURL: preview,
		DataURL:    dataURL,
	}
}

// Raw converts an attachment back into its loosely-typed form.
func (a Attachment) Raw() RawAttachment {
	size := float64(a.Size)
	return RawAttachment{
		ID:         a.ID,
		Name:       a.Name,
		Size:       &size,
		Type:       a.Type,
		PreviewURL: a.PreviewURL,
		DataURL:    a.DataURL,
	}
}

// NormalizeAttachments normalizes each attachment, keeping order.
func NormalizeAttachments(attachments []Attachment) []Attachment {
	out := make([]Attachment, 0, len(attachments))
	for _, a := range attachments {
		out = append(out, NormalizeAttachment(a.Raw()))
	}
	return out
}

// NormalizeTags drops empty tags, derives missing ids from labels and
// dedupes by id, keeping the first occurrence.
func NormalizeTags(tags []Tag) []Tag {
	out := make([]Tag, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		label := collapseSpaces(tag.Label)
		id := strings.TrimSpace(tag.ID)
		if id == "" && label == "" {
			continue
		}
		if id == "" {
			id = Slugify(label)
		}
		if label == "" {
			label = id
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, Tag{ID: id, Label: label})
	}
	return out
}

// NormalizeNote turns a loosely-shaped note into a Note. A note without an
// id or with a blank title is rejected rather than defaulted.
func NormalizeNote(raw RawNote) (Note, error) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return Note{}, ErrMissingID
	}
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return Note{}, ErrEmptyTitle
	}

	category := ""
	if raw.Category != nil {
		category = strings.TrimSpace(*raw.Category)
	}

	attachments := make([]Attachment, 0, len(raw.Attachments))
	for _, a := range raw.Attachments {
		attachments = append(attachments, NormalizeAttachment(a))
	}

	createdAt, createdOK := parseTimestamp(raw.CreatedAt)
	updatedAt, updatedOK := parseTimestamp(raw.UpdatedAt)
	switch {
	case !createdOK && !updatedOK:
		createdAt = time.Now().UTC()
		updatedAt = createdAt
	case !createdOK:
		createdAt = updatedAt
	case !updatedOK:
		updatedAt = createdAt
	}
	if updatedAt.Before(createdAt) {
		updatedAt = createdAt
	}

	return Note{
		ID:          id,
		Title:       title,
		Content:     raw.Content,
		Category:    category,
		Tags:        NormalizeTags(raw.Tags),
		Attachments: attachments,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

// Raw converts a note back into its loosely-typed form.
func (n Note) Raw() RawNote {
	category := n.Category
	attachments := make([]RawAttachment, 0, len(n.Attachments))
	for _, a := range n.Attachments {
		attachments = append(attachments, a.Raw())
	}
	return RawNote{
		ID:          n.ID,
		Title:       n.Title,
		Content:     n.Content,
		Category:    &category,
		Tags:        n.Tags,
		Attachments: attachments,
		CreatedAt:   n.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:   n.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// Validate rejects inputs that must never reach a store.
func (in Input) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// Normalize trims the text fields and fills attachment and tag defaults.
func (in Input) Normalize() Input {
	return Input{
		Title:       strings.TrimSpace(in.Title),
		Content:     in.Content,
		Category:    strings.TrimSpace(in.Category),
		Tags:        NormalizeTags(in.Tags),
		Attachments: NormalizeAttachments(in.Attachments),
	}
}

// Apply builds a note from the input with the given identity and timestamps.
func (in Input) Apply(id string, createdAt, updatedAt time.Time) Note {
	normalized := in.Normalize()
	if updatedAt.Before(createdAt) {
		updatedAt = createdAt
	}
	return Note{
		ID:          id,
		Title:       normalized.Title,
		Content:     normalized.Content,
		Category:    normalized.Category,
		Tags:        normalized.Tags,
		Attachments: normalized.Attachments,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
}

func parseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
