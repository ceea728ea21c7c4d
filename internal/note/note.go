// Package note provides the note domain model, normalization, filtering and repositories.
package note

import (
	"errors"
	"time"
)

const (
	// DefaultAttachmentName is used when an attachment has no usable file name.
	DefaultAttachmentName = "attachment"
	// DefaultAttachmentType is used when an attachment has no MIME type.
	DefaultAttachmentType = "application/octet-stream"
)

var (
	ErrEmptyTitle = errors.New("title is required")
	ErrMissingID  = errors.New("note id is required")
	ErrNotFound   = errors.New("note not found")
)

// Tag is a label embedded in a note. ID is the slug derived from Label.
type Tag struct {
	ID    string `json:"id" validate:"required"`
	Label string `json:"label" validate:"required"`
}

// Attachment is a file embedded into a note as an inline data URL.
type Attachment struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name" validate:"required"`
	Size       int64  `json:"size" validate:"min=0"`
	Type       string `json:"type" validate:"required"`
	PreviewURL string `json:"previewUrl,omitempty" validate:"omitempty,previewurl"`
	DataURL    string `json:"dataUrl,omitempty" validate:"omitempty,dataurl"`
}

// Note is a user-authored record with markdown content.
type Note struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Content     string       `json:"content"`
	Category    string       `json:"category"`
	Tags        []Tag        `json:"tags"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Input is the create/update payload. The store assigns id and timestamps.
type Input struct {
	Title       string       `json:"title" validate:"required"`
	Content     string       `json:"content"`
	Category    string       `json:"category"`
	Tags        []Tag        `json:"tags" validate:"dive"`
	Attachments []Attachment `json:"attachments" validate:"dive"`
}

// Filter narrows a note collection.
// Tags holds tag ids; a note matches only when it carries all of them.
type Filter struct {
	Search   string
	Category string
	Tags     []string
}

// IsZero reports whether the filter matches every note.
func (f Filter) IsZero() bool {
	return f.Search == "" && f.Category == "" && len(f.Tags) == 0
}

// ToInput returns the editable fields of the note.
func (n Note) ToInput() Input {
	return Input{
		Title:       n.Title,
		Content:     n.Content,
		Category:    n.Category,
		Tags:        append([]Tag(nil), n.Tags...),
		Attachments: append([]Attachment(nil), n.Attachments...),
	}
}

// Clone returns a deep copy of the note.
func (n Note) Clone() Note {
	out := n
	out.Tags = append(make([]Tag, 0, len(n.Tags)), n.Tags...)
	out.Attachments = append(make([]Attachment, 0, len(n.Attachments)), n.Attachments...)
	return out
}

// TotalAttachmentSize sums the sizes of the attachments.
func TotalAttachmentSize(attachments []Attachment) int64 {
	var total int64
	for _, a := range attachments {
		if a.Size > 0 {
			total += a.Size
		}
	}
	return total
}
