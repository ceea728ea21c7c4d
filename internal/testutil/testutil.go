// Package testutil provides shared test helpers for config files and note fixtures.
package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/labloom/internal/note"
)

// SetupTestConfig writes a config file that prefers the remote store at
// remoteURL and keeps the local fallback under tmpDir/local.
// Returns the path to the generated config file.
func SetupTestConfig(t *testing.T, tmpDir, remoteURL string) string {
	t.Helper()

	localDir := filepath.Join(tmpDir, "local")
	require.NoError(t, os.MkdirAll(localDir, 0755))

	configContent := fmt.Sprintf(`notes:
  store: file
  file: %s
remote:
  url: %s
  prefer_remote: true
  timeout_seconds: 2
  retry_attempts: 0
local:
  backend: file
  directory: %s
log:
  level: error
`,
		filepath.Join(tmpDir, "notes.json"),
		remoteURL,
		localDir,
	)

	cfgPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(configContent), 0644))
	return cfgPath
}

// NoteOption configures optional fields of a note fixture.
type NoteOption func(*note.Note)

// WithTags sets the tags of the note fixture.
func WithTags(tags ...note.Tag) NoteOption {
	return func(n *note.Note) {
		n.Tags = tags
	}
}

// WithCategory sets the category of the note fixture.
func WithCategory(category string) NoteOption {
	return func(n *note.Note) {
		n.Category = category
	}
}

// WithAttachments sets the attachments of the note fixture.
func WithAttachments(attachments ...note.Attachment) NoteOption {
	return func(n *note.Note) {
		n.Attachments = attachments
	}
}

// NewNote creates a note fixture created one hour before updatedAt.
func NewNote(id, title string, updatedAt time.Time, opts ...NoteOption) note.Note {
	n := note.Note{
		ID:          id,
		Title:       title,
		Content:     "Content of " + title,
		Tags:        []note.Tag{},
		Attachments: []note.Attachment{},
		CreatedAt:   updatedAt.Add(-time.Hour),
		UpdatedAt:   updatedAt,
	}
	for _, opt := range opts {
		opt(&n)
	}
	return n
}

// WriteNotesFile writes notes in the JSON layout read by note.FileRepository
// and note.ReadSeedFile.
func WriteNotesFile(t *testing.T, path string, notes ...note.Note) {
	t.Helper()
	if notes == nil {
		notes = []note.Note{}
	}
	content, err := json.MarshalIndent(notes, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, content, 0644))
}
