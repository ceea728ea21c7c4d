package note

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "local-notes.json")
	repo := NewFileRepository(path)
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }

	notes, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, notes)
	assert.FileExists(t, path)

	first, err := repo.Create(ctx, Input{Title: "First", Category: "backend", Tags: ParseTags("Postgres")})
	require.NoError(t, err)
	clock = clock.Add(time.Hour)
	second, err := repo.Create(ctx, Input{Title: "Second"})
	require.NoError(t, err)

	notes, err = repo.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID, first.ID}, noteIDs(notes))

	notes, err = repo.List(ctx, Filter{Category: "backend", Tags: []string{"postgres"}})
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID}, noteIDs(notes))

	clock = clock.Add(time.Hour)
	updated, err := repo.Update(ctx, first.ID, Input{Title: "First (edited)"})
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, updated.CreatedAt)
	assert.Equal(t, clock, updated.UpdatedAt)

	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)

	require.NoError(t, repo.Delete(ctx, first.ID))
	_, err = repo.Get(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	reopened := NewFileRepository(path)
	notes, err = reopened.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID}, noteIDs(notes))
}

func TestFileRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewFileRepository(filepath.Join(t.TempDir(), "notes.json"))

	_, err := repo.Update(ctx, "missing", Input{Title: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "missing"), ErrNotFound)
}

func TestFileRepository_DropsInvalidEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.json")
	content := `[
  {"id": "n1", "title": "Kept", "createdAt": "2025-01-01T00:00:00Z", "updatedAt": "2025-01-01T00:00:00Z"},
  {"id": "n2", "title": "  "},
  {"title": "No id"}
]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	notes, err := NewFileRepository(path).List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, noteIDs(notes))
}

func TestFileRepository_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))

	_, err := NewFileRepository(path).List(context.Background(), Filter{})
	assert.Error(t, err)
}
