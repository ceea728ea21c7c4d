package note

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileRepository implements Repository on top of a single JSON file.
// It is meant for local development without a database.
type FileRepository struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewFileRepository creates a FileRepository storing notes at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path, now: time.Now}
}

// List returns the notes matching the filter, most recently updated first.
func (r *FileRepository) List(_ context.Context, filter Filter) ([]Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	notes, err := r.read()
	if err != nil {
		return nil, err
	}
	return SortByUpdatedAt(FilterNotes(notes, filter)), nil
}

// Get returns the note with the given id or ErrNotFound.
func (r *FileRepository) Get(_ context.Context, id string) (Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	notes, err := r.read()
	if err != nil {
		return Note{}, err
	}
	index := IndexByID(notes, id)
	if index < 0 {
		return Note{}, ErrNotFound
	}
	return notes[index], nil
}

// Create appends a note with a new UUID.
func (r *FileRepository) Create(_ context.Context, input Input) (Note, error) {
	if err := input.Validate(); err != nil {
		return Note{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	notes, err := r.read()
	if err != nil {
		return Note{}, err
	}
	now := r.now().UTC()
	n := input.Apply(uuid.NewString(), now, now)
	if err := r.write(append(notes, n)); err != nil {
		return Note{}, err
	}
	return n, nil
}

// Update replaces the editable fields of the note.
func (r *FileRepository) Update(_ context.Context, id string, input Input) (Note, error) {
	if err := input.Validate(); err != nil {
		return Note{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	notes, err := r.read()
	if err != nil {
		return Note{}, err
	}
	index := IndexByID(notes, id)
	if index < 0 {
		return Note{}, ErrNotFound
	}
	n := input.Apply(id, notes[index].CreatedAt, r.now().UTC())
	notes[index] = n
	if err := r.write(notes); err != nil {
		return Note{}, err
	}
	return n, nil
}

// Delete removes the note or returns ErrNotFound.
func (r *FileRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	notes, err := r.read()
	if err != nil {
		return err
	}
	index := IndexByID(notes, id)
	if index < 0 {
		return ErrNotFound
	}
	return r.write(append(notes[:index], notes[index+1:]...))
}

// read loads the file, creating an empty store when it does not exist.
// Entries that cannot be normalized are dropped.
func (r *FileRepository) read() ([]Note, error) {
	content, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := r.write(nil); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile(%s) > %w", r.path, err)
	}

	var raw []RawNote
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("json.Unmarshal(%s) > %w", r.path, err)
	}
	notes := make([]Note, 0, len(raw))
	for _, entry := range raw {
		n, err := NormalizeNote(entry)
		if err != nil {
			continue
		}
		notes = append(notes, n)
	}
	return notes, nil
}

func (r *FileRepository) write(notes []Note) error {
	if notes == nil {
		notes = []Note{}
	}
	content, err := json.MarshalIndent(notes, "", "  ")
	if err != nil {
		return fmt.Errorf("json.MarshalIndent() > %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("os.MkdirAll(%s) > %w", filepath.Dir(r.path), err)
	}
	if err := os.WriteFile(r.path, content, 0644); err != nil {
		return fmt.Errorf("os.WriteFile(%s) > %w", r.path, err)
	}
	return nil
}
