// Package remote talks to the notes API, the authoritative note store.
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/at-ishikawa/labloom/internal/note"
)

//go:generate mockgen -source=remote.go -destination=../mocks/remote/mock_store.go -package=mock_remote

// Store is the remote note store used by the reconciliation controller.
type Store interface {
	ListNotes(ctx context.Context, filter note.Filter) ([]note.Note, error)
	CreateNote(ctx context.Context, input note.Input) (note.Note, error)
	UpdateNote(ctx context.Context, id string, input note.Input) (note.Note, error)
	DeleteNote(ctx context.Context, id string) (string, error)
}

var (
	// ErrTransport covers an unreachable server, an unexpected status and a
	// body that is not the expected JSON.
	ErrTransport = errors.New("remote store is unavailable")
	// ErrNotFound is returned when the server has no note with the id.
	ErrNotFound = errors.New("note not found on the remote store")
)

// ValidationError is returned when the server rejects a payload.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return "remote store rejected the note"
	}
	return fmt.Sprintf("remote store rejected the note: %s", e.Message)
}

// IsTransport reports whether err is a transport-level failure.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsNotFound reports whether the server answered that the note does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether the server rejected the payload.
func IsValidation(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}
