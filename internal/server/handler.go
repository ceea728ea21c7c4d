// Package server serves the notes API over plain HTTP with JSON bodies.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/at-ishikawa/labloom/internal/metrics"
	"github.com/at-ishikawa/labloom/internal/note"
	"github.com/at-ishikawa/labloom/internal/validation"
)

// DefaultMaxBodyBytes leaves room for a full attachment budget encoded
// as base64 data URLs.
const DefaultMaxBodyBytes = 32 << 20

// Endpoint names, also used as metric route labels.
const (
	RouteRead   = "notes-read"
	RouteCreate = "notes-create"
	RouteUpdate = "notes-update"
	RouteDelete = "notes-delete"
)

// NotesHandler implements the notes endpoints over a repository.
type NotesHandler struct {
	repo         note.Repository
	validator    *validation.Validator
	metrics      *metrics.Metrics
	maxBodyBytes int64
}

// NewNotesHandler creates a NotesHandler. m may be nil.
func NewNotesHandler(repo note.Repository, m *metrics.Metrics) (*NotesHandler, error) {
	v, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("newValidator() > %w", err)
	}
	return &NotesHandler{
		repo:         repo,
		validator:    v,
		metrics:      m,
		maxBodyBytes: DefaultMaxBodyBytes,
	}, nil
}

// Register mounts the endpoints on mux under prefix, for example
// "/.netlify/functions".
func (h *NotesHandler) Register(mux *http.ServeMux, prefix string) {
	prefix = strings.TrimSuffix(prefix, "/")
	routes := []struct {
		name    string
		methods []string
		handler http.HandlerFunc
	}{
		{RouteRead, []string{http.MethodGet}, h.read},
		{RouteCreate, []string{http.MethodPost}, h.create},
		{RouteUpdate, []string{http.MethodPut, http.MethodPatch}, h.update},
		{RouteDelete, []string{http.MethodDelete}, h.delete},
	}
	for _, route := range routes {
		var handler http.Handler = allowMethodsOnly(route.methods, route.handler)
		if h.metrics != nil {
			handler = h.metrics.Middleware(route.name, handler)
		}
		mux.Handle(prefix+"/"+route.name, handler)
	}
}

func allowMethodsOnly(methods []string, next http.HandlerFunc) http.Handler {
	allowed := append(slices.Clone(methods), http.MethodOptions)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", allowMethods)
			w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if !slices.Contains(methods, r.Method) {
			methodNotAllowed(w, allowed)
			return
		}
		next(w, r)
	})
}

func (h *NotesHandler) read(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	ctx := r.Context()

	if id := strings.TrimSpace(query.Get("id")); id != "" {
		n, err := h.repo.Get(ctx, id)
		if errors.Is(err, note.ErrNotFound) {
			notFound(w, "The requested note was not found.")
			return
		}
		if err != nil {
			internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, responseNote(n))
		return
	}

	filter := note.Filter{
		Search:   query.Get("search"),
		Category: strings.TrimSpace(query.Get("category")),
	}
	if query.Has("tags") {
		for _, tag := range strings.Split(query.Get("tags"), ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				filter.Tags = append(filter.Tags, tag)
			}
		}
		if len(filter.Tags) == 0 {
			badRequest(w, "The tag filter is invalid.")
			return
		}
	}

	notes, err := h.repo.List(ctx, filter)
	if err != nil {
		internalError(w, r, err)
		return
	}
	if h.metrics != nil && filter.IsZero() {
		h.metrics.NotesListed.Set(float64(len(notes)))
	}
	body := make([]note.Note, 0, len(notes))
	for _, n := range notes {
		body = append(body, responseNote(n))
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *NotesHandler) create(w http.ResponseWriter, r *http.Request) {
	var input note.Input
	if !h.decode(w, r, &input) {
		return
	}

	n, err := h.repo.Create(r.Context(), input)
	if errors.Is(err, note.ErrEmptyTitle) {
		badRequest(w, "title is a required field")
		return
	}
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, responseNote(n))
}

// UpdateRequest is the body of notes-update.
type UpdateRequest struct {
	ID string `json:"id" validate:"required,uuid"`
	note.Input
}

func (h *NotesHandler) update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !h.decode(w, r, &req) {
		return
	}

	n, err := h.repo.Update(r.Context(), req.ID, req.Input)
	switch {
	case errors.Is(err, note.ErrNotFound):
		notFound(w, "The note to update was not found.")
		return
	case errors.Is(err, note.ErrEmptyTitle):
		badRequest(w, "title is a required field")
		return
	case err != nil:
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, responseNote(n))
}

// DeleteResponse is the body of a successful notes-delete.
type DeleteResponse struct {
	ID string `json:"id"`
}

func (h *NotesHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		badRequest(w, "The id of the note to delete is required.")
		return
	}

	err := h.repo.Delete(r.Context(), id)
	if errors.Is(err, note.ErrNotFound) {
		notFound(w, "The note to delete was not found.")
		return
	}
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{ID: id})
}

// decode reads a JSON body into dst and validates it, writing a 400 and
// returning false on failure.
func (h *NotesHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			badRequest(w, fmt.Sprintf("The request body exceeds %s.", note.FormatBytes(tooLarge.Limit)))
			return false
		}
		internalError(w, r, fmt.Errorf("io.ReadAll() > %w", err))
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		badRequest(w, "The request body is empty.")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		badRequest(w, "The request body is not valid JSON.")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		var invalid *validation.Error
		if errors.As(err, &invalid) {
			badRequest(w, invalid.Error())
			return false
		}
		internalError(w, r, fmt.Errorf("validator.Struct() > %w", err))
		return false
	}
	return true
}

func responseNote(n note.Note) note.Note {
	if n.Tags == nil {
		n.Tags = []note.Tag{}
	}
	if n.Attachments == nil {
		n.Attachments = []note.Attachment{}
	}
	return n
}
