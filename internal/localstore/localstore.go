// Package localstore keeps a bounded copy of the notes in a key-value slot
// so that they survive while the remote store is unreachable.
package localstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/at-ishikawa/labloom/internal/kvstore"
	"github.com/at-ishikawa/labloom/internal/note"
)

const (
	// Key is the slot holding the serialized collection.
	Key = "labloom.localNotes"
	// DefaultLimit is the number of most recently updated notes retained.
	DefaultLimit = 10
)

// Store persists notes into a kvstore.Store under Key.
type Store struct {
	kv    kvstore.Store
	limit int
}

// New creates a Store retaining at most limit notes. A non-positive limit
// uses DefaultLimit.
func New(kv kvstore.Store, limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{kv: kv, limit: limit}
}

// Limit returns the retention cap.
func (s *Store) Limit() int {
	return s.limit
}

// Save writes the most recently updated notes. Failures are logged and
// never returned: the in-memory collection stays authoritative.
func (s *Store) Save(ctx context.Context, notes []note.Note) {
	payload, err := json.Marshal(s.prepare(notes))
	if err != nil {
		logrus.WithError(err).Warn("failed to encode local notes")
		return
	}

	err = s.kv.Set(ctx, Key, payload)
	if errors.Is(err, kvstore.ErrQuotaExceeded) {
		logrus.WithField("bytes", len(payload)).Debug("local notes quota exceeded, retrying")
		err = s.kv.Set(ctx, Key, payload)
	}
	if err != nil {
		logrus.WithError(err).WithField("bytes", len(payload)).Warn("failed to save local notes")
	}
}

// Load returns the persisted notes. A missing or malformed payload yields an
// empty collection, and entries that are not well-formed notes are dropped.
func (s *Store) Load(ctx context.Context) []note.Note {
	notes := []note.Note{}

	payload, err := s.kv.Get(ctx, Key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return notes
	}
	if err != nil {
		logrus.WithError(err).Warn("failed to read local notes")
		return notes
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(payload, &entries); err != nil {
		logrus.WithError(err).Warn("local notes are not a list")
		return notes
	}
	for i, entry := range entries {
		entry = bytes.TrimSpace(entry)
		if len(entry) == 0 || entry[0] != '{' {
			continue
		}
		var raw note.RawNote
		if err := json.Unmarshal(entry, &raw); err != nil {
			logrus.WithError(err).WithField("index", i).Debug("dropping malformed local note")
			continue
		}
		n, err := note.NormalizeNote(raw)
		if err != nil {
			logrus.WithError(err).WithField("index", i).Debug("dropping invalid local note")
			continue
		}
		notes = append(notes, n)
	}
	return notes
}

// prepare sorts by recency, applies the cap and drops preview URLs that only
// repeat the data URL. Normalization restores them on load.
func (s *Store) prepare(notes []note.Note) []note.Note {
	sorted := note.SortByUpdatedAt(notes)
	if len(sorted) > s.limit {
		sorted = sorted[:s.limit]
	}
	out := make([]note.Note, 0, len(sorted))
	for _, n := range sorted {
		n = n.Clone()
		for i, a := range n.Attachments {
			if a.PreviewURL == a.DataURL {
				n.Attachments[i].PreviewURL = ""
			}
		}
		out = append(out, n)
	}
	return out
}
