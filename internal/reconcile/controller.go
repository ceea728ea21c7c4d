// Package reconcile keeps the in-memory note collection consistent with the
// remote store and the local fallback store.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/at-ishikawa/labloom/internal/note"
	"github.com/at-ishikawa/labloom/internal/remote"
)

// ErrBusy is returned when another load or mutation is in flight.
var ErrBusy = errors.New("another operation is in progress")

// LocalStore is the bounded fallback copy of the collection.
type LocalStore interface {
	Load(ctx context.Context) []note.Note
	Save(ctx context.Context, notes []note.Note)
}

// Config holds the startup preferences of a Controller.
type Config struct {
	// PreferRemote makes Load try the remote store first.
	PreferRemote bool
	// Seed returns the sample notes used when the local store is empty.
	Seed func(now time.Time) []note.Note
	Now  func() time.Time
}

// Snapshot is a consistent read of the controller state.
type Snapshot struct {
	Mode       Mode
	Status     Status
	Message    string
	Detail     string
	Syncing    bool
	Saving     bool
	Deleting   bool
	CanSync    bool
	Synced     bool
	LocalHash  string
	RemoteHash string
	Total      int
	Visible    int
	SelectedID string
}

// Controller owns the unified note collection. Network and storage calls
// happen outside the lock; mutations are rejected with ErrBusy while
// another one is in flight rather than queued.
type Controller struct {
	remote       remote.Store
	local        LocalStore
	seed         func(now time.Time) []note.Note
	now          func() time.Time
	preferRemote bool

	mu         sync.Mutex
	mode       Mode
	status     Status
	detail     string
	syncing    bool
	saving     bool
	deleting   bool
	notes      []note.Note
	filter     note.Filter
	selectedID string
	localHash  string
	remoteHash string
	// provisional holds the ids of created notes the remote store has not
	// confirmed yet.
	provisional map[string]note.Note
}

// New creates a Controller. A nil remote keeps the controller local-only.
func New(remoteStore remote.Store, local LocalStore, cfg Config) *Controller {
	if cfg.Seed == nil {
		cfg.Seed = note.SeedNotes
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Controller{
		remote:       remoteStore,
		local:        local,
		seed:         cfg.Seed,
		now:          cfg.Now,
		preferRemote: cfg.PreferRemote && remoteStore != nil,
		mode:         ModeLocalOnly,
		notes:        []note.Note{},
		provisional:  make(map[string]note.Note),
	}
}

// Load populates the collection: from the remote store when remote is
// preferred, otherwise from the local store or the seed notes.
func (c *Controller) Load(ctx context.Context) error {
	if !c.preferRemote {
		return c.loadLocal(ctx)
	}
	return c.loadRemote(ctx)
}

// Resync reads the remote store regardless of the current mode.
func (c *Controller) Resync(ctx context.Context) error {
	return c.loadRemote(ctx)
}

func (c *Controller) loadLocal(ctx context.Context) error {
	c.mu.Lock()
	if c.busy() {
		c.mu.Unlock()
		return ErrBusy
	}
	c.syncing = true
	c.mu.Unlock()

	notes := c.localOrSeed(ctx)
	c.local.Save(ctx, notes)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncing = false
	c.mode = ModeLocalOnly
	c.setNotes(notes)
	c.remoteHash = ""
	c.selectFirst()
	c.setStatus(StatusLocalMode, "")
	return nil
}

func (c *Controller) loadRemote(ctx context.Context) error {
	c.mu.Lock()
	if c.busy() {
		c.mu.Unlock()
		return ErrBusy
	}
	c.syncing = true
	c.mu.Unlock()

	notes, err := c.listRemote(ctx)
	if err != nil {
		logrus.WithError(err).Warn("remote load failed, switching to local data")
		local := c.localOrSeed(ctx)
		c.local.Save(ctx, local)

		c.mu.Lock()
		defer c.mu.Unlock()
		c.syncing = false
		c.mode = ModeLocalOnly
		c.setNotes(local)
		c.remoteHash = ""
		c.selectFirst()
		c.setStatus(StatusRemoteUnavailable, err.Error())
		return nil
	}

	notes = note.SortByUpdatedAt(notes)
	c.local.Save(ctx, notes)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncing = false
	c.mode = ModeRemoteActive
	c.setNotes(notes)
	c.remoteHash = c.localHash
	c.selectFirst()
	if len(notes) == 0 {
		c.setStatus(StatusRemoteEmpty, "")
	} else {
		c.setStatus(StatusRemoteSynced, "")
	}
	return nil
}

func (c *Controller) listRemote(ctx context.Context) ([]note.Note, error) {
	if c.remote == nil {
		return nil, fmt.Errorf("%w: no remote store is configured", remote.ErrTransport)
	}
	notes, err := c.remote.ListNotes(ctx, note.Filter{})
	if err != nil {
		return nil, fmt.Errorf("remote.ListNotes() > %w", err)
	}
	return notes, nil
}

func (c *Controller) localOrSeed(ctx context.Context) []note.Note {
	notes := c.local.Load(ctx)
	if len(notes) == 0 {
		notes = c.seed(c.now())
	}
	return note.SortByUpdatedAt(notes)
}

// Create adds a note. While remote is active the note is shown as a
// provisional record until the remote store confirms it; any failure other
// than a validation error keeps it locally and switches to local-only.
func (c *Controller) Create(ctx context.Context, input note.Input) (note.Note, error) {
	if err := input.Validate(); err != nil {
		return note.Note{}, err
	}

	c.mu.Lock()
	if c.busy() {
		c.mu.Unlock()
		return note.Note{}, ErrBusy
	}
	now := c.now().UTC()
	provisional := input.Apply(note.NewID("note"), now, now)
	c.saving = true
	mode := c.mode
	c.provisional[provisional.ID] = provisional
	c.setNotes(mergeNote(c.notes, provisional))
	c.selectedID = provisional.ID
	c.reconcileSelection()
	c.mu.Unlock()

	if mode == ModeLocalOnly {
		c.finishLocal(ctx, provisional.ID, StatusLocalMode, "")
		return provisional, nil
	}

	confirmed, err := c.remote.CreateNote(ctx, input.Normalize())
	if err == nil {
		c.mu.Lock()
		notes := c.confirm(provisional.ID, confirmed)
		c.mu.Unlock()
		c.finishRemote(ctx, notes, confirmed.ID)
		return confirmed, nil
	}

	// A create has no id the remote store could miss, so a not-found means
	// the endpoint itself is missing.
	if remote.IsTransport(err) || remote.IsNotFound(err) {
		logrus.WithError(err).Warn("remote create failed, keeping the note locally")
		c.switchToLocal()
		c.finishLocal(ctx, provisional.ID, StatusCreateSavedLocally, err.Error())
		return provisional, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.provisional, provisional.ID)
	c.setNotes(removeNote(c.notes, provisional.ID))
	c.saving = false
	c.reconcileSelection()
	c.setRemoteError(err)
	return note.Note{}, fmt.Errorf("remote.CreateNote() > %w", err)
}

// Update replaces the editable fields of a note.
func (c *Controller) Update(ctx context.Context, id string, input note.Input) (note.Note, error) {
	if err := input.Validate(); err != nil {
		return note.Note{}, err
	}

	c.mu.Lock()
	if c.busy() {
		c.mu.Unlock()
		return note.Note{}, ErrBusy
	}
	index := note.IndexByID(c.notes, id)
	if index < 0 && c.mode == ModeLocalOnly {
		c.mu.Unlock()
		return note.Note{}, note.ErrNotFound
	}
	now := c.now().UTC()
	createdAt := now
	if index >= 0 {
		createdAt = c.notes[index].CreatedAt
	}
	fallback := input.Apply(id, createdAt, now)
	c.saving = true
	mode := c.mode
	c.mu.Unlock()

	if mode == ModeLocalOnly {
		c.mu.Lock()
		c.setNotes(mergeNote(c.notes, fallback))
		c.selectedID = fallback.ID
		c.mu.Unlock()
		c.finishLocal(ctx, fallback.ID, StatusLocalMode, "")
		return fallback, nil
	}

	confirmed, err := c.remote.UpdateNote(ctx, id, input.Normalize())
	if err == nil {
		c.mu.Lock()
		notes := mergeNote(c.notes, confirmed)
		c.mu.Unlock()
		c.finishRemote(ctx, notes, confirmed.ID)
		return confirmed, nil
	}

	if remote.IsTransport(err) {
		logrus.WithError(err).Warn("remote update failed, saving the change locally")
		c.switchToLocal()
		c.mu.Lock()
		c.setNotes(mergeNote(c.notes, fallback))
		c.selectedID = fallback.ID
		c.mu.Unlock()
		c.finishLocal(ctx, fallback.ID, StatusUpdateSavedLocally, err.Error())
		return fallback, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.saving = false
	c.setRemoteError(err)
	return note.Note{}, fmt.Errorf("remote.UpdateNote(%s) > %w", id, err)
}

// Delete removes a note. A note the remote store no longer has is removed
// locally as well, and the not-found error is returned.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.busy() {
		c.mu.Unlock()
		return ErrBusy
	}
	if note.IndexByID(c.notes, id) < 0 && c.mode == ModeLocalOnly {
		c.mu.Unlock()
		return note.ErrNotFound
	}
	c.deleting = true
	mode := c.mode
	c.mu.Unlock()

	if mode == ModeLocalOnly {
		c.mu.Lock()
		c.setNotes(removeNote(c.notes, id))
		c.mu.Unlock()
		c.finishLocal(ctx, "", StatusLocalMode, "")
		return nil
	}

	_, err := c.remote.DeleteNote(ctx, id)
	switch {
	case err == nil:
		c.mu.Lock()
		notes := removeNote(c.notes, id)
		c.mu.Unlock()
		c.finishRemote(ctx, notes, "")
		return nil
	case remote.IsTransport(err):
		logrus.WithError(err).Warn("remote delete failed, removing the note locally")
		c.switchToLocal()
		c.mu.Lock()
		c.setNotes(removeNote(c.notes, id))
		c.mu.Unlock()
		c.finishLocal(ctx, "", StatusDeleteSavedLocally, err.Error())
		return nil
	case remote.IsNotFound(err):
		c.mu.Lock()
		c.setNotes(removeNote(c.notes, id))
		notes := c.cloneNotes()
		c.mu.Unlock()

		c.local.Save(ctx, notes)

		c.mu.Lock()
		defer c.mu.Unlock()
		c.deleting = false
		c.reconcileSelection()
		c.setStatus(StatusNotFound, err.Error())
		return fmt.Errorf("remote.DeleteNote(%s) > %w", id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleting = false
	c.setRemoteError(err)
	return fmt.Errorf("remote.DeleteNote(%s) > %w", id, err)
}

// finishLocal persists the collection after a local-only mutation and
// clears the busy flags. selectID is selected when it is visible.
func (c *Controller) finishLocal(ctx context.Context, selectID string, status Status, detail string) {
	c.mu.Lock()
	for id := range c.provisional {
		delete(c.provisional, id)
	}
	notes := c.cloneNotes()
	c.mu.Unlock()

	c.local.Save(ctx, notes)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.saving, c.deleting = false, false
	if selectID != "" {
		c.selectedID = selectID
	}
	c.reconcileSelection()
	c.setStatus(status, detail)
}

// finishRemote installs a collection confirmed by the remote store and
// aligns both fingerprints.
func (c *Controller) finishRemote(ctx context.Context, notes []note.Note, selectID string) {
	notes = note.SortByUpdatedAt(notes)
	c.local.Save(ctx, notes)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.saving, c.deleting = false, false
	c.mode = ModeRemoteActive
	c.setNotes(notes)
	c.remoteHash = c.localHash
	if selectID != "" {
		c.selectedID = selectID
	}
	c.reconcileSelection()
	c.setStatus(StatusRemoteSynced, "")
}

func (c *Controller) switchToLocal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = ModeLocalOnly
	c.remoteHash = ""
}

// confirm replaces the provisional record matching the confirmed note's
// content with the confirmed note. Must be called with the lock held.
func (c *Controller) confirm(provisionalID string, confirmed note.Note) []note.Note {
	notes := slices.Clone(c.notes)
	index := slices.IndexFunc(notes, func(n note.Note) bool {
		_, pending := c.provisional[n.ID]
		return pending && sameContent(n, confirmed)
	})
	if index < 0 {
		index = note.IndexByID(notes, provisionalID)
	}
	if index >= 0 {
		delete(c.provisional, notes[index].ID)
		notes = slices.Delete(notes, index, index+1)
	}
	delete(c.provisional, provisionalID)
	return mergeNote(notes, confirmed)
}

func (c *Controller) setRemoteError(err error) {
	switch {
	case remote.IsNotFound(err):
		c.setStatus(StatusNotFound, err.Error())
	case remote.IsValidation(err):
		var validationErr *remote.ValidationError
		errors.As(err, &validationErr)
		c.setStatus(StatusValidationFailed, validationErr.Message)
	default:
		c.setStatus(StatusRemoteUnavailable, err.Error())
	}
}

// Select makes id the selected note when it is visible and reports
// whether it was selected.
func (c *Controller) Select(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !slices.ContainsFunc(c.visible(), func(n note.Note) bool { return n.ID == id }) {
		return false
	}
	c.selectedID = id
	return true
}

// SetFilter narrows the visible notes. The selection falls back to the
// first visible note when the selected one is filtered out.
func (c *Controller) SetFilter(filter note.Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = filter
	c.reconcileSelection()
}

// Notes returns the whole collection, most recently updated first.
func (c *Controller) Notes() []note.Note {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cloneNotes()
}

// Visible returns the notes matching the current filter.
func (c *Controller) Visible() []note.Note {
	c.mu.Lock()
	defer c.mu.Unlock()
	visible := c.visible()
	out := make([]note.Note, 0, len(visible))
	for _, n := range visible {
		out = append(out, n.Clone())
	}
	return out
}

// Selected returns the selected note, if any.
func (c *Controller) Selected() (note.Note, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	index := note.IndexByID(c.notes, c.selectedID)
	if c.selectedID == "" || index < 0 {
		return note.Note{}, false
	}
	return c.notes[index].Clone(), true
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	remoteEnabled := c.mode == ModeRemoteActive
	return Snapshot{
		Mode:       c.mode,
		Status:     c.status,
		Message:    c.status.Message(),
		Detail:     c.detail,
		Syncing:    c.syncing,
		Saving:     c.saving,
		Deleting:   c.deleting,
		CanSync:    remoteEnabled && c.remoteHash != "" && c.localHash != "" && c.remoteHash != c.localHash,
		Synced:     remoteEnabled && c.remoteHash != "" && c.localHash == c.remoteHash,
		LocalHash:  c.localHash,
		RemoteHash: c.remoteHash,
		Total:      len(c.notes),
		Visible:    len(c.visible()),
		SelectedID: c.selectedID,
	}
}

func (c *Controller) busy() bool {
	return c.syncing || c.saving || c.deleting
}

func (c *Controller) setNotes(notes []note.Note) {
	c.notes = note.SortByUpdatedAt(notes)
	c.localHash = note.Fingerprint(c.notes)
}

func (c *Controller) setStatus(status Status, detail string) {
	c.status = status
	c.detail = detail
}

func (c *Controller) cloneNotes() []note.Note {
	out := make([]note.Note, 0, len(c.notes))
	for _, n := range c.notes {
		out = append(out, n.Clone())
	}
	return out
}

func (c *Controller) visible() []note.Note {
	return note.FilterNotes(c.notes, c.filter)
}

func (c *Controller) selectFirst() {
	c.selectedID = ""
	c.reconcileSelection()
}

// reconcileSelection keeps exactly one visible note selected, or none when
// nothing is visible.
func (c *Controller) reconcileSelection() {
	visible := c.visible()
	if len(visible) == 0 {
		c.selectedID = ""
		return
	}
	if c.selectedID != "" && slices.ContainsFunc(visible, func(n note.Note) bool { return n.ID == c.selectedID }) {
		return
	}
	c.selectedID = visible[0].ID
}

// mergeNote replaces the note with the same id or adds it.
func mergeNote(notes []note.Note, n note.Note) []note.Note {
	out := removeNote(notes, n.ID)
	return append(out, n)
}

func removeNote(notes []note.Note, id string) []note.Note {
	out := make([]note.Note, 0, len(notes))
	for _, n := range notes {
		if n.ID != id {
			out = append(out, n)
		}
	}
	return out
}

func sameContent(a, b note.Note) bool {
	return a.Title == b.Title &&
		a.Content == b.Content &&
		a.Category == b.Category &&
		slices.Equal(a.Tags, b.Tags) &&
		slices.EqualFunc(a.Attachments, b.Attachments, func(x, y note.Attachment) bool {
			return x.Name == y.Name && x.Type == y.Type && x.Size == y.Size && x.DataURL == y.DataURL
		})
}
