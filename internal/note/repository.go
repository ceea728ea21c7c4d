package note

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

//go:generate mockgen -source=repository.go -destination=../mocks/note/mock_repository.go -package=mock_note

// Repository is the authoritative note store behind the notes API.
type Repository interface {
	List(ctx context.Context, filter Filter) ([]Note, error)
	Get(ctx context.Context, id string) (Note, error)
	Create(ctx context.Context, input Input) (Note, error)
	Update(ctx context.Context, id string, input Input) (Note, error)
	Delete(ctx context.Context, id string) error
}

const noteColumns = "id, title, content, category, tags, attachments, created_at, updated_at"

type noteRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Content     string    `db:"content"`
	Category    string    `db:"category"`
	Tags        []byte    `db:"tags"`
	Attachments []byte    `db:"attachments"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (row noteRow) toNote() (Note, error) {
	var tags []Tag
	if len(row.Tags) > 0 {
		if err := json.Unmarshal(row.Tags, &tags); err != nil {
			return Note{}, fmt.Errorf("json.Unmarshal(tags) > %w", err)
		}
	}
	var attachments []RawAttachment
	if len(row.Attachments) > 0 {
		if err := json.Unmarshal(row.Attachments, &attachments); err != nil {
			return Note{}, fmt.Errorf("json.Unmarshal(attachments) > %w", err)
		}
	}
	category := row.Category
	return NormalizeNote(RawNote{
		ID:          row.ID,
		Title:       row.Title,
		Content:     row.Content,
		Category:    &category,
		Tags:        tags,
		Attachments: attachments,
		CreatedAt:   row.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   row.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
}

// DBRepository implements Repository using MySQL. Tags and attachments
// are stored as JSON columns.
type DBRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewDBRepository creates a new DBRepository.
func NewDBRepository(db *sqlx.DB) *DBRepository {
	return &DBRepository{db: db, now: time.Now}
}

// List returns the notes matching the filter, most recently updated first.
// Category and tags are matched in SQL; the search text also covers tag
// labels and is matched after loading.
func (r *DBRepository) List(ctx context.Context, filter Filter) ([]Note, error) {
	var conditions []string
	var args []any
	if category := strings.TrimSpace(filter.Category); category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, category)
	}
	for _, tagID := range filter.Tags {
		if tagID = strings.TrimSpace(tagID); tagID == "" {
			continue
		}
		conditions = append(conditions, "JSON_CONTAINS(tags, JSON_OBJECT('id', ?))")
		args = append(args, tagID)
	}

	query := "SELECT " + noteColumns + " FROM notes"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY updated_at DESC, created_at DESC, id"

	var rows []noteRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("db.SelectContext(notes) > %w", err)
	}

	search := Filter{Search: filter.Search}
	notes := make([]Note, 0, len(rows))
	for _, row := range rows {
		n, err := row.toNote()
		if err != nil {
			return nil, fmt.Errorf("row.toNote(%s) > %w", row.ID, err)
		}
		if search.Match(n) {
			notes = append(notes, n)
		}
	}
	return notes, nil
}

// Get returns the note with the given id or ErrNotFound.
func (r *DBRepository) Get(ctx context.Context, id string) (Note, error) {
	var row noteRow
	err := r.db.GetContext(ctx, &row, "SELECT "+noteColumns+" FROM notes WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Note{}, ErrNotFound
	}
	if err != nil {
		return Note{}, fmt.Errorf("db.GetContext(note) > %w", err)
	}
	n, err := row.toNote()
	if err != nil {
		return Note{}, fmt.Errorf("row.toNote(%s) > %w", row.ID, err)
	}
	return n, nil
}

// Create inserts a note with a new UUID.
func (r *DBRepository) Create(ctx context.Context, input Input) (Note, error) {
	if err := input.Validate(); err != nil {
		return Note{}, err
	}
	now := r.timestamp()
	n := input.Apply(uuid.NewString(), now, now)

	tags, attachments, err := marshalColumns(n)
	if err != nil {
		return Note{}, err
	}
	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO notes ("+noteColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		n.ID, n.Title, n.Content, n.Category, tags, attachments, n.CreatedAt, n.UpdatedAt); err != nil {
		return Note{}, fmt.Errorf("db.ExecContext(insert note) > %w", err)
	}
	return n, nil
}

// Update replaces every editable field of the note and refreshes updated_at.
func (r *DBRepository) Update(ctx context.Context, id string, input Input) (Note, error) {
	if err := input.Validate(); err != nil {
		return Note{}, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Note{}, fmt.Errorf("db.BeginTxx() > %w", err)
	}
	defer tx.Rollback()

	var createdAt time.Time
	err = tx.GetContext(ctx, &createdAt, "SELECT created_at FROM notes WHERE id = ? FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Note{}, ErrNotFound
	}
	if err != nil {
		return Note{}, fmt.Errorf("tx.GetContext(created_at) > %w", err)
	}

	n := input.Apply(id, createdAt.UTC(), r.timestamp())
	tags, attachments, err := marshalColumns(n)
	if err != nil {
		return Note{}, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE notes SET title = ?, content = ?, category = ?, tags = ?, attachments = ?, updated_at = ? WHERE id = ?",
		n.Title, n.Content, n.Category, tags, attachments, n.UpdatedAt, id); err != nil {
		return Note{}, fmt.Errorf("tx.ExecContext(update note) > %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Note{}, fmt.Errorf("tx.Commit() > %w", err)
	}
	return n, nil
}

// Delete removes the note or returns ErrNotFound.
func (r *DBRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM notes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("db.ExecContext(delete note) > %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("result.RowsAffected() > %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// timestamp is truncated to the DATETIME(6) precision of the schema.
func (r *DBRepository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

func marshalColumns(n Note) ([]byte, []byte, error) {
	tags := n.Tags
	if tags == nil {
		tags = []Tag{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, nil, fmt.Errorf("json.Marshal(tags) > %w", err)
	}
	attachments := n.Attachments
	if attachments == nil {
		attachments = []Attachment{}
	}
	attachmentsJSON, err := json.Marshal(attachments)
	if err != nil {
		return nil, nil, fmt.Errorf("json.Marshal(attachments) > %w", err)
	}
	return tagsJSON, attachmentsJSON, nil
}
