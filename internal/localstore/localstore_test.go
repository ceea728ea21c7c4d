package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/at-ishikawa/labloom/internal/kvstore"
	mock_kvstore "github.com/at-ishikawa/labloom/internal/mocks/kvstore"
	"github.com/at-ishikawa/labloom/internal/note"
)

var baseTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newNote(id string, updatedAt time.Time) note.Note {
	return note.Note{
		ID:          id,
		Title:       "Note " + id,
		Content:     "content of " + id,
		Category:    "research",
		Tags:        []note.Tag{{ID: "ux", Label: "UX"}},
		Attachments: []note.Attachment{},
		CreatedAt:   baseTime,
		UpdatedAt:   updatedAt,
	}
}

func noteIDs(notes []note.Note) []string {
	ids := make([]string, 0, len(notes))
	for _, n := range notes {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestStore_SaveKeepsMostRecent(t *testing.T) {
	var notes []note.Note
	for i := 0; i < 12; i++ {
		notes = append(notes, newNote(fmt.Sprintf("n%02d", i), baseTime.Add(time.Duration(i)*time.Hour)))
	}
	// Input order must not matter.
	notes[0], notes[11] = notes[11], notes[0]

	ctx := context.Background()
	store := New(kvstore.NewMemory(0), 0)
	store.Save(ctx, notes)

	got := store.Load(ctx)
	assert.Equal(t, []string{"n11", "n10", "n09", "n08", "n07", "n06", "n05", "n04", "n03", "n02"}, noteIDs(got))
	assert.Equal(t, DefaultLimit, store.Limit())
}

func TestStore_RoundTrip(t *testing.T) {
	dataURL := "data:image/png;base64,iVBORw0KGgo="
	withAttachments := newNote("a", baseTime.Add(2*time.Hour))
	withAttachments.Attachments = []note.Attachment{
		{ID: "att-1", Name: "inline.png", Size: 8, Type: "image/png", PreviewURL: dataURL, DataURL: dataURL},
		{ID: "att-2", Name: "remote.png", Size: 1024, Type: "image/png", PreviewURL: "https://example.com/remote.png"},
	}
	notes := []note.Note{withAttachments, newNote("b", baseTime.Add(time.Hour))}

	ctx := context.Background()
	kv := kvstore.NewMemory(0)
	store := New(kv, 0)
	store.Save(ctx, notes)

	assert.Equal(t, notes, store.Load(ctx))

	payload, err := kv.Get(ctx, Key)
	require.NoError(t, err)
	var stored []map[string]any
	require.NoError(t, json.Unmarshal(payload, &stored))
	first := stored[0]["attachments"].([]any)[0].(map[string]any)
	assert.NotContains(t, first, "previewUrl", "a preview repeating the data URL is not stored")
}

func TestStore_Load(t *testing.T) {
	valid := `{"id":"1","title":"Kept","content":"","category":null,"tags":null,"attachments":null,"createdAt":"2025-03-01T09:00:00Z","updatedAt":"2025-03-01T10:00:00Z"}`

	testCases := []struct {
		name    string
		payload *string
		wantIDs []string
	}{
		{
			name:    "missing payload",
			wantIDs: []string{},
		},
		{
			name:    "not JSON",
			payload: ptr("{not json"),
			wantIDs: []string{},
		},
		{
			name:    "not a list",
			payload: ptr(valid),
			wantIDs: []string{},
		},
		{
			name:    "non-object entries are dropped",
			payload: ptr(`[1, "text", null, [], ` + valid + `]`),
			wantIDs: []string{"1"},
		},
		{
			name:    "entries without id or title are dropped",
			payload: ptr(`[{"title":"no id"}, {"id":"2","title":"  "}, ` + valid + `]`),
			wantIDs: []string{"1"},
		},
		{
			name:    "entries with mistyped fields are dropped",
			payload: ptr(`[{"id":"3","title":"bad","tags":"ux"}, ` + valid + `]`),
			wantIDs: []string{"1"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			kv := kvstore.NewMemory(0)
			if tc.payload != nil {
				require.NoError(t, kv.Set(ctx, Key, []byte(*tc.payload)))
			}

			got := New(kv, 0).Load(ctx)
			require.NotNil(t, got)
			assert.Equal(t, tc.wantIDs, noteIDs(got))
		})
	}
}

func TestStore_LoadNormalizes(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory(0)
	require.NoError(t, kv.Set(ctx, Key, []byte(`[{"id":"1","title":" Kept ","category":null,"tags":[{"label":"Deep Work"}],"attachments":[{"dataUrl":"data:text/plain,hi"}],"createdAt":"2025-03-01T09:00:00Z"}]`)))

	got := New(kv, 0).Load(ctx)
	require.Len(t, got, 1)
	assert.Equal(t, "Kept", got[0].Title)
	assert.Equal(t, "", got[0].Category)
	assert.Equal(t, []note.Tag{{ID: "deep-work", Label: "Deep Work"}}, got[0].Tags)
	assert.Equal(t, baseTime, got[0].UpdatedAt)
	require.Len(t, got[0].Attachments, 1)
	assert.Equal(t, note.DefaultAttachmentName, got[0].Attachments[0].Name)
	assert.Equal(t, "data:text/plain,hi", got[0].Attachments[0].PreviewURL)
}

func TestStore_SaveRetry(t *testing.T) {
	errUnavailable := errors.New("unavailable")

	testCases := []struct {
		name      string
		setErrors []error
	}{
		{
			name:      "first write succeeds",
			setErrors: []error{nil},
		},
		{
			name:      "quota exceeded then retry succeeds",
			setErrors: []error{kvstore.ErrQuotaExceeded, nil},
		},
		{
			name:      "quota exceeded twice gives up",
			setErrors: []error{kvstore.ErrQuotaExceeded, kvstore.ErrQuotaExceeded},
		},
		{
			name:      "other errors are not retried",
			setErrors: []error{errUnavailable},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			kv := mock_kvstore.NewMockStore(ctrl)

			var payloads [][]byte
			var calls []any
			for _, err := range tc.setErrors {
				calls = append(calls, kv.EXPECT().
					Set(gomock.Any(), Key, gomock.Any()).
					DoAndReturn(func(_ context.Context, _ string, value []byte) error {
						payloads = append(payloads, value)
						return err
					}))
			}
			gomock.InOrder(calls...)

			New(kv, 2).Save(context.Background(), []note.Note{
				newNote("old", baseTime),
				newNote("new", baseTime.Add(time.Hour)),
				newNote("mid", baseTime.Add(time.Minute)),
			})

			require.Len(t, payloads, len(tc.setErrors))
			for _, payload := range payloads {
				assert.Equal(t, payloads[0], payload, "the retry writes the same set")
				var stored []note.Note
				require.NoError(t, json.Unmarshal(payload, &stored))
				assert.Equal(t, []string{"new", "mid"}, noteIDs(stored))
			}
		})
	}
}

func TestStore_SaveOverQuotaKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory(1024)
	store := New(kv, 0)

	store.Save(ctx, []note.Note{newNote("small", baseTime)})
	require.Equal(t, []string{"small"}, noteIDs(store.Load(ctx)))

	big := newNote("big", baseTime.Add(time.Hour))
	big.Content = strings.Repeat("x", 2048)
	store.Save(ctx, []note.Note{big})

	assert.Equal(t, []string{"small"}, noteIDs(store.Load(ctx)))
}

func ptr(s string) *string {
	return &s
}
