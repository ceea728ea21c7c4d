package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/at-ishikawa/labloom/internal/metrics"
	mock_note "github.com/at-ishikawa/labloom/internal/mocks/note"
	"github.com/at-ishikawa/labloom/internal/note"
)

const noteID = "0b9f6c9e-7d1a-4d8e-9a57-2f0c4a1e7b21"

var testTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func sampleNote() note.Note {
	return note.Note{
		ID:          noteID,
		Title:       "Release plan",
		Content:     "- ship",
		Category:    "work",
		Tags:        []note.Tag{{ID: "backend", Label: "Backend"}},
		Attachments: []note.Attachment{},
		CreatedAt:   testTime,
		UpdatedAt:   testTime,
	}
}

func newTestServer(t *testing.T, setup func(repo *mock_note.MockRepository)) (*httptest.Server, *metrics.Metrics) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mock_note.NewMockRepository(ctrl)
	if setup != nil {
		setup(repo)
	}

	m := metrics.New("api", prometheus.NewRegistry())
	handler, err := NewNotesHandler(repo, m)
	require.NoError(t, err)
	mux := http.NewServeMux()
	handler.Register(mux, "/.netlify/functions/")

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, m
}

func doRequest(t *testing.T, server *httptest.Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, server.URL+"/.netlify/functions/"+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, content
}

func decodeError(t *testing.T, body []byte) ErrorBody {
	t.Helper()
	var got ErrorBody
	require.NoError(t, json.Unmarshal(body, &got))
	return got
}

func TestNotesHandler_Read(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		setup      func(repo *mock_note.MockRepository)
		wantStatus int
		wantBody   string
		wantError  string
	}{
		{
			name:  "lists every note",
			query: "",
			setup: func(repo *mock_note.MockRepository) {
				repo.EXPECT().List(gomock.Any(), note.Filter{}).Return([]note.Note{sampleNote()}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody: `[{"id":"` + noteID + `","title":"Release plan","content":"- ship","category":"work",` +
				`"tags":[{"id":"backend","label":"Backend"}],"attachments":[],` +
				`"createdAt":"2025-03-10T12:00:00Z","updatedAt":"2025-03-10T12:00:00Z"}]`,
		},
		{
			name:  "passes the filter",
			query: "?search=plan&category=work&tags=backend,+postgres,",
			setup: func(repo *mock_note.MockRepository) {
				repo.EXPECT().List(gomock.Any(), note.Filter{
					Search:   "plan",
					Category: "work",
					Tags:     []string{"backend", "postgres"},
				}).Return(nil, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   `[]`,
		},
		{
			name:       "rejects an empty tag filter",
			query:      "?tags=,,",
			wantStatus: http.StatusBadRequest,
			wantError:  CodeBadRequest,
		},
		{
			name:  "reads one note",
			query: "?id=" + noteID,
			setup: func(repo *mock_note.MockRepository) {
				repo.EXPECT().Get(gomock.Any(), noteID).Return(sampleNote(), nil)
			},
			wantStatus: http.StatusOK,
			wantBody: `{"id":"` + noteID + `","title":"Release plan","content":"- ship","category":"work",` +
				`"tags":[{"id":"backend","label":"Backend"}],"attachments":[],` +
				`"createdAt":"2025-03-10T12:00:00Z","updatedAt":"2025-03-10T12:00:00Z"}`,
		},
		{
			name:  "missing note",
			query: "?id=unknown",
			setup: func(repo *mock_note.MockRepository) {
				repo.EXPECT().Get(gomock.Any(), "unknown").Return(note.Note{}, note.ErrNotFound)
			},
			wantStatus: http.StatusNotFound,
			wantError:  CodeNotFound,
		},
		{
			name:  "repository failure",
			query: "",
			setup: func(repo *mock_note.MockRepository) {
				repo.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  CodeInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTestServer(t, tt.setup)

			resp, body := doRequest(t, server, http.MethodGet, RouteRead+tt.query, "")

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeError(t, body).Error)
				return
			}
			assert.JSONEq(t, tt.wantBody, string(body))
		})
	}
}

func TestNotesHandler_Create(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		setup       func(repo *mock_note.MockRepository)
		wantStatus  int
		wantError   string
		wantMessage string
	}{
		{
			name: "creates a note",
			body: `{"title":"Release plan","content":"- ship","category":"work","tags":[{"id":"backend","label":"Backend"}]}`,
			setup: func(repo *mock_note.MockRepository) {
				repo.EXPECT().Create(gomock.Any(), note.Input{
					Title:    "Release plan",
					Content:  "- ship",
					Category: "work",
					Tags:     []note.Tag{{ID: "backend", Label: "Backend"}},
				}).Return(sampleNote(), nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "accepts data and http preview URLs",
			body: `{"title":"Release plan","attachments":[` +
				`{"name":"a.png","size":4,"type":"image/png","previewUrl":"https://cdn.example.com/a.png","dataUrl":"data:image/png;base64,AAAA"},` +
				`{"name":"b.txt","size":0,"type":"text/plain","previewUrl":"data:text/plain;base64,"}]}`,
			setup: func(repo *mock_note.MockRepository) {
				repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sampleNote(), nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:        "empty body",
			body:        "",
			wantStatus:  http.StatusBadRequest,
			wantError:   CodeBadRequest,
			wantMessage: "The request body is empty.",
		},
		{
			name:        "malformed JSON",
			body:        `{"title":`,
			wantStatus:  http.StatusBadRequest,
			wantError:   CodeBadRequest,
			wantMessage: "The request body is not valid JSON.",
		},
		{
			name:        "missing title",
			body:        `{"content":"body only"}`,
			wantStatus:  http.StatusBadRequest,
			wantError:   CodeBadRequest,
			wantMessage: "title is a required field",
		},
		{
			name: "blank title rejected by the repository",
			body: `{"title":"   "}`,
			setup: func(repo *mock_note.MockRepository) {
				repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(note.Note{}, note.ErrEmptyTitle)
			},
			wantStatus:  http.StatusBadRequest,
			wantError:   CodeBadRequest,
			wantMessage: "title is a required field",
		},
		{
			name:        "invalid tag and attachment",
			body:        `{"title":"t","tags":[{"id":"","label":"x"}],"attachments":[{"name":"a","size":-1,"type":"text/plain","previewUrl":"ftp://host/a","dataUrl":"https://host/a"}]}`,
			wantStatus:  http.StatusBadRequest,
			wantError:   CodeBadRequest,
			wantMessage: "id is a required field, size must be 0 or greater, previewUrl must be an http(s) or data URL, dataUrl must be a data URL",
		},
		{
			name: "repository failure",
			body: `{"title":"t"}`,
			setup: func(repo *mock_note.MockRepository) {
				repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(note.Note{}, errors.New("disk full"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  CodeInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTestServer(t, tt.setup)

			resp, body := doRequest(t, server, http.MethodPost, RouteCreate, tt.body)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantError == "" {
				var got note.Note
				require.NoError(t, json.Unmarshal(body, &got))
				assert.Equal(t, noteID, got.ID)
				return
			}
			got := decodeError(t, body)
			assert.Equal(t, tt.wantError, got.Error)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, got.Message)
			}
		})
	}
}

func TestNotesHandler_Update(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		body        string
		setup       func(repo *mock_note.MockRepository)
		wantStatus  int
		wantError   string
		wantMessage string
	}{
		{
			name:   "updates with PUT",
			method: http.MethodPut,
			body:   `{"id":"` + noteID + `","title":"Release plan"}`,
			setup: func(repo *mock_note.MockRepository) {
				repo.EXPECT().Update(gomock.Any(), noteID, note.Input{Title: "Release plan"}).Return(sampleNote(), nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "updates with PATCH",
			method: http.MethodPatch,
			body:   `{"id":"` + noteID + `","title":"Release plan"}`,
			setup: func(repo *mock_note.MockRepository) {
				repo.EXPECT().Update(gomock.Any(), noteID, gomock.Any()).Return(sampleNote(), nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:        "id must be a UUID",
			method:      http.MethodPut,
			body:        `{"id":"1","title":"Release plan"}`,
			wantStatus:  http.StatusBadRequest,
			wantError:   CodeBadRequest,
			wantMessage: "id must be a valid UUID",
		},
		{
			name:   "missing note",
			method: http.MethodPut,
			body:   `{"id":"` + noteID + `","title":"Release plan"}`,
			setup: func(repo *mock_note.MockRepository) {
				repo.EXPECT().Update(gomock.Any(), noteID, gomock.Any()).Return(note.Note{}, note.ErrNotFound)
			},
			wantStatus: http.StatusNotFound,
			wantError:  CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTestServer(t, tt.setup)

			resp, body := doRequest(t, server, tt.method, RouteUpdate, tt.body)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantError == "" {
				var got note.Note
				require.NoError(t, json.Unmarshal(body, &got))
				assert.Equal(t, sampleNote(), got)
				return
			}
			got := decodeError(t, body)
			assert.Equal(t, tt.wantError, got.Error)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, got.Message)
			}
		})
	}
}

func TestNotesHandler_Delete(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		setup      func(repo *mock_note.MockRepository)
		wantStatus int
		wantBody   string
	}{
		{
			name:  "deletes a note",
			query: "?id=" + noteID,
			setup: func(repo *mock_note.MockRepository) {
				repo.EXPECT().Delete(gomock.Any(), noteID).Return(nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"id":"` + noteID + `"}`,
		},
		{
			name:       "id is required",
			query:      "",
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"BAD_REQUEST","message":"The id of the note to delete is required."}`,
		},
		{
			name:  "missing note",
			query: "?id=" + noteID,
			setup: func(repo *mock_note.MockRepository) {
				repo.EXPECT().Delete(gomock.Any(), noteID).Return(note.ErrNotFound)
			},
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"NOT_FOUND","message":"The note to delete was not found."}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTestServer(t, tt.setup)

			resp, body := doRequest(t, server, http.MethodDelete, RouteDelete+tt.query, "")

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.JSONEq(t, tt.wantBody, string(body))
		})
	}
}

func TestNotesHandler_Methods(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		route     string
		wantAllow string
	}{
		{name: "read", method: http.MethodPost, route: RouteRead, wantAllow: "GET, OPTIONS"},
		{name: "create", method: http.MethodGet, route: RouteCreate, wantAllow: "POST, OPTIONS"},
		{name: "update", method: http.MethodDelete, route: RouteUpdate, wantAllow: "PUT, PATCH, OPTIONS"},
		{name: "delete", method: http.MethodPut, route: RouteDelete, wantAllow: "DELETE, OPTIONS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTestServer(t, nil)

			resp, body := doRequest(t, server, tt.method, tt.route, "")
			assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
			assert.Equal(t, tt.wantAllow, resp.Header.Get("Allow"))
			assert.Equal(t, CodeMethodNotAllowed, decodeError(t, body).Error)

			resp, body = doRequest(t, server, http.MethodOptions, tt.route, "")
			assert.Equal(t, http.StatusNoContent, resp.StatusCode)
			assert.Empty(t, body)
			assert.Equal(t, allowMethods, resp.Header.Get("Access-Control-Allow-Methods"))
		})
	}
}

func TestNotesHandler_Metrics(t *testing.T) {
	server, m := newTestServer(t, func(repo *mock_note.MockRepository) {
		repo.EXPECT().List(gomock.Any(), note.Filter{}).Return([]note.Note{sampleNote(), sampleNote()}, nil)
		repo.EXPECT().List(gomock.Any(), note.Filter{Category: "work"}).Return([]note.Note{sampleNote()}, nil)
	})

	doRequest(t, server, http.MethodGet, RouteRead, "")
	doRequest(t, server, http.MethodGet, RouteRead+"?category=work", "")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestCounter.WithLabelValues(RouteRead, http.MethodGet, "200")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NotesListed))
}
