package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/labloom/internal/config"
	"github.com/at-ishikawa/labloom/internal/note"
)

func TestNewRootCommand(t *testing.T) {
	cmd := newRootCommand()

	assert.Equal(t, "labloom-server", cmd.Use)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("debug"))
	require.Len(t, cmd.Commands(), 1)
	assert.Equal(t, "migrate", cmd.Commands()[0].Name())
}

func TestOpenRepository(t *testing.T) {
	cfg := &config.Config{Notes: config.NotesConfig{Store: "file", File: filepath.Join(t.TempDir(), "notes.json")}}
	repo, closeRepo, err := openRepository(t.Context(), cfg)
	require.NoError(t, err)
	defer closeRepo()
	assert.IsType(t, &note.FileRepository{}, repo)

	_, _, err = openRepository(t.Context(), &config.Config{Notes: config.NotesConfig{Store: "postgres"}})
	assert.EqualError(t, err, `unknown notes store "postgres"`)
}

func TestNewHandler(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}}}}
	repo := note.NewFileRepository(filepath.Join(t.TempDir(), "notes.json"))
	handler, err := newHandler(cfg, repo, prometheus.NewRegistry())
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+functionsPrefix+"/notes-create", strings.NewReader(`{"title":"Hello"}`))
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = http.Get(srv.URL + "/notes-read")
	require.NoError(t, err)
	defer resp.Body.Close()
	var notes []note.Note
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&notes))
	require.Len(t, notes, 1)
	assert.Equal(t, "Hello", notes[0].Title)

	req, err = http.NewRequest(http.MethodOptions, srv.URL+"/notes-delete", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
