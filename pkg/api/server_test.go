package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pszemraj/localpaste/pkg/config"
	"github.com/pszemraj/localpaste/pkg/kv"
	"github.com/pszemraj/localpaste/pkg/store"
	"github.com/pszemraj/localpaste/pkg/txn"
	"github.com/pszemraj/localpaste/pkg/types"
)

type lockedSet map[string]bool

func (l lockedSet) IsPasteLocked(id string) bool { return l[id] }

func newTestServer(t *testing.T, locks PasteLockChecker) *Server {
	t.Helper()
	kvStore, err := kv.Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { kvStore.Close() })

	pastes, err := store.NewPasteStore(kvStore, nil)
	require.NoError(t, err)
	folders, err := store.NewFolderStore(kvStore)
	require.NoError(t, err)
	coord := txn.NewCoordinator(pastes, folders)
	require.NoError(t, coord.StartupMaintenance(false))

	cfg := config.Default()
	cfg.MaxPasteSize = 1 << 20
	return New(cfg, coord, pastes, folders, locks)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestPasteCRUDLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/paste", map[string]any{
		"content": "SELECT 1 FROM dual;",
		"name":    "query",
		"tags":    []string{"sql"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[types.Paste](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "query", created.Name)

	rec = doJSON(t, h, http.MethodGet, "/api/paste/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[types.Paste](t, rec)
	assert.Equal(t, created.Content, got.Content)

	rec = doJSON(t, h, http.MethodPut, "/api/paste/"+created.ID, map[string]any{
		"name": "renamed",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeBody[types.Paste](t, rec)
	assert.Equal(t, "renamed", updated.Name)

	rec = doJSON(t, h, http.MethodDelete, "/api/paste/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/paste/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	errBody := decodeBody[map[string]string](t, rec)
	assert.Contains(t, errBody, "error")
}

func TestCreatePasteGeneratesNameAndDetectsLanguage(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/paste", map[string]any{
		"content": "package main\n\nfunc main() {\n\tx := 1\n\tfmt.Println(x)\n}\n",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[types.Paste](t, rec)
	assert.NotEmpty(t, created.Name)
	assert.False(t, created.LanguageIsManual)
}

func TestCreatePasteRejectsEmptyContent(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/paste", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBodyTooLargeIs413(t *testing.T) {
	srv := newTestServer(t, nil)
	huge := strings.Repeat("x", 2<<20)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/paste", map[string]any{
		"content": huge,
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestLockedPasteIs423(t *testing.T) {
	locks := lockedSet{}
	srv := newTestServer(t, locks)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/paste", map[string]any{"content": "held"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[types.Paste](t, rec)

	locks[created.ID] = true
	rec = doJSON(t, h, http.MethodPut, "/api/paste/"+created.ID, map[string]any{"name": "x"})
	assert.Equal(t, http.StatusLocked, rec.Code)
	rec = doJSON(t, h, http.MethodDelete, "/api/paste/"+created.ID, nil)
	assert.Equal(t, http.StatusLocked, rec.Code)
}

func TestListPastesWithFolderFilter(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/folder", map[string]any{"name": "work"})
	require.Equal(t, http.StatusCreated, rec.Code)
	folder := decodeBody[types.Folder](t, rec)

	for i := 0; i < 3; i++ {
		rec = doJSON(t, h, http.MethodPost, "/api/paste", map[string]any{
			"content":   fmt.Sprintf("filed %d", i),
			"folder_id": folder.ID,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec = doJSON(t, h, http.MethodPost, "/api/paste", map[string]any{"content": "unfiled"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/pastes?folder_id="+folder.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	metas := decodeBody[[]types.PasteMeta](t, rec)
	assert.Len(t, metas, 3)

	// Whitespace folder_id behaves as no filter.
	rec = doJSON(t, h, http.MethodGet, "/api/pastes?folder_id=%20%20", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	metas = decodeBody[[]types.PasteMeta](t, rec)
	assert.Len(t, metas, 4)
}

func TestSearchEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/paste", map[string]any{
		"content": "deploy steps",
		"name":    "runbook",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/search?q=runbook", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	metas := decodeBody[[]types.PasteMeta](t, rec)
	require.Len(t, metas, 1)
	assert.Equal(t, "runbook", metas[0].Name)

	rec = doJSON(t, h, http.MethodGet, "/api/search", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing query is a bad request")
}

func TestFolderEndpointsCarryDeprecationHeaders(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/folders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("Deprecation"))
	assert.NotEmpty(t, rec.Header().Get("Sunset"))
	assert.NotEmpty(t, rec.Header().Get("Warning"))
	assert.NotEmpty(t, rec.Header().Get("Link"))
}

func TestFolderCycleRejected(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/folder", map[string]any{"name": "a"})
	require.Equal(t, http.StatusCreated, rec.Code)
	a := decodeBody[types.Folder](t, rec)

	rec = doJSON(t, h, http.MethodPost, "/api/folder", map[string]any{"name": "b", "parent_id": a.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	b := decodeBody[types.Folder](t, rec)

	rec = doJSON(t, h, http.MethodPut, "/api/folder/"+a.ID, map[string]any{"parent_id": b.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteFolderMigratesPastes(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/folder", map[string]any{"name": "doomed"})
	require.Equal(t, http.StatusCreated, rec.Code)
	folder := decodeBody[types.Folder](t, rec)

	rec = doJSON(t, h, http.MethodPost, "/api/paste", map[string]any{
		"content": "survivor", "folder_id": folder.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	paste := decodeBody[types.Paste](t, rec)

	rec = doJSON(t, h, http.MethodDelete, "/api/folder/"+folder.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/paste/"+paste.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[types.Paste](t, rec)
	assert.Empty(t, got.FolderID)

	rec = doJSON(t, h, http.MethodGet, "/api/folders", nil)
	folders := decodeBody[[]types.Folder](t, rec)
	assert.Empty(t, folders)
}

func TestUnknownFolderOnCreateIs400(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/paste", map[string]any{
		"content": "x", "folder_id": "no-such-folder",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
