package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pszemraj/localpaste/pkg/config"
	"github.com/pszemraj/localpaste/pkg/detect"
	"github.com/pszemraj/localpaste/pkg/naming"
	"github.com/pszemraj/localpaste/pkg/store"
	"github.com/pszemraj/localpaste/pkg/txn"
	"github.com/pszemraj/localpaste/pkg/types"
)

const defaultListLimit = 50

type handler struct {
	cfg     *config.Config
	coord   *txn.Coordinator
	pastes  *store.PasteStore
	folders *store.FolderStore
	locks   PasteLockChecker
	logger  zerolog.Logger
}

// createPasteRequest is the POST /api/paste body.
type createPasteRequest struct {
	Content  string   `json:"content"`
	Name     string   `json:"name,omitempty"`
	Language string   `json:"language,omitempty"`
	FolderID string   `json:"folder_id,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

type folderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the shared error kinds onto status codes; unmapped
// storage errors become a logged 500.
func (h *handler) writeError(w http.ResponseWriter, err error) {
	var maxBytes *http.MaxBytesError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &maxBytes):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrBadRequest), errors.Is(err, types.ErrAlreadyExists):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrLocked):
		status = http.StatusLocked
	case errors.Is(err, types.ErrConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *handler) decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxPasteSize)
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			h.writeError(w, err)
			return false
		}
		h.writeError(w, types.ErrBadRequest)
		return false
	}
	return true
}

// normalizedFilter turns empty or whitespace query values into "no filter".
func normalizedFilter(r *http.Request, key string) *string {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return nil
	}
	return &v
}

func parseLimit(r *http.Request) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultListLimit
	}
	limit, err := strconv.Atoi(v)
	if err != nil || limit < 1 {
		return defaultListLimit
	}
	return limit
}

func (h *handler) createPaste(w http.ResponseWriter, r *http.Request) {
	var req createPasteRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Content == "" {
		h.writeError(w, types.ErrBadRequest)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = naming.RandomName()
	}
	language := strings.TrimSpace(req.Language)
	manual := language != ""
	if language == "" {
		language = detect.Detect(req.Content)
	}

	now := time.Now().UTC()
	paste := &types.Paste{
		ID:               uuid.New().String(),
		Name:             name,
		Content:          req.Content,
		Language:         language,
		LanguageIsManual: manual,
		FolderID:         strings.TrimSpace(req.FolderID),
		Tags:             req.Tags,
		IsMarkdown:       types.IsMarkdownContent(req.Content),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := h.coord.CreatePaste(paste); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, paste)
}

func (h *handler) getPaste(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	paste, err := h.pastes.Get(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if paste == nil {
		h.writeError(w, types.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, paste)
}

func (h *handler) updatePaste(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.locks.IsPasteLocked(id) {
		h.writeError(w, types.ErrLocked)
		return
	}

	var req types.UpdatePasteRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	updated, err := h.coord.UpdatePaste(id, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if updated == nil {
		h.writeError(w, types.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) deletePaste(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.locks.IsPasteLocked(id) {
		h.writeError(w, types.ErrLocked)
		return
	}

	removed, err := h.coord.DeletePaste(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !removed {
		h.writeError(w, types.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *handler) listPastes(w http.ResponseWriter, r *http.Request) {
	metas, err := h.pastes.ListMeta(parseLimit(r), normalizedFilter(r, "folder_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if metas == nil {
		metas = []*types.PasteMeta{}
	}
	writeJSON(w, http.StatusOK, metas)
}

func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.writeError(w, types.ErrBadRequest)
		return
	}
	metas, err := h.pastes.SearchMeta(query, parseLimit(r),
		normalizedFilter(r, "folder_id"), normalizedFilter(r, "language"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if metas == nil {
		metas = []*types.PasteMeta{}
	}
	writeJSON(w, http.StatusOK, metas)
}

func (h *handler) createFolder(w http.ResponseWriter, r *http.Request) {
	var req folderRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		h.writeError(w, types.ErrBadRequest)
		return
	}

	folder := &types.Folder{
		ID:        uuid.New().String(),
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}
	if req.ParentID != nil {
		folder.ParentID = strings.TrimSpace(*req.ParentID)
	}

	if err := h.coord.CreateFolder(folder); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

func (h *handler) updateFolder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req folderRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	updated, err := h.coord.UpdateFolder(id, req.Name, req.ParentID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteFolder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.coord.DeleteFolderTree(id); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *handler) listFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.folders.List()
	if err != nil {
		h.writeError(w, err)
		return
	}
	if folders == nil {
		folders = []*types.Folder{}
	}
	writeJSON(w, http.StatusOK, folders)
}
