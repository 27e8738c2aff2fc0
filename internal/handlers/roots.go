package handlers

import (
	"encoding/json"
	"net/http"
	"os"

	"tagfiler/internal/catalog"
)

// RootRequest covers root registration and removal.
type RootRequest struct {
	Path string `json:"path"`
}

// GetRoots returns all registered roots.
func (h *Handlers) GetRoots(w http.ResponseWriter, r *http.Request) {
	roots, err := h.db.ListRoots(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get roots")
		return
	}
	if roots == nil {
		roots = []catalog.Root{}
	}
	writeJSON(w, roots)
}

// AddRoot registers a directory for indexing.
func (h *Handlers) AddRoot(w http.ResponseWriter, r *http.Request) {
	var req RootRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	info, err := os.Stat(req.Path)
	if err != nil || !info.IsDir() {
		writeError(w, http.StatusBadRequest, "path is not an existing directory")
		return
	}

	if err := h.db.AddRoot(r.Context(), req.Path); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add root")
		return
	}
	writeJSON(w, map[string]string{"path": catalog.NormalizePath(req.Path)})
}

// RemoveRoot unregisters a root and cascades deletion of its file rows.
func (h *Handlers) RemoveRoot(w http.ResponseWriter, r *http.Request) {
	var req RootRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	removed, err := h.db.RemoveRoot(r.Context(), req.Path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove root")
		return
	}
	writeJSON(w, map[string]int64{"removedFiles": removed})
}
