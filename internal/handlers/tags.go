package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"tagfiler/internal/catalog"
)

// TagRequest covers tag create/rename/move/delete operations.
type TagRequest struct {
	Name    string  `json:"name,omitempty"`
	ID      int64   `json:"id,omitempty"`
	IDs     []int64 `json:"ids,omitempty"`
	NewName string  `json:"newName,omitempty"`
	Delta   int     `json:"delta,omitempty"`
}

// GetAllTags returns all tags in display order with file counts.
func (h *Handlers) GetAllTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.db.ListTags(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get tags")
		return
	}
	if tags == nil {
		tags = []catalog.Tag{}
	}
	writeJSON(w, tags)
}

// CreateTag gets or creates a tag by name.
func (h *Handlers) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req TagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	id, err := h.db.EnsureTag(r.Context(), req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create tag")
		return
	}
	writeJSON(w, map[string]int64{"id": id})
}

// RenameTag renames a tag, merging it into an existing tag when the target
// name is already taken.
func (h *Handlers) RenameTag(w http.ResponseWriter, r *http.Request) {
	var req TagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == 0 || strings.TrimSpace(req.NewName) == "" {
		writeError(w, http.StatusBadRequest, "id and newName are required")
		return
	}

	merged, err := h.db.RenameOrMergeTag(r.Context(), req.ID, req.NewName)
	if err != nil {
		if errors.Is(err, catalog.ErrDuplicateName) {
			writeError(w, http.StatusConflict, "tag name already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to rename tag")
		return
	}
	writeJSON(w, map[string]bool{"merged": merged})
}

// MoveTag shifts a tag in the display order.
func (h *Handlers) MoveTag(w http.ResponseWriter, r *http.Request) {
	var req TagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == 0 || req.Delta == 0 {
		writeError(w, http.StatusBadRequest, "id and delta are required")
		return
	}

	if err := h.db.MoveTag(r.Context(), req.ID, req.Delta); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to move tag")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteTags removes tags and their associations.
func (h *Handlers) DeleteTags(w http.ResponseWriter, r *http.Request) {
	var req TagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids array is required")
		return
	}

	if err := h.db.DeleteTags(r.Context(), req.IDs); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete tags")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
