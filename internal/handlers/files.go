package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"tagfiler/internal/catalog"
)

// FileOpRequest covers rename/delete/tag operations on files.
type FileOpRequest struct {
	Path    string   `json:"path,omitempty"`
	Paths   []string `json:"paths,omitempty"`
	NewName string   `json:"newName,omitempty"`
	FileIDs []int64  `json:"fileIds,omitempty"`
	FileID  int64    `json:"fileId,omitempty"`
	Tag     string   `json:"tag,omitempty"`
	TagIDs  []int64  `json:"tagIds,omitempty"`
}

// ListFiles returns catalog rows matching the query parameters:
// search (path substring), tags (comma-separated tag ids, all required),
// onlyTagged, and root (path prefix).
func (h *Handlers) ListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := catalog.Filter{
		Search:     q.Get("search"),
		OnlyTagged: q.Get("onlyTagged") == "true" || q.Get("onlyTagged") == "1",
		RootPrefix: q.Get("root"),
	}

	if raw := q.Get("tags"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid tag id: "+part)
				return
			}
			filter.TagIDs = append(filter.TagIDs, id)
		}
	}

	files, err := h.db.ListFiles(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}
	if files == nil {
		files = []catalog.File{}
	}
	writeJSON(w, files)
}

// RenameFile renames one file on disk and in the catalog.
func (h *Handlers) RenameFile(w http.ResponseWriter, r *http.Request) {
	var req FileOpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" || strings.TrimSpace(req.NewName) == "" {
		writeError(w, http.StatusBadRequest, "path and newName are required")
		return
	}

	newPath, err := h.db.RenameFile(r.Context(), req.Path, req.NewName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]string{"path": newPath})
}

// DeleteFiles removes files from disk and from the catalog.
func (h *Handlers) DeleteFiles(w http.ResponseWriter, r *http.Request) {
	var req FileOpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Paths) == 0 {
		writeError(w, http.StatusBadRequest, "paths array is required")
		return
	}

	deleted := 0
	for _, path := range req.Paths {
		if err := h.db.DeleteFile(r.Context(), path); err != nil {
			continue
		}
		deleted++
	}
	writeJSON(w, map[string]int{"deleted": deleted})
}

// TagFiles assigns one tag (created on first use) to a set of files.
func (h *Handlers) TagFiles(w http.ResponseWriter, r *http.Request) {
	var req FileOpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Tag) == "" || len(req.FileIDs) == 0 {
		writeError(w, http.StatusBadRequest, "tag and fileIds are required")
		return
	}

	tagID, err := h.db.EnsureTag(r.Context(), req.Tag)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create tag")
		return
	}

	if err := h.db.TagFiles(r.Context(), req.FileIDs, tagID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to tag files")
		return
	}
	writeJSON(w, map[string]int64{"tagId": tagID})
}

// UntagFile removes tag associations from one file.
func (h *Handlers) UntagFile(w http.ResponseWriter, r *http.Request) {
	var req FileOpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FileID == 0 || len(req.TagIDs) == 0 {
		writeError(w, http.StatusBadRequest, "fileId and tagIds are required")
		return
	}

	if err := h.db.UntagFile(r.Context(), req.FileID, req.TagIDs); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to untag file")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetFileTags returns the tags attached to one file.
func (h *Handlers) GetFileTags(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("fileId")
	fileID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "fileId is required")
		return
	}

	tags, err := h.db.FileTags(r.Context(), fileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get file tags")
		return
	}
	if tags == nil {
		tags = []catalog.Tag{}
	}
	writeJSON(w, tags)
}
