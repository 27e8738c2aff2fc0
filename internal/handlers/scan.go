package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"tagfiler/internal/reconciler"
)

// Scan starts reconciliation of one root in the background. A scan already
// in progress is rejected with 409, never queued.
func (h *Handlers) Scan(w http.ResponseWriter, r *http.Request) {
	var req RootRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	if err := h.rec.StartReconcile(req.Path); err != nil {
		if errors.Is(err, reconciler.ErrBusy) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to start scan")
		return
	}

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"status": "started"})
}

// ScanAll starts reconciliation of every registered root.
func (h *Handlers) ScanAll(w http.ResponseWriter, _ *http.Request) {
	if err := h.rec.StartReconcileAll(); err != nil {
		if errors.Is(err, reconciler.ErrBusy) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to start scan")
		return
	}

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"status": "started"})
}

// ScanProgress returns the current reconciler progress snapshot.
func (h *Handlers) ScanProgress(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.rec.Progress())
}
