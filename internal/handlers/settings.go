package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// SettingRequest carries a setting value.
type SettingRequest struct {
	Value string `json:"value"`
}

// GetSetting returns one persisted preference value.
func (h *Handlers) GetSetting(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	value, ok, err := h.db.GetSetting(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get setting")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "setting not found")
		return
	}
	writeJSON(w, map[string]string{"key": key, "value": value})
}

// SetSetting stores one preference value.
func (h *Handlers) SetSetting(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var req SettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.db.SetSetting(r.Context(), key, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to set setting")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
