package handlers

import (
	"net/http"

	"tagfiler/internal/startup"
)

// HealthCheck reports basic liveness plus the reconciler state.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":   "ok",
		"scanning": h.rec.IsScanning(),
	})
}

// ReadinessCheck reports whether the catalog is reachable.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if _, _, err := h.db.CountAndMaxModTime(r.Context(), ""); err != nil {
		writeError(w, http.StatusServiceUnavailable, "catalog unavailable")
		return
	}
	writeJSON(w, map[string]string{
		"status":   "ready",
		"database": h.config.DatabasePath,
	})
}

// GetVersion returns build information.
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, startup.GetBuildInfo())
}
