package handlers

import "net/http"

// Healthz is the unauthenticated liveness probe.
func (a *App) Healthz(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"status": "ok"})
}
