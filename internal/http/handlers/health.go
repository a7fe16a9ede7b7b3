package handlers

import "net/http"

// Health is the liveness probe. It deliberately skips the database so a
// transient outage there reads as errors on the affected routes, not as a
// dead process to be restarted.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
