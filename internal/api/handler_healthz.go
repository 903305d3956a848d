package api

import (
	"net/http"

	"github.com/Resinat/dohswitch/internal/service"
)

// HandleHealthz returns a handler for GET /healthz. It is public and reports
// whether the forwarding daemon has an upstream configured; it never probes.
func HandleHealthz(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok"}
		if cp != nil && cp.Resolver != nil {
			body["upstream_configured"] = cp.Resolver.Resolve().Known()
		}
		WriteJSON(w, http.StatusOK, body)
	}
}
