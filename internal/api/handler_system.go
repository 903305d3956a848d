package api

import (
	"context"
	"net/http"

	"github.com/Resinat/dohswitch/internal/service"
)

// HandleSystemInfo returns a handler for GET /api/v1/system/info.
func HandleSystemInfo(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cp.GetSystemInfo())
	}
}

// HandleSystemConfig returns a handler for GET /api/v1/system/config.
func HandleSystemConfig(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := cp.GetSettings()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, settings)
	}
}

// HandleServiceStatus returns a handler for GET /api/v1/service.
func HandleServiceStatus(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cp.ServiceStatus(r.Context()))
	}
}

// HandleServiceAction returns a handler for
// POST /api/v1/service/actions/{action}.
func HandleServiceAction(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var fn func(context.Context) (service.ServiceState, error)
		switch action := PathParam(r, "action"); action {
		case "start":
			fn = cp.StartService
		case "stop":
			fn = cp.StopService
		case "restart":
			fn = cp.RestartService
		default:
			writeServiceError(w, &service.ServiceError{Code: "NOT_FOUND", Message: "unknown service action: " + action})
			return
		}
		st, err := fn(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, st)
	}
}
