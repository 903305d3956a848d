package api

import (
	"net/http"

	"github.com/Resinat/dohswitch/internal/service"
)

// HandleStatus returns a handler for GET /api/v1/status.
func HandleStatus(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cp.GetStatus(r.Context()))
	}
}

// HandleHistory returns a handler for GET /api/v1/history.
func HandleHistory(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := cp.GetHistory(r.URL.Query().Get("provider"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, view)
	}
}

// HandleAnalytics returns a handler for GET /api/v1/analytics.
func HandleAnalytics(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := cp.GetAnalytics(r.URL.Query().Get("provider"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, view)
	}
}

type clearHistoryRequest struct {
	Provider     string `json:"provider"`
	IncludeStore bool   `json:"include_store"`
}

// HandleClearHistory returns a handler for POST /api/v1/history/clear.
// An empty body clears the cached history of every provider. The
// include_store query flag overrides the body field.
func HandleClearHistory(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req clearHistoryRequest
		if !decodeOptionalBody(w, r, &req) {
			return
		}
		includeStore, ok := parseBoolQueryOrWriteInvalid(w, r, "include_store")
		if !ok {
			return
		}
		if includeStore != nil {
			req.IncludeStore = *includeStore
		}
		res, err := cp.ClearHistory(req.Provider, req.IncludeStore)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

// HandlePruneHistory returns a handler for POST /api/v1/history/prune.
func HandlePruneHistory(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := cp.PruneHistory()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}
