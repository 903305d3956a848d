package api

import (
	"net/http"

	"github.com/Resinat/dohswitch/internal/service"
)

type lookupRequest struct {
	Domain string `json:"domain"`
}

// HandleLookup returns a handler for POST /api/v1/lookup.
func HandleLookup(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req lookupRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		rec, err := cp.Lookup(r.Context(), req.Domain)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, rec)
	}
}

// HandleListLookups returns a handler for GET /api/v1/lookups.
func HandleListLookups(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := parseIntQueryOrWriteInvalid(w, r, "limit", 0)
		if !ok {
			return
		}
		recs, err := cp.ListLookups(limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"items": recs})
	}
}

// HandleClearLookups returns a handler for DELETE /api/v1/lookups.
func HandleClearLookups(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := cp.ClearLookups()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]int64{"deleted": n})
	}
}
