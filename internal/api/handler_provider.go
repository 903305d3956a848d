package api

import (
	"net/http"

	"github.com/Resinat/dohswitch/internal/service"
)

func providerSortKey(sortBy string, p service.ProviderView) string {
	switch sortBy {
	case "url":
		return p.URL
	default:
		return p.Name
	}
}

// HandleListProviders returns a handler for GET /api/v1/providers.
// Without sort parameters the registry order is kept.
func HandleListProviders(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providers := cp.ListProviders()

		if r.URL.Query().Get("sort_by") != "" || r.URL.Query().Get("sort_order") != "" {
			sorting, ok := parseSortingOrWriteInvalid(w, r, []string{"name", "url"}, "name", "asc")
			if !ok {
				return
			}
			SortSlice(providers, sorting, func(p service.ProviderView) string {
				return providerSortKey(sorting.SortBy, p)
			})
		}

		pg, ok := parsePaginationOrWriteInvalid(w, r)
		if !ok {
			return
		}
		WritePage(w, http.StatusOK, providers, pg)
	}
}

// HandleGetProvider returns a handler for GET /api/v1/providers/{id}.
func HandleGetProvider(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireProviderIDPathParam(w, r, "id")
		if !ok {
			return
		}
		p, err := cp.GetProvider(id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, p)
	}
}

type addProviderRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// HandleAddProvider returns a handler for POST /api/v1/providers.
func HandleAddProvider(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addProviderRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		p, err := cp.AddProvider(r.Context(), req.Name, req.URL)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, p)
	}
}

// HandleUpdateProvider returns a handler for PATCH /api/v1/providers/{id}.
func HandleUpdateProvider(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireProviderIDPathParam(w, r, "id")
		if !ok {
			return
		}
		body, ok := readRawBodyOrWriteInvalid(w, r)
		if !ok {
			return
		}
		p, err := cp.PatchProvider(r.Context(), id, body)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, p)
	}
}

// HandleDeleteProvider returns a handler for DELETE /api/v1/providers/{id}.
func HandleDeleteProvider(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireProviderIDPathParam(w, r, "id")
		if !ok {
			return
		}
		if err := cp.DeleteProvider(id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleSelectProvider returns a handler for
// POST /api/v1/providers/{id}/actions/select.
func HandleSelectProvider(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireProviderIDPathParam(w, r, "id")
		if !ok {
			return
		}
		p, err := cp.SelectProvider(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, p)
	}
}

// HandleTestProvider returns a handler for
// POST /api/v1/providers/{id}/actions/test.
func HandleTestProvider(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireProviderIDPathParam(w, r, "id")
		if !ok {
			return
		}
		res, err := cp.TestProvider(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

type testURLRequest struct {
	URL string `json:"url"`
}

// HandleTestURL returns a handler for POST /api/v1/providers/actions/test.
// The body names a registered provider or any http(s) URL.
func HandleTestURL(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req testURLRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if req.URL == "" {
			writeInvalidArgument(w, "url: must be non-empty")
			return
		}
		res, err := cp.TestProvider(r.Context(), req.URL)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

// HandleTestAllProviders returns a handler for
// POST /api/v1/providers/actions/test-all.
func HandleTestAllProviders(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{"items": cp.TestAllProviders(r.Context())})
	}
}

// HandleListTestResults returns a handler for GET /api/v1/providers/test-results.
func HandleListTestResults(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{"items": cp.ListTestResults()})
	}
}

// HandleBackupProviders returns a handler for
// POST /api/v1/providers/actions/backup.
func HandleBackupProviders(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := cp.BackupProviders()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

// HandleRestoreProviders returns a handler for
// POST /api/v1/providers/actions/restore.
func HandleRestoreProviders(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providers, err := cp.RestoreProviders()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"items": providers})
	}
}
