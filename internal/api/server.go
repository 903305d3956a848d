package api

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/Resinat/dohswitch/internal/monitor"
	"github.com/Resinat/dohswitch/internal/service"
)

// Server wraps the HTTP server and mux for the DoHSwitch API.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
}

// Options carries the collaborators of the API server.
type Options struct {
	ListenAddress   string
	Port            int
	AdminToken      string
	APIMaxBodyBytes int64
	ControlPlane    *service.ControlPlaneService
	Hub             *monitor.Hub
	Metrics         http.Handler
	// Privileged gates every /api/ route. Nil disables the check.
	Privileged service.PrivilegeCheck
}

// NewServer creates a new API server listening on all interfaces.
func NewServer(port int, adminToken string, cp *service.ControlPlaneService, hub *monitor.Hub) *Server {
	return NewServerWithOptions(Options{
		Port:         port,
		AdminToken:   adminToken,
		ControlPlane: cp,
		Hub:          hub,
	})
}

// NewServerWithOptions creates a new API server wired with all routes.
func NewServerWithOptions(opts Options) *Server {
	mux := http.NewServeMux()

	// Public (no auth)
	mux.Handle("GET /healthz", HandleHealthz(opts.ControlPlane))
	mux.Handle("GET /metrics", HandleMetrics(opts.Metrics))

	// Authenticated routes
	authed := http.NewServeMux()
	if cp := opts.ControlPlane; cp != nil {
		authed.Handle("GET /api/v1/system/info", HandleSystemInfo(cp))
		authed.Handle("GET /api/v1/system/config", HandleSystemConfig(cp))

		// Monitoring.
		authed.Handle("GET /api/v1/status", HandleStatus(cp))
		authed.Handle("GET /api/v1/history", HandleHistory(cp))
		authed.Handle("POST /api/v1/history/clear", HandleClearHistory(cp))
		authed.Handle("POST /api/v1/history/prune", HandlePruneHistory(cp))
		authed.Handle("GET /api/v1/analytics", HandleAnalytics(cp))

		// Lookups.
		authed.Handle("POST /api/v1/lookup", HandleLookup(cp))
		authed.Handle("GET /api/v1/lookups", HandleListLookups(cp))
		authed.Handle("DELETE /api/v1/lookups", HandleClearLookups(cp))

		// Providers.
		authed.Handle("GET /api/v1/providers", HandleListProviders(cp))
		authed.Handle("POST /api/v1/providers", HandleAddProvider(cp))
		authed.Handle("GET /api/v1/providers/test-results", HandleListTestResults(cp))
		authed.Handle("POST /api/v1/providers/actions/test", HandleTestURL(cp))
		authed.Handle("POST /api/v1/providers/actions/test-all", HandleTestAllProviders(cp))
		authed.Handle("POST /api/v1/providers/actions/backup", HandleBackupProviders(cp))
		authed.Handle("POST /api/v1/providers/actions/restore", HandleRestoreProviders(cp))
		authed.Handle("GET /api/v1/providers/{id}", HandleGetProvider(cp))
		authed.Handle("PATCH /api/v1/providers/{id}", HandleUpdateProvider(cp))
		authed.Handle("DELETE /api/v1/providers/{id}", HandleDeleteProvider(cp))
		authed.Handle("POST /api/v1/providers/{id}/actions/select", HandleSelectProvider(cp))
		authed.Handle("POST /api/v1/providers/{id}/actions/test", HandleTestProvider(cp))

		// Forwarding daemon.
		authed.Handle("GET /api/v1/service", HandleServiceStatus(cp))
		authed.Handle("POST /api/v1/service/actions/{action}", HandleServiceAction(cp))
	}
	if opts.Hub != nil {
		authed.Handle("GET /api/v1/ws", HandleWebSocket(opts.Hub))
	}

	limitedAuthed := RequestBodyLimitMiddleware(opts.APIMaxBodyBytes, authed)
	privileged := PrivilegeMiddleware(opts.Privileged, limitedAuthed)
	mux.Handle("/api/", AuthMiddleware(opts.AdminToken, privileged))
	registerEmbeddedWebUI(mux)

	srv := &http.Server{
		Addr:    net.JoinHostPort(opts.ListenAddress, strconv.Itoa(opts.Port)),
		Handler: mux,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
	}
}

// ListenAndServe starts the HTTP server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}
