package service

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Resinat/dohswitch/internal/config"
	"github.com/Resinat/dohswitch/internal/daemon"
	"github.com/Resinat/dohswitch/internal/history"
	"github.com/Resinat/dohswitch/internal/monitor"
	"github.com/Resinat/dohswitch/internal/probe"
	"github.com/Resinat/dohswitch/internal/provider"
)

// --- ControlPlaneService ---

// ControlPlaneService provides all control plane operations.
// Handlers call its methods; business logic lives here, not in handlers.
type ControlPlaneService struct {
	Store          HistoryStore
	APICache       *history.Cache
	BroadcastCache *history.Cache
	Resolver       ActiveResolver
	Registry       *provider.Registry
	Lookups        probe.Resolver
	// Prober, when set, gates provider URL changes on a latency answer.
	Prober         probe.Prober
	Tester         Tester
	Host           monitor.HostInfo
	Controller     daemon.Controller
	Switcher       UpstreamSwitcher
	TestResults    *TestResultCache
	EnvCfg         *config.EnvConfig
	Info           SystemInfo
	Clock          clock.Clock
	Retention      time.Duration
}

func (s *ControlPlaneService) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

// ------------------------------------------------------------------
// System
// ------------------------------------------------------------------

// GetSystemInfo returns build and uptime information.
func (s *ControlPlaneService) GetSystemInfo() SystemInfo {
	return s.Info
}

// GetSettings returns the effective configuration without secrets.
func (s *ControlPlaneService) GetSettings() (config.Settings, error) {
	if s.EnvCfg == nil {
		return config.Settings{}, unavailable("configuration not loaded", nil)
	}
	return s.EnvCfg.Settings(), nil
}

// ------------------------------------------------------------------
// Service control
// ------------------------------------------------------------------

// ServiceState is returned by the service-control operations.
type ServiceState struct {
	Service string `json:"service"`
	Status  string `json:"status"`
}

func (s *ControlPlaneService) serviceName() string {
	if s.EnvCfg != nil {
		return s.EnvCfg.ServiceName
	}
	return ""
}

// ServiceStatus reports whether the forwarding daemon runs.
func (s *ControlPlaneService) ServiceStatus(ctx context.Context) ServiceState {
	return ServiceState{Service: s.serviceName(), Status: s.Controller.Status(ctx)}
}

func (s *ControlPlaneService) StartService(ctx context.Context) (ServiceState, error) {
	return s.serviceAction(ctx, "start", s.Controller.Start)
}

func (s *ControlPlaneService) StopService(ctx context.Context) (ServiceState, error) {
	return s.serviceAction(ctx, "stop", s.Controller.Stop)
}

func (s *ControlPlaneService) RestartService(ctx context.Context) (ServiceState, error) {
	return s.serviceAction(ctx, "restart", s.Controller.Restart)
}

func (s *ControlPlaneService) serviceAction(ctx context.Context, verb string, fn func(context.Context) error) (ServiceState, error) {
	if err := fn(ctx); err != nil {
		return ServiceState{}, unavailable("failed to "+verb+" service: "+err.Error(), err)
	}
	return s.ServiceStatus(ctx), nil
}
