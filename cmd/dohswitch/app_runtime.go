package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/Resinat/dohswitch/internal/api"
	"github.com/Resinat/dohswitch/internal/buildinfo"
	"github.com/Resinat/dohswitch/internal/config"
	"github.com/Resinat/dohswitch/internal/daemon"
	"github.com/Resinat/dohswitch/internal/export"
	"github.com/Resinat/dohswitch/internal/history"
	"github.com/Resinat/dohswitch/internal/metrics"
	"github.com/Resinat/dohswitch/internal/monitor"
	"github.com/Resinat/dohswitch/internal/probe"
	"github.com/Resinat/dohswitch/internal/provider"
	"github.com/Resinat/dohswitch/internal/service"
)

type dohswitchApp struct {
	envCfg      *config.EnvConfig
	repo        *history.Repo
	registry    *provider.Registry
	resolver    *daemon.Resolver
	collector   *metrics.Collector
	hub         *monitor.Hub
	sampler     *monitor.Sampler
	influx      *export.InfluxSink
	testResults *service.TestResultCache
	stopBackups func()
	apiSrv      *api.Server
}

func run() error {
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		return err
	}
	if config.IsWeakToken(envCfg.AdminToken) {
		log.Println("WARNING: DOHSW_ADMIN_TOKEN is weak; use a longer random token")
	}
	if envCfg.AdminToken == "" {
		log.Println("WARNING: DOHSW_ADMIN_TOKEN is empty; API authentication is disabled")
	}

	app, err := newDohswitchApp(envCfg)
	if err != nil {
		return err
	}

	app.startBackgroundServices()
	serverErrCh := app.startServers()
	notifyReady()
	runtimeErr := waitForShutdown(serverErrCh)
	notifyStopping()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	shutdownErr := app.shutdown(ctx)

	if runtimeErr != nil {
		return fmt.Errorf("runtime server error: %w", runtimeErr)
	}
	return shutdownErr
}

func newDohswitchApp(envCfg *config.EnvConfig) (*dohswitchApp, error) {
	app := &dohswitchApp{envCfg: envCfg}

	if err := os.MkdirAll(filepath.Dir(envCfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("state dir: %w", err)
	}
	repo, err := history.NewRepo(envCfg.DBPath, nil)
	if err != nil {
		return nil, fmt.Errorf("history store: %w", err)
	}
	app.repo = repo
	log.Printf("History store ready at %s", envCfg.DBPath)

	registry, err := provider.Open(envCfg.ProvidersFile)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("provider registry: %w", err)
	}
	app.registry = registry
	log.Printf("Provider registry loaded from %s (%d providers)", envCfg.ProvidersFile, len(registry.List()))

	unit := &daemon.UnitFile{Path: envCfg.ServiceFile}
	app.resolver = daemon.NewResolver(unit, registry)
	registry.OnChange(app.resolver.Invalidate)
	if err := app.resolver.Watch(envCfg.ServiceFile, envCfg.ProvidersFile); err != nil {
		// Without the watch the cache is still invalidated by API writes.
		log.Printf("[daemon] file watch disabled: %v", err)
	}

	controller := daemon.NewSystemdController(envCfg.ServiceName)
	host := &daemon.Host{Controller: controller, Net: &daemon.NetInspector{}}
	prober := probe.NewClient(envCfg.ProbeConfig())

	app.collector = metrics.NewCollector()
	app.hub = monitor.NewHub(app.collector)
	apiCache := history.NewCache(envCfg.HistoryLimit)
	broadcastCache := history.NewCache(envCfg.BroadcastLimit)

	app.sampler = monitor.NewSampler(monitor.SamplerConfig{
		Resolver:       app.resolver,
		Prober:         prober,
		Store:          repo,
		APICache:       apiCache,
		BroadcastCache: broadcastCache,
		Hub:            app.hub,
		HostInfo:       host,
		Observer:       app.collector,
		Interval:       envCfg.TestInterval,
		Retention:      envCfg.Retention,
	})

	if envCfg.InfluxEnabled() {
		app.influx = export.NewInfluxSink(export.InfluxConfig{
			URL:    envCfg.InfluxURL,
			Token:  envCfg.InfluxToken,
			Org:    envCfg.InfluxOrg,
			Bucket: envCfg.InfluxBucket,
		})
	}

	app.testResults = service.NewTestResultCache(envCfg.TestResultsMax)
	cp := &service.ControlPlaneService{
		Store:          repo,
		APICache:       apiCache,
		BroadcastCache: broadcastCache,
		Resolver:       app.resolver,
		Registry:       registry,
		Lookups:        prober,
		Prober:         reachabilityProber(envCfg, prober),
		Tester:         app.sampler,
		Host:           host,
		Controller:     controller,
		Switcher: &daemon.Switcher{
			Unit:       unit,
			Controller: controller,
			Binary:     envCfg.DaemonBinary,
			Port:       envCfg.DaemonPort,
			OnApplied:  app.resolver.Invalidate,
		},
		TestResults: app.testResults,
		EnvCfg:      envCfg,
		Info: service.SystemInfo{
			Version:   buildinfo.Version,
			GitCommit: buildinfo.GitCommit,
			BuildTime: buildinfo.BuildTime,
			StartedAt: time.Now().UTC(),
		},
		Retention: envCfg.Retention,
	}

	app.apiSrv = api.NewServerWithOptions(api.Options{
		ListenAddress:   envCfg.ListenAddress,
		Port:            envCfg.Port,
		AdminToken:      envCfg.AdminToken,
		APIMaxBodyBytes: int64(envCfg.APIMaxBodyBytes),
		ControlPlane:    cp,
		Hub:             app.hub,
		Metrics:         app.collector.Handler(),
		Privileged:      privilegeCheck(envCfg),
	})
	return app, nil
}

// reachabilityProber returns the prober that gates provider URL changes, or
// nil when the check is disabled.
func reachabilityProber(envCfg *config.EnvConfig, p probe.Prober) probe.Prober {
	if !envCfg.CheckReachable {
		return nil
	}
	return p
}

func privilegeCheck(envCfg *config.EnvConfig) service.PrivilegeCheck {
	if !envCfg.RequireRoot {
		return nil
	}
	return service.RunningAsRoot
}

func (a *dohswitchApp) startBackgroundServices() {
	if a.influx != nil {
		a.influx.Start(a.hub)
	}

	a.sampler.Start()
	log.Println("Sampler started")

	if a.envCfg.BackupSchedule != "" {
		stop, err := a.registry.ScheduleBackups(a.envCfg.BackupSchedule)
		if err != nil {
			log.Printf("[registry] backup schedule disabled: %v", err)
		} else {
			a.stopBackups = stop
			log.Printf("Registry backups scheduled (%s)", a.envCfg.BackupSchedule)
		}
	}
}

func (a *dohswitchApp) startServers() <-chan error {
	serverErrCh := make(chan error, 1)
	go func() {
		log.Printf("DoHSwitch API starting on %s", formatListenURL(a.envCfg.ListenAddress, a.envCfg.Port))
		if err := a.apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case serverErrCh <- fmt.Errorf("api server: %w", err):
			default:
			}
		}
	}()
	return serverErrCh
}

func waitForShutdown(serverErrCh <-chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Printf("Received signal %s, shutting down...", sig)
		return nil
	case err := <-serverErrCh:
		log.Printf("Received server runtime error (%v), shutting down...", err)
		return err
	}
}

func formatListenAddress(listenAddress string, port int) string {
	return net.JoinHostPort(listenAddress, strconv.Itoa(port))
}

func formatListenURL(listenAddress string, port int) string {
	return "http://" + formatListenAddress(listenAddress, port)
}

// shutdown stops event sources first, then sinks, then persistence.
func (a *dohswitchApp) shutdown(ctx context.Context) error {
	var result *multierror.Error

	if err := a.apiSrv.Shutdown(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("api server: %w", err))
	}
	log.Println("API server stopped")

	if a.stopBackups != nil {
		a.stopBackups()
		log.Println("Registry backup schedule stopped")
	}

	// The in-flight tick finishes before Stop returns.
	a.sampler.Stop()
	log.Println("Sampler stopped")

	if a.influx != nil {
		a.influx.Stop()
		log.Println("Influx export stopped")
	}
	a.hub.Close()
	log.Println("Push hub closed")

	if err := a.resolver.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("resolver watch: %w", err))
	}
	a.testResults.Close()

	if err := a.repo.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("history store: %w", err))
	}
	log.Println("History store closed")

	return result.ErrorOrNil()
}
