package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Resinat/dohswitch/internal/config"
	"github.com/Resinat/dohswitch/internal/daemon"
	"github.com/Resinat/dohswitch/internal/endpoint"
	"github.com/Resinat/dohswitch/internal/provider"
	"github.com/Resinat/dohswitch/internal/service"
)

const commandTimeout = 30 * time.Second

// localEnv is the subset of the daemon wiring the one-shot commands need.
type localEnv struct {
	envCfg     *config.EnvConfig
	registry   *provider.Registry
	unit       *daemon.UnitFile
	resolver   *daemon.Resolver
	controller daemon.Controller
}

func openLocalEnv() (*localEnv, error) {
	envCfg, err := config.LoadLocalConfig()
	if err != nil {
		return nil, err
	}
	registry, err := provider.Open(envCfg.ProvidersFile)
	if err != nil {
		return nil, err
	}
	unit := &daemon.UnitFile{Path: envCfg.ServiceFile}
	return &localEnv{
		envCfg:     envCfg,
		registry:   registry,
		unit:       unit,
		resolver:   daemon.NewResolver(unit, registry),
		controller: daemon.NewSystemdController(envCfg.ServiceName),
	}, nil
}

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered providers; the active one is marked with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openLocalEnv()
			if err != nil {
				return err
			}
			return printProviders(cmd.OutOrStdout(), env.registry.List(), env.resolver.Resolve().Key)
		},
	}
}

func printProviders(w io.Writer, entries []provider.Entry, active endpoint.Key) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tNAME\tURL")
	for _, e := range entries {
		mark := ""
		if !active.IsZero() && e.Key == active {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, e.ID, e.Name, e.URL)
	}
	return tw.Flush()
}

func newSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <name|id|url>",
		Short: "Point the forwarding daemon at another provider and restart it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openLocalEnv()
			if err != nil {
				return err
			}
			if env.envCfg.RequireRoot {
				if err := service.RequirePrivileged(service.RunningAsRoot); err != nil {
					return err
				}
			}
			upstream, name, err := switchTarget(env.registry, args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			sw := &daemon.Switcher{
				Unit:       env.unit,
				Controller: env.controller,
				Binary:     env.envCfg.DaemonBinary,
				Port:       env.envCfg.DaemonPort,
			}
			if err := sw.Apply(ctx, upstream); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "switched to %s (%s)\n", name, upstream)
			return nil
		},
	}
}

// switchTarget resolves a registry reference. Unregistered http(s) URLs are
// accepted as-is.
func switchTarget(registry *provider.Registry, ref string) (upstream, name string, err error) {
	if e, rerr := registry.Resolve(ref); rerr == nil {
		return e.URL, e.Name, nil
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://") {
		return ref, ref, nil
	}
	return "", "", fmt.Errorf("unknown provider %q", ref)
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active provider and the daemon state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openLocalEnv()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			printStatus(cmd.OutOrStdout(), env.resolver.Resolve(), env.envCfg.ServiceName, env.controller.Status(ctx))
			return nil
		},
	}
}

func printStatus(w io.Writer, active endpoint.Active, unit, status string) {
	fmt.Fprintf(w, "Provider: %s\n", active.Name)
	if active.Known() {
		fmt.Fprintf(w, "Upstream: %s\n", active.FullURL)
	}
	fmt.Fprintf(w, "Service:  %s (%s)\n", unit, status)
}
