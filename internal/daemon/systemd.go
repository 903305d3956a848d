package daemon

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
)

const (
	StatusRunning    = "running"
	StatusNotRunning = "not running"
)

// Controller manages the forwarding daemon's service.
type Controller interface {
	Status(ctx context.Context) string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	Reload(ctx context.Context) error
}

// SystemdController drives a unit over the systemd D-Bus API. A fresh
// connection is opened per call.
type SystemdController struct {
	Unit string
}

func NewSystemdController(unit string) *SystemdController {
	return &SystemdController{Unit: unit}
}

func (c *SystemdController) conn(ctx context.Context) (*dbus.Conn, error) {
	conn, err := dbus.NewWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("systemd connect: %w", err)
	}
	return conn, nil
}

// Status reports StatusRunning when the unit's ActiveState is "active".
// Any failure to ask systemd counts as not running.
func (c *SystemdController) Status(ctx context.Context) string {
	conn, err := c.conn(ctx)
	if err != nil {
		return StatusNotRunning
	}
	defer conn.Close()

	prop, err := conn.GetUnitPropertyContext(ctx, c.Unit, "ActiveState")
	if err != nil {
		return StatusNotRunning
	}
	if state, ok := prop.Value.Value().(string); ok && state == "active" {
		return StatusRunning
	}
	return StatusNotRunning
}

func (c *SystemdController) Start(ctx context.Context) error {
	return c.job(ctx, "start", func(conn *dbus.Conn, ch chan<- string) (int, error) {
		return conn.StartUnitContext(ctx, c.Unit, "replace", ch)
	})
}

func (c *SystemdController) Stop(ctx context.Context) error {
	return c.job(ctx, "stop", func(conn *dbus.Conn, ch chan<- string) (int, error) {
		return conn.StopUnitContext(ctx, c.Unit, "replace", ch)
	})
}

func (c *SystemdController) Restart(ctx context.Context) error {
	return c.job(ctx, "restart", func(conn *dbus.Conn, ch chan<- string) (int, error) {
		return conn.RestartUnitContext(ctx, c.Unit, "replace", ch)
	})
}

// Reload runs the equivalent of `systemctl daemon-reload`.
func (c *SystemdController) Reload(ctx context.Context) error {
	conn, err := c.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("systemd daemon-reload: %w", err)
	}
	return nil
}

func (c *SystemdController) job(ctx context.Context, verb string, submit func(*dbus.Conn, chan<- string) (int, error)) error {
	conn, err := c.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	done := make(chan string, 1)
	if _, err := submit(conn, done); err != nil {
		return fmt.Errorf("systemd %s %s: %w", verb, c.Unit, err)
	}
	select {
	case result := <-done:
		if result != "done" {
			return fmt.Errorf("systemd %s %s: job %s", verb, c.Unit, result)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("systemd %s %s: %w", verb, c.Unit, ctx.Err())
	}
}
