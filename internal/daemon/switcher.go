package daemon

import (
	"context"
	"fmt"
	"log"
)

// Switcher points the forwarding daemon at a new upstream.
type Switcher struct {
	Unit       *UnitFile
	Controller Controller
	Binary     string
	Port       int
	// OnApplied runs after the unit file was rewritten, even if the
	// restart later fails.
	OnApplied func()
}

// Apply rewrites the unit's ExecStart for upstream, reloads systemd and
// restarts the unit.
func (s *Switcher) Apply(ctx context.Context, upstream string) error {
	content, err := s.Unit.Read()
	if err != nil {
		return err
	}
	updated, err := RewriteExecStart(content, s.Binary, s.Port, upstream)
	if err != nil {
		return err
	}
	if err := s.Unit.Write(updated); err != nil {
		return fmt.Errorf("write unit file: %w", err)
	}
	if s.OnApplied != nil {
		s.OnApplied()
	}
	log.Printf("[daemon] upstream set to %s", upstream)

	if err := s.Controller.Reload(ctx); err != nil {
		return err
	}
	return s.Controller.Restart(ctx)
}
