package daemon

import "context"

// Host reports the daemon's run state and the local network facts shown
// with every status update.
type Host struct {
	Controller Controller
	Net        *NetInspector
}

func (h *Host) ServiceStatus(ctx context.Context) string {
	if h.Controller == nil {
		return StatusNotRunning
	}
	return h.Controller.Status(ctx)
}

func (h *Host) NetworkInfo(ctx context.Context) NetworkInfo {
	if h.Net == nil {
		return NetworkInfo{DNSServers: []string{}}
	}
	return h.Net.NetworkInfo(ctx)
}
