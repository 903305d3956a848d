// Package service defines the control-plane operations that API handlers and
// the CLI call. Concrete collaborators live in other packages and are wired
// in main.
package service

import (
	"context"
	"time"

	"github.com/Resinat/dohswitch/internal/endpoint"
	"github.com/Resinat/dohswitch/internal/history"
)

// SystemInfo contains version and runtime information.
type SystemInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime string    `json:"build_time"`
	StartedAt time.Time `json:"started_at"`
}

// HistoryStore is the durable sample and lookup history.
type HistoryStore interface {
	RecentProbes(key endpoint.Key, limit int) ([]history.Sample, error)
	RecordLookup(rec history.LookupRecord) error
	RecentLookups(limit int) ([]history.LookupRecord, error)
	Prune(olderThan time.Duration) (history.PruneResult, error)
	ClearProbes(key endpoint.Key) (int64, error)
	ClearLookups() (int64, error)
}

// ActiveResolver reports and re-reads the daemon's configured upstream.
type ActiveResolver interface {
	Resolve() endpoint.Active
	Invalidate()
}

// Tester probes a provider on demand through the sampler's write path.
type Tester interface {
	TestNow(ctx context.Context, url string) (history.Sample, error)
}

// UpstreamSwitcher points the forwarding daemon at a provider.
type UpstreamSwitcher interface {
	Apply(ctx context.Context, upstream string) error
}
