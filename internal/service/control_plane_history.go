package service

import (
	"context"
	"log"
	"slices"
	"strings"

	"github.com/Resinat/dohswitch/internal/daemon"
	"github.com/Resinat/dohswitch/internal/endpoint"
	"github.com/Resinat/dohswitch/internal/history"
	"github.com/Resinat/dohswitch/internal/monitor"
	"github.com/Resinat/dohswitch/internal/probe"
)

// ------------------------------------------------------------------
// Status
// ------------------------------------------------------------------

// GetStatus reports the active provider with its latest cached sample.
// No probe is run.
func (s *ControlPlaneService) GetStatus(ctx context.Context) monitor.StatusEvent {
	active := s.Resolver.Resolve()
	status := daemon.StatusNotRunning
	net := daemon.NetworkInfo{DNSServers: []string{}}
	if s.Host != nil {
		status = s.Host.ServiceStatus(ctx)
		net = s.Host.NetworkInfo(ctx)
	}
	var ring []history.Sample
	if active.Known() {
		ring = s.APICache.Recent(active.Key)
	}
	return monitor.NewStatusEvent(s.now(), active, status, net, ring)
}

// ------------------------------------------------------------------
// History and analytics
// ------------------------------------------------------------------

// HistoryView is the sample history of one endpoint, oldest first.
type HistoryView struct {
	Provider string           `json:"provider"`
	Endpoint endpoint.Key     `json:"base_url"`
	Samples  []history.Sample `json:"history"`
}

// AnalyticsView summarizes a HistoryView.
type AnalyticsView struct {
	Provider string       `json:"provider"`
	Endpoint endpoint.Key `json:"base_url"`
	history.Stats
}

// target resolves a provider reference (ID, name, URL or empty for the
// active endpoint) to a display name and key. Unregistered URLs are
// accepted as-is. The key is empty when nothing is known.
func (s *ControlPlaneService) target(ref string) (string, endpoint.Key, error) {
	if ref == "" {
		active := s.Resolver.Resolve()
		return active.Name, active.Key, nil
	}
	if s.Registry != nil {
		if e, err := s.Registry.Resolve(ref); err == nil {
			return e.Name, e.Key, nil
		}
		if endpoint.IsID(ref) || !strings.ContainsAny(ref, "./") {
			return "", "", notFound("provider not found")
		}
	}
	key := endpoint.Normalize(ref)
	if key.IsZero() {
		return "", "", invalidArg("provider: must be a provider id or url")
	}
	name := string(key)
	if s.Registry != nil {
		if n, ok := s.Registry.NameFor(key); ok {
			name = n
		}
	}
	return name, key, nil
}

// samplesFor returns the API ring of key, falling back to the store when
// the ring is empty (e.g. after a restart). Store failures degrade to an
// empty history.
func (s *ControlPlaneService) samplesFor(key endpoint.Key) []history.Sample {
	if key.IsZero() {
		return []history.Sample{}
	}
	if cached := s.APICache.Recent(key); len(cached) > 0 {
		return cached
	}
	if s.Store == nil {
		return []history.Sample{}
	}
	rows, err := s.Store.RecentProbes(key, s.APICache.Capacity())
	if err != nil {
		log.Printf("[store] history fallback for %s: %v", key, err)
		return []history.Sample{}
	}
	slices.Reverse(rows)
	return rows
}

// GetHistory returns the cached history of a provider.
func (s *ControlPlaneService) GetHistory(ref string) (*HistoryView, error) {
	name, key, err := s.target(ref)
	if err != nil {
		return nil, err
	}
	return &HistoryView{Provider: name, Endpoint: key, Samples: s.samplesFor(key)}, nil
}

// GetAnalytics returns min/max/avg latency over the cached history.
func (s *ControlPlaneService) GetAnalytics(ref string) (*AnalyticsView, error) {
	name, key, err := s.target(ref)
	if err != nil {
		return nil, err
	}
	return &AnalyticsView{Provider: name, Endpoint: key, Stats: history.Summarize(s.samplesFor(key))}, nil
}

// ClearResult reports what ClearHistory removed.
type ClearResult struct {
	Endpoint         endpoint.Key `json:"base_url,omitempty"`
	All              bool         `json:"all"`
	StoreRowsDeleted int64        `json:"store_rows_deleted"`
}

// ClearHistory drops cached samples of one provider, or of all providers
// when ref is empty. With includeStore the durable rows go too.
func (s *ControlPlaneService) ClearHistory(ref string, includeStore bool) (*ClearResult, error) {
	var key endpoint.Key
	if ref != "" {
		var err error
		if _, key, err = s.target(ref); err != nil {
			return nil, err
		}
	}
	s.APICache.Clear(key)
	if s.BroadcastCache != nil {
		s.BroadcastCache.Clear(key)
	}
	res := &ClearResult{Endpoint: key, All: key.IsZero()}
	if includeStore && s.Store != nil {
		n, err := s.Store.ClearProbes(key)
		if err != nil {
			return nil, internal("clear stored history", err)
		}
		res.StoreRowsDeleted = n
	}
	log.Printf("[store] history cleared (endpoint=%q, store=%v)", key, includeStore)
	return res, nil
}

// PruneHistory applies the retention window now.
func (s *ControlPlaneService) PruneHistory() (*history.PruneResult, error) {
	if s.Store == nil {
		return nil, unavailable("history store not configured", nil)
	}
	res, err := s.Store.Prune(s.Retention)
	if err != nil {
		return nil, internal("prune history", err)
	}
	return &res, nil
}

// ------------------------------------------------------------------
// Lookups
// ------------------------------------------------------------------

const (
	defaultLookupLimit = 20
	maxLookupLimit     = 1000
)

// Lookup resolves domain through the active provider and records it.
func (s *ControlPlaneService) Lookup(ctx context.Context, domain string) (*history.LookupRecord, error) {
	name, err := normalizeDomain(domain)
	if err != nil {
		return nil, err
	}
	active := s.Resolver.Resolve()
	if !active.Known() {
		return nil, unavailable("no active DoH provider configured", nil)
	}
	addrs, lerr := s.Lookups.Lookup(ctx, active.FullURL, name)
	if lerr != nil {
		return nil, unavailable("lookup failed: "+lerr.Error(), lerr)
	}
	rec := history.LookupRecord{
		Domain:    name,
		Endpoint:  active.Key,
		Timestamp: s.now(),
		Result:    addrs,
	}
	if s.Store != nil {
		if err := s.Store.RecordLookup(rec); err != nil {
			log.Printf("[store] %v", err)
		}
	}
	return &rec, nil
}

func normalizeDomain(raw string) (string, error) {
	name, err := probe.NormalizeDomain(raw)
	if err != nil {
		return "", domainError(err)
	}
	return name, nil
}

// ListLookups returns recorded lookups, newest first. A failing store read
// yields an empty list.
func (s *ControlPlaneService) ListLookups(limit int) ([]history.LookupRecord, error) {
	if limit <= 0 {
		limit = defaultLookupLimit
	}
	if limit > maxLookupLimit {
		return nil, invalidArg("limit: must be <= 1000")
	}
	if s.Store == nil {
		return []history.LookupRecord{}, nil
	}
	recs, err := s.Store.RecentLookups(limit)
	if err != nil {
		log.Printf("[store] list lookups: %v", err)
		return []history.LookupRecord{}, nil
	}
	return recs, nil
}

// ClearLookups deletes all recorded lookups.
func (s *ControlPlaneService) ClearLookups() (int64, error) {
	if s.Store == nil {
		return 0, nil
	}
	n, err := s.Store.ClearLookups()
	if err != nil {
		return 0, internal("clear lookups", err)
	}
	return n, nil
}
