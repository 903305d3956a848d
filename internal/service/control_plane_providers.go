package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"

	"github.com/Resinat/dohswitch/internal/endpoint"
	"github.com/Resinat/dohswitch/internal/provider"
	"github.com/Resinat/dohswitch/internal/state"
)

// testAllConcurrency bounds parallel probes in TestAllProviders.
const testAllConcurrency = 4

// ProviderView is a registry entry plus whether the daemon uses it.
type ProviderView struct {
	provider.Entry
	Active bool `json:"active"`
}

func (s *ControlPlaneService) view(e provider.Entry, active endpoint.Key) ProviderView {
	return ProviderView{Entry: e, Active: !active.IsZero() && e.Key == active}
}

// ListProviders returns the registry in file order.
func (s *ControlPlaneService) ListProviders() []ProviderView {
	active := s.Resolver.Resolve().Key
	entries := s.Registry.List()
	out := make([]ProviderView, len(entries))
	for i, e := range entries {
		out[i] = s.view(e, active)
	}
	return out
}

// GetProvider accepts an ID, name or URL.
func (s *ControlPlaneService) GetProvider(ref string) (*ProviderView, error) {
	e, err := s.Registry.Resolve(ref)
	if err != nil {
		return nil, registryError("get provider", err)
	}
	v := s.view(e, s.Resolver.Resolve().Key)
	return &v, nil
}

// checkReachable rejects a provider URL whose host does not answer a
// latency probe. It is a no-op without a Prober.
func (s *ControlPlaneService) checkReachable(ctx context.Context, rawURL string) error {
	if s.Prober == nil {
		return nil
	}
	key := endpoint.Normalize(rawURL)
	if key.IsZero() {
		return nil
	}
	if s.Prober.ProbeLatency(ctx, key) == nil {
		return invalidArg(fmt.Sprintf("url: server %s is not reachable", endpoint.Host(key)))
	}
	return nil
}

// AddProvider registers a provider.
func (s *ControlPlaneService) AddProvider(ctx context.Context, name, rawURL string) (*ProviderView, error) {
	if err := s.checkReachable(ctx, rawURL); err != nil {
		return nil, err
	}
	e, err := s.Registry.Add(name, rawURL)
	if err != nil {
		return nil, registryError("add provider", err)
	}
	s.Resolver.Invalidate()
	v := s.view(e, s.Resolver.Resolve().Key)
	return &v, nil
}

// UpdateProvider renames and/or re-points a provider. Nil fields are kept.
func (s *ControlPlaneService) UpdateProvider(ctx context.Context, id string, name, rawURL *string) (*ProviderView, error) {
	if name == nil && rawURL == nil {
		return nil, invalidArg("empty patch")
	}
	if rawURL != nil {
		if err := s.checkReachable(ctx, *rawURL); err != nil {
			return nil, err
		}
	}
	e, err := s.Registry.Update(id, name, rawURL)
	if err != nil {
		return nil, registryError("update provider", err)
	}
	s.Resolver.Invalidate()
	v := s.view(e, s.Resolver.Resolve().Key)
	return &v, nil
}

var providerPatchFields = map[string]bool{"name": true, "url": true}

// PatchProvider applies a JSON patch object with optional "name" and "url".
func (s *ControlPlaneService) PatchProvider(ctx context.Context, id string, patchJSON json.RawMessage) (*ProviderView, error) {
	patch, verr := parseMergePatch(patchJSON)
	if verr != nil {
		return nil, verr
	}
	if verr := patch.validateFields(providerPatchFields, func(field string) string {
		return fmt.Sprintf("field %q is not patchable", field)
	}); verr != nil {
		return nil, verr
	}
	var name, rawURL *string
	if v, ok, verr := patch.optionalNonEmptyString("name"); verr != nil {
		return nil, verr
	} else if ok {
		name = &v
	}
	if v, ok, verr := patch.optionalNonEmptyString("url"); verr != nil {
		return nil, verr
	} else if ok {
		rawURL = &v
	}
	return s.UpdateProvider(ctx, id, name, rawURL)
}

// DeleteProvider removes a custom provider.
func (s *ControlPlaneService) DeleteProvider(id string) error {
	if err := s.Registry.Delete(id); err != nil {
		return registryError("delete provider", err)
	}
	s.Resolver.Invalidate()
	return nil
}

// SelectProvider rewrites the daemon configuration to use the provider and
// restarts the daemon.
func (s *ControlPlaneService) SelectProvider(ctx context.Context, ref string) (*ProviderView, error) {
	e, err := s.Registry.Resolve(ref)
	if err != nil {
		return nil, registryError("select provider", err)
	}
	applyErr := s.Switcher.Apply(ctx, e.URL)
	s.Resolver.Invalidate()
	if applyErr != nil {
		return nil, unavailable("failed to switch provider: "+applyErr.Error(), applyErr)
	}
	log.Printf("[daemon] switched to %s (%s)", e.Name, e.URL)
	v := s.view(e, s.Resolver.Resolve().Key)
	return &v, nil
}

// BackupResult names the written backup file.
type BackupResult struct {
	Path string `json:"path"`
}

// BackupProviders copies the registry to its backup file.
func (s *ControlPlaneService) BackupProviders() (*BackupResult, error) {
	path, err := s.Registry.Backup()
	if err != nil {
		return nil, internal("backup providers", err)
	}
	return &BackupResult{Path: path}, nil
}

// RestoreProviders replaces the registry with its backup.
func (s *ControlPlaneService) RestoreProviders() ([]ProviderView, error) {
	if _, err := s.Registry.Restore(); err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, notFound("no provider backup exists")
		}
		if errors.Is(err, provider.ErrInvalid) {
			return nil, conflict("provider backup is invalid: " + err.Error())
		}
		return nil, internal("restore providers", err)
	}
	s.Resolver.Invalidate()
	return s.ListProviders(), nil
}

// ------------------------------------------------------------------
// On-demand tests
// ------------------------------------------------------------------

// testTarget resolves ref to a registered provider, or accepts a raw
// http(s) URL of an unregistered one.
func (s *ControlPlaneService) testTarget(ref string) (name, rawURL string, err error) {
	if e, rerr := s.Registry.Resolve(ref); rerr == nil {
		return e.Name, e.URL, nil
	}
	ref = strings.TrimSpace(ref)
	u, perr := url.Parse(ref)
	if perr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return "", "", notFound("provider not found")
	}
	return ref, ref, nil
}

// TestProvider probes one provider now and records the sample.
func (s *ControlPlaneService) TestProvider(ctx context.Context, ref string) (*TestResult, error) {
	name, rawURL, err := s.testTarget(ref)
	if err != nil {
		return nil, err
	}
	r, err := s.runTest(ctx, name, rawURL)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *ControlPlaneService) runTest(ctx context.Context, name, rawURL string) (TestResult, error) {
	sample, err := s.Tester.TestNow(ctx, rawURL)
	if err != nil {
		return TestResult{}, internal("test provider", err)
	}
	r := TestResult{
		Name:     name,
		URL:      rawURL,
		Endpoint: sample.Endpoint,
		Ping:     sample.LatencyMs,
		DoHOK:    sample.DoHOK,
		TestedAt: sample.Timestamp,
	}
	if s.TestResults != nil {
		s.TestResults.Put(r)
	}
	return r, nil
}

// TestAllProviders probes every registered provider. Results keep registry
// order. A failed test is reported as a result with no ping and doh_ok
// false.
func (s *ControlPlaneService) TestAllProviders(ctx context.Context) []TestResult {
	entries := s.Registry.List()
	results := make([]TestResult, len(entries))

	sem := make(chan struct{}, testAllConcurrency)
	var wg sync.WaitGroup
	for i, e := range entries {
		wg.Add(1)
		go func(i int, e provider.Entry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			r, err := s.runTest(ctx, e.Name, e.URL)
			if err != nil {
				log.Printf("[sampler] test %s: %v", e.Name, err)
				r = TestResult{Name: e.Name, URL: e.URL, Endpoint: e.Key, TestedAt: s.now()}
			}
			results[i] = r
		}(i, e)
	}
	wg.Wait()
	return results
}

// ListTestResults returns the latest on-demand result per endpoint.
func (s *ControlPlaneService) ListTestResults() []TestResult {
	if s.TestResults == nil {
		return []TestResult{}
	}
	return s.TestResults.List()
}
