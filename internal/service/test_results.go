package service

import (
	"sort"
	"time"

	"github.com/maypok86/otter"

	"github.com/Resinat/dohswitch/internal/endpoint"
)

// TestResult is the outcome of an on-demand provider test.
type TestResult struct {
	Name     string       `json:"name"`
	URL      string       `json:"url"`
	Endpoint endpoint.Key `json:"base_url"`
	Ping     *float64     `json:"ping"`
	DoHOK    bool         `json:"doh_ok"`
	TestedAt time.Time    `json:"tested_at"`
}

// TestResultCache keeps the latest TestResult per endpoint, bounded in size.
type TestResultCache struct {
	cache otter.Cache[endpoint.Key, TestResult]
}

// NewTestResultCache creates a cache holding at most maxEntries endpoints.
func NewTestResultCache(maxEntries int) *TestResultCache {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	cache, err := otter.MustBuilder[endpoint.Key, TestResult](maxEntries).
		Cost(func(_ endpoint.Key, _ TestResult) uint32 { return 1 }).
		Build()
	if err != nil {
		panic("service: failed to create test result cache: " + err.Error())
	}
	return &TestResultCache{cache: cache}
}

func (c *TestResultCache) Put(r TestResult) { c.cache.Set(r.Endpoint, r) }

func (c *TestResultCache) Get(key endpoint.Key) (TestResult, bool) { return c.cache.Get(key) }

// List returns all results sorted by name, then endpoint.
func (c *TestResultCache) List() []TestResult {
	out := make([]TestResult, 0, c.cache.Size())
	c.cache.Range(func(_ endpoint.Key, r TestResult) bool {
		out = append(out, r)
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Endpoint < out[j].Endpoint
	})
	return out
}

// Close releases resources held by the underlying cache.
func (c *TestResultCache) Close() { c.cache.Close() }
