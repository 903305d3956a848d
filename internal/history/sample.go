// Package history holds the probe and lookup history of DoH endpoints: a
// durable sqlite store with time-based retention and a bounded in-memory
// cache of the most recent samples per endpoint.
package history

import (
	"time"

	"github.com/Resinat/dohswitch/internal/endpoint"
)

// Sample is the outcome of one health check of an endpoint.
// LatencyMs is nil when the latency probe failed.
type Sample struct {
	Endpoint  endpoint.Key `json:"endpoint_key"`
	Timestamp time.Time    `json:"timestamp"`
	LatencyMs *float64     `json:"latency"`
	DoHOK     bool         `json:"doh_ok"`
}

// HasLatency reports whether the latency probe produced a value.
func (s Sample) HasLatency() bool { return s.LatencyMs != nil }

// LookupRecord is the outcome of an operator-initiated resolution.
type LookupRecord struct {
	ID        string       `json:"id"`
	Domain    string       `json:"domain"`
	Endpoint  endpoint.Key `json:"endpoint_key,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Result    []string     `json:"result"`
}

// Float returns a pointer to v. Convenience for building samples.
func Float(v float64) *float64 { return &v }
