// Package probe measures the health of DoH endpoints: ICMP round-trip
// latency to the endpoint host and a functional DoH query against the
// endpoint URL. Probe failures never surface as errors; they degrade to a
// nil latency or a false DoH result.
package probe

import (
	"context"

	"github.com/Resinat/dohswitch/internal/endpoint"
)

// Prober is what the sampler and the on-demand test paths depend on.
type Prober interface {
	// ProbeLatency returns the mean ICMP RTT in milliseconds, or nil.
	ProbeLatency(ctx context.Context, key endpoint.Key) *float64
	// ProbeDoH reports whether a well-known query through url returned
	// at least one answer record.
	ProbeDoH(ctx context.Context, url string) bool
}

// Resolver runs operator-initiated lookups through a DoH endpoint.
type Resolver interface {
	Lookup(ctx context.Context, url, domain string) ([]string, error)
}

// Client combines an ICMP pinger and a DoH client into a Prober and Resolver.
type Client struct {
	Pinger *Pinger
	DoH    *DoHClient
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		Pinger: NewPinger(cfg),
		DoH:    NewDoHClient(cfg),
	}
}

func (c *Client) ProbeLatency(ctx context.Context, key endpoint.Key) *float64 {
	return c.Pinger.Ping(ctx, endpoint.Host(key))
}

func (c *Client) ProbeDoH(ctx context.Context, url string) bool {
	return c.DoH.Check(ctx, url)
}

func (c *Client) Lookup(ctx context.Context, url, domain string) ([]string, error) {
	return c.DoH.Lookup(ctx, url, domain)
}

// Funcs adapts plain functions to Prober. Nil functions report failure.
type Funcs struct {
	Latency func(ctx context.Context, key endpoint.Key) *float64
	DoH     func(ctx context.Context, url string) bool
}

func (f Funcs) ProbeLatency(ctx context.Context, key endpoint.Key) *float64 {
	if f.Latency == nil {
		return nil
	}
	return f.Latency(ctx, key)
}

func (f Funcs) ProbeDoH(ctx context.Context, url string) bool {
	if f.DoH == nil {
		return false
	}
	return f.DoH(ctx, url)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, url, domain string) ([]string, error)

func (f ResolverFunc) Lookup(ctx context.Context, url, domain string) ([]string, error) {
	return f(ctx, url, domain)
}
