package probe

import "time"

// Format selects the DoH request encoding.
type Format string

const (
	// FormatWire is RFC 8484 application/dns-message over POST.
	FormatWire Format = "wire"
	// FormatJSON is the application/dns-json GET dialect.
	FormatJSON Format = "json"
)

// IsValid reports whether f is a known format.
func (f Format) IsValid() bool {
	return f == FormatWire || f == FormatJSON
}

const (
	defaultPingCount    = 3
	defaultPingTimeout  = 2 * time.Second
	defaultPingInterval = time.Second
	defaultDoHTimeout   = 5 * time.Second
	defaultProbeDomain  = "example.com"
	maxDoHResponseBytes = 64 << 10
)

// Config configures the probes. Field names align with config.EnvConfig.
type Config struct {
	PingCount      int
	PingTimeout    time.Duration // per echo request
	PingInterval   time.Duration
	PingPrivileged bool

	DoHTimeout     time.Duration
	DoHProbeDomain string
	DoHFormat      Format
	UserAgent      string
}

func (c Config) withDefaults() Config {
	if c.PingCount <= 0 {
		c.PingCount = defaultPingCount
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = defaultPingTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = defaultPingInterval
	}
	if c.DoHTimeout <= 0 {
		c.DoHTimeout = defaultDoHTimeout
	}
	if c.DoHProbeDomain == "" {
		c.DoHProbeDomain = defaultProbeDomain
	}
	if !c.DoHFormat.IsValid() {
		c.DoHFormat = FormatWire
	}
	return c
}
