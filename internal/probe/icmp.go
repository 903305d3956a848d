package probe

import (
	"context"
	"math"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// Pinger sends a short burst of ICMP echo requests and reports the mean RTT.
type Pinger struct {
	count      int
	timeout    time.Duration
	interval   time.Duration
	privileged bool
}

// NewPinger creates a Pinger from cfg.
func NewPinger(cfg Config) *Pinger {
	cfg = cfg.withDefaults()
	return &Pinger{
		count:      cfg.PingCount,
		timeout:    cfg.PingTimeout,
		interval:   cfg.PingInterval,
		privileged: cfg.PingPrivileged,
	}
}

// Budget is the longest a single Ping call may run.
func (p *Pinger) Budget() time.Duration {
	return time.Duration(p.count-1)*p.interval + p.timeout
}

// Ping returns the mean RTT to host in milliseconds rounded to two decimals,
// or nil if host is empty, cannot be resolved, or never answered.
func (p *Pinger) Ping(ctx context.Context, host string) *float64 {
	if host == "" {
		return nil
	}
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return nil
	}
	pinger.Count = p.count
	pinger.Interval = p.interval
	pinger.Timeout = p.Budget()
	pinger.SetPrivileged(p.privileged)

	ctx, cancel := context.WithTimeout(ctx, p.Budget())
	defer cancel()
	if err := pinger.RunWithContext(ctx); err != nil {
		return nil
	}
	return meanRTT(pinger.Statistics())
}

func meanRTT(stats *probing.Statistics) *float64 {
	if stats == nil || stats.PacketsRecv == 0 {
		return nil
	}
	ms := float64(stats.AvgRtt) / float64(time.Millisecond)
	ms = math.Round(ms*100) / 100
	return &ms
}
