package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Resinat/dohswitch/internal/daemon"
	"github.com/Resinat/dohswitch/internal/endpoint"
	"github.com/Resinat/dohswitch/internal/history"
	"github.com/Resinat/dohswitch/internal/probe"
	"github.com/Resinat/dohswitch/internal/scanloop"
)

// ActiveResolver reports the endpoint the daemon currently uses.
type ActiveResolver interface {
	Resolve() endpoint.Active
}

// HostInfo reports service and network facts included in each event.
type HostInfo interface {
	ServiceStatus(ctx context.Context) string
	NetworkInfo(ctx context.Context) daemon.NetworkInfo
}

// SampleStore is the durable part of the write path.
type SampleStore interface {
	RecordProbe(s history.Sample) error
	Prune(olderThan time.Duration) (history.PruneResult, error)
}

// SamplerConfig wires a Sampler. Store, Hub, HostInfo and Observer are
// optional.
type SamplerConfig struct {
	Resolver       ActiveResolver
	Prober         probe.Prober
	Store          SampleStore
	APICache       *history.Cache
	BroadcastCache *history.Cache
	Hub            *Hub
	HostInfo       HostInfo
	Observer       Observer
	Clock          clock.Clock

	Interval  time.Duration
	Jitter    time.Duration
	Retention time.Duration
}

// Sampler probes the active endpoint once per interval, records the sample
// and publishes a StatusEvent.
type Sampler struct {
	cfg SamplerConfig

	// writeMu serializes the record/append/prune sequence across the loop
	// and on-demand tests.
	writeMu sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewSampler creates a Sampler. Resolver and Prober are required.
func NewSampler(cfg SamplerConfig) *Sampler {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	if cfg.APICache == nil {
		cfg.APICache = history.NewCache(history.DefaultAPILimit)
	}
	if cfg.BroadcastCache == nil {
		cfg.BroadcastCache = history.NewCache(history.DefaultBroadcastLimit)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	return &Sampler{cfg: cfg}
}

// Start runs one tick immediately and then one per interval until Stop.
func (s *Sampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		tick := func(ctx context.Context) {
			// A tick that has started runs to completion; its probes carry
			// their own timeouts.
			s.Tick(context.WithoutCancel(ctx))
		}
		tick(ctx)
		scanloop.Run(ctx, s.cfg.Clock, s.cfg.Interval, s.cfg.Jitter, tick)
	}()
	log.Printf("[sampler] started (interval %s, retention %s)", s.cfg.Interval, s.cfg.Retention)
}

// Stop cancels the loop and waits for an in-flight tick to finish.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()
	s.wg.Wait()
	log.Println("[sampler] stopped")
}

// Tick performs one sampling pass. Every step is isolated: a failure or
// panic in one step is logged and the rest still run.
func (s *Sampler) Tick(ctx context.Context) {
	var active endpoint.Active
	if !s.guard("resolve", func() { active = s.cfg.Resolver.Resolve() }) {
		active = endpoint.Unknown()
	}

	var sample history.Sample
	probed := false
	if active.Known() {
		s.guard("probe", func() {
			sample = s.probe(ctx, active.Key, active.FullURL)
			probed = true
		})
	}
	if probed {
		s.guard("record", func() { s.record(sample) })
		s.guard("prune", s.prune)
	}
	s.guard("publish", func() { s.publish(ctx, active) })
}

// TestNow probes url outside the schedule and records the result through
// the same write path as a tick. Nothing is published.
func (s *Sampler) TestNow(ctx context.Context, url string) (sample history.Sample, err error) {
	key := endpoint.Normalize(url)
	if key.IsZero() {
		return history.Sample{}, errors.New("empty provider url")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("test %s: panic: %v", key, r)
		}
	}()
	sample = s.probe(ctx, key, url)
	s.record(sample)
	return sample, nil
}

func (s *Sampler) probe(ctx context.Context, key endpoint.Key, fullURL string) history.Sample {
	var (
		wg      sync.WaitGroup
		latency *float64
		dohOK   bool
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer s.recoverLog("probe latency")
		latency = s.cfg.Prober.ProbeLatency(ctx, key)
	}()
	go func() {
		defer wg.Done()
		defer s.recoverLog("probe doh")
		dohOK = s.cfg.Prober.ProbeDoH(ctx, fullURL)
	}()
	wg.Wait()

	sample := history.Sample{
		Endpoint:  key,
		Timestamp: s.cfg.Clock.Now(),
		LatencyMs: latency,
		DoHOK:     dohOK,
	}
	s.cfg.Observer.ObserveSample(sample)
	return sample
}

func (s *Sampler) record(sample history.Sample) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.cfg.Store != nil {
		if err := s.cfg.Store.RecordProbe(sample); err != nil {
			log.Printf("[sampler] %v", err)
			s.cfg.Observer.ObserveStoreError("record_probe")
		}
	}
	s.cfg.APICache.Append(sample.Endpoint, sample)
	s.cfg.BroadcastCache.Append(sample.Endpoint, sample)
}

func (s *Sampler) prune() {
	if s.cfg.Store == nil || s.cfg.Retention <= 0 {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.cfg.Store.Prune(s.cfg.Retention); err != nil {
		log.Printf("[sampler] %v", err)
		s.cfg.Observer.ObserveStoreError("prune")
	}
}

func (s *Sampler) publish(ctx context.Context, active endpoint.Active) {
	if s.cfg.Hub == nil {
		return
	}
	status := daemon.StatusNotRunning
	net := daemon.NetworkInfo{DNSServers: []string{}}
	if s.cfg.HostInfo != nil {
		status = s.cfg.HostInfo.ServiceStatus(ctx)
		net = s.cfg.HostInfo.NetworkInfo(ctx)
	}
	var ring []history.Sample
	if active.Known() {
		ring = s.cfg.BroadcastCache.Recent(active.Key)
	}
	s.cfg.Hub.Publish(NewStatusEvent(s.cfg.Clock.Now(), active, status, net, ring))
}

// guard runs fn and reports whether it returned without panicking.
func (s *Sampler) guard(step string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[sampler] %s panic: %v\n%s", step, r, debug.Stack())
			ok = false
		}
	}()
	fn()
	return true
}

func (s *Sampler) recoverLog(step string) {
	if r := recover(); r != nil {
		log.Printf("[sampler] %s panic: %v", step, r)
	}
}
