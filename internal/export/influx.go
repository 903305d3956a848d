// Package export forwards pushed status events to external time-series
// storage.
package export

import (
	"context"
	"log"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/Resinat/dohswitch/internal/monitor"
)

const (
	measurement  = "doh_probe"
	writeTimeout = 5 * time.Second
	sinkBuffer   = 64
)

// InfluxConfig locates an InfluxDB v2 bucket.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// PointWriter is the subset of the influx blocking write API in use.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxSink writes one point per status event of a known endpoint.
type InfluxSink struct {
	writer  PointWriter
	closeFn func()

	mu  sync.Mutex
	hub *monitor.Hub
	sub *monitor.Subscription
	wg  sync.WaitGroup
}

// NewInfluxSink connects lazily; nothing is sent until Start.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return NewSink(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), client.Close)
}

// NewSink wraps an arbitrary writer. closeFn may be nil.
func NewSink(writer PointWriter, closeFn func()) *InfluxSink {
	return &InfluxSink{writer: writer, closeFn: closeFn}
}

// Start subscribes to hub and writes events until Stop.
func (s *InfluxSink) Start(hub *monitor.Hub) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return
	}
	s.hub = hub
	s.sub = hub.Subscribe(sinkBuffer)
	events := s.sub.Events()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for ev := range events {
			s.write(ev)
		}
	}()
	log.Println("[influx] export started")
}

// Stop unsubscribes, drains pending events and closes the client.
func (s *InfluxSink) Stop() {
	s.mu.Lock()
	if s.sub != nil {
		s.hub.Unsubscribe(s.sub.ID)
		s.sub = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
	if s.closeFn != nil {
		s.closeFn()
	}
	log.Println("[influx] export stopped")
}

func (s *InfluxSink) write(ev monitor.StatusEvent) {
	p := PointFor(ev)
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.writer.WritePoint(ctx, p); err != nil {
		log.Printf("[influx] write failed: %v", err)
	}
}

// PointFor converts ev to a point. Events without an endpoint yield nil.
func PointFor(ev monitor.StatusEvent) *write.Point {
	if ev.Endpoint.IsZero() {
		return nil
	}
	p := influxdb2.NewPointWithMeasurement(measurement).
		AddTag("provider", ev.Provider).
		AddTag("endpoint", string(ev.Endpoint)).
		AddField("doh_ok", ev.DoHOK).
		SetTime(ev.Time)
	if ev.CurrentPing != nil {
		p.AddField("latency_ms", *ev.CurrentPing)
	}
	return p
}
