// Package metrics exposes probe, store and push-hub telemetry in the
// Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Resinat/dohswitch/internal/buildinfo"
	"github.com/Resinat/dohswitch/internal/history"
)

const namespace = "dohswitch"

// Collector owns a private registry. It implements monitor.Observer.
type Collector struct {
	registry *prometheus.Registry

	probes      *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	dohOK       *prometheus.GaugeVec
	storeErrors *prometheus.CounterVec
	subscribers prometheus.Gauge
	dropped     prometheus.Counter
}

// NewCollector registers all dohswitch metrics plus the Go and process
// collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_total",
			Help:      "Probes run against DoH endpoints by kind and result.",
		}, []string{"kind", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_latency_ms",
			Help:      "Mean ICMP round-trip time per latency probe in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000},
		}, []string{"endpoint"}),
		dohOK: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "doh_ok",
			Help:      "1 if the last DoH query through the endpoint succeeded.",
		}, []string{"endpoint"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Failed history store operations.",
		}, []string{"op"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "push_subscribers",
			Help:      "Connected status-push observers.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_dropped_total",
			Help:      "Status events discarded for slow observers.",
		}),
	}
	build := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "build_info",
		Help:        "Build metadata.",
		ConstLabels: prometheus.Labels{"version": buildinfo.Version, "commit": buildinfo.GitCommit},
	})
	build.Set(1)

	c.registry.MustRegister(
		c.probes, c.latency, c.dohOK, c.storeErrors, c.subscribers, c.dropped, build,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) ObserveSample(s history.Sample) {
	ep := string(s.Endpoint)
	if s.LatencyMs != nil {
		c.probes.WithLabelValues("latency", "ok").Inc()
		c.latency.WithLabelValues(ep).Observe(*s.LatencyMs)
	} else {
		c.probes.WithLabelValues("latency", "fail").Inc()
	}
	if s.DoHOK {
		c.probes.WithLabelValues("doh", "ok").Inc()
		c.dohOK.WithLabelValues(ep).Set(1)
	} else {
		c.probes.WithLabelValues("doh", "fail").Inc()
		c.dohOK.WithLabelValues(ep).Set(0)
	}
}

func (c *Collector) ObserveStoreError(op string) { c.storeErrors.WithLabelValues(op).Inc() }

func (c *Collector) ObserveSubscribers(n int) { c.subscribers.Set(float64(n)) }

func (c *Collector) ObserveDropped() { c.dropped.Inc() }
