// Package metrics exposes Prometheus collectors for rmbot. Each Collector
// owns its own registry so tests and multiple bots never share state.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes.
const (
	OutcomeDelivered       = "delivered"
	OutcomeFetchFailed     = "fetch_failed"
	OutcomePackagingFailed = "packaging_failed"
	OutcomeDeliveryFailed  = "delivery_failed"
	OutcomeInvalidURL      = "invalid_url"
	OutcomeUnauthorized    = "unauthorized"
)

// Pipeline stages.
const (
	StageFetch   = "fetch"
	StagePackage = "package"
	StageDeliver = "deliver"
)

type Collector struct {
	registry *prometheus.Registry
	start    time.Time

	requests     *prometheus.CounterVec
	stageSeconds *prometheus.HistogramVec
	statusChecks *prometheus.CounterVec
	inflight     prometheus.Gauge
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		start:    time.Now(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rmbot_requests_total",
				Help: "Article requests handled, labeled by outcome.",
			},
			[]string{"outcome"},
		),
		stageSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rmbot_stage_duration_seconds",
				Help:    "Time spent in each pipeline stage.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		statusChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rmbot_status_checks_total",
				Help: "rmapi connectivity checks, labeled by resulting state.",
			},
			[]string{"state"},
		),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rmbot_inflight_requests",
			Help: "Article requests currently being processed.",
		}),
	}

	uptime := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "rmbot_uptime_seconds",
		Help: "Time since start in seconds.",
	}, func() float64 { return time.Since(c.start).Seconds() })

	c.registry.MustRegister(
		c.requests,
		c.stageSeconds,
		c.statusChecks,
		c.inflight,
		uptime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveRequest(outcome string) {
	c.requests.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveStage(stage string, d time.Duration) {
	c.stageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

func (c *Collector) ObserveStatus(state string) {
	c.statusChecks.WithLabelValues(state).Inc()
}

// Track marks one request in flight and returns the func that ends it.
func (c *Collector) Track() func() {
	c.inflight.Inc()
	return c.inflight.Dec
}

// Server returns an HTTP server exposing Handler on addr at path.
func (c *Collector) Server(addr, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, c.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
