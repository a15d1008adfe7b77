// Package observability exposes Prometheus metrics for the live data
// subsystem: cache counters, SSE client gauges, and scheduler job outcomes.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the instruments incremented by the refresh pipeline. Cache
// and hub state is exported via gauge functions registered in Register, so
// those components stay free of metrics concerns.
type Metrics struct {
	JobRuns         *prometheus.CounterVec
	JobErrors       *prometheus.CounterVec
	EventsBroadcast *prometheus.CounterVec
}

// New creates the refresh-pipeline instruments on the given registerer.
// A nil registerer selects the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		JobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "livefeed_job_runs_total",
			Help: "Completed scheduler job executions.",
		}, []string{"job"}),
		JobErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "livefeed_job_errors_total",
			Help: "Scheduler job executions that failed at the fetch boundary.",
		}, []string{"job"}),
		EventsBroadcast: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "livefeed_events_broadcast_total",
			Help: "SSE events published per channel.",
		}, []string{"channel"}),
	}
}

// CacheStats is the subset of cache state exported as gauges.
type CacheStats interface {
	Snapshot() (hits, misses, evictions int64, size int)
}

// ClientCounter reports the number of connected SSE clients.
type ClientCounter interface {
	ClientCount() int
}

// Register installs gauge functions over live cache and hub state.
func Register(reg prometheus.Registerer, cache CacheStats, hub ClientCounter) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "livefeed_cache_hits_total",
		Help: "Cache read hits.",
	}, func() float64 { h, _, _, _ := cache.Snapshot(); return float64(h) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "livefeed_cache_misses_total",
		Help: "Cache read misses (absent or expired).",
	}, func() float64 { _, m, _, _ := cache.Snapshot(); return float64(m) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "livefeed_cache_evictions_total",
		Help: "Entries evicted under the size cap.",
	}, func() float64 { _, _, e, _ := cache.Snapshot(); return float64(e) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "livefeed_cache_entries",
		Help: "Current cache entry count.",
	}, func() float64 { _, _, _, s := cache.Snapshot(); return float64(s) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "livefeed_sse_clients",
		Help: "Currently connected SSE clients.",
	}, func() float64 { return float64(hub.ClientCount()) })
}
