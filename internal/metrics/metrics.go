// Package metrics exposes the orchestrator's operational counters as
// Prometheus metrics: registry occupancy, warm-pool hit/miss/create/destroy
// counters, and per-method RPC latency.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	SandboxesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vmsandbox_sandboxes_active",
			Help: "Number of sandboxes currently registered",
		},
	)

	SandboxCreateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vmsandbox_sandbox_create_duration_seconds",
			Help:    "Time to boot a sandbox and reach Ready",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
	)

	RPCDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vmsandbox_rpc_duration_seconds",
			Help:    "Time for one guest-agent RPC, by method",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0, 60.0},
		},
		[]string{"method"},
	)

	PoolSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vmsandbox_pool_size",
			Help: "Number of ready sandboxes in the warm pool",
		},
	)

	PoolWarmHits = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vmsandbox_pool_warm_hits",
			Help: "Acquires served from the warm pool",
		},
	)

	PoolColdMisses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vmsandbox_pool_cold_misses",
			Help: "Acquires that fell back to a cold start",
		},
	)

	PoolCreated = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vmsandbox_pool_created",
			Help: "Sandboxes created by the pool filler",
		},
	)

	PoolDestroyed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vmsandbox_pool_destroyed",
			Help: "Pooled sandboxes destroyed (unhealthy or shutdown)",
		},
	)
)

func init() {
	prometheus.MustRegister(
		SandboxesActive,
		SandboxCreateDuration,
		RPCDuration,
		PoolSize,
		PoolWarmHits,
		PoolColdMisses,
		PoolCreated,
		PoolDestroyed,
	)
}

// ObserveRPC records one guest-agent call's latency under its method name.
func ObserveRPC(method string, d time.Duration) {
	RPCDuration.WithLabelValues(method).Observe(d.Seconds())
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer starts a standalone HTTP server serving /metrics on addr.
func StartServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Warn("metrics server stopped")
		}
	}()
	return srv
}
