// Command sandboxd is the host-side sandbox orchestrator daemon. It owns
// the VM driver, the sandbox registry, and the warm pool, and exposes
// operational counters on /metrics. It starts no front-end: nothing in this
// binary calls the registry's sandbox operations, and sandboxd itself only
// manages lifecycle.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vmsandbox/orchestrator/internal/config"
	"github.com/vmsandbox/orchestrator/internal/metrics"
	"github.com/vmsandbox/orchestrator/internal/pool"
	"github.com/vmsandbox/orchestrator/internal/registry"
	"github.com/vmsandbox/orchestrator/internal/vmdriver"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.Fatalf("invalid log level %q: %v", cfg.LogLevel, err)
	}
	logrus.SetLevel(level)

	log := logrus.WithField("component", "sandboxd")
	log.Infof("sandboxd %s starting", version)

	template, err := cfg.SandboxConfig()
	if err != nil {
		logrus.Fatalf("invalid sandbox config: %v", err)
	}

	driver := vmdriver.NewDriver(cfg.FirecrackerBin)
	reg := registry.New(driver, cfg.MaxSandboxes)

	poolCfg := pool.Config{
		MinSize:            cfg.PoolMinSize,
		MaxConcurrentBoots: cfg.PoolMaxConcurrentBoots,
		FillInterval:       cfg.PoolFillInterval,
		Template:           template,
	}
	warmPool := pool.New(driver, poolCfg)
	log.WithFields(logrus.Fields{
		"min_size":             poolCfg.MinSize,
		"max_concurrent_boots": poolCfg.MaxConcurrentBoots,
	}).Info("warm pool started")

	if cfg.MetricsAddr != "" {
		metrics.StartServer(cfg.MetricsAddr)
		go publishPoolStats(warmPool)
		log.WithField("addr", cfg.MetricsAddr).Info("metrics server started")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.WithField("signal", sig).Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	warmPool.Shutdown(ctx)
	reg.DestroyAll(ctx)
	log.Info("shutdown complete")
}

// publishPoolStats mirrors the pool's counters into the Prometheus gauges
// every few seconds.
func publishPoolStats(p *pool.Pool) {
	for range time.Tick(5 * time.Second) {
		stats := p.Stats()
		metrics.PoolSize.Set(float64(p.Size()))
		metrics.PoolWarmHits.Set(float64(stats.WarmHits))
		metrics.PoolColdMisses.Set(float64(stats.ColdMisses))
		metrics.PoolCreated.Set(float64(stats.Created))
		metrics.PoolDestroyed.Set(float64(stats.Destroyed))
	}
}
