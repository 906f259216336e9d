// Package pool maintains a warm set of pre-booted sandboxes so that
// acquire calls can skip VM boot latency. A background filler keeps the
// queue at its target size, bounded by a concurrent-boot semaphore; acquire
// health-checks each sandbox on handout and falls back to a cold start when
// the queue is empty.
package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/vmsandbox/orchestrator/internal/sandbox"
	"github.com/vmsandbox/orchestrator/internal/vmdriver"
)

// poolCIDBase is where the pool's context-ID range starts. Lower values are
// left to callers that assign CIDs themselves (the registry hands out small
// values starting at 3).
const poolCIDBase = 10000

var cidCounter uint32 = poolCIDBase

// allocateCID hands out a fresh guest context-ID. Values are never reused
// within the process lifetime.
func allocateCID() uint32 {
	return atomic.AddUint32(&cidCounter, 1) - 1
}

// Config tunes the warm pool.
type Config struct {
	// MinSize is the number of ready sandboxes the filler maintains.
	MinSize int

	// MaxConcurrentBoots caps how many VMs may be booting at once.
	MaxConcurrentBoots int

	// FillInterval is how often the filler checks the queue.
	FillInterval time.Duration

	// Template is cloned for every sandbox the pool builds; the pool
	// assigns each clone its own context-ID.
	Template sandbox.Config
}

// DefaultConfig returns the stock pool tuning.
func DefaultConfig(template sandbox.Config) Config {
	return Config{
		MinSize:            3,
		MaxConcurrentBoots: 2,
		FillInterval:       time.Second,
		Template:           template,
	}
}

// Pool is a FIFO queue of ready sandboxes behind an exclusive lock, plus
// the background filler that keeps it topped up.
type Pool struct {
	mu    sync.Mutex
	queue []*sandbox.Sandbox

	driver *vmdriver.Driver
	config Config

	bootSem *semaphore.Weighted

	shutdown     atomic.Bool
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	fillerDone   chan struct{}

	stats Stats
	log   *logrus.Entry
}

// New builds a Pool and starts its background filler.
func New(driver *vmdriver.Driver, cfg Config) *Pool {
	p := &Pool{
		driver:     driver,
		config:     cfg,
		bootSem:    semaphore.NewWeighted(int64(cfg.MaxConcurrentBoots)),
		shutdownCh: make(chan struct{}),
		fillerDone: make(chan struct{}),
		log:        logrus.WithField("component", "pool"),
	}
	go p.fillerLoop()
	return p
}

// Size returns the number of ready sandboxes currently queued.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Stats returns a snapshot of the pool's monotonic counters.
func (p *Pool) Stats() StatsSnapshot {
	return p.stats.snapshot()
}

// fillerLoop ticks at FillInterval (or wakes on shutdown) and tops the
// queue up to MinSize, taking one boot-semaphore permit per missing slot.
// Unavailable permits mean the slot is skipped until the next tick.
func (p *Pool) fillerLoop() {
	defer close(p.fillerDone)

	ticker := time.NewTicker(p.config.FillInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.shutdownCh:
			return
		case <-ticker.C:
		}
		if p.shutdown.Load() {
			return
		}
		p.fill()
	}
}

func (p *Pool) fill() {
	needed := p.config.MinSize - p.Size()
	for i := 0; i < needed; i++ {
		if !p.bootSem.TryAcquire(1) {
			return
		}
		go p.bootOne()
	}
}

// bootOne builds one sandbox while holding a boot permit. After the build
// it re-checks shutdown and queue size: a sandbox that lost the race to
// enqueue is destroyed rather than over-filling the queue.
func (p *Pool) bootOne() {
	defer p.bootSem.Release(1)

	ctx := context.Background()
	cfg := p.config.Template

	sb, err := sandbox.Build(ctx, p.driver, cfg, allocateCID())
	if err != nil {
		p.log.WithError(err).Warn("pool boot failed")
		return
	}

	p.mu.Lock()
	if p.shutdown.Load() || len(p.queue) >= p.config.MinSize {
		p.mu.Unlock()
		p.log.WithField("sandbox_id", sb.ID()).Debug("discarding surplus pool sandbox")
		if err := sb.Destroy(ctx); err != nil {
			p.log.WithError(err).Warn("error destroying surplus sandbox")
		}
		return
	}
	p.queue = append(p.queue, sb)
	p.mu.Unlock()

	p.stats.created.Add(1)
	p.log.WithField("sandbox_id", sb.ID()).Debug("sandbox added to pool")
}

func (p *Pool) popFront() *sandbox.Sandbox {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil
	}
	sb := p.queue[0]
	p.queue = p.queue[1:]
	return sb
}

// Acquire hands out a ready sandbox, health-checking each candidate on the
// way out. Unhealthy sandboxes are destroyed and the next one is tried;
// when the queue runs dry a fresh sandbox is built on the spot.
func (p *Pool) Acquire(ctx context.Context) (*sandbox.Sandbox, error) {
	for {
		sb := p.popFront()
		if sb == nil {
			break
		}
		if sb.IsHealthy() {
			p.stats.warmHits.Add(1)
			p.log.WithField("sandbox_id", sb.ID()).Debug("warm pool hit")
			return sb, nil
		}
		p.log.WithField("sandbox_id", sb.ID()).Warn("pooled sandbox unhealthy, destroying")
		if err := sb.Destroy(ctx); err != nil {
			p.log.WithError(err).Warn("error destroying unhealthy sandbox")
		}
		p.stats.destroyed.Add(1)
	}

	p.stats.coldMisses.Add(1)
	p.log.Debug("pool empty, cold-starting sandbox")
	return sandbox.Build(ctx, p.driver, p.config.Template, allocateCID())
}

// Shutdown stops the filler, then drains the queue and destroys every
// remaining sandbox. It is safe to call more than once; only the first call
// does the work.
func (p *Pool) Shutdown(ctx context.Context) {
	p.shutdownOnce.Do(func() {
		p.shutdown.Store(true)
		close(p.shutdownCh)
		<-p.fillerDone

		for {
			sb := p.popFront()
			if sb == nil {
				return
			}
			if err := sb.Destroy(ctx); err != nil {
				p.log.WithError(err).WithField("sandbox_id", sb.ID()).Warn("error destroying pooled sandbox")
			}
			p.stats.destroyed.Add(1)
		}
	})
}
