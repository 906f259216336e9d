// Package registry owns the set of live sandboxes, enforces a capacity
// cap, and brokers all external operations to a Sandbox by identifier
// under a reader-writer discipline.
package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vmsandbox/orchestrator/internal/metrics"
	"github.com/vmsandbox/orchestrator/internal/sandbox"
	"github.com/vmsandbox/orchestrator/internal/sandboxerr"
	"github.com/vmsandbox/orchestrator/internal/vmdriver"
	"github.com/vmsandbox/orchestrator/internal/wire"
	"github.com/vmsandbox/orchestrator/pkg/types"
)

// Registry holds the id-to-sandbox map behind a reader-writer lock.
type Registry struct {
	mu sync.RWMutex

	sandboxes    map[sandbox.ID]*sandbox.Sandbox
	maxSandboxes int // 0 = unbounded
	cidCounter   uint32

	driver *vmdriver.Driver
	log    *logrus.Entry
}

// New builds an empty Registry bounded by maxSandboxes (0 = unbounded).
func New(driver *vmdriver.Driver, maxSandboxes int) *Registry {
	return &Registry{
		sandboxes:    make(map[sandbox.ID]*sandbox.Sandbox),
		maxSandboxes: maxSandboxes,
		cidCounter:   3,
		driver:       driver,
		log:          logrus.WithField("component", "registry"),
	}
}

// nextCID hands out a fresh guest context-ID starting at 3 for directly
// created sandboxes (the pool reserves its own range starting at
// 10,000; see internal/pool).
func (r *Registry) nextCID() uint32 {
	return atomic.AddUint32(&r.cidCounter, 1) - 1
}

func (r *Registry) hasCapacity() bool {
	if r.maxSandboxes == 0 {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sandboxes) < r.maxSandboxes
}

// Create builds a Sandbox from config and inserts it, under a best-effort
// read-then-write capacity gate: a narrow race may admit one extra entry,
// which pool overfill handling tolerates.
func (r *Registry) Create(ctx context.Context, cfg sandbox.Config) (sandbox.ID, error) {
	if !r.hasCapacity() {
		return "", sandboxerr.CapacityExceeded(r.maxSandboxes)
	}

	start := time.Now()
	sb, err := sandbox.Build(ctx, r.driver, cfg, r.nextCID())
	if err != nil {
		return "", err
	}
	metrics.SandboxCreateDuration.Observe(time.Since(start).Seconds())

	id, rejected, err := r.Register(sb)
	if err != nil {
		if derr := rejected.Destroy(ctx); derr != nil {
			r.log.WithError(derr).Warn("error destroying capacity-rejected sandbox")
		}
		return "", err
	}
	return id, nil
}

// Register inserts an already-built sandbox. On capacity rejection the
// sandbox is handed back to the caller, who is responsible for its
// disposal; this prevents leaking pool-acquired VMs on a silent insert
// failure.
func (r *Registry) Register(sb *sandbox.Sandbox) (sandbox.ID, *sandbox.Sandbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxSandboxes != 0 && len(r.sandboxes) >= r.maxSandboxes {
		return "", sb, sandboxerr.CapacityExceeded(r.maxSandboxes)
	}

	r.sandboxes[sb.ID()] = sb
	metrics.SandboxesActive.Set(float64(len(r.sandboxes)))
	return sb.ID(), nil, nil
}

func (r *Registry) lookup(id sandbox.ID) (*sandbox.Sandbox, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sb, ok := r.sandboxes[id]
	if !ok {
		return nil, sandboxerr.NotFound(id.String())
	}
	return sb, nil
}

// Destroy removes id under a write lock, then destroys it outside the map
// lock.
func (r *Registry) Destroy(ctx context.Context, id sandbox.ID) error {
	r.mu.Lock()
	sb, ok := r.sandboxes[id]
	if !ok {
		r.mu.Unlock()
		return sandboxerr.NotFound(id.String())
	}
	delete(r.sandboxes, id)
	metrics.SandboxesActive.Set(float64(len(r.sandboxes)))
	r.mu.Unlock()

	return sb.Destroy(ctx)
}

// DestroyAll atomically takes the full map, then destroys each entry
// sequentially. Per-entry errors are logged but never fail the call.
func (r *Registry) DestroyAll(ctx context.Context) {
	r.mu.Lock()
	taken := r.sandboxes
	r.sandboxes = make(map[sandbox.ID]*sandbox.Sandbox)
	metrics.SandboxesActive.Set(0)
	r.mu.Unlock()

	for id, sb := range taken {
		if err := sb.Destroy(ctx); err != nil {
			r.log.WithError(err).WithField("sandbox_id", id).Warn("error destroying sandbox")
		}
	}
}

// Exists reports whether id is present.
func (r *Registry) Exists(id sandbox.ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sandboxes[id]
	return ok
}

// List returns a snapshot of all ids currently registered.
func (r *Registry) List() []sandbox.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]sandbox.ID, 0, len(r.sandboxes))
	for id := range r.sandboxes {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of registered sandboxes.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sandboxes)
}

// Execute looks id up under a read lock and delegates to that sandbox.
func (r *Registry) Execute(id sandbox.ID, cmd string) (types.ExecResult, error) {
	sb, err := r.lookup(id)
	if err != nil {
		return types.ExecResult{}, err
	}
	start := time.Now()
	result, err := sb.Execute(cmd)
	metrics.ObserveRPC(wire.MethodExec, time.Since(start))
	return result, err
}

// ExecuteCode looks id up under a read lock and delegates to that sandbox.
func (r *Registry) ExecuteCode(id sandbox.ID, lang, code string) (types.ExecResult, error) {
	sb, err := r.lookup(id)
	if err != nil {
		return types.ExecResult{}, err
	}
	start := time.Now()
	result, err := sb.ExecuteCode(lang, code)
	metrics.ObserveRPC(wire.MethodExecCode, time.Since(start))
	return result, err
}

// ReadFile looks id up under a read lock and delegates to that sandbox.
func (r *Registry) ReadFile(id sandbox.ID, path string) (string, error) {
	sb, err := r.lookup(id)
	if err != nil {
		return "", err
	}
	return sb.ReadFile(path)
}

// WriteFile looks id up under a read lock and delegates to that sandbox.
func (r *Registry) WriteFile(id sandbox.ID, path, content string) error {
	sb, err := r.lookup(id)
	if err != nil {
		return err
	}
	return sb.WriteFile(path, content)
}

// ListDir looks id up under a read lock and delegates to that sandbox.
func (r *Registry) ListDir(id sandbox.ID, path string) ([]types.FileEntry, error) {
	sb, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return sb.ListDir(path)
}
