package pool

import (
	"context"
	"testing"
	"time"

	"github.com/vmsandbox/orchestrator/internal/sandbox"
	"github.com/vmsandbox/orchestrator/internal/vmdriver"
)

func TestAllocateCIDMonotonic(t *testing.T) {
	first := allocateCID()
	second := allocateCID()

	if first < poolCIDBase {
		t.Fatalf("pool CIDs must start at %d, got %d", poolCIDBase, first)
	}
	if second != first+1 {
		t.Fatalf("CIDs must increase by one: %d then %d", first, second)
	}
}

func TestStatsSnapshotAndHitRate(t *testing.T) {
	var s Stats

	if rate := s.snapshot().HitRate(); rate != 0 {
		t.Fatalf("expected 0 hit rate with no samples, got %f", rate)
	}

	s.warmHits.Add(3)
	s.coldMisses.Add(1)
	s.created.Add(4)
	s.destroyed.Add(2)

	snap := s.snapshot()
	if snap.WarmHits != 3 || snap.ColdMisses != 1 || snap.Created != 4 || snap.Destroyed != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if rate := snap.HitRate(); rate != 0.75 {
		t.Fatalf("expected hit rate 0.75, got %f", rate)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(sandbox.DefaultConfig())

	if cfg.MinSize != 3 {
		t.Errorf("expected min size 3, got %d", cfg.MinSize)
	}
	if cfg.MaxConcurrentBoots != 2 {
		t.Errorf("expected 2 concurrent boots, got %d", cfg.MaxConcurrentBoots)
	}
	if cfg.FillInterval != time.Second {
		t.Errorf("expected 1s fill interval, got %v", cfg.FillInterval)
	}
}

// TestShutdownIdempotent runs a pool with a zero target so the filler never
// boots a VM; shutdown must stop the filler and be safe to call twice.
func TestShutdownIdempotent(t *testing.T) {
	cfg := Config{
		MinSize:            0,
		MaxConcurrentBoots: 1,
		FillInterval:       10 * time.Millisecond,
		Template:           sandbox.DefaultConfig(),
	}
	p := New(vmdriver.NewDriver("firecracker"), cfg)

	// Let the filler tick at least once with nothing to do.
	time.Sleep(50 * time.Millisecond)
	if p.Size() != 0 {
		t.Fatalf("expected empty pool, got %d", p.Size())
	}

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		p.Shutdown(ctx)
		p.Shutdown(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not complete")
	}

	if p.Stats().Destroyed != 0 {
		t.Fatalf("empty pool must not destroy anything, got %d", p.Stats().Destroyed)
	}
}
