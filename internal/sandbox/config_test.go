package sandbox

import (
	"testing"
	"time"

	"github.com/vmsandbox/orchestrator/internal/sandboxerr"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MemoryMib != 256 {
		t.Errorf("expected memory 256, got %d", cfg.MemoryMib)
	}
	if cfg.VCPUCount != 2 {
		t.Errorf("expected 2 vcpus, got %d", cfg.VCPUCount)
	}
	if cfg.VsockCID != 3 {
		t.Errorf("expected cid 3, got %d", cfg.VsockCID)
	}
	if cfg.Timeout != 0 {
		t.Errorf("expected no timeout by default, got %v", cfg.Timeout)
	}
	if cfg.ChrootPath != "/tmp/vmsandbox" {
		t.Errorf("unexpected chroot: %s", cfg.ChrootPath)
	}
}

func TestBuilderBuildsValidConfig(t *testing.T) {
	cfg, err := NewConfigBuilder().
		Kernel("/images/vmlinux").
		Rootfs("/images/rootfs.ext4").
		MemoryMib(512).
		VCPUCount(4).
		VsockCID(7).
		Timeout(60 * time.Second).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if cfg.KernelPath != "/images/vmlinux" || cfg.RootfsPath != "/images/rootfs.ext4" {
		t.Fatalf("unexpected paths: %+v", cfg)
	}
	if cfg.MemoryMib != 512 || cfg.VCPUCount != 4 || cfg.VsockCID != 7 {
		t.Fatalf("unexpected resources: %+v", cfg)
	}
	if cfg.Timeout != 60*time.Second {
		t.Fatalf("expected 60s timeout, got %v", cfg.Timeout)
	}
}

func TestValidateRejections(t *testing.T) {
	base := func() Config {
		cfg := DefaultConfig()
		cfg.KernelPath = "/images/vmlinux"
		cfg.RootfsPath = "/images/rootfs.ext4"
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing kernel", func(c *Config) { c.KernelPath = "" }},
		{"missing rootfs", func(c *Config) { c.RootfsPath = "" }},
		{"memory too small", func(c *Config) { c.MemoryMib = 64 }},
		{"zero vcpus", func(c *Config) { c.VCPUCount = 0 }},
		{"too many vcpus", func(c *Config) { c.VCPUCount = 33 }},
		{"reserved cid", func(c *Config) { c.VsockCID = 2 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if !sandboxerr.Is(err, sandboxerr.KindInvalidConfig) {
				t.Fatalf("expected invalid-config, got %v", err)
			}
		})
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[ID]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id: %s", id)
		}
		seen[id] = true
	}
}

func TestPathDerivation(t *testing.T) {
	id := ID("abc-123")

	if got := Dir("/tmp/vmsandbox", id); got != "/tmp/vmsandbox/abc-123" {
		t.Fatalf("unexpected dir: %s", got)
	}
	if got := ControlSocketPath("/tmp/vmsandbox", id); got != "/tmp/vmsandbox/abc-123/firecracker.sock" {
		t.Fatalf("unexpected control socket: %s", got)
	}
	if got := VsockSocketPath("/tmp/vmsandbox", id); got != "/tmp/vmsandbox/abc-123/vsock.sock" {
		t.Fatalf("unexpected vsock socket: %s", got)
	}

	// Distinct sandboxes can never share a socket path.
	other := ID("def-456")
	if VsockSocketPath("/tmp/vmsandbox", id) == VsockSocketPath("/tmp/vmsandbox", other) {
		t.Fatal("socket paths must differ per sandbox")
	}
}

func TestStateString(t *testing.T) {
	if StateCreating.String() != "Creating" || StateReady.String() != "Ready" || StateDestroyed.String() != "Destroyed" {
		t.Fatal("unexpected state names")
	}
}
