package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv() {
	for _, key := range []string{
		"VMSANDBOX_KERNEL_PATH",
		"VMSANDBOX_ROOTFS_PATH",
		"VMSANDBOX_CHROOT_PATH",
		"VMSANDBOX_MEMORY_MIB",
		"VMSANDBOX_VCPU_COUNT",
		"VMSANDBOX_TIMEOUT",
		"VMSANDBOX_MAX_SANDBOXES",
		"VMSANDBOX_POOL_MIN_SIZE",
		"VMSANDBOX_POOL_MAX_CONCURRENT_BOOTS",
		"VMSANDBOX_POOL_FILL_INTERVAL",
		"VMSANDBOX_METRICS_ADDR",
		"VMSANDBOX_LOG_LEVEL",
	} {
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.ChrootPath != "/tmp/vmsandbox" {
		t.Errorf("expected chroot /tmp/vmsandbox, got %s", cfg.ChrootPath)
	}
	if cfg.MemoryMib != 256 {
		t.Errorf("expected memory 256, got %d", cfg.MemoryMib)
	}
	if cfg.VCPUCount != 2 {
		t.Errorf("expected 2 vcpus, got %d", cfg.VCPUCount)
	}
	if cfg.PoolMinSize != 3 {
		t.Errorf("expected pool min size 3, got %d", cfg.PoolMinSize)
	}
	if cfg.PoolMaxConcurrentBoots != 2 {
		t.Errorf("expected 2 concurrent boots, got %d", cfg.PoolMaxConcurrentBoots)
	}
	if cfg.PoolFillInterval != time.Second {
		t.Errorf("expected fill interval 1s, got %v", cfg.PoolFillInterval)
	}
	if cfg.MaxSandboxes != 0 {
		t.Errorf("expected unbounded registry, got %d", cfg.MaxSandboxes)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected log level info, got %s", cfg.LogLevel)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv()
	os.Setenv("VMSANDBOX_KERNEL_PATH", "/images/vmlinux")
	os.Setenv("VMSANDBOX_MEMORY_MIB", "512")
	os.Setenv("VMSANDBOX_POOL_MIN_SIZE", "5")
	os.Setenv("VMSANDBOX_TIMEOUT", "45s")
	defer clearEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.KernelPath != "/images/vmlinux" {
		t.Errorf("expected kernel path /images/vmlinux, got %s", cfg.KernelPath)
	}
	if cfg.MemoryMib != 512 {
		t.Errorf("expected memory 512, got %d", cfg.MemoryMib)
	}
	if cfg.PoolMinSize != 5 {
		t.Errorf("expected pool min size 5, got %d", cfg.PoolMinSize)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("expected timeout 45s, got %v", cfg.Timeout)
	}
}

func TestLoadInvalidInt(t *testing.T) {
	clearEnv()
	os.Setenv("VMSANDBOX_MEMORY_MIB", "not-a-number")
	defer clearEnv()

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid memory, got nil")
	}
}

func TestSandboxConfigRequiresImages(t *testing.T) {
	clearEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if _, err := cfg.SandboxConfig(); err == nil {
		t.Fatal("expected validation error without kernel/rootfs paths")
	}
}

func TestSandboxConfigFromEnv(t *testing.T) {
	clearEnv()
	os.Setenv("VMSANDBOX_KERNEL_PATH", "/images/vmlinux")
	os.Setenv("VMSANDBOX_ROOTFS_PATH", "/images/rootfs.ext4")
	defer clearEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	sc, err := cfg.SandboxConfig()
	if err != nil {
		t.Fatalf("SandboxConfig() returned error: %v", err)
	}
	if sc.KernelPath != "/images/vmlinux" || sc.RootfsPath != "/images/rootfs.ext4" {
		t.Errorf("unexpected sandbox config: %+v", sc)
	}
	if sc.MemoryMib != 256 {
		t.Errorf("expected default memory 256, got %d", sc.MemoryMib)
	}
}
