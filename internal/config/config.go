// Package config loads the daemon's configuration from environment
// variables. Every knob has a VMSANDBOX_-prefixed variable and a default.
// Load only parses the values; Config.SandboxConfig validates the sandbox
// template built from them.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/vmsandbox/orchestrator/internal/sandbox"
)

// Config holds all configuration for the sandboxd daemon.
type Config struct {
	// Sandbox template
	KernelPath string // path to the vmlinux kernel image (required)
	RootfsPath string // path to the root filesystem image (required)
	ChrootPath string // host directory for per-sandbox subdirectories
	MemoryMib  int64  // guest memory, min 128
	VCPUCount  int64  // guest vCPUs, 1-32
	Timeout    time.Duration

	FirecrackerBin string // path to the hypervisor binary

	// Registry
	MaxSandboxes int // 0 = unbounded

	// Warm pool
	PoolMinSize            int
	PoolMaxConcurrentBoots int
	PoolFillInterval       time.Duration

	// Observability
	MetricsAddr string // address for the /metrics endpoint, "" disables it
	LogLevel    string
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		KernelPath: os.Getenv("VMSANDBOX_KERNEL_PATH"),
		RootfsPath: os.Getenv("VMSANDBOX_ROOTFS_PATH"),
		ChrootPath: envOrDefault("VMSANDBOX_CHROOT_PATH", "/tmp/vmsandbox"),

		FirecrackerBin: envOrDefault("VMSANDBOX_FIRECRACKER_BIN", "firecracker"),

		MetricsAddr: envOrDefault("VMSANDBOX_METRICS_ADDR", ":9090"),
		LogLevel:    envOrDefault("VMSANDBOX_LOG_LEVEL", "info"),
	}

	var err error
	if cfg.MemoryMib, err = envOrDefaultInt64("VMSANDBOX_MEMORY_MIB", 256); err != nil {
		return nil, err
	}
	if cfg.VCPUCount, err = envOrDefaultInt64("VMSANDBOX_VCPU_COUNT", 2); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = envOrDefaultDuration("VMSANDBOX_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.MaxSandboxes, err = envOrDefaultInt("VMSANDBOX_MAX_SANDBOXES", 0); err != nil {
		return nil, err
	}
	if cfg.PoolMinSize, err = envOrDefaultInt("VMSANDBOX_POOL_MIN_SIZE", 3); err != nil {
		return nil, err
	}
	if cfg.PoolMaxConcurrentBoots, err = envOrDefaultInt("VMSANDBOX_POOL_MAX_CONCURRENT_BOOTS", 2); err != nil {
		return nil, err
	}
	if cfg.PoolFillInterval, err = envOrDefaultDuration("VMSANDBOX_POOL_FILL_INTERVAL", time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SandboxConfig converts the loaded configuration into the validated
// per-sandbox template handed to the registry and the warm pool.
func (c *Config) SandboxConfig() (sandbox.Config, error) {
	b := sandbox.NewConfigBuilder().
		Kernel(c.KernelPath).
		Rootfs(c.RootfsPath).
		ChrootPath(c.ChrootPath).
		MemoryMib(c.MemoryMib).
		VCPUCount(c.VCPUCount).
		HypervisorBin(c.FirecrackerBin)
	if c.Timeout > 0 {
		b = b.Timeout(c.Timeout)
	}
	return b.Build()
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envOrDefaultInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envOrDefaultDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
