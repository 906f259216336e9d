package sandbox

import (
	"time"

	"github.com/vmsandbox/orchestrator/internal/sandboxerr"
)

// Config is the declarative input to building a Sandbox.
type Config struct {
	KernelPath    string
	RootfsPath    string
	ChrootPath    string
	MemoryMib     int64
	VCPUCount     int64
	VsockCID      uint32
	Timeout       time.Duration // optional per-operation deadline; 0 uses the client default
	BootArgs      string
	HypervisorBin string
}

// DefaultConfig returns the stock sandbox settings; only the kernel and
// rootfs paths must still be supplied.
func DefaultConfig() Config {
	return Config{
		ChrootPath:    "/tmp/vmsandbox",
		MemoryMib:     256,
		VCPUCount:     2,
		VsockCID:      3,
		BootArgs:      "console=ttyS0 reboot=k panic=1 pci=off",
		HypervisorBin: "firecracker",
	}
}

// Validate checks the config's resource bounds and required paths.
func (c Config) Validate() error {
	if c.KernelPath == "" {
		return sandboxerr.New(sandboxerr.KindInvalidConfig, "kernel_path is required")
	}
	if c.RootfsPath == "" {
		return sandboxerr.New(sandboxerr.KindInvalidConfig, "rootfs_path is required")
	}
	if c.MemoryMib < 128 {
		return sandboxerr.New(sandboxerr.KindInvalidConfig, "memory_mib must be at least 128")
	}
	if c.VCPUCount < 1 || c.VCPUCount > 32 {
		return sandboxerr.New(sandboxerr.KindInvalidConfig, "vcpu_count must be between 1 and 32")
	}
	if c.VsockCID < 3 {
		return sandboxerr.New(sandboxerr.KindInvalidConfig, "vsock_cid must be >= 3")
	}
	return nil
}

// ConfigBuilder is a fluent builder over Config, validating at Build().
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder starts from DefaultConfig.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: DefaultConfig()}
}

func (b *ConfigBuilder) Kernel(path string) *ConfigBuilder {
	b.config.KernelPath = path
	return b
}

func (b *ConfigBuilder) Rootfs(path string) *ConfigBuilder {
	b.config.RootfsPath = path
	return b
}

func (b *ConfigBuilder) ChrootPath(path string) *ConfigBuilder {
	b.config.ChrootPath = path
	return b
}

func (b *ConfigBuilder) MemoryMib(mib int64) *ConfigBuilder {
	b.config.MemoryMib = mib
	return b
}

func (b *ConfigBuilder) VCPUCount(count int64) *ConfigBuilder {
	b.config.VCPUCount = count
	return b
}

func (b *ConfigBuilder) VsockCID(cid uint32) *ConfigBuilder {
	b.config.VsockCID = cid
	return b
}

func (b *ConfigBuilder) Timeout(d time.Duration) *ConfigBuilder {
	b.config.Timeout = d
	return b
}

func (b *ConfigBuilder) HypervisorBin(path string) *ConfigBuilder {
	b.config.HypervisorBin = path
	return b
}

// Build validates the accumulated config and returns it.
func (b *ConfigBuilder) Build() (Config, error) {
	if err := b.config.Validate(); err != nil {
		return Config{}, err
	}
	return b.config, nil
}
