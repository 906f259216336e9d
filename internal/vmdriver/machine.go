// Package vmdriver translates a declarative machine spec into control-API
// calls against the hypervisor daemon, boots the resulting VM, and exposes
// stop/kill/destroy over the handle it returns.
package vmdriver

import "github.com/vmsandbox/orchestrator/internal/sandboxerr"

// Drive describes one block device attached to the VM. The root drive is
// required; extra drive ids must be unique, including against the root id.
type Drive struct {
	ID         string
	PathOnHost string
	ReadOnly   bool
	IsRoot     bool
}

// NetworkInterface describes one tap-backed network device.
type NetworkInterface struct {
	ID      string
	HostDev string
	MAC     string
}

// VsockConfig is the datagram-channel device: a guest context-ID and the
// host-side Unix-domain socket path it is exposed on.
type VsockConfig struct {
	CID     uint32
	UDSPath string
}

// MachineSpec is the declarative description of a VM to boot. VMDir is the
// per-sandbox working-directory root (`<chroot>/<id>/`); the hypervisor's own
// control socket and the vsock UDS both live under it.
type MachineSpec struct {
	ID          string
	VCPUCount   int64
	MemSizeMib  int64
	KernelPath  string
	BootArgs    string
	RootDrive   Drive
	ExtraDrives []Drive
	Network     *NetworkInterface
	Vsock       *VsockConfig
	VMDir       string
	ControlSock string
	BinaryPath  string
}

// Validate checks resource bounds and drive id uniqueness before any
// control-API call is made.
func (m MachineSpec) Validate() error {
	if m.VCPUCount < 1 || m.VCPUCount > 32 {
		return sandboxerr.New(sandboxerr.KindInvalidConfig, "vcpu_count must be between 1 and 32")
	}
	if m.MemSizeMib < 128 {
		return sandboxerr.New(sandboxerr.KindInvalidConfig, "mem_size_mib must be at least 128")
	}
	if m.RootDrive.ID == "" || m.RootDrive.PathOnHost == "" {
		return sandboxerr.New(sandboxerr.KindInvalidConfig, "root drive is required")
	}
	seen := map[string]bool{m.RootDrive.ID: true}
	for _, d := range m.ExtraDrives {
		if seen[d.ID] {
			return sandboxerr.New(sandboxerr.KindInvalidConfig, "duplicate drive id: "+d.ID)
		}
		seen[d.ID] = true
	}
	if m.Vsock != nil && m.Vsock.CID < 3 {
		return sandboxerr.New(sandboxerr.KindInvalidConfig, "vsock context-id must be >= 3")
	}
	if m.KernelPath == "" {
		return sandboxerr.New(sandboxerr.KindInvalidConfig, "kernel_path is required")
	}
	return nil
}
