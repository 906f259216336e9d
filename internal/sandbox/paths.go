package sandbox

import "path/filepath"

const (
	controlSocketName = "firecracker.sock"
	vsockSocketName   = "vsock.sock"
)

// Dir is the per-sandbox host directory, `<chroot>/<id>/`.
func Dir(chroot string, id ID) string {
	return filepath.Join(chroot, id.String())
}

// ControlSocketPath is the hypervisor control socket inside the sandbox
// directory.
func ControlSocketPath(chroot string, id ID) string {
	return filepath.Join(Dir(chroot, id), controlSocketName)
}

// VsockSocketPath is the datagram-channel host-side socket inside the
// sandbox directory.
func VsockSocketPath(chroot string, id ID) string {
	return filepath.Join(Dir(chroot, id), vsockSocketName)
}
