package vmdriver

import (
	"context"
	"os"
	"time"

	"github.com/firecracker-microvm/firecracker-go-sdk"
	"github.com/firecracker-microvm/firecracker-go-sdk/client/models"
	"github.com/sirupsen/logrus"

	"github.com/vmsandbox/orchestrator/internal/sandboxerr"
)

// State is a VM handle's lifecycle position.
type State int

const (
	StateCreating State = iota
	StateRunning
	StateStopped
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateCreating:
		return "creating"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Driver boots machine specs against one hypervisor binary.
type Driver struct {
	binaryPath string
	log        *logrus.Entry
}

// NewDriver builds a Driver that launches hypervisorBin for every VM.
func NewDriver(hypervisorBin string) *Driver {
	return &Driver{
		binaryPath: hypervisorBin,
		log:        logrus.WithField("component", "vmdriver"),
	}
}

// VM is a booted machine handle. It owns the hypervisor subprocess and the
// full spec it was booted from.
type VM struct {
	ID          string
	Spec        MachineSpec
	ControlSock string
	VsockPath   string

	state   State
	machine *firecracker.Machine
	log     *logrus.Entry
}

// State reports the VM's current lifecycle position.
func (v *VM) State() State { return v.state }

// Boot validates spec, creates the per-VM directory, and drives the
// hypervisor through configuration and instance start, returning a running
// VM handle.
func (d *Driver) Boot(ctx context.Context, spec MachineSpec) (*VM, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(spec.VMDir, 0o755); err != nil {
		return nil, sandboxerr.Wrap(sandboxerr.KindVM, "create vm dir", err)
	}

	fcConfig := firecracker.Config{
		VMID:            spec.ID,
		SocketPath:      spec.ControlSock,
		KernelImagePath: spec.KernelPath,
		KernelArgs:      spec.BootArgs,
		MachineCfg: models.MachineConfiguration{
			VcpuCount:  firecracker.Int64(spec.VCPUCount),
			MemSizeMib: firecracker.Int64(spec.MemSizeMib),
		},
		Drives: buildDrives(spec),
	}

	if spec.Vsock != nil {
		// The vsock device must be configured before boot; the SDK
		// applies VsockDevices as part of the same pre-start
		// configuration pass as drives and the boot source.
		fcConfig.VsockDevices = []firecracker.VsockDevice{
			{ID: "1", Path: spec.Vsock.UDSPath, CID: spec.Vsock.CID},
		}
	}

	if spec.Network != nil {
		fcConfig.NetworkInterfaces = []firecracker.NetworkInterface{
			{
				StaticConfiguration: &firecracker.StaticNetworkConfiguration{
					MacAddress:  spec.Network.MAC,
					HostDevName: spec.Network.HostDev,
				},
			},
		}
	}

	vmLog := d.log.WithField("vm_id", spec.ID)

	bin := d.binaryPath
	if spec.BinaryPath != "" {
		bin = spec.BinaryPath
	}
	fcCmd := firecracker.VMCommandBuilder{}.
		WithBin(bin).
		WithSocketPath(spec.ControlSock).
		Build(ctx)

	machine, err := firecracker.NewMachine(ctx, fcConfig,
		firecracker.WithLogger(vmLog),
		firecracker.WithProcessRunner(fcCmd),
	)
	if err != nil {
		os.RemoveAll(spec.VMDir)
		return nil, sandboxerr.Wrap(sandboxerr.KindVM, "create machine", err)
	}

	if err := machine.Start(ctx); err != nil {
		os.RemoveAll(spec.VMDir)
		return nil, sandboxerr.Wrap(sandboxerr.KindVM, "start machine", err)
	}

	vm := &VM{
		ID:          spec.ID,
		Spec:        spec,
		ControlSock: spec.ControlSock,
		state:       StateRunning,
		machine:     machine,
		log:         vmLog,
	}
	if spec.Vsock != nil {
		vm.VsockPath = spec.Vsock.UDSPath
	}

	vmLog.Info("vm started")
	return vm, nil
}

func buildDrives(spec MachineSpec) []models.Drive {
	drives := make([]models.Drive, 0, 1+len(spec.ExtraDrives))
	drives = append(drives, models.Drive{
		DriveID:      firecracker.String(spec.RootDrive.ID),
		PathOnHost:   firecracker.String(spec.RootDrive.PathOnHost),
		IsRootDevice: firecracker.Bool(true),
		IsReadOnly:   firecracker.Bool(spec.RootDrive.ReadOnly),
	})
	for _, d := range spec.ExtraDrives {
		drives = append(drives, models.Drive{
			DriveID:      firecracker.String(d.ID),
			PathOnHost:   firecracker.String(d.PathOnHost),
			IsRootDevice: firecracker.Bool(false),
			IsReadOnly:   firecracker.Bool(d.ReadOnly),
		})
	}
	return drives
}

// Stop gracefully shuts down a running VM. Requires state Running.
func (v *VM) Stop(ctx context.Context) error {
	if v.state != StateRunning {
		return sandboxerr.InvalidState(v.state.String())
	}
	if err := v.machine.Shutdown(ctx); err != nil {
		v.log.WithError(err).Warn("graceful shutdown failed, forcing stop")
		if kerr := v.machine.StopVMM(); kerr != nil {
			return sandboxerr.Wrap(sandboxerr.KindVM, "stop vm", kerr)
		}
	}
	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_ = v.machine.Wait(waitCtx)
	v.state = StateStopped
	return nil
}

// Kill forcefully terminates the VM regardless of its current state.
func (v *VM) Kill() error {
	if v.machine == nil {
		return nil
	}
	if err := v.machine.StopVMM(); err != nil {
		return sandboxerr.Wrap(sandboxerr.KindVM, "kill vm", err)
	}
	v.state = StateStopped
	return nil
}

// Destroy consumes the handle: kills a running VM first, then releases the
// subprocess and removes its per-sandbox directory (best-effort).
func (v *VM) Destroy(ctx context.Context) error {
	if v.state == StateRunning {
		if err := v.Kill(); err != nil {
			v.log.WithError(err).Warn("kill failed during destroy")
		}
	}
	if err := os.RemoveAll(v.Spec.VMDir); err != nil {
		v.log.WithError(err).Warn("failed to remove vm directory")
	}
	return nil
}

