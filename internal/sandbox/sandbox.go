// Package sandbox pairs one VM with one Agent Client under a stable
// identity and exposes the high-level operations a caller actually wants:
// execute, execute-code, read/write/list file, health-check, destroy.
package sandbox

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vmsandbox/orchestrator/internal/agentclient"
	"github.com/vmsandbox/orchestrator/internal/sandboxerr"
	"github.com/vmsandbox/orchestrator/internal/vmdriver"
	"github.com/vmsandbox/orchestrator/pkg/types"
)

// State is the Sandbox's lifecycle position.
type State int

const (
	StateCreating State = iota
	StateReady
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateCreating:
		return "Creating"
	case StateReady:
		return "Ready"
	case StateDestroyed:
		return "Destroyed"
	default:
		return "Unknown"
	}
}

// Sandbox aggregates a stable identifier, a VM handle, an
// exclusively-locked Agent Client, the config used at creation, a state,
// and a creation timestamp.
type Sandbox struct {
	id        ID
	vm        *vmdriver.VM
	config    Config
	createdAt time.Time

	mu     sync.Mutex // guards state and serializes access to client
	state  State
	client *agentclient.Client

	log *logrus.Entry
}

// Build allocates an id, derives a per-sandbox vsock socket path, boots the
// VM, connects the Agent Client, and pings once. On any failure it
// leaves no resources behind: the VM (if booted) is destroyed and the
// per-sandbox directory is removed.
func Build(ctx context.Context, driver *vmdriver.Driver, cfg Config, cid uint32) (*Sandbox, error) {
	id := NewID()
	log := logrus.WithField("sandbox_id", id.String())

	spec := vmdriver.MachineSpec{
		ID:          id.String(),
		VCPUCount:   cfg.VCPUCount,
		MemSizeMib:  cfg.MemoryMib,
		KernelPath:  cfg.KernelPath,
		BootArgs:    cfg.BootArgs,
		RootDrive:   vmdriver.Drive{ID: "rootfs", PathOnHost: cfg.RootfsPath, IsRoot: true},
		Vsock:       &vmdriver.VsockConfig{CID: cid, UDSPath: VsockSocketPath(cfg.ChrootPath, id)},
		VMDir:       Dir(cfg.ChrootPath, id),
		ControlSock: ControlSocketPath(cfg.ChrootPath, id),
		BinaryPath:  cfg.HypervisorBin,
	}

	vm, err := driver.Boot(ctx, spec)
	if err != nil {
		return nil, err
	}

	var dialOpts []agentclient.Option
	if cfg.Timeout > 0 {
		dialOpts = append(dialOpts, agentclient.WithCallTimeout(cfg.Timeout))
	}
	client, err := agentclient.Dial(ctx, spec.Vsock.UDSPath, dialOpts...)
	if err != nil {
		_ = vm.Destroy(ctx)
		return nil, err
	}

	if _, err := client.Ping(); err != nil {
		client.Close()
		_ = vm.Destroy(ctx)
		return nil, err
	}

	log.Info("sandbox ready")

	return &Sandbox{
		id:        id,
		vm:        vm,
		config:    cfg,
		createdAt: time.Now(),
		state:     StateReady,
		client:    client,
		log:       log,
	}, nil
}

// ID returns the sandbox's stable identifier.
func (s *Sandbox) ID() ID { return s.id }

// State reports the sandbox's current lifecycle position.
func (s *Sandbox) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CreatedAt returns the sandbox's creation timestamp.
func (s *Sandbox) CreatedAt() time.Time { return s.createdAt }

// Config returns the configuration used at creation.
func (s *Sandbox) Config() Config { return s.config }

func (s *Sandbox) ensureReady() error {
	if s.state != StateReady {
		return sandboxerr.InvalidState(s.state.String())
	}
	return nil
}

// Execute runs cmd via the guest's default shell.
func (s *Sandbox) Execute(cmd string) (types.ExecResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureReady(); err != nil {
		return types.ExecResult{}, err
	}
	return s.client.Exec(cmd)
}

// ExecuteCode runs code through the interpreter for lang.
func (s *Sandbox) ExecuteCode(lang, code string) (types.ExecResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureReady(); err != nil {
		return types.ExecResult{}, err
	}
	return s.client.ExecCode(lang, code)
}

// ReadFile reads path inside the guest.
func (s *Sandbox) ReadFile(path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureReady(); err != nil {
		return "", err
	}
	return s.client.ReadFile(path)
}

// WriteFile writes content to path inside the guest.
func (s *Sandbox) WriteFile(path, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureReady(); err != nil {
		return err
	}
	return s.client.WriteFile(path, content)
}

// ListDir lists path's contents inside the guest.
func (s *Sandbox) ListDir(path string) ([]types.FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	return s.client.ListDir(path)
}

// IsHealthy pings the agent. If the client's exclusive lock is already
// held, it returns true conservatively: the client is evidently in use.
func (s *Sandbox) IsHealthy() bool {
	if !s.mu.TryLock() {
		return true
	}
	defer s.mu.Unlock()

	if s.state != StateReady {
		return false
	}
	ok, err := s.client.Ping()
	return err == nil && ok
}

// Destroy consumes the sandbox: sets Destroyed, stops the VM, and removes
// the per-sandbox directory.
func (s *Sandbox) Destroy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDestroyed {
		return nil
	}
	s.state = StateDestroyed
	s.client.Close()

	if err := s.vm.Destroy(ctx); err != nil {
		s.log.WithError(err).Warn("error destroying vm")
		return err
	}
	s.log.Info("sandbox destroyed")
	return nil
}
