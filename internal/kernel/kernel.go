// Package kernel implements KernelManager/Pool, a Jupyter-kernel-shaped
// persistent execution manager, ported from
// execution_managers/kernel_execution_manager.py. A full Jupyter wire
// protocol client is out of scope; what's ported here is the manager
// lifecycle: pool-of-persistent-kernels keyed by (kernel name, group id),
// connection-file based reverse lookup, and start/interrupt/kill of the
// kernel process. The package does not discover Conda kernel specs (Spec
// only carries CondaExe/IsCondaKernel as given by the caller) and has no
// method that runs commands on a kernel.
package kernel

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"

	"github.com/specialistvlad/spine-engine-go/internal/queuelogger"
)

// Spec describes how to launch a kernel, mirroring the fields a
// jupyter_client.KernelManager needs: argv (with extra_switches inserted
// right after the interpreter), and whether this is a "conda" environment
// kernel spec (environment == "conda" in the original).
type Spec struct {
	KernelName     string
	Argv           []string
	ExtraSwitches  []string
	CondaExe       string
	IsCondaKernel  bool
}

func (s Spec) effectiveArgv() []string {
	if len(s.Argv) == 0 || len(s.ExtraSwitches) == 0 {
		return s.Argv
	}
	out := make([]string, 0, len(s.Argv)+len(s.ExtraSwitches))
	out = append(out, s.Argv[0])
	out = append(out, s.ExtraSwitches...)
	out = append(out, s.Argv[1:]...)
	return out
}

// Manager is a running kernel process plus its connection file, mirroring
// jupyter_client.manager.KernelManager as used by KernelExecutionManager.
type Manager struct {
	ID             uuid.UUID
	Spec           Spec
	GroupID        string
	ConnectionFile string

	cmd *exec.Cmd
}

// validateSpec mirrors new_kernel_manager's existence checks: the kernel
// spec must resolve, and if its executable path is absolute it must exist
// on disk.
func validateSpec(spec Spec) error {
	if len(spec.Argv) == 0 {
		return fmt.Errorf("kernel: spec %q has no argv", spec.KernelName)
	}
	exe := spec.Argv[0]
	if len(exe) > 0 && exe[0] == '/' {
		if _, err := os.Stat(exe); err != nil {
			return fmt.Errorf("kernel: executable %q for kernel %q does not exist: %w", exe, spec.KernelName, err)
		}
	}
	return nil
}

// start launches the kernel process, mirroring new_kernel_manager's
// km.start_kernel(**kwargs) call after validation.
func start(ctx context.Context, spec Spec, groupID string, logger *queuelogger.QueueLogger) (*Manager, error) {
	if err := validateSpec(spec); err != nil {
		if logger != nil {
			logger.MsgKernelExecution(map[string]any{"type": "kernel_spec_not_found", "kernel_name": spec.KernelName})
		}
		return nil, err
	}
	argv := spec.effectiveArgv()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("kernel: failed to start %q: %w", spec.KernelName, err)
	}
	id := uuid.New()
	m := &Manager{
		ID:             id,
		Spec:           spec,
		GroupID:        groupID,
		ConnectionFile: fmt.Sprintf("kernel-%s.json", id),
		cmd:            cmd,
	}
	if logger != nil {
		logger.MsgKernelExecution(map[string]any{
			"type":            "kernel_started",
			"kernel_name":     spec.KernelName,
			"connection_file": m.ConnectionFile,
		})
	}
	return m, nil
}

// IsAlive reports whether the kernel process is still running.
func (m *Manager) IsAlive() bool {
	return m.cmd != nil && m.cmd.ProcessState == nil
}

// Interrupt sends an interrupt to the kernel, mirroring interrupt_kernel.
func (m *Manager) Interrupt() error {
	if m.cmd == nil || m.cmd.Process == nil {
		return nil
	}
	return m.cmd.Process.Signal(interruptSignal())
}

// Kill terminates the kernel process.
func (m *Manager) Kill() error {
	if m.cmd == nil || m.cmd.Process == nil {
		return nil
	}
	err := m.cmd.Process.Kill()
	_ = m.cmd.Wait()
	return err
}

// key mirrors the original's (kernel_name, group_id) cache key.
type key struct {
	kernelName string
	groupID    string
}

// Pool is the process-wide keyed cache of kernel Managers plus the
// connection-file reverse-lookup table, mirroring _KernelManagerFactory.
type Pool struct {
	mu                sync.Mutex
	managers          map[key]*Manager
	keyByConnFile     map[string]key
}

// NewPool returns an empty Pool.
func NewPool() *Pool {
	return &Pool{managers: make(map[key]*Manager), keyByConnFile: make(map[string]key)}
}

// NewKernelManager creates (or reuses, for a non-empty group id) a kernel
// manager, mirroring new_kernel_manager. groupID == "" always starts an
// isolated kernel.
func (p *Pool) NewKernelManager(ctx context.Context, spec Spec, groupID string, logger *queuelogger.QueueLogger) (*Manager, error) {
	if groupID == "" {
		return start(ctx, spec, groupID, logger)
	}

	k := key{kernelName: spec.KernelName, groupID: groupID}
	p.mu.Lock()
	if existing, ok := p.managers[k]; ok && existing.IsAlive() {
		p.mu.Unlock()
		return existing, nil
	}
	p.mu.Unlock()

	m, err := start(ctx, spec, groupID, logger)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.managers[k] = m
	p.keyByConnFile[m.ConnectionFile] = k
	p.mu.Unlock()
	return m, nil
}

// GetKernelManager looks up a manager by its connection file, mirroring
// get_kernel_manager.
func (p *Pool) GetKernelManager(connectionFile string) (*Manager, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k, ok := p.keyByConnFile[connectionFile]
	if !ok {
		return nil, false
	}
	m, ok := p.managers[k]
	return m, ok
}

// PopKernelManager looks up and removes a manager by connection file,
// mirroring pop_kernel_manager.
func (p *Pool) PopKernelManager(connectionFile string) (*Manager, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k, ok := p.keyByConnFile[connectionFile]
	if !ok {
		return nil, false
	}
	delete(p.keyByConnFile, connectionFile)
	m, ok := p.managers[k]
	delete(p.managers, k)
	return m, ok
}
