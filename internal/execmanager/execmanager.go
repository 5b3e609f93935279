// Package execmanager declares the run-to-completion contract of an
// execution manager, mirroring execution_manager_base.py::ExecutionManagerBase.
// internal/process.ExecutionManager implements it; the persistent and kernel
// managers (internal/persistent, internal/kernel) do not.
package execmanager

import "context"

// Manager runs a unit of work to completion and can be asked to stop early.
// RunUntilComplete returns the exit code the original reports (0 success,
// non-zero failure) alongside a Go error for transport/setup failures that
// never produced an exit code at all.
type Manager interface {
	RunUntilComplete(ctx context.Context) (exitCode int, err error)
	StopExecution()
}
