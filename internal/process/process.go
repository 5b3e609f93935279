// Package process implements ProcessExecutionManager, the one-shot
// subprocess execution manager, ported from
// execution_managers/process_execution_manager.py and grounded in the
// pack's exec.CommandContext + stdout/stderr streaming idiom (see
// samgonzalezalberto-script-weaver's internal/core/executor.go).
package process

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"github.com/specialistvlad/spine-engine-go/internal/queuelogger"
)

// ExecutionManager runs a single external program to completion, relaying
// stdout/stderr lines through a QueueLogger, mirroring ProcessExecutionManager.
type ExecutionManager struct {
	Program string
	Args    []string
	WorkDir string
	Logger  *queuelogger.QueueLogger

	cmd *exec.Cmd
}

// New returns an ExecutionManager for program with the given args, logging
// through logger.
func New(logger *queuelogger.QueueLogger, program string, args []string, workdir string) *ExecutionManager {
	return &ExecutionManager{Program: program, Args: args, WorkDir: workdir, Logger: logger}
}

// RunUntilComplete starts the process, streams its output, and waits for it
// to exit, mirroring ProcessExecutionManager.run_until_complete.
func (m *ExecutionManager) RunUntilComplete(ctx context.Context) (int, error) {
	cmd := exec.CommandContext(ctx, m.Program, m.Args...)
	cmd.Dir = m.WorkDir
	m.cmd = cmd

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("process: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, fmt.Errorf("process: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		if m.Logger != nil {
			m.Logger.MsgError(fmt.Sprintf("failed to start process: %v", err))
		}
		return -1, fmt.Errorf("process: failed to start: %w", err)
	}
	if m.Logger != nil {
		m.Logger.Msg(fmt.Sprintf("started %s", m.Program))
	}

	done := make(chan struct{})
	go m.streamLines(stdout, "stdout", done)
	go m.streamLines(stderr, "stderr", done)
	<-done
	<-done

	err = cmd.Wait()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("process: wait: %w", err)
	}
	return 0, nil
}

func (m *ExecutionManager) streamLines(r io.Reader, stream string, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if m.Logger != nil {
			m.Logger.MsgProc(stream, line, len(line))
		}
	}
}

// stopGracePeriod is how long StopExecution waits after asking the process
// to terminate before killing it.
const stopGracePeriod = 5 * time.Second

// StopExecution terminates the running process, mirroring
// ProcessExecutionManager.stop_execution (process.terminate()): it sends
// SIGTERM and kills the process if it is still running after
// stopGracePeriod. Where SIGTERM cannot be delivered, it kills at once.
func (m *ExecutionManager) StopExecution() {
	if m.cmd == nil || m.cmd.Process == nil {
		return
	}
	p := m.cmd.Process
	if err := p.Signal(syscall.SIGTERM); err != nil {
		_ = p.Kill()
		return
	}
	time.AfterFunc(stopGracePeriod, func() { _ = p.Kill() })
}
