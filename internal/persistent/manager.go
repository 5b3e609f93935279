package persistent

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/specialistvlad/spine-engine-go/internal/queuelogger"
)

// ErrManagerKilled is returned by IssueCommand/Wait once the manager has
// been killed, mirroring the original's is_persistent_alive() checks.
var ErrManagerKilled = errors.New("persistent: manager killed")

// Manager drives a long-lived REPL subprocess over stdin, synchronizing on
// command completion via the sentinel TCP ping protocol. Grounded on
// PersistentManagerBase/JuliaPersistentManager/PythonPersistentManager.
type Manager struct {
	ID uuid.UUID

	// Argv is the full command line used to launch the REPL, and RPCAddr is
	// the host:port the REPL's own RPC server listens on (handed to it as a
	// startup argument); both feed the pool's cache key and _communicate's
	// target address respectively.
	Argv    []string
	RPCAddr string
	GroupID string
	Logger  *queuelogger.QueueLogger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	running bool
}

// New constructs a Manager without starting the subprocess.
func New(argv []string, rpcAddr, groupID string, logger *queuelogger.QueueLogger) *Manager {
	return &Manager{ID: uuid.New(), Argv: argv, RPCAddr: rpcAddr, GroupID: groupID, Logger: logger}
}

// Start launches the REPL subprocess, mirroring
// PersistentManagerBase._start_persistent.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Argv) == 0 {
		return fmt.Errorf("persistent: empty argv")
	}
	cmd := exec.CommandContext(ctx, m.Argv[0], m.Argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("persistent: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("persistent: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("persistent: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("persistent: failed to start: %w", err)
	}
	m.cmd = cmd
	m.stdin = stdin
	m.running = true

	go m.logStream(stdout, "stdout")
	go m.logStream(stderr, "stderr")
	return nil
}

func (m *Manager) logStream(r io.Reader, stream string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if m.Logger != nil {
			m.Logger.MsgProc(stream, scanner.Text(), len(scanner.Bytes()))
		}
	}
}

// IsAlive reports whether the subprocess is still running, mirroring
// is_persistent_alive (poll() is None).
func (m *Manager) IsAlive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running && m.cmd != nil && m.cmd.ProcessState == nil
}

// IssueCommand writes cmd (followed by a newline) to the REPL's stdin, and,
// if addHistory is set, also asks the REPL's RPC server to append cmd to
// its line-edit history, mirroring _issue_command_and_wait_for_idle's
// "add_history" RPC issued right after a successfully-written command.
func (m *Manager) IssueCommand(ctx context.Context, cmd string, addHistory bool) error {
	m.mu.Lock()
	stdin := m.stdin
	running := m.running
	m.mu.Unlock()
	if !running {
		return ErrManagerKilled
	}
	if _, err := io.WriteString(stdin, cmd+"\n"); err != nil {
		return fmt.Errorf("persistent: write command: %w", err)
	}
	if addHistory {
		if _, err := m.Communicate(ctx, "add_history", false, cmd); err != nil {
			return fmt.Errorf("persistent: add history: %w", err)
		}
	}
	return nil
}

// Wait blocks until the REPL signals it has become idle again, by opening a
// fresh local listener, sending a ping request carrying that listener's
// address into the REPL's stdin, and waiting for a connection back carrying
// "ok" (success) or anything else (failure). Mirrors _wait/_wait_ping.
func (m *Manager) Wait(ctx context.Context, timeout time.Duration) (bool, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return false, fmt.Errorf("persistent: listen: %w", err)
	}
	defer listener.Close()

	addr := listener.Addr().(*net.TCPAddr)
	result := make(chan string, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			result <- "error"
			return
		}
		defer conn.Close()
		buf := make([]byte, 256)
		n, _ := conn.Read(buf)
		result <- string(bytes.TrimSpace(buf[:n]))
	}()

	if err := m.IssueCommand(ctx, pingRequest("127.0.0.1", addr.Port), false); err != nil {
		return false, err
	}

	select {
	case r := <-result:
		return r == "ok", nil
	case <-time.After(timeout):
		if !m.IsAlive() {
			return false, ErrManagerKilled
		}
		return false, fmt.Errorf("persistent: wait timed out after %s", timeout)
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Communicate performs a request/response RPC against the REPL's RPC
// server at RPCAddr, mirroring _communicate: connect, send, optionally
// receive up to maxRPCResponseBytes, retrying on connection refused with a
// short backoff.
func (m *Manager) Communicate(ctx context.Context, request string, receive bool, args ...string) (string, error) {
	wire := encodeRequest(request, args...)

	var conn net.Conn
	var err error
	deadline := time.Now().Add(2 * time.Second)
	for {
		dialer := net.Dialer{Timeout: 200 * time.Millisecond}
		conn, err = dialer.DialContext(ctx, "tcp", m.RPCAddr)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("persistent: communicate dial: %w", err)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
	defer conn.Close()

	if _, err := io.WriteString(conn, wire); err != nil {
		return "", fmt.Errorf("persistent: communicate write: %w", err)
	}
	if !receive {
		return "", nil
	}
	buf := make([]byte, maxRPCResponseBytes)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("persistent: communicate read: %w", err)
	}
	return string(buf[:n]), nil
}

// MakeCompleteCommand asks the REPL whether cmd is a syntactically complete
// statement, returning ("", false) if it is not, mirroring
// make_complete_command.
func (m *Manager) MakeCompleteCommand(ctx context.Context, cmd string) (string, bool, error) {
	resp, err := m.Communicate(ctx, "is_complete", true, cmd)
	if err != nil {
		return "", false, err
	}
	if resp == "" {
		return "", false, nil
	}
	return resp, true, nil
}

// GetCompletions returns the REPL's autocompletion options for text,
// mirroring get_completions's "completions" RPC and its
// strip-then-split-on-space response decoding.
func (m *Manager) GetCompletions(ctx context.Context, text string) ([]string, error) {
	resp, err := m.Communicate(ctx, "completions", true, text)
	if err != nil {
		return nil, fmt.Errorf("persistent: get completions: %w", err)
	}
	resp = strings.TrimSpace(resp)
	if resp == "" {
		return nil, nil
	}
	return strings.Split(resp, " "), nil
}

// GetHistoryItem returns the REPL's line-edit history entry matching text,
// prefix and direction, mirroring get_history_item's "history_item" RPC
// ("backwards" vs "forward" sense).
func (m *Manager) GetHistoryItem(ctx context.Context, text, prefix string, backwards bool) (string, error) {
	sense := "forward"
	if backwards {
		sense = "backwards"
	}
	resp, err := m.Communicate(ctx, "history_item", true, text, prefix, sense)
	if err != nil {
		return "", fmt.Errorf("persistent: get history item: %w", err)
	}
	return strings.TrimSpace(resp), nil
}

// Interrupt sends an interrupt to the REPL, mirroring interrupt_persistent
// (SIGINT on POSIX).
func (m *Manager) Interrupt() error {
	m.mu.Lock()
	cmd := m.cmd
	m.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Signal(interruptSignal)
}

// Kill terminates the REPL subprocess and releases its pipes, mirroring
// kill_process.
func (m *Manager) Kill() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || m.cmd == nil {
		return nil
	}
	m.running = false
	if m.cmd.Process != nil {
		_ = m.cmd.Process.Kill()
	}
	if m.stdin != nil {
		_ = m.stdin.Close()
	}
	_ = m.cmd.Wait()
	return nil
}

// Restart kills and relaunches the REPL, mirroring restart_persistent.
func (m *Manager) Restart(ctx context.Context) error {
	if err := m.Kill(); err != nil {
		return err
	}
	return m.Start(ctx)
}
