package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"syscall"
)

// Environment variables passed to the engine process.
const (
	// EnvIPC is "1" when the engine must emit event frames on stdout,
	// "0" when its native output is passed through.
	EnvIPC = "TESTBRIDGE_IPC"
	// EnvCollectOnly is "1" in collect-only mode.
	EnvCollectOnly = "TESTBRIDGE_COLLECT_ONLY"
	// EnvSessionID carries the session ID for engine-side logging.
	EnvSessionID = "TESTBRIDGE_SESSION_ID"
)

// stderrTailSize bounds the engine stderr kept for diagnostics.
const stderrTailSize = 8 * 1024

// EngineConfig configures the engine process.
type EngineConfig struct {
	// Command is the engine argv. Command[0] is resolved via PATH.
	Command []string
	// Env is added to the inherited environment.
	Env map[string]string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// SessionID is exported as TESTBRIDGE_SESSION_ID.
	SessionID string
	// CollectOnly is exported as TESTBRIDGE_COLLECT_ONLY.
	CollectOnly bool
	// Passthrough disables IPC: the engine's stdout goes to Stdout untouched.
	Passthrough bool
	// Stdout receives engine stdout in passthrough mode.
	Stdout io.Writer
	// Stderr receives engine stderr. Defaults to os.Stderr.
	Stderr io.Writer
}

// EngineResult represents the result of engine execution.
type EngineResult struct {
	// ExitCode is the process exit code.
	ExitCode int
	// StderrTail is the last part of the engine's stderr.
	StderrTail []byte
}

// EngineManager manages engine process lifecycle.
type EngineManager struct {
	config *EngineConfig
	cmd    *exec.Cmd
	stdout io.ReadCloser
	tail   *tailBuffer
}

// NewEngineManager creates a new engine manager.
func NewEngineManager(config *EngineConfig) *EngineManager {
	return &EngineManager{
		config: config,
		tail:   newTailBuffer(stderrTailSize),
	}
}

// Start starts the engine process.
// In IPC mode stdout carries event frames; stderr is forwarded to
// config.Stderr while its tail is kept for diagnostics.
func (m *EngineManager) Start(ctx context.Context) error {
	if len(m.config.Command) == 0 {
		return errors.New("engine command is empty")
	}
	m.cmd = exec.CommandContext(ctx, m.config.Command[0], m.config.Command[1:]...)
	m.cmd.Dir = m.config.Dir
	m.cmd.Env = engineEnv(os.Environ(), m.config)

	stderr := m.config.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	m.cmd.Stderr = io.MultiWriter(stderr, m.tail)

	if m.config.Passthrough {
		m.cmd.Stdout = m.config.Stdout
	} else {
		stdout, err := m.cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("failed to create stdout pipe: %w", err)
		}
		m.stdout = stdout
	}

	if err := m.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	return nil
}

// Stdout returns the stdout reader for IPC frame reading.
// Nil in passthrough mode.
func (m *EngineManager) Stdout() io.Reader {
	return m.stdout
}

// Wait waits for the engine to exit and returns the result.
// Must be called after Start, and after stdout has been drained.
func (m *EngineManager) Wait() (*EngineResult, error) {
	if m.cmd == nil {
		return nil, errors.New("engine not started")
	}

	err := m.cmd.Wait()
	result := &EngineResult{StderrTail: m.tail.Bytes()}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("engine wait failed: %w", err)
		}
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			result.ExitCode = status.ExitStatus()
		} else {
			result.ExitCode = -1
		}
	}
	return result, nil
}

// Kill terminates the engine process.
func (m *EngineManager) Kill() error {
	if m.cmd != nil && m.cmd.Process != nil {
		return m.cmd.Process.Kill()
	}
	return nil
}

// engineEnv builds the engine environment: base, then config.Env in key
// order, then the bridge's own variables, last occurrence winning.
func engineEnv(base []string, cfg *EngineConfig) []string {
	env := append([]string(nil), base...)

	keys := make([]string, 0, len(cfg.Env))
	for k := range cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+cfg.Env[k])
	}

	env = append(env,
		EnvIPC+"="+boolEnv(!cfg.Passthrough),
		EnvCollectOnly+"="+boolEnv(cfg.CollectOnly),
	)
	if cfg.SessionID != "" {
		env = append(env, EnvSessionID+"="+cfg.SessionID)
	}
	return deduplicateEnv(env)
}

func boolEnv(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// deduplicateEnv keeps the last occurrence of each env var key.
func deduplicateEnv(env []string) []string {
	seen := make(map[string]int, len(env))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		seen[key] = i
	}
	result := make([]string, 0, len(seen))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		if seen[key] == i {
			result = append(result, entry)
		}
	}
	return result
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) Bytes() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.buf...)
}
