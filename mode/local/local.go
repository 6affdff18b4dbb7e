// Package local implements types.Mode for the "local host" execution
// environment named in spec.md §1: actions are built with `go build` into
// a per-run working directory and run as direct child processes, wired to
// report to their assigned monitor port via environment variables.
// Grounded on the build/env/pipe wiring of the teacher's
// runtime.ExecutorManager, adapted from "launch a Node executor against a
// user script" to "go build one action's source, then launch the
// resulting binary".
package local

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/justapithecus/actiondriver/types"
)

// EnvMonitorHost and EnvMonitorPort are the environment variables a local
// action binary reads to learn where its Monitor Listener is waiting.
const (
	EnvMonitorHost = "ACTIONDRIVER_MONITOR_HOST"
	EnvMonitorPort = "ACTIONDRIVER_MONITOR_PORT"
)

// DefaultMonitorHost is the loopback address the local mode always binds
// its monitor listeners to; local actions never need anything else.
const DefaultMonitorHost = "127.0.0.1"

// Config configures the local mode.
type Config struct {
	// WorkDir is the directory build artifacts are written into. Created
	// in Prepare if it does not already exist.
	WorkDir string
	// GoBin is the path to the go toolchain binary (default "go").
	GoBin string
	// Classpath is returned verbatim from GetClasspath; local actions are
	// plain Go binaries, so this is typically the set of already-known
	// GOPATH/module directories the classpath suggester should not
	// re-suggest.
	Classpath []string
}

// Mode builds and runs actions as local OS processes.
type Mode struct {
	config Config

	mu      sync.Mutex
	built   map[string]string // action name -> built binary path
}

// New constructs a local Mode. GoBin defaults to "go" when empty.
func New(cfg Config) *Mode {
	if cfg.GoBin == "" {
		cfg.GoBin = "go"
	}
	return &Mode{
		config: cfg,
		built:  make(map[string]string),
	}
}

// Prepare creates the working directory.
func (m *Mode) Prepare(ctx context.Context) error {
	if m.config.WorkDir == "" {
		return nil
	}
	return os.MkdirAll(m.config.WorkDir, 0o755)
}

// BuildAndInstall runs `go build` for action.SourcePath. A non-zero exit
// or build error produces a COMPILE_FAILED Outcome; an unsupported
// RunnerSpec produces UNSUPPORTED. Both are early-result outcomes per
// types.Mode's contract — the caller still enqueues the action afterward.
func (m *Mode) BuildAndInstall(ctx context.Context, action types.Action) (*types.Outcome, error) {
	if !action.Runner.Supports() {
		return &types.Outcome{
			Name:    action.Name,
			Result:  types.ResultUnsupported,
			Matters: true,
			Message: "action runner kind is not buildable",
		}, nil
	}

	if action.SourcePath == "" {
		return &types.Outcome{
			Name:    action.Name,
			Result:  types.ResultCompileFailed,
			Matters: true,
			Message: "action has no source path",
		}, nil
	}

	binPath := filepath.Join(m.config.WorkDir, sanitizeName(action.Name))

	cmd := exec.CommandContext(ctx, m.config.GoBin, "build", "-o", binPath, action.SourcePath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return &types.Outcome{
			Name:        action.Name,
			Result:      types.ResultCompileFailed,
			OutputLines: splitLines(string(output)),
			Matters:     true,
			Message:     err.Error(),
		}, nil
	}

	m.mu.Lock()
	m.built[action.Name] = binPath
	m.mu.Unlock()

	return nil, nil
}

// CreateActionCommand launches the built binary for action with its
// monitor host/port passed via environment variables.
func (m *Mode) CreateActionCommand(ctx context.Context, action types.Action, monitorPort int) (types.Command, error) {
	m.mu.Lock()
	binPath, ok := m.built[action.Name]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("local: action %q was never built", action.Name)
	}

	cmd := exec.CommandContext(ctx, binPath)
	cmd.Env = append(os.Environ(),
		EnvMonitorHost+"="+DefaultMonitorHost,
		EnvMonitorPort+"="+fmt.Sprint(monitorPort),
	)

	return NewCommand(cmd), nil
}

// Cleanup removes the built binary for action, if any.
func (m *Mode) Cleanup(ctx context.Context, action types.Action) error {
	m.mu.Lock()
	binPath, ok := m.built[action.Name]
	delete(m.built, action.Name)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	if err := os.Remove(binPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("local: cleanup %q: %w", action.Name, err)
	}
	return nil
}

// Shutdown is a no-op; the working directory is left behind for
// post-mortem inspection, matching the teacher's preference for leaving
// diagnostic artifacts on disk rather than deleting them on exit.
func (m *Mode) Shutdown(ctx context.Context) error {
	return nil
}

// GetClasspath returns the configured classpath.
func (m *Mode) GetClasspath() []string {
	return m.config.Classpath
}

var _ types.Mode = (*Mode)(nil)

func sanitizeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
