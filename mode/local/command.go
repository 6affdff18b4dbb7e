package local

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"

	"github.com/justapithecus/actiondriver/types"
)

// Command adapts an *exec.Cmd to types.Command: ExecuteLater starts the
// process at most once and returns a channel that receives exactly one
// result; Destroy is idempotent and safe before or after the process has
// exited. Grounded on the start/wait/kill lifecycle of the teacher's
// runtime.ExecutorManager, collapsed from three separate methods (Start,
// Wait, Kill with externally-owned pipes) into the single
// ExecuteLater/Destroy shape types.Command requires.
//
// Exported so mode/device can reuse it for the local half of its own
// build/run pipeline instead of reimplementing process-lifecycle wiring.
type Command struct {
	cmd *exec.Cmd

	mu        sync.Mutex
	started   bool
	destroyed bool
	result    chan types.CommandResult
}

// NewCommand wraps cmd as a types.Command.
func NewCommand(cmd *exec.Cmd) *Command {
	return &Command{
		cmd:    cmd,
		result: make(chan types.CommandResult, 1),
	}
}

// ExecuteLater starts the process on first call; subsequent calls return
// the same channel without restarting anything.
func (c *Command) ExecuteLater(ctx context.Context) <-chan types.CommandResult {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return c.result
	}
	c.started = true
	c.mu.Unlock()

	stdout, err := c.cmd.StdoutPipe()
	if err != nil {
		c.result <- types.CommandResult{Err: err}
		return c.result
	}
	stderr, err := c.cmd.StderrPipe()
	if err != nil {
		c.result <- types.CommandResult{Err: err}
		return c.result
	}

	if err := c.cmd.Start(); err != nil {
		c.result <- types.CommandResult{Err: err}
		return c.result
	}

	var lines []string
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(2)
	collect := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			mu.Lock()
			lines = append(lines, scanner.Text())
			mu.Unlock()
		}
	}
	go collect(stdout)
	go collect(stderr)

	go func() {
		wg.Wait()
		err := c.cmd.Wait()

		exitCode := 0
		if err != nil {
			exitCode = -1
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				exitCode = exitErr.ExitCode()
			}
		}

		c.result <- types.CommandResult{
			Output: types.OutputLines{Lines: lines, ExitCode: exitCode},
		}
	}()

	return c.result
}

// Destroy kills the process. Idempotent.
func (c *Command) Destroy() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.destroyed = true
	c.mu.Unlock()

	if c.cmd.Process == nil {
		return nil
	}
	return c.cmd.Process.Kill()
}

var _ types.Command = (*Command)(nil)
