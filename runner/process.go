// Package runner implements the Runner Worker: consumes one built action,
// launches its command via the Mode, starts a Monitor Listener, wires the
// Kill-Timer to it, classifies the final result, and records through the
// Ledger. Grounded on the execute/monitor/kill/wait ordering in the
// teacher's runtime.RunOrchestrator.Execute and the child-process lifecycle
// in runtime.ExecutorManager.
package runner

import (
	"context"
	"sync/atomic"

	"github.com/justapithecus/actiondriver/types"
)

// Process wraps a types.Command with the idempotent-destroy discipline
// spec.md §5 requires ("every child process acquired by a runner must be
// destroyed on every exit path"). It is a thin adapter, not a reimplemented
// executor, because process launch is itself the external Mode/Command
// contract (spec.md §6) — this type only adds the "destroy is safe to call
// more than once and after the result channel has already fired" guard the
// teacher's ExecutorManager.Kill gets for free from os.Process.Kill but
// Command implementations in general might not.
//
// destroyed is an atomic.Bool rather than a plain bool because Destroy is
// called from two goroutines that race on a timeout: the kill-timer's
// onKill callback and the runner's own cleanup path. The same
// CompareAndSwap single-use-guard idiom is used by driver.Driver.used.
type Process struct {
	cmd       types.Command
	destroyed atomic.Bool
}

// NewProcess wraps cmd.
func NewProcess(cmd types.Command) *Process {
	return &Process{cmd: cmd}
}

// Start begins the child and returns a channel carrying its single
// terminal result.
func (p *Process) Start(ctx context.Context) <-chan types.CommandResult {
	return p.cmd.ExecuteLater(ctx)
}

// Destroy terminates the child. Safe to call concurrently and more than
// once; only the call that wins the CompareAndSwap reaches the
// underlying Command.
func (p *Process) Destroy() error {
	if !p.destroyed.CompareAndSwap(false, true) {
		return nil
	}
	return p.cmd.Destroy()
}
