// Package builder implements the Builder Worker Pool: a fixed-width pool
// of workers that build and install actions concurrently and feed the
// Ready Queue the runner pool drains from. Grounded on the
// semaphore-bounded concurrent dispatch of the teacher's
// runtime.fanout.Operator.Run, simplified from that package's recursive
// re-enqueue loop to a single fixed work list (this pool never discovers
// new work mid-run, unlike the teacher's fan-out children).
package builder

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/justapithecus/actiondriver/eval"
	"github.com/justapithecus/actiondriver/ledger"
	"github.com/justapithecus/actiondriver/log"
	"github.com/justapithecus/actiondriver/queue"
	"github.com/justapithecus/actiondriver/types"
)

// Pool builds every action in its work list concurrently, one goroutine
// per logical CPU (spec.md §4.2: "Width: one per logical CPU"), and
// enqueues each onto the Ready Queue once its build attempt settles,
// except after a builder exception (see buildOne).
type Pool struct {
	Mode         types.Mode
	Expectations types.ExpectationStore
	Ledger       *ledger.Ledger
	Queue        *queue.Queue
	Logger       *log.Logger
	// Width overrides runtime.NumCPU() when > 0; used by tests to force a
	// deterministic pool size.
	Width int
}

func (p *Pool) width() int {
	if p.Width > 0 {
		return p.Width
	}
	return runtime.NumCPU()
}

// expectationFor mirrors runner.Worker.expectationFor: an action with no
// explicit expectation is assumed to be expected to succeed.
func (p *Pool) expectationFor(name string) types.Expectation {
	if e, ok := p.Expectations.Get(name); ok {
		return e
	}
	return types.Expectation{Result: types.ResultSuccess}
}

// Run builds every action in actions across a fixed worker pool and
// enqueues each one onto the Ready Queue, in whatever order its build
// settles. It returns once every action has been handled (or ctx was
// cancelled). Actions that failed to build, or whose runner kind is not
// supported, are still enqueued with their Outcome already recorded; an
// action whose build hit a builder exception (see buildOne) is not
// enqueued, so the runner pool then receives fewer than len(actions)
// items and its starvation watchdog reports the gap.
func (p *Pool) Run(ctx context.Context, actions []types.Action) error {
	work := make(chan types.Action, len(actions))
	for _, a := range actions {
		work <- a
	}
	close(work)

	var wg sync.WaitGroup
	errs := make(chan error, p.width())

	for i := 0; i < p.width(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for action := range work {
				select {
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				default:
				}
				if err := p.buildOne(ctx, action); err != nil {
					errs <- err
					return
				}
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// buildOne runs one action's build-and-install step, records its Outcome
// if buildAndInstall produced one, and enqueues the action afterward onto
// the Ready Queue — even on an early terminal Outcome (spec.md §9 Open
// Question 1, resolved explicitly rather than left implicit: the runner
// pool still needs to observe exactly totalToRun items flowing through
// the queue, and a build-stage terminal outcome is itself the item the
// runner pool's pre-existing-outcome short-circuit expects to find
// already recorded).
//
// An error return from buildAndInstallSafe — whether BuildAndInstall
// itself returned an error or panicked — is a builder exception, not a
// build failure: it is logged as "unexpected failure!" and the action is
// deliberately left un-enqueued, so the runner pool's starvation
// watchdog fires instead of a synthetic outcome masking the gap.
func (p *Pool) buildOne(ctx context.Context, action types.Action) error {
	if !action.Runner.Supports() {
		p.record(types.Outcome{
			Name:    action.Name,
			Result:  types.ResultUnsupported,
			Matters: false,
			Message: "action's runner kind is not supported",
		})
		return p.Queue.Put(ctx, action)
	}

	outcome, err := p.buildAndInstallSafe(ctx, action)
	if err != nil {
		p.Logger.Error("unexpected failure!", map[string]any{"action": action.Name, "error": err.Error()})
		return nil
	}
	if outcome != nil {
		p.record(*outcome)
	}
	return p.Queue.Put(ctx, action)
}

// buildAndInstallSafe wraps p.Mode.BuildAndInstall with panic recovery:
// a panicking Mode is a builder exception (spec.md §7), not a crash of
// the whole pool.
func (p *Pool) buildAndInstallSafe(ctx context.Context, action types.Action) (outcome *types.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.Mode.BuildAndInstall(ctx, action)
}

func (p *Pool) record(outcome types.Outcome) {
	expectation := p.expectationFor(outcome.Name)
	value := eval.Classify(outcome, expectation)
	p.Ledger.Record(outcome, value)
}
