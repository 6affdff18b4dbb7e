package runner

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/justapithecus/actiondriver/eval"
	"github.com/justapithecus/actiondriver/killtimer"
	"github.com/justapithecus/actiondriver/ledger"
	"github.com/justapithecus/actiondriver/log"
	"github.com/justapithecus/actiondriver/monitor"
	"github.com/justapithecus/actiondriver/port"
	"github.com/justapithecus/actiondriver/queue"
	"github.com/justapithecus/actiondriver/types"
)

// Worker processes Ready Queue items one at a time. One Worker instance is
// shared by every task the runner pool submits for a given threadIndex;
// threadIndex is assigned once per pool slot (spec.md §9: "the runner pool
// can hand each worker its index at construction time" in place of a
// thread-local counter).
type Worker struct {
	ThreadIndex     int
	Config          types.Config
	Mode            types.Mode
	Expectations    types.ExpectationStore
	Ledger          *ledger.Ledger
	Queue           *queue.Queue
	Starved         *atomic.Bool
	Logger          *log.Logger
	PrintOutputLine func(outcomeName, line string)
}

// expectationFor returns the Expectation for name, defaulting to an
// expectation of SUCCESS with no tags when the store has none — an action
// with no explicit expectation is assumed to be expected to pass.
func (w *Worker) expectationFor(name string) types.Expectation {
	if e, ok := w.Expectations.Get(name); ok {
		return e
	}
	return types.Expectation{Result: types.ResultSuccess}
}

func (w *Worker) record(outcome types.Outcome) {
	expectation := w.expectationFor(outcome.Name)
	value := eval.Classify(outcome, expectation)
	w.Ledger.Record(outcome, value)
}

// ProcessOne runs the algorithm in spec.md §4.4 for a single Runner Worker
// task. It returns once the action (or starvation) has been fully
// resolved: the action's terminal outcome(s) are in the Ledger, or the
// starvation flag has been set and this task exited quietly without
// touching the queue again.
func (w *Worker) ProcessOne(ctx context.Context) {
	if w.Starved.Load() {
		return
	}

	action, ok, err := w.Queue.Poll(ctx, w.Config.StarvationTimeout)
	if err != nil {
		w.record(types.Outcome{
			Name:    "driver",
			Result:  types.ResultError,
			Matters: true,
			Message: fmt.Sprintf("interrupted while polling ready queue: %v", err),
		})
		return
	}
	if !ok {
		// Nothing arrived within the starvation bound: this is the first
		// runner to notice premature exhaustion. Set the flag once; every
		// other runner task observes it on its own next ProcessOne call
		// and exits quietly without polling again.
		w.Starved.Store(true)
		return
	}

	// A pre-existing Outcome means the builder stage (a build-time Outcome,
	// or its own UNSUPPORTED short-circuit for a runner kind it cannot
	// build) already recorded this action; the runner
	// still had to consume it off the queue to preserve the totalToRun
	// invariant, but there is nothing left to run.
	if _, exists := w.Ledger.Get(action.Name); exists {
		return
	}

	expectation := w.expectationFor(action.Name)
	timeout := w.Config.SmallTimeout
	if expectation.HasTag(types.LargeTag) {
		timeout = w.Config.LargeTimeout
	}

	monitorPort := port.MonitorPort(w.ThreadIndex, w.Config.NumRunnerThreads, w.Config.FirstMonitorPort, w.Config.DefaultMonitorPort)

	cmd, err := w.Mode.CreateActionCommand(ctx, action, monitorPort)
	if err != nil {
		w.record(types.Outcome{
			Name:    action.Name,
			Result:  types.ResultError,
			Matters: true,
			Message: fmt.Sprintf("failed to create action command: %v", err),
		})
		w.cleanup(ctx, action)
		return
	}
	process := NewProcess(cmd)
	resultCh := process.Start(ctx)

	result := &killtimer.CASResult{}
	var timer *killtimer.Timer
	if timeout > 0 {
		deadline := time.Now().Add(timeout + 2*time.Second)
		timer = killtimer.Arm(deadline, result, func() { _ = process.Destroy() })
	}

	handler := monitor.Handler{
		Output: func(outcomeName, line string) {
			if w.PrintOutputLine != nil {
				w.PrintOutputLine(outcomeName, line)
			}
		},
		Outcome: func(outcome types.Outcome) {
			if timer != nil {
				timer.Renew(time.Now().Add(w.Config.SmallTimeout + 2*time.Second))
			}
			w.record(outcome)
		},
	}

	completedNormally := monitor.Listen(ctx, monitorPort, handler, w.Config.MonitorTimeout, w.Logger)
	if timer != nil {
		timer.Stop()
	}

	if completedNormally {
		if result.TrySet(killtimer.ResultSuccess) {
			_ = process.Destroy() // already exited; Destroy is idempotent
		}
		w.cleanup(ctx, action)
		return
	}

	result.TrySet(killtimer.ResultError)
	_ = process.Destroy()

	w.recordFailureOutcome(ctx, action, resultCh, result, timeout)
	w.cleanup(ctx, action)
}

func (w *Worker) cleanup(ctx context.Context, action types.Action) {
	if err := w.Mode.Cleanup(ctx, action); err != nil {
		w.Logger.Warn("mode cleanup failed", map[string]any{"action": action.Name, "error": err.Error()})
	}
}

// recordFailureOutcome runs the classification branch of spec.md §4.4 step
// 8's completedNormally==false path: prefer a CommandResult failure
// already delivered on resultCh, else an EXEC_TIMEOUT already won by the
// Kill-Timer, else a generic ERROR.
func (w *Worker) recordFailureOutcome(ctx context.Context, action types.Action, resultCh <-chan types.CommandResult, result *killtimer.CASResult, timeout time.Duration) {
	select {
	case cr := <-resultCh:
		if cr.Err != nil {
			w.record(types.Outcome{
				Name:    action.Name,
				Result:  types.ResultExecFailed,
				Matters: true,
				Message: cr.Err.Error(),
			})
			return
		}
		if cr.Output.ExitCode != 0 {
			w.record(types.Outcome{
				Name:        action.Name,
				Result:      types.ResultExecFailed,
				OutputLines: cr.Output.Lines,
				Matters:     true,
			})
			return
		}
	case <-ctx.Done():
	default:
		// No result has been delivered yet. The select does not wait for
		// one (see DESIGN.md Open Question 4): a result that arrives after
		// this check is not examined, and classification falls through to
		// the Kill-Timer's verdict below.
	}

	if result.Get() == killtimer.ResultExecTimeout {
		w.record(types.Outcome{
			Name:    action.Name,
			Result:  types.ResultExecTimeout,
			Matters: true,
			Message: fmt.Sprintf("killed because it timed out after %d seconds", int(timeout.Seconds())),
		})
		return
	}

	w.record(types.Outcome{
		Name:    action.Name,
		Result:  types.ResultError,
		Matters: true,
		Message: "monitor connection lost or protocol error",
	})
}
