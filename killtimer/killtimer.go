// Package killtimer implements the renewable per-action Kill-Timer: a
// single shared timer service that forcibly terminates a child process
// when its action's deadline passes, but reschedules instead of firing
// early if a progress event has pushed the deadline forward since the
// timer task was scheduled (spec.md §4.5, §9).
package killtimer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Result is the single-writer-wins slot a Kill-Timer competes for with the
// runner and the monitor. Only the first successful CAS sticks.
type Result int32

const (
	ResultNone Result = iota
	ResultSuccess
	ResultError
	ResultExecTimeout
)

// CASResult is a single-writer-wins atomic slot for one in-flight action's
// terminal result (spec.md §9: "shared atomic boolean + compare-and-set
// result slot").
type CASResult struct {
	v atomic.Int32
}

// TrySet attempts to transition from ResultNone to want. Returns true if
// this call won the race.
func (r *CASResult) TrySet(want Result) bool {
	return r.v.CompareAndSwap(int32(ResultNone), int32(want))
}

// Get returns the currently recorded result, or ResultNone if unset.
func (r *CASResult) Get() Result {
	return Result(r.v.Load())
}

// Timer arms a single renewable deadline for one in-flight action. Deadline
// renewal never cancels or re-arms the underlying time.Timer: the fired
// goroutine re-reads the current deadline on wake and reschedules itself if
// it finds the deadline has moved forward, per spec.md §9.
type Timer struct {
	mu       sync.Mutex
	deadline time.Time
	timer    *time.Timer
	stopped  bool

	result *CASResult
	onKill func()
}

// Arm starts a Timer with an initial deadline. onKill is invoked exactly
// once, on the goroutine that wins the CAS to ResultExecTimeout, and
// should destroy the child process. result is the action's shared
// single-writer-wins slot; Arm never fires onKill if result is already
// set by the time the deadline is reached.
func Arm(deadline time.Time, result *CASResult, onKill func()) *Timer {
	t := &Timer{deadline: deadline, result: result, onKill: onKill}
	t.timer = time.AfterFunc(time.Until(deadline), t.fire)
	return t
}

// Renew pushes the deadline forward. Per spec.md §4.4, progress events
// renew to now + smallTimeoutSeconds + 2s; callers compute that value and
// pass it here. Renew is a no-op once the timer has already stopped
// (fired-and-resolved, or explicitly Stopped).
func (t *Timer) Renew(deadline time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if deadline.After(t.deadline) {
		t.deadline = deadline
	}
}

// Stop cancels the timer; safe to call multiple times and after the timer
// has already fired.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.timer.Stop()
}

func (t *Timer) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	now := time.Now()
	if now.Before(t.deadline) {
		// A progress event pushed the deadline forward since this task was
		// scheduled. Reschedule at the new deadline instead of killing.
		remaining := time.Until(t.deadline)
		t.mu.Unlock()
		t.timer.Reset(remaining)
		return
	}
	t.stopped = true
	t.mu.Unlock()

	if t.result.TrySet(ResultExecTimeout) {
		t.onKill()
	}
}
