// Package queue implements the Ready Queue: a bounded, thread-safe FIFO
// handoff from the Builder Worker Pool to the Runner Pool, backed by a
// buffered channel the way the teacher's fan-out operator bounds its own
// work queue (runtime/fanout.go).
package queue

import (
	"context"
	"time"

	"github.com/justapithecus/actiondriver/types"
)

// Queue is a bounded FIFO of Actions. Capacity is fixed at construction
// (reference value 4 per spec.md §3) so that builders block when runners
// stall, providing backpressure.
type Queue struct {
	ch chan types.Action
}

// New returns a Queue with the given capacity.
func New(capacity int) *Queue {
	return &Queue{ch: make(chan types.Action, capacity)}
}

// Put blocks until there is room for action or ctx is canceled. Blocking
// must be interruptible: a canceled ctx returns ctx.Err() rather than
// blocking forever.
func (q *Queue) Put(ctx context.Context, action types.Action) error {
	select {
	case q.ch <- action:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poll waits up to timeout for an Action to become available. It returns
// (action, true, nil) on success, (zero, false, nil) on timeout or on a
// closed, drained queue, and (zero, false, err) if ctx is canceled first.
func (q *Queue) Poll(ctx context.Context, timeout time.Duration) (types.Action, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case action, ok := <-q.ch:
		if !ok {
			return types.Action{}, false, nil
		}
		return action, true, nil
	case <-timer.C:
		return types.Action{}, false, nil
	case <-ctx.Done():
		return types.Action{}, false, ctx.Err()
	}
}

// Close signals that no further Puts will occur. Runners already blocked
// in Poll continue to drain buffered items; once drained, Poll returns
// (zero, false, nil) immediately rather than waiting out the timeout.
func (q *Queue) Close() {
	close(q.ch)
}

// Len reports the number of buffered Actions waiting to be polled. For
// progress display only — not part of the Ready Queue's core contract.
func (q *Queue) Len() int {
	return len(q.ch)
}
