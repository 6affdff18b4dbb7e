// Package notify defines the completion-notification boundary: the
// Driver Orchestrator calls a Notifier once, after reports are emitted,
// with the final run totals. Grounded on the teacher's adapter package,
// which structures the same "publish to downstream system" boundary for
// run-completion events. It is not a retry/replay queue: the orchestrator
// calls Notify once per run (a notifier may retry inside that call), and
// a failure is logged and never affects the driver's exit code.
package notify

import "context"

// Summary is the payload a Notifier publishes once buildAndRun finishes.
type Summary struct {
	RunID        string `json:"run_id"`
	Successes    int    `json:"successes"`
	Failures     int    `json:"failures"`
	Skipped      int    `json:"skipped"`
	FailureNames []string `json:"failure_names,omitempty"`
	SkippedNames []string `json:"skipped_names,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
}

// Notifier publishes a run-completion Summary to a downstream system.
type Notifier interface {
	// Notify sends summary. Must respect context cancellation/deadlines.
	Notify(ctx context.Context, summary Summary) error
	// Close releases notifier resources.
	Close() error
}
