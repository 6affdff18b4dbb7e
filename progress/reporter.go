// Package progress implements the optional live progress TUI named in
// SPEC_FULL.md: a Bubble Tea model rendering builder/runner pool
// occupancy, ready-queue depth, an armed-timer count, and totals while
// BuildAndRun executes. The Driver feeds builder/runner occupancy, queue
// depth and the final totals; it never calls IncArmedTimers or
// DecArmedTimers, so the armed-timer count stays at zero. Purely
// observational — disabled unless a Driver is given a Reporter and a
// caller starts the TUI program against it.
// Grounded on the teacher's cli/tui package: the same bubbles/bubbletea/
// lipgloss stat-box rendering (cli/tui/stats.go's StatsModel) and style
// palette (cli/tui/styles.go), adapted from run/job/task/proxy/executor
// counters to this pipeline's builder/runner/queue counters.
package progress

import "sync/atomic"

// Snapshot is an immutable point-in-time read of a Reporter's counters.
type Snapshot struct {
	BuildersActive int64
	RunnersActive  int64
	QueueDepth     int64
	ArmedTimers    int64
	Successes      int64
	Failures       int64
	Skipped        int64
}

// Reporter accumulates the counters a progress TUI renders. All methods
// are nil-receiver safe, matching metrics.Collector's discipline, so a
// Driver never needs an "if Progress != nil" guard at every call site —
// only once, to decide whether to start the TUI program at all.
type Reporter struct {
	buildersActive atomic.Int64
	runnersActive  atomic.Int64
	queueDepth     atomic.Int64
	armedTimers    atomic.Int64
	successes      atomic.Int64
	failures       atomic.Int64
	skipped        atomic.Int64
}

// NewReporter returns a zeroed Reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

func (r *Reporter) IncBuildersActive() {
	if r == nil {
		return
	}
	r.buildersActive.Add(1)
}

func (r *Reporter) DecBuildersActive() {
	if r == nil {
		return
	}
	r.buildersActive.Add(-1)
}

func (r *Reporter) IncRunnersActive() {
	if r == nil {
		return
	}
	r.runnersActive.Add(1)
}

func (r *Reporter) DecRunnersActive() {
	if r == nil {
		return
	}
	r.runnersActive.Add(-1)
}

func (r *Reporter) SetQueueDepth(n int) {
	if r == nil {
		return
	}
	r.queueDepth.Store(int64(n))
}

func (r *Reporter) IncArmedTimers() {
	if r == nil {
		return
	}
	r.armedTimers.Add(1)
}

func (r *Reporter) DecArmedTimers() {
	if r == nil {
		return
	}
	r.armedTimers.Add(-1)
}

// SetTotals records the latest ledger totals for display.
func (r *Reporter) SetTotals(successes, failures, skipped int) {
	if r == nil {
		return
	}
	r.successes.Store(int64(successes))
	r.failures.Store(int64(failures))
	r.skipped.Store(int64(skipped))
}

// Snapshot reads all counters. Safe to call concurrently with the
// Inc/Dec/Set methods; individual fields may be read at slightly
// different instants, which is acceptable for a display-only view.
func (r *Reporter) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		BuildersActive: r.buildersActive.Load(),
		RunnersActive:  r.runnersActive.Load(),
		QueueDepth:     r.queueDepth.Load(),
		ArmedTimers:    r.armedTimers.Load(),
		Successes:      r.successes.Load(),
		Failures:       r.failures.Load(),
		Skipped:        r.skipped.Load(),
	}
}
