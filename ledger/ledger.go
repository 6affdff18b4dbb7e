// Package ledger implements the Outcome Ledger: a thread-safe,
// insertion-ordered record of every Outcome reported for a buildAndRun run,
// plus the aggregate counters and failure/skip name lists derived from it.
package ledger

import (
	"sort"
	"strings"
	"sync"

	"github.com/justapithecus/actiondriver/types"
)

// Ledger records outcomes by name and maintains the aggregate counters.
// Safe for concurrent use; the recording methods are the only mutators and
// each holds the lock only across the critical section that touches the
// map and counters together.
type Ledger struct {
	mu sync.Mutex

	outcomes     map[string]types.Outcome
	order        []string
	successes    int
	failures     int
	skipped      int
	failureNames []string
	skippedNames []string
}

// New returns an empty Ledger.
func New() *Ledger {
	return &Ledger{outcomes: make(map[string]types.Outcome)}
}

// Record inserts outcome under its own name, classifies it against
// classify (typically eval.Classify applied to the matching Expectation),
// and updates the aggregate counters. Calling Record twice for the same
// name is a caller error; the second call overwrites the ledger entry but
// the first classification already counted and is not retracted.
func (l *Ledger) Record(outcome types.Outcome, value types.ResultValue) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.outcomes[outcome.Name]; !exists {
		l.order = append(l.order, outcome.Name)
	}
	l.outcomes[outcome.Name] = outcome

	switch value {
	case types.ResultValueOK:
		l.successes++
	case types.ResultValueFail:
		l.failures++
		l.failureNames = append(l.failureNames, outcome.Name)
	case types.ResultValueIgnore:
		l.skipped++
		l.skippedNames = append(l.skippedNames, outcome.Name)
	}
}

// Get returns the outcome recorded under name, if any.
func (l *Ledger) Get(name string) (types.Outcome, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.outcomes[name]
	return o, ok
}

// HasPrefix reports whether any outcome name equals prefix or starts with
// prefix followed by "#" (the hierarchical suite-method separator), so an
// action's outcomes are found whether they were recorded under
// "action.name" or "action.name#method".
func (l *Ledger) HasPrefix(prefix string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, name := range l.order {
		if name == prefix || strings.HasPrefix(name, prefix+"#") {
			return true
		}
	}
	return false
}

// Outcomes returns a snapshot of all recorded outcomes in insertion order.
func (l *Ledger) Outcomes() []types.Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.Outcome, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, l.outcomes[name])
	}
	return out
}

// Totals is an immutable snapshot of the Ledger's aggregate counters and
// sorted name lists, safe to read without the Ledger's lock.
type Totals struct {
	Successes    int
	Failures     int
	Skipped      int
	FailureNames []string
	SkippedNames []string
}

// Snapshot returns the current totals, with failure/skip names sorted
// ascending as spec.md §4.1 requires for the final summary.
func (l *Ledger) Snapshot() Totals {
	l.mu.Lock()
	defer l.mu.Unlock()

	failureNames := append([]string(nil), l.failureNames...)
	skippedNames := append([]string(nil), l.skippedNames...)
	sort.Strings(failureNames)
	sort.Strings(skippedNames)

	return Totals{
		Successes:    l.successes,
		Failures:     l.failures,
		Skipped:      l.skipped,
		FailureNames: failureNames,
		SkippedNames: skippedNames,
	}
}
