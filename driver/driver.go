// Package driver implements the Driver Orchestrator: the single public
// entry point that turns a set of files/class names into a fully built,
// run, and reported set of Outcomes. Grounded on the single-use,
// phase-sequenced shape of the teacher's runtime.RunOrchestrator.Execute
// (start → ingest → wait → flush → classify → report), adapted here from
// one child process to a whole build/run pipeline across two worker
// pools.
package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/justapithecus/actiondriver/builder"
	"github.com/justapithecus/actiondriver/eval"
	"github.com/justapithecus/actiondriver/ledger"
	"github.com/justapithecus/actiondriver/log"
	"github.com/justapithecus/actiondriver/metrics"
	"github.com/justapithecus/actiondriver/notify"
	"github.com/justapithecus/actiondriver/progress"
	"github.com/justapithecus/actiondriver/queue"
	"github.com/justapithecus/actiondriver/runner"
	"github.com/justapithecus/actiondriver/types"
)

// ErrAlreadyUsed is returned by BuildAndRun when called more than once on
// the same Driver. Per spec.md §4.1, the Ready Queue lives for the
// duration of exactly one BuildAndRun invocation; a Driver is single-use.
var ErrAlreadyUsed = errors.New("driver: already used")

// Driver owns the Ready Queue, both worker pools, and the shared
// starvation flag for one build-and-run invocation.
type Driver struct {
	RunID          string
	Config         types.Config
	Mode           types.Mode
	Finder         types.ActionFinder
	Expectations   types.ExpectationStore
	ReportPrinter  types.XmlReportPrinter // optional
	ClasspathIndex types.ClassFileIndex   // optional
	Notifier       notify.Notifier        // optional
	Metrics        *metrics.Collector     // optional, nil-receiver safe
	Progress       *progress.Reporter     // optional, nil-receiver safe
	Logger         *log.Logger

	used atomic.Bool
}

// Result is what BuildAndRun returns: the final ledger totals plus the
// number of report files the printer emitted, if any.
type Result struct {
	Totals          ledger.Totals
	ReportFiles     int
	ClasspathHints  []string
	StarvationError bool
}

// BuildAndRun runs the full pipeline in spec.md §4.1: translate inputs to
// Actions, dispatch build/run across the two pools, await completion,
// emit reports, shut the mode down, and return the final totals.
func (d *Driver) BuildAndRun(ctx context.Context, files, classNames []string) (*Result, error) {
	if !d.used.CompareAndSwap(false, true) {
		return nil, ErrAlreadyUsed
	}
	startTime := time.Now()
	d.Metrics.IncRunStarted()

	if d.Config.LocalTemp != "" {
		if err := os.MkdirAll(d.Config.LocalTemp, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create working directory: %w", err)
		}
	}

	actions, earlyOutcomes, err := d.Finder.Find(files, classNames)
	if err != nil {
		return nil, fmt.Errorf("action discovery failed: %w", err)
	}

	l := ledger.New()

	if len(actions) == 0 {
		d.Logger.Info("nothing to do", map[string]any{"files": len(files), "class_names": len(classNames)})
		totals := l.Snapshot()
		return &Result{Totals: totals}, nil
	}

	if err := d.Mode.Prepare(ctx); err != nil {
		return nil, fmt.Errorf("mode.prepare failed: %w", err)
	}

	toBuild := make([]types.Action, 0, len(actions))
	for _, action := range actions {
		if outcome, ok := earlyOutcomes[action.Name]; ok {
			d.record(l, outcome)
			continue
		}
		expectation := d.expectationFor(action.Name)
		if expectation.Result == types.ResultUnsupported {
			d.record(l, types.Outcome{
				Name:    action.Name,
				Result:  types.ResultUnsupported,
				Matters: false,
				Message: "Unsupported according to expectations file",
			})
			continue
		}
		toBuild = append(toBuild, action)
	}
	totalToRun := len(toBuild)

	q := queue.New(d.Config.ReadyQueueCapacity)
	starved := &atomic.Bool{}

	stopProgress := d.pollQueueDepth(q)

	var builderErr error
	builderDone := make(chan struct{})
	go func() {
		defer close(builderDone)
		pool := &builder.Pool{
			Mode:         d.Mode,
			Expectations: d.Expectations,
			Ledger:       l,
			Queue:        q,
			Logger:       d.Logger,
		}
		d.Progress.IncBuildersActive()
		defer d.Progress.DecBuildersActive()
		// Per spec.md §4.1 failure policy: a builder task that errors is
		// logged but never aborts the pipeline; its action simply never
		// reaches the queue, which the starvation watchdog below catches.
		if runErr := pool.Run(ctx, toBuild); runErr != nil {
			d.Logger.Warn("builder pool exited early", map[string]any{"error": runErr.Error()})
			builderErr = runErr
		}
	}()

	d.runRunnerPool(ctx, totalToRun, q, l, starved)
	<-builderDone
	close(stopProgress)
	_ = builderErr

	starvationHit := starved.Load()
	if starvationHit {
		d.Metrics.IncStarvationEvent()
		d.record(l, types.Outcome{
			Name:    "driver",
			Result:  types.ResultError,
			Matters: true,
			Message: fmt.Sprintf("Expected %d actions but found fewer", totalToRun),
		})
	}

	reportFiles := 0
	if d.ReportPrinter != nil {
		reportFiles, err = d.ReportPrinter.GenerateReports(l.Outcomes())
		if err != nil {
			d.Logger.Warn("report generation failed", map[string]any{"error": err.Error()})
		}
	}

	if err := d.Mode.Shutdown(ctx); err != nil {
		d.Logger.Warn("mode.shutdown failed", map[string]any{"error": err.Error()})
	}

	totals := l.Snapshot()
	d.Progress.SetTotals(totals.Successes, totals.Failures, totals.Skipped)
	hints := d.classpathHints(l, totals)
	d.printSummary(totals, reportFiles, hints)

	if starvationHit || totals.Failures > 0 {
		d.Metrics.IncRunFailed()
	} else {
		d.Metrics.IncRunCompleted()
	}

	if d.Notifier != nil {
		summary := notify.Summary{
			RunID:        d.RunID,
			Successes:    totals.Successes,
			Failures:     totals.Failures,
			Skipped:      totals.Skipped,
			FailureNames: totals.FailureNames,
			SkippedNames: totals.SkippedNames,
			DurationMs:   time.Since(startTime).Milliseconds(),
		}
		// A notifier failure is logged but never affects the driver's
		// own exit code: notify.Notifier is a best-effort side channel,
		// not a retry/replay queue.
		if err := d.Notifier.Notify(ctx, summary); err != nil {
			d.Logger.Warn("notifier failed", map[string]any{"error": err.Error()})
		}
		if err := d.Notifier.Close(); err != nil {
			d.Logger.Warn("notifier close failed", map[string]any{"error": err.Error()})
		}
	}

	return &Result{
		Totals:          totals,
		ReportFiles:     reportFiles,
		ClasspathHints:  hints,
		StarvationError: starvationHit,
	}, nil
}

// pollQueueDepth starts a background goroutine that periodically pushes
// the Ready Queue's current depth into d.Progress, for the optional
// progress TUI. Returns a channel the caller closes to stop polling; a
// nil d.Progress makes every push a no-op, so this is cheap to always
// start.
func (d *Driver) pollQueueDepth(q *queue.Queue) chan struct{} {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.Progress.SetQueueDepth(q.Len())
			case <-stop:
				return
			}
		}
	}()
	return stop
}

// runRunnerPool submits exactly totalToRun Runner Worker tasks across a
// fixed-size pool of d.Config.NumRunnerThreads goroutines (spec.md §4.1
// step 7), awaiting completion with the generous AwaitTimeout upper
// bound. On interruption, it records a driver-level ERROR and returns.
func (d *Driver) runRunnerPool(ctx context.Context, totalToRun int, q *queue.Queue, l *ledger.Ledger, starved *atomic.Bool) {
	var wg sync.WaitGroup
	var dispatched atomic.Int64

	numThreads := d.Config.NumRunnerThreads
	if numThreads <= 0 {
		numThreads = 1
	}

	for i := 0; i < numThreads; i++ {
		w := &runner.Worker{
			ThreadIndex:  i,
			Config:       d.Config,
			Mode:         d.Mode,
			Expectations: d.Expectations,
			Ledger:       l,
			Queue:        q,
			Starved:      starved,
			Logger:       d.Logger,
		}

		wg.Add(1)
		go func(worker *runner.Worker) {
			defer wg.Done()
			for dispatched.Add(1) <= int64(totalToRun) {
				d.Progress.IncRunnersActive()
				worker.ProcessOne(ctx)
				d.Progress.DecRunnersActive()
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(d.Config.AwaitTimeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		d.record(l, types.Outcome{
			Name:    "driver",
			Result:  types.ResultError,
			Matters: true,
			Message: "interrupted while awaiting runner pool completion (timed out)",
		})
	case <-ctx.Done():
		d.record(l, types.Outcome{
			Name:    "driver",
			Result:  types.ResultError,
			Matters: true,
			Message: fmt.Sprintf("interrupted while awaiting runner pool completion: %v", ctx.Err()),
		})
	}
}

func (d *Driver) expectationFor(name string) types.Expectation {
	if e, ok := d.Expectations.Get(name); ok {
		return e
	}
	return types.Expectation{Result: types.ResultSuccess}
}

func (d *Driver) record(l *ledger.Ledger, outcome types.Outcome) {
	expectation := d.expectationFor(outcome.Name)
	value := eval.Classify(outcome, expectation)
	l.Record(outcome, value)
}

// classpathHints gathers captured output lines from every failing
// outcome and asks the optional ClasspathIndex for suggestions, filtering
// out entries the mode already has on its classpath.
func (d *Driver) classpathHints(l *ledger.Ledger, totals ledger.Totals) []string {
	if d.ClasspathIndex == nil || len(totals.FailureNames) == 0 {
		return nil
	}

	var lines []string
	for _, name := range totals.FailureNames {
		if o, ok := l.Get(name); ok {
			lines = append(lines, o.OutputLines...)
		}
	}

	suggestions := d.ClasspathIndex.SuggestClasspaths(lines)
	if len(suggestions) == 0 {
		return nil
	}

	present := make(map[string]struct{})
	for _, p := range d.Mode.GetClasspath() {
		present[p] = struct{}{}
	}

	hints := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		if _, ok := present[s]; !ok {
			hints = append(hints, s)
		}
	}
	sort.Strings(hints)
	return hints
}

// printSummary prints the human-readable end-of-run summary: sorted
// failure names, sorted skipped names, optional classpath suggestions,
// and a totals line. Grounded on the teacher's runtime.PrintFanOutSummary,
// which prints its own sorted child-run table the same way.
func (d *Driver) printSummary(totals ledger.Totals, reportFiles int, classpathHints []string) {
	fmt.Printf("\n=== Action Driver Summary ===\n")
	fmt.Printf("Totals:    %d succeeded, %d failed, %d skipped\n",
		totals.Successes, totals.Failures, totals.Skipped)

	if len(totals.FailureNames) > 0 {
		fmt.Printf("\n--- Failures ---\n")
		for _, name := range totals.FailureNames {
			fmt.Printf("  %s\n", name)
		}
	}
	if len(totals.SkippedNames) > 0 {
		fmt.Printf("\n--- Skipped ---\n")
		for _, name := range totals.SkippedNames {
			fmt.Printf("  %s\n", name)
		}
	}
	if len(classpathHints) > 0 {
		fmt.Printf("\n--- Classpath Suggestions ---\n")
		for _, hint := range classpathHints {
			fmt.Printf("  %s\n", hint)
		}
	}
	if reportFiles > 0 {
		fmt.Printf("\nReports:   %d file(s) written\n", reportFiles)
	}
}
