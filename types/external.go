package types

import "context"

// Mode is the pluggable backend that knows how to build, install, run, and
// clean up actions for a target execution environment (local host, device,
// …). The core only ever calls through this interface; concrete
// implementations live outside the core packages (see mode/local,
// mode/device).
type Mode interface {
	// Prepare is called once before any action is built.
	Prepare(ctx context.Context) error
	// BuildAndInstall builds and installs action. A non-nil Outcome means
	// the action already has a terminal result (typically COMPILE_FAILED
	// or UNSUPPORTED) and should be recorded through the early-result path
	// — the action is still enqueued afterward so the runner stage
	// observes exactly totalToRun items.
	BuildAndInstall(ctx context.Context, action Action) (*Outcome, error)
	// CreateActionCommand builds the child command for action, wired to
	// report to the given monitor port.
	CreateActionCommand(ctx context.Context, action Action, monitorPort int) (Command, error)
	// Cleanup is called once per action after its runner task finishes.
	Cleanup(ctx context.Context, action Action) error
	// Shutdown is called once after all runner tasks have finished.
	Shutdown(ctx context.Context) error
	// GetClasspath returns the paths the mode currently considers part of
	// the build classpath, used to filter classpath suggestions that are
	// already present.
	GetClasspath() []string
}

// OutputLines is the captured console output of a finished Command.
type OutputLines struct {
	Lines    []string
	ExitCode int
}

// Command is a single child-process invocation for one action.
type Command interface {
	// ExecuteLater starts the command (if not already started) and
	// returns a channel that receives exactly one OutputLines-or-error
	// result once the process exits.
	ExecuteLater(ctx context.Context) <-chan CommandResult
	// Destroy terminates the child process. Idempotent: safe to call
	// multiple times and after the process has already exited.
	Destroy() error
}

// CommandResult is delivered on the channel ExecuteLater returns.
type CommandResult struct {
	Output OutputLines
	Err    error
}

// ExpectationStore is a queryable map from action/outcome name to expected
// result + tags.
type ExpectationStore interface {
	Get(name string) (Expectation, bool)
}

// XmlReportPrinter emits a report file per outcome (or per action). May be
// absent (nil) — the driver tolerates that and simply records zero files
// generated.
type XmlReportPrinter interface {
	GenerateReports(outcomes []Outcome) (numFiles int, err error)
}

// ClassFileIndex suggests classpath entries likely to resolve an unresolved
// symbol mentioned in captured output lines.
type ClassFileIndex interface {
	SuggestClasspaths(outputLines []string) []string
}

// ActionFinder discovers Actions from files and class names, optionally
// injecting pre-computed early Outcomes (e.g. a discovery-time failure) for
// some of them.
type ActionFinder interface {
	Find(files, classNames []string) ([]Action, map[string]Outcome, error)
}
