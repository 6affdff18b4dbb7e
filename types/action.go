// Package types defines the core domain values shared across the driver:
// actions, outcomes, expectations, and the small result lattice the
// evaluator produces.
package types

// RunnerKind distinguishes the shape of an Action's underlying runner
// without resorting to an inheritance hierarchy: discovery picks a kind,
// and the mode dispatches on it when building the action command.
type RunnerKind string

const (
	// RunnerKindMain is a single main-style entry point (one outcome).
	RunnerKindMain RunnerKind = "main"
	// RunnerKindSuite is a test-suite runner that reports one outcome per
	// method, all hierarchically named "action.name#method".
	RunnerKindSuite RunnerKind = "suite"
	// RunnerKindUnsupported marks an action whose spec rejects its class
	// shape outright (no source, no matching entry point).
	RunnerKindUnsupported RunnerKind = "unsupported"
)

// RunnerSpec is the small capability record that replaces a
// NamingPatternRunnerSpec-style inheritance hierarchy: a runner kind plus
// whatever the mode needs to decide how to build/launch it.
type RunnerSpec struct {
	Kind RunnerKind
	// EntryPoint is the fully-qualified symbol the mode should invoke
	// (class name, package path, or similar) for RunnerKindMain/Suite.
	EntryPoint string
}

// Supports reports whether this spec is eligible to be built and run at
// all. The builder pool records an UNSUPPORTED outcome for an action
// whose spec does not support it, without asking the Mode to build it.
func (r RunnerSpec) Supports() bool {
	return r.Kind == RunnerKindMain || r.Kind == RunnerKindSuite
}

// Action is a single discovered unit of test work. Immutable once
// discovery produces it; uniquely identified by Name.
type Action struct {
	// Name is the unique, stable identifier for this action.
	Name string
	// QualifiedClassName is the fully-qualified class/package name, if any.
	QualifiedClassName string
	// ActionClass further classifies the action for mode-specific dispatch.
	ActionClass string
	// SourcePath is the path to source backing this action, empty if the
	// action was discovered from a compiled class with no source file.
	SourcePath string
	// ResourcePath is the path to resources backing this action, empty
	// when none are associated.
	ResourcePath string
	// Runner is the capability record describing how to build/run this
	// action.
	Runner RunnerSpec
}
