// Package discover implements the default types.ActionFinder: it turns the
// file paths and class names handed to the CLI into Actions directly,
// without a build-system or bytecode-scanning discovery phase. spec.md
// treats the Action Finder as wholly external to the driver core, and the
// teacher has no analogous discovery step (quarry's CLI takes one script
// path directly), so this is grounded on spec.md §6's own description of
// the contract rather than on a specific teacher file: a file becomes an
// Action with that file as its SourcePath, and a class name becomes an
// Action with an empty SourcePath, per "classes without source files
// become Actions whose source/resource paths are empty."
package discover

import (
	"path/filepath"
	"strings"

	"github.com/justapithecus/actiondriver/types"
)

// Finder is the default types.ActionFinder.
type Finder struct{}

// New constructs a Finder.
func New() *Finder {
	return &Finder{}
}

// Find builds one Action per file and one Action per class name. It never
// produces early Outcomes itself — files/classes it cannot classify are
// still handed to the builder pool, which is where a COMPILE_FAILED
// Outcome would originate.
func (f *Finder) Find(files, classNames []string) ([]types.Action, map[string]types.Outcome, error) {
	actions := make([]types.Action, 0, len(files)+len(classNames))

	for _, path := range files {
		name := actionNameForFile(path)
		actions = append(actions, types.Action{
			Name:        name,
			ActionClass: name,
			SourcePath:  path,
			Runner:      runnerSpecFor(name),
		})
	}

	for _, class := range classNames {
		name := actionNameForClass(class)
		actions = append(actions, types.Action{
			Name:               name,
			QualifiedClassName: class,
			ActionClass:        name,
			Runner:             runnerSpecFor(class),
		})
	}

	return actions, nil, nil
}

// actionNameForFile derives a stable Action name from a source file path:
// its base name without extension.
func actionNameForFile(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// actionNameForClass derives a stable Action name from a fully-qualified
// class name: its last path segment.
func actionNameForClass(class string) string {
	if idx := strings.LastIndex(class, "."); idx >= 0 {
		return class[idx+1:]
	}
	return class
}

// runnerSpecFor classifies an action as a suite when its name looks like a
// test suite (ends in "Test", "Tests" or "_test", matching the common
// Java/Go naming conventions), and as a single main entry point otherwise.
func runnerSpecFor(name string) types.RunnerSpec {
	if strings.HasSuffix(name, "Test") || strings.HasSuffix(name, "Tests") || strings.HasSuffix(name, "_test") {
		return types.RunnerSpec{Kind: types.RunnerKindSuite, EntryPoint: name}
	}
	return types.RunnerSpec{Kind: types.RunnerKindMain, EntryPoint: name}
}
