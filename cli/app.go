package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is the CLI's reported version, overridable via ldflags at
// build time the way the teacher's cmd/quarry embeds a commit hash.
var Version = "0.1.0"

// NewApp builds the actiondriver CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:           "actiondriver",
		Usage:          "Build and run test actions across a concurrent worker pool",
		Version:        Version,
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			RunCommand(),
		},
	}
}

// exitErrHandler preserves cli.Exit's exit codes, grounded on the
// teacher's cmd/quarry.exitErrHandler.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitDriverError)
}
