// Package main provides the actiondriver CLI entrypoint.
//
// Usage:
//
//	actiondriver run --file <path> [--file <path> ...] [options]
//
// Exit codes:
//   - 0: all actions succeeded
//   - 1: the run completed but recorded one or more failures
//   - 2: invalid configuration (pre-execution)
//   - 3: a driver-level error (starvation, or a driver setup failure such
//     as mode.prepare); an interrupted runner pool is recorded as a
//     failing outcome and exits 1
package main

import (
	"os"

	"github.com/justapithecus/actiondriver/cli"
)

func main() {
	app := cli.NewApp()
	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}
