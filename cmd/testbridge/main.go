// Package main provides the testbridge CLI entrypoint.
//
// Usage:
//
//	testbridge <command> [subcommand] [options]
//
// Session commands (run, gotest) exit with the session status:
//   - 0: all tests passed
//   - 1: tests failed
//   - 2: interrupted
//   - 3: internal error
//   - 4: usage error
//   - 5: no tests collected
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/testbridge/cli/cmd"
	"github.com/pithecene-io/testbridge/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "testbridge",
		Usage:          "Bridge test engine lifecycle events to a framed wire protocol",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.GoTestCommand(),
			cmd.InspectCommand(),
			cmd.StatsCommand(),
			cmd.TestsCommand(),
			cmd.DebugCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// Errors that are not cli.ExitCoder reach here after the handler printed them.
		os.Exit(int(types.ExitInternalError))
	}
}

// exitErrHandler propagates cli.Exit codes so the session status becomes
// the process exit code.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() is "exit status N"; nothing to print.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(int(types.ExitInternalError))
}
