package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/testbridge/cli/render"
)

// listWarningThreshold is the number of rows above which we suggest --limit.
const listWarningThreshold = 100

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// warnf writes a warning to the app's error writer.
func warnf(c *cli.Context, format string, args ...any) {
	fmt.Fprintf(c.App.ErrWriter, format, args...)
}

// TestsCommand returns the tests command: one row per finished test record.
func TestsCommand() *cli.Command {
	return &cli.Command{
		Name:      "tests",
		Usage:     "List test records in a captured protocol stream",
		ArgsUsage: "<capture file | ->",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{
				Name:  "category",
				Usage: "Filter by result category: passed, failed, skipped, error, ...",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of rows (0 = no limit)",
			},
		),
		Action: testsAction,
	}
}

func testsAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for tests command", 1)
	}

	stream, err := openCapture(c)
	if err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	rows := stream.Tests(c.String("category"))
	limit := c.Int("limit")
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	} else if limit == 0 && len(rows) > listWarningThreshold && isStderrTTY() {
		warnf(c, "warning: %d rows; use --limit to narrow the listing\n", len(rows))
	}
	return r.Render(rows)
}
