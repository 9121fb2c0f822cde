package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/testbridge/cli/render"
	"github.com/pithecene-io/testbridge/cli/tui"
)

// StatsCommand returns the stats command.
// Stats aggregates a captured stream: message counts, outcomes, exit status.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Summarize a captured protocol stream",
		ArgsUsage: "<capture file | ->",
		Flags:     TUIReadOnlyFlags(),
		Action:    statsAction,
	}
}

func statsAction(c *cli.Context) error {
	stream, err := openCapture(c)
	if err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStats, stream.Stats())
	}
	return r.Render(stream.Stats())
}
