package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/testbridge/cli/reader"
	"github.com/pithecene-io/testbridge/cli/render"
	"github.com/pithecene-io/testbridge/cli/tui"
)

// InspectCommand returns the inspect command.
// Inspect decodes a captured protocol stream: a message listing by default,
// one message in full with --index, every matching message with --full.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Decode a captured protocol stream",
		ArgsUsage: "<capture file | ->",
		Flags: append(TUIReadOnlyFlags(),
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Only messages with this name (e.g. runtest_logfinish)",
			},
			&cli.IntFlag{
				Name:    "index",
				Aliases: []string{"i"},
				Usage:   "Show message N (1-based) in full",
			},
			&cli.BoolFlag{
				Name:  "full",
				Usage: "Show every listed message in full",
			},
		),
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	stream, err := openCapture(c)
	if err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	name := c.String("name")
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspect, stream.Details(name))
	}

	if idx := c.Int("index"); idx != 0 {
		detail, err := stream.Detail(idx)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		return r.Render(detail.Fields)
	}
	if c.Bool("full") {
		return r.Render(stream.Details(name))
	}
	return r.Render(stream.Summaries(name))
}

// openCapture loads the capture named by the first argument.
func openCapture(c *cli.Context) (*reader.Stream, error) {
	if c.NArg() < 1 {
		return nil, cli.Exit("capture file required (use - for stdin)", 1)
	}
	stream, err := reader.Open(c.Args().First())
	if err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}
	if stream.Truncated() {
		warnf(c, "warning: capture ends inside a message; showing %d complete messages\n", stream.Len())
	}
	return stream, nil
}
