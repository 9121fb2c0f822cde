package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/testbridge/cli/render"
	"github.com/pithecene-io/testbridge/iox"
	"github.com/pithecene-io/testbridge/ipc"
)

// DebugCommand returns the debug command with subcommands.
// Debug commands are diagnostic tools for engine authors.
func DebugCommand() *cli.Command {
	return &cli.Command{
		Name:  "debug",
		Usage: "Diagnostic tools for engine authors",
		Subcommands: []*cli.Command{
			debugEventsCommand(),
		},
	}
}

func debugEventsCommand() *cli.Command {
	return &cli.Command{
		Name:      "events",
		Usage:     "Decode an engine event stream (length-prefixed msgpack frames)",
		ArgsUsage: "<frames file | ->",
		Flags:     ReadOnlyFlags(),
		Action:    debugEventsAction,
	}
}

// EventFrame is the debug view of one inbound frame.
type EventFrame struct {
	Seq             int64  `json:"seq" yaml:"seq"`
	Type            string `json:"type" yaml:"type"`
	Ts              string `json:"ts" yaml:"ts"`
	ContractVersion string `json:"contract_version" yaml:"contract_version"`
	// Event is the decoded payload, nil when the type is unknown.
	Event any    `json:"event" yaml:"event"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

func debugEventsAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for debug events", 1)
	}
	if c.NArg() < 1 {
		return cli.Exit("frames file required (use - for stdin)", 1)
	}

	var in io.Reader = os.Stdin
	if path := c.Args().First(); path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("cannot open frames: %v", err), 1)
		}
		defer iox.DiscardClose(f)
		in = f
	}

	frames, err := decodeFrames(in)
	if err != nil {
		warnf(c, "warning: %v (showing %d frames)\n", err, len(frames))
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(frames)
}

// decodeFrames reads frames until EOF. Per-frame decode problems are
// reported on the frame; a framing error stops decoding.
func decodeFrames(in io.Reader) ([]EventFrame, error) {
	dec := ipc.NewFrameDecoder(in)
	var frames []EventFrame
	for {
		payload, err := dec.ReadFrame()
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, fmt.Errorf("frame %d: %w", len(frames)+1, err)
		}

		env, err := ipc.DecodeEnvelope(payload)
		if err != nil {
			frames = append(frames, EventFrame{Error: err.Error()})
			continue
		}
		frame := EventFrame{
			Seq:             env.Seq,
			Type:            string(env.Type),
			Ts:              env.Ts,
			ContractVersion: env.ContractVersion,
		}
		if ev, err := ipc.DecodeEvent(env); err != nil {
			frame.Error = err.Error()
		} else {
			frame.Event = ev
		}
		frames = append(frames, frame)
	}
}
