// Package cmd provides the commands of the testbridge binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for inspect and stats.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect, stats only)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can give an explicit error
// instead of a generic "flag not defined".
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// TUIReadOnlyFlags returns flags for commands that support TUI mode.
// Same set as ReadOnlyFlags, named for documentation clarity.
func TUIReadOnlyFlags() []cli.Flag {
	return ReadOnlyFlags()
}

// SessionFlags returns the flags shared by commands that run a session.
// Every flag falls back to testbridge.yaml when not given.
func SessionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to config file (default: ./testbridge.yaml when present)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Protocol output: - for stdout or a file path",
			Value:   "-",
		},
		&cli.BoolFlag{
			Name:  "collect-only",
			Usage: "Discover tests without running them",
		},
		&cli.BoolFlag{
			Name:  "no-bridge",
			Usage: "Run the engine with its native output instead of the framed protocol",
		},
		&cli.StringFlag{
			Name:  "session-id",
			Usage: "Session ID (default: random UUID)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
			Value: "info",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Suppress the session summary on stderr",
		},
		// Adapter flags
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Session summary adapter: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Adapter endpoint (webhook URL or redis:// URL)",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis pub/sub channel",
		},
		&cli.StringFlag{
			Name:  "adapter-key",
			Usage: "Redis key that also receives the latest summary",
		},
		&cli.StringSliceFlag{
			Name:  "adapter-header",
			Usage: "Webhook header as Name=Value (repeatable)",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-attempt adapter timeout",
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Adapter retry attempts",
			Value: 3,
		},
	}
}
