package cmd

import (
	"fmt"
	"maps"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/testbridge/cli/config"
	"github.com/pithecene-io/testbridge/runtime"
	"github.com/pithecene-io/testbridge/types"
)

// RunCommand returns the run command.
// It spawns an engine that writes lifecycle event frames to its stdout
// (TESTBRIDGE_IPC=1) and bridges them to the framed output protocol.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a test engine and bridge its events to the output protocol",
		ArgsUsage: "[--] <engine command...>",
		Flags: append(SessionFlags(),
			&cli.StringSliceFlag{
				Name:  "env",
				Usage: "Extra engine environment as KEY=VALUE (repeatable)",
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Engine working directory",
			},
			&cli.StringFlag{
				Name:  "engine-name",
				Usage: "Engine label for logs and the session summary",
				Value: "engine",
			},
		),
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), int(types.ExitUsageError))
	}

	command := c.Args().Slice()
	if len(command) == 0 {
		command = configVal(cfg, func(c *config.Config) []string { return c.Engine.Command })
	}
	if len(command) == 0 {
		return cli.Exit("engine command required (as arguments or engine.command in config)", int(types.ExitUsageError))
	}

	env, err := mergeEnv(configVal(cfg, func(c *config.Config) map[string]string { return c.Engine.Env }), c.StringSlice("env"))
	if err != nil {
		return cli.Exit(err.Error(), int(types.ExitUsageError))
	}

	return executeSession(c, &sessionRequest{
		cfg: cfg,
		engine: runtime.EngineConfig{
			Command: command,
			Env:     env,
			Dir:     resolveString(c, "dir", configVal(cfg, func(c *config.Config) string { return c.Engine.Dir })),
		},
		engineName:  c.String("engine-name"),
		collectOnly: resolveBool(c, "collect-only", configVal(cfg, func(c *config.Config) bool { return c.CollectOnly })),
	})
}

// mergeEnv overlays KEY=VALUE flag entries on the config environment.
func mergeEnv(base map[string]string, entries []string) (map[string]string, error) {
	env := maps.Clone(base)
	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --env %q (want KEY=VALUE)", e)
		}
		if env == nil {
			env = make(map[string]string)
		}
		env[k] = v
	}
	return env, nil
}
