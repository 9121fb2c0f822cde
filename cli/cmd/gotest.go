package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/testbridge/cli/config"
	"github.com/pithecene-io/testbridge/gotest"
	"github.com/pithecene-io/testbridge/runtime"
	"github.com/pithecene-io/testbridge/types"
)

// GoTestCommand returns the gotest command: go test -json driven through
// the bridge.
func GoTestCommand() *cli.Command {
	return &cli.Command{
		Name:      "gotest",
		Usage:     "Run go test and bridge its results to the output protocol",
		ArgsUsage: "[packages...]",
		Flags: append(SessionFlags(),
			&cli.StringFlag{
				Name:  "go",
				Usage: "Go binary",
				Value: "go",
			},
			&cli.StringSliceFlag{
				Name:  "go-arg",
				Usage: "Extra go test flag, e.g. --go-arg=-race (repeatable)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "go test -timeout",
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Module directory",
			},
		),
		Action: goTestAction,
	}
}

func goTestAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), int(types.ExitUsageError))
	}
	gt := configVal(cfg, func(c *config.Config) config.GoTestConfig { return c.GoTest })

	packages := c.Args().Slice()
	if len(packages) == 0 {
		packages = gt.Packages
	}
	opts := gotest.Options{
		GoBinary: c.String("go"),
		Packages: packages,
		Args:     resolveSlice(c, "go-arg", gt.Args),
		Timeout:  resolveDuration(c, "timeout", gt.Timeout.Duration),
	}

	env, err := mergeEnv(configVal(cfg, func(c *config.Config) map[string]string { return c.Engine.Env }), nil)
	if err != nil {
		return cli.Exit(err.Error(), int(types.ExitUsageError))
	}

	return executeSession(c, &sessionRequest{
		cfg: cfg,
		engine: runtime.EngineConfig{
			Env: env,
			Dir: resolveString(c, "dir", configVal(cfg, func(c *config.Config) string { return c.Engine.Dir })),
		},
		engineName:  gotest.EngineName,
		factory:     gotest.Factory(opts),
		collectOnly: resolveBool(c, "collect-only", configVal(cfg, func(c *config.Config) bool { return c.CollectOnly })),
	})
}
