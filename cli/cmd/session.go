package cmd

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/testbridge/adapter"
	"github.com/pithecene-io/testbridge/adapter/redis"
	"github.com/pithecene-io/testbridge/adapter/webhook"
	"github.com/pithecene-io/testbridge/cli/config"
	"github.com/pithecene-io/testbridge/iox"
	"github.com/pithecene-io/testbridge/log"
	"github.com/pithecene-io/testbridge/metrics"
	"github.com/pithecene-io/testbridge/runtime"
	"github.com/pithecene-io/testbridge/types"
)

// adapterChoice holds the resolved adapter settings.
type adapterChoice struct {
	adapterType string
	url         string
	channel     string
	key         string
	headers     map[string]string
	timeout     time.Duration
	retries     int
}

// parseAdapterConfigWithPrecedence resolves adapter settings from flags and
// config. Returns nil when no adapter is configured.
func parseAdapterConfigWithPrecedence(c *cli.Context, cfg *config.Config) (*adapterChoice, error) {
	ac := configVal(cfg, func(c *config.Config) config.AdapterConfig { return c.Adapter })

	choice := &adapterChoice{
		adapterType: resolveString(c, "adapter", ac.Type),
		url:         resolveString(c, "adapter-url", ac.URL),
		channel:     resolveString(c, "adapter-channel", ac.Channel),
		key:         c.String("adapter-key"),
		timeout:     resolveDuration(c, "adapter-timeout", ac.Timeout.Duration),
		retries:     resolveInt(c, "adapter-retries", ac.Retries),
		headers:     maps.Clone(ac.Headers),
	}
	if choice.adapterType == "" {
		return nil, nil
	}

	for _, h := range c.StringSlice("adapter-header") {
		name, value, ok := strings.Cut(h, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --adapter-header %q (want Name=Value)", h)
		}
		if choice.headers == nil {
			choice.headers = make(map[string]string)
		}
		choice.headers[name] = value
	}

	switch choice.adapterType {
	case "webhook", "redis":
	default:
		return nil, fmt.Errorf("unknown adapter %q (must be webhook or redis)", choice.adapterType)
	}
	if choice.url == "" {
		return nil, fmt.Errorf("--adapter-url is required when --adapter=%s", choice.adapterType)
	}
	if choice.retries < 0 {
		return nil, fmt.Errorf("--adapter-retries must be >= 0, got %d", choice.retries)
	}
	return choice, nil
}

// buildAdapter creates the adapter for choice. A nil choice yields no adapter.
func buildAdapter(choice *adapterChoice) (adapter.Adapter, error) {
	if choice == nil {
		return nil, nil
	}
	switch choice.adapterType {
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     choice.url,
			Headers: choice.headers,
			Timeout: choice.timeout,
			Retries: choice.retries,
		})
	case "redis":
		return redis.New(redis.Config{
			URL:     choice.url,
			Channel: choice.channel,
			Key:     choice.key,
			Timeout: choice.timeout,
			Retries: choice.retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter %q", choice.adapterType)
	}
}

// openOutput resolves the protocol destination. "-" is stdout.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create output %q: %w", path, err)
	}
	return f, f.Close, nil
}

// sessionRequest is everything a session command resolved from its flags.
type sessionRequest struct {
	cfg         *config.Config
	engine      runtime.EngineConfig
	engineName  string
	factory     runtime.EngineFactory
	collectOnly bool
}

// executeSession runs one bridged session and maps its outcome to the
// process exit code.
func executeSession(c *cli.Context, req *sessionRequest) error {
	cfg := req.cfg

	meta := &types.SessionMeta{
		SessionID: c.String("session-id"),
		Engine:    req.engineName,
	}
	if meta.SessionID == "" {
		meta.SessionID = runtime.NewSessionID()
	}

	logger := log.NewLogger(meta).WithOutput(c.App.ErrWriter)
	level := resolveString(c, "log-level", configVal(cfg, func(c *config.Config) string { return c.Log.Level }))
	if err := logger.SetLevel(level); err != nil {
		return cli.Exit(fmt.Sprintf("invalid --log-level: %v", err), int(types.ExitUsageError))
	}
	defer logger.Sync()

	choice, err := parseAdapterConfigWithPrecedence(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), int(types.ExitUsageError))
	}
	adp, err := buildAdapter(choice)
	if err != nil {
		return cli.Exit(fmt.Sprintf("adapter: %v", err), int(types.ExitUsageError))
	}
	if adp != nil {
		defer iox.DiscardClose(adp)
	}

	out, closeOut, err := openOutput(
		resolveString(c, "output", configVal(cfg, func(c *config.Config) string { return c.Output })),
		c.App.Writer,
	)
	if err != nil {
		return cli.Exit(err.Error(), int(types.ExitUsageError))
	}
	defer iox.DiscardErr(closeOut)

	enabled := cfg == nil || cfg.IsEnabled()
	if c.IsSet("no-bridge") {
		enabled = !c.Bool("no-bridge")
	}

	req.engine.Stderr = c.App.ErrWriter
	orchestrator, err := runtime.NewRunOrchestrator(&runtime.RunConfig{
		Engine:        req.engine,
		SessionMeta:   meta,
		Disabled:      !enabled,
		CollectOnly:   req.collectOnly,
		Output:        out,
		EngineFactory: req.factory,
		Adapter:       adp,
		Logger:        logger,
		Collector:     metrics.NewCollector(req.engineName, meta.SessionID),
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	stop := forwardInterrupts(cancel, logger)
	defer stop()

	result, err := orchestrator.Execute(ctx)
	if err != nil {
		return fmt.Errorf("session failed: %w", err)
	}
	if result.Err != nil {
		logger.Warn("session finished with errors", map[string]any{"error": result.Err.Error()})
	}
	if !c.Bool("quiet") {
		printSessionResult(c.App.ErrWriter, result)
	}

	if status := result.Outcome.Status; status != types.ExitOK {
		return cli.Exit("", int(status))
	}
	return nil
}

// forwardInterrupts leaves the first SIGINT/SIGTERM to the engine, which
// receives it too and reports the interrupt through the session. A second
// signal cancels the session.
func forwardInterrupts(cancel context.CancelFunc, logger *log.Logger) (stop func()) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			logger.Warn("interrupt received, waiting for the engine to finish", nil)
		case <-done:
			return
		}
		select {
		case <-sigCh:
			logger.Warn("second interrupt, aborting session", nil)
			cancel()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

func printSessionResult(w io.Writer, result *runtime.RunResult) {
	fmt.Fprintf(w, "\nsession_id=%s, engine=%s, outcome=%s, duration=%s\n",
		result.SessionMeta.SessionID,
		result.SessionMeta.Engine,
		result.Outcome.Status.Name(),
		result.Duration.Round(time.Millisecond),
	)
	if result.Outcome.Message != "" {
		fmt.Fprintf(w, "message=%s\n", result.Outcome.Message)
	}
	fmt.Fprintf(w, "events=%d, engine_exit_code=%d, aborted=%t\n",
		result.EventCount, result.EngineExitCode, result.Aborted)
	if result.Outcome.Status == types.ExitInternalError && result.StderrTail != "" {
		fmt.Fprintf(w, "\n=== Engine Stderr (tail) ===\n%s", result.StderrTail)
	}
}
