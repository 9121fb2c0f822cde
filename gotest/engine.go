package gotest

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/pithecene-io/testbridge/iox"
	"github.com/pithecene-io/testbridge/ipc"
	"github.com/pithecene-io/testbridge/runtime"
	"github.com/pithecene-io/testbridge/types"
)

// EngineName labels sessions driven by go test.
const EngineName = "gotest"

// errKilled closes the event stream when the engine is killed.
var errKilled = errors.New("go test engine killed")

// Options configures the go test invocation.
type Options struct {
	// GoBinary defaults to "go".
	GoBinary string
	// Packages defaults to "./...".
	Packages []string
	// Args are extra go test flags, placed before the packages.
	Args []string
	// Timeout is passed as -timeout when non-zero.
	Timeout time.Duration
}

// Command returns the go test -json argv for the given mode.
func (o *Options) Command(collectOnly bool) []string {
	return o.argv(collectOnly, true)
}

func (o *Options) argv(collectOnly, jsonOutput bool) []string {
	bin := o.GoBinary
	if bin == "" {
		bin = "go"
	}
	argv := []string{bin, "test"}
	if jsonOutput {
		argv = append(argv, "-json")
	}
	if collectOnly {
		argv = append(argv, "-list", ".")
	}
	if o.Timeout > 0 {
		argv = append(argv, "-timeout", o.Timeout.String())
	}
	argv = append(argv, o.Args...)
	if len(o.Packages) == 0 {
		return append(argv, "./...")
	}
	return append(argv, o.Packages...)
}

// Factory returns a runtime.EngineFactory running go test with opts.
func Factory(opts Options) runtime.EngineFactory {
	return func(config *runtime.EngineConfig) runtime.Engine {
		return NewEngine(config, opts)
	}
}

// Engine runs go test -json and converts its output into an event stream.
// In passthrough mode it runs plain go test with its native output.
// It implements runtime.Engine.
type Engine struct {
	opts   Options
	config runtime.EngineConfig
	proc   *runtime.EngineManager

	pr *io.PipeReader
	pw *io.PipeWriter

	done   chan struct{}
	mu     sync.Mutex
	result *runtime.EngineResult
	err    error
}

// NewEngine creates a go test engine. config.Command is replaced by the
// go test argv; the rest of config is honored.
func NewEngine(config *runtime.EngineConfig, opts Options) *Engine {
	cfg := *config
	cfg.Command = opts.argv(cfg.CollectOnly, !cfg.Passthrough)
	return &Engine{
		opts:   opts,
		config: cfg,
		proc:   runtime.NewEngineManager(&cfg),
		done:   make(chan struct{}),
	}
}

// Start launches go test and begins converting its output.
func (e *Engine) Start(ctx context.Context) error {
	var goVersion string
	if !e.config.Passthrough {
		goVersion = e.goVersion(ctx)
	}
	if err := e.proc.Start(ctx); err != nil {
		return err
	}
	if e.config.Passthrough {
		return nil
	}
	e.pr, e.pw = io.Pipe()
	go e.convert(goVersion)
	return nil
}

// Stdout returns the converted event stream. Nil in passthrough mode.
func (e *Engine) Stdout() io.Reader {
	if e.pr == nil {
		return nil
	}
	return e.pr
}

// Wait blocks until go test has exited and the stream is closed.
func (e *Engine) Wait() (*runtime.EngineResult, error) {
	if e.config.Passthrough {
		return e.proc.Wait()
	}
	<-e.done
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result, e.err
}

// Kill terminates go test and unblocks the converter.
func (e *Engine) Kill() error {
	if e.pr != nil {
		_ = e.pr.CloseWithError(errKilled)
	}
	return e.proc.Kill()
}

func (e *Engine) convert(goVersion string) {
	defer close(e.done)

	conv := NewConverter(ipc.NewWriter(e.pw), e.config.CollectOnly)
	stdout := e.proc.Stdout()

	streamErr := conv.Start(goVersion, types.Version)
	if streamErr == nil {
		streamErr = conv.Consume(stdout)
	}
	if streamErr != nil {
		// The child must not block on a full pipe while we wait for it.
		iox.Drain(stdout)
	}

	result, err := e.proc.Wait()
	if err == nil && streamErr == nil {
		streamErr = conv.Finish(result.ExitCode)
	}
	if streamErr != nil {
		_ = e.pw.CloseWithError(streamErr)
	} else {
		_ = e.pw.Close()
	}

	e.mu.Lock()
	e.result, e.err = result, err
	e.mu.Unlock()
}

// goVersion asks the toolchain for its version. Best effort.
func (e *Engine) goVersion(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, e.config.Command[0], "env", "GOVERSION")
	cmd.Dir = e.config.Dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
