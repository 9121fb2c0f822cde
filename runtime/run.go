// Package runtime supervises an engine process and bridges its event stream.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/pithecene-io/testbridge/adapter"
	"github.com/pithecene-io/testbridge/bridge"
	"github.com/pithecene-io/testbridge/log"
	"github.com/pithecene-io/testbridge/metrics"
	"github.com/pithecene-io/testbridge/types"
)

// publishTimeout bounds the best-effort summary publish.
const publishTimeout = 30 * time.Second

// Engine abstracts engine process lifecycle for testing.
type Engine interface {
	Start(ctx context.Context) error
	Stdout() io.Reader
	Wait() (*EngineResult, error)
	Kill() error
}

// EngineFactory creates an Engine. Used for test injection and for
// in-process engines such as the go test driver.
type EngineFactory func(config *EngineConfig) Engine

// NewSessionID returns a fresh random session ID.
func NewSessionID() string {
	return uuid.NewString()
}

// RunConfig configures a single session.
type RunConfig struct {
	// Engine describes the engine process.
	Engine EngineConfig
	// SessionMeta is the session identity.
	SessionMeta *types.SessionMeta
	// Disabled passes the engine's native output through instead of bridging.
	Disabled bool
	// CollectOnly runs discovery only.
	CollectOnly bool
	// Output receives the framed protocol (or native output when disabled).
	Output io.Writer
	// Discovery receives collect-only lines. Defaults to Output.
	Discovery io.Writer
	// Classifier overrides bridge.DefaultClassifier.
	Classifier bridge.ReportClassifier
	// EngineFactory overrides engine creation.
	// If nil, uses NewEngineManager.
	EngineFactory EngineFactory
	// Adapter, if set, receives the session summary after the run.
	Adapter adapter.Adapter
	// Logger defaults to a stderr logger with session context.
	Logger *log.Logger
	// Collector may be nil; all Collector methods are nil-safe.
	Collector *metrics.Collector
}

// RunResult represents the result of a session.
type RunResult struct {
	// SessionMeta is the session identity.
	SessionMeta *types.SessionMeta
	// Outcome is the session outcome.
	Outcome *types.SessionOutcome
	// Duration is the total session duration.
	Duration time.Duration
	// EngineExitCode is the engine process exit code, -1 if unknown.
	EngineExitCode int
	// StderrTail is the last part of the engine's stderr.
	StderrTail string
	// EventCount is the number of events ingested.
	EventCount int64
	// Aborted reports whether the engine raised an internal error.
	Aborted bool
	// Err combines non-fatal errors seen on the way (engine wait,
	// ingestion, summary publish).
	Err error
}

// RunOrchestrator orchestrates a single session.
type RunOrchestrator struct {
	config    *RunConfig
	logger    *log.Logger
	startTime time.Time
}

// NewRunOrchestrator creates a new run orchestrator.
// Returns error if the configuration is unusable.
func NewRunOrchestrator(config *RunConfig) (*RunOrchestrator, error) {
	if config.SessionMeta == nil {
		return nil, errors.New("invalid session metadata: missing")
	}
	if err := config.SessionMeta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session metadata: %w", err)
	}
	if config.Output == nil {
		return nil, errors.New("output writer is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = log.NewLogger(config.SessionMeta)
	}

	return &RunOrchestrator{
		config: config,
		logger: logger,
	}, nil
}

// Execute runs the session end-to-end.
//
// Execution flow:
//  1. Start engine process
//  2. Run ingestion loop, dispatching into the bridge (concurrent)
//  3. Wait for engine exit
//  4. Determine outcome
//  5. Publish summary (best effort)
func (r *RunOrchestrator) Execute(ctx context.Context) (*RunResult, error) {
	r.startTime = time.Now()

	engineCfg := r.config.Engine
	engineCfg.SessionID = r.config.SessionMeta.SessionID
	engineCfg.CollectOnly = r.config.CollectOnly
	engineCfg.Passthrough = r.config.Disabled
	if r.config.Disabled {
		engineCfg.Stdout = r.config.Output
	}

	var engine Engine
	if r.config.EngineFactory != nil {
		engine = r.config.EngineFactory(&engineCfg)
	} else {
		engine = NewEngineManager(&engineCfg)
	}

	r.logger.Info("starting session", map[string]any{
		"command":      engineCfg.Command,
		"collect_only": r.config.CollectOnly,
		"bridge":       !r.config.Disabled,
	})

	if err := engine.Start(ctx); err != nil {
		r.config.Collector.IncEngineLaunchFailure()
		r.logger.Error("failed to start engine", map[string]any{"error": err.Error()})
		return r.buildResult(&types.SessionOutcome{
			Status:  types.ExitInternalError,
			Message: fmt.Sprintf("failed to start engine: %v", err),
		}, nil, nil, nil, err), nil
	}
	r.config.Collector.IncEngineLaunchSuccess()

	if r.config.Disabled {
		return r.executePassthrough(engine)
	}

	session, err := bridge.NewSession(bridge.Config{
		Output:      r.config.Output,
		Discovery:   r.config.Discovery,
		CollectOnly: r.config.CollectOnly,
		Classifier:  r.config.Classifier,
		Logger:      r.logger,
		Collector:   r.config.Collector,
	})
	if err != nil {
		_ = engine.Kill()
		_, _ = engine.Wait()
		return nil, fmt.Errorf("failed to create bridge session: %w", err)
	}

	ingestion := NewIngestionEngine(engine.Stdout(), session, r.logger, r.config.Collector)

	ingestionDone := make(chan error, 1)
	go func() {
		ingestionDone <- ingestion.Run(ctx)
	}()

	// Ingestion must finish before Wait: exec.Cmd.Wait closes the stdout
	// pipe, which would cut off frames still buffered in it.
	ingErr := <-ingestionDone
	if ingErr != nil {
		r.logger.Warn("killing engine due to ingestion error", map[string]any{
			"error": ingErr.Error(),
		})
		_ = engine.Kill()
	}

	engineResult, waitErr := engine.Wait()
	if waitErr != nil {
		r.logger.Error("engine wait failed", map[string]any{"error": waitErr.Error()})
	}

	exitCode := -1
	if engineResult != nil {
		exitCode = engineResult.ExitCode
	}
	finish, _ := ingestion.Terminal()
	outcome := DetermineOutcome(exitCode, finish, session.Aborted(), ingErr)
	if finish != nil && exitCode >= 0 && exitCode != int(finish.ExitStatus) {
		r.logger.Warn("engine exit code conflicts with session finish", map[string]any{
			"exit_code":   exitCode,
			"exit_status": int(finish.ExitStatus),
		})
	}

	r.logger.Info("session completed", map[string]any{
		"outcome":   outcome.Status.Name(),
		"exit_code": exitCode,
		"events":    ingestion.CurrentSeq(),
		"duration":  time.Since(r.startTime).String(),
	})

	result := r.buildResult(outcome, engineResult, ingestion, session, multierr.Combine(ingErr, waitErr))
	result.Err = multierr.Append(result.Err, r.publish(ctx, result))
	return result, nil
}

// executePassthrough waits for an engine whose output is not bridged.
func (r *RunOrchestrator) executePassthrough(engine Engine) (*RunResult, error) {
	engineResult, err := engine.Wait()
	if err != nil {
		return r.buildResult(&types.SessionOutcome{
			Status:  types.ExitInternalError,
			Message: fmt.Sprintf("engine wait failed: %v", err),
		}, nil, nil, nil, err), nil
	}
	return r.buildResult(PassthroughOutcome(engineResult.ExitCode), engineResult, nil, nil, nil), nil
}

// publish sends the session summary through the configured adapter.
// Runs detached from ctx cancellation so an interrupted session still reports.
func (r *RunOrchestrator) publish(ctx context.Context, result *RunResult) error {
	if r.config.Adapter == nil {
		return nil
	}
	event := adapter.NewSessionFinishedEvent(
		r.config.Collector.Snapshot(),
		result.Outcome.Status,
		result.Aborted,
		time.Now(),
		result.Duration,
	)
	if event.SessionID == "" {
		event.SessionID = r.config.SessionMeta.SessionID
		event.Engine = r.config.SessionMeta.Engine
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := r.config.Adapter.Publish(pubCtx, event); err != nil {
		r.logger.Warn("summary publish failed (best effort)", map[string]any{"error": err.Error()})
		return fmt.Errorf("publish summary: %w", err)
	}
	return nil
}

// buildResult constructs the final result.
func (r *RunOrchestrator) buildResult(
	outcome *types.SessionOutcome,
	engineResult *EngineResult,
	ingestion *IngestionEngine,
	session *bridge.Session,
	err error,
) *RunResult {
	result := &RunResult{
		SessionMeta:    r.config.SessionMeta,
		Outcome:        outcome,
		Duration:       time.Since(r.startTime),
		EngineExitCode: -1,
		Err:            err,
	}
	if engineResult != nil {
		result.EngineExitCode = engineResult.ExitCode
		result.StderrTail = string(engineResult.StderrTail)
	}
	if ingestion != nil {
		result.EventCount = ingestion.CurrentSeq()
	}
	if session != nil {
		result.Aborted = session.Aborted()
	}
	return result
}
