package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pithecene-io/testbridge/ipc"
	"github.com/pithecene-io/testbridge/log"
	"github.com/pithecene-io/testbridge/metrics"
	"github.com/pithecene-io/testbridge/types"
)

// IngestionError classifies ingestion errors for outcome determination.
type IngestionError struct {
	// Kind indicates whether the stream, the bridge or the context failed.
	Kind IngestionErrorKind
	// Err is the underlying error.
	Err error
}

// IngestionErrorKind classifies ingestion errors.
type IngestionErrorKind int

const (
	// IngestionErrorStream indicates a frame/stream error (engine misbehavior).
	IngestionErrorStream IngestionErrorKind = iota
	// IngestionErrorBridge indicates the bridge could not emit a message.
	IngestionErrorBridge
	// IngestionErrorCanceled indicates context cancellation.
	IngestionErrorCanceled
)

func (e *IngestionError) Error() string {
	return e.Err.Error()
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// IsStreamError returns true if the error is a stream/frame error.
func IsStreamError(err error) bool {
	return ingestionKind(err) == IngestionErrorStream
}

// IsBridgeError returns true if the bridge failed to write its output.
func IsBridgeError(err error) bool {
	return ingestionKind(err) == IngestionErrorBridge
}

// IsCanceledError returns true if the error is due to context cancellation.
func IsCanceledError(err error) bool {
	return ingestionKind(err) == IngestionErrorCanceled
}

func ingestionKind(err error) IngestionErrorKind {
	var ingErr *IngestionError
	if errors.As(err, &ingErr) {
		return ingErr.Kind
	}
	return -1
}

// Sink consumes decoded lifecycle events. *bridge.Session implements it.
type Sink interface {
	Dispatch(ev types.Event) error
}

// IngestionEngine reads event frames and feeds them to a Sink.
//   - Frames are read in order
//   - Sequence numbers must be strictly monotonic (1, 2, 3...)
//   - First session_finish wins; later ones are ignored
//   - Invalid framing is fatal (no resync)
type IngestionEngine struct {
	decoder      *ipc.FrameDecoder
	sink         Sink
	logger       *log.Logger
	collector    *metrics.Collector
	currentSeq   int64
	terminalSeen bool
	terminal     *types.SessionFinishEvent
}

// NewIngestionEngine creates a new ingestion engine.
func NewIngestionEngine(reader io.Reader, sink Sink, logger *log.Logger, collector *metrics.Collector) *IngestionEngine {
	if logger == nil {
		logger = log.NewNop()
	}
	return &IngestionEngine{
		decoder:   ipc.NewFrameDecoder(reader),
		sink:      sink,
		logger:    logger,
		collector: collector,
	}
}

// Run runs the ingestion loop until EOF or fatal error.
// Returns:
//   - nil: stream ended cleanly (EOF)
//   - *IngestionError with Kind=IngestionErrorStream: frame/stream error
//   - *IngestionError with Kind=IngestionErrorBridge: output write failure
//   - *IngestionError with Kind=IngestionErrorCanceled: context canceled
func (e *IngestionEngine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return &IngestionError{Kind: IngestionErrorCanceled, Err: ctx.Err()}
		default:
		}

		payload, err := e.decoder.ReadFrame()
		if err != nil {
			// Cancellation kills the engine, which surfaces here as EOF or
			// a cut frame on the blocked read.
			if ctxErr := ctx.Err(); ctxErr != nil && !e.terminalSeen {
				return &IngestionError{Kind: IngestionErrorCanceled, Err: ctxErr}
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			// The engine may close its stdout abruptly once the session is over.
			if e.terminalSeen {
				e.logger.Debug("pipe closed after session finish (expected)", map[string]any{
					"error": err.Error(),
				})
				return nil
			}
			e.logger.Error("frame error", map[string]any{"error": err.Error()})
			return &IngestionError{
				Kind: IngestionErrorStream,
				Err:  fmt.Errorf("frame error: %w", err),
			}
		}

		if err := e.processFrame(payload); err != nil {
			return err
		}
	}
}

func (e *IngestionEngine) processFrame(payload []byte) error {
	env, err := ipc.DecodeEnvelope(payload)
	if err != nil {
		return e.decodeFailure(err, "")
	}

	if env.ContractVersion != types.ContractVersion {
		e.logger.Error("contract version mismatch", map[string]any{
			"expected": types.ContractVersion,
			"got":      env.ContractVersion,
		})
		return &IngestionError{
			Kind: IngestionErrorStream,
			Err: fmt.Errorf("contract version mismatch: expected %s, got %s",
				types.ContractVersion, env.ContractVersion),
		}
	}

	expectedSeq := e.currentSeq + 1
	if env.Seq != expectedSeq {
		e.logger.Error("sequence violation", map[string]any{
			"expected": expectedSeq,
			"got":      env.Seq,
			"type":     string(env.Type),
		})
		return &IngestionError{
			Kind: IngestionErrorStream,
			Err:  fmt.Errorf("sequence violation: expected %d, got %d", expectedSeq, env.Seq),
		}
	}
	e.currentSeq = env.Seq

	if env.Type.IsTerminal() && e.terminalSeen {
		e.logger.Warn("ignoring duplicate session finish", map[string]any{"seq": env.Seq})
		return nil
	}

	ev, err := ipc.DecodeEvent(env)
	if err != nil {
		return e.decodeFailure(err, env.Type)
	}
	e.collector.IncEventReceived()

	if fin, ok := ev.(*types.SessionFinishEvent); ok {
		e.terminalSeen = true
		e.terminal = fin
		e.logger.Info("session finish received", map[string]any{
			"seq":         env.Seq,
			"exit_status": int(fin.ExitStatus),
		})
	}

	if err := e.sink.Dispatch(ev); err != nil {
		return &IngestionError{
			Kind: IngestionErrorBridge,
			Err:  fmt.Errorf("dispatch %s: %w", env.Type, err),
		}
	}
	return nil
}

func (e *IngestionEngine) decodeFailure(err error, typ types.EventType) error {
	e.logger.Error("frame decode error", map[string]any{
		"error": err.Error(),
		"type":  string(typ),
	})
	e.collector.IncIPCDecodeErrors()
	return &IngestionError{
		Kind: IngestionErrorStream,
		Err:  fmt.Errorf("frame decode error: %w", err),
	}
}

// Terminal returns the session finish event if seen.
func (e *IngestionEngine) Terminal() (*types.SessionFinishEvent, bool) {
	return e.terminal, e.terminalSeen
}

// CurrentSeq returns the current sequence number.
func (e *IngestionEngine) CurrentSeq() int64 {
	return e.currentSeq
}
