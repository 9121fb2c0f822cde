// Package types defines core domain types for the test bridge.
// Inbound event shapes carry msgpack tags matching the engine-side event writer.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
)

// ExitStatus is the session exit status reported by the engine.
type ExitStatus int

// Exit statuses. Values match what the downstream consumer interprets.
const (
	ExitOK               ExitStatus = 0
	ExitTestsFailed      ExitStatus = 1
	ExitInterrupted      ExitStatus = 2
	ExitInternalError    ExitStatus = 3
	ExitUsageError       ExitStatus = 4
	ExitNoTestsCollected ExitStatus = 5
)

// Name returns the symbolic name of the status.
func (s ExitStatus) Name() string {
	switch s {
	case ExitOK:
		return "ok"
	case ExitTestsFailed:
		return "tests_failed"
	case ExitInterrupted:
		return "interrupted"
	case ExitInternalError:
		return "internal_error"
	case ExitUsageError:
		return "usage_error"
	case ExitNoTestsCollected:
		return "no_tests_collected"
	default:
		return fmt.Sprintf("exit_%d", int(s))
	}
}

// Failed reports whether the status denotes an unsuccessful session.
// "No tests collected" is not a failure.
func (s ExitStatus) Failed() bool {
	return s != ExitOK && s != ExitNoTestsCollected
}

// SessionMeta identifies one bridge session in logs and notifications.
type SessionMeta struct {
	// SessionID is unique per bridge invocation.
	SessionID string
	// Engine is a short label for the engine driving the session (e.g. "pytest", "gotest").
	Engine string
}

// Validate checks that the session identity is usable.
func (m *SessionMeta) Validate() error {
	if m.SessionID == "" {
		return errors.New("session_id must be non-empty")
	}
	return nil
}

// SessionOutcome is the final classification of a bridged session.
type SessionOutcome struct {
	// Status is the exit status the bridge process reports.
	Status ExitStatus
	// Message is a human-readable explanation.
	Message string
}
