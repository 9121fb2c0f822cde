// Package adapter publishes session summaries to downstream systems once a
// bridged test session has finished.
//
// The runtime owns adapter lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/pithecene-io/testbridge/metrics"
	"github.com/pithecene-io/testbridge/types"
)

// EventTypeSessionFinished is the event_type of every published summary.
const EventTypeSessionFinished = "session_finished"

// SessionFinishedEvent is the payload published when a session finishes.
type SessionFinishedEvent struct {
	ContractVersion string         `json:"contract_version"`
	EventType       string         `json:"event_type"` // always "session_finished"
	SessionID       string         `json:"session_id"`
	Engine          string         `json:"engine,omitempty"`
	ExitStatus      int            `json:"exit_status"`
	ExitStatusName  string         `json:"exit_status_name"`
	Aborted         bool           `json:"aborted"`
	TestsStarted    int64          `json:"tests_started"`
	TestsFinished   int64          `json:"tests_finished"`
	Outcomes        map[string]int `json:"outcomes,omitempty"`
	Messages        int64          `json:"messages"`
	InternalErrors  int64          `json:"internal_errors"`
	Interrupted     bool           `json:"interrupted"`
	Timestamp       string         `json:"timestamp"` // RFC 3339
	DurationMs      int64          `json:"duration_ms"`
}

// NewSessionFinishedEvent builds the summary from a session's final counters.
func NewSessionFinishedEvent(snap metrics.Snapshot, status types.ExitStatus, aborted bool, finishedAt time.Time, elapsed time.Duration) *SessionFinishedEvent {
	var outcomes map[string]int
	if len(snap.OutcomesByCategory) > 0 {
		outcomes = make(map[string]int, len(snap.OutcomesByCategory))
		for k, v := range snap.OutcomesByCategory {
			outcomes[k] = int(v)
		}
	}
	return &SessionFinishedEvent{
		ContractVersion: types.ContractVersion,
		EventType:       EventTypeSessionFinished,
		SessionID:       snap.SessionID,
		Engine:          snap.Engine,
		ExitStatus:      int(status),
		ExitStatusName:  status.Name(),
		Aborted:         aborted,
		TestsStarted:    snap.TestsStarted,
		TestsFinished:   snap.TestsFinished,
		Outcomes:        outcomes,
		Messages:        snap.MessagesEmitted,
		InternalErrors:  snap.InternalErrors,
		Interrupted:     status == types.ExitInterrupted,
		Timestamp:       finishedAt.UTC().Format(time.RFC3339),
		DurationMs:      elapsed.Milliseconds(),
	}
}

// Adapter publishes session summaries to a downstream system.
// Implementations must be safe for single-use per session.
type Adapter interface {
	// Publish sends a session summary to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *SessionFinishedEvent) error

	// Close releases adapter resources.
	Close() error
}

// Backoff returns the delay before retry attempt n (n >= 1).
type Backoff func(n int) time.Duration

// ExponentialBackoff doubles from base: base, 2*base, 4*base...
func ExponentialBackoff(base time.Duration) Backoff {
	return func(n int) time.Duration {
		return time.Duration(1<<uint(n-1)) * base
	}
}

// DefaultBackoff is used when an adapter is not given one.
var DefaultBackoff = ExponentialBackoff(500 * time.Millisecond)

// Retry runs attempt up to 1+retries times, sleeping per backoff between
// attempts. It stops early when attempt's error is marked permanent by
// isPermanent, or when ctx is done. name prefixes returned errors.
func Retry(ctx context.Context, name string, retries int, backoff Backoff, isPermanent func(error) bool, attempt func(context.Context) error) error {
	if backoff == nil {
		backoff = DefaultBackoff
	}
	attempts := 1 + retries

	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(backoff(i)):
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		if isPermanent != nil && isPermanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
