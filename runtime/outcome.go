package runtime

import (
	"fmt"

	"github.com/pithecene-io/testbridge/types"
)

// DetermineOutcome decides the bridge's exit status.
//
//  1. An ingestion failure wins: cancellation reports ExitInterrupted, any
//     other stream or output failure ExitInternalError.
//  2. Without a session finish the engine died mid-session: ExitInternalError.
//  3. Otherwise the engine's own exit status is used, raised to at least
//     ExitInternalError when the session saw an internal error.
//
// The engine's process exit code is informational once a session finish
// was received.
func DetermineOutcome(engineExitCode int, finish *types.SessionFinishEvent, aborted bool, ingErr error) *types.SessionOutcome {
	if ingErr != nil {
		if IsCanceledError(ingErr) {
			return &types.SessionOutcome{
				Status:  types.ExitInterrupted,
				Message: fmt.Sprintf("session canceled: %v", ingErr),
			}
		}
		if IsBridgeError(ingErr) {
			return &types.SessionOutcome{
				Status:  types.ExitInternalError,
				Message: fmt.Sprintf("output error: %v", ingErr),
			}
		}
		return &types.SessionOutcome{
			Status:  types.ExitInternalError,
			Message: fmt.Sprintf("stream error: %v", ingErr),
		}
	}

	if finish == nil {
		msg := "engine exited without session finish"
		if engineExitCode != 0 {
			msg = fmt.Sprintf("engine exited with code %d without session finish", engineExitCode)
		}
		return &types.SessionOutcome{Status: types.ExitInternalError, Message: msg}
	}

	status := finish.ExitStatus
	if aborted && status < types.ExitInternalError {
		return &types.SessionOutcome{
			Status:  types.ExitInternalError,
			Message: fmt.Sprintf("session aborted by internal error (engine reported %s)", status.Name()),
		}
	}
	return &types.SessionOutcome{
		Status:  status,
		Message: "session finished: " + status.Name(),
	}
}

// PassthroughOutcome maps an engine exit code when the bridge is disabled.
func PassthroughOutcome(engineExitCode int) *types.SessionOutcome {
	status := types.ExitStatus(engineExitCode)
	if engineExitCode < 0 {
		status = types.ExitInternalError
	}
	return &types.SessionOutcome{
		Status:  status,
		Message: fmt.Sprintf("engine exited with code %d", engineExitCode),
	}
}
