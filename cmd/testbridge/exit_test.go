package main

import (
	"errors"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/testbridge/types"
)

func TestExitErrHandler_NilError(t *testing.T) {
	exitErrHandler(nil, nil)
}

func TestExitErrHandler_SessionStatuses(t *testing.T) {
	statuses := []types.ExitStatus{
		types.ExitOK,
		types.ExitTestsFailed,
		types.ExitInterrupted,
		types.ExitInternalError,
		types.ExitUsageError,
		types.ExitNoTestsCollected,
	}

	for _, status := range statuses {
		t.Run(status.Name(), func(t *testing.T) {
			err := cli.Exit("", int(status))

			var exitCoder cli.ExitCoder
			if !errors.As(err, &exitCoder) {
				t.Fatal("cli.Exit should return ExitCoder")
			}
			if exitCoder.ExitCode() != int(status) {
				t.Errorf("ExitCode() = %d, want %d", exitCoder.ExitCode(), status)
			}
		})
	}
}

func TestExitErrHandler_WrappedExitCoder(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), cli.Exit("inner error", 4))

	var exitCoder cli.ExitCoder
	if !errors.As(wrapped, &exitCoder) {
		t.Fatal("wrapped error should still match cli.ExitCoder")
	}
	if exitCoder.ExitCode() != 4 {
		t.Errorf("exit code = %d, want 4", exitCoder.ExitCode())
	}
}

func TestExitErrHandler_MessageSuppression(t *testing.T) {
	msg := cli.Exit("", 1).Error()
	if msg != "" && msg != "exit status 1" {
		t.Errorf("got %q, want empty or %q", msg, "exit status 1")
	}
}
