package types //nolint:revive // types is a valid package name

import (
	"testing"
)

func TestEventType_IsTerminal(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      bool
	}{
		{EventTypeSessionFinish, true},
		{EventTypeSessionStart, false},
		{EventTypeLogStart, false},
		{EventTypeLogReport, false},
		{EventTypeLogFinish, false},
		{EventTypeInternalError, false},
		{EventTypeKeyboardInterrupt, false},
		{EventTypeRegisterOutputs, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			got := tt.eventType.IsTerminal()
			if got != tt.want {
				t.Errorf("EventType(%q).IsTerminal() = %v, want %v", tt.eventType, got, tt.want)
			}
		})
	}
}

func TestNewEvent_RoundTripsType(t *testing.T) {
	all := []EventType{
		EventTypeSessionStart,
		EventTypeItemCollected,
		EventTypeLogStart,
		EventTypeLogReport,
		EventTypeExceptionInteract,
		EventTypeLogFinish,
		EventTypeInternalError,
		EventTypeKeyboardInterrupt,
		EventTypeSessionFinish,
		EventTypeRegisterOutputs,
	}

	for _, et := range all {
		if !et.IsKnown() {
			t.Errorf("EventType(%q).IsKnown() = false, want true", et)
		}
		ev := NewEvent(et)
		if ev == nil {
			t.Fatalf("NewEvent(%q) returned nil", et)
		}
		if ev.EventType() != et {
			t.Errorf("NewEvent(%q).EventType() = %q", et, ev.EventType())
		}
	}

	if NewEvent("bogus") != nil {
		t.Error("NewEvent(bogus) should return nil")
	}
	if EventType("bogus").IsKnown() {
		t.Error("bogus event type should not be known")
	}
}

func TestExceptionInfo_CrashLocation(t *testing.T) {
	tests := []struct {
		name string
		info ExceptionInfo
		want FileLocation
	}{
		{
			name: "derived from innermost entry",
			info: ExceptionInfo{
				TypeName: "AssertionError",
				Message:  "boom",
				Traceback: []TracebackEntry{
					{Path: "a.py", Line: 3},
					{Path: "b.py", Line: 9},
				},
			},
			want: FileLocation{Path: "b.py", Line: 9, Message: "AssertionError: boom"},
		},
		{
			name: "explicit crash keeps its message",
			info: ExceptionInfo{
				TypeName: "ValueError",
				Crash:    &FileLocation{Path: "c.py", Line: 1, Message: "custom"},
			},
			want: FileLocation{Path: "c.py", Line: 1, Message: "custom"},
		},
		{
			name: "explicit crash without message",
			info: ExceptionInfo{
				TypeName: "KeyboardInterrupt",
				Crash:    &FileLocation{Path: "d.py", Line: 2},
			},
			want: FileLocation{Path: "d.py", Line: 2, Message: "KeyboardInterrupt"},
		},
		{
			name: "no traceback",
			info: ExceptionInfo{Message: "only message"},
			want: FileLocation{Message: "only message"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.info.CrashLocation()
			if got != tt.want {
				t.Errorf("CrashLocation() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExitStatus_Failed(t *testing.T) {
	tests := []struct {
		status ExitStatus
		want   bool
	}{
		{ExitOK, false},
		{ExitNoTestsCollected, false},
		{ExitTestsFailed, true},
		{ExitInterrupted, true},
		{ExitInternalError, true},
		{ExitUsageError, true},
	}

	for _, tt := range tests {
		t.Run(tt.status.Name(), func(t *testing.T) {
			if got := tt.status.Failed(); got != tt.want {
				t.Errorf("ExitStatus(%d).Failed() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}
