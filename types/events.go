package types

// EventType identifies a test lifecycle event delivered by the engine.
type EventType string

// Lifecycle event types.
const (
	EventTypeSessionStart      EventType = "session_start"
	EventTypeItemCollected     EventType = "item_collected"
	EventTypeLogStart          EventType = "runtest_logstart"
	EventTypeLogReport         EventType = "runtest_logreport"
	EventTypeExceptionInteract EventType = "exception_interact"
	EventTypeLogFinish         EventType = "runtest_logfinish"
	EventTypeInternalError     EventType = "internal_error"
	EventTypeKeyboardInterrupt EventType = "keyboard_interrupt"
	EventTypeSessionFinish     EventType = "session_finish"
	EventTypeRegisterOutputs   EventType = "register_outputs"
)

// IsTerminal returns true if this event type ends the session.
func (e EventType) IsTerminal() bool {
	return e == EventTypeSessionFinish
}

// IsKnown returns true if e is one of the lifecycle event types above.
func (e EventType) IsKnown() bool {
	switch e {
	case EventTypeSessionStart, EventTypeItemCollected, EventTypeLogStart,
		EventTypeLogReport, EventTypeExceptionInteract, EventTypeLogFinish,
		EventTypeInternalError, EventTypeKeyboardInterrupt, EventTypeSessionFinish,
		EventTypeRegisterOutputs:
		return true
	}
	return false
}

// Event is a decoded lifecycle event.
type Event interface {
	EventType() EventType
}

// Component names one piece of the engine's runtime stack for the session banner.
type Component struct {
	// Name is the component name (e.g. "pytest").
	Name string `msgpack:"name"`
	// Version is the component version.
	Version string `msgpack:"version"`
	// Detail is optional implementation detail, rendered in brackets.
	Detail string `msgpack:"detail,omitempty"`
}

// SessionStartEvent opens a test session.
type SessionStartEvent struct {
	// Platform is the host platform name. Empty means the bridge's own GOOS.
	Platform string `msgpack:"platform,omitempty"`
	// Runtime is the language runtime running the tests.
	Runtime *Component `msgpack:"runtime,omitempty"`
	// Components are the engine and plugin versions, in banner order.
	Components []Component `msgpack:"components,omitempty"`
}

// ItemCollectedEvent reports a discovered test. Only meaningful in collect-only mode.
type ItemCollectedEvent struct {
	Module       string `msgpack:"module"`
	Class        string `msgpack:"class,omitempty"`
	OriginalName string `msgpack:"original_name,omitempty"`
	Name         string `msgpack:"name"`
}

// LogStartEvent marks the start of one test's execution.
type LogStartEvent struct {
	NodeID   string    `msgpack:"nodeid"`
	Location *Location `msgpack:"location,omitempty"`
}

// LogReportEvent carries the report for one phase of the running test.
type LogReportEvent struct {
	Report *Report `msgpack:"report"`
}

// ExceptionInteractEvent is raised when an exception surfaces in any phase,
// including collection.
type ExceptionInteractEvent struct {
	// NodeID identifies the node the exception belongs to.
	NodeID string `msgpack:"nodeid,omitempty"`
	// When is the phase (setup, call, teardown, collect).
	When Phase `msgpack:"when,omitempty"`
	// ExcInfo is the structured exception.
	ExcInfo *ExceptionInfo `msgpack:"excinfo,omitempty"`
}

// LogFinishEvent marks the end of one test's execution.
type LogFinishEvent struct {
	NodeID   string    `msgpack:"nodeid"`
	Location *Location `msgpack:"location,omitempty"`
}

// InternalErrorEvent reports an engine-fatal condition.
type InternalErrorEvent struct {
	// ExcInfo is the structured error, if the engine has one.
	ExcInfo *ExceptionInfo `msgpack:"excinfo,omitempty"`
	// Text is a preformatted representation used when ExcInfo is nil.
	Text string `msgpack:"text,omitempty"`
}

// KeyboardInterruptEvent reports a process interrupt during execution.
type KeyboardInterruptEvent struct {
	ExcInfo *ExceptionInfo `msgpack:"excinfo,omitempty"`
}

// SessionFinishEvent closes the session.
type SessionFinishEvent struct {
	ExitStatus ExitStatus `msgpack:"exit_status"`
}

// RegisterOutputsEvent attaches auxiliary artifact paths to the next test record.
type RegisterOutputsEvent struct {
	Paths []string `msgpack:"paths"`
}

// EventType implements Event.
func (*SessionStartEvent) EventType() EventType { return EventTypeSessionStart }

// EventType implements Event.
func (*ItemCollectedEvent) EventType() EventType { return EventTypeItemCollected }

// EventType implements Event.
func (*LogStartEvent) EventType() EventType { return EventTypeLogStart }

// EventType implements Event.
func (*LogReportEvent) EventType() EventType { return EventTypeLogReport }

// EventType implements Event.
func (*ExceptionInteractEvent) EventType() EventType { return EventTypeExceptionInteract }

// EventType implements Event.
func (*LogFinishEvent) EventType() EventType { return EventTypeLogFinish }

// EventType implements Event.
func (*InternalErrorEvent) EventType() EventType { return EventTypeInternalError }

// EventType implements Event.
func (*KeyboardInterruptEvent) EventType() EventType { return EventTypeKeyboardInterrupt }

// EventType implements Event.
func (*SessionFinishEvent) EventType() EventType { return EventTypeSessionFinish }

// EventType implements Event.
func (*RegisterOutputsEvent) EventType() EventType { return EventTypeRegisterOutputs }

// NewEvent returns an empty event value for the given type, ready to be decoded into.
// Returns nil for unknown types.
func NewEvent(t EventType) Event {
	switch t {
	case EventTypeSessionStart:
		return &SessionStartEvent{}
	case EventTypeItemCollected:
		return &ItemCollectedEvent{}
	case EventTypeLogStart:
		return &LogStartEvent{}
	case EventTypeLogReport:
		return &LogReportEvent{}
	case EventTypeExceptionInteract:
		return &ExceptionInteractEvent{}
	case EventTypeLogFinish:
		return &LogFinishEvent{}
	case EventTypeInternalError:
		return &InternalErrorEvent{}
	case EventTypeKeyboardInterrupt:
		return &KeyboardInterruptEvent{}
	case EventTypeSessionFinish:
		return &SessionFinishEvent{}
	case EventTypeRegisterOutputs:
		return &RegisterOutputsEvent{}
	default:
		return nil
	}
}
