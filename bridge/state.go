package bridge

// State is the session's position in the test lifecycle.
type State int

const (
	// StateIdle is between tests.
	StateIdle State = iota
	// StateCollecting is discovery-only mode; nothing framed is emitted.
	StateCollecting
	// StateInTest is between a test's start and finish.
	StateInTest
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollecting:
		return "collecting"
	case StateInTest:
		return "in_test"
	default:
		return "unknown"
	}
}
