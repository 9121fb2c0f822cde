package types

// Phase is the execution phase a report or exception belongs to.
type Phase string

// Phase constants.
const (
	PhaseSetup    Phase = "setup"
	PhaseCall     Phase = "call"
	PhaseTeardown Phase = "teardown"
	PhaseCollect  Phase = "collect"
)

// Outcome is the engine's raw outcome for one phase.
type Outcome string

// Outcome constants.
const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Location is the (path, line, domain) triple the engine assigns to a test.
type Location struct {
	// Path is the file path relative to the session root.
	Path string `msgpack:"fspath"`
	// Line is the zero-based line number, nil when unknown.
	Line *int `msgpack:"line,omitempty"`
	// Domain is the human-readable test name within the file.
	Domain string `msgpack:"domain"`
}

// FileLocation points at a single line with a message.
// Used for crash locations and for structured long representations.
type FileLocation struct {
	Path    string `msgpack:"path"`
	Line    int    `msgpack:"line"`
	Message string `msgpack:"message"`
}

// Section is a named block of text contributed to a report
// (e.g. "Captured stdout call").
type Section struct {
	Name    string `msgpack:"name"`
	Content string `msgpack:"content"`
}

// LongReprKind discriminates the LongRepr variant.
type LongReprKind string

// LongRepr variants.
const (
	LongReprAbsent     LongReprKind = ""
	LongReprLocation   LongReprKind = "location"
	LongReprRenderable LongReprKind = "renderable"
)

// LongRepr is the report's long representation.
// Exactly one of the payload fields is meaningful, selected by Kind:
//   - LongReprLocation: Location
//   - LongReprRenderable: Exception, or Text when Exception is nil
//   - LongReprAbsent: none
type LongRepr struct {
	Kind      LongReprKind   `msgpack:"kind,omitempty"`
	Location  *FileLocation  `msgpack:"location,omitempty"`
	Exception *ExceptionInfo `msgpack:"exception,omitempty"`
	Text      string         `msgpack:"text,omitempty"`
}

// Report is the engine's report for one phase of one test.
type Report struct {
	NodeID   string    `msgpack:"nodeid"`
	When     Phase     `msgpack:"when"`
	Outcome  Outcome   `msgpack:"outcome"`
	Location *Location `msgpack:"location,omitempty"`
	LongRepr LongRepr  `msgpack:"longrepr"`
	Sections []Section `msgpack:"sections,omitempty"`
	// WasXFail holds the expected-failure reason when the test was marked xfail.
	WasXFail *string `msgpack:"wasxfail,omitempty"`
	// Duration is the phase duration in seconds.
	Duration float64 `msgpack:"duration,omitempty"`
	// Status is the engine's own classification, when it sends one.
	Status *TestStatus `msgpack:"status,omitempty"`
}

// Failed reports whether the phase failed.
func (r *Report) Failed() bool { return r.Outcome == OutcomeFailed }

// Skipped reports whether the phase was skipped.
func (r *Report) Skipped() bool { return r.Outcome == OutcomeSkipped }

// Passed reports whether the phase passed.
func (r *Report) Passed() bool { return r.Outcome == OutcomePassed }

// TestStatus is the engine's classification of a report.
// Empty Category and Word mean "nothing to record" (e.g. a passing setup phase).
type TestStatus struct {
	Category string `msgpack:"category"`
	Letter   string `msgpack:"letter"`
	Word     string `msgpack:"word"`
	// Reason is set when the engine classifies with a (word, reason) pair.
	Reason string `msgpack:"reason,omitempty"`
}
