// Package reader provides the read side of the testbridge CLI: it loads a
// captured protocol stream and derives the views rendered by inspect, tests
// and stats.
//
// Views are plain structs with json tags so every output format, including
// the TUI, renders the same payload.
package reader

// MessageSummary is one row of the inspect listing.
type MessageSummary struct {
	Index  int    `json:"index" yaml:"index"`
	Name   string `json:"name" yaml:"name"`
	NodeID string `json:"nodeid" yaml:"nodeid"`
	Fields int    `json:"fields" yaml:"fields"`
}

// MessageDetail is the full view of one message.
type MessageDetail struct {
	Index int    `json:"index" yaml:"index"`
	Name  string `json:"name" yaml:"name"`
	// Fields are in wire order.
	Fields []FieldValue `json:"fields" yaml:"fields"`
}

// FieldValue is one field of a message.
type FieldValue struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// TestRow is one finished test record.
type TestRow struct {
	NodeID   string `json:"nodeid" yaml:"nodeid"`
	Category string `json:"result_category" yaml:"result_category"`
	Word     string `json:"result_word" yaml:"result_word"`
	Path     string `json:"fspath" yaml:"fspath"`
	Line     *int   `json:"line_number" yaml:"line_number"`
	Outputs  int    `json:"outputs" yaml:"outputs"`
}

// StreamStats aggregates a whole stream.
type StreamStats struct {
	Messages       int            `json:"messages" yaml:"messages"`
	ByName         map[string]int `json:"by_name" yaml:"by_name"`
	Tests          int            `json:"tests" yaml:"tests"`
	Outcomes       map[string]int `json:"outcomes" yaml:"outcomes"`
	Exceptions     int            `json:"exceptions" yaml:"exceptions"`
	InternalErrors int            `json:"internal_errors" yaml:"internal_errors"`
	// ExitStatus is nil when the stream has no sessionfinish.
	ExitStatus     *int   `json:"exit_status" yaml:"exit_status"`
	ExitStatusName string `json:"exit_status_name" yaml:"exit_status_name"`
	Interrupted    bool   `json:"interrupted" yaml:"interrupted"`
	// Truncated is set when the stream ended inside a message.
	Truncated bool `json:"truncated" yaml:"truncated"`
}
