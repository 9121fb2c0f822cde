package types

import "strings"

// Variable is a named, already-rendered value (function argument or local).
type Variable struct {
	Name  string `msgpack:"name"`
	Value string `msgpack:"value"`
}

// TracebackEntry is one frame of a traceback, innermost last.
type TracebackEntry struct {
	Path     string `msgpack:"path"`
	Line     int    `msgpack:"line"`
	Function string `msgpack:"function"`
	// Source holds the frame's source lines; SourceFirstLine is the file
	// line number of Source[0]. Either may be empty when source is unavailable.
	Source          []string   `msgpack:"source,omitempty"`
	SourceFirstLine int        `msgpack:"source_first_line,omitempty"`
	Args            []Variable `msgpack:"args,omitempty"`
	Locals          []Variable `msgpack:"locals,omitempty"`
}

// ExceptionInfo is an engine-native exception with its traceback.
type ExceptionInfo struct {
	TypeName  string           `msgpack:"type_name"`
	Message   string           `msgpack:"message"`
	Traceback []TracebackEntry `msgpack:"traceback,omitempty"`
	// Crash overrides the crash location derived from the innermost entry.
	Crash *FileLocation `msgpack:"crash,omitempty"`
}

// ExceptionOnly returns "<TypeName>: <Message>", or just the type name
// when the message is empty.
func (e *ExceptionInfo) ExceptionOnly() string {
	msg := strings.TrimRight(e.Message, "\n")
	if msg == "" {
		return e.TypeName
	}
	if e.TypeName == "" {
		return msg
	}
	return e.TypeName + ": " + msg
}

// CrashLocation returns where the exception was raised.
// Falls back to the innermost traceback entry, then to an empty location.
// The message is always the exception-only line.
func (e *ExceptionInfo) CrashLocation() FileLocation {
	if e.Crash != nil {
		loc := *e.Crash
		if loc.Message == "" {
			loc.Message = e.ExceptionOnly()
		}
		return loc
	}
	loc := FileLocation{Message: e.ExceptionOnly()}
	if n := len(e.Traceback); n > 0 {
		loc.Path = e.Traceback[n-1].Path
		loc.Line = e.Traceback[n-1].Line
	}
	return loc
}
