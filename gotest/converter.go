// Package gotest drives `go test -json` as a bridge engine.
//
// test2json events are converted into lifecycle events. Parallel tests
// interleave in test2json output; the converter buffers each test until its
// final action so the bridge still sees one test at a time.
package gotest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pithecene-io/testbridge/types"
)

// TestEvent is a single event from go test -json output.
type TestEvent struct {
	Time    string  `json:"Time"`
	Action  string  `json:"Action"`
	Package string  `json:"Package"`
	Test    string  `json:"Test"`
	Elapsed float64 `json:"Elapsed"`
	Output  string  `json:"Output"`
}

// Emitter receives converted lifecycle events.
type Emitter interface {
	WriteEvent(ev types.Event) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ev types.Event) error

// WriteEvent implements Emitter.
func (f EmitterFunc) WriteEvent(ev types.Event) error { return f(ev) }

var (
	// "    foo_test.go:42: message"
	logLinePattern = regexp.MustCompile(`^\s+([\w.\-/]+\.go):(\d+): ?(.*)$`)
	// Test, benchmark, example and fuzz names printed by go test -list.
	listedNamePattern = regexp.MustCompile(`^(Test|Benchmark|Example|Fuzz)\w*$`)
)

// testState buffers one test until its final action.
type testState struct {
	output []string
}

// pkgState tracks per-package results.
type pkgState struct {
	output     []string
	testFailed bool
}

// Converter turns test2json output into lifecycle events.
// Not safe for concurrent use.
type Converter struct {
	emit        Emitter
	collectOnly bool

	tests    map[string]*testState
	packages map[string]*pkgState

	ran       int
	failed    int
	pkgFailed int
}

// NewConverter creates a converter writing to emit.
func NewConverter(emit Emitter, collectOnly bool) *Converter {
	return &Converter{
		emit:        emit,
		collectOnly: collectOnly,
		tests:       make(map[string]*testState),
		packages:    make(map[string]*pkgState),
	}
}

// Start emits the session start.
func (c *Converter) Start(goVersion, bridgeVersion string) error {
	ev := &types.SessionStartEvent{
		Components: []types.Component{{Name: "testbridge", Version: bridgeVersion}},
	}
	if goVersion != "" {
		ev.Runtime = &types.Component{Name: "Go", Version: strings.TrimPrefix(goVersion, "go")}
	}
	return c.emit.WriteEvent(ev)
}

// Consume reads test2json lines from r until EOF.
// Lines that are not JSON (build output printed before test2json takes over)
// are attributed to an unnamed package.
func (c *Converter) Consume(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev TestEvent
		if err := json.Unmarshal(line, &ev); err != nil || ev.Action == "" {
			ev = TestEvent{Action: "output", Output: string(line) + "\n"}
		}
		if err := c.Handle(&ev); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read go test output: %w", err)
	}
	return nil
}

// Handle processes one test2json event.
func (c *Converter) Handle(ev *TestEvent) error {
	if c.collectOnly {
		return c.handleList(ev)
	}
	if ev.Test == "" {
		return c.handlePackage(ev)
	}

	key := nodeID(ev.Package, ev.Test)
	switch ev.Action {
	case "run":
		c.tests[key] = &testState{}
	case "output":
		st := c.test(key)
		if !isFrameworkLine(ev.Output) {
			st.output = append(st.output, ev.Output)
		}
	case "pass", "fail", "skip":
		st := c.test(key)
		delete(c.tests, key)
		if ev.Action == "fail" {
			c.pkg(ev.Package).testFailed = true
		}
		return c.emitTest(ev, key, st)
	}
	return nil
}

// Finish emits the session finish. exitCode is go test's own exit code and
// only matters when no test result explains it.
func (c *Converter) Finish(exitCode int) error {
	status := types.ExitOK
	switch {
	case c.failed > 0 || c.pkgFailed > 0:
		status = types.ExitTestsFailed
	case exitCode > 1:
		status = types.ExitUsageError
	case exitCode == 1:
		status = types.ExitTestsFailed
	case c.ran == 0 && !c.collectOnly:
		status = types.ExitNoTestsCollected
	}
	return c.emit.WriteEvent(&types.SessionFinishEvent{ExitStatus: status})
}

// Counts returns the number of tests reported and how many failed.
func (c *Converter) Counts() (ran, failed int) {
	return c.ran, c.failed
}

func (c *Converter) test(key string) *testState {
	st, ok := c.tests[key]
	if !ok {
		st = &testState{}
		c.tests[key] = st
	}
	return st
}

func (c *Converter) pkg(name string) *pkgState {
	st, ok := c.packages[name]
	if !ok {
		st = &pkgState{}
		c.packages[name] = st
	}
	return st
}

func (c *Converter) emitTest(ev *TestEvent, key string, st *testState) error {
	c.ran++

	loc := &types.Location{Path: ev.Package, Domain: ev.Test}
	rep := &types.Report{
		NodeID:   key,
		When:     types.PhaseCall,
		Location: loc,
		Duration: ev.Elapsed,
	}
	out := strings.Join(st.output, "")
	file, line, msgs := logLines(st.output)

	events := []types.Event{&types.LogStartEvent{NodeID: key, Location: loc}}
	switch ev.Action {
	case "pass":
		rep.Outcome = types.OutcomePassed
	case "skip":
		rep.Outcome = types.OutcomeSkipped
		reason := strings.Join(msgs, "\n")
		if file != "" {
			rep.LongRepr = types.LongRepr{
				Kind:     types.LongReprLocation,
				Location: &types.FileLocation{Path: file, Line: line, Message: "Skipped: " + reason},
			}
		} else {
			rep.LongRepr = types.LongRepr{Kind: types.LongReprRenderable, Text: "Skipped"}
		}
	case "fail":
		c.failed++
		rep.Outcome = types.OutcomeFailed
		rep.LongRepr = types.LongRepr{Kind: types.LongReprRenderable, Text: strings.TrimRight(out, "\n")}
		if rep.LongRepr.Text == "" {
			rep.LongRepr.Text = "--- FAIL: " + ev.Test
		}
		exc := &types.ExceptionInfo{TypeName: "FAIL", Message: strings.Join(msgs, "\n")}
		if file != "" {
			exc.Traceback = []types.TracebackEntry{{Path: file, Line: line, Function: ev.Test}}
		}
		events = append(events, &types.ExceptionInteractEvent{NodeID: key, When: types.PhaseCall, ExcInfo: exc})
	}
	if out != "" && ev.Action != "fail" {
		rep.Sections = []types.Section{{Name: "Captured stdout call", Content: out}}
	}

	events = append(events,
		&types.LogReportEvent{Report: rep},
		&types.LogFinishEvent{NodeID: key, Location: loc},
	)
	for _, e := range events {
		if err := c.emit.WriteEvent(e); err != nil {
			return err
		}
	}
	return nil
}

// handlePackage deals with package-level events: build failures and
// package failures not explained by a failing test.
func (c *Converter) handlePackage(ev *TestEvent) error {
	st := c.pkg(ev.Package)
	switch ev.Action {
	case "output":
		st.output = append(st.output, ev.Output)
	case "fail":
		if st.testFailed {
			return nil
		}
		c.pkgFailed++
		msg := strings.TrimRight(strings.Join(st.output, ""), "\n")
		if msg == "" {
			msg = "package failed without a test failure"
		}
		node := ev.Package
		if node == "" {
			node = "build"
		}
		return c.emit.WriteEvent(&types.ExceptionInteractEvent{
			NodeID:  node,
			When:    types.PhaseCollect,
			ExcInfo: &types.ExceptionInfo{TypeName: "FAIL", Message: msg},
		})
	}
	return nil
}

// handleList converts go test -list output into collected items.
func (c *Converter) handleList(ev *TestEvent) error {
	if ev.Action != "output" {
		return nil
	}
	name := strings.TrimSpace(ev.Output)
	if !listedNamePattern.MatchString(name) {
		return nil
	}
	c.ran++
	return c.emit.WriteEvent(&types.ItemCollectedEvent{Module: ev.Package, Name: name})
}

func nodeID(pkg, test string) string {
	return pkg + "::" + test
}

// isFrameworkLine reports whether a line is go test's own progress chatter.
func isFrameworkLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, p := range []string{"=== RUN", "=== PAUSE", "=== CONT", "=== NAME", "--- PASS", "--- FAIL", "--- SKIP"} {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// logLines extracts t.Log-style lines: the first file:line location and
// every message, with continuation lines folded into their message.
func logLines(output []string) (file string, line int, msgs []string) {
	for _, l := range output {
		m := logLinePattern.FindStringSubmatch(strings.TrimRight(l, "\n"))
		if m == nil {
			if n := len(msgs); n > 0 && strings.HasPrefix(l, "        ") {
				msgs[n-1] += "\n" + strings.TrimSpace(l)
			}
			continue
		}
		if file == "" {
			file = m[1]
			line, _ = strconv.Atoi(m[2])
		}
		msgs = append(msgs, m[3])
	}
	return file, line, msgs
}
