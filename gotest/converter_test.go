package gotest

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/pithecene-io/testbridge/types"
)

type recorder struct {
	events []types.Event
	fail   error
}

func (r *recorder) WriteEvent(ev types.Event) error {
	if r.fail != nil {
		return r.fail
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) eventTypes() []types.EventType {
	out := make([]types.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.EventType()
	}
	return out
}

func (r *recorder) reports() []*types.Report {
	var out []*types.Report
	for _, ev := range r.events {
		if rep, ok := ev.(*types.LogReportEvent); ok {
			out = append(out, rep.Report)
		}
	}
	return out
}

func lines(ls ...string) *strings.Reader {
	return strings.NewReader(strings.Join(ls, "\n") + "\n")
}

func TestConverter_Outcomes(t *testing.T) {
	rec := &recorder{}
	c := NewConverter(rec, false)

	err := c.Consume(lines(
		`{"Action":"start","Package":"ex/pkg"}`,
		`{"Action":"run","Package":"ex/pkg","Test":"TestOK"}`,
		`{"Action":"output","Package":"ex/pkg","Test":"TestOK","Output":"=== RUN   TestOK\n"}`,
		`{"Action":"output","Package":"ex/pkg","Test":"TestOK","Output":"hello\n"}`,
		`{"Action":"output","Package":"ex/pkg","Test":"TestOK","Output":"--- PASS: TestOK (0.01s)\n"}`,
		`{"Action":"pass","Package":"ex/pkg","Test":"TestOK","Elapsed":0.01}`,
		`{"Action":"run","Package":"ex/pkg","Test":"TestBad"}`,
		`{"Action":"output","Package":"ex/pkg","Test":"TestBad","Output":"    bad_test.go:12: got 1, want 2\n"}`,
		`{"Action":"fail","Package":"ex/pkg","Test":"TestBad","Elapsed":0.02}`,
		`{"Action":"run","Package":"ex/pkg","Test":"TestSkip"}`,
		`{"Action":"output","Package":"ex/pkg","Test":"TestSkip","Output":"    skip_test.go:7: needs network\n"}`,
		`{"Action":"skip","Package":"ex/pkg","Test":"TestSkip"}`,
		`{"Action":"output","Package":"ex/pkg","Output":"FAIL\n"}`,
		`{"Action":"fail","Package":"ex/pkg","Elapsed":0.05}`,
	))
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if err := c.Finish(1); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	want := []types.EventType{
		types.EventTypeLogStart, types.EventTypeLogReport, types.EventTypeLogFinish,
		types.EventTypeLogStart, types.EventTypeExceptionInteract, types.EventTypeLogReport, types.EventTypeLogFinish,
		types.EventTypeLogStart, types.EventTypeLogReport, types.EventTypeLogFinish,
		types.EventTypeSessionFinish,
	}
	if got := rec.eventTypes(); !slices.Equal(got, want) {
		t.Fatalf("event types =\n%v\nwant\n%v", got, want)
	}

	reps := rec.reports()

	ok := reps[0]
	if ok.NodeID != "ex/pkg::TestOK" || ok.Outcome != types.OutcomePassed || ok.When != types.PhaseCall {
		t.Errorf("pass report = %+v", ok)
	}
	if ok.Duration != 0.01 {
		t.Errorf("Duration = %v, want 0.01", ok.Duration)
	}
	if len(ok.Sections) != 1 || ok.Sections[0].Name != "Captured stdout call" || ok.Sections[0].Content != "hello\n" {
		t.Errorf("Sections = %+v", ok.Sections)
	}
	if ok.Location == nil || ok.Location.Path != "ex/pkg" || ok.Location.Domain != "TestOK" {
		t.Errorf("Location = %+v", ok.Location)
	}

	bad := reps[1]
	if bad.Outcome != types.OutcomeFailed {
		t.Errorf("fail outcome = %q", bad.Outcome)
	}
	if bad.LongRepr.Kind != types.LongReprRenderable || bad.LongRepr.Text != "    bad_test.go:12: got 1, want 2" {
		t.Errorf("fail LongRepr = %+v", bad.LongRepr)
	}
	exc := rec.events[4].(*types.ExceptionInteractEvent)
	if exc.NodeID != "ex/pkg::TestBad" || exc.When != types.PhaseCall {
		t.Errorf("exception event = %+v", exc)
	}
	if exc.ExcInfo.TypeName != "FAIL" || exc.ExcInfo.Message != "got 1, want 2" {
		t.Errorf("ExcInfo = %+v", exc.ExcInfo)
	}
	wantTB := []types.TracebackEntry{{Path: "bad_test.go", Line: 12, Function: "TestBad"}}
	if !slices.EqualFunc(exc.ExcInfo.Traceback, wantTB, func(a, b types.TracebackEntry) bool {
		return a.Path == b.Path && a.Line == b.Line && a.Function == b.Function
	}) {
		t.Errorf("Traceback = %+v", exc.ExcInfo.Traceback)
	}

	skip := reps[2]
	if skip.Outcome != types.OutcomeSkipped || skip.LongRepr.Kind != types.LongReprLocation {
		t.Fatalf("skip report = %+v", skip)
	}
	wantLoc := types.FileLocation{Path: "skip_test.go", Line: 7, Message: "Skipped: needs network"}
	if *skip.LongRepr.Location != wantLoc {
		t.Errorf("skip location = %+v, want %+v", *skip.LongRepr.Location, wantLoc)
	}

	finish := rec.events[len(rec.events)-1].(*types.SessionFinishEvent)
	if finish.ExitStatus != types.ExitTestsFailed {
		t.Errorf("ExitStatus = %v, want %v", finish.ExitStatus, types.ExitTestsFailed)
	}
	if ran, failed := c.Counts(); ran != 3 || failed != 1 {
		t.Errorf("Counts = %d, %d; want 3, 1", ran, failed)
	}
}

func TestConverter_ParallelTestsAreSerialized(t *testing.T) {
	rec := &recorder{}
	c := NewConverter(rec, false)

	err := c.Consume(lines(
		`{"Action":"run","Package":"p","Test":"TestA"}`,
		`{"Action":"run","Package":"p","Test":"TestB"}`,
		`{"Action":"output","Package":"p","Test":"TestA","Output":"a\n"}`,
		`{"Action":"output","Package":"p","Test":"TestB","Output":"b\n"}`,
		`{"Action":"pass","Package":"p","Test":"TestB"}`,
		`{"Action":"pass","Package":"p","Test":"TestA"}`,
	))
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}

	var starts []string
	for _, ev := range rec.events {
		if s, ok := ev.(*types.LogStartEvent); ok {
			starts = append(starts, s.NodeID)
		}
	}
	if want := []string{"p::TestB", "p::TestA"}; !slices.Equal(starts, want) {
		t.Errorf("start order = %v, want %v", starts, want)
	}
	reps := rec.reports()
	if reps[0].Sections[0].Content != "b\n" || reps[1].Sections[0].Content != "a\n" {
		t.Errorf("output crossed between tests: %+v / %+v", reps[0].Sections, reps[1].Sections)
	}
}

func TestConverter_SubtestsAreSeparateNodes(t *testing.T) {
	rec := &recorder{}
	c := NewConverter(rec, false)

	err := c.Consume(lines(
		`{"Action":"run","Package":"p","Test":"TestT"}`,
		`{"Action":"run","Package":"p","Test":"TestT/case_1"}`,
		`{"Action":"pass","Package":"p","Test":"TestT/case_1"}`,
		`{"Action":"pass","Package":"p","Test":"TestT"}`,
	))
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	var ids []string
	for _, rep := range rec.reports() {
		ids = append(ids, rep.NodeID)
	}
	if want := []string{"p::TestT/case_1", "p::TestT"}; !slices.Equal(ids, want) {
		t.Errorf("node ids = %v, want %v", ids, want)
	}
}

func TestConverter_PackageFailureWithoutTest(t *testing.T) {
	rec := &recorder{}
	c := NewConverter(rec, false)

	err := c.Consume(lines(
		`{"Action":"output","Package":"ex/broken","Output":"panic: init failed\n"}`,
		`{"Action":"output","Package":"ex/broken","Output":"FAIL\tex/broken\t0.01s\n"}`,
		`{"Action":"fail","Package":"ex/broken","Elapsed":0.01}`,
	))
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if err := c.Finish(1); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	want := []types.EventType{types.EventTypeExceptionInteract, types.EventTypeSessionFinish}
	if got := rec.eventTypes(); !slices.Equal(got, want) {
		t.Fatalf("event types = %v, want %v", got, want)
	}
	exc := rec.events[0].(*types.ExceptionInteractEvent)
	if exc.NodeID != "ex/broken" || exc.When != types.PhaseCollect {
		t.Errorf("exception = %+v", exc)
	}
	if exc.ExcInfo.Message != "panic: init failed\nFAIL\tex/broken\t0.01s" {
		t.Errorf("Message = %q", exc.ExcInfo.Message)
	}
	if got := rec.events[1].(*types.SessionFinishEvent).ExitStatus; got != types.ExitTestsFailed {
		t.Errorf("ExitStatus = %v", got)
	}
}

func TestConverter_NonJSONLinesIgnored(t *testing.T) {
	rec := &recorder{}
	c := NewConverter(rec, false)

	err := c.Consume(lines(
		`# ex/pkg`,
		`not json at all`,
		`{"Action":"run","Package":"p","Test":"TestA"}`,
		`{"Action":"pass","Package":"p","Test":"TestA"}`,
	))
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if len(rec.reports()) != 1 {
		t.Errorf("reports = %d, want 1", len(rec.reports()))
	}
}

func TestConverter_FinishStatus(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		exitCode int
		want     types.ExitStatus
	}{
		{
			name:     "all passed",
			input:    []string{`{"Action":"pass","Package":"p","Test":"TestA"}`},
			exitCode: 0,
			want:     types.ExitOK,
		},
		{
			name:     "no tests",
			input:    []string{`{"Action":"pass","Package":"p"}`},
			exitCode: 0,
			want:     types.ExitNoTestsCollected,
		},
		{
			name:     "exit 1 without results",
			input:    []string{`{"Action":"start","Package":"p"}`},
			exitCode: 1,
			want:     types.ExitTestsFailed,
		},
		{
			name:     "bad flags",
			input:    []string{`flag provided but not defined: -bogus`},
			exitCode: 2,
			want:     types.ExitUsageError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			c := NewConverter(rec, false)
			if err := c.Consume(lines(tt.input...)); err != nil {
				t.Fatalf("Consume failed: %v", err)
			}
			if err := c.Finish(tt.exitCode); err != nil {
				t.Fatalf("Finish failed: %v", err)
			}
			got := rec.events[len(rec.events)-1].(*types.SessionFinishEvent).ExitStatus
			if got != tt.want {
				t.Errorf("ExitStatus = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConverter_ListMode(t *testing.T) {
	rec := &recorder{}
	c := NewConverter(rec, true)

	err := c.Consume(lines(
		`{"Action":"start","Package":"ex/pkg"}`,
		`{"Action":"output","Package":"ex/pkg","Output":"TestAlpha\n"}`,
		`{"Action":"output","Package":"ex/pkg","Output":"BenchmarkBeta\n"}`,
		`{"Action":"output","Package":"ex/pkg","Output":"ok  \tex/pkg\t0.01s\n"}`,
		`{"Action":"pass","Package":"ex/pkg","Elapsed":0.01}`,
	))
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if err := c.Finish(0); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	var names []string
	for _, ev := range rec.events {
		if item, ok := ev.(*types.ItemCollectedEvent); ok {
			if item.Module != "ex/pkg" {
				t.Errorf("Module = %q", item.Module)
			}
			names = append(names, item.Name)
		}
	}
	if want := []string{"TestAlpha", "BenchmarkBeta"}; !slices.Equal(names, want) {
		t.Errorf("collected = %v, want %v", names, want)
	}
	if got := rec.events[len(rec.events)-1].(*types.SessionFinishEvent).ExitStatus; got != types.ExitOK {
		t.Errorf("ExitStatus = %v", got)
	}
}

func TestConverter_Start(t *testing.T) {
	rec := &recorder{}
	c := NewConverter(rec, false)
	if err := c.Start("go1.23.1", "0.4.0"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	ev := rec.events[0].(*types.SessionStartEvent)
	if ev.Runtime == nil || ev.Runtime.Name != "Go" || ev.Runtime.Version != "1.23.1" {
		t.Errorf("Runtime = %+v", ev.Runtime)
	}
	if len(ev.Components) != 1 || ev.Components[0].Name != "testbridge" {
		t.Errorf("Components = %+v", ev.Components)
	}

	rec = &recorder{}
	if err := NewConverter(rec, false).Start("", "0.4.0"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if rec.events[0].(*types.SessionStartEvent).Runtime != nil {
		t.Error("expected no runtime when the go version is unknown")
	}
}

func TestConverter_EmitError(t *testing.T) {
	boom := errors.New("pipe closed")
	c := NewConverter(&recorder{fail: boom}, false)
	err := c.Consume(lines(`{"Action":"pass","Package":"p","Test":"TestA"}`))
	if !errors.Is(err, boom) {
		t.Errorf("Consume error = %v, want %v", err, boom)
	}
}

func TestLogLines(t *testing.T) {
	file, line, msgs := logLines([]string{
		"    a_test.go:3: first\n",
		"        continued\n",
		"unrelated\n",
		"    b_test.go:9: second\n",
	})
	if file != "a_test.go" || line != 3 {
		t.Errorf("location = %s:%d, want a_test.go:3", file, line)
	}
	if want := []string{"first\ncontinued", "second"}; !slices.Equal(msgs, want) {
		t.Errorf("msgs = %q, want %q", msgs, want)
	}
}
