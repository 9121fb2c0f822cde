package reader

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pithecene-io/testbridge/wire"
)

type msg struct {
	name   string
	fields wire.Fields
}

func capture(t *testing.T, msgs ...msg) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := wire.NewEncoder(&buf)
	for _, m := range msgs {
		if err := enc.WriteMessage(m.name, m.fields); err != nil {
			t.Fatalf("WriteMessage failed: %v", err)
		}
	}
	return buf.Bytes()
}

func sampleStream(t *testing.T) []byte {
	return capture(t,
		msg{"sessionstart", wire.Fields{"platform": "linux", "info": "Go 1.23"}},
		msg{"runtest_logstart", wire.Fields{"nodeid": "p::TestA", "fspath": "p"}},
		msg{"runtest_logfinish", wire.Fields{"nodeid": "p::TestA", "fspath": "p", "line_number": "11", "result_category": "passed", "result_word": "PASSED"}},
		msg{"runtest_logstart", wire.Fields{"nodeid": "p::TestB", "fspath": "p"}},
		msg{"exception_interact", wire.Fields{"node": "p::TestB", "call_when": "call", "excinfo_native": "boom"}},
		msg{"runtest_logfinish", wire.Fields{"nodeid": "p::TestB", "fspath": "p", "result_category": "failed", "result_word": "FAILED", "outputs": "a.log\nb.log"}},
		msg{"sessionfinish", wire.Fields{"exitstatus": "1"}},
	)
}

func TestLoad(t *testing.T) {
	s, err := Load(bytes.NewReader(sampleStream(t)))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Len() != 7 {
		t.Errorf("Len = %d, want 7", s.Len())
	}
	if s.Truncated() {
		t.Error("expected complete stream")
	}
}

func TestLoad_Truncated(t *testing.T) {
	data := sampleStream(t)
	s, err := Load(bytes.NewReader(data[:len(data)-5]))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !s.Truncated() {
		t.Error("expected truncated stream")
	}
	if s.Len() != 6 {
		t.Errorf("Len = %d, want 6", s.Len())
	}
	if st := s.Stats(); st.ExitStatus != nil || !st.Truncated {
		t.Errorf("Stats = %+v", st)
	}
}

func TestLoad_Malformed(t *testing.T) {
	_, err := Load(strings.NewReader("*** START/x/1\nnot a header\n"))
	if err == nil {
		t.Fatal("expected error for malformed stream")
	}
	if !strings.Contains(err.Error(), "message 1") {
		t.Errorf("error = %v, want message position", err)
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.out")
	if err := os.WriteFile(path, sampleStream(t), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if s.Len() != 7 {
		t.Errorf("Len = %d, want 7", s.Len())
	}

	if _, err := Open(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSummaries(t *testing.T) {
	s, err := Load(bytes.NewReader(sampleStream(t)))
	if err != nil {
		t.Fatal(err)
	}

	all := s.Summaries("")
	if len(all) != 7 {
		t.Fatalf("len = %d, want 7", len(all))
	}
	if all[2].Index != 3 || all[2].NodeID != "p::TestA" || all[2].Fields != 5 {
		t.Errorf("summary[2] = %+v", all[2])
	}

	finishes := s.Summaries("runtest_logfinish")
	if len(finishes) != 2 || finishes[0].Index != 3 || finishes[1].Index != 6 {
		t.Errorf("filtered = %+v", finishes)
	}
}

func TestDetail(t *testing.T) {
	s, err := Load(bytes.NewReader(sampleStream(t)))
	if err != nil {
		t.Fatal(err)
	}

	d, err := s.Detail(7)
	if err != nil {
		t.Fatalf("Detail failed: %v", err)
	}
	if d.Name != "sessionfinish" || len(d.Fields) != 1 || d.Fields[0] != (FieldValue{Name: "exitstatus", Value: "1"}) {
		t.Errorf("Detail = %+v", d)
	}

	// Fields come back in wire order, which is sorted.
	d, _ = s.Detail(3)
	var names []string
	for _, f := range d.Fields {
		names = append(names, f.Name)
	}
	if got := strings.Join(names, ","); got != "fspath,line_number,nodeid,result_category,result_word" {
		t.Errorf("field order = %s", got)
	}

	for _, idx := range []int{0, 8} {
		if _, err := s.Detail(idx); err == nil {
			t.Errorf("Detail(%d): expected error", idx)
		}
	}

	if got := len(s.Details("exception_interact")); got != 1 {
		t.Errorf("Details(exception_interact) = %d, want 1", got)
	}
}

func TestTests(t *testing.T) {
	s, err := Load(bytes.NewReader(sampleStream(t)))
	if err != nil {
		t.Fatal(err)
	}

	rows := s.Tests("")
	if len(rows) != 2 {
		t.Fatalf("len = %d, want 2", len(rows))
	}
	if rows[0].Line == nil || *rows[0].Line != 11 {
		t.Errorf("rows[0].Line = %v, want 11", rows[0].Line)
	}
	if rows[1].Line != nil {
		t.Errorf("rows[1].Line = %v, want nil", *rows[1].Line)
	}
	if rows[1].Outputs != 2 {
		t.Errorf("rows[1].Outputs = %d, want 2", rows[1].Outputs)
	}

	failed := s.Tests("failed")
	if len(failed) != 1 || failed[0].NodeID != "p::TestB" || failed[0].Word != "FAILED" {
		t.Errorf("failed = %+v", failed)
	}
}

func TestStats(t *testing.T) {
	s, err := Load(bytes.NewReader(sampleStream(t)))
	if err != nil {
		t.Fatal(err)
	}

	st := s.Stats()
	if st.Messages != 7 || st.Tests != 2 || st.Exceptions != 1 || st.InternalErrors != 0 {
		t.Errorf("counts = %+v", st)
	}
	if st.ByName["runtest_logstart"] != 2 {
		t.Errorf("ByName = %v", st.ByName)
	}
	if st.Outcomes["passed"] != 1 || st.Outcomes["failed"] != 1 {
		t.Errorf("Outcomes = %v", st.Outcomes)
	}
	if st.ExitStatus == nil || *st.ExitStatus != 1 || st.ExitStatusName != "tests_failed" {
		t.Errorf("exit status = %v %q", st.ExitStatus, st.ExitStatusName)
	}
	if st.Interrupted {
		t.Error("unexpected interrupt")
	}
}

func TestStats_Interrupted(t *testing.T) {
	data := capture(t, msg{"sessionfinish", wire.Fields{"exitstatus": "2", "kbdintr_message": "KeyboardInterrupt"}})
	s, err := Load(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	st := s.Stats()
	if !st.Interrupted || st.ExitStatusName != "interrupted" {
		t.Errorf("Stats = %+v", st)
	}
}
