package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/testbridge/types"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		entries = append(entries, m)
	}
	return entries
}

func TestLogger_SessionContext(t *testing.T) {
	var buf bytes.Buffer
	meta := &types.SessionMeta{SessionID: "sess-1", Engine: "pytest"}
	logger := newLoggerWithWriter(meta, &buf, zap.NewAtomicLevelAt(zapcore.DebugLevel))

	logger.Info("test started", map[string]any{"nodeid": "t::a"})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e["session_id"] != "sess-1" {
		t.Errorf("session_id = %v, want %q", e["session_id"], "sess-1")
	}
	if e["engine"] != "pytest" {
		t.Errorf("engine = %v, want %q", e["engine"], "pytest")
	}
	if e["level"] != "info" {
		t.Errorf("level = %v, want %q", e["level"], "info")
	}
	if e["message"] != "test started" {
		t.Errorf("message = %v, want %q", e["message"], "test started")
	}
	fields, ok := e["fields"].(map[string]any)
	if !ok || fields["nodeid"] != "t::a" {
		t.Errorf("fields = %v, want nodeid t::a", e["fields"])
	}
}

func TestLogger_OmitsEmptyEngine(t *testing.T) {
	var buf bytes.Buffer
	logger := newLoggerWithWriter(&types.SessionMeta{SessionID: "s"}, &buf, zap.NewAtomicLevelAt(zapcore.DebugLevel))

	logger.Warn("x", nil)

	entries := decodeLines(t, &buf)
	if _, ok := entries[0]["engine"]; ok {
		t.Errorf("engine should be absent, got %v", entries[0]["engine"])
	}
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&types.SessionMeta{SessionID: "s"}).WithOutput(&buf)

	logger.Debug("hidden", nil)
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered at info level, got %q", buf.String())
	}

	if err := logger.SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel failed: %v", err)
	}
	logger.Debug("shown", nil)

	entries := decodeLines(t, &buf)
	if len(entries) != 1 || entries[0]["message"] != "shown" {
		t.Errorf("entries = %v, want one debug entry", entries)
	}
	if entries[0]["session_id"] != "s" {
		t.Errorf("WithOutput should keep session fields, got %v", entries[0])
	}

	if err := logger.SetLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLogger_Sugar(t *testing.T) {
	var buf bytes.Buffer
	logger := newLoggerWithWriter(&types.SessionMeta{SessionID: "s"}, &buf, zap.NewAtomicLevelAt(zapcore.DebugLevel))

	logger.Sugar().With("path", "out.log").Errorf("failed after %d tries", 3)

	entries := decodeLines(t, &buf)
	if entries[0]["message"] != "failed after 3 tries" {
		t.Errorf("message = %v", entries[0]["message"])
	}
	if entries[0]["path"] != "out.log" {
		t.Errorf("path = %v, want %q", entries[0]["path"], "out.log")
	}
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	logger.Error("discarded", map[string]any{"k": 1})
	logger.Sugar().Infof("discarded %s", "too")
}
