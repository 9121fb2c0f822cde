package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/testbridge/types"
)

// encodeFrame encodes a payload with length prefix.
func encodeFrame(payload []byte) []byte {
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return buf
}

func fixedClock() time.Time {
	return time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
}

func TestWriter_RoundTrip(t *testing.T) {
	line := 11
	events := []types.Event{
		&types.SessionStartEvent{Platform: "linux", Runtime: &types.Component{Name: "Python", Version: "3.12.1"}},
		&types.LogStartEvent{
			NodeID:   "tests/test_a.py::test_one",
			Location: &types.Location{Path: "tests/test_a.py", Line: &line, Domain: "test_one"},
		},
		&types.LogReportEvent{Report: &types.Report{
			NodeID:  "tests/test_a.py::test_one",
			When:    types.PhaseCall,
			Outcome: types.OutcomeFailed,
			LongRepr: types.LongRepr{
				Kind:      types.LongReprRenderable,
				Exception: &types.ExceptionInfo{TypeName: "AssertionError", Message: "boom"},
			},
			Sections: []types.Section{{Name: "Captured stdout call", Content: "hi\n"}},
		}},
		&types.LogFinishEvent{NodeID: "tests/test_a.py::test_one"},
		&types.SessionFinishEvent{ExitStatus: types.ExitTestsFailed},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.now = fixedClock
	for _, ev := range events {
		if err := w.WriteEvent(ev); err != nil {
			t.Fatalf("WriteEvent failed: %v", err)
		}
	}
	if w.Seq() != int64(len(events)) {
		t.Errorf("Seq() = %d, want %d", w.Seq(), len(events))
	}

	decoder := NewFrameDecoder(&buf)
	var decoded []types.Event
	for {
		payload, err := decoder.ReadFrame()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadFrame failed: %v", err)
		}
		env, err := DecodeEnvelope(payload)
		if err != nil {
			t.Fatalf("DecodeEnvelope failed: %v", err)
		}
		if env.Seq != int64(len(decoded)+1) {
			t.Errorf("Seq = %d, want %d", env.Seq, len(decoded)+1)
		}
		if env.ContractVersion != types.ContractVersion {
			t.Errorf("ContractVersion = %q, want %q", env.ContractVersion, types.ContractVersion)
		}
		if env.Ts != "2024-01-15T10:00:00Z" {
			t.Errorf("Ts = %q, want %q", env.Ts, "2024-01-15T10:00:00Z")
		}
		ev, err := DecodeEvent(env)
		if err != nil {
			t.Fatalf("DecodeEvent failed: %v", err)
		}
		decoded = append(decoded, ev)
	}

	if len(decoded) != len(events) {
		t.Fatalf("decoded %d events, want %d", len(decoded), len(events))
	}

	start, ok := decoded[1].(*types.LogStartEvent)
	if !ok {
		t.Fatalf("decoded[1] is %T, want *types.LogStartEvent", decoded[1])
	}
	if start.Location == nil || start.Location.Line == nil || *start.Location.Line != line {
		t.Errorf("Location = %+v, want line %d", start.Location, line)
	}

	report, ok := decoded[2].(*types.LogReportEvent)
	if !ok {
		t.Fatalf("decoded[2] is %T, want *types.LogReportEvent", decoded[2])
	}
	if report.Report.LongRepr.Exception == nil || report.Report.LongRepr.Exception.Message != "boom" {
		t.Errorf("LongRepr = %+v, want exception with message boom", report.Report.LongRepr)
	}
	if len(report.Report.Sections) != 1 || report.Report.Sections[0].Content != "hi\n" {
		t.Errorf("Sections = %+v", report.Report.Sections)
	}

	finish, ok := decoded[4].(*types.SessionFinishEvent)
	if !ok {
		t.Fatalf("decoded[4] is %T, want *types.SessionFinishEvent", decoded[4])
	}
	if finish.ExitStatus != types.ExitTestsFailed {
		t.Errorf("ExitStatus = %d, want %d", finish.ExitStatus, types.ExitTestsFailed)
	}
	if !finish.EventType().IsTerminal() {
		t.Error("session_finish should be terminal")
	}
}

func TestDecodeEvent_OptionalFieldsAbsent(t *testing.T) {
	env := &Envelope{Seq: 1, Type: types.EventTypeLogStart}
	payload, err := msgpack.Marshal(map[string]any{"nodeid": "n"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	env.Payload = payload

	ev, err := DecodeEvent(env)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	start := ev.(*types.LogStartEvent)
	if start.NodeID != "n" {
		t.Errorf("NodeID = %q, want %q", start.NodeID, "n")
	}
	if start.Location != nil {
		t.Errorf("Location = %+v, want nil", start.Location)
	}
}

func TestDecodeEvent_EmptyPayload(t *testing.T) {
	ev, err := DecodeEvent(&Envelope{Seq: 1, Type: types.EventTypeSessionStart})
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if _, ok := ev.(*types.SessionStartEvent); !ok {
		t.Errorf("decoded %T, want *types.SessionStartEvent", ev)
	}
}

func TestDecodeEvent_UnknownType(t *testing.T) {
	_, err := DecodeEvent(&Envelope{Seq: 7, Type: "artifact"})
	if err == nil {
		t.Fatal("expected error for unknown type")
	}
	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("expected *FrameError, got %T", err)
	}
	if frameErr.Kind != FrameErrorUnknownType {
		t.Errorf("Kind = %v, want FrameErrorUnknownType", frameErr.Kind)
	}
	if IsFatalFrameError(err) {
		t.Error("unknown types should not be fatal frame errors")
	}
}

func TestDecodeEvent_WrongPayloadShape(t *testing.T) {
	payload, err := msgpack.Marshal(map[string]any{"exit_status": "not a number"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	_, err = DecodeEvent(&Envelope{Seq: 1, Type: types.EventTypeSessionFinish, Payload: payload})

	var frameErr *FrameError
	if !errors.As(err, &frameErr) || frameErr.Kind != FrameErrorDecode {
		t.Errorf("expected FrameErrorDecode, got %v", err)
	}
}

// TestFrameDecoder_PartialFrame validates fatal error for truncated frames.
func TestFrameDecoder_PartialFrame(t *testing.T) {
	frame, err := EncodeFrame(&Envelope{ContractVersion: types.Version, Seq: 1, Type: types.EventTypeLogFinish})
	if err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}

	truncated := frame[:LengthPrefixSize+len(frame[LengthPrefixSize:])/2]

	_, err = NewFrameDecoder(bytes.NewReader(truncated)).ReadFrame()
	if err == nil {
		t.Fatal("expected error for truncated frame")
	}
	if !IsFatalFrameError(err) {
		t.Errorf("expected fatal frame error, got: %v", err)
	}

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("expected *FrameError, got %T", err)
	}
	if frameErr.Kind != FrameErrorPartial {
		t.Errorf("Kind = %v, want FrameErrorPartial", frameErr.Kind)
	}
}

// TestFrameDecoder_OversizedFrame validates fatal error for frames exceeding max size.
func TestFrameDecoder_OversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(MaxPayloadSize+1))

	_, err := NewFrameDecoder(&buf).ReadFrame()
	if err == nil {
		t.Fatal("expected error for oversized frame")
	}

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("expected *FrameError, got %T", err)
	}
	if frameErr.Kind != FrameErrorTooLarge {
		t.Errorf("Kind = %v, want FrameErrorTooLarge", frameErr.Kind)
	}
	if !frameErr.IsFatal() {
		t.Error("FrameErrorTooLarge.IsFatal() should return true")
	}
}

func TestFrameDecoder_EmptyStream(t *testing.T) {
	_, err := NewFrameDecoder(bytes.NewReader(nil)).ReadFrame()
	if err != io.EOF {
		t.Errorf("expected io.EOF, got: %v", err)
	}
}

func TestFrameDecoder_TruncatedLengthPrefix(t *testing.T) {
	_, err := NewFrameDecoder(bytes.NewReader([]byte{0x00, 0x00})).ReadFrame()
	if err == nil {
		t.Fatal("expected error for truncated length prefix")
	}
	if !IsFatalFrameError(err) {
		t.Errorf("expected fatal frame error, got: %v", err)
	}
}

// TestDecodeEnvelope_MalformedMsgpack validates decode errors are not fatal:
// the frame boundary was read correctly, only the content was bad.
func TestDecodeEnvelope_MalformedMsgpack(t *testing.T) {
	frame := encodeFrame([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF})

	payload, err := NewFrameDecoder(bytes.NewReader(frame)).ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	_, err = DecodeEnvelope(payload)
	if err == nil {
		t.Fatal("expected decode error for malformed msgpack")
	}

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("expected *FrameError, got %T", err)
	}
	if frameErr.Kind != FrameErrorDecode {
		t.Errorf("Kind = %v, want FrameErrorDecode", frameErr.Kind)
	}
	if IsFatalFrameError(err) {
		t.Error("decode errors should not be fatal")
	}
}

func TestFrameError_Unwrap(t *testing.T) {
	err := &FrameError{Kind: FrameErrorPartial, Msg: "test", Err: io.ErrUnexpectedEOF}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("Unwrap should allow errors.Is to find underlying error")
	}
	if got := err.Error(); got != "test: unexpected EOF" {
		t.Errorf("Error() = %q, want %q", got, "test: unexpected EOF")
	}
}

func TestIsFatalFrameError_NonFrameError(t *testing.T) {
	if IsFatalFrameError(errors.New("regular error")) {
		t.Error("regular errors should not be fatal frame errors")
	}
	if IsFatalFrameError(nil) {
		t.Error("nil should not be a fatal frame error")
	}
	if IsFatalFrameError(io.EOF) {
		t.Error("io.EOF should not be a fatal frame error")
	}
}

func BenchmarkReadAndDecodeEvent(b *testing.B) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for range 64 {
		ev := &types.LogReportEvent{Report: &types.Report{
			NodeID:   "tests/test_a.py::test_one",
			When:     types.PhaseCall,
			Outcome:  types.OutcomePassed,
			Sections: []types.Section{{Name: "Captured stdout call", Content: "ok\n"}},
		}}
		if err := w.WriteEvent(ev); err != nil {
			b.Fatalf("WriteEvent: %v", err)
		}
	}
	stream := buf.Bytes()

	b.ReportAllocs()
	b.SetBytes(int64(len(stream)))
	for b.Loop() {
		dec := NewFrameDecoder(bytes.NewReader(stream))
		for {
			payload, err := dec.ReadFrame()
			if err == io.EOF {
				break
			}
			if err != nil {
				b.Fatal(err)
			}
			env, err := DecodeEnvelope(payload)
			if err != nil {
				b.Fatal(err)
			}
			if _, err := DecodeEvent(env); err != nil {
				b.Fatal(err)
			}
		}
	}
}
