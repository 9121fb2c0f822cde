package ipc

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/testbridge/types"
)

// Writer is the engine side of the event stream: it wraps each event in an
// Envelope with a monotonically increasing seq and writes it as one frame.
// Safe for concurrent use; frames are never interleaved.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	seq int64
	now func() time.Time
}

// NewWriter creates a writer emitting frames to w. Seq starts at 1.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, now: time.Now}
}

// WriteEvent encodes ev and writes it as a single frame.
func (w *Writer) WriteEvent(ev types.Event) error {
	payload, err := msgpack.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", ev.EventType(), err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	env := &Envelope{
		ContractVersion: types.ContractVersion,
		Seq:             w.seq + 1,
		Type:            ev.EventType(),
		Ts:              w.now().UTC().Format(time.RFC3339Nano),
		Payload:         payload,
	}
	frame, err := EncodeFrame(env)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write %s frame: %w", ev.EventType(), err)
	}
	w.seq = env.Seq
	return nil
}

// Seq returns the seq of the last frame written, 0 if none.
func (w *Writer) Seq() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}
