package reader

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pithecene-io/testbridge/bridge"
	"github.com/pithecene-io/testbridge/iox"
	"github.com/pithecene-io/testbridge/wire"
)

// Stream is a decoded capture.
type Stream struct {
	messages []*wire.Message
	// err is the decode error that stopped reading, if any.
	err error
}

// Open loads a capture from path. "-" reads stdin.
func Open(path string) (*Stream, error) {
	if path == "" || path == "-" {
		return Load(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open capture: %w", err)
	}
	defer iox.DiscardClose(f)
	return Load(f)
}

// Load decodes r to the end.
//
// A stream cut off inside a message still loads: the complete messages are
// kept and Truncated reports the cut. A malformed stream is an error.
func Load(r io.Reader) (*Stream, error) {
	msgs, err := wire.NewDecoder(r).ReadAll()
	if err != nil {
		var de *wire.DecodeError
		if !errors.As(err, &de) || de.Kind != wire.DecodeErrorPartial {
			return nil, fmt.Errorf("message %d: %w", len(msgs)+1, err)
		}
	}
	return &Stream{messages: msgs, err: err}, nil
}

// Len returns the number of complete messages.
func (s *Stream) Len() int {
	return len(s.messages)
}

// Truncated reports whether the stream ended inside a message.
func (s *Stream) Truncated() bool {
	return s.err != nil
}

// Summaries lists messages, optionally only those named name.
// Indexes are 1-based positions in the full stream.
func (s *Stream) Summaries(name string) []MessageSummary {
	out := make([]MessageSummary, 0, len(s.messages))
	for i, m := range s.messages {
		if name != "" && m.Name != name {
			continue
		}
		nodeID, _ := m.Field(bridge.FieldNodeID)
		out = append(out, MessageSummary{
			Index:  i + 1,
			Name:   m.Name,
			NodeID: nodeID,
			Fields: len(m.Fields),
		})
	}
	return out
}

// Detail returns message index (1-based).
func (s *Stream) Detail(index int) (*MessageDetail, error) {
	if index < 1 || index > len(s.messages) {
		return nil, fmt.Errorf("message %d out of range (stream has %d)", index, len(s.messages))
	}
	m := s.messages[index-1]
	d := &MessageDetail{Index: index, Name: m.Name, Fields: make([]FieldValue, 0, len(m.Order))}
	for _, f := range m.Order {
		d.Fields = append(d.Fields, FieldValue{Name: f, Value: m.Fields[f]})
	}
	return d, nil
}

// Details returns every message matching name in full.
func (s *Stream) Details(name string) []*MessageDetail {
	var out []*MessageDetail
	for i, m := range s.messages {
		if name != "" && m.Name != name {
			continue
		}
		d, _ := s.Detail(i + 1)
		out = append(out, d)
	}
	return out
}

// Tests lists the finished test records, optionally filtered by category.
func (s *Stream) Tests(category string) []TestRow {
	var out []TestRow
	for _, m := range s.messages {
		if m.Name != msgLogFinish {
			continue
		}
		row := testRow(m)
		if category != "" && row.Category != category {
			continue
		}
		out = append(out, row)
	}
	return out
}

// Stats aggregates the stream.
func (s *Stream) Stats() *StreamStats {
	st := &StreamStats{
		Messages:  len(s.messages),
		ByName:    make(map[string]int),
		Outcomes:  make(map[string]int),
		Truncated: s.Truncated(),
	}
	for _, m := range s.messages {
		st.ByName[m.Name]++
		switch m.Name {
		case msgLogFinish:
			st.Tests++
			if cat := testRow(m).Category; cat != "" {
				st.Outcomes[cat]++
			}
		case msgException:
			st.Exceptions++
		case msgInternalError:
			st.InternalErrors++
		case msgSessionFinish:
			applyFinish(st, m)
		}
	}
	return st
}
