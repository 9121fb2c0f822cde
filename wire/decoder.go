package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Decoder limits.
const (
	// MaxFieldSize bounds a single decoded field value (64 MiB).
	MaxFieldSize = 64 * 1024 * 1024
	// MaxFieldCount bounds the field count a start marker may declare.
	MaxFieldCount = 1 << 16
)

// fieldsHint caps map and slice preallocation; the declared count is
// untrusted until the fields are actually read.
const fieldsHint = 16

// DecodeErrorKind classifies decoding errors.
type DecodeErrorKind int

const (
	// DecodeErrorPartial indicates the stream ended inside a message.
	DecodeErrorPartial DecodeErrorKind = iota
	// DecodeErrorMalformed indicates a line that violates the framing.
	DecodeErrorMalformed
)

// DecodeError represents a framing violation found while decoding.
type DecodeError struct {
	Kind DecodeErrorKind
	Msg  string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Message is one decoded message.
type Message struct {
	Name   string
	Fields Fields
	// Order lists field names in the order they appeared on the wire.
	Order []string
}

// Field returns the named field and whether it was present.
func (m *Message) Field(name string) (string, bool) {
	v, ok := m.Fields[name]
	return v, ok
}

// Decoder reads framed messages from a stream.
// It follows the consumer's rules: strict markers, exact byte counts,
// a newline after every value, last write wins for duplicate field names.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// ReadMessage reads the next message.
//
// Errors:
//   - io.EOF: stream ended cleanly between messages
//   - *DecodeError with Kind=DecodeErrorPartial: stream ended inside a message
//   - *DecodeError with Kind=DecodeErrorMalformed: framing violation
func (d *Decoder) ReadMessage() (*Message, error) {
	line, err := d.readLine()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, partial("failed to read start marker", err)
	}

	name, count, err := parseStart(line)
	if err != nil {
		return nil, err
	}

	hint := min(count, fieldsHint)
	msg := &Message{Name: name, Fields: make(Fields, hint), Order: make([]string, 0, hint)}
	for i := 0; i < count; i++ {
		header, err := d.readLine()
		if err != nil {
			return nil, partial("failed to read field header", err)
		}
		field, size, err := parseHeader(header)
		if err != nil {
			return nil, err
		}

		value := make([]byte, size)
		if _, err := io.ReadFull(d.r, value); err != nil {
			return nil, partial(fmt.Sprintf("failed to read value of field %q", field), err)
		}
		eol, err := d.r.ReadByte()
		if err != nil {
			return nil, partial(fmt.Sprintf("missing newline after field %q", field), err)
		}
		if eol != '\n' {
			return nil, malformed(fmt.Sprintf("expected newline after field %q, got %q", field, eol))
		}

		if _, dup := msg.Fields[field]; !dup {
			msg.Order = append(msg.Order, field)
		}
		msg.Fields[field] = string(value)
	}

	end, err := d.readLine()
	if err != nil {
		return nil, partial("failed to read end marker", err)
	}
	if end != EndMarker {
		return nil, malformed(fmt.Sprintf("expected %q, got %q", EndMarker, end))
	}
	return msg, nil
}

// ReadAll decodes messages until EOF.
// On error, returns the messages decoded so far along with the error.
func (d *Decoder) ReadAll() ([]*Message, error) {
	var msgs []*Message
	for {
		msg, err := d.ReadMessage()
		if errors.Is(err, io.EOF) {
			return msgs, nil
		}
		if err != nil {
			return msgs, err
		}
		msgs = append(msgs, msg)
	}
}

// readLine reads up to and excluding '\n'. A final line without newline
// is reported as io.ErrUnexpectedEOF; no data at all is io.EOF.
func (d *Decoder) readLine() (string, error) {
	line, err := d.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimSuffix(line, "\n"), nil
}

func parseStart(line string) (string, int, error) {
	if !strings.HasPrefix(line, StartMarker) {
		return "", 0, malformed(fmt.Sprintf("expected %q, got %q", StartMarker+"...", line))
	}
	rest := strings.TrimPrefix(line, StartMarker)
	name, countStr, ok := strings.Cut(rest, "/")
	if !ok || name == "" {
		return "", 0, malformed(fmt.Sprintf("invalid start marker %q", line))
	}
	count, err := strconv.Atoi(countStr)
	if err != nil || count < 0 {
		return "", 0, malformed(fmt.Sprintf("invalid field count in %q", line))
	}
	if count > MaxFieldCount {
		return "", 0, malformed(fmt.Sprintf("field count %d exceeds maximum %d", count, MaxFieldCount))
	}
	return name, count, nil
}

func parseHeader(line string) (string, int, error) {
	i := strings.Index(line, ": ")
	if i <= 0 {
		return "", 0, malformed(fmt.Sprintf("invalid field header %q", line))
	}
	size, err := strconv.Atoi(line[i+2:])
	if err != nil || size < 0 {
		return "", 0, malformed(fmt.Sprintf("invalid field length in %q", line))
	}
	if size > MaxFieldSize {
		return "", 0, malformed(fmt.Sprintf("field length %d exceeds maximum %d", size, MaxFieldSize))
	}
	return line[:i], size, nil
}

func partial(msg string, err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return &DecodeError{Kind: DecodeErrorPartial, Msg: msg, Err: err}
}

func malformed(msg string) error {
	return &DecodeError{Kind: DecodeErrorMalformed, Msg: msg}
}
