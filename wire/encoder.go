// Package wire implements the framed text protocol read by the build-tool test engine.
//
// Each message is:
//
//	*** START/<name>/<fieldCount>\n
//	<fieldName>: <byteLength>\n
//	<fieldValue bytes>\n          (repeated fieldCount times)
//	*** END\n
//
// Field values are UTF-8. Field order is not significant; consumers look fields
// up by name.
package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Protocol markers.
const (
	StartMarker = "*** START/"
	EndMarker   = "*** END"
)

// Fields is the field set of one message.
type Fields map[string]string

// EncodingErrorKind classifies encoding errors.
type EncodingErrorKind int

const (
	// EncodingErrorContract is a caller bug: bad names or values that cannot be
	// rendered as text. Never recovered from.
	EncodingErrorContract EncodingErrorKind = iota
	// EncodingErrorWrite indicates the output stream rejected a write or flush.
	EncodingErrorWrite
)

// EncodingError represents a failure to emit a message.
type EncodingError struct {
	Kind  EncodingErrorKind
	Msg   string
	Field string
	Err   error
}

func (e *EncodingError) Error() string {
	msg := e.Msg
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field %q)", msg, e.Field)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// IsContractViolation returns true if err is an encoding contract violation.
func IsContractViolation(err error) bool {
	var encErr *EncodingError
	if errors.As(err, &encErr) {
		return encErr.Kind == EncodingErrorContract
	}
	return false
}

// Encoder writes framed messages to a stream.
// The stream is flushed after every field and after every end marker.
// Not safe for concurrent use.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder creates an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// WriteMessage encodes one message. Fields are written in sorted name order.
func (e *Encoder) WriteMessage(name string, fields Fields) error {
	if err := validateMessageName(name); err != nil {
		return err
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if err := validateFieldName(k); err != nil {
			return err
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if _, err := fmt.Fprintf(e.w, "%s%s/%d\n", StartMarker, name, len(keys)); err != nil {
		return writeErr(err, "")
	}

	for _, k := range keys {
		v := fields[k]
		if _, err := fmt.Fprintf(e.w, "%s: %d\n", k, len(v)); err != nil {
			return writeErr(err, k)
		}
		if _, err := e.w.WriteString(v); err != nil {
			return writeErr(err, k)
		}
		if err := e.w.WriteByte('\n'); err != nil {
			return writeErr(err, k)
		}
		if err := e.w.Flush(); err != nil {
			return writeErr(err, k)
		}
	}

	if _, err := e.w.WriteString(EndMarker + "\n"); err != nil {
		return writeErr(err, "")
	}
	if err := e.w.Flush(); err != nil {
		return writeErr(err, "")
	}
	return nil
}

// Encode converts loosely typed values with Stringify and writes the message.
// A nil map is a contract violation; an empty non-nil map is a valid message
// with no fields.
func (e *Encoder) Encode(name string, fields map[string]any) error {
	if fields == nil {
		return &EncodingError{Kind: EncodingErrorContract, Msg: "field set must be a non-nil map"}
	}
	converted := make(Fields, len(fields))
	for k, v := range fields {
		s, err := Stringify(v)
		if err != nil {
			return &EncodingError{Kind: EncodingErrorContract, Msg: "unsupported field value", Field: k, Err: err}
		}
		converted[k] = s
	}
	return e.WriteMessage(name, converted)
}

// Stringify renders a field value as text.
// Supported: string, []byte, bool, all integer and float kinds (including named
// types), and fmt.Stringer. Anything else is an error.
func Stringify(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case bool:
		return strconv.FormatBool(val), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), nil
	case reflect.String:
		return rv.String(), nil
	}

	if s, ok := v.(fmt.Stringer); ok {
		return s.String(), nil
	}
	return "", fmt.Errorf("cannot convert %T to string", v)
}

func validateMessageName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\n") {
		return &EncodingError{Kind: EncodingErrorContract, Msg: fmt.Sprintf("invalid message name %q", name)}
	}
	return nil
}

func validateFieldName(name string) error {
	if name == "" || strings.Contains(name, ": ") || strings.ContainsAny(name, "\n") {
		return &EncodingError{Kind: EncodingErrorContract, Msg: "invalid field name", Field: name}
	}
	return nil
}

// SanitizeFieldName turns an externally supplied name into a valid field
// name: newlines become spaces and every ": " loses its space. ok is false
// for an empty name, which has no valid form.
func SanitizeFieldName(name string) (clean string, ok bool) {
	if name == "" {
		return "", false
	}
	clean = strings.ReplaceAll(name, "\n", " ")
	for strings.Contains(clean, ": ") {
		clean = strings.ReplaceAll(clean, ": ", ":")
	}
	return clean, true
}

func writeErr(err error, field string) error {
	return &EncodingError{Kind: EncodingErrorWrite, Msg: "write failed", Field: field, Err: err}
}
