package bridge

import (
	"strconv"

	"github.com/pithecene-io/testbridge/wire"
)

// Accumulator is the pending record of the running test: a field set that
// grows across the test's phases and is emitted once at finish.
//
// Not safe for concurrent use; owned by a single Session.
type Accumulator struct {
	fields wire.Fields
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{fields: make(wire.Fields)}
}

// Set stores value under field. Last write wins.
func (a *Accumulator) Set(field, value string) {
	a.fields[field] = value
}

// SetInt stores n in decimal.
func (a *Accumulator) SetInt(field string, n int) {
	a.fields[field] = strconv.Itoa(n)
}

// AppendSection merges an engine-supplied section under its own name.
// A section named like a reserved field overwrites it.
func (a *Accumulator) AppendSection(name, content string) {
	a.fields[name] = content
}

// Get returns the stored value for field.
func (a *Accumulator) Get(field string) (string, bool) {
	v, ok := a.fields[field]
	return v, ok
}

// Len returns the number of stored fields.
func (a *Accumulator) Len() int {
	return len(a.fields)
}

// FlushAndClear returns the accumulated fields and leaves the accumulator empty.
// The returned map is owned by the caller.
func (a *Accumulator) FlushAndClear() wire.Fields {
	out := a.fields
	a.fields = make(wire.Fields, len(out))
	return out
}

// Clear discards all accumulated fields.
func (a *Accumulator) Clear() {
	clear(a.fields)
}
