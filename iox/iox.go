// Package iox holds small I/O helpers shared by the engine, CLI, and adapters.
package iox

import "io"

// DiscardClose closes c and drops the error. For defers where nothing
// useful can be done about a failed close:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a func that closes c, for t.Cleanup.
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and drops its error.
func DiscardErr(fn func() error) { _ = fn() }

// Drain reads r to EOF and discards the bytes. A child process blocked on
// a full stdout pipe cannot exit until its reader drains it.
func Drain(r io.Reader) int64 {
	n, _ := io.Copy(io.Discard, r)
	return n
}
