package repr

import (
	"fmt"
	"strings"

	"github.com/pithecene-io/testbridge/types"
)

// Style selects the traceback layout.
type Style int

const (
	// StyleLong shows source excerpts, "E" lines, locals and per-entry locations.
	StyleLong Style = iota
	// StyleNative mimics an interpreter's own "most recent call last" traceback.
	StyleNative
)

// String returns the style name.
func (s Style) String() string {
	switch s {
	case StyleNative:
		return "native"
	default:
		return "long"
	}
}

// Options control exception rendering.
type Options struct {
	Style Style
	// ShowLocals renders each entry's local variables (long style only).
	ShowLocals bool
	// FullTrace renders every entry; otherwise only the innermost one.
	FullTrace bool
	// FuncArgs renders each entry's function arguments (long style only).
	FuncArgs bool
}

// Diagnostic returns the options used for test diagnostics:
// everything shown, in the given style.
func Diagnostic(style Style) Options {
	return Options{Style: style, ShowLocals: true, FullTrace: true, FuncArgs: true}
}

const (
	indent     = "    "
	failMarker = ">   "
	localsFmt  = "%-10s = %s"
)

// ExceptionRepr is a rendered view of an exception.
type ExceptionRepr struct {
	info types.ExceptionInfo
	opts Options
}

// FromException builds a representation of info. A nil info yields an
// empty exception rather than an error.
func FromException(info *types.ExceptionInfo, opts Options) *ExceptionRepr {
	r := &ExceptionRepr{opts: opts}
	if info != nil {
		r.info = *info
	}
	return r
}

// Crash returns the location the exception was raised from.
func (r *ExceptionRepr) Crash() types.FileLocation {
	return r.info.CrashLocation()
}

// Traceback returns the traceback portion of the representation.
func (r *ExceptionRepr) Traceback() Renderable {
	entries := r.info.Traceback
	if !r.opts.FullTrace && len(entries) > 1 {
		entries = entries[len(entries)-1:]
	}
	if r.opts.Style == StyleNative {
		return &nativeTraceback{entries: entries, exconly: r.info.ExceptionOnly()}
	}
	return &longTraceback{
		entries:  entries,
		info:     &r.info,
		locals:   r.opts.ShowLocals,
		funcArgs: r.opts.FuncArgs,
	}
}

// ToTerminal implements Renderable.
func (r *ExceptionRepr) ToTerminal(tw *TerminalWriter) {
	r.Traceback().ToTerminal(tw)
}

type nativeTraceback struct {
	entries []types.TracebackEntry
	exconly string
}

func (t *nativeTraceback) ToTerminal(tw *TerminalWriter) {
	if len(t.entries) > 0 {
		tw.BoldLine("Traceback (most recent call last):")
	}
	for _, e := range t.entries {
		fn := e.Function
		if fn == "" {
			fn = "<module>"
		}
		tw.Line(fmt.Sprintf("  File %q, line %d, in %s", e.Path, e.Line, fn))
		if src, ok := sourceLine(e); ok {
			tw.Line(indent + strings.TrimSpace(src))
		}
	}
	if t.exconly != "" {
		tw.ErrorLine(t.exconly)
	}
}

type longTraceback struct {
	entries  []types.TracebackEntry
	info     *types.ExceptionInfo
	locals   bool
	funcArgs bool
}

func (t *longTraceback) ToTerminal(tw *TerminalWriter) {
	if len(t.entries) == 0 {
		for _, l := range exconlyLines(t.info, 0) {
			tw.ErrorLine(l)
		}
		return
	}
	for i, e := range t.entries {
		last := i == len(t.entries)-1
		t.entry(tw, e, last)
		if !last {
			tw.Sep("_ ", "")
		}
	}
}

func (t *longTraceback) entry(tw *TerminalWriter, e types.TracebackEntry, last bool) {
	if t.funcArgs && len(e.Args) > 0 {
		args := make([]string, 0, len(e.Args))
		for _, a := range e.Args {
			args = append(args, a.Name+" = "+a.Value)
		}
		tw.Line(strings.Join(args, ", "))
		tw.Line("")
	}

	failIndent := 0
	lines := sourceExcerpt(e)
	if len(lines) == 0 {
		tw.Line(indent + "???")
	} else {
		for j, l := range lines {
			if j == len(lines)-1 {
				tw.Line(failMarker + l)
				failIndent = len(l) - len(strings.TrimLeft(l, " \t"))
			} else {
				tw.Line(indent + l)
			}
		}
	}
	if last {
		for _, l := range exconlyLines(t.info, failIndent) {
			tw.ErrorLine(l)
		}
	}

	if t.locals && len(e.Locals) > 0 {
		tw.Line("")
		for _, v := range e.Locals {
			tw.Line(fmt.Sprintf(localsFmt, v.Name, v.Value))
		}
	}

	msg := ""
	if last {
		msg = t.info.TypeName
	}
	tw.Line("")
	tw.BoldLine(fmt.Sprintf("%s:%d: %s", e.Path, e.Line, msg))
}

// exconlyLines prefixes each line of the exception-only text with "E",
// padded to line up with the failing source line.
func exconlyLines(info *types.ExceptionInfo, failIndent int) []string {
	text := info.ExceptionOnly()
	if text == "" {
		return nil
	}
	prefix := "E" + strings.Repeat(" ", len(indent)-1+failIndent)
	var out []string
	for _, l := range strings.Split(text, "\n") {
		out = append(out, prefix+l)
	}
	return out
}

// sourceExcerpt returns the entry's source up to and including the failing
// line, dedented. Empty when the failing line is not covered by Source.
func sourceExcerpt(e types.TracebackEntry) []string {
	idx := e.Line - e.SourceFirstLine
	if len(e.Source) == 0 || idx < 0 || idx >= len(e.Source) {
		return nil
	}
	return dedent(e.Source[:idx+1])
}

func sourceLine(e types.TracebackEntry) (string, bool) {
	idx := e.Line - e.SourceFirstLine
	if idx < 0 || idx >= len(e.Source) {
		return "", false
	}
	return e.Source[idx], true
}

func dedent(lines []string) []string {
	minIndent := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if minIndent < 0 || n < minIndent {
			minIndent = n
		}
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		switch {
		case minIndent <= 0:
			out[i] = l
		case len(l) >= minIndent:
			out[i] = l[minIndent:]
		default:
			out[i] = strings.TrimLeft(l, " \t")
		}
	}
	return out
}
