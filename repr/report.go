package repr

import (
	"fmt"

	"github.com/pithecene-io/testbridge/types"
)

// FileLocation renders a location as "path:line: message".
type FileLocation types.FileLocation

// ToTerminal implements Renderable.
func (l FileLocation) ToTerminal(tw *TerminalWriter) {
	tw.Line(fmt.Sprintf("%s:%d: %s", l.Path, l.Line, l.Message))
}

// LongRepr returns a Renderable for a report's long representation,
// or nil when there is nothing to render.
func LongRepr(lr types.LongRepr) Renderable {
	switch lr.Kind {
	case types.LongReprLocation:
		if lr.Location == nil {
			return nil
		}
		return FileLocation(*lr.Location)
	case types.LongReprRenderable:
		if lr.Exception != nil {
			return FromException(lr.Exception, Diagnostic(StyleLong))
		}
		if lr.Text != "" {
			return Text(lr.Text)
		}
	}
	return nil
}

// ForReport returns a Renderable for everything a report writes to a
// terminal, which is its long representation. Nil for a report without one.
func ForReport(rep *types.Report) Renderable {
	if rep == nil {
		return nil
	}
	return LongRepr(rep.LongRepr)
}
