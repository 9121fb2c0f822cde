// Package repr renders exceptions, tracebacks and reports into plain text.
//
// Rendering goes through a TerminalWriter: an isolated, non-interactive
// surface pinned to the ASCII color profile, so styled output degrades to
// plain text. Each Capture call builds and discards its own surface.
package repr

import (
	"bytes"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// DefaultWidth is the surface width used for separator lines.
const DefaultWidth = 80

// Renderable is anything that can draw itself onto a TerminalWriter.
type Renderable interface {
	ToTerminal(tw *TerminalWriter)
}

// TerminalWriter is a line-oriented text surface.
type TerminalWriter struct {
	out   io.Writer
	width int

	bold lipgloss.Style
	red  lipgloss.Style
}

// NewTerminalWriter creates a surface writing to w with no color or markup.
func NewTerminalWriter(w io.Writer) *TerminalWriter {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(termenv.Ascii)
	// Tabs in exception text are kept verbatim.
	base := r.NewStyle().TabWidth(lipgloss.NoTabConversion)
	return &TerminalWriter{
		out:   w,
		width: DefaultWidth,
		bold:  base.Bold(true),
		red:   base.Foreground(lipgloss.Color("1")).Bold(true),
	}
}

// Width returns the surface width.
func (tw *TerminalWriter) Width() int {
	return tw.width
}

// Write writes s as-is.
func (tw *TerminalWriter) Write(s string) {
	_, _ = io.WriteString(tw.out, s)
}

// Line writes s followed by a newline.
func (tw *TerminalWriter) Line(s string) {
	tw.Write(s + "\n")
}

// BoldLine writes s in bold (plain under the ASCII profile).
func (tw *TerminalWriter) BoldLine(s string) {
	tw.styledLine(tw.bold, s)
}

// ErrorLine writes s in the error style (plain under the ASCII profile).
func (tw *TerminalWriter) ErrorLine(s string) {
	tw.styledLine(tw.red, s)
}

// styledLine renders each line of s on its own; lipgloss pads the lines
// of a multi-line block to a common width.
func (tw *TerminalWriter) styledLine(st lipgloss.Style, s string) {
	for _, l := range strings.Split(s, "\n") {
		tw.Line(st.Render(l))
	}
}

// Sep writes a full-width separator built from sep, optionally centered
// around title: "_____ title _____".
func (tw *TerminalWriter) Sep(sep, title string) {
	if sep == "" {
		sep = "-"
	}
	if title == "" {
		tw.Line(strings.TrimRight(fill(sep, tw.width), " "))
		return
	}
	side := (tw.width - len(title) - 2) / 2
	if side < 1 {
		tw.Line(title)
		return
	}
	left := fill(sep, side)
	line := left + " " + title + " " + left
	if len(line) < tw.width {
		line += fill(sep, tw.width-len(line))
	}
	tw.Line(strings.TrimRight(line, " "))
}

func fill(sep string, n int) string {
	if n <= 0 {
		return ""
	}
	s := strings.Repeat(sep, n/len(sep)+1)
	return s[:n]
}

// Capture renders r onto a fresh surface and returns the text trimmed of
// surrounding whitespace. A nil Renderable yields "".
func Capture(r Renderable) string {
	if r == nil {
		return ""
	}
	var buf bytes.Buffer
	r.ToTerminal(NewTerminalWriter(&buf))
	return strings.TrimSpace(buf.String())
}

// Text is a Renderable wrapping preformatted text.
type Text string

// ToTerminal implements Renderable.
func (t Text) ToTerminal(tw *TerminalWriter) {
	if t == "" {
		return
	}
	tw.Line(strings.TrimRight(string(t), "\n"))
}
