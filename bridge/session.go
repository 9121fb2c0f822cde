// Package bridge turns test lifecycle events into framed protocol messages.
//
// A Session owns all per-session state: the pending test record, the
// registered auxiliary outputs and the deferred interrupt. Events are handled
// one at a time, to completion, on the caller's goroutine. Only
// RegisterOutputs may be called concurrently with the handlers.
package bridge

import (
	"errors"
	"fmt"
	"io"
	goruntime "runtime"
	"strconv"
	"strings"

	"github.com/pithecene-io/testbridge/log"
	"github.com/pithecene-io/testbridge/metrics"
	"github.com/pithecene-io/testbridge/repr"
	"github.com/pithecene-io/testbridge/types"
	"github.com/pithecene-io/testbridge/wire"
)

// AbortCode is returned by InternalError to signal that the run must abort.
const AbortCode = 1

// Config configures a Session.
type Config struct {
	// Output receives the framed protocol. Required.
	Output io.Writer
	// Discovery receives collect-only lines. Defaults to Output.
	Discovery io.Writer
	// CollectOnly puts the session in discovery mode: nothing framed is emitted.
	CollectOnly bool
	// Classifier classifies reports. Defaults to DefaultClassifier.
	Classifier ReportClassifier
	// Logger defaults to a no-op logger.
	Logger *log.Logger
	// Collector may be nil.
	Collector *metrics.Collector
}

// Session is the event router for one test session.
type Session struct {
	enc       *wire.Encoder
	discovery io.Writer

	state      State
	current    string
	acc        *Accumulator
	outputs    *Outputs
	interrupt  *repr.ExceptionRepr
	aborted    bool
	finished   bool
	exitStatus types.ExitStatus

	classifier ReportClassifier
	logger     *log.Logger
	metrics    *metrics.Collector
}

// NewSession creates a session in StateIdle, or StateCollecting for
// collect-only configurations.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Output == nil {
		return nil, errors.New("bridge: output writer is required")
	}
	s := &Session{
		enc:        wire.NewEncoder(cfg.Output),
		discovery:  cfg.Discovery,
		state:      StateIdle,
		acc:        NewAccumulator(),
		outputs:    NewOutputs(),
		classifier: cfg.Classifier,
		logger:     cfg.Logger,
		metrics:    cfg.Collector,
	}
	if s.discovery == nil {
		s.discovery = cfg.Output
	}
	if s.classifier == nil {
		s.classifier = DefaultClassifier{}
	}
	if s.logger == nil {
		s.logger = log.NewNop()
	}
	if cfg.CollectOnly {
		s.state = StateCollecting
	}
	return s, nil
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Aborted reports whether an internal error was seen.
func (s *Session) Aborted() bool { return s.aborted }

// ExitStatus returns the status from the session finish event, and whether
// the session has finished.
func (s *Session) ExitStatus() (types.ExitStatus, bool) {
	return s.exitStatus, s.finished
}

// RegisterOutputs attaches auxiliary artifact paths to the next test record.
// Safe to call from any goroutine.
func (s *Session) RegisterOutputs(paths ...string) {
	s.outputs.Add(paths...)
}

// Dispatch routes a decoded event to its handler.
// The returned error is non-nil only when a message could not be written.
func (s *Session) Dispatch(ev types.Event) error {
	switch e := ev.(type) {
	case *types.SessionStartEvent:
		return s.SessionStart(e)
	case *types.ItemCollectedEvent:
		return s.ItemCollected(e)
	case *types.LogStartEvent:
		return s.LogStart(e)
	case *types.LogReportEvent:
		s.LogReport(e)
		return nil
	case *types.ExceptionInteractEvent:
		return s.ExceptionInteract(e)
	case *types.LogFinishEvent:
		return s.LogFinish(e)
	case *types.InternalErrorEvent:
		_, err := s.InternalError(e)
		return err
	case *types.KeyboardInterruptEvent:
		s.KeyboardInterrupt(e)
		return nil
	case *types.SessionFinishEvent:
		return s.SessionFinish(e)
	case *types.RegisterOutputsEvent:
		s.RegisterOutputs(e.Paths...)
		return nil
	default:
		return fmt.Errorf("bridge: unsupported event %T", ev)
	}
}

// SessionStart emits sessionstart with the platform and environment banner.
func (s *Session) SessionStart(ev *types.SessionStartEvent) error {
	platform := ev.Platform
	if platform == "" {
		platform = goruntime.GOOS
	}
	return s.emit(types.MessageSessionStart, wire.Fields{
		FieldPlatform: platform,
		FieldInfo:     banner(platform, ev.Runtime, ev.Components),
	})
}

// banner renders "platform <p> -- <Runtime> <ver>[detail], <comp>-<ver>, ...".
func banner(platform string, rt *types.Component, comps []types.Component) string {
	var b strings.Builder
	b.WriteString("platform ")
	b.WriteString(platform)
	if rt != nil {
		fmt.Fprintf(&b, " -- %s %s", rt.Name, rt.Version)
		if rt.Detail != "" {
			fmt.Fprintf(&b, "[%s]", rt.Detail)
		}
	}
	for i, c := range comps {
		sep := ", "
		if i == 0 && rt == nil {
			sep = " -- "
		}
		fmt.Fprintf(&b, "%s%s-%s", sep, c.Name, c.Version)
	}
	return b.String()
}

// ItemCollected prints one discovery line in collect-only mode.
// Outside collect-only mode it is ignored.
func (s *Session) ItemCollected(ev *types.ItemCollectedEvent) error {
	if s.state != StateCollecting {
		s.logger.Debug("ignoring collected item outside collect-only mode", map[string]any{"name": ev.Name})
		return nil
	}
	raw := ev.OriginalName
	if raw == "" {
		raw = ev.Name
	}
	s.metrics.IncItemCollected()
	if _, err := fmt.Fprintf(s.discovery, "%s::%s::%s::%s\n", ev.Module, ev.Class, raw, ev.Name); err != nil {
		return fmt.Errorf("failed to write discovery line: %w", err)
	}
	return nil
}

// LogStart discards any unfinished record, emits runtest_logstart and enters StateInTest.
func (s *Session) LogStart(ev *types.LogStartEvent) error {
	if s.state == StateCollecting {
		return nil
	}
	if s.state == StateInTest || s.acc.Len() > 0 {
		s.logger.Debug("discarding unfinished test record", map[string]any{
			"previous_nodeid": s.current,
			"nodeid":          ev.NodeID,
			"fields":          s.acc.Len(),
		})
		s.metrics.IncOrphanedRecord()
	}
	s.acc.Clear()
	s.state = StateInTest
	s.current = ev.NodeID
	s.metrics.IncTestStarted()

	fields := wire.Fields{FieldNodeID: ev.NodeID}
	setLocation(fields, ev.Location)
	return s.emit(types.MessageLogStart, fields)
}

// LogReport merges one phase report into the pending record. Emits nothing.
// Reports outside a running test are ignored.
func (s *Session) LogReport(ev *types.LogReportEvent) {
	if s.state != StateInTest {
		if s.state != StateCollecting {
			s.logger.Debug("ignoring report outside a running test", map[string]any{"state": s.state.String()})
		}
		return
	}
	rep := ev.Report
	if rep == nil {
		s.logger.Debug("ignoring report without payload", map[string]any{"nodeid": s.current})
		return
	}

	status := s.classifier.Classify(rep)
	if status.Category != "" {
		s.acc.Set(FieldResultCategory, status.Category)
		s.metrics.IncOutcome(status.Category)
	}
	if status.Word != "" {
		s.acc.Set(FieldResultWord, status.Word)
	}

	s.acc.Set(FieldNodeID, rep.NodeID)

	s.drainOutputs()

	if loc := rep.Location; loc != nil {
		s.acc.Set(FieldFSPath, loc.Path)
		if loc.Line != nil {
			s.acc.SetInt(FieldLineNumber, *loc.Line)
		}
		s.acc.Set(FieldDomain, loc.Domain)
	}

	switch rep.LongRepr.Kind {
	case types.LongReprLocation:
		if l := rep.LongRepr.Location; l != nil {
			s.acc.Set(FieldLongReprPath, l.Path)
			s.acc.SetInt(FieldLongReprLine, l.Line)
			s.acc.Set(FieldLongReprMsg, l.Message)
		}
	case types.LongReprRenderable:
		if r := repr.LongRepr(rep.LongRepr); r != nil {
			s.acc.Set(FieldLongReprMsg, repr.Capture(r))
		}
	}

	if captured := repr.Capture(repr.ForReport(rep)); captured != "" {
		s.acc.Set(BufferedField(rep.When), captured)
	}

	for _, sec := range rep.Sections {
		name, ok := wire.SanitizeFieldName(sec.Name)
		if !ok {
			s.logger.Debug("dropping report section without a name", map[string]any{"nodeid": s.current})
			continue
		}
		if name != sec.Name {
			s.logger.Debug("renamed report section", map[string]any{
				"nodeid":  s.current,
				"section": sec.Name,
				"field":   name,
			})
		}
		s.acc.AppendSection(name, sec.Content)
	}
}

// ExceptionInteract renders the exception in native and long styles. Inside a
// test both are merged into the pending record; outside a test they are
// emitted at once as exception_interact.
func (s *Session) ExceptionInteract(ev *types.ExceptionInteractEvent) error {
	if s.state == StateCollecting {
		return nil
	}
	native := repr.FromException(ev.ExcInfo, repr.Diagnostic(repr.StyleNative))
	long := repr.FromException(ev.ExcInfo, repr.Diagnostic(repr.StyleLong))

	if s.state == StateInTest {
		s.acc.Set(FieldExcInfoWhen, string(ev.When))
		if ev.ExcInfo == nil {
			return nil
		}
		crash := native.Crash()
		s.acc.Set(FieldExcInfoPath, crash.Path)
		s.acc.SetInt(FieldExcInfoLine, crash.Line)
		s.acc.Set(FieldExcInfoMsg, crash.Message)
		s.acc.Set(FieldExcInfoTraceback, repr.Capture(native.Traceback()))
		s.acc.Set(FieldExcInfoLong, repr.Capture(long))
		return nil
	}

	s.metrics.IncStrayException()
	fields := wire.Fields{
		FieldNode:     ev.NodeID,
		FieldCallWhen: string(ev.When),
	}
	if ev.ExcInfo != nil {
		fields[FieldExcInfoNative] = repr.Capture(native)
		fields[FieldExcInfoLong] = repr.Capture(long)
	}
	return s.emit(types.MessageExceptionInteract, fields)
}

// LogFinish emits the pending record as runtest_logfinish and returns to
// StateIdle. A finish without a running test is a no-op.
func (s *Session) LogFinish(ev *types.LogFinishEvent) error {
	if s.state != StateInTest {
		if s.state != StateCollecting {
			s.logger.Debug("ignoring finish without a running test", map[string]any{"nodeid": ev.NodeID})
		}
		return nil
	}
	if ev.NodeID != "" && ev.NodeID != s.current {
		s.logger.Debug("finish does not match running test", map[string]any{
			"nodeid":  ev.NodeID,
			"running": s.current,
		})
	}
	s.drainOutputs()
	fields := s.acc.FlushAndClear()
	s.state = StateIdle
	s.current = ""
	s.metrics.IncTestFinished()
	return s.emit(types.MessageLogFinish, fields)
}

// InternalError emits internalerror immediately and marks the session
// aborted. Always returns AbortCode.
func (s *Session) InternalError(ev *types.InternalErrorEvent) (int, error) {
	s.aborted = true
	s.metrics.IncInternalError()

	text := ev.Text
	if ev.ExcInfo != nil {
		text = repr.Capture(repr.FromException(ev.ExcInfo, repr.Diagnostic(repr.StyleLong)))
	}
	s.logger.Error("engine internal error", map[string]any{"state": s.state.String()})
	return AbortCode, s.emit(types.MessageInternalError, wire.Fields{FieldExcRepr: text})
}

// KeyboardInterrupt holds the interrupt's rendering until session finish.
func (s *Session) KeyboardInterrupt(ev *types.KeyboardInterruptEvent) {
	s.metrics.IncInterrupt()
	s.interrupt = repr.FromException(ev.ExcInfo, repr.Options{Style: repr.StyleLong, FullTrace: true, FuncArgs: true})
}

// SessionFinish emits sessionfinish. The deferred interrupt is folded in
// only when the exit status is ExitInterrupted.
func (s *Session) SessionFinish(ev *types.SessionFinishEvent) error {
	s.finished = true
	s.exitStatus = ev.ExitStatus

	if s.state == StateInTest {
		s.logger.Debug("session finished with a running test", map[string]any{"nodeid": s.current})
	}

	fields := wire.Fields{FieldExitStatus: strconv.Itoa(int(ev.ExitStatus))}
	if ev.ExitStatus == types.ExitInterrupted && s.interrupt != nil {
		fields[FieldKbdIntrMessage] = s.interrupt.Crash().Message
		fields[FieldKbdIntrExcInfo] = repr.Capture(s.interrupt)
		s.interrupt = nil
	}
	return s.emit(types.MessageSessionFinish, fields)
}

// emit writes one message unless the session is collecting.
func (s *Session) emit(name types.MessageName, fields wire.Fields) error {
	if s.state == StateCollecting {
		return nil
	}
	if err := s.enc.WriteMessage(string(name), fields); err != nil {
		s.metrics.IncEncodeError()
		s.logger.Error("failed to emit message", map[string]any{
			"message": string(name),
			"error":   err.Error(),
		})
		return err
	}
	s.metrics.IncMessage(string(name))
	return nil
}

// drainOutputs moves registered outputs into the pending record, appending
// to any paths already drained for this test.
func (s *Session) drainOutputs() {
	joined, ok := s.outputs.Drain()
	if !ok {
		return
	}
	if prev, had := s.acc.Get(FieldOutputs); had && prev != "" {
		joined = prev + "\n" + joined
	}
	s.acc.Set(FieldOutputs, joined)
}

func setLocation(fields wire.Fields, loc *types.Location) {
	if loc == nil {
		return
	}
	fields[FieldFSPath] = loc.Path
	if loc.Line != nil {
		fields[FieldLineNumber] = strconv.Itoa(*loc.Line)
	}
	fields[FieldDomain] = loc.Domain
}
