package bridge

import (
	"strings"

	"github.com/pithecene-io/testbridge/types"
)

// ReportClassifier maps a report to the engine's (category, letter, word) triple.
type ReportClassifier interface {
	Classify(rep *types.Report) types.TestStatus
}

// ClassifierFunc adapts a function to ReportClassifier.
type ClassifierFunc func(rep *types.Report) types.TestStatus

// Classify implements ReportClassifier.
func (f ClassifierFunc) Classify(rep *types.Report) types.TestStatus {
	return f(rep)
}

// DefaultClassifier uses the report's own status when the engine sent one,
// and otherwise applies the conventional rules:
//
//   - setup/teardown: failed → error/E/ERROR, skipped → skipped/s/SKIPPED,
//     passed → nothing to record
//   - expected failure: skipped → xfailed/x/XFAIL, passed → xpassed/X/XPASS
//   - otherwise the outcome itself with "." "s" or "F"
type DefaultClassifier struct{}

// Classify implements ReportClassifier.
func (DefaultClassifier) Classify(rep *types.Report) types.TestStatus {
	if rep.Status != nil {
		return *rep.Status
	}

	if rep.When == types.PhaseSetup || rep.When == types.PhaseTeardown {
		switch {
		case rep.Failed():
			return types.TestStatus{Category: "error", Letter: "E", Word: "ERROR"}
		case rep.Skipped():
			return types.TestStatus{Category: "skipped", Letter: "s", Word: "SKIPPED"}
		default:
			return types.TestStatus{}
		}
	}

	if rep.WasXFail != nil {
		switch {
		case rep.Skipped():
			return types.TestStatus{Category: "xfailed", Letter: "x", Word: "XFAIL", Reason: *rep.WasXFail}
		case rep.Passed():
			return types.TestStatus{Category: "xpassed", Letter: "X", Word: "XPASS", Reason: *rep.WasXFail}
		}
	}

	category := string(rep.Outcome)
	letter := "F"
	switch {
	case rep.Passed():
		letter = "."
	case rep.Skipped():
		letter = "s"
	case rep.When == types.PhaseCollect && rep.Failed():
		category = "error"
		letter = "E"
	}
	return types.TestStatus{Category: category, Letter: letter, Word: strings.ToUpper(category)}
}
