package reader

import (
	"strconv"
	"strings"

	"github.com/pithecene-io/testbridge/bridge"
	"github.com/pithecene-io/testbridge/types"
	"github.com/pithecene-io/testbridge/wire"
)

const (
	msgLogFinish     = string(types.MessageLogFinish)
	msgException     = string(types.MessageExceptionInteract)
	msgInternalError = string(types.MessageInternalError)
	msgSessionFinish = string(types.MessageSessionFinish)
)

// testRow reads a runtest_logfinish message. Missing fields stay empty.
func testRow(m *wire.Message) TestRow {
	row := TestRow{}
	row.NodeID, _ = m.Field(bridge.FieldNodeID)
	row.Category, _ = m.Field(bridge.FieldResultCategory)
	row.Word, _ = m.Field(bridge.FieldResultWord)
	row.Path, _ = m.Field(bridge.FieldFSPath)
	if v, ok := m.Field(bridge.FieldLineNumber); ok {
		row.Line = toInt(v)
	}
	if v, ok := m.Field(bridge.FieldOutputs); ok && v != "" {
		row.Outputs = strings.Count(v, "\n") + 1
	}
	return row
}

// applyFinish reads a sessionfinish message into st. A later finish
// overwrites an earlier one.
func applyFinish(st *StreamStats, m *wire.Message) {
	v, ok := m.Field(bridge.FieldExitStatus)
	if !ok {
		return
	}
	st.ExitStatus = toInt(v)
	if st.ExitStatus != nil {
		st.ExitStatusName = types.ExitStatus(*st.ExitStatus).Name()
	} else {
		st.ExitStatusName = v
	}
	_, st.Interrupted = m.Field(bridge.FieldKbdIntrMessage)
}

// toInt parses a decimal field, nil when it is not a number.
func toInt(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}
