package bridge

import "github.com/pithecene-io/testbridge/types"

// Field names understood by the downstream consumer.
const (
	FieldPlatform = "platform"
	FieldInfo     = "info"

	FieldNodeID     = "nodeid"
	FieldFSPath     = "fspath"
	FieldLineNumber = "line_number"
	FieldDomain     = "domain"

	FieldResultCategory = "result_category"
	FieldResultWord     = "result_word"
	FieldOutputs        = "outputs"

	FieldLongReprPath = "longrepr_fspath"
	FieldLongReprLine = "longrepr_line_number"
	FieldLongReprMsg  = "longrepr_msg"

	FieldExcInfoWhen      = "excinfo_when"
	FieldExcInfoPath      = "excinfo_path"
	FieldExcInfoLine      = "excinfo_line_number"
	FieldExcInfoMsg       = "excinfo_msg"
	FieldExcInfoTraceback = "excinfo_traceback"
	FieldExcInfoLong      = "excinfo_long"

	FieldNode          = "node"
	FieldCallWhen      = "call_when"
	FieldExcInfoNative = "excinfo_native"

	FieldExcRepr = "excrepr"

	FieldExitStatus     = "exitstatus"
	FieldKbdIntrMessage = "kbdintr_message"
	FieldKbdIntrExcInfo = "kbdintr_excinfo"
)

// BufferedField returns the per-phase field holding a report's rendered output.
func BufferedField(when types.Phase) string {
	return "buffered_" + string(when)
}
