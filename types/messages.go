package types

// MessageName names a framed message on the output protocol.
type MessageName string

// Message names emitted by the bridge.
const (
	MessageSessionStart      MessageName = "sessionstart"
	MessageLogStart          MessageName = "runtest_logstart"
	MessageLogFinish         MessageName = "runtest_logfinish"
	MessageExceptionInteract MessageName = "exception_interact"
	MessageInternalError     MessageName = "internalerror"
	MessageSessionFinish     MessageName = "sessionfinish"
)
