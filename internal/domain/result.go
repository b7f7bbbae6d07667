package domain

// FailureKind classifies a failed Result so the transport layer never has to
// read the message text.
type FailureKind int

const (
	// FailRejected is a caller problem: bad input, wrong code, bad token.
	FailRejected FailureKind = iota
	// FailDelivery means the mail transport refused the message.
	FailDelivery
	// FailInternal is an unclassified fault.
	FailInternal
)

// Result is the structured value every orchestrator returns instead of an error.
type Result struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Kind    FailureKind `json:"-"`
}

func Ok(msg string) Result { return Result{Success: true, Message: msg} }

func Fail(msg string) Result { return Result{Success: false, Message: msg} }

func FailUndelivered(msg string) Result {
	return Result{Success: false, Message: msg, Kind: FailDelivery}
}

func FailInternalError() Result {
	return Result{Success: false, Message: MsgInternal, Kind: FailInternal}
}

// MsgInternal is the only text a caller sees for an unclassified fault.
const MsgInternal = "internal error"
