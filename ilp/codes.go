package ilp

// Code is a categorized protocol error code. The first letter determines the
// error class: F (final), T (temporary) or R (relative), so peers can make a
// mechanical retry decision without inspecting the message text.
type Code string

const (
	CodeBadRequest             Code = "F00"
	CodeInvalidPacket          Code = "F01"
	CodeUnreachable            Code = "F02"
	CodeInvalidAmount          Code = "F03"
	CodeInsufficientDstAmount  Code = "F04"
	CodeWrongCondition         Code = "F05"
	CodeUnexpectedPayment      Code = "F06"
	CodeCannotReceive          Code = "F07"
	CodeAmountTooLarge         Code = "F08"
	CodeFinalApplication       Code = "F99"
	CodeInternalError          Code = "T00"
	CodePeerUnreachable        Code = "T01"
	CodePeerBusy               Code = "T02"
	CodeConnectorBusy          Code = "T03"
	CodeInsufficientLiquidity  Code = "T04"
	CodeRateLimited            Code = "T05"
	CodeTemporaryApplication   Code = "T99"
	CodeTransferTimedOut       Code = "R00"
	CodeInsufficientSrcAmount  Code = "R01"
	CodeInsufficientTimeout    Code = "R02"
	CodeRelativeApplication    Code = "R99"
)

// Class is the retry category of a Code.
type Class byte

const (
	// ClassFinal errors must never be retried with the same packet.
	ClassFinal Class = 'F'
	// ClassTemporary errors may be retried after a backoff.
	ClassTemporary Class = 'T'
	// ClassRelative errors depend on conditions at an upstream hop, such as
	// an expiry window that was already too tight on arrival.
	ClassRelative Class = 'R'
)

// Class returns the retry category of the code. Unknown or malformed codes
// report ClassFinal so that nothing is blindly retried.
func (c Code) Class() Class {
	if len(c) != 3 {
		return ClassFinal
	}
	switch c[0] {
	case 'T':
		return ClassTemporary
	case 'R':
		return ClassRelative
	}
	return ClassFinal
}

func (c Code) String() string { return string(c) }
