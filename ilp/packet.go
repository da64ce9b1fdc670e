package ilp

import (
	"time"
)

// Prepare proposes a conditional transfer toward Destination. Funds move only
// if a hop produces the preimage of ExecutionCondition before ExpiresAt.
type Prepare struct {
	Destination        Address
	Amount             uint64
	ExecutionCondition Condition
	ExpiresAt          time.Time
	Data               []byte
}

// Fulfill proves the condition of the Prepare it answers was met.
type Fulfill struct {
	Fulfillment Fulfillment
	Data        []byte
}

// Reject cancels a Prepare with a categorized error code. TriggeredBy is the
// address of the node that originated the rejection.
type Reject struct {
	Code        Code
	Message     string
	TriggeredBy Address
	Data        []byte
}

// Reply is the response half of the protocol: exactly one of Fulfill or
// Reject. Every stage of the switch returns a Reply; protocol outcomes are
// never modelled as errors.
type Reply interface {
	isReply()
}

func (*Fulfill) isReply() {}
func (*Reject) isReply()  {}

// NewReject builds a Reject triggered by the given operator address.
func NewReject(code Code, message string, triggeredBy Address) *Reject {
	return &Reject{Code: code, Message: message, TriggeredBy: triggeredBy}
}

// WithExpiry returns a copy of the packet carrying the new expiry. Packets are
// replaced whole, never field-mutated in place, so concurrent readers of a
// dispatched packet stay safe.
func (p *Prepare) WithExpiry(expiresAt time.Time) *Prepare {
	clone := *p
	clone.ExpiresAt = expiresAt
	return &clone
}
