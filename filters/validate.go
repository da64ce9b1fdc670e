package filters

import (
	"context"

	"ilpswitch/ilp"
)

// ValidateFulfillmentFilter inspects replies on the way back up: a Fulfill
// whose preimage does not hash to the packet's execution condition is a
// protocol-integrity violation and is replaced by a Reject. An unverifiable
// fulfillment never reaches the original sender.
type ValidateFulfillmentFilter struct {
	operator ilp.Address
}

func NewValidateFulfillmentFilter(operator ilp.Address) *ValidateFulfillmentFilter {
	return &ValidateFulfillmentFilter{operator: operator}
}

func (f *ValidateFulfillmentFilter) Name() string { return "validate-fulfillment" }

func (f *ValidateFulfillmentFilter) Process(ctx context.Context, req *Request, next Chain) ilp.Reply {
	reply := next.Proceed(ctx, req)
	if fulfill, ok := reply.(*ilp.Fulfill); ok {
		if !fulfill.Fulfillment.Validates(req.Packet.ExecutionCondition) {
			return ilp.NewReject(ilp.CodeWrongCondition,
				"fulfillment does not match execution condition", f.operator)
		}
	}
	return reply
}
