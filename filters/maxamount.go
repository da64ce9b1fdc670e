package filters

import (
	"context"
	"fmt"

	"ilpswitch/ilp"
)

// MaxAmountFilter enforces the sending account's per-packet amount ceiling.
type MaxAmountFilter struct {
	operator ilp.Address
}

func NewMaxAmountFilter(operator ilp.Address) *MaxAmountFilter {
	return &MaxAmountFilter{operator: operator}
}

func (f *MaxAmountFilter) Name() string { return "max-packet-amount" }

func (f *MaxAmountFilter) Process(ctx context.Context, req *Request, next Chain) ilp.Reply {
	ceiling := req.Source.MaxPacketAmount
	if ceiling > 0 && req.Packet.Amount > ceiling {
		return ilp.NewReject(ilp.CodeAmountTooLarge,
			fmt.Sprintf("amount %d exceeds account maximum %d", req.Packet.Amount, ceiling), f.operator)
	}
	return next.Proceed(ctx, req)
}
