package filters

import (
	"context"
	"fmt"
	"log/slog"

	"ilpswitch/balance"
	"ilpswitch/ilp"
	"ilpswitch/settlement"
)

// OutgoingBalanceFilter credits the next-hop account when the send fulfills.
// The credit is best effort: a payment that already fulfilled downstream must
// never be turned back into a failure by local bookkeeping, so a failed
// credit is logged for reconciliation and the Fulfill still returns.
type OutgoingBalanceFilter struct {
	tracker balance.Tracker
	monitor *settlement.Monitor
	logger  *slog.Logger
}

func NewOutgoingBalanceFilter(tracker balance.Tracker, monitor *settlement.Monitor, logger *slog.Logger) *OutgoingBalanceFilter {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutgoingBalanceFilter{tracker: tracker, monitor: monitor, logger: logger}
}

func (f *OutgoingBalanceFilter) Name() string { return "outgoing-balance" }

func (f *OutgoingBalanceFilter) Process(ctx context.Context, req *OutboundRequest, next LinkChain) ilp.Reply {
	reply := next.Proceed(ctx, req)
	fulfill, ok := reply.(*ilp.Fulfill)
	if !ok || req.Packet.Amount == 0 {
		return reply
	}
	accountID := req.Destination.AccountID
	state, err := f.tracker.Credit(ctx, accountID, req.Packet.Amount)
	if err != nil {
		f.logger.Error("credit after fulfill failed, reconciliation required",
			slog.String("account", accountID),
			slog.Uint64("amount", req.Packet.Amount),
			slog.Any("error", err))
		return fulfill
	}
	f.monitor.Check(ctx, req.Destination, state)
	return fulfill
}

// OutgoingMaxAmountFilter enforces the receiving account's per-packet ceiling
// before the packet leaves the node.
type OutgoingMaxAmountFilter struct {
	operator ilp.Address
}

func NewOutgoingMaxAmountFilter(operator ilp.Address) *OutgoingMaxAmountFilter {
	return &OutgoingMaxAmountFilter{operator: operator}
}

func (f *OutgoingMaxAmountFilter) Name() string { return "outgoing-max-packet-amount" }

func (f *OutgoingMaxAmountFilter) Process(ctx context.Context, req *OutboundRequest, next LinkChain) ilp.Reply {
	ceiling := req.Destination.MaxPacketAmount
	if ceiling > 0 && req.Packet.Amount > ceiling {
		return ilp.NewReject(ilp.CodeAmountTooLarge,
			fmt.Sprintf("amount %d exceeds next-hop maximum %d", req.Packet.Amount, ceiling), f.operator)
	}
	return next.Proceed(ctx, req)
}
