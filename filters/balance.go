package filters

import (
	"context"
	"errors"
	"log/slog"

	"ilpswitch/balance"
	"ilpswitch/ilp"
)

// BalanceFilter reserves the packet amount against the source account on the
// way down and releases the reservation on the way up when the packet ends in
// a reject. Zero-amount packets bypass the ledger entirely.
type BalanceFilter struct {
	operator ilp.Address
	tracker  balance.Tracker
	logger   *slog.Logger
}

func NewBalanceFilter(operator ilp.Address, tracker balance.Tracker, logger *slog.Logger) *BalanceFilter {
	if logger == nil {
		logger = slog.Default()
	}
	return &BalanceFilter{operator: operator, tracker: tracker, logger: logger}
}

func (f *BalanceFilter) Name() string { return "balance" }

func (f *BalanceFilter) Process(ctx context.Context, req *Request, next Chain) ilp.Reply {
	amount := req.Packet.Amount
	if amount == 0 {
		return next.Proceed(ctx, req)
	}
	accountID := req.Source.AccountID
	state, err := f.tracker.Reserve(ctx, accountID, amount, req.Source.MinClearingBalance)
	if err != nil {
		if errors.Is(err, balance.ErrInsufficientBalance) {
			return ilp.NewReject(ilp.CodeInsufficientLiquidity, "insufficient balance", f.operator)
		}
		f.logger.Error("balance reserve failed",
			slog.String("account", accountID),
			slog.Uint64("amount", amount),
			slog.Any("error", err))
		return ilp.NewReject(ilp.CodeInternalError, "balance store unavailable", f.operator)
	}
	f.logger.Debug("reserved",
		slog.String("account", accountID),
		slog.Uint64("amount", amount),
		slog.Int64("clearing", state.ClearingBalance),
		slog.Int64("prepaid", state.PrepaidAmount))

	reply := next.Proceed(ctx, req)

	if _, rejected := reply.(*ilp.Reject); rejected {
		if _, err := f.tracker.Release(ctx, accountID, amount); err != nil {
			// A failed release strands the reservation; flag it for
			// reconciliation rather than hiding the reject from the caller.
			f.logger.Error("reservation release failed, reconciliation required",
				slog.String("account", accountID),
				slog.Uint64("amount", amount),
				slog.Any("error", err))
		}
	}
	return reply
}
