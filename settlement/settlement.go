// Package settlement watches cleared balances and triggers out-of-band
// settlements when a peer's position crosses its configured threshold. The
// settlement engine itself is an external collaborator; from the switch's
// perspective a trigger is fire-and-forget.
package settlement

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"ilpswitch/accounts"
	"ilpswitch/balance"
)

// Request asks the engine to move amount onto the underlying payment rail for
// the account. IdempotencyKey dedupes retried deliveries on the engine side.
type Request struct {
	AccountID      string
	Amount         uint64
	IdempotencyKey string
}

// Engine is the external settlement rail client.
type Engine interface {
	Settle(ctx context.Context, req Request) error
}

// Monitor applies the threshold policy after each credit. Engine failures are
// logged and flagged for reconciliation, never retried and never undone here.
type Monitor struct {
	engine Engine
	logger *slog.Logger
	newKey func() string
}

func NewMonitor(engine Engine, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{engine: engine, logger: logger, newKey: uuid.NewString}
}

// Check fires a settlement when the credited account's clearing balance has
// reached its settle threshold, settling down to the account's SettleTo
// level.
func (m *Monitor) Check(ctx context.Context, settings accounts.Settings, state balance.State) {
	if m == nil || m.engine == nil || settings.SettleThreshold == nil {
		return
	}
	if state.ClearingBalance < *settings.SettleThreshold {
		return
	}
	amount := state.ClearingBalance - settings.SettleTo
	if amount <= 0 {
		return
	}
	req := Request{
		AccountID:      settings.AccountID,
		Amount:         uint64(amount),
		IdempotencyKey: m.newKey(),
	}
	if err := m.engine.Settle(ctx, req); err != nil {
		m.logger.Error("settlement trigger failed, reconciliation required",
			slog.String("account", req.AccountID),
			slog.Uint64("amount", req.Amount),
			slog.String("idempotency_key", req.IdempotencyKey),
			slog.Any("error", err))
		return
	}
	m.logger.Info("settlement triggered",
		slog.String("account", req.AccountID),
		slog.Uint64("amount", req.Amount),
		slog.String("idempotency_key", req.IdempotencyKey))
}

// NoopEngine satisfies Engine while recording nothing, for nodes that settle
// manually.
type NoopEngine struct{}

func (NoopEngine) Settle(context.Context, Request) error { return nil }
