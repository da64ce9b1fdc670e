package settlement

import (
	"context"
	"errors"
	"testing"

	"ilpswitch/accounts"
	"ilpswitch/balance"
)

type captureEngine struct {
	requests []Request
	err      error
}

func (e *captureEngine) Settle(_ context.Context, req Request) error {
	e.requests = append(e.requests, req)
	return e.err
}

func settingsWithThreshold(threshold, settleTo int64) accounts.Settings {
	return accounts.Settings{AccountID: "peer", SettleThreshold: &threshold, SettleTo: settleTo}
}

func TestCheckFiresAtThreshold(t *testing.T) {
	engine := &captureEngine{}
	monitor := NewMonitor(engine, nil)
	monitor.Check(context.Background(), settingsWithThreshold(10, 2), balance.State{AccountID: "peer", ClearingBalance: 10})
	if len(engine.requests) != 1 {
		t.Fatalf("expected one settlement, got %d", len(engine.requests))
	}
	req := engine.requests[0]
	if req.Amount != 8 {
		t.Fatalf("should settle down to SettleTo: got %d", req.Amount)
	}
	if req.IdempotencyKey == "" {
		t.Fatalf("idempotency key must be set")
	}
}

func TestCheckBelowThresholdIsQuiet(t *testing.T) {
	engine := &captureEngine{}
	monitor := NewMonitor(engine, nil)
	monitor.Check(context.Background(), settingsWithThreshold(10, 0), balance.State{ClearingBalance: 9})
	if len(engine.requests) != 0 {
		t.Fatalf("no settlement expected below threshold")
	}
}

func TestCheckWithoutThresholdIsQuiet(t *testing.T) {
	engine := &captureEngine{}
	monitor := NewMonitor(engine, nil)
	monitor.Check(context.Background(), accounts.Settings{AccountID: "peer"}, balance.State{ClearingBalance: 1 << 40})
	if len(engine.requests) != 0 {
		t.Fatalf("accounts without a threshold never settle automatically")
	}
}

func TestEngineFailureIsSwallowed(t *testing.T) {
	engine := &captureEngine{err: errors.New("rail down")}
	monitor := NewMonitor(engine, nil)
	// Fire-and-forget: a failing engine must not panic or propagate.
	monitor.Check(context.Background(), settingsWithThreshold(1, 0), balance.State{AccountID: "peer", ClearingBalance: 5})
	if len(engine.requests) != 1 {
		t.Fatalf("trigger should still have been attempted")
	}
}

func TestUniqueIdempotencyKeys(t *testing.T) {
	engine := &captureEngine{}
	monitor := NewMonitor(engine, nil)
	state := balance.State{AccountID: "peer", ClearingBalance: 5}
	monitor.Check(context.Background(), settingsWithThreshold(1, 0), state)
	monitor.Check(context.Background(), settingsWithThreshold(1, 0), state)
	if engine.requests[0].IdempotencyKey == engine.requests[1].IdempotencyKey {
		t.Fatalf("each trigger must carry a fresh idempotency key")
	}
}
