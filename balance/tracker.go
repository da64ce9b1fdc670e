package balance

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// State is the ledger position held against one account: the clearing balance
// owed between the peers plus the prepaid buffer funded ahead of time. The
// net of the two is advisory only; credit limits apply to ClearingBalance
// alone.
type State struct {
	AccountID       string
	ClearingBalance int64
	PrepaidAmount   int64
}

// NetBalance returns clearing plus prepaid. Informational only.
func (s State) NetBalance() int64 {
	return s.ClearingBalance + s.PrepaidAmount
}

// ErrInsufficientBalance is returned when a reservation would take the
// clearing balance below the supplied floor. The stored state is unchanged.
var ErrInsufficientBalance = errors.New("balance: insufficient balance")

// ErrAmountRange is returned for amounts too large to represent in the
// ledger's signed arithmetic.
var ErrAmountRange = errors.New("balance: amount out of range")

// Tracker is the external atomic counter store's entire contract: three
// per-account transitions, each applied atomically with no partial effect
// visible if it aborts. Absent accounts read as the zero State.
//
// Reserve debits amount from the account, consuming the prepaid buffer first;
// if minClearingBalance is non-nil and the tentative clearing balance would
// fall below it, nothing is mutated and ErrInsufficientBalance is returned.
// Credit and Release unconditionally add amount to the clearing balance;
// Release undoes a reservation that was never fulfilled, Credit pays the
// peer that advanced funds downstream.
type Tracker interface {
	Reserve(ctx context.Context, accountID string, amount uint64, minClearingBalance *int64) (State, error)
	Credit(ctx context.Context, accountID string, amount uint64) (State, error)
	Release(ctx context.Context, accountID string, amount uint64) (State, error)
	Balance(ctx context.Context, accountID string) (State, error)
}

// reserve computes the transition shared by every Tracker implementation.
// The prepaid buffer absorbs as much of the amount as it holds, moving toward
// zero but never below it; the remainder debits the clearing balance, which
// may go negative when no floor applies.
func reserve(current State, amount uint64, minClearingBalance *int64) (State, error) {
	if amount > math.MaxInt64 {
		return current, fmt.Errorf("%w: reserve %d", ErrAmountRange, amount)
	}
	needed := int64(amount)
	next := current
	if next.PrepaidAmount > 0 {
		consumed := next.PrepaidAmount
		if consumed > needed {
			consumed = needed
		}
		next.PrepaidAmount -= consumed
		needed -= consumed
	}
	next.ClearingBalance -= needed
	if minClearingBalance != nil && next.ClearingBalance < *minClearingBalance {
		return current, fmt.Errorf("%w: account %s: clearing %d would fall below floor %d",
			ErrInsufficientBalance, current.AccountID, next.ClearingBalance, *minClearingBalance)
	}
	return next, nil
}

// addPrepaid grows the prepaid buffer when an incoming settlement lands.
func addPrepaid(current State, amount uint64) (State, error) {
	if amount > math.MaxInt64 {
		return current, fmt.Errorf("%w: prepay %d", ErrAmountRange, amount)
	}
	next := current
	next.PrepaidAmount += int64(amount)
	return next, nil
}

// addClearing is the shared Credit/Release transition.
func addClearing(current State, amount uint64) (State, error) {
	if amount > math.MaxInt64 {
		return current, fmt.Errorf("%w: credit %d", ErrAmountRange, amount)
	}
	next := current
	next.ClearingBalance += int64(amount)
	return next, nil
}
