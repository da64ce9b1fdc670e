package balance

import (
	"context"
	"sync"
)

// MemoryStore is the in-process Tracker used by tests and dev mode. Each
// account serializes through its own mutex, so transitions on one account
// never block another.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*memAccount
}

type memAccount struct {
	mu       sync.Mutex
	clearing int64
	prepaid  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*memAccount)}
}

func (s *MemoryStore) account(accountID string) *memAccount {
	s.mu.RLock()
	acct := s.accounts[accountID]
	s.mu.RUnlock()
	if acct != nil {
		return acct
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct = s.accounts[accountID]; acct == nil {
		acct = &memAccount{}
		s.accounts[accountID] = acct
	}
	return acct
}

func (s *MemoryStore) Reserve(_ context.Context, accountID string, amount uint64, minClearingBalance *int64) (State, error) {
	acct := s.account(accountID)
	acct.mu.Lock()
	defer acct.mu.Unlock()
	next, err := reserve(State{AccountID: accountID, ClearingBalance: acct.clearing, PrepaidAmount: acct.prepaid}, amount, minClearingBalance)
	if err != nil {
		return State{}, err
	}
	acct.clearing = next.ClearingBalance
	acct.prepaid = next.PrepaidAmount
	return next, nil
}

func (s *MemoryStore) Credit(_ context.Context, accountID string, amount uint64) (State, error) {
	return s.addClearing(accountID, amount)
}

func (s *MemoryStore) Release(_ context.Context, accountID string, amount uint64) (State, error) {
	return s.addClearing(accountID, amount)
}

func (s *MemoryStore) addClearing(accountID string, amount uint64) (State, error) {
	acct := s.account(accountID)
	acct.mu.Lock()
	defer acct.mu.Unlock()
	next, err := addClearing(State{AccountID: accountID, ClearingBalance: acct.clearing, PrepaidAmount: acct.prepaid}, amount)
	if err != nil {
		return State{}, err
	}
	acct.clearing = next.ClearingBalance
	return next, nil
}

func (s *MemoryStore) Balance(_ context.Context, accountID string) (State, error) {
	acct := s.account(accountID)
	acct.mu.Lock()
	defer acct.mu.Unlock()
	return State{AccountID: accountID, ClearingBalance: acct.clearing, PrepaidAmount: acct.prepaid}, nil
}

// Prepay adds amount to the account's prepaid buffer, the path taken when an
// incoming settlement lands before any packets flow.
func (s *MemoryStore) Prepay(_ context.Context, accountID string, amount uint64) (State, error) {
	acct := s.account(accountID)
	acct.mu.Lock()
	defer acct.mu.Unlock()
	next, err := addPrepaid(State{AccountID: accountID, ClearingBalance: acct.clearing, PrepaidAmount: acct.prepaid}, amount)
	if err != nil {
		return State{}, err
	}
	acct.prepaid = next.PrepaidAmount
	return next, nil
}
