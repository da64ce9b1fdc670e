package balance

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"ilpswitch/storage"
)

const (
	levelKeyPrefix = "balance/"
	stateWidth     = 16
	lockStripes    = 64
)

// LevelStore persists account states through a storage.Database. Writes for
// one account serialize through a striped lock keyed by the account ID, so a
// read-modify-write is never interleaved with another for the same account.
type LevelStore struct {
	db      storage.Database
	stripes [lockStripes]sync.Mutex
}

func NewLevelStore(db storage.Database) *LevelStore {
	return &LevelStore{db: db}
}

func (s *LevelStore) lock(accountID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(accountID))
	return &s.stripes[h.Sum32()%lockStripes]
}

func levelKey(accountID string) []byte {
	return []byte(levelKeyPrefix + accountID)
}

func encodeState(state State) []byte {
	buf := make([]byte, stateWidth)
	binary.BigEndian.PutUint64(buf[0:8], uint64(state.ClearingBalance))
	binary.BigEndian.PutUint64(buf[8:16], uint64(state.PrepaidAmount))
	return buf
}

func decodeState(accountID string, raw []byte) (State, error) {
	if len(raw) != stateWidth {
		return State{}, fmt.Errorf("balance: corrupt state for account %s: %d bytes", accountID, len(raw))
	}
	return State{
		AccountID:       accountID,
		ClearingBalance: int64(binary.BigEndian.Uint64(raw[0:8])),
		PrepaidAmount:   int64(binary.BigEndian.Uint64(raw[8:16])),
	}, nil
}

func (s *LevelStore) load(accountID string) (State, error) {
	raw, err := s.db.Get(levelKey(accountID))
	if errors.Is(err, storage.ErrNotFound) {
		return State{AccountID: accountID}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("balance: load account %s: %w", accountID, err)
	}
	return decodeState(accountID, raw)
}

func (s *LevelStore) store(state State) error {
	if err := s.db.Put(levelKey(state.AccountID), encodeState(state)); err != nil {
		return fmt.Errorf("balance: store account %s: %w", state.AccountID, err)
	}
	return nil
}

// transition runs apply under the account's stripe lock, persisting the
// result only when apply succeeds. A failed apply leaves the stored bytes
// untouched.
func (s *LevelStore) transition(accountID string, apply func(State) (State, error)) (State, error) {
	lock := s.lock(accountID)
	lock.Lock()
	defer lock.Unlock()
	current, err := s.load(accountID)
	if err != nil {
		return State{}, err
	}
	next, err := apply(current)
	if err != nil {
		return State{}, err
	}
	if err := s.store(next); err != nil {
		return State{}, err
	}
	return next, nil
}

func (s *LevelStore) Reserve(_ context.Context, accountID string, amount uint64, minClearingBalance *int64) (State, error) {
	return s.transition(accountID, func(current State) (State, error) {
		return reserve(current, amount, minClearingBalance)
	})
}

func (s *LevelStore) Credit(_ context.Context, accountID string, amount uint64) (State, error) {
	return s.transition(accountID, func(current State) (State, error) {
		return addClearing(current, amount)
	})
}

func (s *LevelStore) Release(_ context.Context, accountID string, amount uint64) (State, error) {
	return s.transition(accountID, func(current State) (State, error) {
		return addClearing(current, amount)
	})
}

func (s *LevelStore) Prepay(_ context.Context, accountID string, amount uint64) (State, error) {
	return s.transition(accountID, func(current State) (State, error) {
		return addPrepaid(current, amount)
	})
}

func (s *LevelStore) Balance(_ context.Context, accountID string) (State, error) {
	lock := s.lock(accountID)
	lock.Lock()
	defer lock.Unlock()
	return s.load(accountID)
}
