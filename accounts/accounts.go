// Package accounts describes the peering relationships the switch forwards
// between. Persistence and administration of accounts live outside the core;
// the switch only consumes settings through the Provider interface.
package accounts

import (
	"errors"
	"sync"

	"ilpswitch/ilp"
)

// Settings carries the per-account knobs the forwarding path enforces.
// Optional limits are pointers; nil means the limit is not configured.
type Settings struct {
	AccountID string

	// MaxPacketAmount caps the amount of a single Prepare from this account.
	// Zero means uncapped.
	MaxPacketAmount uint64

	// MinClearingBalance is the floor applied when reserving against this
	// account. Nil extends unbounded credit.
	MinClearingBalance *int64

	// SettleThreshold triggers a settlement once the clearing balance owed to
	// this peer reaches it; SettleTo is the balance settled down to.
	SettleThreshold *int64
	SettleTo        int64

	// RateLimitPerSecond and RateLimitBurst size the account's token bucket.
	// A nil rate disables limiting.
	RateLimitPerSecond *float64
	RateLimitBurst     int

	// ChildAddress is the address assigned to a directly connected child,
	// handed out through the peer configuration protocol.
	ChildAddress ilp.Address

	// Internal marks operator-owned accounts that may address internal-only
	// prefixes (local., private.).
	Internal bool
}

// ErrUnknownAccount is returned for account IDs the provider has no settings
// for.
var ErrUnknownAccount = errors.New("accounts: unknown account")

// Provider supplies account settings to the forwarding path.
type Provider interface {
	Lookup(accountID string) (Settings, error)
	HasAccount(accountID string) bool
}

// StaticProvider serves a fixed settings set loaded from configuration.
type StaticProvider struct {
	mu       sync.RWMutex
	settings map[string]Settings
}

func NewStaticProvider(settings []Settings) *StaticProvider {
	byID := make(map[string]Settings, len(settings))
	for _, s := range settings {
		byID[s.AccountID] = s
	}
	return &StaticProvider{settings: byID}
}

func (p *StaticProvider) Lookup(accountID string) (Settings, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.settings[accountID]
	if !ok {
		return Settings{}, ErrUnknownAccount
	}
	return s, nil
}

func (p *StaticProvider) HasAccount(accountID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.settings[accountID]
	return ok
}

// Upsert replaces the settings stored for the account, adding it if new.
func (p *StaticProvider) Upsert(s Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings[s.AccountID] = s
}
