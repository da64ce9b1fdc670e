package connector

import (
	"context"
	"sync"

	"ilpswitch/ilp"
)

// Link is the outbound transport to one peer. Implementations live outside
// the forwarding core; the switch only requires that a send honors the
// context deadline and either returns a protocol Reply or a transport error
// for the switch to translate.
type Link interface {
	SendPacket(ctx context.Context, packet *ilp.Prepare) (ilp.Reply, error)
}

// LinkRegistry maps account IDs to their attached links.
type LinkRegistry struct {
	mu    sync.RWMutex
	links map[string]Link
}

func NewLinkRegistry() *LinkRegistry {
	return &LinkRegistry{links: make(map[string]Link)}
}

// Register attaches link to the account, replacing any previous attachment.
func (r *LinkRegistry) Register(accountID string, link Link) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[accountID] = link
}

// Unregister detaches the account's link, if any.
func (r *LinkRegistry) Unregister(accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.links, accountID)
}

// Get returns the link attached to the account, or nil.
func (r *LinkRegistry) Get(accountID string) Link {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.links[accountID]
}

// PingLink answers diagnostic packets addressed to the operator. A ping
// fulfills iff its condition commits to the well-known ping fulfillment; the
// packet data echoes back so callers can carry correlation payloads.
type PingLink struct {
	operator ilp.Address
}

func NewPingLink(operator ilp.Address) *PingLink {
	return &PingLink{operator: operator}
}

func (l *PingLink) SendPacket(_ context.Context, packet *ilp.Prepare) (ilp.Reply, error) {
	if packet.ExecutionCondition != ilp.PingFulfillment.Condition() {
		return ilp.NewReject(ilp.CodeBadRequest, "unknown ping condition", l.operator), nil
	}
	return &ilp.Fulfill{Fulfillment: ilp.PingFulfillment, Data: packet.Data}, nil
}
