package routing

import (
	"strings"

	"ilpswitch/ilp"
)

// ChildResolver reports whether accountID names a directly connected child
// account of this operator. It is backed by the account settings provider.
type ChildResolver interface {
	HasAccount(accountID string) bool
}

// NextHop is the routing decision for a single packet: the account to forward
// to and, when the decision came from the table, the route that produced it.
type NextHop struct {
	AccountID string
	Route     *Route
}

// Router resolves a destination address to a next-hop account. Precedence:
// child-account shortcut, static routes, discovered routes, the internal ping
// account for self-addressed diagnostics, then nothing.
type Router struct {
	operator ilp.Address
	static   *Table
	dynamic  *Table
	children ChildResolver
	pingID   string
}

// NewRouter wires a router over a static table and the discovered table.
// children may be nil when the node has no child accounts; pingID may be empty
// to disable the diagnostic account.
func NewRouter(operator ilp.Address, static, dynamic *Table, children ChildResolver, pingID string) *Router {
	return &Router{
		operator: operator,
		static:   static,
		dynamic:  dynamic,
		children: children,
		pingID:   pingID,
	}
}

// Operator returns the node's own address.
func (r *Router) Operator() ilp.Address { return r.operator }

// FindBestNextHop resolves destination, returning nil when the node has no
// way to make progress and the packet must be rejected.
func (r *Router) FindBestNextHop(destination ilp.Address) *NextHop {
	// Destinations directly under the operator address name a child account:
	// <operator>.<childAccountID>... resolves without a table lookup.
	if child, ok := r.childAccount(destination); ok {
		return &NextHop{AccountID: child}
	}
	if r.static != nil {
		if route := r.static.FindNextHopRoute(destination); route != nil {
			return &NextHop{AccountID: route.NextHop, Route: route}
		}
	}
	if route := r.dynamic.FindNextHopRoute(destination); route != nil {
		return &NextHop{AccountID: route.NextHop, Route: route}
	}
	if r.pingID != "" && destination.HasPrefix(r.operator) {
		return &NextHop{AccountID: r.pingID}
	}
	return nil
}

func (r *Router) childAccount(destination ilp.Address) (string, bool) {
	if r.children == nil || destination == r.operator {
		return "", false
	}
	if !destination.HasPrefix(r.operator) {
		return "", false
	}
	rest := string(destination[len(r.operator)+1:])
	child := rest
	if idx := strings.IndexByte(rest, '.'); idx >= 0 {
		child = rest[:idx]
	}
	if child != "" && r.children.HasAccount(child) {
		return child, true
	}
	return "", false
}
