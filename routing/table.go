package routing

import (
	"sort"
	"strings"
	"sync"
	"time"

	"ilpswitch/ilp"
)

// Route binds an address prefix to the next-hop account packets under that
// prefix should be forwarded to. Path is the loop-detection trail accumulated
// by route discovery; Auth is the opaque authentication tag carried by the
// advertisement. Routes are replaced whole on re-add, never field-mutated.
type Route struct {
	Prefix    ilp.Address
	NextHop   string
	Path      []ilp.Address
	ExpiresAt time.Time
	Auth      []byte
}

// Expired reports whether the route has a deadline that is already past.
func (r *Route) Expired(now time.Time) bool {
	return routeExpired(r, now)
}

// Table is a prefix-keyed routing table with longest-prefix-match resolution.
// Reads are lock-shared and never observe a partially applied write.
type Table struct {
	mu       sync.RWMutex
	routes   map[ilp.Address]*Route
	catchAll ilp.Address
	now      func() time.Time
}

// Option configures a Table.
type Option func(*Table)

// WithCatchAll registers the prefix that matches any destination no longer
// stored prefix covers. The catch-all only resolves while a route for it is
// present in the table.
func WithCatchAll(prefix ilp.Address) Option {
	return func(t *Table) { t.catchAll = prefix }
}

// WithClock overrides the expiry clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(t *Table) { t.now = now }
}

// NewTable returns an empty routing table.
func NewTable(opts ...Option) *Table {
	t := &Table{
		routes: make(map[ilp.Address]*Route),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// AddRoute upserts the route under its prefix and returns it. The last write
// for a prefix wins.
func (t *Table) AddRoute(route *Route) *Route {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes[route.Prefix] = route
	return route
}

// RemoveRoute deletes the route stored under prefix, returning it if present.
func (t *Table) RemoveRoute(prefix ilp.Address) *Route {
	t.mu.Lock()
	defer t.mu.Unlock()
	route := t.routes[prefix]
	delete(t.routes, prefix)
	return route
}

// RouteByPrefix looks up the exact prefix key without prefix matching.
func (t *Table) RouteByPrefix(prefix ilp.Address) *Route {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.routes[prefix]
}

// FindNextHopRoute resolves destination to the most specific stored route.
// The destination's own address is probed first, then each shorter
// whole-segment prefix down to the root; the catch-all prefix matches last if
// configured and present. Routes past their expiry never match.
func (t *Table) FindNextHopRoute(destination ilp.Address) *Route {
	t.mu.RLock()
	defer t.mu.RUnlock()
	now := t.now()
	key := string(destination)
	for {
		if route, ok := t.routes[ilp.Address(key)]; ok && !routeExpired(route, now) {
			return route
		}
		idx := strings.LastIndexByte(key, '.')
		if idx < 0 {
			break
		}
		key = key[:idx]
	}
	if t.catchAll != "" {
		if route, ok := t.routes[t.catchAll]; ok && !routeExpired(route, now) {
			return route
		}
	}
	return nil
}

func routeExpired(route *Route, now time.Time) bool {
	return !route.ExpiresAt.IsZero() && now.After(route.ExpiresAt)
}

// Prefixes returns all stored prefixes in sorted order.
func (t *Table) Prefixes() []ilp.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()
	prefixes := make([]ilp.Address, 0, len(t.routes))
	for prefix := range t.routes {
		prefixes = append(prefixes, prefix)
	}
	sort.Slice(prefixes, func(i, j int) bool { return prefixes[i] < prefixes[j] })
	return prefixes
}

// ForEach visits every route. The visitor runs under the read lock and must
// not call back into the table.
func (t *Table) ForEach(visit func(prefix ilp.Address, route *Route)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for prefix, route := range t.routes {
		visit(prefix, route)
	}
}

// Reset clears every entry. Used when a peer requests full resynchronization.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes = make(map[ilp.Address]*Route)
}

// SweepExpired removes routes whose expiry has passed and returns how many
// were dropped.
func (t *Table) SweepExpired() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	dropped := 0
	for prefix, route := range t.routes {
		if routeExpired(route, now) {
			delete(t.routes, prefix)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of stored routes.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.routes)
}
