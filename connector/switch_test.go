package connector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ilpswitch/accounts"
	"ilpswitch/balance"
	"ilpswitch/ilp"
	"ilpswitch/routing"
)

var operator = ilp.MustAddress("g.node")

type fakeLink struct {
	mu     sync.Mutex
	sent   int
	handle func(ctx context.Context, packet *ilp.Prepare) (ilp.Reply, error)
}

func (l *fakeLink) SendPacket(ctx context.Context, packet *ilp.Prepare) (ilp.Reply, error) {
	l.mu.Lock()
	l.sent++
	l.mu.Unlock()
	return l.handle(ctx, packet)
}

func (l *fakeLink) sentCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent
}

type fixture struct {
	sw      *Switch
	tracker *balance.MemoryStore
	link    *fakeLink
	clock   *steppedClock
}

// steppedClock returns each queued instant in turn, then keeps returning the
// last one. The switch reads it once on arrival and once at dispatch.
type steppedClock struct {
	mu    sync.Mutex
	times []time.Time
}

func (c *steppedClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.times[0]
	if len(c.times) > 1 {
		c.times = c.times[1:]
	}
	return t
}

var t0 = time.Unix(1_700_000_000, 0)

func newFixture(t *testing.T, handle func(ctx context.Context, packet *ilp.Prepare) (ilp.Reply, error), clockTimes ...time.Time) *fixture {
	t.Helper()
	if handle == nil {
		handle = func(_ context.Context, packet *ilp.Prepare) (ilp.Reply, error) {
			return &ilp.Fulfill{Fulfillment: ilp.Fulfillment{1}}, nil
		}
	}
	if len(clockTimes) == 0 {
		clockTimes = []time.Time{t0}
	}
	clock := &steppedClock{times: clockTimes}

	provider := accounts.NewStaticProvider([]accounts.Settings{
		{AccountID: "alice"},
		{AccountID: "peer"},
	})
	table := routing.NewTable()
	table.AddRoute(&routing.Route{Prefix: ilp.MustAddress("g.example"), NextHop: "peer"})
	router := routing.NewRouter(operator, nil, table, provider, PingAccountID)

	link := &fakeLink{handle: handle}
	links := NewLinkRegistry()
	links.Register("peer", link)

	tracker := balance.NewMemoryStore()
	sw := New(Config{
		Operator: operator,
		Router:   router,
		Links:    links,
		Accounts: provider,
		Tracker:  tracker,
		Clock:    clock.now,
	})
	return &fixture{sw: sw, tracker: tracker, link: link, clock: clock}
}

func preparePacket(amount uint64) *ilp.Prepare {
	fulfillment := ilp.Fulfillment{1}
	return &ilp.Prepare{
		Destination:        ilp.MustAddress("g.example.alice"),
		Amount:             amount,
		ExecutionCondition: fulfillment.Condition(),
		ExpiresAt:          t0.Add(30 * time.Second),
	}
}

func clearing(t *testing.T, tracker balance.Tracker, accountID string) int64 {
	t.Helper()
	state, err := tracker.Balance(context.Background(), accountID)
	if err != nil {
		t.Fatalf("balance read: %v", err)
	}
	return state.ClearingBalance
}

func TestRouteFulfillEndToEnd(t *testing.T) {
	fx := newFixture(t, nil)
	reply := fx.sw.Route(context.Background(), "alice", preparePacket(10))
	fulfill, ok := reply.(*ilp.Fulfill)
	if !ok {
		t.Fatalf("expected fulfill, got %#v", reply)
	}
	if fulfill.Fulfillment != (ilp.Fulfillment{1}) {
		t.Fatalf("wrong fulfillment echoed")
	}
	if got := clearing(t, fx.tracker, "alice"); got != -10 {
		t.Fatalf("source reservation should persist on fulfill: %d", got)
	}
	if got := clearing(t, fx.tracker, "peer"); got != 10 {
		t.Fatalf("next hop should be credited: %d", got)
	}
}

func TestRouteRejectPropagatesAndReleases(t *testing.T) {
	downstream := ilp.NewReject(ilp.CodeCannotReceive, "busy day", ilp.MustAddress("g.example"))
	fx := newFixture(t, func(context.Context, *ilp.Prepare) (ilp.Reply, error) {
		return downstream, nil
	})
	reply := fx.sw.Route(context.Background(), "alice", preparePacket(10))
	reject, ok := reply.(*ilp.Reject)
	if !ok || reject.Code != ilp.CodeCannotReceive || reject.Message != "busy day" {
		t.Fatalf("peer rejects must propagate verbatim, got %#v", reply)
	}
	if got := clearing(t, fx.tracker, "alice"); got != 0 {
		t.Fatalf("reservation must be released on reject: %d", got)
	}
	if got := clearing(t, fx.tracker, "peer"); got != 0 {
		t.Fatalf("no credit on reject: %d", got)
	}
}

func TestRouteWrongFulfillmentBecomesReject(t *testing.T) {
	fx := newFixture(t, func(context.Context, *ilp.Prepare) (ilp.Reply, error) {
		return &ilp.Fulfill{Fulfillment: ilp.Fulfillment{9, 9}}, nil
	})
	reply := fx.sw.Route(context.Background(), "alice", preparePacket(10))
	reject, ok := reply.(*ilp.Reject)
	if !ok || reject.Code != ilp.CodeWrongCondition {
		t.Fatalf("unverifiable fulfillment must convert to F05, got %#v", reply)
	}
	if got := clearing(t, fx.tracker, "alice"); got != 0 {
		t.Fatalf("integrity reject must release the reservation: %d", got)
	}
}

func TestRouteExpiredAtDispatchSkipsLink(t *testing.T) {
	// Arrival leaves 5s on the clock, but by dispatch the window is spent.
	fx := newFixture(t, nil, t0, t0.Add(time.Minute))
	packet := preparePacket(10)
	packet.ExpiresAt = t0.Add(5 * time.Second)

	reply := fx.sw.Route(context.Background(), "alice", packet)
	reject, ok := reply.(*ilp.Reject)
	if !ok || reject.Code != ilp.CodeInsufficientTimeout {
		t.Fatalf("expected R02, got %#v", reply)
	}
	if fx.link.sentCount() != 0 {
		t.Fatalf("link must never be invoked once the window is spent")
	}
	if got := clearing(t, fx.tracker, "alice"); got != 0 {
		t.Fatalf("reservation must be released: %d", got)
	}
}

func TestRouteLinkTimeoutBecomesR00(t *testing.T) {
	fx := newFixture(t, func(ctx context.Context, _ *ilp.Prepare) (ilp.Reply, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	packet := preparePacket(10)
	packet.ExpiresAt = t0.Add(20 * time.Millisecond)

	reply := fx.sw.Route(context.Background(), "alice", packet)
	reject, ok := reply.(*ilp.Reject)
	if !ok || reject.Code != ilp.CodeTransferTimedOut {
		t.Fatalf("expected R00, got %#v", reply)
	}
	if got := clearing(t, fx.tracker, "alice"); got != 0 {
		t.Fatalf("reservation must be released on timeout: %d", got)
	}
}

func TestRouteLinkErrorBecomesInternalReject(t *testing.T) {
	fx := newFixture(t, func(context.Context, *ilp.Prepare) (ilp.Reply, error) {
		return nil, errors.New("connection reset")
	})
	reply := fx.sw.Route(context.Background(), "alice", preparePacket(10))
	reject, ok := reply.(*ilp.Reject)
	if !ok || reject.Code != ilp.CodeInternalError {
		t.Fatalf("transport failures translate to T00, got %#v", reply)
	}
	if got := clearing(t, fx.tracker, "alice"); got != 0 {
		t.Fatalf("reservation must be released: %d", got)
	}
}

func TestRouteLinkPanicIsContained(t *testing.T) {
	fx := newFixture(t, func(context.Context, *ilp.Prepare) (ilp.Reply, error) {
		panic("link bug")
	})
	reply := fx.sw.Route(context.Background(), "alice", preparePacket(10))
	reject, ok := reply.(*ilp.Reject)
	if !ok || reject.Code != ilp.CodeInternalError {
		t.Fatalf("panics must surface as T00, got %#v", reply)
	}
	if got := clearing(t, fx.tracker, "alice"); got != 0 {
		t.Fatalf("a crashing link must still release the reservation: %d", got)
	}
}

func TestRouteNoRoute(t *testing.T) {
	fx := newFixture(t, nil)
	packet := preparePacket(10)
	packet.Destination = ilp.MustAddress("g.unknown.network")
	reply := fx.sw.Route(context.Background(), "alice", packet)
	reject, ok := reply.(*ilp.Reject)
	if !ok || reject.Code != ilp.CodeUnreachable {
		t.Fatalf("expected F02, got %#v", reply)
	}
	if got := clearing(t, fx.tracker, "alice"); got != 0 {
		t.Fatalf("reservation must be released when unroutable: %d", got)
	}
}

func TestRouteUnknownSourceAccount(t *testing.T) {
	fx := newFixture(t, nil)
	reply := fx.sw.Route(context.Background(), "stranger", preparePacket(10))
	reject, ok := reply.(*ilp.Reject)
	if !ok || reject.Code != ilp.CodeInternalError {
		t.Fatalf("expected T00 for an unknown source, got %#v", reply)
	}
}

func TestRouteMalformedDestination(t *testing.T) {
	fx := newFixture(t, nil)
	packet := preparePacket(1)
	packet.Destination = ilp.Address("not a real address")
	reply := fx.sw.Route(context.Background(), "alice", packet)
	reject, ok := reply.(*ilp.Reject)
	if !ok || reject.Code != ilp.CodeInvalidPacket {
		t.Fatalf("expected F01, got %#v", reply)
	}
}

func TestRoutePingEcho(t *testing.T) {
	fx := newFixture(t, nil)
	packet := &ilp.Prepare{
		Destination:        operator,
		Amount:             0,
		ExecutionCondition: ilp.PingFulfillment.Condition(),
		ExpiresAt:          t0.Add(30 * time.Second),
		Data:               []byte("are you there"),
	}
	reply := fx.sw.Route(context.Background(), "alice", packet)
	fulfill, ok := reply.(*ilp.Fulfill)
	if !ok {
		t.Fatalf("ping should fulfill, got %#v", reply)
	}
	if fulfill.Fulfillment != ilp.PingFulfillment {
		t.Fatalf("ping must answer with the well-known fulfillment")
	}
	if string(fulfill.Data) != "are you there" {
		t.Fatalf("ping should echo the payload, got %q", fulfill.Data)
	}
}

func TestRoutePeerConfigHandledLocally(t *testing.T) {
	fx := newFixture(t, nil)
	packet := &ilp.Prepare{
		Destination:        ilp.MustAddress("peer.config"),
		ExecutionCondition: ilp.ZeroFulfillment.Condition(),
		ExpiresAt:          t0.Add(30 * time.Second),
	}
	reply := fx.sw.Route(context.Background(), "alice", packet)
	fulfill, ok := reply.(*ilp.Fulfill)
	if !ok {
		t.Fatalf("peer.config should fulfill locally, got %#v", reply)
	}
	if string(fulfill.Data) != "g.node.alice" {
		t.Fatalf("expected derived child address, got %q", fulfill.Data)
	}
	if fx.link.sentCount() != 0 {
		t.Fatalf("peer-protocol packets must never reach a link")
	}
}

func TestRouteConcurrentPackets(t *testing.T) {
	fx := newFixture(t, nil)
	const packets = 50
	var wg sync.WaitGroup
	for i := 0; i < packets; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply := fx.sw.Route(context.Background(), "alice", preparePacket(1))
			if _, ok := reply.(*ilp.Fulfill); !ok {
				t.Errorf("unexpected reply %#v", reply)
			}
		}()
	}
	wg.Wait()
	if got := clearing(t, fx.tracker, "alice"); got != -packets {
		t.Fatalf("every reservation must land exactly once: %d", got)
	}
	if got := clearing(t, fx.tracker, "peer"); got != packets {
		t.Fatalf("every credit must land exactly once: %d", got)
	}
}
