// Package connector wires the packet switch: the orchestrator that threads a
// Prepare through the incoming filter pipeline, resolves its next hop, and
// dispatches the send through the outgoing chain under the packet's own
// expiry budget. Every code path returns a Fulfill or a categorized Reject;
// nothing escapes to the caller as a fault.
package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ilpswitch/accounts"
	"ilpswitch/balance"
	"ilpswitch/filters"
	"ilpswitch/ilp"
	"ilpswitch/routing"
	"ilpswitch/settlement"
)

// PingAccountID is the reserved internal account self-addressed diagnostics
// resolve to. It never corresponds to a peering relationship.
const PingAccountID = "__ping_account__"

// Config assembles a Switch.
type Config struct {
	Operator    ilp.Address
	Router      *routing.Router
	Links       *LinkRegistry
	Accounts    accounts.Provider
	Tracker     balance.Tracker
	Settlement  *settlement.Monitor
	Broadcaster filters.RouteBroadcaster
	Logger      *slog.Logger
	Clock       func() time.Time
}

// Switch is the packet-forwarding engine.
type Switch struct {
	operator ilp.Address
	router   *routing.Router
	links    *LinkRegistry
	accounts accounts.Provider
	incoming *filters.Pipeline
	outgoing *filters.LinkPipeline
	logger   *slog.Logger
	now      func() time.Time
}

// New builds the switch and composes both filter chains in their canonical
// order. The ping link is registered automatically.
func New(cfg Config) *Switch {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	links := cfg.Links
	if links == nil {
		links = NewLinkRegistry()
	}
	s := &Switch{
		operator: cfg.Operator,
		router:   cfg.Router,
		links:    links,
		accounts: cfg.Accounts,
		logger:   logger,
		now:      now,
	}
	s.incoming = filters.NewPipeline(s.forward,
		filters.NewRateLimitFilter(cfg.Operator),
		filters.NewExpiryFilter(cfg.Operator, now),
		filters.NewDestinationFilter(cfg.Operator),
		filters.NewMaxAmountFilter(cfg.Operator),
		filters.NewBalanceFilter(cfg.Operator, cfg.Tracker, logger),
		filters.NewValidateFulfillmentFilter(cfg.Operator),
		filters.NewPeerProtocolFilter(cfg.Operator, cfg.Broadcaster),
	)
	s.outgoing = filters.NewLinkPipeline(s.send,
		filters.NewOutgoingBalanceFilter(cfg.Tracker, cfg.Settlement, logger),
		filters.NewOutgoingMaxAmountFilter(cfg.Operator),
		filters.NewMetricsFilter(),
	)
	links.Register(PingAccountID, NewPingLink(cfg.Operator))
	return s
}

// Route forwards one inbound Prepare received from sourceAccountID and
// returns its terminal Reply. It is safe for arbitrary concurrent use; the
// balance tracker and routing table are the only synchronization points.
func (s *Switch) Route(ctx context.Context, sourceAccountID string, packet *ilp.Prepare) (reply ilp.Reply) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("packet handling panicked",
				slog.String("source", sourceAccountID),
				slog.Any("panic", r))
			reply = ilp.NewReject(ilp.CodeInternalError, "internal error", s.operator)
		}
	}()
	if packet == nil {
		return ilp.NewReject(ilp.CodeInvalidPacket, "missing packet", s.operator)
	}
	if _, err := ilp.ParseAddress(string(packet.Destination)); err != nil {
		return ilp.NewReject(ilp.CodeInvalidPacket, "malformed destination address", s.operator)
	}
	source, err := s.accounts.Lookup(sourceAccountID)
	if err != nil {
		s.logger.Error("source account has no settings",
			slog.String("source", sourceAccountID),
			slog.Any("error", err))
		return ilp.NewReject(ilp.CodeInternalError, "unknown source account", s.operator)
	}
	req := &filters.Request{Source: source, Packet: packet}
	return s.incoming.Run(ctx, req)
}

// forward is the incoming pipeline's terminal: resolve the next hop and run
// the outgoing chain against it.
func (s *Switch) forward(ctx context.Context, req *filters.Request) ilp.Reply {
	hop := s.router.FindBestNextHop(req.Packet.Destination)
	if hop == nil {
		return ilp.NewReject(ilp.CodeUnreachable, "no route to destination", s.operator)
	}
	destination, ok := s.destinationSettings(hop.AccountID)
	if !ok {
		s.logger.Error("next hop has no account settings", slog.String("account", hop.AccountID))
		return ilp.NewReject(ilp.CodeInternalError, "misconfigured next hop", s.operator)
	}
	out := &filters.OutboundRequest{
		Destination: destination,
		Packet:      req.Packet,
		ArrivedAt:   req.ArrivedAt,
	}
	return s.outgoing.Run(ctx, out)
}

func (s *Switch) destinationSettings(accountID string) (accounts.Settings, bool) {
	settings, err := s.accounts.Lookup(accountID)
	if err == nil {
		return settings, true
	}
	if accountID == PingAccountID {
		return accounts.Settings{AccountID: PingAccountID, Internal: true}, true
	}
	return accounts.Settings{}, false
}

// send is the outgoing chain's terminal. The remaining time to expiry is the
// send's entire budget: a spent window rejects without touching the link, and
// the context deadline cancels an in-flight send where the transport supports
// it. There are no retries at any layer of the switch.
func (s *Switch) send(ctx context.Context, req *filters.OutboundRequest) ilp.Reply {
	budget := req.Packet.ExpiresAt.Sub(s.now())
	if budget <= 0 {
		return ilp.NewReject(ilp.CodeInsufficientTimeout, "expiry window exhausted before dispatch", s.operator)
	}
	link := s.links.Get(req.Destination.AccountID)
	if link == nil {
		return ilp.NewReject(ilp.CodePeerUnreachable, "no link attached to next hop", s.operator)
	}
	sendCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	reply, err := s.sendPacket(sendCtx, link, req.Packet)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
			return ilp.NewReject(ilp.CodeTransferTimedOut, "transfer timed out", s.operator)
		}
		s.logger.Error("link send failed",
			slog.String("account", req.Destination.AccountID),
			slog.Any("error", err))
		return ilp.NewReject(ilp.CodeInternalError, "link failure", s.operator)
	}
	if reply == nil {
		return ilp.NewReject(ilp.CodeInternalError, "link returned no reply", s.operator)
	}
	return reply
}

// sendPacket contains link panics below the balance stage so a crashing
// transport still releases the source reservation on the way back up.
func (s *Switch) sendPacket(ctx context.Context, link Link, packet *ilp.Prepare) (reply ilp.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("link send panicked", slog.Any("panic", r))
			reply, err = nil, fmt.Errorf("link panic: %v", r)
		}
	}()
	return link.SendPacket(ctx, packet)
}
