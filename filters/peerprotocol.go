package filters

import (
	"context"

	"ilpswitch/accounts"
	"ilpswitch/ilp"
)

// Reserved peer-control destinations, answered locally and never forwarded.
var (
	peerConfigAddress       = ilp.MustAddress("peer.config")
	peerRouteControlAddress = ilp.MustAddress("peer.route.control")
	peerRouteUpdateAddress  = ilp.MustAddress("peer.route.update")
)

// RouteBroadcaster is the route-discovery collaborator the switch hands
// peer.route traffic to. Its gossip and epoch bookkeeping live outside the
// forwarding core.
type RouteBroadcaster interface {
	HandleRouteControl(ctx context.Context, source accounts.Settings, packet *ilp.Prepare) ilp.Reply
	HandleRouteUpdate(ctx context.Context, source accounts.Settings, packet *ilp.Prepare) ilp.Reply
}

// PeerProtocolFilter intercepts packets addressed to reserved peer-control
// destinations. A configuration handshake answers with the child address
// assigned to the requesting account; route control and update packets are
// delegated to the broadcaster. Peer-protocol responses fulfill with the
// all-zero fulfillment, so callers commit to its hash.
type PeerProtocolFilter struct {
	operator    ilp.Address
	broadcaster RouteBroadcaster
}

func NewPeerProtocolFilter(operator ilp.Address, broadcaster RouteBroadcaster) *PeerProtocolFilter {
	return &PeerProtocolFilter{operator: operator, broadcaster: broadcaster}
}

func (f *PeerProtocolFilter) Name() string { return "peer-protocol" }

func (f *PeerProtocolFilter) Process(ctx context.Context, req *Request, next Chain) ilp.Reply {
	destination := req.Packet.Destination
	if destination.Scheme() != ilp.SchemePeer {
		return next.Proceed(ctx, req)
	}
	switch {
	case destination == peerConfigAddress:
		return f.handleConfig(req)
	case destination == peerRouteControlAddress:
		if f.broadcaster == nil {
			return ilp.NewReject(ilp.CodeUnreachable, "route broadcasting not enabled", f.operator)
		}
		return f.broadcaster.HandleRouteControl(ctx, req.Source, req.Packet)
	case destination == peerRouteUpdateAddress:
		if f.broadcaster == nil {
			return ilp.NewReject(ilp.CodeUnreachable, "route broadcasting not enabled", f.operator)
		}
		return f.broadcaster.HandleRouteUpdate(ctx, req.Source, req.Packet)
	}
	return ilp.NewReject(ilp.CodeUnreachable, "unknown peer-protocol destination", f.operator)
}

func (f *PeerProtocolFilter) handleConfig(req *Request) ilp.Reply {
	child := req.Source.ChildAddress
	if child == "" {
		child = f.operator.Child(req.Source.AccountID)
	}
	return &ilp.Fulfill{
		Fulfillment: ilp.ZeroFulfillment,
		Data:        []byte(child),
	}
}
