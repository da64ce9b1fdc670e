package filters

import (
	"context"

	"ilpswitch/ilp"
)

// DestinationFilter rejects destinations this operator does not serve:
// self-addressed control schemes, internal-only namespaces reached from an
// external peer, and allocation schemes outside the operator's own.
// Peer-protocol destinations pass through for local interception further down
// the pipeline.
type DestinationFilter struct {
	operator ilp.Address
}

func NewDestinationFilter(operator ilp.Address) *DestinationFilter {
	return &DestinationFilter{operator: operator}
}

func (f *DestinationFilter) Name() string { return "destination" }

func (f *DestinationFilter) Process(ctx context.Context, req *Request, next Chain) ilp.Reply {
	destination := req.Packet.Destination
	switch destination.Scheme() {
	case ilp.SchemePeer:
		// Answered locally by the peer-protocol stage.
		return next.Proceed(ctx, req)
	case ilp.SchemeSelf:
		return ilp.NewReject(ilp.CodeUnreachable, "self-addressed destinations are not forwarded", f.operator)
	case ilp.SchemeLocal, ilp.SchemePrivate:
		if !req.Source.Internal {
			return ilp.NewReject(ilp.CodeUnreachable, "internal-only destination", f.operator)
		}
	default:
		if destination.Scheme() != f.operator.Scheme() {
			return ilp.NewReject(ilp.CodeUnreachable, "destination outside served address space", f.operator)
		}
	}
	return next.Proceed(ctx, req)
}
