package filters

import (
	"context"
	"time"

	"ilpswitch/ilp"
)

// ExpiryFilter stamps the arrival time on the request and refuses packets
// whose expiry window is already exhausted on receipt, before any balance is
// touched.
type ExpiryFilter struct {
	operator ilp.Address
	now      func() time.Time
}

func NewExpiryFilter(operator ilp.Address, now func() time.Time) *ExpiryFilter {
	if now == nil {
		now = time.Now
	}
	return &ExpiryFilter{operator: operator, now: now}
}

func (f *ExpiryFilter) Name() string { return "expiry" }

func (f *ExpiryFilter) Process(ctx context.Context, req *Request, next Chain) ilp.Reply {
	arrived := f.now()
	req.ArrivedAt = arrived
	if !req.Packet.ExpiresAt.After(arrived) {
		return ilp.NewReject(ilp.CodeInsufficientTimeout, "packet expired on arrival", f.operator)
	}
	return next.Proceed(ctx, req)
}
