package filters

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"ilpswitch/ilp"
)

// RateLimitFilter drops packets from accounts whose token bucket is
// exhausted. Limiters are created lazily per account from its settings;
// accounts without a configured rate pass through untouched.
type RateLimitFilter struct {
	operator ilp.Address

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewRateLimitFilter(operator ilp.Address) *RateLimitFilter {
	return &RateLimitFilter{
		operator: operator,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *RateLimitFilter) Name() string { return "rate-limit" }

func (f *RateLimitFilter) Process(ctx context.Context, req *Request, next Chain) ilp.Reply {
	limit := req.Source.RateLimitPerSecond
	if limit == nil {
		return next.Proceed(ctx, req)
	}
	limiter := f.obtain(req.Source.AccountID, *limit, req.Source.RateLimitBurst)
	if !limiter.Allow() {
		switchMetricsShared().recordRateLimited(req.Source.AccountID)
		return ilp.NewReject(ilp.CodeRateLimited, "too many requests", f.operator)
	}
	return next.Proceed(ctx, req)
}

func (f *RateLimitFilter) obtain(accountID string, perSecond float64, burst int) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limiter, ok := f.limiters[accountID]; ok {
		return limiter
	}
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	f.limiters[accountID] = limiter
	return limiter
}
