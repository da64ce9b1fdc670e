// Package filters implements the two-phase inspection chains wrapped around
// every forwarded packet: the incoming pipeline between a source account and
// the forwarding decision, and the outgoing chain between that decision and
// the network send. Each stage sees the request on the way down and the reply
// on the way up, and may short-circuit by returning a Reject instead of
// proceeding.
package filters

import (
	"context"
	"time"

	"ilpswitch/accounts"
	"ilpswitch/ilp"
)

// Request is the per-packet state threaded through the incoming pipeline.
type Request struct {
	Source accounts.Settings
	Packet *ilp.Prepare

	// ArrivedAt is stamped by the expiry stage so downstream timeout
	// accounting measures from first receipt, not from the forwarding
	// decision.
	ArrivedAt time.Time
}

// Chain continues the pipeline. A filter that wants the request to advance
// calls Proceed exactly once and may rewrite the reply it gets back.
type Chain interface {
	Proceed(ctx context.Context, req *Request) ilp.Reply
}

// Filter is one stage of the incoming pipeline.
type Filter interface {
	Name() string
	Process(ctx context.Context, req *Request, next Chain) ilp.Reply
}

// Terminal sits at the bottom of the pipeline; for the switch it is the
// forwarding step.
type Terminal func(ctx context.Context, req *Request) ilp.Reply

// Pipeline is an immutable ordered filter list composed at construction time.
type Pipeline struct {
	filters  []Filter
	terminal Terminal
}

func NewPipeline(terminal Terminal, stages ...Filter) *Pipeline {
	return &Pipeline{filters: stages, terminal: terminal}
}

// Run threads the request down the chain and the reply back up.
func (p *Pipeline) Run(ctx context.Context, req *Request) ilp.Reply {
	return cursor{pipeline: p}.Proceed(ctx, req)
}

type cursor struct {
	pipeline *Pipeline
	index    int
}

func (c cursor) Proceed(ctx context.Context, req *Request) ilp.Reply {
	if c.index < len(c.pipeline.filters) {
		stage := c.pipeline.filters[c.index]
		return stage.Process(ctx, req, cursor{pipeline: c.pipeline, index: c.index + 1})
	}
	return c.pipeline.terminal(ctx, req)
}

// OutboundRequest is the state threaded through the outgoing chain once a
// next hop is resolved.
type OutboundRequest struct {
	Destination accounts.Settings
	Packet      *ilp.Prepare
	ArrivedAt   time.Time
}

// LinkChain continues the outgoing chain.
type LinkChain interface {
	Proceed(ctx context.Context, req *OutboundRequest) ilp.Reply
}

// LinkFilter is one stage of the outgoing chain.
type LinkFilter interface {
	Name() string
	Process(ctx context.Context, req *OutboundRequest, next LinkChain) ilp.Reply
}

// LinkTerminal performs the actual send on the resolved link.
type LinkTerminal func(ctx context.Context, req *OutboundRequest) ilp.Reply

// LinkPipeline is the outgoing counterpart of Pipeline.
type LinkPipeline struct {
	filters  []LinkFilter
	terminal LinkTerminal
}

func NewLinkPipeline(terminal LinkTerminal, stages ...LinkFilter) *LinkPipeline {
	return &LinkPipeline{filters: stages, terminal: terminal}
}

func (p *LinkPipeline) Run(ctx context.Context, req *OutboundRequest) ilp.Reply {
	return linkCursor{pipeline: p}.Proceed(ctx, req)
}

type linkCursor struct {
	pipeline *LinkPipeline
	index    int
}

func (c linkCursor) Proceed(ctx context.Context, req *OutboundRequest) ilp.Reply {
	if c.index < len(c.pipeline.filters) {
		stage := c.pipeline.filters[c.index]
		return stage.Process(ctx, req, linkCursor{pipeline: c.pipeline, index: c.index + 1})
	}
	return c.pipeline.terminal(ctx, req)
}
