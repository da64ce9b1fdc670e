package filters

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"ilpswitch/ilp"
)

var (
	metricsInitOnce sync.Once
	sharedMetrics   *switchMetrics
)

type switchMetrics struct {
	packets     *prometheus.CounterVec
	rejects     *prometheus.CounterVec
	rateLimited *prometheus.CounterVec
	latency     prometheus.Histogram

	meter          metric.Meter
	packetCounter  metric.Int64Counter
	latencyRecords metric.Float64Histogram
}

func switchMetricsShared() *switchMetrics {
	metricsInitOnce.Do(func() {
		m := &switchMetrics{
			packets: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ilp_switch_packets_total",
				Help: "Forwarded packets by next-hop account and outcome.",
			}, []string{"account", "outcome"}),
			rejects: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ilp_switch_rejects_total",
				Help: "Reject replies by protocol error code.",
			}, []string{"code"}),
			rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ilp_switch_rate_limited_total",
				Help: "Packets dropped by the per-account rate limiter.",
			}, []string{"account"}),
			latency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "ilp_switch_fulfill_latency_seconds",
				Help:    "Arrival-to-fulfill latency of forwarded packets.",
				Buckets: prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(m.packets, m.rejects, m.rateLimited, m.latency)
		m.initMeter()
		sharedMetrics = m
	})
	return sharedMetrics
}

func (m *switchMetrics) initMeter() {
	meter := otel.GetMeterProvider().Meter("ilpswitch/filters")
	counter, err := meter.Int64Counter("ilp.switch.packets")
	if err != nil {
		fallback := noop.NewMeterProvider().Meter("ilpswitch/filters")
		counter, _ = fallback.Int64Counter("ilp.switch.packets")
		meter = fallback
	}
	latency, err := meter.Float64Histogram("ilp.switch.fulfill_latency_ms")
	if err != nil {
		fallback := noop.NewMeterProvider().Meter("ilpswitch/filters")
		latency, _ = fallback.Float64Histogram("ilp.switch.fulfill_latency_ms")
		meter = fallback
	}
	m.meter = meter
	m.packetCounter = counter
	m.latencyRecords = latency
}

func (m *switchMetrics) recordOutcome(account, outcome string) {
	if m == nil {
		return
	}
	m.packets.WithLabelValues(account, outcome).Inc()
	if m.packetCounter != nil {
		m.packetCounter.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("account", account),
			attribute.String("outcome", outcome),
		))
	}
}

func (m *switchMetrics) recordReject(code ilp.Code) {
	if m == nil {
		return
	}
	m.rejects.WithLabelValues(code.String()).Inc()
}

func (m *switchMetrics) recordRateLimited(account string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(account).Inc()
}

func (m *switchMetrics) recordLatency(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.latency.Observe(elapsed.Seconds())
	if m.latencyRecords != nil {
		m.latencyRecords.Record(context.Background(), float64(elapsed.Milliseconds()))
	}
}

// MetricsFilter observes every outgoing send: per-account outcome counters,
// reject codes, and arrival-to-fulfill latency.
type MetricsFilter struct{}

func NewMetricsFilter() *MetricsFilter { return &MetricsFilter{} }

func (f *MetricsFilter) Name() string { return "metrics" }

func (f *MetricsFilter) Process(ctx context.Context, req *OutboundRequest, next LinkChain) ilp.Reply {
	reply := next.Proceed(ctx, req)
	m := switchMetricsShared()
	switch r := reply.(type) {
	case *ilp.Fulfill:
		m.recordOutcome(req.Destination.AccountID, "fulfill")
		if !req.ArrivedAt.IsZero() {
			m.recordLatency(time.Since(req.ArrivedAt))
		}
	case *ilp.Reject:
		m.recordOutcome(req.Destination.AccountID, "reject")
		m.recordReject(r.Code)
	}
	return reply
}
