package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GatewayMetrics records payment, settlement and webhook activity.
type GatewayMetrics struct {
	transitions     *prometheus.CounterVec
	settlements     *prometheus.CounterVec
	settlementDelay prometheus.Histogram
	deliveries      *prometheus.CounterVec
	inflight        prometheus.Gauge
}

// NewGatewayMetrics registers the gateway metrics on the provided registerer.
// A nil registerer yields a recorder whose methods are no-ops.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	if reg == nil {
		return &GatewayMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_status_transitions_total",
		Help: "Payment status changes by target status and trigger.",
	}, []string{"status", "trigger"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_outcomes_total",
		Help: "Outcomes drawn by the settlement simulator.",
	}, []string{"outcome"})
	settlementDelay := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "settlement_delay_seconds",
		Help:    "Delay scheduled before a pending payment settles.",
		Buckets: []float64{1, 5, 10, 15, 20, 30, 60},
	})
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Webhook delivery attempts by event and outcome.",
	}, []string{"event", "outcome"})
	inflight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_tasks_inflight",
		Help: "Settlement tasks scheduled but not finished.",
	})
	reg.MustRegister(transitions, settlements, settlementDelay, deliveries, inflight)
	return &GatewayMetrics{
		transitions:     transitions,
		settlements:     settlements,
		settlementDelay: settlementDelay,
		deliveries:      deliveries,
		inflight:        inflight,
	}
}

// IncTransition counts a payment moving into status.
func (g *GatewayMetrics) IncTransition(status, trigger string) {
	if g == nil || g.transitions == nil {
		return
	}
	g.transitions.WithLabelValues(normalizeLabel(status), normalizeLabel(trigger)).Inc()
}

// IncSettlement counts a drawn settlement outcome.
func (g *GatewayMetrics) IncSettlement(outcome string) {
	if g == nil || g.settlements == nil {
		return
	}
	g.settlements.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveSettlementDelay records the scheduled delay for a settlement task.
func (g *GatewayMetrics) ObserveSettlementDelay(delay time.Duration) {
	if g == nil || g.settlementDelay == nil {
		return
	}
	g.settlementDelay.Observe(delay.Seconds())
}

// IncDelivery counts one webhook delivery attempt.
func (g *GatewayMetrics) IncDelivery(event, outcome string) {
	if g == nil || g.deliveries == nil {
		return
	}
	g.deliveries.WithLabelValues(normalizeLabel(event), normalizeLabel(outcome)).Inc()
}

// TaskStarted and TaskFinished track inflight settlement tasks.
func (g *GatewayMetrics) TaskStarted() {
	if g == nil || g.inflight == nil {
		return
	}
	g.inflight.Inc()
}

func (g *GatewayMetrics) TaskFinished() {
	if g == nil || g.inflight == nil {
		return
	}
	g.inflight.Dec()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
