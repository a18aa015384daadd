package metrics

import "github.com/prometheus/client_golang/prometheus"

// BidMetrics counts bid outcomes by stable error code.
type BidMetrics struct {
	accepted prometheus.Counter
	rejected *prometheus.CounterVec
}

// NewBidMetrics registers bid counters on the provided registerer.
func NewBidMetrics(reg prometheus.Registerer) *BidMetrics {
	if reg == nil {
		return &BidMetrics{}
	}
	accepted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bids_accepted_total",
		Help: "Bids accepted by the engine.",
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bids_rejected_total",
		Help: "Bids rejected by the engine, labeled by error code.",
	}, []string{"code"})
	reg.MustRegister(accepted, rejected)
	return &BidMetrics{accepted: accepted, rejected: rejected}
}

// IncAccepted increments the accepted bid counter.
func (b *BidMetrics) IncAccepted() {
	if b == nil || b.accepted == nil {
		return
	}
	b.accepted.Inc()
}

// IncRejected increments the rejected counter for the given code.
func (b *BidMetrics) IncRejected(code string) {
	if b == nil || b.rejected == nil {
		return
	}
	b.rejected.WithLabelValues(normalizeLabel(code)).Inc()
}
