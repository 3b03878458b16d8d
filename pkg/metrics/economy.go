package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EconomyMetrics tracks point movement through the battle and treasury flows.
type EconomyMetrics struct {
	battlesResolved  *prometheus.CounterVec
	pointsTransfered *prometheus.CounterVec
	swapTransitions  *prometheus.CounterVec
	ordersConfirmed  prometheus.Counter
	appendConflicts  prometheus.Counter
}

// NewEconomyMetrics registers the economy metrics on the provided registerer.
func NewEconomyMetrics(reg prometheus.Registerer) *EconomyMetrics {
	if reg == nil {
		return &EconomyMetrics{}
	}
	battles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "battles_resolved_total",
		Help: "Resolved PvP battles by outcome.",
	}, []string{"outcome"})
	points := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_points_moved_total",
		Help: "Absolute points moved through the ledger by reason.",
	}, []string{"reason"})
	swaps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "treasury_swap_transitions_total",
		Help: "Treasury swap state transitions by target status.",
	}, []string{"status"})
	orders := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_confirmed_total",
		Help: "Token-gated orders confirmed and applied.",
	})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_append_conflicts_total",
		Help: "Ledger appends retried after a storage conflict.",
	})
	reg.MustRegister(battles, points, swaps, orders, conflicts)
	return &EconomyMetrics{
		battlesResolved:  battles,
		pointsTransfered: points,
		swapTransitions:  swaps,
		ordersConfirmed:  orders,
		appendConflicts:  conflicts,
	}
}

// IncBattle records one resolved battle with its outcome label
// (win/critical_win).
func (m *EconomyMetrics) IncBattle(outcome string) {
	if m == nil || m.battlesResolved == nil {
		return
	}
	m.battlesResolved.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// AddPointsMoved accumulates absolute point movement for the named reason.
func (m *EconomyMetrics) AddPointsMoved(reason string, points int64) {
	if m == nil || m.pointsTransfered == nil {
		return
	}
	if points < 0 {
		points = -points
	}
	m.pointsTransfered.WithLabelValues(normalizeLabel(reason)).Add(float64(points))
}

// IncSwapTransition records one swap reaching the named terminal status.
func (m *EconomyMetrics) IncSwapTransition(status string) {
	if m == nil || m.swapTransitions == nil {
		return
	}
	m.swapTransitions.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncOrderConfirmed records one order confirmation applied.
func (m *EconomyMetrics) IncOrderConfirmed() {
	if m == nil || m.ordersConfirmed == nil {
		return
	}
	m.ordersConfirmed.Inc()
}

// IncAppendConflict records one retried ledger append.
func (m *EconomyMetrics) IncAppendConflict() {
	if m == nil || m.appendConflicts == nil {
		return
	}
	m.appendConflicts.Inc()
}
