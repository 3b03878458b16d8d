package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestEconomyMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewEconomyMetrics(reg)

	metrics.IncBattle("critical_win")
	metrics.AddPointsMoved("battle_loss", -125)
	metrics.IncSwapTransition("confirmed")
	metrics.IncOrderConfirmed()
	metrics.IncAppendConflict()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "battles_resolved_total", "outcome", "critical_win"); err != nil {
		t.Fatalf("fetch battles: %v", err)
	} else if got != 1 {
		t.Fatalf("expected battles=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "ledger_points_moved_total", "reason", "battle_loss"); err != nil {
		t.Fatalf("fetch points: %v", err)
	} else if got != 125 {
		t.Fatalf("expected absolute points 125, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "treasury_swap_transitions_total", "status", "confirmed"); err != nil {
		t.Fatalf("fetch swaps: %v", err)
	} else if got != 1 {
		t.Fatalf("expected swaps=1, got %f", got)
	}
}

func TestEconomyMetricsNilReceiverIsSafe(t *testing.T) {
	var metrics *EconomyMetrics
	metrics.IncBattle("win")
	metrics.AddPointsMoved("swap_credit", 10)
	metrics.IncSwapTransition("failed")
	metrics.IncOrderConfirmed()
	metrics.IncAppendConflict()
}
