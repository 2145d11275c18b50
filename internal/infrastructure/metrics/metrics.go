package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReservationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radagast_reservations_created_total",
		Help: "Reservations created with a full allocation plan.",
	})

	// ReservationsConfirmed is labeled by trigger: "api" for explicit
	// confirms, "sweeper" for deadline auto-confirms.
	ReservationsConfirmed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radagast_reservations_confirmed_total",
		Help: "Reservations committed to the ledger.",
	}, []string{"trigger"})

	ReservationsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radagast_reservations_released_total",
		Help: "Reservations released back to available stock.",
	})

	AllocationRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radagast_allocation_rejections_total",
		Help: "Create requests rejected with insufficient inventory.",
	})

	LedgerInconsistencies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radagast_ledger_inconsistencies_total",
		Help: "Transitions aborted because the ledger disagreed with the reservation. Requires manual reconciliation.",
	})

	SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radagast_sweep_runs_total",
		Help: "Expiry sweeper scan cycles.",
	})
)
