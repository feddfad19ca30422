package maintenance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sitewatch",
		Subsystem: "maintenance",
		Name:      "sweeps_total",
		Help:      "Number of completed maintenance sweeps.",
	})
	sweepSchedules = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sitewatch",
		Subsystem: "maintenance",
		Name:      "sweep_schedules",
		Help:      "Number of active schedules evaluated by the last sweep.",
	})
	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitewatch",
		Subsystem: "maintenance",
		Name:      "notifications_total",
		Help:      "Maintenance alert dispatch attempts by urgency state and outcome.",
	}, []string{"state", "outcome"})
	dueItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sitewatch",
		Subsystem: "maintenance",
		Name:      "due_items",
		Help:      "Schedules per urgency state as of the last sweep.",
	}, []string{"state"})
)

func recordSweep(schedules int) {
	sweepsTotal.Inc()
	sweepSchedules.Set(float64(schedules))
}

func recordNotification(state UrgencyState, sent bool) {
	outcome := "sent"
	if !sent {
		outcome = "failed"
	}
	notificationsTotal.WithLabelValues(state.String(), outcome).Inc()
}

func setDueGauges(summary Summary) {
	dueItems.WithLabelValues(StateGood.String()).Set(float64(summary.Good))
	dueItems.WithLabelValues(StateWarning.String()).Set(float64(summary.Warning))
	dueItems.WithLabelValues(StateCritical.String()).Set(float64(summary.Critical))
	dueItems.WithLabelValues(StateOverdue.String()).Set(float64(summary.Overdue))
}
