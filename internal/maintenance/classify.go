package maintenance

import (
	"github.com/plantops/sitewatch/internal/datastore/entities"
)

// Status is the result of classifying one schedule against current hours.
type Status struct {
	State UrgencyState `json:"state"`
	// DistanceHours is hours overdue when State is Overdue (>= 0),
	// otherwise hours remaining until the due point.
	DistanceHours float64 `json:"distance_hours"`
}

// Classify maps current running hours against a schedule's due point and
// threshold offsets. Pure and total: a missing or negative threshold is
// treated as zero, which degrades that band to overdue-only classification
// rather than producing an error.
//
// Precedence, first match wins:
//
//	currentHours >= nextDue                      → Overdue
//	currentHours >= nextDue - criticalThreshold  → Critical
//	currentHours >= nextDue - warningThreshold   → Warning
//	otherwise                                    → Good
func Classify(currentHours, nextDueHours, warningThresholdHours, criticalThresholdHours float64) Status {
	if warningThresholdHours < 0 {
		warningThresholdHours = 0
	}
	if criticalThresholdHours < 0 {
		criticalThresholdHours = 0
	}

	switch {
	case currentHours >= nextDueHours:
		return Status{State: StateOverdue, DistanceHours: currentHours - nextDueHours}
	case currentHours >= nextDueHours-criticalThresholdHours:
		return Status{State: StateCritical, DistanceHours: nextDueHours - currentHours}
	case currentHours >= nextDueHours-warningThresholdHours:
		return Status{State: StateWarning, DistanceHours: nextDueHours - currentHours}
	default:
		return Status{State: StateGood, DistanceHours: nextDueHours - currentHours}
	}
}

// ClassifySchedule classifies a schedule against its equipment's counter.
func ClassifySchedule(eq *entities.Equipment, schedule *entities.MaintenanceSchedule) Status {
	return Classify(
		eq.CurrentRunningHours,
		schedule.NextMaintenanceHours,
		schedule.WarningThresholdHours,
		schedule.CriticalThresholdHours,
	)
}
