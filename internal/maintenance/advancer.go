package maintenance

import (
	"context"

	"github.com/plantops/sitewatch/internal/datastore/entities"
	"github.com/plantops/sitewatch/internal/errors"
	"github.com/plantops/sitewatch/internal/logger"
)

// ErrInvalidCompletion is returned when a completion's hours value precedes
// the last recorded maintenance. The schedule is left unchanged.
var ErrInvalidCompletion = errors.NewStd("completion hours precede last recorded maintenance")

// CompleteMaintenance records a completed maintenance at the given
// running-hours value: it sets lastMaintenanceHours, recomputes
// nextMaintenanceHours, clears the notification bookkeeping so the next
// cycle can alert again, and appends a maintenance log entry. This is the
// only path that moves nextMaintenanceHours.
//
// Re-applying the same completionHours is safe; an earlier value fails with
// ErrInvalidCompletion.
func (e *Engine) CompleteMaintenance(ctx context.Context, scheduleID uint, completionHours float64, notes string) (*entities.MaintenanceSchedule, error) {
	lock := e.scheduleLock(scheduleID)
	lock.Lock()
	defer lock.Unlock()

	schedule, err := e.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	if completionHours < schedule.LastMaintenanceHours {
		return nil, errors.New(ErrInvalidCompletion).
			Component("maintenance").
			Category(errors.CategoryValidation).
			Context("schedule_id", scheduleID).
			Context("completion_hours", completionHours).
			Context("last_maintenance_hours", schedule.LastMaintenanceHours).
			Build()
	}

	previousDue := schedule.NextMaintenanceHours
	schedule.LastMaintenanceHours = completionHours
	schedule.NextMaintenanceHours = completionHours + schedule.IntervalHours
	schedule.LastEmailSent = nil

	logEntry := &entities.MaintenanceLog{
		ScheduleID:       schedule.ID,
		CompletedAtHours: completionHours,
		PreviousDueHours: previousDue,
		Notes:            notes,
	}
	if err := e.schedules.ApplyCompletion(ctx, schedule, logEntry); err != nil {
		return nil, err
	}

	e.log.Info("maintenance completed",
		logger.Uint64("schedule_id", uint64(schedule.ID)),
		logger.String("maintenance_type", schedule.MaintenanceType),
		logger.Float64("completion_hours", completionHours),
		logger.Float64("next_due_hours", schedule.NextMaintenanceHours))

	return schedule, nil
}
