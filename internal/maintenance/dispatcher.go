package maintenance

import (
	"context"
	"time"

	"github.com/plantops/sitewatch/internal/datastore/entities"
	"github.com/plantops/sitewatch/internal/errors"
	"github.com/plantops/sitewatch/internal/logger"
)

// ErrNotificationDeliveryFailed wraps provider/network failures from the
// notification collaborator. Non-fatal: lastEmailSent is left untouched so
// the next sweep retries naturally.
var ErrNotificationDeliveryFailed = errors.NewStd("notification delivery failed")

// Notifier is the external notification collaborator. The engine decides
// whether and when to notify; the notifier decides how the message is
// composed and delivered.
type Notifier interface {
	SendMaintenanceAlert(ctx context.Context, eq *entities.Equipment, schedule *entities.MaintenanceSchedule, state UrgencyState, distanceHours float64) error
}

// NotifyResult reports the outcome of a dispatch decision.
type NotifyResult struct {
	Sent  bool
	State UrgencyState
}

// MaybeNotify decides whether an alert should fire for the schedule now and,
// if so, dispatches it. No-ops are idempotent: the method is safe to call at
// arbitrary frequency from the periodic sweep. lastEmailSent is only updated
// after successful delivery.
func (e *Engine) MaybeNotify(ctx context.Context, eq *entities.Equipment, schedule *entities.MaintenanceSchedule, now time.Time) (NotifyResult, error) {
	lock := e.scheduleLock(schedule.ID)
	lock.Lock()
	defer lock.Unlock()

	status := ClassifySchedule(eq, schedule)
	result := NotifyResult{State: status.State}

	if !schedule.EnableEmailAlerts || status.State == StateGood {
		return result, nil
	}
	if !throttleAllows(schedule.EmailFrequency, schedule.LastEmailSent, now, e.emailCooldown) {
		return result, nil
	}

	if err := e.dispatch(ctx, eq, schedule, status, now, false); err != nil {
		return result, err
	}
	result.Sent = true
	return result, nil
}

// ForceNotify sends an alert regardless of urgency state or throttling
// (operator "send email now"). It still stamps lastEmailSent so automatic
// throttling accounts for the manual send.
func (e *Engine) ForceNotify(ctx context.Context, eq *entities.Equipment, schedule *entities.MaintenanceSchedule, now time.Time) (NotifyResult, error) {
	lock := e.scheduleLock(schedule.ID)
	lock.Lock()
	defer lock.Unlock()

	status := ClassifySchedule(eq, schedule)
	result := NotifyResult{State: status.State}
	if err := e.dispatch(ctx, eq, schedule, status, now, true); err != nil {
		return result, err
	}
	result.Sent = true
	return result, nil
}

// throttleAllows applies the per-frequency throttle policy. "once" permits a
// single send per maintenance cycle (cleared by the schedule advancer);
// "daily" and any unrecognized frequency use the cooldown window.
func throttleAllows(frequency string, lastSent *time.Time, now time.Time, cooldown time.Duration) bool {
	if lastSent == nil {
		return true
	}
	switch frequency {
	case entities.EmailFrequencyOnce:
		return false
	case entities.EmailFrequencyDaily:
		return now.Sub(*lastSent) >= cooldown
	default:
		// Unspecified frequencies throttle conservatively as daily.
		return now.Sub(*lastSent) >= cooldown
	}
}

// dispatch delivers the alert, records the outcome, and updates bookkeeping.
// Caller must hold the schedule lock.
func (e *Engine) dispatch(ctx context.Context, eq *entities.Equipment, schedule *entities.MaintenanceSchedule, status Status, now time.Time, forced bool) error {
	if e.notifier == nil {
		return errors.New(ErrNotificationDeliveryFailed).
			Component("maintenance").
			Category(errors.CategoryNotification).
			Context("schedule_id", schedule.ID).
			Context("reason", "no notifier configured").
			Build()
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.notifyTimeout)
	defer cancel()
	sendErr := e.notifier.SendMaintenanceAlert(sendCtx, eq, schedule, status.State, status.DistanceHours)

	entry := &entities.NotificationLog{
		ScheduleID: schedule.ID,
		SentAt:     now,
		State:      status.State.String(),
		Forced:     forced,
	}

	if sendErr != nil {
		entry.Status = entities.NotificationStatusFailed
		entry.Error = sendErr.Error()
		e.saveNotificationLog(entry)
		recordNotification(status.State, false)
		e.log.Warn("maintenance alert delivery failed, will retry on next sweep",
			logger.Uint64("schedule_id", uint64(schedule.ID)),
			logger.String("state", status.State.String()),
			logger.Error(sendErr))
		return errors.New(ErrNotificationDeliveryFailed).
			Component("maintenance").
			Category(errors.CategoryNotification).
			Context("schedule_id", schedule.ID).
			Context("cause", sendErr.Error()).
			Build()
	}

	entry.Status = entities.NotificationStatusSent
	e.saveNotificationLog(entry)
	recordNotification(status.State, true)

	sentAt := now
	if err := e.schedules.UpdateLastEmailSent(ctx, schedule.ID, &sentAt); err != nil {
		// Delivery succeeded but bookkeeping failed; the worst case is one
		// extra notification next sweep.
		e.log.Error("failed to update last email sent",
			logger.Uint64("schedule_id", uint64(schedule.ID)),
			logger.Error(err))
	} else {
		schedule.LastEmailSent = &sentAt
	}

	e.log.Info("maintenance alert sent",
		logger.Uint64("schedule_id", uint64(schedule.ID)),
		logger.String("equipment", eq.Name),
		logger.String("state", status.State.String()),
		logger.Float64("distance_hours", status.DistanceHours),
		logger.Bool("forced", forced))
	return nil
}

// saveNotificationLog persists a dispatch record with its own timeout so a
// slow database cannot stall the sweep.
func (e *Engine) saveNotificationLog(entry *entities.NotificationLog) {
	saveCtx, cancel := context.WithTimeout(context.Background(), saveLogTimeout)
	defer cancel()
	if err := e.schedules.SaveNotificationLog(saveCtx, entry); err != nil {
		e.log.Error("failed to save notification log",
			logger.Uint64("schedule_id", uint64(entry.ScheduleID)),
			logger.Error(err))
	}
}
