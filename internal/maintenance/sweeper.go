package maintenance

import (
	"context"
	"time"

	"github.com/plantops/sitewatch/internal/datastore/repository"
	"github.com/plantops/sitewatch/internal/errors"
	"github.com/plantops/sitewatch/internal/logger"
)

// StartSweep launches the periodic background sweep that evaluates every
// active (equipment, schedule) pair. A sweep interrupted by shutdown simply
// resumes correctly on the next start because all state is persisted.
func (e *Engine) StartSweep(interval time.Duration) {
	e.bgMu.Lock()
	if e.sweepStop != nil {
		e.bgMu.Unlock()
		return // already running
	}
	stopCh := make(chan struct{})
	e.sweepStop = stopCh
	e.bgMu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.SweepOnce(context.Background())
			case <-stopCh:
				return
			}
		}
	}()
}

// SweepOnce evaluates all active pairs, updates the due gauges, and lets the
// dispatcher decide per schedule. Delivery failures are logged and never
// abort the remainder of the sweep.
func (e *Engine) SweepOnce(ctx context.Context) {
	start := time.Now()
	pairs, err := e.schedules.ListActivePairs(ctx)
	if err != nil {
		e.log.Error("sweep failed to load active schedules", logger.Error(err))
		return
	}

	setDueGauges(Summarize(pairs))

	var sent int
	for i := range pairs {
		schedule := &pairs[i]
		result, err := e.MaybeNotify(ctx, &schedule.Equipment, schedule, time.Now())
		if err != nil && !errors.Is(err, ErrNotificationDeliveryFailed) {
			e.log.Error("sweep evaluation failed",
				logger.Uint64("schedule_id", uint64(schedule.ID)),
				logger.Error(err))
		}
		if result.Sent {
			sent++
		}
	}

	recordSweep(len(pairs))
	e.log.Debug("sweep completed",
		logger.Int("schedules", len(pairs)),
		logger.Int("alerts_sent", sent),
		logger.Duration("elapsed", time.Since(start)))
}

// EvaluateEquipment re-evaluates all active schedules of one equipment
// immediately, without waiting for the next sweep tick. Called when a fresh
// hours sample arrives.
func (e *Engine) EvaluateEquipment(ctx context.Context, equipmentID uint) {
	eq, err := e.equipment.GetEquipment(ctx, equipmentID)
	if err != nil {
		e.log.Error("failed to load equipment for evaluation",
			logger.Uint64("equipment_id", uint64(equipmentID)),
			logger.Error(err))
		return
	}
	if !eq.IsActive {
		return
	}

	active := true
	schedules, err := e.schedules.ListSchedules(ctx, repository.ScheduleFilter{EquipmentID: equipmentID, Active: &active})
	if err != nil {
		e.log.Error("failed to load schedules for evaluation",
			logger.Uint64("equipment_id", uint64(equipmentID)),
			logger.Error(err))
		return
	}

	for i := range schedules {
		schedule := &schedules[i]
		if _, err := e.MaybeNotify(ctx, eq, schedule, time.Now()); err != nil && !errors.Is(err, ErrNotificationDeliveryFailed) {
			e.log.Error("equipment evaluation failed",
				logger.Uint64("schedule_id", uint64(schedule.ID)),
				logger.Error(err))
		}
	}
}

// StartLogCleanup starts a background goroutine that periodically deletes
// maintenance and notification log entries older than retentionDays.
// A value of 0 disables cleanup.
func (e *Engine) StartLogCleanup(retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	e.bgMu.Lock()
	if e.cleanupStop != nil {
		e.bgMu.Unlock()
		return
	}
	stopCh := make(chan struct{})
	e.cleanupStop = stopCh
	e.bgMu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.cleanupLogs(retentionDays)
			case <-stopCh:
				return
			}
		}
	}()
}

func (e *Engine) cleanupLogs(retentionDays int) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	deletedMaint, err := e.schedules.DeleteMaintenanceLogBefore(ctx, cutoff)
	if err != nil {
		e.log.Error("maintenance log cleanup failed", logger.Error(err))
	}
	deletedNotif, err := e.schedules.DeleteNotificationLogBefore(ctx, cutoff)
	if err != nil {
		e.log.Error("notification log cleanup failed", logger.Error(err))
	}
	if deletedMaint > 0 || deletedNotif > 0 {
		e.log.Info("log cleanup completed",
			logger.Int64("maintenance_deleted", deletedMaint),
			logger.Int64("notifications_deleted", deletedNotif),
			logger.Int("retention_days", retentionDays))
	}
}
