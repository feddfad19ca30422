package maintenance

import (
	"context"
	"fmt"

	"github.com/plantops/sitewatch/internal/conf"
	"github.com/plantops/sitewatch/internal/datastore/entities"
	"github.com/plantops/sitewatch/internal/datastore/repository"
	"github.com/plantops/sitewatch/internal/logger"
	"github.com/plantops/sitewatch/internal/notification"
)

// notificationAdapter lazily resolves the notification service to implement
// Notifier. This avoids hard initialization ordering between the maintenance
// and notification subsystems.
type notificationAdapter struct{}

func (a *notificationAdapter) SendMaintenanceAlert(ctx context.Context, eq *entities.Equipment, schedule *entities.MaintenanceSchedule, state UrgencyState, distanceHours float64) error {
	svc := notification.GetService()
	if svc == nil {
		return fmt.Errorf("notification service not initialized")
	}
	return svc.SendMaintenanceAlert(ctx, &notification.TemplateData{
		EquipmentName:   eq.Name,
		MaintenanceType: schedule.MaintenanceType,
		State:           state.String(),
		DistanceHours:   distanceHours,
		CurrentHours:    eq.CurrentRunningHours,
		NextDueHours:    schedule.NextMaintenanceHours,
	})
}

// Initialize creates and starts the maintenance engine: it wires the
// notification adapter, subscribes the engine to the hours event bus so
// fresh sensor samples trigger immediate re-evaluation, and starts the
// periodic sweep and log cleanup per configuration.
func Initialize(
	scheduleRepo repository.ScheduleRepository,
	equipmentRepo repository.EquipmentRepository,
	bus *HoursEventBus,
	log logger.Logger,
) *Engine {
	cfg := Config{}
	settings := conf.GetSettings()
	if settings != nil {
		cfg.EmailCooldown = settings.Maintenance.EmailCooldown.Std()
		cfg.NotifyTimeout = settings.Notification.Timeout.Std()
	}

	engine := NewEngine(scheduleRepo, equipmentRepo, &notificationAdapter{}, log, cfg)

	if bus != nil {
		bus.Subscribe(func(event *HoursEvent) {
			engine.EvaluateEquipment(context.Background(), event.EquipmentID)
		})
		SetGlobalBus(bus)
	}

	if settings != nil {
		engine.StartSweep(settings.Maintenance.SweepInterval.Std())
		engine.StartLogCleanup(settings.Maintenance.HistoryRetentionDays)
	}

	log.Info("maintenance engine initialized",
		logger.Duration("email_cooldown", engine.emailCooldown))

	return engine
}
