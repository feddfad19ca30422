package repository

import (
	"context"
	"time"

	"github.com/plantops/sitewatch/internal/datastore/entities"
)

// ScheduleRepository handles maintenance schedule persistence plus the
// maintenance and notification logs the engine writes.
type ScheduleRepository interface {
	// Schedule CRUD
	ListSchedules(ctx context.Context, filter ScheduleFilter) ([]entities.MaintenanceSchedule, error)
	GetSchedule(ctx context.Context, id uint) (*entities.MaintenanceSchedule, error)
	CreateSchedule(ctx context.Context, schedule *entities.MaintenanceSchedule) error
	UpdateSchedule(ctx context.Context, schedule *entities.MaintenanceSchedule) error
	SetScheduleActive(ctx context.Context, id uint, active bool) error

	// ListActivePairs returns active schedules whose equipment is also
	// active, with Equipment preloaded. This is the sweep's read path.
	ListActivePairs(ctx context.Context) ([]entities.MaintenanceSchedule, error)

	// ApplyCompletion persists an advanced schedule and its completion log
	// entry in one transaction.
	ApplyCompletion(ctx context.Context, schedule *entities.MaintenanceSchedule, logEntry *entities.MaintenanceLog) error

	// UpdateLastEmailSent stamps (or clears, with nil) the throttle bookkeeping.
	UpdateLastEmailSent(ctx context.Context, id uint, sentAt *time.Time) error

	// Logs
	SaveNotificationLog(ctx context.Context, entry *entities.NotificationLog) error
	ListMaintenanceLog(ctx context.Context, filter LogFilter) ([]entities.MaintenanceLog, int64, error)
	ListNotificationLog(ctx context.Context, filter LogFilter) ([]entities.NotificationLog, int64, error)
	DeleteMaintenanceLogBefore(ctx context.Context, before time.Time) (int64, error)
	DeleteNotificationLogBefore(ctx context.Context, before time.Time) (int64, error)
}

// ScheduleFilter controls schedule listing queries.
type ScheduleFilter struct {
	EquipmentID     uint
	MaintenanceType string
	Active          *bool
}

// LogFilter controls maintenance/notification log listing with pagination.
type LogFilter struct {
	ScheduleID uint
	Limit      int
	Offset     int
}
