package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/plantops/sitewatch/internal/datastore/entities"
	"github.com/plantops/sitewatch/internal/errors"
)

// scheduleRepository implements ScheduleRepository.
type scheduleRepository struct {
	db *gorm.DB
}

// NewScheduleRepository creates a new ScheduleRepository.
func NewScheduleRepository(db *gorm.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

// ListSchedules returns maintenance schedules matching the given filter.
func (r *scheduleRepository) ListSchedules(ctx context.Context, filter ScheduleFilter) ([]entities.MaintenanceSchedule, error) {
	var schedules []entities.MaintenanceSchedule
	query := r.db.WithContext(ctx)

	if filter.EquipmentID > 0 {
		query = query.Where("equipment_id = ?", filter.EquipmentID)
	}
	if filter.MaintenanceType != "" {
		query = query.Where("maintenance_type = ?", filter.MaintenanceType)
	}
	if filter.Active != nil {
		query = query.Where("is_active = ?", *filter.Active)
	}

	if err := query.Order("id ASC").Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return schedules, nil
}

// GetSchedule returns a single schedule by ID with its equipment preloaded.
// Returns ErrScheduleNotFound if it does not exist.
func (r *scheduleRepository) GetSchedule(ctx context.Context, id uint) (*entities.MaintenanceSchedule, error) {
	var schedule entities.MaintenanceSchedule
	if err := r.db.WithContext(ctx).Preload("Equipment").First(&schedule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("failed to get schedule %d: %w", id, err)
	}
	return &schedule, nil
}

// CreateSchedule creates a new maintenance schedule.
func (r *scheduleRepository) CreateSchedule(ctx context.Context, schedule *entities.MaintenanceSchedule) error {
	if err := r.db.WithContext(ctx).Create(schedule).Error; err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

// UpdateSchedule saves the full schedule record.
func (r *scheduleRepository) UpdateSchedule(ctx context.Context, schedule *entities.MaintenanceSchedule) error {
	if schedule.ID == 0 {
		return fmt.Errorf("failed to update schedule: missing schedule ID")
	}
	if err := r.db.WithContext(ctx).Save(schedule).Error; err != nil {
		return fmt.Errorf("failed to update schedule %d: %w", schedule.ID, err)
	}
	return nil
}

// SetScheduleActive soft-activates or soft-deactivates a schedule.
func (r *scheduleRepository) SetScheduleActive(ctx context.Context, id uint, active bool) error {
	result := r.db.WithContext(ctx).Model(&entities.MaintenanceSchedule{}).Where("id = ?", id).Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to set schedule %d active=%v: %w", id, active, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// ListActivePairs returns active schedules joined against active equipment,
// with Equipment preloaded for classification.
func (r *scheduleRepository) ListActivePairs(ctx context.Context) ([]entities.MaintenanceSchedule, error) {
	var schedules []entities.MaintenanceSchedule
	err := r.db.WithContext(ctx).
		Joins("JOIN equipment ON equipment.id = maintenance_schedules.equipment_id AND equipment.is_active = ?", true).
		Where("maintenance_schedules.is_active = ?", true).
		Preload("Equipment").
		Order("maintenance_schedules.id ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active schedule pairs: %w", err)
	}
	return schedules, nil
}

// ApplyCompletion persists the advanced schedule and appends the completion
// log entry atomically.
func (r *scheduleRepository) ApplyCompletion(ctx context.Context, schedule *entities.MaintenanceSchedule, logEntry *entities.MaintenanceLog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"last_maintenance_hours": schedule.LastMaintenanceHours,
			"next_maintenance_hours": schedule.NextMaintenanceHours,
			"last_email_sent":        schedule.LastEmailSent,
		}
		result := tx.Model(&entities.MaintenanceSchedule{}).Where("id = ?", schedule.ID).Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to advance schedule %d: %w", schedule.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrScheduleNotFound
		}
		if err := tx.Create(logEntry).Error; err != nil {
			return fmt.Errorf("failed to save maintenance log: %w", err)
		}
		return nil
	})
}

// UpdateLastEmailSent stamps or clears the schedule's throttle timestamp.
func (r *scheduleRepository) UpdateLastEmailSent(ctx context.Context, id uint, sentAt *time.Time) error {
	result := r.db.WithContext(ctx).Model(&entities.MaintenanceSchedule{}).Where("id = ?", id).Update("last_email_sent", sentAt)
	if result.Error != nil {
		return fmt.Errorf("failed to update last email sent for schedule %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// SaveNotificationLog appends a notification log entry.
func (r *scheduleRepository) SaveNotificationLog(ctx context.Context, entry *entities.NotificationLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to save notification log: %w", err)
	}
	return nil
}

// ListMaintenanceLog returns completion history with pagination, newest first.
func (r *scheduleRepository) ListMaintenanceLog(ctx context.Context, filter LogFilter) ([]entities.MaintenanceLog, int64, error) {
	var items []entities.MaintenanceLog
	var total int64

	countQuery := r.db.WithContext(ctx).Model(&entities.MaintenanceLog{})
	if filter.ScheduleID > 0 {
		countQuery = countQuery.Where("schedule_id = ?", filter.ScheduleID)
	}
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count maintenance log: %w", err)
	}

	query := r.db.WithContext(ctx).Order("created_at DESC")
	if filter.ScheduleID > 0 {
		query = query.Where("schedule_id = ?", filter.ScheduleID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list maintenance log: %w", err)
	}
	return items, total, nil
}

// ListNotificationLog returns dispatch history with pagination, newest first.
func (r *scheduleRepository) ListNotificationLog(ctx context.Context, filter LogFilter) ([]entities.NotificationLog, int64, error) {
	var items []entities.NotificationLog
	var total int64

	countQuery := r.db.WithContext(ctx).Model(&entities.NotificationLog{})
	if filter.ScheduleID > 0 {
		countQuery = countQuery.Where("schedule_id = ?", filter.ScheduleID)
	}
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notification log: %w", err)
	}

	query := r.db.WithContext(ctx).Order("sent_at DESC")
	if filter.ScheduleID > 0 {
		query = query.Where("schedule_id = ?", filter.ScheduleID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list notification log: %w", err)
	}
	return items, total, nil
}

// DeleteMaintenanceLogBefore deletes completion history older than the given time.
func (r *scheduleRepository) DeleteMaintenanceLogBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", before).Delete(&entities.MaintenanceLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete maintenance log before %v: %w", before, result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteNotificationLogBefore deletes dispatch history older than the given time.
func (r *scheduleRepository) DeleteNotificationLogBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("sent_at < ?", before).Delete(&entities.NotificationLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete notification log before %v: %w", before, result.Error)
	}
	return result.RowsAffected, nil
}
