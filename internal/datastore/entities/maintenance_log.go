package entities

import "time"

// MaintenanceLog records each completed maintenance for audit and history.
type MaintenanceLog struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	ScheduleID uint `gorm:"not null;index:idx_maintenance_log_schedule_completed,priority:1" json:"schedule_id"`
	// CompletedAtHours is the equipment running-hours value when the
	// maintenance was performed.
	CompletedAtHours float64 `gorm:"not null" json:"completed_at_hours"`
	// PreviousDueHours is the schedule's due point before advancement,
	// kept so overdue completions remain visible in history.
	PreviousDueHours float64   `gorm:"not null" json:"previous_due_hours"`
	Notes            string    `gorm:"size:2000;default:''" json:"notes"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index:idx_maintenance_log_schedule_completed,priority:2" json:"created_at"`

	Schedule MaintenanceSchedule `gorm:"foreignKey:ScheduleID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for GORM.
func (MaintenanceLog) TableName() string {
	return "maintenance_logs"
}
