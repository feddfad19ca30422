package entities

import "time"

// Notification log statuses.
const (
	NotificationStatusSent   = "sent"
	NotificationStatusFailed = "failed"
)

// NotificationLog records every maintenance alert dispatch attempt,
// successful or not. Failed attempts keep the delivery error for diagnostics.
type NotificationLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ScheduleID uint      `gorm:"not null;index:idx_notification_log_schedule_sent,priority:1" json:"schedule_id"`
	SentAt     time.Time `gorm:"not null;index:idx_notification_log_schedule_sent,priority:2" json:"sent_at"`
	// State is the urgency state at dispatch time (warning, critical, overdue).
	State string `gorm:"size:20;not null" json:"state"`
	// Forced marks operator-triggered sends that bypassed the urgency check.
	Forced    bool      `gorm:"default:false" json:"forced"`
	Status    string    `gorm:"size:20;not null" json:"status"`
	Error     string    `gorm:"size:1000;default:''" json:"error"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	Schedule MaintenanceSchedule `gorm:"foreignKey:ScheduleID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for GORM.
func (NotificationLog) TableName() string {
	return "notification_logs"
}
