package entities

import "time"

// Email throttle frequencies. Unknown values throttle as "daily".
const (
	EmailFrequencyDaily = "daily"
	EmailFrequencyOnce  = "once"
)

// MaintenanceSchedule tracks one maintenance type for one equipment
// (e.g. oil change vs. filter replacement are separate schedules).
//
// NextMaintenanceHours is always LastMaintenanceHours + IntervalHours and is
// only rewritten by the schedule advancer when a completion is recorded.
type MaintenanceSchedule struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	EquipmentID     uint   `gorm:"not null;index" json:"equipment_id"`
	MaintenanceType string `gorm:"size:100;not null" json:"maintenance_type"`
	Description     string `gorm:"size:500;default:''" json:"description"`

	IntervalHours        float64 `gorm:"not null" json:"interval_hours"`
	LastMaintenanceHours float64 `gorm:"not null;default:0" json:"last_maintenance_hours"`
	NextMaintenanceHours float64 `gorm:"not null" json:"next_maintenance_hours"`

	// Thresholds are offsets in hours before NextMaintenanceHours.
	WarningThresholdHours  float64 `gorm:"not null;default:0" json:"warning_threshold_hours"`
	CriticalThresholdHours float64 `gorm:"not null;default:0" json:"critical_threshold_hours"`

	EnableEmailAlerts bool       `gorm:"default:false" json:"enable_email_alerts"`
	EmailFrequency    string     `gorm:"size:20;not null;default:'daily'" json:"email_frequency"`
	LastEmailSent     *time.Time `json:"last_email_sent"`

	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Equipment Equipment `gorm:"foreignKey:EquipmentID" json:"-"`
}

// TableName returns the table name for GORM.
func (MaintenanceSchedule) TableName() string {
	return "maintenance_schedules"
}
