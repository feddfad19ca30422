package entities

import "time"

// Hours data sources. Sensor-fed equipment is refreshed by the MQTT ingest;
// manual equipment only changes through explicit operator overrides.
const (
	HoursSourceManual = "manual"
	HoursSourceSensor = "sensor"
)

// Equipment is a piece of machinery whose running hours drive maintenance
// scheduling. Never deleted while schedules reference it; deactivate instead.
type Equipment struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	SiteID uint   `gorm:"not null;index" json:"site_id"`
	Name   string `gorm:"size:200;not null" json:"name"`
	// CurrentRunningHours is monotonically non-decreasing in normal
	// operation; a manual correction is an explicit override, not a delta.
	CurrentRunningHours float64 `gorm:"not null;default:0" json:"current_running_hours"`
	HoursDataSource     string  `gorm:"size:20;not null;default:'manual'" json:"hours_data_source"`
	// SensorTopic is the MQTT topic suffix carrying hours samples for
	// sensor-fed equipment. Empty for manual equipment.
	SensorTopic string    `gorm:"size:200;default:'';index" json:"sensor_topic"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Site Site `gorm:"foreignKey:SiteID" json:"-"`
}

// TableName returns the table name for GORM.
func (Equipment) TableName() string {
	return "equipment"
}
