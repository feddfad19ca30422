package entities

import "time"

// Site is a monitored industrial location. Equipment belongs to exactly one site.
type Site struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:200;not null;uniqueIndex" json:"name"`
	Location  string    `gorm:"size:500;default:''" json:"location"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Site) TableName() string {
	return "sites"
}
