package repository

import (
	"context"

	"github.com/plantops/sitewatch/internal/datastore/entities"
)

// EquipmentRepository handles site and equipment persistence.
type EquipmentRepository interface {
	// Sites
	ListSites(ctx context.Context) ([]entities.Site, error)
	GetSite(ctx context.Context, id uint) (*entities.Site, error)
	CreateSite(ctx context.Context, site *entities.Site) error

	// Equipment CRUD
	ListEquipment(ctx context.Context, filter EquipmentFilter) ([]entities.Equipment, error)
	GetEquipment(ctx context.Context, id uint) (*entities.Equipment, error)
	GetEquipmentBySensorTopic(ctx context.Context, topic string) (*entities.Equipment, error)
	CreateEquipment(ctx context.Context, eq *entities.Equipment) error
	UpdateEquipment(ctx context.Context, eq *entities.Equipment) error
	SetEquipmentActive(ctx context.Context, id uint, active bool) error

	// OverrideRunningHours sets the hours counter unconditionally.
	// Operator corrections only; sensor updates go through AdvanceRunningHours.
	OverrideRunningHours(ctx context.Context, id uint, hours float64) error
	// AdvanceRunningHours applies a sensor sample if it does not move the
	// counter backwards. Returns false if the sample was rejected.
	AdvanceRunningHours(ctx context.Context, id uint, hours float64) (bool, error)
}

// EquipmentFilter controls equipment listing queries.
type EquipmentFilter struct {
	SiteID          uint
	Active          *bool
	HoursDataSource string
}
