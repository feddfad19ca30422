package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/plantops/sitewatch/internal/datastore/entities"
	"github.com/plantops/sitewatch/internal/errors"
)

// equipmentRepository implements EquipmentRepository.
type equipmentRepository struct {
	db *gorm.DB
}

// NewEquipmentRepository creates a new EquipmentRepository.
func NewEquipmentRepository(db *gorm.DB) EquipmentRepository {
	return &equipmentRepository{db: db}
}

// ListSites returns all sites ordered by name.
func (r *equipmentRepository) ListSites(ctx context.Context) ([]entities.Site, error) {
	var sites []entities.Site
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&sites).Error; err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	return sites, nil
}

// GetSite returns a single site by ID.
func (r *equipmentRepository) GetSite(ctx context.Context, id uint) (*entities.Site, error) {
	var site entities.Site
	if err := r.db.WithContext(ctx).First(&site, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSiteNotFound
		}
		return nil, fmt.Errorf("failed to get site %d: %w", id, err)
	}
	return &site, nil
}

// CreateSite creates a new site.
func (r *equipmentRepository) CreateSite(ctx context.Context, site *entities.Site) error {
	if err := r.db.WithContext(ctx).Create(site).Error; err != nil {
		return fmt.Errorf("failed to create site: %w", err)
	}
	return nil
}

// ListEquipment returns equipment matching the given filter.
func (r *equipmentRepository) ListEquipment(ctx context.Context, filter EquipmentFilter) ([]entities.Equipment, error) {
	var items []entities.Equipment
	query := r.db.WithContext(ctx)

	if filter.SiteID > 0 {
		query = query.Where("site_id = ?", filter.SiteID)
	}
	if filter.Active != nil {
		query = query.Where("is_active = ?", *filter.Active)
	}
	if filter.HoursDataSource != "" {
		query = query.Where("hours_data_source = ?", filter.HoursDataSource)
	}

	if err := query.Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list equipment: %w", err)
	}
	return items, nil
}

// GetEquipment returns a single equipment record by ID.
// Returns ErrEquipmentNotFound if it does not exist.
func (r *equipmentRepository) GetEquipment(ctx context.Context, id uint) (*entities.Equipment, error) {
	var eq entities.Equipment
	if err := r.db.WithContext(ctx).First(&eq, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEquipmentNotFound
		}
		return nil, fmt.Errorf("failed to get equipment %d: %w", id, err)
	}
	return &eq, nil
}

// GetEquipmentBySensorTopic returns the active sensor-fed equipment bound to
// the given topic suffix.
func (r *equipmentRepository) GetEquipmentBySensorTopic(ctx context.Context, topic string) (*entities.Equipment, error) {
	var eq entities.Equipment
	err := r.db.WithContext(ctx).
		Where("sensor_topic = ? AND hours_data_source = ? AND is_active = ?",
			topic, entities.HoursSourceSensor, true).
		First(&eq).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEquipmentNotFound
		}
		return nil, fmt.Errorf("failed to get equipment by sensor topic %q: %w", topic, err)
	}
	return &eq, nil
}

// CreateEquipment creates a new equipment record.
func (r *equipmentRepository) CreateEquipment(ctx context.Context, eq *entities.Equipment) error {
	if err := r.db.WithContext(ctx).Create(eq).Error; err != nil {
		return fmt.Errorf("failed to create equipment: %w", err)
	}
	return nil
}

// UpdateEquipment saves the full equipment record.
func (r *equipmentRepository) UpdateEquipment(ctx context.Context, eq *entities.Equipment) error {
	if eq.ID == 0 {
		return fmt.Errorf("failed to update equipment: missing equipment ID")
	}
	if err := r.db.WithContext(ctx).Save(eq).Error; err != nil {
		return fmt.Errorf("failed to update equipment %d: %w", eq.ID, err)
	}
	return nil
}

// SetEquipmentActive soft-activates or soft-deactivates equipment.
// Equipment referenced by schedules is never physically deleted.
func (r *equipmentRepository) SetEquipmentActive(ctx context.Context, id uint, active bool) error {
	result := r.db.WithContext(ctx).Model(&entities.Equipment{}).Where("id = ?", id).Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to set equipment %d active=%v: %w", id, active, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrEquipmentNotFound
	}
	return nil
}

// OverrideRunningHours sets the running-hours counter unconditionally.
func (r *equipmentRepository) OverrideRunningHours(ctx context.Context, id uint, hours float64) error {
	result := r.db.WithContext(ctx).Model(&entities.Equipment{}).Where("id = ?", id).Update("current_running_hours", hours)
	if result.Error != nil {
		return fmt.Errorf("failed to override running hours for equipment %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrEquipmentNotFound
	}
	return nil
}

// AdvanceRunningHours applies a sensor sample only if it does not decrease
// the counter. The guard runs in SQL so concurrent samples cannot interleave
// a stale read with the write.
func (r *equipmentRepository) AdvanceRunningHours(ctx context.Context, id uint, hours float64) (bool, error) {
	result := r.db.WithContext(ctx).Model(&entities.Equipment{}).
		Where("id = ? AND current_running_hours <= ?", id, hours).
		Update("current_running_hours", hours)
	if result.Error != nil {
		return false, fmt.Errorf("failed to advance running hours for equipment %d: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}
