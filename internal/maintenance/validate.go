package maintenance

import (
	"github.com/plantops/sitewatch/internal/datastore/entities"
	"github.com/plantops/sitewatch/internal/errors"
)

// ValidateScheduleConfig rejects schedule configuration the engine must never
// see: non-positive intervals, negative thresholds, a critical window as wide
// as or wider than the warning window, or an unknown email frequency.
// Enforced at creation/update boundaries, not inside the classifier.
func ValidateScheduleConfig(schedule *entities.MaintenanceSchedule) error {
	fail := func(msg string) error {
		return errors.Newf("invalid schedule configuration: %s", msg).
			Component("maintenance").
			Category(errors.CategoryValidation).
			Context("maintenance_type", schedule.MaintenanceType).
			Build()
	}

	if schedule.EquipmentID == 0 {
		return fail("equipment reference is required")
	}
	if schedule.MaintenanceType == "" {
		return fail("maintenance type is required")
	}
	if schedule.IntervalHours <= 0 {
		return fail("interval hours must be positive")
	}
	if schedule.LastMaintenanceHours < 0 {
		return fail("last maintenance hours must not be negative")
	}
	if schedule.WarningThresholdHours < 0 || schedule.CriticalThresholdHours < 0 {
		return fail("threshold hours must not be negative")
	}
	if schedule.CriticalThresholdHours >= schedule.WarningThresholdHours && schedule.WarningThresholdHours > 0 {
		return fail("critical threshold must be smaller than warning threshold")
	}
	switch schedule.EmailFrequency {
	case "", entities.EmailFrequencyDaily, entities.EmailFrequencyOnce:
	default:
		return fail("email frequency must be daily or once")
	}
	return nil
}

// NormalizeSchedule fills derived and defaulted fields before persisting:
// nextMaintenanceHours is always lastMaintenanceHours + intervalHours, and an
// empty email frequency becomes daily.
func NormalizeSchedule(schedule *entities.MaintenanceSchedule) {
	schedule.NextMaintenanceHours = schedule.LastMaintenanceHours + schedule.IntervalHours
	if schedule.EmailFrequency == "" {
		schedule.EmailFrequency = entities.EmailFrequencyDaily
	}
}
