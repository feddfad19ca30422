package repository

import "github.com/plantops/sitewatch/internal/errors"

// Sentinel errors returned when a requested record does not exist.
var (
	ErrSiteNotFound      = errors.NewStd("site not found")
	ErrEquipmentNotFound = errors.NewStd("equipment not found")
	ErrScheduleNotFound  = errors.NewStd("maintenance schedule not found")
)
