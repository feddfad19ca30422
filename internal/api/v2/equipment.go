package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/plantops/sitewatch/internal/datastore/entities"
	"github.com/plantops/sitewatch/internal/datastore/repository"
	"github.com/plantops/sitewatch/internal/errors"
	"github.com/plantops/sitewatch/internal/logger"
	"github.com/plantops/sitewatch/internal/maintenance"
)

// initEquipmentRoutes registers site and equipment endpoints.
func (c *Controller) initEquipmentRoutes() {
	sites := c.Group.Group("/sites")
	sites.GET("", c.ListSites)
	sites.GET("/:id", c.GetSite)
	sites.Group("", c.authMiddleware).POST("", c.CreateSite)

	equipment := c.Group.Group("/equipment")
	equipment.GET("", c.ListEquipment)
	equipment.GET("/:id", c.GetEquipment)

	protected := equipment.Group("", c.authMiddleware)
	protected.POST("", c.CreateEquipment)
	protected.PUT("/:id", c.UpdateEquipment)
	protected.PATCH("/:id/active", c.SetEquipmentActive)
	protected.PUT("/:id/hours", c.OverrideEquipmentHours)
	protected.POST("/:id/notify", c.NotifyEquipment)
}

// ListSites returns all sites.
func (c *Controller) ListSites(ctx echo.Context) error {
	sites, err := c.equipment.ListSites(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list sites", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"sites": sites,
		"count": len(sites),
	})
}

// GetSite returns a single site by ID.
func (c *Controller) GetSite(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid site ID"})
	}

	site, err := c.equipment.GetSite(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrSiteNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Site not found"})
		}
		return c.HandleError(ctx, err, "Failed to get site", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, site)
}

// CreateSite creates a new site.
func (c *Controller) CreateSite(ctx echo.Context) error {
	var site entities.Site
	if err := ctx.Bind(&site); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if site.Name == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Site name is required"})
	}

	site.ID = 0
	site.IsActive = true
	if err := c.equipment.CreateSite(ctx.Request().Context(), &site); err != nil {
		return c.HandleError(ctx, err, "Failed to create site", http.StatusInternalServerError)
	}

	c.logInfoIfEnabled("site created",
		logger.String("name", site.Name),
		logger.Uint64("id", uint64(site.ID)))
	return ctx.JSON(http.StatusCreated, site)
}

// ListEquipment returns equipment, optionally filtered by site, active flag,
// or hours data source.
func (c *Controller) ListEquipment(ctx echo.Context) error {
	filter := repository.EquipmentFilter{
		HoursDataSource: ctx.QueryParam("source"),
	}
	if siteParam := ctx.QueryParam("site_id"); siteParam != "" {
		id, err := parseQueryUint(siteParam)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid site_id"})
		}
		filter.SiteID = id
	}
	if activeParam := ctx.QueryParam("active"); activeParam != "" {
		v := activeParam == QueryValueTrue
		filter.Active = &v
	}

	items, err := c.equipment.ListEquipment(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list equipment", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"equipment": items,
		"count":     len(items),
	})
}

// GetEquipment returns a single equipment record by ID.
func (c *Controller) GetEquipment(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid equipment ID"})
	}

	eq, err := c.equipment.GetEquipment(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrEquipmentNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Equipment not found"})
		}
		return c.HandleError(ctx, err, "Failed to get equipment", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, eq)
}

// CreateEquipment creates a new equipment record.
func (c *Controller) CreateEquipment(ctx echo.Context) error {
	var eq entities.Equipment
	if err := ctx.Bind(&eq); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := validateEquipment(&eq); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	// Site must exist
	if _, err := c.equipment.GetSite(ctx.Request().Context(), eq.SiteID); err != nil {
		if errors.Is(err, repository.ErrSiteNotFound) {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Referenced site does not exist"})
		}
		return c.HandleError(ctx, err, "Failed to create equipment", http.StatusInternalServerError)
	}

	eq.ID = 0
	eq.IsActive = true
	if err := c.equipment.CreateEquipment(ctx.Request().Context(), &eq); err != nil {
		return c.HandleError(ctx, err, "Failed to create equipment", http.StatusInternalServerError)
	}

	c.logInfoIfEnabled("equipment created",
		logger.String("name", eq.Name),
		logger.Uint64("id", uint64(eq.ID)),
		logger.String("source", eq.HoursDataSource))
	return ctx.JSON(http.StatusCreated, eq)
}

// UpdateEquipment replaces an equipment record's editable fields. The hours
// counter is not editable here: use the hours override endpoint so the
// monotonic bookkeeping and re-evaluation happen.
func (c *Controller) UpdateEquipment(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid equipment ID"})
	}

	existing, err := c.equipment.GetEquipment(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrEquipmentNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Equipment not found"})
		}
		return c.HandleError(ctx, err, "Failed to get equipment", http.StatusInternalServerError)
	}

	var eq entities.Equipment
	if err := ctx.Bind(&eq); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := validateEquipment(&eq); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	eq.ID = existing.ID
	eq.CreatedAt = existing.CreatedAt
	eq.CurrentRunningHours = existing.CurrentRunningHours
	eq.IsActive = existing.IsActive

	if err := c.equipment.UpdateEquipment(ctx.Request().Context(), &eq); err != nil {
		return c.HandleError(ctx, err, "Failed to update equipment", http.StatusInternalServerError)
	}

	c.invalidateDueCache()
	return ctx.JSON(http.StatusOK, eq)
}

// SetEquipmentActive activates or deactivates an equipment record.
// Deactivated equipment is excluded from sweeps and the due list.
func (c *Controller) SetEquipmentActive(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid equipment ID"})
	}

	var body struct {
		Active bool `json:"active"`
	}
	if err := ctx.Bind(&body); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if err := c.equipment.SetEquipmentActive(ctx.Request().Context(), id, body.Active); err != nil {
		if errors.Is(err, repository.ErrEquipmentNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Equipment not found"})
		}
		return c.HandleError(ctx, err, "Failed to update equipment", http.StatusInternalServerError)
	}

	c.invalidateDueCache()
	return ctx.JSON(http.StatusOK, map[string]any{"id": id, "active": body.Active})
}

// OverrideEquipmentHours sets the running-hours counter to an operator-given
// value. Unlike sensor samples, overrides may move the counter backwards
// (meter replacement, data-entry correction). Publishes an hours event so the
// engine re-evaluates immediately.
func (c *Controller) OverrideEquipmentHours(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid equipment ID"})
	}

	var body struct {
		Hours float64 `json:"hours"`
	}
	if err := ctx.Bind(&body); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if body.Hours < 0 {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Hours must not be negative"})
	}

	if err := c.equipment.OverrideRunningHours(ctx.Request().Context(), id, body.Hours); err != nil {
		if errors.Is(err, repository.ErrEquipmentNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Equipment not found"})
		}
		return c.HandleError(ctx, err, "Failed to override running hours", http.StatusInternalServerError)
	}

	maintenance.TryPublish(&maintenance.HoursEvent{
		EquipmentID: id,
		Hours:       body.Hours,
		Source:      entities.HoursSourceManual,
		Timestamp:   time.Now(),
	})
	c.invalidateDueCache()

	c.logInfoIfEnabled("running hours overridden",
		logger.Uint64("equipment_id", uint64(id)),
		logger.Float64("hours", body.Hours))
	return ctx.JSON(http.StatusOK, map[string]any{"id": id, "current_running_hours": body.Hours})
}

// NotifyEquipment sends maintenance alerts for the equipment's active
// schedules immediately, bypassing urgency state and throttling. An optional
// schedule_id query parameter narrows the send to one schedule.
func (c *Controller) NotifyEquipment(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid equipment ID"})
	}

	var scheduleID uint
	if param := ctx.QueryParam("schedule_id"); param != "" {
		scheduleID, err = parseQueryUint(param)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid schedule_id"})
		}
	}

	reqCtx := ctx.Request().Context()
	eq, err := c.equipment.GetEquipment(reqCtx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEquipmentNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Equipment not found"})
		}
		return c.HandleError(ctx, err, "Failed to get equipment", http.StatusInternalServerError)
	}

	active := true
	schedules, err := c.schedules.ListSchedules(reqCtx, repository.ScheduleFilter{EquipmentID: id, Active: &active})
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list schedules", http.StatusInternalServerError)
	}

	now := time.Now()
	results := make([]map[string]any, 0, len(schedules))
	for i := range schedules {
		schedule := &schedules[i]
		if scheduleID != 0 && schedule.ID != scheduleID {
			continue
		}
		result, err := c.engine.ForceNotify(reqCtx, eq, schedule, now)
		if err != nil {
			if errors.Is(err, maintenance.ErrNotificationDeliveryFailed) {
				results = append(results, map[string]any{
					"schedule_id": schedule.ID,
					"sent":        false,
					"error":       "Notification delivery failed",
				})
				continue
			}
			return c.HandleError(ctx, err, "Failed to send notification", http.StatusInternalServerError)
		}
		results = append(results, map[string]any{
			"schedule_id": schedule.ID,
			"sent":        result.Sent,
			"state":       result.State,
		})
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}

// validateEquipment enforces equipment field constraints at the API boundary.
func validateEquipment(eq *entities.Equipment) error {
	if eq.Name == "" {
		return errors.NewStd("Equipment name is required")
	}
	if eq.SiteID == 0 {
		return errors.NewStd("Site reference is required")
	}
	switch eq.HoursDataSource {
	case "":
		eq.HoursDataSource = entities.HoursSourceManual
	case entities.HoursSourceManual, entities.HoursSourceSensor:
	default:
		return errors.NewStd("Hours data source must be manual or sensor")
	}
	if eq.HoursDataSource == entities.HoursSourceSensor && eq.SensorTopic == "" {
		return errors.NewStd("Sensor topic is required for sensor-fed equipment")
	}
	if eq.CurrentRunningHours < 0 {
		return errors.NewStd("Running hours must not be negative")
	}
	return nil
}
