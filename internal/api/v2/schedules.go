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

// initScheduleRoutes registers maintenance schedule endpoints.
func (c *Controller) initScheduleRoutes() {
	schedules := c.Group.Group("/schedules")
	schedules.GET("", c.ListSchedules)
	schedules.GET("/:id", c.GetSchedule)

	protected := schedules.Group("", c.authMiddleware)
	protected.POST("", c.CreateSchedule)
	protected.PUT("/:id", c.UpdateSchedule)
	protected.PATCH("/:id/active", c.SetScheduleActive)
	protected.POST("/:id/complete", c.CompleteMaintenance)
	protected.POST("/:id/notify", c.ForceNotify)
}

// ListSchedules returns schedules, optionally filtered by equipment, type,
// or active flag.
func (c *Controller) ListSchedules(ctx echo.Context) error {
	filter := repository.ScheduleFilter{
		MaintenanceType: ctx.QueryParam("type"),
	}
	if eqParam := ctx.QueryParam("equipment_id"); eqParam != "" {
		id, err := parseQueryUint(eqParam)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid equipment_id"})
		}
		filter.EquipmentID = id
	}
	if activeParam := ctx.QueryParam("active"); activeParam != "" {
		v := activeParam == QueryValueTrue
		filter.Active = &v
	}

	items, err := c.schedules.ListSchedules(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list schedules", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"schedules": items,
		"count":     len(items),
	})
}

// GetSchedule returns a single schedule with its current urgency status.
func (c *Controller) GetSchedule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid schedule ID"})
	}

	schedule, err := c.schedules.GetSchedule(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrScheduleNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Schedule not found"})
		}
		return c.HandleError(ctx, err, "Failed to get schedule", http.StatusInternalServerError)
	}

	status := maintenance.ClassifySchedule(&schedule.Equipment, schedule)
	return ctx.JSON(http.StatusOK, map[string]any{
		"schedule":       schedule,
		"state":          status.State,
		"distance_hours": status.DistanceHours,
	})
}

// CreateSchedule creates a maintenance schedule. nextMaintenanceHours is
// derived server-side; clients cannot set it directly.
func (c *Controller) CreateSchedule(ctx echo.Context) error {
	var schedule entities.MaintenanceSchedule
	if err := ctx.Bind(&schedule); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if err := maintenance.ValidateScheduleConfig(&schedule); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	// Equipment must exist
	if _, err := c.equipment.GetEquipment(ctx.Request().Context(), schedule.EquipmentID); err != nil {
		if errors.Is(err, repository.ErrEquipmentNotFound) {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Referenced equipment does not exist"})
		}
		return c.HandleError(ctx, err, "Failed to create schedule", http.StatusInternalServerError)
	}

	schedule.ID = 0
	schedule.LastEmailSent = nil
	schedule.IsActive = true
	maintenance.NormalizeSchedule(&schedule)

	if err := c.schedules.CreateSchedule(ctx.Request().Context(), &schedule); err != nil {
		return c.HandleError(ctx, err, "Failed to create schedule", http.StatusInternalServerError)
	}

	c.invalidateDueCache()
	c.logInfoIfEnabled("schedule created",
		logger.Uint64("id", uint64(schedule.ID)),
		logger.Uint64("equipment_id", uint64(schedule.EquipmentID)),
		logger.String("type", schedule.MaintenanceType))
	return ctx.JSON(http.StatusCreated, schedule)
}

// UpdateSchedule replaces a schedule's configuration. Progress bookkeeping
// (lastMaintenanceHours, lastEmailSent) is preserved; only completion moves
// the due point relative to it.
func (c *Controller) UpdateSchedule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid schedule ID"})
	}

	existing, err := c.schedules.GetSchedule(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrScheduleNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Schedule not found"})
		}
		return c.HandleError(ctx, err, "Failed to get schedule", http.StatusInternalServerError)
	}

	var schedule entities.MaintenanceSchedule
	if err := ctx.Bind(&schedule); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	schedule.ID = existing.ID
	schedule.EquipmentID = existing.EquipmentID
	schedule.CreatedAt = existing.CreatedAt
	schedule.LastMaintenanceHours = existing.LastMaintenanceHours
	schedule.LastEmailSent = existing.LastEmailSent
	schedule.IsActive = existing.IsActive

	if err := maintenance.ValidateScheduleConfig(&schedule); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	maintenance.NormalizeSchedule(&schedule)

	if err := c.schedules.UpdateSchedule(ctx.Request().Context(), &schedule); err != nil {
		return c.HandleError(ctx, err, "Failed to update schedule", http.StatusInternalServerError)
	}

	c.invalidateDueCache()
	return ctx.JSON(http.StatusOK, schedule)
}

// SetScheduleActive enables or disables a schedule.
func (c *Controller) SetScheduleActive(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid schedule ID"})
	}

	var body struct {
		Active bool `json:"active"`
	}
	if err := ctx.Bind(&body); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if err := c.schedules.SetScheduleActive(ctx.Request().Context(), id, body.Active); err != nil {
		if errors.Is(err, repository.ErrScheduleNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Schedule not found"})
		}
		return c.HandleError(ctx, err, "Failed to update schedule", http.StatusInternalServerError)
	}

	c.invalidateDueCache()
	return ctx.JSON(http.StatusOK, map[string]any{"id": id, "active": body.Active})
}

// CompleteMaintenance records a completed maintenance and advances the
// schedule to its next cycle.
func (c *Controller) CompleteMaintenance(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid schedule ID"})
	}

	var body struct {
		CompletionHours float64 `json:"completion_hours"`
		Notes           string  `json:"notes"`
	}
	if err := ctx.Bind(&body); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	schedule, err := c.engine.CompleteMaintenance(ctx.Request().Context(), id, body.CompletionHours, body.Notes)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrScheduleNotFound):
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Schedule not found"})
		case errors.Is(err, maintenance.ErrInvalidCompletion):
			return ctx.JSON(http.StatusBadRequest, map[string]string{
				"error": "Completion hours must not precede the last recorded maintenance",
			})
		default:
			return c.HandleError(ctx, err, "Failed to complete maintenance", http.StatusInternalServerError)
		}
	}

	c.invalidateDueCache()
	return ctx.JSON(http.StatusOK, schedule)
}

// ForceNotify sends a maintenance alert for the schedule immediately,
// bypassing urgency state and throttling.
func (c *Controller) ForceNotify(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid schedule ID"})
	}

	reqCtx := ctx.Request().Context()
	schedule, err := c.schedules.GetSchedule(reqCtx, id)
	if err != nil {
		if errors.Is(err, repository.ErrScheduleNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Schedule not found"})
		}
		return c.HandleError(ctx, err, "Failed to get schedule", http.StatusInternalServerError)
	}

	result, err := c.engine.ForceNotify(reqCtx, &schedule.Equipment, schedule, time.Now())
	if err != nil {
		if errors.Is(err, maintenance.ErrNotificationDeliveryFailed) {
			return ctx.JSON(http.StatusBadGateway, map[string]string{"error": "Notification delivery failed"})
		}
		return c.HandleError(ctx, err, "Failed to send notification", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"sent":  result.Sent,
		"state": result.State,
	})
}
