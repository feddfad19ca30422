package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/plantops/sitewatch/internal/datastore/repository"
	"github.com/plantops/sitewatch/internal/maintenance"
)

const (
	dueCacheKey     = "due-list"
	summaryCacheKey = "due-summary"

	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// initMaintenanceRoutes registers due-list, history, and schema endpoints.
func (c *Controller) initMaintenanceRoutes() {
	m := c.Group.Group("/maintenance")
	m.GET("/due", c.GetDueList)
	m.GET("/summary", c.GetDueSummary)
	m.GET("/schema", c.GetMaintenanceSchema)
	m.GET("/logs", c.ListMaintenanceHistory)
	m.GET("/notifications", c.ListNotificationHistory)
}

// GetDueList returns all schedules currently in Warning, Critical, or Overdue
// state, most urgent first. Responses are cached briefly; any equipment or
// schedule write invalidates the cache.
func (c *Controller) GetDueList(ctx echo.Context) error {
	if cached, found := c.dueCache.Get(dueCacheKey); found {
		return ctx.JSON(http.StatusOK, cached)
	}

	pairs, err := c.schedules.ListActivePairs(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to build due list", http.StatusInternalServerError)
	}

	items := maintenance.BuildDueList(pairs)
	response := map[string]any{
		"items": items,
		"count": len(items),
	}
	c.dueCache.SetDefault(dueCacheKey, response)
	return ctx.JSON(http.StatusOK, response)
}

// GetDueSummary returns per-state counts across all active pairs.
func (c *Controller) GetDueSummary(ctx echo.Context) error {
	if cached, found := c.dueCache.Get(summaryCacheKey); found {
		return ctx.JSON(http.StatusOK, cached)
	}

	pairs, err := c.schedules.ListActivePairs(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to summarize schedules", http.StatusInternalServerError)
	}

	summary := maintenance.Summarize(pairs)
	c.dueCache.SetDefault(summaryCacheKey, summary)
	return ctx.JSON(http.StatusOK, summary)
}

// GetMaintenanceSchema describes urgency states, email frequencies, hour
// sources, and schedule presets so clients can render pickers without
// hardcoding values.
func (c *Controller) GetMaintenanceSchema(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, maintenance.GetSchema())
}

// ListMaintenanceHistory returns completion log entries, newest first.
func (c *Controller) ListMaintenanceHistory(ctx echo.Context) error {
	filter, ok := c.historyFilter(ctx)
	if !ok {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid schedule_id"})
	}

	items, total, err := c.schedules.ListMaintenanceLog(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list maintenance history", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"logs":   items,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// ListNotificationHistory returns alert dispatch entries, newest first.
func (c *Controller) ListNotificationHistory(ctx echo.Context) error {
	filter, ok := c.historyFilter(ctx)
	if !ok {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid schedule_id"})
	}

	items, total, err := c.schedules.ListNotificationLog(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list notification history", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"notifications": items,
		"total":         total,
		"limit":         filter.Limit,
		"offset":        filter.Offset,
	})
}

func (c *Controller) historyFilter(ctx echo.Context) (repository.LogFilter, bool) {
	filter := repository.LogFilter{}
	filter.Limit, filter.Offset = parseLimitOffset(ctx, defaultHistoryLimit, maxHistoryLimit)
	if param := ctx.QueryParam("schedule_id"); param != "" {
		id, err := parseQueryUint(param)
		if err != nil {
			return filter, false
		}
		filter.ScheduleID = id
	}
	return filter, true
}
