// Package api implements the SiteWatch HTTP API (v2): sites, equipment,
// maintenance schedules, the due list, alert streaming, and diagnostics.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	gocache "github.com/patrickmn/go-cache"

	"github.com/plantops/sitewatch/internal/conf"
	"github.com/plantops/sitewatch/internal/datastore/repository"
	"github.com/plantops/sitewatch/internal/ingest"
	"github.com/plantops/sitewatch/internal/logger"
	"github.com/plantops/sitewatch/internal/maintenance"
)

// QueryValueTrue is the canonical truthy query parameter value.
const QueryValueTrue = "true"

// defaultDueCacheTTL is used when the configured TTL is zero.
const defaultDueCacheTTL = 15 * time.Second

// Controller carries the dependencies of all v2 API handlers.
type Controller struct {
	Group    *echo.Group
	Settings *conf.Settings

	equipment repository.EquipmentRepository
	schedules repository.ScheduleRepository
	engine    *maintenance.Engine
	tracker   *ingest.SampleTracker

	// dueCache absorbs dashboard polling of the due list and summary.
	dueCache *gocache.Cache

	log       logger.Logger
	startTime time.Time
}

// Options carries optional controller collaborators.
type Options struct {
	// Tracker flags silent sensors in the health endpoint; nil when
	// ingestion is disabled.
	Tracker *ingest.SampleTracker
}

// New creates the API controller and registers all routes under /api/v2.
func New(
	e *echo.Echo,
	settings *conf.Settings,
	equipmentRepo repository.EquipmentRepository,
	scheduleRepo repository.ScheduleRepository,
	engine *maintenance.Engine,
	log logger.Logger,
	opts *Options,
) *Controller {
	if opts == nil {
		opts = &Options{}
	}
	ttl := defaultDueCacheTTL
	if settings != nil && settings.Maintenance.DueCacheTTL.Std() > 0 {
		ttl = settings.Maintenance.DueCacheTTL.Std()
	}

	c := &Controller{
		Group:     e.Group("/api/v2"),
		Settings:  settings,
		equipment: equipmentRepo,
		schedules: scheduleRepo,
		engine:    engine,
		tracker:   opts.Tracker,
		dueCache:  gocache.New(ttl, 2*ttl),
		log:       log,
		startTime: time.Now(),
	}

	c.initEquipmentRoutes()
	c.initScheduleRoutes()
	c.initMaintenanceRoutes()
	c.initNotificationRoutes()
	c.initHealthRoutes()

	return c
}

// HandleError logs the error and returns a JSON error body with the given
// status. The response carries the friendly message, never the raw error.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	c.logErrorIfEnabled(message,
		logger.Error(err),
		logger.String("path", ctx.Path()),
		logger.Int("status", code))
	return ctx.JSON(code, map[string]string{"error": message})
}

// authMiddleware enforces the configured bearer token on mutating endpoints.
// With no token configured the API is open (single-operator deployments on a
// trusted plant network).
func (c *Controller) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		token := ""
		if c.Settings != nil {
			token = c.Settings.WebServer.AuthToken
		}
		if token == "" {
			return next(ctx)
		}

		header := ctx.Request().Header.Get(echo.HeaderAuthorization)
		presented, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			return ctx.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or missing bearer token"})
		}
		return next(ctx)
	}
}

func (c *Controller) logErrorIfEnabled(msg string, fields ...logger.Field) {
	if c.log != nil {
		c.log.Error(msg, fields...)
	}
}

func (c *Controller) logInfoIfEnabled(msg string, fields ...logger.Field) {
	if c.log != nil {
		c.log.Info(msg, fields...)
	}
}

func (c *Controller) logDebugIfEnabled(msg string, fields ...logger.Field) {
	if c.log != nil {
		c.log.Debug(msg, fields...)
	}
}

// invalidateDueCache drops cached due-list/summary entries after any write
// that can change classification.
func (c *Controller) invalidateDueCache() {
	c.dueCache.Flush()
}

// parseUintParam parses a uint route parameter.
func parseUintParam(ctx echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}

// parseQueryUint parses a uint query parameter value.
func parseQueryUint(value string) (uint, error) {
	v, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}

// parseLimitOffset extracts pagination query parameters with a cap.
func parseLimitOffset(ctx echo.Context, defaultLimit, maxLimit int) (limit, offset int) {
	limit = defaultLimit
	if limitParam := ctx.QueryParam("limit"); limitParam != "" {
		if v, err := strconv.Atoi(limitParam); err == nil && v > 0 {
			limit = min(v, maxLimit)
		}
	}
	if offsetParam := ctx.QueryParam("offset"); offsetParam != "" {
		if v, err := strconv.Atoi(offsetParam); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

// setSSEHeaders prepares the response for a server-sent event stream.
func setSSEHeaders(ctx echo.Context) {
	h := ctx.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set(echo.HeaderCacheControl, "no-cache")
	h.Set(echo.HeaderConnection, "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// sendSSEMessage writes one named SSE event and flushes it to the client.
func (c *Controller) sendSSEMessage(ctx echo.Context, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE payload: %w", err)
	}
	if _, err := fmt.Fprintf(ctx.Response(), "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	ctx.Response().Flush()
	return nil
}
