package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// HealthResponse is the diagnostics payload for operators and monitoring.
type HealthResponse struct {
	Status        string        `json:"status"`
	UptimeSeconds float64       `json:"uptime_seconds"`
	Database      string        `json:"database"`
	System        *SystemInfo   `json:"system,omitempty"`
	Ingest        *IngestHealth `json:"ingest,omitempty"`
}

// SystemInfo carries host-level diagnostics. Best effort: probe failures
// leave the section out rather than failing the endpoint.
type SystemInfo struct {
	HostUptimeSeconds uint64  `json:"host_uptime_seconds"`
	MemoryTotalBytes  uint64  `json:"memory_total_bytes"`
	MemoryUsedPercent float64 `json:"memory_used_percent"`
}

// IngestHealth reports sensor liveness when MQTT ingestion is enabled.
type IngestHealth struct {
	StaleEquipmentIDs []uint `json:"stale_equipment_ids"`
}

func (c *Controller) initHealthRoutes() {
	c.Group.GET("/health", c.GetHealth)
}

// GetHealth reports service, database, host, and sensor liveness.
func (c *Controller) GetHealth(ctx echo.Context) error {
	resp := HealthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Database:      "ok",
	}

	// Cheap read proves the database connection is alive.
	if _, err := c.equipment.ListSites(ctx.Request().Context()); err != nil {
		resp.Status = "degraded"
		resp.Database = "error"
	}

	resp.System = collectSystemInfo()

	if c.tracker != nil {
		stale := c.tracker.StaleEquipment(time.Now())
		if stale == nil {
			stale = []uint{}
		}
		resp.Ingest = &IngestHealth{StaleEquipmentIDs: stale}
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, resp)
}

func collectSystemInfo() *SystemInfo {
	info := &SystemInfo{}
	populated := false

	if uptime, err := host.Uptime(); err == nil {
		info.HostUptimeSeconds = uptime
		populated = true
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemoryTotalBytes = vm.Total
		info.MemoryUsedPercent = vm.UsedPercent
		populated = true
	}

	if !populated {
		return nil
	}
	return info
}
