package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantops/sitewatch/internal/maintenance"
)

func TestGetDueList(t *testing.T) {
	env := setupAPITest(t, nil)
	site := env.createSite(t, "Plant North")

	overdue := env.createEquipment(t, site.ID, "Compressor A", 3100)
	env.createSchedule(t, overdue.ID, 3000, 0)
	warning := env.createEquipment(t, site.ID, "Pump B", 2950)
	env.createSchedule(t, warning.ID, 3000, 0)
	good := env.createEquipment(t, site.ID, "Genset C", 100)
	env.createSchedule(t, good.ID, 3000, 0)

	rec := env.doRequest(t, http.MethodGet, "/api/v2/maintenance/due", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["count"], "good equipment stays off the due list")

	items := body["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "Compressor A", first["equipment_name"], "overdue sorts before warning")
	assert.Equal(t, maintenance.StateOverdue.String(), first["state"])
}

func TestGetDueList_CacheInvalidatedByCompletion(t *testing.T) {
	env := setupAPITest(t, nil)
	site := env.createSite(t, "Plant North")
	eq := env.createEquipment(t, site.ID, "Compressor A", 3100)
	schedule := env.createSchedule(t, eq.ID, 3000, 0)

	rec := env.doRequest(t, http.MethodGet, "/api/v2/maintenance/due", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody(t, rec)["count"])

	rec = env.doRequest(t, http.MethodPost, fmt.Sprintf("/api/v2/schedules/%d/complete", schedule.ID),
		map[string]any{"completion_hours": 3100.0}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Completion must evict the cached due list, not wait out the TTL
	rec = env.doRequest(t, http.MethodGet, "/api/v2/maintenance/due", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decodeBody(t, rec)["count"])
}

func TestGetDueSummary(t *testing.T) {
	env := setupAPITest(t, nil)
	site := env.createSite(t, "Plant North")

	overdue := env.createEquipment(t, site.ID, "Compressor A", 3100)
	env.createSchedule(t, overdue.ID, 3000, 0)
	critical := env.createEquipment(t, site.ID, "Pump B", 2990)
	env.createSchedule(t, critical.ID, 3000, 0)
	good := env.createEquipment(t, site.ID, "Genset C", 100)
	env.createSchedule(t, good.ID, 3000, 0)

	rec := env.doRequest(t, http.MethodGet, "/api/v2/maintenance/summary", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.EqualValues(t, 3, body["total"])
	assert.EqualValues(t, 1, body["good"])
	assert.EqualValues(t, 1, body["critical"])
	assert.EqualValues(t, 1, body["overdue"])
}

func TestGetMaintenanceSchema(t *testing.T) {
	env := setupAPITest(t, nil)

	rec := env.doRequest(t, http.MethodGet, "/api/v2/maintenance/schema", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	states := body["states"].([]any)
	assert.Len(t, states, 4)
	assert.NotEmpty(t, body["presets"])
	assert.NotEmpty(t, body["email_frequencies"])
}

func TestListMaintenanceHistory(t *testing.T) {
	env := setupAPITest(t, nil)
	site := env.createSite(t, "Plant North")
	eq := env.createEquipment(t, site.ID, "Compressor A", 3100)
	schedule := env.createSchedule(t, eq.ID, 3000, 0)

	rec := env.doRequest(t, http.MethodPost, fmt.Sprintf("/api/v2/schedules/%d/complete", schedule.ID),
		map[string]any{"completion_hours": 3100.0, "notes": "oil and filter"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.doRequest(t, http.MethodGet, fmt.Sprintf("/api/v2/maintenance/logs?schedule_id=%d", schedule.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.EqualValues(t, 1, body["total"])
	logs := body["logs"].([]any)
	require.Len(t, logs, 1)
	assert.Equal(t, "oil and filter", logs[0].(map[string]any)["notes"])

	rec = env.doRequest(t, http.MethodGet, "/api/v2/maintenance/logs?schedule_id=junk", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListNotificationHistory(t *testing.T) {
	env := setupAPITest(t, nil)
	site := env.createSite(t, "Plant North")
	eq := env.createEquipment(t, site.ID, "Compressor A", 100)
	schedule := env.createSchedule(t, eq.ID, 3000, 0)

	// Forced send writes a notification log entry
	rec := env.doRequest(t, http.MethodPost, fmt.Sprintf("/api/v2/schedules/%d/notify", schedule.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.doRequest(t, http.MethodGet, "/api/v2/maintenance/notifications", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.EqualValues(t, 1, body["total"])
}

func TestHistoryPaginationClamped(t *testing.T) {
	env := setupAPITest(t, nil)

	rec := env.doRequest(t, http.MethodGet, "/api/v2/maintenance/logs?limit=100000", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, maxHistoryLimit, decodeBody(t, rec)["limit"])
}
