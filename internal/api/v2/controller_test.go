package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/plantops/sitewatch/internal/conf"
	"github.com/plantops/sitewatch/internal/datastore/entities"
	"github.com/plantops/sitewatch/internal/datastore/repository"
	"github.com/plantops/sitewatch/internal/logger"
	"github.com/plantops/sitewatch/internal/maintenance"
)

// recordingNotifier captures alert dispatches from the engine during tests.
type recordingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *recordingNotifier) SendMaintenanceAlert(_ context.Context, _ *entities.Equipment, _ *entities.MaintenanceSchedule, _ maintenance.UrgencyState, _ float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return nil
}

func (n *recordingNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

type apiTestEnv struct {
	echo      *echo.Echo
	db        *gorm.DB
	equipment repository.EquipmentRepository
	schedules repository.ScheduleRepository
	notifier  *recordingNotifier
	settings  *conf.Settings
}

// setupAPITest wires a controller against an in-memory database, with all
// routes registered, and returns the echo instance for request dispatch.
func setupAPITest(t *testing.T, settings *conf.Settings) *apiTestEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_foreign_keys=ON"), &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	require.NoError(t, err, "failed to open in-memory database")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&entities.Site{},
		&entities.Equipment{},
		&entities.MaintenanceSchedule{},
		&entities.MaintenanceLog{},
		&entities.NotificationLog{},
	))

	if settings == nil {
		settings = &conf.Settings{}
	}

	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
	equipmentRepo := repository.NewEquipmentRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	notifier := &recordingNotifier{}
	engine := maintenance.NewEngine(scheduleRepo, equipmentRepo, notifier, log, maintenance.Config{
		EmailCooldown: 24 * time.Hour,
		NotifyTimeout: time.Second,
	})
	t.Cleanup(engine.Stop)

	e := echo.New()
	New(e, settings, equipmentRepo, scheduleRepo, engine, log, nil)

	return &apiTestEnv{
		echo:      e,
		db:        db,
		equipment: equipmentRepo,
		schedules: scheduleRepo,
		notifier:  notifier,
		settings:  settings,
	}
}

// doRequest dispatches a request through the full echo router, exercising
// route registration and middleware.
func (env *apiTestEnv) doRequest(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

// createSite persists a site directly through the repository.
func (env *apiTestEnv) createSite(t *testing.T, name string) *entities.Site {
	t.Helper()
	site := &entities.Site{Name: name, IsActive: true}
	require.NoError(t, env.equipment.CreateSite(t.Context(), site))
	return site
}

// createEquipment persists an equipment record under the given site.
func (env *apiTestEnv) createEquipment(t *testing.T, siteID uint, name string, hours float64) *entities.Equipment {
	t.Helper()
	eq := &entities.Equipment{
		SiteID:              siteID,
		Name:                name,
		CurrentRunningHours: hours,
		HoursDataSource:     entities.HoursSourceManual,
		IsActive:            true,
	}
	require.NoError(t, env.equipment.CreateEquipment(t.Context(), eq))
	return eq
}

// createSchedule persists a schedule with sane thresholds.
func (env *apiTestEnv) createSchedule(t *testing.T, equipmentID uint, interval, last float64) *entities.MaintenanceSchedule {
	t.Helper()
	schedule := &entities.MaintenanceSchedule{
		EquipmentID:            equipmentID,
		MaintenanceType:        "oil_change",
		IntervalHours:          interval,
		LastMaintenanceHours:   last,
		NextMaintenanceHours:   last + interval,
		WarningThresholdHours:  100,
		CriticalThresholdHours: 25,
		EnableEmailAlerts:      true,
		EmailFrequency:         entities.EmailFrequencyDaily,
		IsActive:               true,
	}
	require.NoError(t, env.schedules.CreateSchedule(t.Context(), schedule))
	return schedule
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body
}

func TestAuthMiddleware_OpenWithoutToken(t *testing.T) {
	env := setupAPITest(t, nil)

	rec := env.doRequest(t, http.MethodPost, "/api/v2/sites", map[string]string{"name": "Plant North"}, "")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAuthMiddleware_RejectsMissingToken(t *testing.T) {
	env := setupAPITest(t, &conf.Settings{
		WebServer: conf.WebServerSettings{AuthToken: "secret-token"},
	})

	rec := env.doRequest(t, http.MethodPost, "/api/v2/sites", map[string]string{"name": "Plant North"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.doRequest(t, http.MethodPost, "/api/v2/sites", map[string]string{"name": "Plant North"}, "wrong-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_AcceptsValidToken(t *testing.T) {
	env := setupAPITest(t, &conf.Settings{
		WebServer: conf.WebServerSettings{AuthToken: "secret-token"},
	})

	rec := env.doRequest(t, http.MethodPost, "/api/v2/sites", map[string]string{"name": "Plant North"}, "secret-token")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAuthMiddleware_ReadsStayOpen(t *testing.T) {
	env := setupAPITest(t, &conf.Settings{
		WebServer: conf.WebServerSettings{AuthToken: "secret-token"},
	})

	rec := env.doRequest(t, http.MethodGet, "/api/v2/equipment", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetHealth(t *testing.T) {
	env := setupAPITest(t, nil)

	rec := env.doRequest(t, http.MethodGet, "/api/v2/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["database"])
	assert.GreaterOrEqual(t, body["uptime_seconds"].(float64), 0.0)
}

func TestStreamAlerts_ServiceNotInitialized(t *testing.T) {
	env := setupAPITest(t, nil)

	rec := env.doRequest(t, http.MethodGet, "/api/v2/notifications/stream", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
