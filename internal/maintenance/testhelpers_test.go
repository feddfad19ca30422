package maintenance

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/plantops/sitewatch/internal/datastore/entities"
	"github.com/plantops/sitewatch/internal/datastore/repository"
	"github.com/plantops/sitewatch/internal/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockNotifier records dispatched alerts and can simulate delivery failures.
type mockNotifier struct {
	mu    sync.Mutex
	calls []mockAlert
	err   error
}

type mockAlert struct {
	EquipmentName string
	ScheduleID    uint
	State         UrgencyState
	DistanceHours float64
}

func (m *mockNotifier) SendMaintenanceAlert(_ context.Context, eq *entities.Equipment, schedule *entities.MaintenanceSchedule, state UrgencyState, distanceHours float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, mockAlert{
		EquipmentName: eq.Name,
		ScheduleID:    schedule.ID,
		State:         state,
		DistanceHours: distanceHours,
	})
	return nil
}

func (m *mockNotifier) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockNotifier) lastCall(t *testing.T) mockAlert {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.calls, "expected at least one dispatched alert")
	return m.calls[len(m.calls)-1]
}

func (m *mockNotifier) setError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// engineTestEnv bundles an engine with its repositories and mock notifier
// over an in-memory database.
type engineTestEnv struct {
	engine    *Engine
	schedules repository.ScheduleRepository
	equipment repository.EquipmentRepository
	notifier  *mockNotifier
	seeds     int
}

// setupEngineTest creates an engine backed by an in-memory SQLite database.
func setupEngineTest(t *testing.T) *engineTestEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_foreign_keys=ON"), &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	require.NoError(t, err, "failed to open in-memory database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "failed to get sql.DB")
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&entities.Site{},
		&entities.Equipment{},
		&entities.MaintenanceSchedule{},
		&entities.MaintenanceLog{},
		&entities.NotificationLog{},
	)
	require.NoError(t, err, "failed to migrate tables")

	notifier := &mockNotifier{}
	scheduleRepo := repository.NewScheduleRepository(db)
	equipmentRepo := repository.NewEquipmentRepository(db)
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
	engine := NewEngine(scheduleRepo, equipmentRepo, notifier, log, Config{
		EmailCooldown: 24 * time.Hour,
		NotifyTimeout: time.Second,
	})
	t.Cleanup(engine.Stop)

	return &engineTestEnv{
		engine:    engine,
		schedules: scheduleRepo,
		equipment: equipmentRepo,
		notifier:  notifier,
	}
}

// seedSchedule creates a site, one equipment record, and one schedule on it.
func (env *engineTestEnv) seedSchedule(t *testing.T, currentHours, interval, last float64) (*entities.Equipment, *entities.MaintenanceSchedule) {
	t.Helper()
	ctx := t.Context()

	// Site names carry a unique index, so each seeded site needs its own name.
	env.seeds++
	site := &entities.Site{Name: fmt.Sprintf("Plant North %d", env.seeds), IsActive: true}
	require.NoError(t, env.equipment.CreateSite(ctx, site))

	eq := &entities.Equipment{
		SiteID:              site.ID,
		Name:                "Compressor A",
		CurrentRunningHours: currentHours,
		HoursDataSource:     entities.HoursSourceManual,
		IsActive:            true,
	}
	require.NoError(t, env.equipment.CreateEquipment(ctx, eq))

	schedule := &entities.MaintenanceSchedule{
		EquipmentID:            eq.ID,
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
	require.NoError(t, env.schedules.CreateSchedule(ctx, schedule))
	return eq, schedule
}
