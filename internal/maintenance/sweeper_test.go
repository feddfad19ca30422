package maintenance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantops/sitewatch/internal/datastore/entities"
	"github.com/plantops/sitewatch/internal/datastore/repository"
)

func TestSweepOnce_NotifiesDueSchedules(t *testing.T) {
	env := setupEngineTest(t)
	ctx := t.Context()

	env.seedSchedule(t, 2950, 3000, 0) // Warning -> alert
	env.seedSchedule(t, 100, 3000, 0)  // Good -> silent

	env.engine.SweepOnce(ctx)
	assert.Equal(t, 1, env.notifier.callCount())

	// Immediate second sweep is throttled
	env.engine.SweepOnce(ctx)
	assert.Equal(t, 1, env.notifier.callCount())
}

func TestSweepOnce_SkipsInactive(t *testing.T) {
	env := setupEngineTest(t)
	ctx := t.Context()

	eq, _ := env.seedSchedule(t, 3100, 3000, 0) // Overdue but equipment goes inactive
	require.NoError(t, env.equipment.SetEquipmentActive(ctx, eq.ID, false))

	_, schedule := env.seedSchedule(t, 3100, 3000, 0) // Overdue but schedule disabled
	require.NoError(t, env.schedules.SetScheduleActive(ctx, schedule.ID, false))

	env.engine.SweepOnce(ctx)
	assert.Zero(t, env.notifier.callCount())
}

func TestSweepOnce_DeliveryFailureDoesNotAbortSweep(t *testing.T) {
	env := setupEngineTest(t)
	ctx := t.Context()

	env.seedSchedule(t, 3100, 3000, 0)
	env.seedSchedule(t, 2950, 3000, 0)
	env.notifier.setError(assert.AnError)

	env.engine.SweepOnce(ctx)
	assert.Zero(t, env.notifier.callCount())

	// Both schedules retried and delivered once the notifier recovers
	env.notifier.setError(nil)
	env.engine.SweepOnce(ctx)
	assert.Equal(t, 2, env.notifier.callCount())
}

func TestEvaluateEquipment_ImmediateReevaluation(t *testing.T) {
	env := setupEngineTest(t)
	ctx := t.Context()

	eq, _ := env.seedSchedule(t, 2800, 3000, 0) // Good at seed time

	env.engine.EvaluateEquipment(ctx, eq.ID)
	assert.Zero(t, env.notifier.callCount())

	// Fresh hours sample pushes the schedule into Warning
	require.NoError(t, env.equipment.OverrideRunningHours(ctx, eq.ID, 2950))
	env.engine.EvaluateEquipment(ctx, eq.ID)
	assert.Equal(t, 1, env.notifier.callCount())

	call := env.notifier.lastCall(t)
	assert.Equal(t, StateWarning, call.State)
	assert.InDelta(t, 50, call.DistanceHours, 0.0001)
}

func TestEvaluateEquipment_InactiveEquipmentIgnored(t *testing.T) {
	env := setupEngineTest(t)
	ctx := t.Context()

	eq, _ := env.seedSchedule(t, 3100, 3000, 0)
	require.NoError(t, env.equipment.SetEquipmentActive(ctx, eq.ID, false))

	env.engine.EvaluateEquipment(ctx, eq.ID)
	assert.Zero(t, env.notifier.callCount())
}

func TestEvaluateEquipment_UnknownEquipmentIsNoop(t *testing.T) {
	env := setupEngineTest(t)

	env.engine.EvaluateEquipment(t.Context(), 9999)
	assert.Zero(t, env.notifier.callCount())
}

func TestStartSweep_RunsPeriodically(t *testing.T) {
	env := setupEngineTest(t)

	env.seedSchedule(t, 3100, 3000, 0) // Overdue

	env.engine.StartSweep(20 * time.Millisecond)
	defer env.engine.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for env.notifier.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 1, env.notifier.callCount(), "sweep sends once, then throttles")
}

func TestCleanupLogs_DeletesOldEntries(t *testing.T) {
	env := setupEngineTest(t)
	ctx := t.Context()

	_, schedule := env.seedSchedule(t, 3100, 3000, 0)

	old := &entities.NotificationLog{
		ScheduleID: schedule.ID,
		SentAt:     time.Now().AddDate(0, 0, -100),
		State:      "overdue",
		Status:     entities.NotificationStatusSent,
	}
	require.NoError(t, env.schedules.SaveNotificationLog(ctx, old))

	fresh := &entities.NotificationLog{
		ScheduleID: schedule.ID,
		SentAt:     time.Now(),
		State:      "overdue",
		Status:     entities.NotificationStatusSent,
	}
	require.NoError(t, env.schedules.SaveNotificationLog(ctx, fresh))

	env.engine.cleanupLogs(30)

	logs, total, err := env.schedules.ListNotificationLog(ctx, repository.LogFilter{ScheduleID: schedule.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, logs, 1)
	assert.Equal(t, fresh.ID, logs[0].ID)
}
