package maintenance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/plantops/sitewatch/internal/datastore/entities"
)

func TestClassify_BoundaryExactness(t *testing.T) {
	t.Parallel()

	const nextDue = 3000.0

	tests := []struct {
		name         string
		currentHours float64
		wantState    UrgencyState
		wantDistance float64
	}{
		{"exactly at due point is overdue", nextDue, StateOverdue, 0},
		{"past due point", nextDue + 42.5, StateOverdue, 42.5},
		{"at critical boundary", nextDue - 5, StateCritical, 5},
		{"inside critical window", nextDue - 1, StateCritical, 1},
		{"at warning boundary", nextDue - 10, StateWarning, 10},
		{"inside warning window", nextDue - 7, StateWarning, 7},
		{"just outside warning window", nextDue - 11, StateGood, 11},
		{"far from due", 0, StateGood, nextDue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			status := Classify(tt.currentHours, nextDue, 10, 5)
			assert.Equal(t, tt.wantState, status.State)
			assert.InDelta(t, tt.wantDistance, status.DistanceHours, 0.0001)
		})
	}
}

// TestClassify_Monotonicity checks that urgency never regresses as hours
// accumulate toward and past the due point.
func TestClassify_Monotonicity(t *testing.T) {
	t.Parallel()

	const (
		nextDue  = 1000.0
		warning  = 100.0
		critical = 25.0
	)

	prev := StateGood
	for hours := 0.0; hours <= nextDue+200; hours += 0.5 {
		status := Classify(hours, nextDue, warning, critical)
		assert.GreaterOrEqual(t, int(status.State), int(prev),
			"urgency regressed at %v hours: %v -> %v", hours, prev, status.State)
		prev = status.State
	}
	assert.Equal(t, StateOverdue, prev)
}

// TestClassify_MissingThresholds verifies graceful degradation: with zero
// thresholds every pre-due value is Good and classification jumps straight
// to Overdue at the due point.
func TestClassify_MissingThresholds(t *testing.T) {
	t.Parallel()

	status := Classify(999.9, 1000, 0, 0)
	assert.Equal(t, StateGood, status.State)

	status = Classify(1000, 1000, 0, 0)
	assert.Equal(t, StateOverdue, status.State)
	assert.InDelta(t, 0, status.DistanceHours, 0.0001)

	// Negative thresholds are clamped to zero, not an error
	status = Classify(999.9, 1000, -10, -5)
	assert.Equal(t, StateGood, status.State)
}

// TestClassify_InvertedThresholds documents behavior when critical is wider
// than warning: precedence means the warning band never surfaces, the wider
// critical window wins.
func TestClassify_InvertedThresholds(t *testing.T) {
	t.Parallel()

	// critical=50 > warning=10
	status := Classify(960, 1000, 10, 50)
	assert.Equal(t, StateCritical, status.State)

	status = Classify(940, 1000, 10, 50)
	assert.Equal(t, StateGood, status.State)
}

func TestClassifySchedule(t *testing.T) {
	t.Parallel()

	eq := &entities.Equipment{CurrentRunningHours: 2950}
	schedule := &entities.MaintenanceSchedule{
		NextMaintenanceHours:   3000,
		WarningThresholdHours:  100,
		CriticalThresholdHours: 25,
	}

	status := ClassifySchedule(eq, schedule)
	assert.Equal(t, StateWarning, status.State)
	assert.InDelta(t, 50, status.DistanceHours, 0.0001)
}

func TestUrgencyState_JSON(t *testing.T) {
	t.Parallel()

	data, err := StateCritical.MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, `"critical"`, string(data))
	assert.Equal(t, "overdue", StateOverdue.String())
	assert.Equal(t, "unknown", UrgencyState(99).String())
}
