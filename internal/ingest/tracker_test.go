package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleTracker_RecordAndLast(t *testing.T) {
	t.Parallel()

	tracker := NewSampleTracker(30 * time.Minute)
	now := time.Now()

	_, _, ok := tracker.LastSample(1)
	assert.False(t, ok)

	tracker.Record(1, 1250.5, now)
	hours, ts, ok := tracker.LastSample(1)
	require.True(t, ok)
	assert.InDelta(t, 1250.5, hours, 0.0001)
	assert.Equal(t, now, ts)

	// Newer sample replaces the old one
	tracker.Record(1, 1251, now.Add(time.Minute))
	hours, _, _ = tracker.LastSample(1)
	assert.InDelta(t, 1251, hours, 0.0001)
}

func TestSampleTracker_IsStale(t *testing.T) {
	t.Parallel()

	tracker := NewSampleTracker(30 * time.Minute)
	now := time.Now()

	// Never reported is not stale
	assert.False(t, tracker.IsStale(1, now))

	tracker.Record(1, 100, now.Add(-10*time.Minute))
	assert.False(t, tracker.IsStale(1, now))

	tracker.Record(2, 100, now.Add(-31*time.Minute))
	assert.True(t, tracker.IsStale(2, now))

	stale := tracker.StaleEquipment(now)
	assert.Equal(t, []uint{2}, stale)
}

func TestSampleTracker_ZeroWindowUsesDefault(t *testing.T) {
	t.Parallel()

	tracker := NewSampleTracker(0)
	now := time.Now()

	tracker.Record(1, 100, now.Add(-defaultStaleWindow).Add(-time.Second))
	assert.True(t, tracker.IsStale(1, now))

	tracker.Record(2, 100, now.Add(-time.Minute))
	assert.False(t, tracker.IsStale(2, now))
}
