package ingest

import (
	"sync"
	"time"
)

// defaultStaleWindow is used when the configured window is zero.
const defaultStaleWindow = 30 * time.Minute

// sensorSample is the last received sample for one equipment.
type sensorSample struct {
	hours     float64
	timestamp time.Time
}

// SampleTracker remembers the most recent hours sample per equipment so the
// health API can flag sensors that have gone silent. In-memory only; restarts
// reset staleness, which is fine because the first post-restart sample
// repopulates it.
type SampleTracker struct {
	window  time.Duration
	samples map[uint]sensorSample
	mu      sync.RWMutex
}

// NewSampleTracker creates a tracker with the given staleness window.
func NewSampleTracker(window time.Duration) *SampleTracker {
	if window <= 0 {
		window = defaultStaleWindow
	}
	return &SampleTracker{
		window:  window,
		samples: make(map[uint]sensorSample),
	}
}

// Record stores the latest sample for an equipment.
func (t *SampleTracker) Record(equipmentID uint, hours float64, timestamp time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples[equipmentID] = sensorSample{hours: hours, timestamp: timestamp}
}

// LastSample returns the most recent sample for an equipment, if any.
func (t *SampleTracker) LastSample(equipmentID uint) (hours float64, timestamp time.Time, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sample, ok := t.samples[equipmentID]
	return sample.hours, sample.timestamp, ok
}

// IsStale reports whether an equipment's sensor has been silent for longer
// than the window. Equipment that never reported is not considered stale;
// that is indistinguishable from equipment added before its sensor was wired.
func (t *SampleTracker) IsStale(equipmentID uint, now time.Time) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sample, ok := t.samples[equipmentID]
	if !ok {
		return false
	}
	return now.Sub(sample.timestamp) > t.window
}

// StaleEquipment returns the IDs of all tracked equipment whose last sample
// is older than the window.
func (t *SampleTracker) StaleEquipment(now time.Time) []uint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var stale []uint
	for id, sample := range t.samples {
		if now.Sub(sample.timestamp) > t.window {
			stale = append(stale, id)
		}
	}
	return stale
}
