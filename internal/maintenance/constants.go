// Package maintenance implements the running-hours maintenance scheduling
// engine: urgency classification, due-list aggregation, schedule advancement
// on completed maintenance, and throttled alert dispatch.
package maintenance

import (
	"encoding/json"
	"time"
)

// UrgencyState classifies how close a schedule is to its next maintenance.
// Ordering matters: urgency only increases as running hours accumulate.
type UrgencyState int

// Urgency states, least to most urgent.
const (
	StateGood UrgencyState = iota
	StateWarning
	StateCritical
	StateOverdue
)

// String returns the wire/UI name of the state.
func (s UrgencyState) String() string {
	switch s {
	case StateGood:
		return "good"
	case StateWarning:
		return "warning"
	case StateCritical:
		return "critical"
	case StateOverdue:
		return "overdue"
	default:
		return "unknown"
	}
}

// MarshalJSON serializes the state as its string name.
func (s UrgencyState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

const (
	// defaultEmailCooldown is the throttle window for the "daily" frequency
	// when no override is configured.
	defaultEmailCooldown = 24 * time.Hour
	// defaultNotifyTimeout bounds a single notification dispatch so a slow
	// provider cannot stall the sweep of other schedules.
	defaultNotifyTimeout = 10 * time.Second
	// saveLogTimeout is the context deadline for persisting log entries
	// from background goroutines.
	saveLogTimeout = 3 * time.Second
	// cleanupTimeout is the context deadline for the periodic log deletion.
	cleanupTimeout = 5 * time.Second
	// cleanupInterval is how often the log cleanup goroutine runs.
	cleanupInterval = 1 * time.Hour
)
