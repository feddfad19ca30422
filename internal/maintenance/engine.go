package maintenance

import (
	"sync"
	"time"

	"github.com/plantops/sitewatch/internal/datastore/repository"
	"github.com/plantops/sitewatch/internal/logger"
)

// Config tunes engine behavior. Zero values fall back to defaults.
type Config struct {
	// EmailCooldown is the throttle window for the "daily" email frequency.
	EmailCooldown time.Duration
	// NotifyTimeout bounds a single notification dispatch.
	NotifyTimeout time.Duration
}

// Engine owns the maintenance scheduling state machine: it classifies
// schedules, advances them on completed maintenance, and dispatches throttled
// alerts. All read-classify-mutate sequences are serialized per schedule ID so
// a background sweep and a manual action can never double-send within the
// same throttling window.
type Engine struct {
	schedules repository.ScheduleRepository
	equipment repository.EquipmentRepository
	notifier  Notifier
	log       logger.Logger

	emailCooldown time.Duration
	notifyTimeout time.Duration

	// Per-schedule locks (in-memory; a single process owns the engine)
	locks   map[uint]*sync.Mutex
	locksMu sync.Mutex

	// Background goroutines
	sweepStop   chan struct{}
	cleanupStop chan struct{}
	bgMu        sync.Mutex
	wg          sync.WaitGroup
}

// NewEngine creates a maintenance engine. notifier may be nil, in which case
// alert dispatch is disabled (classification and advancement still work).
func NewEngine(
	schedules repository.ScheduleRepository,
	equipment repository.EquipmentRepository,
	notifier Notifier,
	log logger.Logger,
	cfg Config,
) *Engine {
	if cfg.EmailCooldown <= 0 {
		cfg.EmailCooldown = defaultEmailCooldown
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}
	return &Engine{
		schedules:     schedules,
		equipment:     equipment,
		notifier:      notifier,
		log:           log,
		emailCooldown: cfg.EmailCooldown,
		notifyTimeout: cfg.NotifyTimeout,
		locks:         make(map[uint]*sync.Mutex),
	}
}

// scheduleLock returns the mutex serializing operations on one schedule.
func (e *Engine) scheduleLock(scheduleID uint) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	lock, ok := e.locks[scheduleID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[scheduleID] = lock
	}
	return lock
}

// Stop shuts down background goroutines (sweep and log cleanup) and waits
// for them to exit.
func (e *Engine) Stop() {
	e.bgMu.Lock()
	if e.sweepStop != nil {
		close(e.sweepStop)
		e.sweepStop = nil
	}
	if e.cleanupStop != nil {
		close(e.cleanupStop)
		e.cleanupStop = nil
	}
	e.bgMu.Unlock()
	e.wg.Wait()
}
