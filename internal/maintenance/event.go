package maintenance

import (
	"sync"
	"time"
)

// HoursEvent announces a fresh running-hours sample for one equipment.
type HoursEvent struct {
	EquipmentID uint
	Hours       float64
	// Source is the hours data source that produced the sample
	// (sensor topic or "manual").
	Source    string
	Timestamp time.Time
}

// HoursEventHandler processes hours events.
type HoursEventHandler func(event *HoursEvent)

// Package-level singleton for the hours event bus.
var (
	globalHoursBus *HoursEventBus
	hoursBusMu     sync.RWMutex
)

// SetGlobalBus sets the package-level hours event bus singleton.
// Called during initialization.
func SetGlobalBus(bus *HoursEventBus) {
	hoursBusMu.Lock()
	defer hoursBusMu.Unlock()
	globalHoursBus = bus
}

// GetGlobalBus returns the package-level hours event bus, or nil if not initialized.
func GetGlobalBus() *HoursEventBus {
	hoursBusMu.RLock()
	defer hoursBusMu.RUnlock()
	return globalHoursBus
}

// TryPublish publishes an event to the global hours bus if initialized.
// Returns false if the bus is not yet available.
func TryPublish(event *HoursEvent) bool {
	bus := GetGlobalBus()
	if bus == nil {
		return false
	}
	bus.Publish(event)
	return true
}

// eventBusBufferSize is the capacity of the async event channel.
// Events are dropped if the buffer is full to avoid blocking callers.
const eventBusBufferSize = 1000

// HoursEventBus is an async pub/sub for hours samples. Publish is
// non-blocking: events go to a buffered channel and are processed by a worker
// goroutine, so the MQTT ingest callback is never blocked by DB reads or
// notification dispatch.
type HoursEventBus struct {
	handlers []HoursEventHandler
	mu       sync.RWMutex
	eventCh  chan *HoursEvent
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHoursEventBus creates a new hours event bus and starts its worker.
func NewHoursEventBus() *HoursEventBus {
	b := &HoursEventBus{
		handlers: make([]HoursEventHandler, 0),
		eventCh:  make(chan *HoursEvent, eventBusBufferSize),
		stopCh:   make(chan struct{}),
	}
	go b.processLoop()
	return b
}

// Subscribe registers a handler for hours events.
func (b *HoursEventBus) Subscribe(handler HoursEventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Publish enqueues an event for async processing. Non-blocking: if the buffer
// is full the event is dropped; the next sweep will catch up regardless.
// Events are silently dropped after Stop() has been called.
func (b *HoursEventBus) Publish(event *HoursEvent) {
	select {
	case <-b.stopCh:
		return // Bus is stopped, discard event
	default:
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	default:
		// Buffer full: drop event, the periodic sweep covers the loss
	}
}

// Stop shuts down the worker goroutine. Safe to call multiple times.
func (b *HoursEventBus) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
}

// processLoop drains the event channel and dispatches to handlers.
func (b *HoursEventBus) processLoop() {
	for {
		select {
		case event := <-b.eventCh:
			b.dispatch(event)
		case <-b.stopCh:
			// Drain remaining events before exiting
			for {
				select {
				case event := <-b.eventCh:
					b.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (b *HoursEventBus) dispatch(event *HoursEvent) {
	b.mu.RLock()
	handlers := make([]HoursEventHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.safeCall(handler, event)
	}
}

// safeCall invokes a handler with panic recovery so a panicking handler
// cannot kill the event bus goroutine.
func (b *HoursEventBus) safeCall(handler HoursEventHandler, event *HoursEvent) {
	defer func() {
		recover() //nolint:errcheck // intentionally swallowed to keep bus alive
	}()
	handler(event)
}
