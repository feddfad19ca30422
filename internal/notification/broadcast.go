package notification

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// subscriberBuffer is the per-subscriber channel capacity. Slow SSE clients
// miss alerts instead of blocking delivery.
const subscriberBuffer = 16

// Alert is the in-process broadcast form of a maintenance alert, consumed by
// SSE stream subscribers.
type Alert struct {
	ID              string    `json:"id"`
	EquipmentName   string    `json:"equipment_name"`
	MaintenanceType string    `json:"maintenance_type"`
	State           string    `json:"state"`
	DistanceHours   float64   `json:"distance_hours"`
	CurrentHours    float64   `json:"current_hours"`
	NextDueHours    float64   `json:"next_due_hours"`
	Timestamp       time.Time `json:"timestamp"`
}

// broadcaster fans alerts out to in-process subscribers.
type broadcaster struct {
	mu   sync.Mutex
	subs map[chan *Alert]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan *Alert]struct{})}
}

// Subscribe returns a channel of alerts dispatched from now on. The caller
// must Unsubscribe when done.
func (s *Service) Subscribe() <-chan *Alert {
	ch := make(chan *Alert, subscriberBuffer)
	s.broadcast.mu.Lock()
	s.broadcast.subs[ch] = struct{}{}
	s.broadcast.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (s *Service) Unsubscribe(ch <-chan *Alert) {
	s.broadcast.mu.Lock()
	defer s.broadcast.mu.Unlock()
	for sub := range s.broadcast.subs {
		if sub == ch {
			delete(s.broadcast.subs, sub)
			close(sub)
			return
		}
	}
}

// broadcastAlert delivers an alert to every subscriber without blocking.
func (s *Service) broadcastAlert(data *TemplateData) *Alert {
	alert := &Alert{
		ID:              uuid.New().String(),
		EquipmentName:   data.EquipmentName,
		MaintenanceType: data.MaintenanceType,
		State:           data.State,
		DistanceHours:   data.DistanceHours,
		CurrentHours:    data.CurrentHours,
		NextDueHours:    data.NextDueHours,
		Timestamp:       time.Now(),
	}

	s.broadcast.mu.Lock()
	defer s.broadcast.mu.Unlock()
	for sub := range s.broadcast.subs {
		select {
		case sub <- alert:
		default:
			// Subscriber buffer full: skip, the client catches up via the due list
		}
	}
	return alert
}
