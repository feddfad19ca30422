package notification

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantops/sitewatch/internal/logger"
)

func newBroadcastTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(&ServiceConfig{
		Log: logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil),
	})
}

func TestBroadcast_SubscribersReceiveAlerts(t *testing.T) {
	svc := newBroadcastTestService(t)

	ch := svc.Subscribe()
	defer svc.Unsubscribe(ch)

	alert := svc.broadcastAlert(&TemplateData{
		EquipmentName:   "Compressor A",
		MaintenanceType: "oil_change",
		State:           "critical",
		DistanceHours:   12.5,
	})
	assert.NotEmpty(t, alert.ID)

	select {
	case got := <-ch:
		assert.Equal(t, alert.ID, got.ID)
		assert.Equal(t, "Compressor A", got.EquipmentName)
		assert.Equal(t, "critical", got.State)
		assert.InDelta(t, 12.5, got.DistanceHours, 0.0001)
		assert.False(t, got.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the alert")
	}
}

func TestBroadcast_UnsubscribeClosesChannel(t *testing.T) {
	svc := newBroadcastTestService(t)

	ch := svc.Subscribe()
	svc.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open, "unsubscribed channel should be closed")

	// Broadcasting after unsubscribe must not panic
	svc.broadcastAlert(&TemplateData{EquipmentName: "Pump", State: "warning"})
}

func TestBroadcast_SlowSubscriberDoesNotBlock(t *testing.T) {
	svc := newBroadcastTestService(t)

	slow := svc.Subscribe()
	defer svc.Unsubscribe(slow)

	// Overfill the subscriber buffer; every broadcast must return promptly.
	done := make(chan struct{})
	go func() {
		for range subscriberBuffer + 5 {
			svc.broadcastAlert(&TemplateData{EquipmentName: "Pump", State: "overdue"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow subscriber")
	}

	// The buffer holds exactly its capacity; overflow was dropped.
	require.Len(t, slow, subscriberBuffer)
}

func TestBroadcast_MultipleSubscribers(t *testing.T) {
	svc := newBroadcastTestService(t)

	first := svc.Subscribe()
	second := svc.Subscribe()
	defer svc.Unsubscribe(first)
	defer svc.Unsubscribe(second)

	svc.broadcastAlert(&TemplateData{EquipmentName: "Mixer", State: "warning"})

	for _, ch := range []<-chan *Alert{first, second} {
		select {
		case got := <-ch:
			assert.Equal(t, "Mixer", got.EquipmentName)
		case <-time.After(time.Second):
			t.Fatal("subscriber missed the broadcast")
		}
	}
}
