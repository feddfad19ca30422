// Package ingest feeds running-hours samples from MQTT-connected sensors
// into the equipment store. Each sample updates currentRunningHours for the
// equipment whose sensorTopic matches, then publishes an hours event so the
// maintenance engine re-evaluates that equipment immediately.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/plantops/sitewatch/internal/conf"
	"github.com/plantops/sitewatch/internal/datastore/entities"
	"github.com/plantops/sitewatch/internal/datastore/repository"
	"github.com/plantops/sitewatch/internal/errors"
	"github.com/plantops/sitewatch/internal/logger"
	"github.com/plantops/sitewatch/internal/maintenance"
)

const (
	// connectTimeout bounds the initial broker connection.
	connectTimeout = 10 * time.Second
	// disconnectQuiesceMs is how long paho waits for in-flight work on disconnect.
	disconnectQuiesceMs = 250
	// handleTimeout bounds the DB work done per incoming sample.
	handleTimeout = 5 * time.Second
)

// Client subscribes to running-hours topics and applies samples to the
// equipment store.
type Client struct {
	settings  conf.IngestSettings
	equipment repository.EquipmentRepository
	tracker   *SampleTracker
	log       logger.Logger

	mu     sync.Mutex
	client paho.Client
}

// NewClient creates an ingest client. It does not connect; call Start.
func NewClient(settings *conf.IngestSettings, equipment repository.EquipmentRepository, log logger.Logger) *Client {
	return &Client{
		settings:  *settings,
		equipment: equipment,
		tracker:   NewSampleTracker(settings.StaleSensorWindow.Std()),
		log:       log,
	}
}

// Tracker exposes the stale-sensor tracker for the health API.
func (c *Client) Tracker() *SampleTracker {
	return c.tracker
}

// Start connects to the broker and subscribes to the hours topic tree
// (`<topicprefix>/+`). Reconnects are handled by paho; the subscription is
// re-established from the OnConnect hook so it survives broker restarts.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return nil // already started
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.settings.Broker)
	opts.SetClientID(c.settings.ClientID)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	if c.settings.Username != "" {
		opts.SetUsername(c.settings.Username)
		opts.SetPassword(c.settings.Password)
	}
	opts.SetOnConnectHandler(func(client paho.Client) {
		filter := c.topicFilter()
		token := client.Subscribe(filter, c.settings.QoS, c.handleMessage)
		if token.WaitTimeout(connectTimeout) && token.Error() == nil {
			c.log.Info("subscribed to hours topics", logger.String("filter", filter))
			return
		}
		c.log.Error("failed to subscribe to hours topics",
			logger.String("filter", filter),
			logger.Error(token.Error()))
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.log.Warn("broker connection lost, reconnecting", logger.Error(err))
	})

	client := paho.NewClient(opts)
	token := client.Connect()

	select {
	case <-ctx.Done():
		client.Disconnect(0)
		return ctx.Err()
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Component("ingest").
			Category(errors.CategoryNetwork).
			Context("broker", c.settings.Broker).
			Build()
	}

	c.client = client
	c.log.Info("hours ingestion started",
		logger.String("broker", c.settings.Broker),
		logger.String("topic_prefix", c.settings.TopicPrefix))
	return nil
}

// Stop disconnects from the broker. Safe to call when never started.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return
	}
	c.client.Disconnect(disconnectQuiesceMs)
	c.client = nil
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client != nil && c.client.IsConnected()
}

// topicFilter returns the multi-level wildcard filter under the prefix.
// Sensor topics may contain slashes (e.g. "plant-north/compressor-a").
func (c *Client) topicFilter() string {
	prefix := strings.TrimSuffix(c.settings.TopicPrefix, "/")
	return prefix + "/#"
}

// handleMessage applies one incoming hours sample. Runs on paho's router
// goroutine; keep it bounded.
func (c *Client) handleMessage(_ paho.Client, msg paho.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	sensorTopic := c.sensorTopic(msg.Topic())
	hours, err := ParseHoursPayload(msg.Payload())
	if err != nil {
		c.log.Warn("discarding unparseable hours sample",
			logger.String("topic", msg.Topic()),
			logger.Error(err))
		return
	}

	if err := c.ApplySample(ctx, sensorTopic, hours); err != nil {
		if errors.Is(err, repository.ErrEquipmentNotFound) {
			c.log.Debug("hours sample for unknown sensor topic",
				logger.String("topic", sensorTopic))
			return
		}
		c.log.Error("failed to apply hours sample",
			logger.String("topic", sensorTopic),
			logger.Error(err))
	}
}

// sensorTopic strips the configured prefix off a full MQTT topic, leaving
// the per-equipment sensor topic stored in the database.
func (c *Client) sensorTopic(topic string) string {
	prefix := strings.TrimSuffix(c.settings.TopicPrefix, "/") + "/"
	return strings.TrimPrefix(topic, prefix)
}

// ApplySample updates the hours counter for the equipment bound to the given
// sensor topic and announces the new value on the hours event bus. Samples
// that would move the counter backwards are dropped and recorded as rejected;
// operator corrections use the API override instead.
func (c *Client) ApplySample(ctx context.Context, sensorTopic string, hours float64) error {
	eq, err := c.equipment.GetEquipmentBySensorTopic(ctx, sensorTopic)
	if err != nil {
		return err
	}

	c.tracker.Record(eq.ID, hours, time.Now())

	applied, err := c.equipment.AdvanceRunningHours(ctx, eq.ID, hours)
	if err != nil {
		return fmt.Errorf("failed to advance hours for equipment %d: %w", eq.ID, err)
	}
	if !applied {
		recordSample(false)
		c.log.Warn("dropping hours sample that moves counter backwards",
			logger.Uint64("equipment_id", uint64(eq.ID)),
			logger.String("topic", sensorTopic),
			logger.Float64("sample_hours", hours),
			logger.Float64("current_hours", eq.CurrentRunningHours))
		return nil
	}
	recordSample(true)

	maintenance.TryPublish(&maintenance.HoursEvent{
		EquipmentID: eq.ID,
		Hours:       hours,
		Source:      entities.HoursSourceSensor,
		Timestamp:   time.Now(),
	})

	c.log.Debug("hours sample applied",
		logger.Uint64("equipment_id", uint64(eq.ID)),
		logger.Float64("hours", hours))
	return nil
}
