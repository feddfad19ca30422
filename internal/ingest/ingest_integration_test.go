//go:build integration

// Integration tests for the MQTT hours ingestion path against a real
// Mosquitto broker managed by testcontainers: end-to-end sample delivery,
// payload variants, the monotonic guard, and subscription recovery.
//
//nolint:misspell // Mosquitto is the official Eclipse project name
package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/plantops/sitewatch/internal/conf"
	"github.com/plantops/sitewatch/internal/datastore/entities"
	"github.com/plantops/sitewatch/internal/datastore/repository"
	"github.com/plantops/sitewatch/internal/logger"
	"github.com/plantops/sitewatch/internal/testutil/containers"
)

const ingestTestPrefix = "sitewatch-test/hours"

var mqttBroker *containers.MosquittoContainer

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	mqttBroker, err = containers.NewMosquittoContainer(ctx, nil)
	if err != nil {
		panic("failed to create MQTT broker: " + err.Error())
	}

	code := m.Run()

	_ = mqttBroker.Terminate(ctx)
	os.Exit(code)
}

// startIngestClient creates and starts an ingest client against the test
// broker, backed by a fresh in-memory database.
func startIngestClient(t *testing.T) (*Client, repository.EquipmentRepository) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_foreign_keys=ON"), &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&entities.Site{}, &entities.Equipment{}))

	repo := repository.NewEquipmentRepository(db)
	settings := &conf.IngestSettings{
		Enabled:           true,
		Broker:            mqttBroker.GetBrokerURL(t),
		TopicPrefix:       ingestTestPrefix,
		ClientID:          fmt.Sprintf("ingest-%s", t.Name()),
		StaleSensorWindow: conf.Duration(30 * time.Minute),
	}
	client := NewClient(settings, repo, logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil))

	ctx, cancel := context.WithTimeout(t.Context(), 15*time.Second)
	defer cancel()
	require.NoError(t, client.Start(ctx), "ingest client should connect")
	t.Cleanup(client.Stop)

	return client, repo
}

// publishSample publishes a raw payload on the full hours topic.
func publishSample(t *testing.T, sensorTopic, payload string) {
	t.Helper()

	publisher, err := mqttBroker.CreateClient("sample-pub-" + t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { publisher.Disconnect(250) })

	topic := ingestTestPrefix + "/" + sensorTopic
	token := publisher.Publish(topic, 1, false, []byte(payload))
	require.True(t, token.WaitTimeout(5*time.Second))
	require.NoError(t, token.Error())
}

// waitForHours polls until the equipment's hours counter reaches want.
func waitForHours(t *testing.T, repo repository.EquipmentRepository, id uint, want float64) {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		eq, err := repo.GetEquipment(t.Context(), id)
		require.NoError(t, err)
		if eq.CurrentRunningHours >= want-0.0001 {
			assert.InDelta(t, want, eq.CurrentRunningHours, 0.0001)
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for equipment %d to reach %v hours", id, want)
}

func seedSensorEquipment(t *testing.T, repo repository.EquipmentRepository, topic string, hours float64) *entities.Equipment {
	t.Helper()
	ctx := t.Context()

	site := &entities.Site{Name: "Integration Plant", IsActive: true}
	require.NoError(t, repo.CreateSite(ctx, site))
	eq := &entities.Equipment{
		SiteID:              site.ID,
		Name:                "Compressor " + topic,
		CurrentRunningHours: hours,
		HoursDataSource:     entities.HoursSourceSensor,
		SensorTopic:         topic,
		IsActive:            true,
	}
	require.NoError(t, repo.CreateEquipment(ctx, eq))
	return eq
}

func TestIngestIntegration_BareNumberSample(t *testing.T) {
	client, repo := startIngestClient(t)
	require.True(t, client.IsConnected())

	eq := seedSensorEquipment(t, repo, "bare/compressor", 1000)
	publishSample(t, "bare/compressor", "1250.5")

	waitForHours(t, repo, eq.ID, 1250.5)
}

func TestIngestIntegration_JSONSample(t *testing.T) {
	_, repo := startIngestClient(t)

	eq := seedSensorEquipment(t, repo, "json/compressor", 0)
	publishSample(t, "json/compressor", `{"hours": 42.25, "quality": "good"}`)

	waitForHours(t, repo, eq.ID, 42.25)
}

func TestIngestIntegration_MonotonicGuard(t *testing.T) {
	client, repo := startIngestClient(t)

	eq := seedSensorEquipment(t, repo, "guard/compressor", 500)
	publishSample(t, "guard/compressor", "600")
	waitForHours(t, repo, eq.ID, 600)

	// A backwards sample must be dropped
	publishSample(t, "guard/compressor", "100")
	time.Sleep(500 * time.Millisecond)

	got, err := repo.GetEquipment(t.Context(), eq.ID)
	require.NoError(t, err)
	assert.InDelta(t, 600, got.CurrentRunningHours, 0.0001)

	// Tracker still saw the rejected sample, so the sensor is not stale
	assert.False(t, client.Tracker().IsStale(eq.ID, time.Now()))
}

func TestIngestIntegration_GarbagePayloadIgnored(t *testing.T) {
	_, repo := startIngestClient(t)

	eq := seedSensorEquipment(t, repo, "garbage/compressor", 300)
	publishSample(t, "garbage/compressor", "not-a-number")
	publishSample(t, "garbage/compressor", "310")

	waitForHours(t, repo, eq.ID, 310)
}

func TestIngestIntegration_UnknownTopicIgnored(t *testing.T) {
	_, repo := startIngestClient(t)

	eq := seedSensorEquipment(t, repo, "known/compressor", 100)
	publishSample(t, "unknown/compressor", "9999")
	publishSample(t, "known/compressor", "150")

	waitForHours(t, repo, eq.ID, 150)
}

func TestIngestIntegration_StartStop(t *testing.T) {
	client, _ := startIngestClient(t)
	assert.True(t, client.IsConnected())

	client.Stop()
	assert.False(t, client.IsConnected())

	// Stop is idempotent
	client.Stop()
}

// Verify a raw paho subscriber sees the same traffic the ingest client
// consumes: ingestion is a plain shared subscription, not a queue.
func TestIngestIntegration_SharedTopicVisibility(t *testing.T) {
	_, repo := startIngestClient(t)
	eq := seedSensorEquipment(t, repo, "shared/compressor", 0)

	observer, err := mqttBroker.CreateClient("shared-observer")
	require.NoError(t, err)
	t.Cleanup(func() { observer.Disconnect(250) })

	received := make(chan string, 1)
	token := observer.Subscribe(ingestTestPrefix+"/shared/compressor", 1, func(_ paho.Client, msg paho.Message) {
		received <- string(msg.Payload())
	})
	require.True(t, token.WaitTimeout(5*time.Second))
	require.NoError(t, token.Error())

	publishSample(t, "shared/compressor", "77")

	select {
	case payload := <-received:
		assert.Equal(t, "77", payload)
	case <-time.After(5 * time.Second):
		t.Fatal("observer did not receive the sample")
	}
	waitForHours(t, repo, eq.ID, 77)
}
