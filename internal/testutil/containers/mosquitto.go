//go:build integration

//nolint:misspell // Mosquitto is the official Eclipse project name
package containers

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// MosquittoContainer runs an Eclipse Mosquitto broker, standing in for the
// plant broker that gateways publish running-hours samples to. Ingest tests
// point their client at GetBrokerURL and publish to sitewatch/hours topics.
type MosquittoContainer struct {
	container  testcontainers.Container
	brokerURL  string
	configFile string // temp mosquitto.conf, removed on Terminate
}

// MosquittoConfig controls Mosquitto container creation.
type MosquittoConfig struct {
	// ImageTag selects the eclipse-mosquitto image version (default "2.0").
	ImageTag string
}

// DefaultMosquittoConfig returns a Mosquitto 2.0 broker that accepts
// anonymous connections, matching an unauthenticated plant-network broker.
func DefaultMosquittoConfig() MosquittoConfig {
	return MosquittoConfig{ImageTag: "2.0"}
}

// NewMosquittoContainer starts a Mosquitto broker container and verifies it
// accepts connections. A nil config uses DefaultMosquittoConfig().
func NewMosquittoContainer(ctx context.Context, config *MosquittoConfig) (*MosquittoContainer, error) {
	if config == nil {
		defaultCfg := DefaultMosquittoConfig()
		config = &defaultCfg
	}

	// Mosquitto 2.x refuses remote connections without an explicit
	// listener config, so mount one that allows anonymous clients.
	configFile, err := writeAnonymousBrokerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create mosquitto config: %w", err)
	}

	req := testcontainers.ContainerRequest{
		Image:        fmt.Sprintf("eclipse-mosquitto:%s", config.ImageTag),
		ExposedPorts: []string{"1883/tcp"},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-anon.conf"},
		Files: []testcontainers.ContainerFile{
			{
				HostFilePath:      configFile,
				ContainerFilePath: "/mosquitto-anon.conf",
				FileMode:          0o644,
			},
		},
		WaitingFor: wait.ForLog("mosquitto version").
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		_ = os.Remove(configFile)
		return nil, fmt.Errorf("failed to start Mosquitto container: %w", err)
	}

	cleanupOnError := func() {
		_ = container.Terminate(context.Background())
		_ = os.Remove(configFile)
	}

	host, err := container.Host(ctx)
	if err != nil {
		cleanupOnError()
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	mappedPort, err := container.MappedPort(ctx, "1883")
	if err != nil {
		cleanupOnError()
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	mc := &MosquittoContainer{
		container:  container,
		brokerURL:  fmt.Sprintf("tcp://%s", net.JoinHostPort(host, strconv.Itoa(mappedPort.Int()))),
		configFile: configFile,
	}

	// The log line can precede the listener being ready; confirm with a
	// real connect/disconnect before handing the broker to tests.
	if err := mc.healthCheck(); err != nil {
		cleanupOnError()
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	return mc, nil
}

// writeAnonymousBrokerConfig writes a minimal mosquitto.conf permitting
// anonymous connections on 1883 and returns its path. The caller removes the
// file when the container is terminated.
func writeAnonymousBrokerConfig() (string, error) {
	const configContent = "listener 1883\nallow_anonymous true\n"

	tmpFile, err := os.CreateTemp("", "mosquitto-*.conf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp config: %w", err)
	}
	if _, err := tmpFile.WriteString(configContent); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpFile.Name())
		return "", fmt.Errorf("failed to close temp config: %w", err)
	}
	return tmpFile.Name(), nil
}

// GetBrokerURL returns the broker URL ("tcp://host:port") for ingest client
// configuration.
func (c *MosquittoContainer) GetBrokerURL(t *testing.T) string {
	t.Helper()
	if c.brokerURL == "" {
		t.Fatal("broker URL is empty")
	}
	return c.brokerURL
}

// healthCheck connects and disconnects once to prove the listener is up.
func (c *MosquittoContainer) healthCheck() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.brokerURL)
	opts.SetClientID("healthcheck")
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetAutoReconnect(false)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("health check timeout after 5s")
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to connect to broker: %w", token.Error())
	}
	client.Disconnect(250)
	return nil
}

// CreateClient connects a new MQTT client to this broker. The caller owns
// the client and must disconnect it.
func (c *MosquittoContainer) CreateClient(clientID string, opts ...func(*mqtt.ClientOptions)) (mqtt.Client, error) {
	mqttOpts := mqtt.NewClientOptions()
	mqttOpts.AddBroker(c.brokerURL)
	mqttOpts.SetClientID(clientID)
	mqttOpts.SetConnectTimeout(10 * time.Second)
	mqttOpts.SetAutoReconnect(true)
	for _, opt := range opts {
		opt(mqttOpts)
	}

	client := mqtt.NewClient(mqttOpts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connect timeout for client %s", clientID)
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("failed to connect client: %w", token.Error())
	}
	return client, nil
}

// ClearRetainedMessages wipes every retained message from the broker, so a
// stale retained hours sample cannot leak from one test into the next. It
// discovers retained topics by subscribing to # and then publishes an empty
// retained payload to each.
func (c *MosquittoContainer) ClearRetainedMessages(ctx context.Context) error {
	client, err := c.CreateClient("retained-cleaner")
	if err != nil {
		return fmt.Errorf("failed to create cleaner client: %w", err)
	}
	defer client.Disconnect(250)

	var mu sync.Mutex
	retainedTopics := make([]string, 0)

	token := client.Subscribe("#", 0, func(_ mqtt.Client, msg mqtt.Message) {
		if msg.Retained() {
			mu.Lock()
			retainedTopics = append(retainedTopics, msg.Topic())
			mu.Unlock()
		}
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout after 5s")
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to subscribe: %w", token.Error())
	}

	// Retained messages arrive immediately after subscribing; a short
	// settle window is enough to collect them all.
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for retained messages: %w", ctx.Err())
	}

	unsubToken := client.Unsubscribe("#")
	if !unsubToken.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("unsubscribe timeout after 5s")
	}
	if unsubToken.Error() != nil {
		return fmt.Errorf("failed to unsubscribe: %w", unsubToken.Error())
	}

	mu.Lock()
	topics := make([]string, len(retainedTopics))
	copy(topics, retainedTopics)
	mu.Unlock()

	for _, topic := range topics {
		token := client.Publish(topic, 0, true, nil)
		if !token.WaitTimeout(5 * time.Second) {
			return fmt.Errorf("publish timeout for topic %s after 5s", topic)
		}
		if token.Error() != nil {
			return fmt.Errorf("failed to clear topic %s: %w", topic, token.Error())
		}
	}
	return nil
}

// Terminate stops and removes the Mosquitto container and deletes the temp
// broker config.
func (c *MosquittoContainer) Terminate(ctx context.Context) error {
	var terminateErr error
	if c.container != nil {
		if err := c.container.Terminate(ctx); err != nil {
			terminateErr = fmt.Errorf("failed to terminate container: %w", err)
		}
	}
	if c.configFile != "" {
		if err := os.Remove(c.configFile); err != nil && !os.IsNotExist(err) {
			fmt.Printf("Warning: failed to remove temp config file %s: %v\n", c.configFile, err)
		}
	}
	return terminateErr
}
