//go:build integration

package containers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcexec "github.com/testcontainers/testcontainers-go/exec"
	"github.com/testcontainers/testcontainers-go/wait"
)

// NtfyContainer runs a binwiederhier/ntfy server, standing in for the
// push-notification relay that maintenance alerts are delivered to. Tests
// publish through the notification service and then poll topics here to
// verify delivery.
type NtfyContainer struct {
	container   testcontainers.Container
	host        string
	port        int
	authEnabled bool
}

// NtfyConfig controls ntfy container creation.
type NtfyConfig struct {
	// ImageTag selects the binwiederhier/ntfy image version.
	ImageTag string
	// EnableAuth starts the server with deny-all default access; grant
	// per-topic permissions with AddUser and GrantAccess.
	EnableAuth bool
}

// DefaultNtfyConfig returns an open (unauthenticated) server on the current
// image.
func DefaultNtfyConfig() NtfyConfig {
	return NtfyConfig{
		ImageTag:   "latest",
		EnableAuth: false,
	}
}

// NtfyMessage is one message polled back from a topic.
type NtfyMessage struct {
	ID      string `json:"id"`
	Topic   string `json:"topic"`
	Message string `json:"message"`
	Title   string `json:"title"`
	Time    int64  `json:"time"`
}

// NewNtfyContainer starts an ntfy server container and waits for its health
// endpoint. A nil config uses DefaultNtfyConfig(). Message caching is
// enabled so tests can poll for alerts published before they subscribed.
func NewNtfyContainer(ctx context.Context, config *NtfyConfig) (*NtfyContainer, error) {
	if config == nil {
		defaultCfg := DefaultNtfyConfig()
		config = &defaultCfg
	}

	req := testcontainers.ContainerRequest{
		Image:        fmt.Sprintf("binwiederhier/ntfy:%s", config.ImageTag),
		ExposedPorts: []string{"80/tcp"},
		Cmd:          []string{"serve", "--cache-file=/tmp/ntfy/cache.db"},
		Tmpfs:        map[string]string{"/tmp/ntfy": "rw"},
		WaitingFor: wait.ForHTTP("/v1/health").
			WithPort("80/tcp").
			WithStartupTimeout(30 * time.Second),
	}
	if config.EnableAuth {
		req.Env = map[string]string{
			"NTFY_AUTH_FILE":           "/tmp/ntfy/auth.db",
			"NTFY_AUTH_DEFAULT_ACCESS": "deny-all",
		}
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start ntfy container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	mappedPort, err := container.MappedPort(ctx, "80")
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	return &NtfyContainer{
		container:   container,
		host:        host,
		port:        mappedPort.Int(),
		authEnabled: config.EnableAuth,
	}, nil
}

// GetHost returns the host:port the server listens on, in the form the
// notification URLs and the connectivity probe expect.
func (c *NtfyContainer) GetHost(_ context.Context) string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

func (c *NtfyContainer) baseURL() string {
	return fmt.Sprintf("http://%s", net.JoinHostPort(c.host, strconv.Itoa(c.port)))
}

// AddUser creates a regular user inside the container. With deny-all default
// access the user can do nothing until GrantAccess gives it a topic. Only
// valid on an auth-enabled container.
func (c *NtfyContainer) AddUser(ctx context.Context, username, password string) error {
	if !c.authEnabled {
		return fmt.Errorf("cannot add user: authentication is not enabled")
	}

	exitCode, output, err := c.container.Exec(ctx, []string{
		"ntfy", "user", "add", username,
	}, tcexec.WithEnv([]string{fmt.Sprintf("NTFY_PASSWORD=%s", password)}))
	if err != nil {
		return fmt.Errorf("failed to exec user add command: %w", err)
	}
	if exitCode != 0 {
		outputBytes, _ := io.ReadAll(output)
		return fmt.Errorf("ntfy user add failed with exit code %d: %s", exitCode, string(outputBytes))
	}
	return nil
}

// GrantAccess gives a user "ro", "wo", or "rw" permission on one topic.
// Only valid on an auth-enabled container.
func (c *NtfyContainer) GrantAccess(ctx context.Context, username, topic, permission string) error {
	if !c.authEnabled {
		return fmt.Errorf("cannot grant access: authentication is not enabled")
	}

	exitCode, output, err := c.container.Exec(ctx, []string{
		"ntfy", "access", username, topic, permission,
	})
	if err != nil {
		return fmt.Errorf("failed to exec access command: %w", err)
	}
	if exitCode != 0 {
		outputBytes, _ := io.ReadAll(output)
		return fmt.Errorf("ntfy access failed with exit code %d: %s", exitCode, string(outputBytes))
	}
	return nil
}

// PollMessages returns the cached messages on a topic without subscribing.
func (c *NtfyContainer) PollMessages(ctx context.Context, topic string) ([]NtfyMessage, error) {
	return c.pollTopic(ctx, topic, "", "")
}

// PollMessagesWithAuth is PollMessages with Basic Auth credentials.
func (c *NtfyContainer) PollMessagesWithAuth(ctx context.Context, topic, username, password string) ([]NtfyMessage, error) {
	return c.pollTopic(ctx, topic, username, password)
}

func (c *NtfyContainer) pollTopic(ctx context.Context, topic, username, password string) ([]NtfyMessage, error) {
	url := fmt.Sprintf("%s/%s/json?poll=1", c.baseURL(), topic)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if username != "" {
		req.SetBasicAuth(username, password)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to poll messages: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("poll request failed with status %d: %s", resp.StatusCode, string(body))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// Poll mode returns newline-delimited JSON, one message per line.
	var messages []NtfyMessage
	for line := range strings.SplitSeq(strings.TrimSpace(string(body)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var msg NtfyMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return nil, fmt.Errorf("failed to parse message JSON: %w", err)
		}
		// Open/keepalive events carry no message body.
		if msg.Message == "" && msg.ID == "" {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Terminate stops and removes the ntfy container.
func (c *NtfyContainer) Terminate(ctx context.Context) error {
	if c.container != nil {
		if err := c.container.Terminate(ctx); err != nil {
			return fmt.Errorf("failed to terminate container: %w", err)
		}
	}
	return nil
}
