package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/plantops/sitewatch/internal/logger"
	"github.com/plantops/sitewatch/internal/notification"
)

// SSE connection configuration.
const (
	maxSSEConnectionDuration = 30 * time.Minute
	rateLimitWindow          = 1 * time.Minute
	heartbeatInterval        = 30 * time.Second
	disconnectNotifyTimeout  = 100 * time.Millisecond

	// Rate limits for stream connection attempts.
	rateLimitRequestsPerWindow = 10
	rateLimitBurst             = 15
)

// alertClient represents one connected alert stream subscriber.
type alertClient struct {
	id     string
	alerts <-chan *notification.Alert
	done   chan struct{}
}

// initNotificationRoutes registers the alert stream and the notification
// server connectivity probe.
func (c *Controller) initNotificationRoutes() {
	rateLimiterConfig := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rateLimitRequestsPerWindow,
				Burst:     rateLimitBurst,
				ExpiresIn: rateLimitWindow,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Too many alert stream connection attempts, please wait before trying again",
			})
		},
	}

	c.Group.GET("/notifications/stream", c.StreamAlerts, c.authMiddleware, middleware.RateLimiterWithConfig(rateLimiterConfig))

	protected := c.Group.Group("/notifications", c.authMiddleware)
	protected.GET("/check-ntfy-server", c.CheckNtfyServer)
}

// StreamAlerts delivers maintenance alerts to the client as server-sent
// events. Every alert dispatched by the engine (or forced by an operator) is
// mirrored here regardless of the email transport's outcome.
func (c *Controller) StreamAlerts(ctx echo.Context) error {
	if !notification.IsInitialized() {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "Notification service not available",
		})
	}

	// Bound connection lifetime so abandoned clients do not pile up.
	timeoutCtx, cancel := context.WithTimeout(ctx.Request().Context(), maxSSEConnectionDuration)
	defer cancel()
	ctx.SetRequest(ctx.Request().WithContext(timeoutCtx))

	service := notification.GetService()
	client := &alertClient{
		id:     uuid.New().String(),
		alerts: service.Subscribe(),
		done:   make(chan struct{}, 1),
	}
	defer service.Unsubscribe(client.alerts)

	setSSEHeaders(ctx)
	if err := c.sendSSEMessage(ctx, "connected", map[string]string{
		"clientId": client.id,
		"message":  "Connected to alert stream",
	}); err != nil {
		return err
	}

	c.logDebugIfEnabled("alert stream client connected",
		logger.String("clientId", client.id),
		logger.String("ip", ctx.RealIP()))

	c.watchAlertDisconnect(ctx, client)
	return c.runAlertEventLoop(ctx, client)
}

// watchAlertDisconnect signals the event loop once the client goes away or
// the connection times out.
func (c *Controller) watchAlertDisconnect(ctx echo.Context, client *alertClient) {
	go func() {
		<-ctx.Request().Context().Done()
		select {
		case client.done <- struct{}{}:
		case <-time.After(disconnectNotifyTimeout):
		}
		c.logDebugIfEnabled("alert stream client disconnected",
			logger.String("clientId", client.id))
	}()
}

// runAlertEventLoop pumps alerts and heartbeats until the client disconnects.
func (c *Controller) runAlertEventLoop(ctx echo.Context, client *alertClient) error {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case alert := <-client.alerts:
			if alert == nil {
				// Channel closed, subscription torn down
				return nil
			}
			if err := c.sendSSEMessage(ctx, "alert", alert); err != nil {
				c.logErrorIfEnabled("failed to send alert SSE",
					logger.Error(err),
					logger.String("clientId", client.id))
				return err
			}

		case <-ticker.C:
			if err := c.sendSSEMessage(ctx, "heartbeat", map[string]string{
				"timestamp": time.Now().Format(time.RFC3339),
			}); err != nil {
				return err
			}

		case <-client.done:
			return nil
		}
	}
}

const (
	// ntfyProbeTimeout bounds each scheme attempt of the connectivity probe.
	ntfyProbeTimeout = 5 * time.Second
	// ntfyHealthBodyLimit caps how much of the health response body is read.
	ntfyHealthBodyLimit = 1024
)

// metadataServiceHosts are cloud instance-metadata addresses the probe
// refuses to touch: a dashboard user must not be able to aim the probe at
// them.
var metadataServiceHosts = []string{
	"169.254.169.254", // AWS/GCP/Azure IMDS
	"fd00:ec2::254",   // AWS IMDS over IPv6
}

// dnsLabelRe matches one RFC 1123 hostname label.
var dnsLabelRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?$`)

// NtfyProbeResult reports which schemes reached a healthy ntfy instance.
type NtfyProbeResult struct {
	Recommended string `json:"recommended"` // "https", "http", or "unreachable"
	HTTPS       bool   `json:"https"`
	HTTP        bool   `json:"http"`
}

// CheckNtfyServer probes an ntfy host over HTTPS and then HTTP so the
// dashboard can verify an alert destination before the operator saves it.
// GET /api/v2/notifications/check-ntfy-server?host=<hostname[:port]>
func (c *Controller) CheckNtfyServer(ctx echo.Context) error {
	host := ctx.QueryParam("host")
	if host == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "host parameter is required",
		})
	}
	if !validNtfyProbeTarget(host) {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid host parameter",
		})
	}
	return ctx.JSON(http.StatusOK, probeNtfyHost(ctx.Request().Context(), host))
}

// validNtfyProbeTarget reports whether target is a bare hostname, IP, or
// host:port that is safe to probe. URLs, paths, userinfo, out-of-range ports,
// and metadata-service addresses are all rejected.
func validNtfyProbeTarget(target string) bool {
	if target == "" || len(target) > 260 || strings.Contains(target, "://") {
		return false
	}

	host := target
	if h, port, err := net.SplitHostPort(target); err == nil {
		p, convErr := strconv.Atoi(port)
		if convErr != nil || p < 1 || p > 65535 {
			return false
		}
		host = h
	} else if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		// Brackets without a port are only legal around an IPv6 literal.
		host = host[1 : len(host)-1]
		if net.ParseIP(host) == nil {
			return false
		}
	}

	if slices.Contains(metadataServiceHosts, host) {
		return false
	}
	if net.ParseIP(host) != nil {
		return true
	}
	return validDNSName(host)
}

// validDNSName checks every dot-separated label of a hostname.
func validDNSName(name string) bool {
	for _, label := range strings.Split(name, ".") {
		if !dnsLabelRe.MatchString(label) {
			return false
		}
	}
	return true
}

// ntfyHealthOK reports whether resp is an HTTP 200 carrying the ntfy health
// document with "healthy": true. Anything else, such as an unrelated HTTP
// server answering on the probed port or an unhealthy ntfy instance, counts
// as unreachable.
func ntfyHealthOK(resp *http.Response) bool {
	if resp.StatusCode != http.StatusOK {
		return false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, ntfyHealthBodyLimit))
	if err != nil {
		return false
	}
	var doc struct {
		Healthy bool `json:"healthy"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return false
	}
	return doc.Healthy
}

// probeNtfyHost checks /v1/health on the target, HTTPS first and HTTP as the
// fallback, and recommends the first scheme that answered healthy.
func probeNtfyHost(ctx context.Context, target string) NtfyProbeResult {
	// A bare IPv6 literal needs brackets before it can go into a URL.
	if _, _, err := net.SplitHostPort(target); err != nil {
		if ip := net.ParseIP(target); ip != nil && ip.To4() == nil {
			target = "[" + target + "]"
		}
	}

	client := &http.Client{
		Timeout: ntfyProbeTimeout,
		// The health endpoint never redirects. Following one would mean
		// probing a host the operator did not name.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	result := NtfyProbeResult{Recommended: "unreachable"}
	if probeNtfyScheme(ctx, client, "https://"+target) {
		result.HTTPS = true
		result.Recommended = "https"
		return result
	}
	if probeNtfyScheme(ctx, client, "http://"+target) {
		result.HTTP = true
		result.Recommended = "http"
	}
	return result
}

func probeNtfyScheme(ctx context.Context, client *http.Client, base string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/v1/health", http.NoBody)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return ntfyHealthOK(resp)
}
