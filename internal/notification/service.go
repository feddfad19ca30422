// Package notification delivers maintenance alerts through shoutrrr
// transports (smtp, ntfy, telegram, ...). The maintenance engine decides
// whether and when to notify; this package renders and transmits.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/plantops/sitewatch/internal/errors"
	"github.com/plantops/sitewatch/internal/logger"
)

// defaultSendTimeout bounds delivery when the config carries no timeout.
const defaultSendTimeout = 10 * time.Second

// ServiceConfig configures the notification service.
type ServiceConfig struct {
	// URLs are shoutrrr service URLs; one message goes to each.
	URLs []string
	// Timeout bounds a single delivery round.
	Timeout time.Duration
	Log     logger.Logger
}

// Service sends rendered notifications to the configured transports and
// broadcasts each alert to in-process subscribers (the SSE stream).
type Service struct {
	sender    *router.ServiceRouter
	urls      []string
	timeout   time.Duration
	log       logger.Logger
	broadcast *broadcaster
}

// NewService creates a notification service. With no URLs configured the
// service is inert and every send fails, which the dispatcher treats as a
// retryable delivery failure.
func NewService(config *ServiceConfig) *Service {
	if config == nil {
		config = &ServiceConfig{}
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	svc := &Service{
		urls:      config.URLs,
		timeout:   timeout,
		log:       config.Log,
		broadcast: newBroadcaster(),
	}
	if svc.log == nil {
		svc.log = logger.Default()
	}

	if len(config.URLs) > 0 {
		sender, err := shoutrrr.CreateSender(config.URLs...)
		if err != nil {
			svc.log.Error("failed to create notification sender", logger.Error(err))
		} else {
			svc.sender = sender
		}
	}
	return svc
}

// Send delivers title/message to every configured transport. Returns an
// error if any transport fails; the caller decides retry semantics.
func (s *Service) Send(ctx context.Context, title, message string) error {
	if s.sender == nil {
		return errors.Newf("no notification transports configured").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	done := make(chan []error, 1)
	go func() {
		done <- s.sender.Send(message, &types.Params{"title": title})
	}()

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	select {
	case <-sendCtx.Done():
		return errors.New(fmt.Errorf("notification send timed out: %w", sendCtx.Err())).
			Component("notification").
			Category(errors.CategoryNetwork).
			Build()
	case errs := <-done:
		var failed int
		for _, err := range errs {
			if err != nil {
				failed++
				s.log.Warn("notification transport failed", logger.Error(err))
			}
		}
		if failed > 0 {
			return errors.Newf("%d of %d notification transports failed", failed, len(s.urls)).
				Component("notification").
				Category(errors.CategoryNotification).
				Build()
		}
		return nil
	}
}

// SendMaintenanceAlert renders the maintenance alert templates and sends the
// result. The plain-text body is derived from the HTML template so email and
// push transports share one source of truth. The alert is also broadcast to
// in-process subscribers; a transport failure does not suppress the broadcast
// because SSE dashboards should still see the alert.
func (s *Service) SendMaintenanceAlert(ctx context.Context, data *TemplateData) error {
	title, err := RenderTemplate("alert-title", DefaultAlertTitleTemplate, data)
	if err != nil {
		return err
	}
	body, err := RenderAlertBody(data)
	if err != nil {
		return err
	}

	s.broadcastAlert(data)
	return s.Send(ctx, title, body)
}
