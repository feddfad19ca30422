// Package telemetry wires optional Sentry error reporting. It stays inert
// unless a DSN is configured, so self-hosted installs report nothing.
package telemetry

import (
	"time"

	sentry "github.com/getsentry/sentry-go"

	"github.com/plantops/sitewatch/internal/errors"
	"github.com/plantops/sitewatch/internal/logger"
)

// flushTimeout bounds the final event flush during shutdown.
const flushTimeout = 2 * time.Second

// Settings holds the telemetry configuration subset.
type Settings struct {
	Enabled bool
	DSN     string
}

// Init configures Sentry and registers the errors-package reporter.
// Returns a shutdown func that flushes pending events.
func Init(settings Settings, version string, log logger.Logger) (func(), error) {
	if !settings.Enabled || settings.DSN == "" {
		return func() {}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:     settings.DSN,
		Release: "sitewatch@" + version,
	})
	if err != nil {
		return nil, errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	errors.SetReporter(func(e *errors.EnhancedError) {
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("component", e.GetComponent())
			scope.SetTag("category", string(e.GetCategory()))
			sentry.CaptureException(e)
		})
	})

	log.Info("telemetry enabled")

	return func() {
		errors.SetReporter(nil)
		sentry.Flush(flushTimeout)
	}, nil
}
