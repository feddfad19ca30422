package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	api "github.com/plantops/sitewatch/internal/api/v2"
	"github.com/plantops/sitewatch/internal/conf"
	"github.com/plantops/sitewatch/internal/datastore"
	"github.com/plantops/sitewatch/internal/datastore/repository"
	"github.com/plantops/sitewatch/internal/ingest"
	"github.com/plantops/sitewatch/internal/logger"
	"github.com/plantops/sitewatch/internal/maintenance"
	"github.com/plantops/sitewatch/internal/notification"
	"github.com/plantops/sitewatch/internal/telemetry"
)

// shutdownTimeout bounds graceful HTTP server shutdown.
const shutdownTimeout = 10 * time.Second

func serveCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the SiteWatch server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	settings, err := conf.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log := newLogger(&settings.Main)

	telemetryShutdown, err := telemetry.Init(telemetry.Settings{
		Enabled: settings.Sentry.Enabled,
		DSN:     settings.Sentry.DSN,
	}, version, log)
	if err != nil {
		return err
	}
	defer telemetryShutdown()

	db, err := datastore.Open(&settings.Database)
	if err != nil {
		return err
	}
	if err := datastore.Migrate(db); err != nil {
		return err
	}

	equipmentRepo := repository.NewEquipmentRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)

	notification.Initialize(&notification.ServiceConfig{
		URLs:    settings.Notification.URLs,
		Timeout: settings.Notification.Timeout.Std(),
		Log:     log.With(logger.String("component", "notification")),
	})

	bus := maintenance.NewHoursEventBus()
	engine := maintenance.Initialize(scheduleRepo, equipmentRepo, bus,
		log.With(logger.String("component", "maintenance")))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ingestClient *ingest.Client
	if settings.Ingest.Enabled {
		ingestClient = ingest.NewClient(&settings.Ingest, equipmentRepo,
			log.With(logger.String("component", "ingest")))
		if err := ingestClient.Start(ctx); err != nil {
			// Broker may come up later; auto-reconnect keeps trying.
			log.Error("mqtt ingest connect failed, will keep retrying", logger.Error(err))
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	opts := &api.Options{}
	if ingestClient != nil {
		opts.Tracker = ingestClient.Tracker()
	}
	api.New(e, settings, equipmentRepo, scheduleRepo, engine,
		log.With(logger.String("component", "api")), opts)

	addr := fmt.Sprintf(":%d", settings.WebServer.Port)
	serverErr := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()
	log.Info("sitewatch started",
		logger.String("addr", addr),
		logger.String("version", version))

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serverErr:
		log.Error("http server failed", logger.Error(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", logger.Error(err))
	}

	if ingestClient != nil {
		ingestClient.Stop()
	}
	engine.Stop()
	bus.Stop()

	log.Info("sitewatch stopped")
	return nil
}

// newLogger builds the process logger from main settings.
func newLogger(settings *conf.MainSettings) logger.Logger {
	level := logger.LogLevelInfo
	switch settings.LogLevel {
	case "debug":
		level = logger.LogLevelDebug
	case "warn":
		level = logger.LogLevelWarn
	case "error":
		level = logger.LogLevelError
	}
	return logger.NewSlogLogger(os.Stderr, level, &logger.Options{JSON: settings.LogJSON})
}
