package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/livemap/internal/adapters/gtfsrt"
	natsadapter "github.com/samirrijal/livemap/internal/adapters/nats"
	"github.com/samirrijal/livemap/internal/adapters/postgres"
	"github.com/samirrijal/livemap/internal/core/ports"
	"github.com/samirrijal/livemap/internal/core/usecases"
	"github.com/samirrijal/livemap/internal/pkg/config"
	"github.com/samirrijal/livemap/internal/pkg/logging"
	"github.com/samirrijal/livemap/internal/pkg/metrics"
	"github.com/samirrijal/livemap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("livemap-realtime")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, telemetry.TracerOptions{
			ServiceName: cfg.Telemetry.ServiceName,
			Endpoint:    cfg.Telemetry.TempoAddr,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), postgres.Options{MaxConns: 4})
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	go db.ReportPoolStats(ctx, 15*time.Second)

	// NATS
	var publisher ports.EventPublisher
	if nc, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, refreshes will not be announced", "error", err)
	} else {
		defer nc.Close()
		publisher = nc
	}

	realtimeSvc := usecases.NewRealtimeService(
		postgres.NewPredictionRepo(db),
		postgres.NewVehicleRepo(db),
		postgres.NewAlertRepo(db),
		publisher,
	)
	poller := gtfsrt.NewPoller(gtfsrt.NewClient(cfg.Realtime.Timeout), gtfsrt.Feeds{
		TripUpdates:      cfg.Realtime.TripUpdatesURL,
		VehiclePositions: cfg.Realtime.VehiclePositionsURL,
		Alerts:           cfg.Realtime.AlertsURL,
	}, realtimeSvc, cfg.Realtime.MaxConcurrency)

	// Metrics
	app := fiber.New(fiber.Config{DisableStartupMessage: true, AppName: "livemap realtime"})
	app.Get("/metrics", metrics.Handler())
	app.Get("/v1/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		if err := app.Listen(addr); err != nil {
			slog.Error("metrics listener stopped", "error", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		poller.Run(ctx, cfg.Realtime.Interval)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down realtime poller", "signal", sig.String())
	cancel()
	<-done
	_ = app.Shutdown()
}
