package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/samirrijal/livemap/internal/adapters/dispatch"
	"github.com/samirrijal/livemap/internal/adapters/feed"
	"github.com/samirrijal/livemap/internal/adapters/http"
	natsadapter "github.com/samirrijal/livemap/internal/adapters/nats"
	"github.com/samirrijal/livemap/internal/adapters/postgres"
	"github.com/samirrijal/livemap/internal/adapters/render"
	"github.com/samirrijal/livemap/internal/adapters/valkey"
	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/ports"
	"github.com/samirrijal/livemap/internal/core/usecases"
	"github.com/samirrijal/livemap/internal/pkg/config"
	"github.com/samirrijal/livemap/internal/pkg/logging"
	"github.com/samirrijal/livemap/internal/pkg/telemetry"
	"github.com/samirrijal/livemap/internal/pkg/transitfmt"
)

func main() {
	cfg, err := config.Load("livemap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup(cfg.Telemetry.ServiceName, cfg.Logging.Level, cfg.Logging.Format)

	if err := transitfmt.SetTimezone(cfg.Map.Timezone); err != nil {
		log.Fatalf("timezone: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
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

	mapSvc, err := usecases.NewMapService(cfg.Map.RouteType)
	if err != nil {
		log.Fatalf("map: %v", err)
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), postgres.Options{MaxConns: cfg.Database.MaxConns})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolStats(ctx, 15*time.Second)

	// Cache
	var tripCache ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr, "livemap")
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		tripCache = cache
	}

	// NATS
	dispatchers := dispatch.Multi{dispatch.Log{Logger: logger}}
	publisher, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer publisher.Close()
		dispatchers = append(dispatchers, publisher)
	}

	// Raw NATS connection for readiness checks
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats health conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
	}

	// Refreshers
	hub := http.NewHub()
	source := feed.NewSource(cfg.Layers.FetchTimeout, "")
	refreshers := make(map[domain.LayerKind]*usecases.Refresher, len(domain.Layers))
	for _, layer := range domain.Layers {
		renderer, err := layerRenderer(layer)
		if err != nil {
			log.Fatalf("renderer: %v", err)
		}
		lc := cfg.Layers.Layer(layer)
		refreshers[layer] = usecases.NewRefresher(usecases.RefresherConfig{
			Layer:    layer,
			URL:      cfg.LayerURL(layer, usecases.StaticFile(layer)),
			Interval: lc.Interval,
			Bounds:   usecases.MapBounds,
		}, source, renderer, dispatchers, hub)
	}

	// Repos
	predictionRepo := postgres.NewPredictionRepo(db)
	alertRepo := postgres.NewAlertRepo(db)
	vehicleRepo := postgres.NewVehicleRepo(db)

	// Use cases
	tripSvc := usecases.NewTripService(predictionRepo, alertRepo, tripCache)
	vehicleSvc := usecases.NewVehicleFeedService(vehicleRepo, mapSvc.RouteTypeID())

	// Event subscriptions
	if subscriber, err := natsadapter.NewSubscriber(cfg.NATS.URL); err != nil {
		slog.Warn("nats subscriber unavailable", "error", err)
	} else {
		defer subscriber.Close()
		subscribe(ctx, subscriber, cfg, refreshers, cache)
	}

	deps := &http.Dependencies{
		Map:        mapSvc,
		Refreshers: refreshers,
		Trips:      tripSvc,
		Vehicles:   vehicleSvc,
		Hub:        hub,
		StaticDir:  cfg.Map.StaticDir,
		AssetsDir:  cfg.Map.AssetsDir,
		NATS:       natsConn,
		DB:         db,
		Cache:      cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "livemap API",
		ErrorHandler: http.ErrorHandler,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, If-None-Match",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "route_type", mapSvc.RouteType())
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	// The vehicles layer may poll this server's own feed, so refreshers
	// start after the listener.
	var wg sync.WaitGroup
	for _, r := range refreshers {
		wg.Add(1)
		go func(r *usecases.Refresher) {
			defer wg.Done()
			r.Run(ctx)
		}(r)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	cancel()
	wg.Wait()

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func layerRenderer(layer domain.LayerKind) (ports.MarkerRenderer, error) {
	if layer == domain.LayerVehicles {
		return render.NewVehicleRenderer(), nil
	}
	return render.NewStaticRenderer(layer)
}

// subscribe refreshes layers as soon as their producers announce new data,
// ahead of the next tick.
func subscribe(ctx context.Context, sub *natsadapter.Subscriber, cfg *config.Config, refreshers map[domain.LayerKind]*usecases.Refresher, cache *valkey.Cache) {
	host, _ := os.Hostname()
	durable := func(name string) string {
		return strings.NewReplacer(".", "-", "*", "-", ">", "-").Replace("livemap-api-" + name + "-" + host)
	}

	err := sub.SubscribeRealtimeRefreshed(ctx, durable("realtime"), func(ctx context.Context, ev natsadapter.RealtimeRefreshed) error {
		if cache != nil {
			for _, prefix := range []string{"predictions:", "alerts:"} {
				if _, err := cache.DeletePrefix(ctx, prefix); err != nil {
					slog.Warn("cache invalidation failed", "prefix", prefix, "error", err)
				}
			}
		}
		if _, ok := ev.Counts["vehicles"]; !ok {
			return nil
		}
		if err := refreshers[domain.LayerVehicles].Refresh(ctx); err != nil {
			slog.Warn("vehicles refresh after poll failed", "error", err)
		}
		return nil
	})
	if err != nil {
		slog.Warn("subscribe realtime refreshed", "error", err)
	}

	err = sub.SubscribeStaticExported(ctx, durable("static"), func(ctx context.Context, ev natsadapter.StaticExported) error {
		if !strings.EqualFold(ev.RouteType, cfg.Map.RouteType) {
			return nil
		}
		for name := range ev.Features {
			layer, err := domain.ParseLayer(name)
			if err != nil {
				continue
			}
			if r, ok := refreshers[layer]; ok {
				if err := r.Refresh(ctx); err != nil {
					slog.Warn("refresh after export failed", "layer", name, "error", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		slog.Warn("subscribe static exported", "error", err)
	}
}
