package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/livemap/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(recover.New())

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 600 requests per minute per IP. A map page polls
	// /vehicles every 15s and opens trip tables on demand.
	app.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/ws"
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness, no timeout
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// Endpoints used by the map page
	app.Get("/value", ValueHandler(deps))
	app.Get("/vehicles", VehiclesHandler(deps))
	app.Get("/static/geojsons/:routeType/:file", StaticCollectionHandler(deps))
	if deps.AssetsDir != "" {
		app.Static("/static", deps.AssetsDir)
	}

	api := app.Group("/api")
	api.Get("/prediction", timeout.NewWithContext(PredictionHandler(deps), 15*time.Second))
	api.Get("/prediction/table", timeout.NewWithContext(PredictionTableHandler(deps), 15*time.Second))
	api.Get("/alert", timeout.NewWithContext(AlertHandler(deps), 15*time.Second))
	api.Get("/alert/table", timeout.NewWithContext(AlertTableHandler(deps), 15*time.Second))

	// REST API v1
	v1 := app.Group("/v1")
	v1.Get("/map", MapConfigHandler(deps))
	v1.Get("/layers", ListLayersHandler(deps))
	v1.Get("/layers/:layer/markers", LayerMarkersHandler(deps))
	v1.Post("/layers/:layer/refresh", timeout.NewWithContext(RefreshLayerHandler(deps), 30*time.Second))
	v1.Get("/feeds/vehicles", timeout.NewWithContext(FeedVehiclesHandler(deps), 15*time.Second))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	if deps.Hub != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws", websocket.New(WebSocketHandler(deps.Hub)))
	}
}
