package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Handlers that set their own header win.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"

		case path == "/metrics", path == "/vehicles", path == "/value":
			ttl = "no-cache"

		case strings.HasPrefix(path, "/static/geojsons/"):
			// Static layers are re-exported nightly and polled hourly.
			ttl = "public, max-age=3600"

		case path == "/v1/map":
			ttl = "public, max-age=3600"

		case strings.HasPrefix(path, "/api/"):
			// Trip details follow the 15s realtime poll.
			ttl = "private, max-age=15"

		case strings.HasPrefix(path, "/v1/layers"), strings.HasPrefix(path, "/v1/feeds"):
			ttl = "no-cache"

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=60"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}
