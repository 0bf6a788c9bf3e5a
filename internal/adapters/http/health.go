package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/livemap/internal/core/domain"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		sessions := 0
		if deps.Hub != nil {
			sessions = deps.Hub.Sessions()
		}
		return c.JSON(fiber.Map{
			"status":     "healthy",
			"uptime":     time.Since(startedAt).String(),
			"version":    Version,
			"route_type": deps.Map.RouteType(),
			"sessions":   sessions,
		})
	}
}

// ReadyHandler checks DB, NATS and cache connectivity, and that every
// layer has completed its first refresh.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string)
		allOK := true

		// Database
		if deps.DB != nil {
			if err := deps.DB.Ping(ctx); err != nil {
				checks["database"] = "error: " + err.Error()
				allOK = false
			} else {
				checks["database"] = "ok"
			}
		} else {
			checks["database"] = "not configured"
		}

		// NATS
		if deps.NATS != nil {
			if deps.NATS.IsConnected() {
				checks["nats"] = "ok"
			} else {
				checks["nats"] = "disconnected"
				allOK = false
			}
		} else {
			checks["nats"] = "not configured"
		}

		// Valkey cache
		if deps.Cache != nil {
			if err := deps.Cache.Ping(ctx); err != nil {
				checks["cache"] = "error: " + err.Error()
				allOK = false
			} else {
				checks["cache"] = "ok"
			}
		} else {
			checks["cache"] = "not configured"
		}

		// Layers: a failing source keeps the last markers, so only a layer
		// that never refreshed successfully is not ready.
		for _, layer := range domain.Layers {
			r, ok := deps.refresher(layer)
			if !ok {
				continue
			}
			st := r.Status()
			key := "layer." + string(layer)
			switch {
			case st.Successes == 0:
				checks[key] = "pending"
				if st.LastError != "" {
					checks[key] += ": " + st.LastError
				}
				allOK = false
			case st.LastError != "":
				checks[key] = "stale: " + st.LastError
			default:
				checks[key] = "ok"
			}
		}

		status := "ready"
		code := fiber.StatusOK
		if !allOK {
			status = "not ready"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
