package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/padhloyaar/padhloyaar-api/internal/auth"
)

// WindowLimit builds a fixed-window limiter of max requests per window keyed by
// user id when signed in, else by IP. storage may be nil for process-local counters.
func WindowLimit(max int, window time.Duration, storage fiber.Storage) fiber.Handler {
	if max <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		Storage:    storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.Route().Path + "|" + auth.Identifier(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too_many_requests"})
		},
	})
}

// RateLimitTools limits study tool calls per minute.
func RateLimitTools(perMinute int, storage fiber.Storage) fiber.Handler {
	return WindowLimit(perMinute, time.Minute, storage)
}

// RateLimitSensitive limits billing and account endpoints per minute.
func RateLimitSensitive(perMinute int, storage fiber.Storage) fiber.Handler {
	return WindowLimit(perMinute, time.Minute, storage)
}
