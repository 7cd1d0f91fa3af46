package router

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/padhloyaar/padhloyaar-api/internal/logging"
)

// CorsMiddleware allows the configured origin (defaults to *). With an explicit
// origin list credentials are allowed so the anonymous usage cookie travels.
func CorsMiddleware(origin string) fiber.Handler {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		origin = "*"
	}

	return cors.New(cors.Config{
		AllowOrigins:     origin,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Admin-Key, " + logging.RequestIDHeader,
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		ExposeHeaders:    logging.RequestIDHeader + ", Content-Disposition",
		AllowCredentials: origin != "*",
	})
}
