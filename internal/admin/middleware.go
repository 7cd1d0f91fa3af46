package admin

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// RequireAdminKey checks X-Admin-Key against a bcrypt hash of the admin key.
func RequireAdminKey(hash string) fiber.Handler {
	hash = strings.TrimSpace(hash)
	// An unset hash hard-fails instead of leaving the admin API open.
	if hash == "" {
		return func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusInternalServerError, "admin key not configured")
		}
	}

	return func(c *fiber.Ctx) error {
		got := strings.TrimSpace(c.Get("X-Admin-Key"))
		if got == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(got)) != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid admin key")
		}
		return c.Next()
	}
}
