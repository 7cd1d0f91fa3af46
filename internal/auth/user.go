package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	localUserID    = "user_id"
	localEmail     = "email"
	localSkipTouch = "auth_skip_touch"
)

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c *fiber.Ctx) string {
	if v := c.Locals(localUserID); v != nil {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func Email(c *fiber.Ctx) string {
	if s, ok := c.Locals(localEmail).(string); ok {
		return s
	}
	return ""
}

// Identifier keys per-caller counters: the user id when signed in, else the client IP.
func Identifier(c *fiber.Ctx) string {
	if uid := UserID(c); uid != "" {
		return uid
	}
	return "ip:" + c.IP()
}

// SetUser marks the request as authenticated.
func SetUser(c *fiber.Ctx, userID, email string) {
	c.Locals(localUserID, userID)
	c.Locals(localEmail, email)
}

// WithoutTouch marks the request so a successful authentication does not
// upsert the caller's profile. Routes that delete the profile use it.
func WithoutTouch() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(localSkipTouch, true)
		return c.Next()
	}
}

func skipTouch(c *fiber.Ctx) bool {
	skip, _ := c.Locals(localSkipTouch).(bool)
	return skip
}
