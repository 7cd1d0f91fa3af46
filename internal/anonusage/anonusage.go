// Package anonusage counts tool runs by signed-out visitors and decides when
// to ask them to log in. The state travels in a cookie, one count per UTC day.
package anonusage

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	CookieName = "pl_anon_usage"
	// PromptAfter is the count at which the client should show a login prompt.
	PromptAfter = 5

	dateLayout = "2006-01-02"
)

type Counter struct {
	Count         int    `json:"count"`
	LastResetDate string `json:"last_reset_date"`
}

func today(now time.Time) string {
	return now.UTC().Format(dateLayout)
}

// Normalize resets the counter when its date is not today.
func (c Counter) Normalize(now time.Time) Counter {
	if c.LastResetDate != today(now) {
		return Counter{Count: 0, LastResetDate: today(now)}
	}
	return c
}

// Increment records one tool run.
func (c Counter) Increment(now time.Time) Counter {
	c = c.Normalize(now)
	c.Count++
	return c
}

func (c Counter) ShouldPromptLogin() bool {
	return c.Count >= PromptAfter
}

// Summary is attached to tool responses for anonymous callers.
type Summary struct {
	Count       int  `json:"count"`
	Limit       int  `json:"limit"`
	LoginPrompt bool `json:"login_prompt"`
}

func (c Counter) Summary() Summary {
	return Summary{Count: c.Count, Limit: PromptAfter, LoginPrompt: c.ShouldPromptLogin()}
}

// Read loads the counter from the request cookie, normalized to today.
// A missing or malformed cookie yields a fresh counter.
func Read(c *fiber.Ctx, now time.Time) Counter {
	var ctr Counter
	if raw := c.Cookies(CookieName); raw != "" {
		if err := decode(raw, &ctr); err != nil {
			ctr = Counter{}
		}
	}
	return ctr.Normalize(now)
}

// Write stores the counter in the response cookie.
func Write(c *fiber.Ctx, ctr Counter, now time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    Encode(ctr),
		Path:     "/",
		Expires:  now.Add(365 * 24 * time.Hour),
		HTTPOnly: false,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// Track increments the caller's counter and writes it back.
func Track(c *fiber.Ctx, now time.Time) Counter {
	ctr := Read(c, now).Increment(now)
	Write(c, ctr, now)
	return ctr
}

// Encode renders the counter as a cookie-safe value.
func Encode(ctr Counter) string {
	b, _ := json.Marshal(ctr)
	return base64.RawURLEncoding.EncodeToString(b)
}

func decode(raw string, ctr *Counter) error {
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, ctr)
}
