package admin

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/padhloyaar/padhloyaar-api/internal/quota"
)

// UsageCounter reports usage grouped by tool.
type UsageCounter interface {
	CountByToolSince(ctx context.Context, since time.Time) (map[string]int64, error)
}

type Handler struct {
	DB    *sql.DB
	Usage UsageCounter
	now   func() time.Time
}

func NewHandler(db *sql.DB, usage UsageCounter) *Handler {
	return &Handler{DB: db, Usage: usage, now: time.Now}
}

type latestProfile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type StatsResponse struct {
	ProfilesTotal       int64            `json:"profiles_total"`
	ActiveSubscriptions map[string]int64 `json:"active_subscriptions"`
	UsageToday          map[string]int64 `json:"usage_today"`
	LatestProfiles      []latestProfile  `json:"latest_profiles"`
}

// Stats handles GET /api/admin/stats.
func (h *Handler) Stats(c *fiber.Ctx) error {
	ctx := c.UserContext()
	now := h.now()
	resp := StatsResponse{
		ActiveSubscriptions: map[string]int64{},
		LatestProfiles:      []latestProfile{},
	}

	if err := h.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&resp.ProfilesTotal); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed profiles_total")
	}

	// active subscriptions by tier
	{
		rows, err := h.DB.QueryContext(ctx, `
			SELECT tier, COUNT(*)
			FROM subscriptions
			WHERE status IN ('active', 'trialing') AND current_period_end > $1
			GROUP BY tier`, now)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed active_subscriptions")
		}
		defer rows.Close()

		for rows.Next() {
			var tier string
			var n int64
			if err := rows.Scan(&tier, &n); err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "failed scan active_subscriptions")
			}
			resp.ActiveSubscriptions[tier] = n
		}
		if err := rows.Err(); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed active_subscriptions rows")
		}
	}

	usage, err := h.Usage.CountByToolSince(ctx, quota.DayStart(now))
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed usage_today")
	}
	resp.UsageToday = usage

	// latest profiles
	{
		rows, err := h.DB.QueryContext(ctx, `
			SELECT id::text, COALESCE(email, ''), created_at
			FROM profiles
			ORDER BY created_at DESC
			LIMIT 20`)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed latest_profiles")
		}
		defer rows.Close()

		for rows.Next() {
			var p latestProfile
			if err := rows.Scan(&p.ID, &p.Email, &p.CreatedAt); err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "failed scan latest_profiles")
			}
			resp.LatestProfiles = append(resp.LatestProfiles, p)
		}
		if err := rows.Err(); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed latest_profiles rows")
		}
	}

	return c.JSON(resp)
}
