package gamification

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/padhloyaar/padhloyaar-api/internal/auth"
)

// Repo is what the handler needs from storage.
type Repo interface {
	Get(ctx context.Context, userID string) (Progress, error)
	AddXP(ctx context.Context, userID string, delta int64, reason string, now time.Time) (Progress, error)
}

type Handler struct {
	Repo     Repo
	validate *validator.Validate
	now      func() time.Time
}

func NewHandler(repo Repo) *Handler {
	return &Handler{Repo: repo, validate: validator.New(), now: time.Now}
}

type activityRequest struct {
	Reason string `json:"reason" validate:"required,max=64"`
	XP     int64  `json:"xp" validate:"min=1,max=100"`
}

// GetProgress returns the caller's XP, level and streak.
func (h *Handler) GetProgress(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	if userID == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	p, err := h.Repo.Get(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load progress")
	}
	return c.JSON(p.Summarize(h.now()))
}

// RecordActivity awards XP for a client-side activity such as a timer session.
func (h *Handler) RecordActivity(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	if userID == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var body activityRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	body.Reason = strings.TrimSpace(body.Reason)
	if err := h.validate.Struct(body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "reason required and xp must be 1..100")
	}

	now := h.now()
	p, err := h.Repo.AddXP(c.UserContext(), userID, body.XP, body.Reason, now)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to record activity")
	}
	return c.JSON(p.Summarize(now))
}
