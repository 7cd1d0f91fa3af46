package quota

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/padhloyaar/padhloyaar-api/internal/auth"
	"github.com/padhloyaar/padhloyaar-api/internal/domain"
)

// TierResolver looks up the tier of a signed-in user.
type TierResolver interface {
	TierFor(ctx context.Context, userID string, now time.Time) (domain.Tier, error)
}

// ResolveTier returns anonymous for callers without a user id. A lookup failure
// degrades to free.
func ResolveTier(ctx context.Context, r TierResolver, userID string, now time.Time, log *zap.Logger) domain.Tier {
	if userID == "" {
		return domain.TierAnonymous
	}
	if r == nil {
		return domain.TierFree
	}
	tier, err := r.TierFor(ctx, userID, now)
	if err != nil {
		if log != nil {
			log.Warn("tier lookup failed, using free", zap.String("user_id", userID), zap.Error(err))
		}
		return domain.TierFree
	}
	return tier
}

// Handler serves GET /api/usage.
type Handler struct {
	Limiter *Limiter
	Tiers   TierResolver
}

func NewHandler(l *Limiter, tiers TierResolver) *Handler {
	return &Handler{Limiter: l, Tiers: tiers}
}

func (h *Handler) Usage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	tier := ResolveTier(ctx, h.Tiers, auth.UserID(c), h.Limiter.now(), h.Limiter.log)
	return c.JSON(h.Limiter.Status(ctx, auth.Identifier(c), tier))
}
