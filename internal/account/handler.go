package account

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/padhloyaar/padhloyaar-api/internal/audit"
	"github.com/padhloyaar/padhloyaar-api/internal/auth"
	"github.com/padhloyaar/padhloyaar-api/internal/domain"
	"github.com/padhloyaar/padhloyaar-api/internal/gamification"
	"github.com/padhloyaar/padhloyaar-api/internal/history"
	"github.com/padhloyaar/padhloyaar-api/internal/quota"
)

// DataStore is the account-owned persistence.
type DataStore interface {
	Profile(ctx context.Context, userID string) (*domain.Profile, error)
	UsageLogs(ctx context.Context, userID string) ([]domain.UsageLog, error)
	History(ctx context.Context, userID string) ([]history.Entry, error)
	DeleteUserData(ctx context.Context, userID string) (map[string]int64, error)
}

type SubscriptionReader interface {
	Get(ctx context.Context, userID string) (*domain.Subscription, error)
}

type ProgressReader interface {
	Get(ctx context.Context, userID string) (gamification.Progress, error)
}

type SubscriptionCanceler interface {
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

type UserDeleter interface {
	DeleteUser(ctx context.Context, userID string) error
}

// ReportFiles lets account deletion remove rendered PDFs from disk.
type ReportFiles interface {
	FilesForUser(ctx context.Context, userID string) ([]string, error)
	RemoveFiles(paths []string)
}

type Deps struct {
	Data          DataStore
	Subscriptions SubscriptionReader
	Progress      ProgressReader
	Canceler      SubscriptionCanceler
	AuthAdmin     UserDeleter
	Reports       ReportFiles
	Tiers         quota.TierResolver
	Limiter       *quota.Limiter
	Audit         *audit.Recorder
	Log           *zap.Logger
}

type Handler struct {
	Deps
	now func() time.Time
}

func NewHandler(d Deps) *Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Handler{Deps: d, now: time.Now}
}

// Export is the document returned by GET /api/account/export.
type Export struct {
	ExportedAt   time.Time              `json:"exported_at"`
	Profile      *domain.Profile        `json:"profile"`
	Subscription *domain.Subscription   `json:"subscription"`
	Usage        []domain.UsageLog      `json:"usage_logs"`
	History      []history.Entry        `json:"history"`
	Progress     *gamification.Progress `json:"progress"`
}

// Me handles GET /api/me.
func (h *Handler) Me(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	if userID == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	ctx := c.UserContext()
	tier := quota.ResolveTier(ctx, h.Tiers, userID, h.now(), h.Log)
	resp := fiber.Map{
		"id":    userID,
		"email": auth.Email(c),
		"tier":  tier,
	}
	if h.Limiter != nil {
		resp["usage"] = h.Limiter.Status(ctx, userID, tier)
	}
	return c.JSON(resp)
}

// Export handles GET /api/account/export. Any failed fetch fails the export.
func (h *Handler) Export(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	if userID == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	out := Export{ExportedAt: h.now().UTC()}
	g, ctx := errgroup.WithContext(c.UserContext())

	g.Go(func() error {
		p, err := h.Data.Profile(ctx, userID)
		out.Profile = p
		return err
	})
	g.Go(func() error {
		if h.Subscriptions == nil {
			return nil
		}
		s, err := h.Subscriptions.Get(ctx, userID)
		out.Subscription = s
		return err
	})
	g.Go(func() error {
		logs, err := h.Data.UsageLogs(ctx, userID)
		out.Usage = logs
		return err
	})
	g.Go(func() error {
		entries, err := h.Data.History(ctx, userID)
		out.History = entries
		return err
	})
	g.Go(func() error {
		if h.Progress == nil {
			return nil
		}
		p, err := h.Progress.Get(ctx, userID)
		out.Progress = &p
		return err
	})

	if err := g.Wait(); err != nil {
		h.Log.Error("account export failed", zap.String("user_id", userID), zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "export failed")
	}

	h.Audit.Record(audit.FromRequest(c, audit.ActionAccountExport, "account", userID, nil))

	c.Set(fiber.HeaderContentDisposition, `attachment; filename="padhloyaar-export.json"`)
	return c.JSON(out)
}

// Delete handles DELETE /api/account.
func (h *Handler) Delete(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	if userID == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	ctx := c.UserContext()

	subscriptionCanceled := false
	if h.Subscriptions != nil && h.Canceler != nil {
		sub, err := h.Subscriptions.Get(ctx, userID)
		switch {
		case err != nil:
			h.Log.Warn("subscription lookup failed during account deletion", zap.String("user_id", userID), zap.Error(err))
		case sub != nil && sub.StripeSubscriptionID != "" && sub.Status != "canceled":
			if err := h.Canceler.CancelSubscription(ctx, sub.StripeSubscriptionID); err != nil {
				h.Log.Warn("stripe cancel failed during account deletion", zap.String("user_id", userID), zap.Error(err))
			} else {
				subscriptionCanceled = true
			}
		}
	}

	var files []string
	if h.Reports != nil {
		var err error
		if files, err = h.Reports.FilesForUser(ctx, userID); err != nil {
			h.Log.Warn("report lookup failed during account deletion", zap.String("user_id", userID), zap.Error(err))
		}
	}

	deleted, err := h.Data.DeleteUserData(ctx, userID)
	if err != nil {
		h.Log.Error("account data deletion failed", zap.String("user_id", userID), zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to delete account")
	}
	if h.Reports != nil {
		h.Reports.RemoveFiles(files)
	}

	authDeleted := false
	if h.AuthAdmin != nil {
		if err := h.AuthAdmin.DeleteUser(ctx, userID); err != nil {
			h.Log.Warn("supabase auth user deletion failed", zap.String("user_id", userID), zap.Error(err))
		} else {
			authDeleted = true
		}
	}

	h.Audit.Record(audit.FromRequest(c, audit.ActionAccountDelete, "account", userID, fiber.Map{
		"deleted":               deleted,
		"subscription_canceled": subscriptionCanceled,
		"auth_user_deleted":     authDeleted,
	}))

	return c.JSON(fiber.Map{
		"ok":                    true,
		"deleted":               deleted,
		"subscription_canceled": subscriptionCanceled,
		"auth_user_deleted":     authDeleted,
	})
}
