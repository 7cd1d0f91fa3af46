package billing

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/padhloyaar/padhloyaar-api/internal/audit"
	"github.com/padhloyaar/padhloyaar-api/internal/auth"
	"github.com/padhloyaar/padhloyaar-api/internal/domain"
)

// Repo is the subscription persistence the handlers use.
type Repo interface {
	Get(ctx context.Context, userID string) (*domain.Subscription, error)
	SaveCustomer(ctx context.Context, userID, customerID string) error
	UserForCustomer(ctx context.Context, customerID string) (string, error)
	Upsert(ctx context.Context, sub domain.Subscription) error
}

type Handler struct {
	Repo          Repo
	Gateway       Gateway
	Prices        map[domain.Tier]string
	WebhookSecret string
	AppURL        string
	Audit         *audit.Recorder
	Log           *zap.Logger

	validate *validator.Validate
	now      func() time.Time
}

type Options struct {
	Prices        map[domain.Tier]string
	WebhookSecret string
	AppURL        string
	Audit         *audit.Recorder
	Log           *zap.Logger
}

// NewHandler wires the billing routes. A nil gateway disables checkout and portal.
func NewHandler(repo Repo, gw Gateway, opts Options) *Handler {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Repo:          repo,
		Gateway:       gw,
		Prices:        opts.Prices,
		WebhookSecret: opts.WebhookSecret,
		AppURL:        strings.TrimRight(opts.AppURL, "/"),
		Audit:         opts.Audit,
		Log:           log,
		validate:      validator.New(),
		now:           time.Now,
	}
}

// TierForPrice maps a Stripe price id back to the plan it was configured for.
func (h *Handler) TierForPrice(priceID string) domain.Tier {
	for tier, p := range h.Prices {
		if p != "" && p == priceID {
			return tier
		}
	}
	return domain.TierFree
}

type checkoutRequest struct {
	Plan string `json:"plan" validate:"required,oneof=pro team"`
}

// Checkout handles POST /api/checkout.
func (h *Handler) Checkout(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	if userID == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	if h.Gateway == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "billing not configured")
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	req.Plan = strings.ToLower(strings.TrimSpace(req.Plan))
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "plan must be pro or team")
	}

	price := h.Prices[domain.Tier(req.Plan)]
	if price == "" {
		return fiber.NewError(fiber.StatusInternalServerError, "price not configured")
	}

	ctx := c.UserContext()
	sub, err := h.Repo.Get(ctx, userID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load subscription")
	}

	customerID := ""
	if sub != nil {
		customerID = sub.StripeCustomerID
	}
	if customerID == "" {
		customerID, err = h.Gateway.CreateCustomer(ctx, userID, auth.Email(c))
		if err != nil {
			h.Log.Error("stripe customer create failed", zap.String("user_id", userID), zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "checkout failed")
		}
		if err := h.Repo.SaveCustomer(ctx, userID, customerID); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "checkout failed")
		}
	}

	session, err := h.Gateway.CreateCheckoutSession(ctx, CheckoutParams{
		UserID:     userID,
		CustomerID: customerID,
		PriceID:    price,
		Plan:       req.Plan,
		SuccessURL: h.AppURL + "/billing?status=success&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  h.AppURL + "/pricing?status=cancelled",
	})
	if err != nil {
		h.Log.Error("stripe checkout failed", zap.String("user_id", userID), zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "checkout failed")
	}

	h.Audit.Record(audit.FromRequest(c, audit.ActionCheckout, "subscription", session.ID, fiber.Map{"plan": req.Plan}))

	return c.JSON(fiber.Map{"url": session.URL, "session_id": session.ID})
}

// Portal handles POST /api/portal.
func (h *Handler) Portal(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	if userID == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	if h.Gateway == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "billing not configured")
	}

	sub, err := h.Repo.Get(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load subscription")
	}
	if sub == nil || sub.StripeCustomerID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "no billing account")
	}

	url, err := h.Gateway.CreatePortalSession(c.UserContext(), sub.StripeCustomerID, h.AppURL+"/settings")
	if err != nil {
		h.Log.Error("stripe portal failed", zap.String("user_id", userID), zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "portal failed")
	}

	h.Audit.Record(audit.FromRequest(c, audit.ActionPortal, "subscription", sub.StripeSubscriptionID, nil))

	return c.JSON(fiber.Map{"url": url})
}
