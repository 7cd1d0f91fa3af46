package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/padhloyaar/padhloyaar-api/internal/domain"
)

const (
	eventCheckoutCompleted   = "checkout.session.completed"
	eventSubscriptionCreated = "customer.subscription.created"
	eventSubscriptionUpdated = "customer.subscription.updated"
	eventSubscriptionDeleted = "customer.subscription.deleted"
	statusCanceled           = "canceled"
)

// Webhook handles POST /api/stripe/webhook.
func (h *Handler) Webhook(c *fiber.Ctx) error {
	if h.WebhookSecret == "" {
		return fiber.NewError(fiber.StatusServiceUnavailable, "billing not configured")
	}

	event, err := webhook.ConstructEventWithOptions(c.Body(), c.Get("Stripe-Signature"), h.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid signature")
	}

	ctx := c.UserContext()
	switch string(event.Type) {
	case eventCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "bad payload")
		}
		err = h.checkoutCompleted(ctx, &session)
	case eventSubscriptionCreated, eventSubscriptionUpdated, eventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "bad payload")
		}
		err = h.syncSubscription(ctx, "", &sub, string(event.Type) == eventSubscriptionDeleted)
	default:
		return c.SendString("ignored")
	}

	if err != nil {
		h.Log.Error("stripe webhook failed", zap.String("event", string(event.Type)), zap.String("event_id", event.ID), zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "webhook processing failed")
	}
	return c.SendString("ok")
}

func (h *Handler) checkoutCompleted(ctx context.Context, s *stripe.CheckoutSession) error {
	userID := s.ClientReferenceID
	if userID == "" {
		userID = s.Metadata["user_id"]
	}
	if userID == "" {
		return fmt.Errorf("checkout session %s has no user", s.ID)
	}
	if s.Customer != nil && s.Customer.ID != "" {
		if err := h.Repo.SaveCustomer(ctx, userID, s.Customer.ID); err != nil {
			return fmt.Errorf("save customer: %w", err)
		}
	}
	if s.Subscription == nil || s.Subscription.ID == "" || h.Gateway == nil {
		return nil
	}

	sub, err := h.Gateway.GetSubscription(ctx, s.Subscription.ID)
	if err != nil {
		return fmt.Errorf("fetch subscription: %w", err)
	}
	return h.syncSubscription(ctx, userID, sub, false)
}

// syncSubscription writes Stripe's view of a subscription to the user's row.
func (h *Handler) syncSubscription(ctx context.Context, userID string, sub *stripe.Subscription, deleted bool) error {
	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}
	if userID == "" {
		userID = sub.Metadata["user_id"]
	}
	if userID == "" && customerID != "" {
		var err error
		userID, err = h.Repo.UserForCustomer(ctx, customerID)
		if err != nil {
			return fmt.Errorf("lookup customer: %w", err)
		}
	}
	if userID == "" {
		h.Log.Warn("subscription for unknown customer", zap.String("subscription_id", sub.ID), zap.String("customer_id", customerID))
		return nil
	}

	priceID := ""
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		priceID = sub.Items.Data[0].Price.ID
	}

	tier := h.TierForPrice(priceID)
	if tier == domain.TierFree {
		if plan := domain.ParseTier(sub.Metadata["plan"]); plan.Paid() {
			tier = plan
		}
	}

	status := string(sub.Status)
	if deleted {
		status = statusCanceled
	}

	row := domain.Subscription{
		UserID:               userID,
		StripeCustomerID:     customerID,
		StripeSubscriptionID: sub.ID,
		PriceID:              priceID,
		Tier:                 tier,
		Status:               status,
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		row.CurrentPeriodEnd = &end
	}
	if err := h.Repo.Upsert(ctx, row); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}

	h.Log.Info("subscription synced",
		zap.String("user_id", userID),
		zap.String("tier", string(tier)),
		zap.String("status", status),
	)
	return nil
}
