package billing

import (
	"context"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// CheckoutParams describes a subscription checkout for one user.
type CheckoutParams struct {
	UserID     string
	CustomerID string
	PriceID    string
	Plan       string
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// Gateway is the subset of Stripe the service calls.
type Gateway interface {
	CreateCustomer(ctx context.Context, userID, email string) (string, error)
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

// StripeGateway talks to the Stripe API.
type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api}
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	if email != "" {
		params.Email = stripe.String(email)
	}
	params.AddMetadata("user_id", userID)

	cust, err := g.api.Customers.New(params)
	if err != nil {
		return "", err
	}
	return cust.ID, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(p.CustomerID),
		ClientReferenceID: stripe.String(p.UserID),
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.PriceID), Quantity: stripe.Int64(1)},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": p.UserID, "plan": p.Plan},
		},
	}
	params.Context = ctx
	params.AddMetadata("user_id", p.UserID)
	params.AddMetadata("plan", p.Plan)

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	s, err := g.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", err
	}
	return s.URL, nil
}

func (g *StripeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	return g.api.Subscriptions.Get(subscriptionID, params)
}

func (g *StripeGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	_, err := g.api.Subscriptions.Cancel(subscriptionID, params)
	return err
}
