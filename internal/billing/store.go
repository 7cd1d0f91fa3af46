package billing

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/padhloyaar/padhloyaar-api/internal/domain"
)

type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Get returns the user's subscription row, or nil when there is none.
func (s *Store) Get(ctx context.Context, userID string) (*domain.Subscription, error) {
	const q = `
        SELECT user_id, COALESCE(stripe_customer_id, ''), COALESCE(stripe_subscription_id, ''),
               COALESCE(price_id, ''), tier, status, current_period_end, cancel_at_period_end, updated_at
        FROM subscriptions
        WHERE user_id = $1;
    `
	var sub domain.Subscription
	var tier string
	var end sql.NullTime
	err := s.DB.QueryRowContext(ctx, q, userID).Scan(
		&sub.UserID,
		&sub.StripeCustomerID,
		&sub.StripeSubscriptionID,
		&sub.PriceID,
		&tier,
		&sub.Status,
		&end,
		&sub.CancelAtPeriodEnd,
		&sub.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sub.Tier = domain.ParseTier(tier)
	if end.Valid {
		t := end.Time
		sub.CurrentPeriodEnd = &t
	}
	return &sub, nil
}

// TierFor resolves the tier a signed-in user has at now.
func (s *Store) TierFor(ctx context.Context, userID string, now time.Time) (domain.Tier, error) {
	sub, err := s.Get(ctx, userID)
	if err != nil {
		return domain.TierFree, err
	}
	return sub.EffectiveTier(now), nil
}

// SaveCustomer links a Stripe customer to the user without touching an existing subscription.
func (s *Store) SaveCustomer(ctx context.Context, userID, customerID string) error {
	const q = `
        INSERT INTO subscriptions (user_id, stripe_customer_id, tier, status, updated_at)
        VALUES ($1, $2, 'free', 'none', NOW())
        ON CONFLICT (user_id) DO UPDATE SET
            stripe_customer_id = EXCLUDED.stripe_customer_id,
            updated_at = NOW();
    `
	_, err := s.DB.ExecContext(ctx, q, userID, customerID)
	return err
}

// UserForCustomer maps a Stripe customer back to a user id, "" when unknown.
func (s *Store) UserForCustomer(ctx context.Context, customerID string) (string, error) {
	var userID string
	err := s.DB.QueryRowContext(ctx,
		`SELECT user_id FROM subscriptions WHERE stripe_customer_id = $1;`, customerID,
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return userID, err
}

// Upsert stores the latest known state of a user's subscription.
func (s *Store) Upsert(ctx context.Context, sub domain.Subscription) error {
	const q = `
        INSERT INTO subscriptions (user_id, stripe_customer_id, stripe_subscription_id, price_id,
                                   tier, status, current_period_end, cancel_at_period_end, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
        ON CONFLICT (user_id) DO UPDATE SET
            stripe_customer_id = EXCLUDED.stripe_customer_id,
            stripe_subscription_id = EXCLUDED.stripe_subscription_id,
            price_id = EXCLUDED.price_id,
            tier = EXCLUDED.tier,
            status = EXCLUDED.status,
            current_period_end = EXCLUDED.current_period_end,
            cancel_at_period_end = EXCLUDED.cancel_at_period_end,
            updated_at = NOW();
    `
	var end any
	if sub.CurrentPeriodEnd != nil {
		end = *sub.CurrentPeriodEnd
	}
	_, err := s.DB.ExecContext(ctx, q,
		sub.UserID,
		sub.StripeCustomerID,
		sub.StripeSubscriptionID,
		sub.PriceID,
		string(sub.Tier),
		sub.Status,
		end,
		sub.CancelAtPeriodEnd,
	)
	return err
}
