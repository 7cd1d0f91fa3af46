package domain

import "time"

// Tier is the subscription level that gates daily usage.
type Tier string

const (
	TierAnonymous Tier = "anonymous"
	TierFree      Tier = "free"
	TierPro       Tier = "pro"
	TierTeam      Tier = "team"
)

func (t Tier) Paid() bool { return t == TierPro || t == TierTeam }

// ParseTier maps a stored tier string to a Tier, defaulting to free.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierPro, TierTeam, TierAnonymous:
		return Tier(s)
	}
	return TierFree
}

// Profile mirrors a row in the Supabase profiles table.
type Profile struct {
	ID         string     `db:"id" json:"id"`
	Email      string     `db:"email" json:"email"`
	FullName   *string    `db:"full_name" json:"full_name,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	LastSeenAt *time.Time `db:"last_seen_at" json:"last_seen_at,omitempty"`
}

// Subscription mirrors a row in the subscriptions table.
type Subscription struct {
	UserID               string     `db:"user_id" json:"user_id"`
	StripeCustomerID     string     `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string     `db:"stripe_subscription_id" json:"stripe_subscription_id,omitempty"`
	PriceID              string     `db:"price_id" json:"price_id,omitempty"`
	Tier                 Tier       `db:"tier" json:"tier"`
	Status               string     `db:"status" json:"status"`
	CurrentPeriodEnd     *time.Time `db:"current_period_end" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool       `db:"cancel_at_period_end" json:"cancel_at_period_end"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// EffectiveTier is the tier a subscription grants at now.
func (s *Subscription) EffectiveTier(now time.Time) Tier {
	if s == nil {
		return TierFree
	}
	if s.Status != "active" && s.Status != "trialing" {
		return TierFree
	}
	if s.CurrentPeriodEnd == nil || !now.Before(*s.CurrentPeriodEnd) {
		return TierFree
	}
	if !s.Tier.Paid() {
		return TierFree
	}
	return s.Tier
}

// UsageLog is one recorded tool invocation.
type UsageLog struct {
	ID         int64     `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Identifier string    `db:"identifier" json:"identifier"`
	Tool       string    `db:"tool" json:"tool"`
	Provider   string    `db:"provider" json:"provider,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
