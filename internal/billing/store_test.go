package billing

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padhloyaar/padhloyaar-api/internal/domain"
)

const uid = "5b8c8f4e-3a43-4d6b-9a0f-2e8f1e0c7d11"

var subColumns = []string{
	"user_id", "stripe_customer_id", "stripe_subscription_id", "price_id",
	"tier", "status", "current_period_end", "cancel_at_period_end", "updated_at",
}

func TestStore_GetNone(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM subscriptions`).WithArgs(uid).WillReturnRows(sqlmock.NewRows(subColumns))

	s := NewStore(db)
	sub, err := s.Get(context.Background(), uid)
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestStore_TierFor(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM subscriptions`).WithArgs(uid).WillReturnRows(
		sqlmock.NewRows(subColumns).AddRow(uid, "cus_1", "sub_1", "price_pro", "pro", "active", now.Add(24*time.Hour), false, now))
	mock.ExpectQuery(`FROM subscriptions`).WithArgs(uid).WillReturnRows(
		sqlmock.NewRows(subColumns).AddRow(uid, "cus_1", "sub_1", "price_pro", "pro", "active", now.Add(-time.Hour), false, now))

	s := NewStore(db)
	tier, err := s.TierFor(context.Background(), uid, now)
	require.NoError(t, err)
	assert.Equal(t, domain.TierPro, tier)

	tier, err = s.TierFor(context.Background(), uid, now)
	require.NoError(t, err)
	assert.Equal(t, domain.TierFree, tier, "expired period falls back to free")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpsertAndCustomer(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	end := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO subscriptions`).
		WithArgs(uid, "cus_1", "sub_1", "price_team", "team", "active", end, true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`WHERE stripe_customer_id`).WithArgs("cus_1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(uid))
	mock.ExpectQuery(`WHERE stripe_customer_id`).WithArgs("cus_x").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	s := NewStore(db)
	require.NoError(t, s.Upsert(context.Background(), domain.Subscription{
		UserID: uid, StripeCustomerID: "cus_1", StripeSubscriptionID: "sub_1", PriceID: "price_team",
		Tier: domain.TierTeam, Status: "active", CurrentPeriodEnd: &end, CancelAtPeriodEnd: true,
	}))

	got, err := s.UserForCustomer(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, uid, got)

	got, err = s.UserForCustomer(context.Background(), "cus_x")
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}
