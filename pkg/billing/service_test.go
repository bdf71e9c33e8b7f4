package billing

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	planRowColumns         = []string{"id", "slug", "name", "monthly_token_limit", "daily_token_limit", "requests_per_minute", "features", "created_at", "updated_at"}
	subscriptionRowColumns = []string{"id", "tenant_id", "plan_id", "status", "starts_at", "ends_at", "created_at", "updated_at"}
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var testNow = time.Date(2026, 10, 18, 12, 4, 0, 0, time.UTC)

func planRow(id int64, slug string, monthly, daily, rpm int64, features string) []driver.Value {
	return []driver.Value{id, slug, slug, monthly, daily, rpm, []byte(features), testNow, testNow}
}

func subscriptionRow(id, tenantID, planID int64, status string) []driver.Value {
	return []driver.Value{id, tenantID, planID, status, testNow.Add(-time.Hour), nil, testNow, testNow}
}

func TestService_GetPlan(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := NewService(db, "free")

	mock.ExpectQuery("FROM plans p WHERE p.slug = \\$1").
		WithArgs("free").
		WillReturnRows(sqlmock.NewRows(planRowColumns).AddRow(planRow(1, "free", 5000, 500, 5, `{"chat":true}`)...))

	plan, err := svc.GetPlan(context.Background(), "free")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), plan.MonthlyTokenLimit)
	assert.True(t, plan.FeatureEnabled(FeatureChat))
	assert.False(t, plan.FeatureEnabled(FeatureAutofill))

	mock.ExpectQuery("FROM plans").WithArgs("gold").WillReturnError(sql.ErrNoRows)
	_, err = svc.GetPlan(context.Background(), "gold")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestService_ListPlans(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := NewService(db, "free")

	mock.ExpectQuery("FROM plans p ORDER BY").
		WillReturnRows(sqlmock.NewRows(planRowColumns).
			AddRow(planRow(1, "free", 5000, 500, 5, `{}`)...).
			AddRow(planRow(2, "pro", 200000, 20000, 60, `{"autofill":true}`)...))

	plans, err := svc.ListPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.NotNil(t, plans[0].Features)
	assert.True(t, plans[1].FeatureEnabled(FeatureAutofill))
}

func TestService_CurrentEntitlement(t *testing.T) {
	columns := append(append(append([]string{}, subscriptionRowColumns...), planRowColumns...), "billing_timezone")

	t.Run("found", func(t *testing.T) {
		db, mock := setupMockDB(t)
		svc := NewService(db, "free")

		row := append(subscriptionRow(9, 4, 1, "trial"), planRow(1, "free", 5000, 500, 5, `{"chat":true}`)...)
		row = append(row, "America/New_York")
		mock.ExpectQuery("FROM subscriptions s JOIN plans p (.+) WHERE s.tenant_id = \\$1 AND s.status IN \\('active', 'trial'\\)").
			WithArgs(int64(4), testNow).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(row...))

		ent, err := svc.CurrentEntitlement(context.Background(), 4, testNow)
		require.NoError(t, err)
		assert.Equal(t, SubscriptionStatusTrial, ent.Subscription.Status)
		assert.Nil(t, ent.Subscription.EndsAt)
		assert.Equal(t, "free", ent.Plan.Slug)
		assert.True(t, ent.Plan.FeatureEnabled(FeatureChat))
		assert.Equal(t, "America/New_York", ent.Location.String())
	})

	t.Run("unknown timezone falls back to UTC", func(t *testing.T) {
		db, mock := setupMockDB(t)
		svc := NewService(db, "free")

		row := append(subscriptionRow(9, 4, 1, "active"), planRow(1, "free", 5000, 500, 5, `{}`)...)
		row = append(row, "Mars/Olympus")
		mock.ExpectQuery("FROM subscriptions").WillReturnRows(sqlmock.NewRows(columns).AddRow(row...))

		ent, err := svc.CurrentEntitlement(context.Background(), 4, testNow)
		require.NoError(t, err)
		assert.Equal(t, time.UTC, ent.Location)
	})

	t.Run("no subscription", func(t *testing.T) {
		db, mock := setupMockDB(t)
		svc := NewService(db, "free")

		mock.ExpectQuery("FROM subscriptions").WillReturnError(sql.ErrNoRows)

		_, err := svc.CurrentEntitlement(context.Background(), 4, testNow)
		assert.ErrorIs(t, err, ErrNoSubscription)
	})
}

func TestService_CreateSubscription(t *testing.T) {
	ctx := context.Background()

	t.Run("trial on default plan", func(t *testing.T) {
		db, mock := setupMockDB(t)
		svc := NewService(db, "free")

		mock.ExpectQuery("INSERT INTO subscriptions (.+) FROM plans p WHERE p.slug = \\$2").
			WithArgs(int64(4), "free", "trial", testNow, nil).
			WillReturnRows(sqlmock.NewRows(subscriptionRowColumns).AddRow(subscriptionRow(9, 4, 1, "trial")...))

		sub, err := svc.StartTrial(ctx, db, 4, testNow)
		require.NoError(t, err)
		assert.Equal(t, int64(9), sub.ID)
		assert.Equal(t, SubscriptionStatusTrial, sub.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conflict", func(t *testing.T) {
		db, mock := setupMockDB(t)
		svc := NewService(db, "free")

		mock.ExpectQuery("INSERT INTO subscriptions").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "subscriptions_one_current"})

		_, err := svc.CreateSubscription(ctx, db, CreateSubscriptionInput{
			TenantID: 4, PlanSlug: "pro", Status: SubscriptionStatusActive, StartsAt: testNow,
		})
		assert.ErrorIs(t, err, ErrSubscriptionConflict)
	})

	t.Run("unknown plan", func(t *testing.T) {
		db, mock := setupMockDB(t)
		svc := NewService(db, "free")

		mock.ExpectQuery("INSERT INTO subscriptions").WillReturnError(sql.ErrNoRows)

		_, err := svc.CreateSubscription(ctx, db, CreateSubscriptionInput{
			TenantID: 4, PlanSlug: "gold", Status: SubscriptionStatusActive, StartsAt: testNow,
		})
		assert.ErrorIs(t, err, ErrPlanNotFound)
	})

	t.Run("invalid input", func(t *testing.T) {
		svc := NewService(nil, "free")
		before := testNow.Add(-time.Hour)

		_, err := svc.CreateSubscription(ctx, nil, CreateSubscriptionInput{TenantID: 4, Status: "paused", StartsAt: testNow})
		assert.Error(t, err)
		_, err = svc.CreateSubscription(ctx, nil, CreateSubscriptionInput{TenantID: 4, Status: SubscriptionStatusActive})
		assert.Error(t, err)
		_, err = svc.CreateSubscription(ctx, nil, CreateSubscriptionInput{TenantID: 4, Status: SubscriptionStatusActive, StartsAt: testNow, EndsAt: &before})
		assert.Error(t, err)
	})
}

func TestService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	db, mock := setupMockDB(t)
	svc := NewService(db, "free")

	mock.ExpectQuery("UPDATE subscriptions SET status = \\$1").
		WithArgs("past_due", int64(9)).
		WillReturnRows(sqlmock.NewRows(subscriptionRowColumns).AddRow(subscriptionRow(9, 4, 1, "past_due")...))
	sub, err := svc.UpdateStatus(ctx, 9, SubscriptionStatusPastDue)
	require.NoError(t, err)
	assert.Equal(t, SubscriptionStatusPastDue, sub.Status)

	mock.ExpectQuery("UPDATE subscriptions").WillReturnError(sql.ErrNoRows)
	_, err = svc.UpdateStatus(ctx, 10, SubscriptionStatusCanceled)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)

	mock.ExpectQuery("UPDATE subscriptions").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "subscriptions_one_current"})
	_, err = svc.UpdateStatus(ctx, 11, SubscriptionStatusActive)
	assert.ErrorIs(t, err, ErrSubscriptionConflict)

	_, err = svc.UpdateStatus(ctx, 11, "paused")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrSubscriptionNotFound))
}

func TestService_Seed(t *testing.T) {
	db, mock := setupMockDB(t)

	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO plans").WillReturnResult(sqlmock.NewResult(int64(i+1), 1))
	}
	catalog, err := NewService(db, "pro").Seed(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, catalog.Plans, 3)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = NewService(db, "platinum").Seed(context.Background(), "")
	assert.Error(t, err)
}

func TestSubscription_CurrentAt(t *testing.T) {
	end := testNow.Add(time.Hour)
	past := testNow.Add(-time.Minute)

	assert.True(t, (&Subscription{Status: SubscriptionStatusTrial, StartsAt: past}).CurrentAt(testNow))
	assert.True(t, (&Subscription{Status: SubscriptionStatusActive, StartsAt: past, EndsAt: &end}).CurrentAt(testNow))
	assert.False(t, (&Subscription{Status: SubscriptionStatusActive, StartsAt: past, EndsAt: &past}).CurrentAt(testNow))
	assert.False(t, (&Subscription{Status: SubscriptionStatusActive, StartsAt: end}).CurrentAt(testNow))
	assert.False(t, (&Subscription{Status: SubscriptionStatusPastDue, StartsAt: past}).CurrentAt(testNow))
}

func TestPlan_HasZeroCeiling(t *testing.T) {
	assert.False(t, (&Plan{MonthlyTokenLimit: 1, DailyTokenLimit: 1, RequestsPerMinute: 1}).HasZeroCeiling())
	assert.True(t, (&Plan{MonthlyTokenLimit: 1, DailyTokenLimit: 0, RequestsPerMinute: 1}).HasZeroCeiling())
}
