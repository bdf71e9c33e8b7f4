package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/backoffice/pkg/storage/postgres"
)

const (
	planColumns         = `p.id, p.slug, p.name, p.monthly_token_limit, p.daily_token_limit, p.requests_per_minute, p.features, p.created_at, p.updated_at`
	subscriptionColumns = `s.id, s.tenant_id, s.plan_id, s.status, s.starts_at, s.ends_at, s.created_at, s.updated_at`

	currentSubscriptionConstraint = "subscriptions_one_current"
)

// EntitlementResolver resolves a tenant's current plan
type EntitlementResolver interface {
	CurrentEntitlement(ctx context.Context, tenantID int64, now time.Time) (*Entitlement, error)
}

// Service manages plans and subscriptions in PostgreSQL
type Service struct {
	db          *sql.DB
	defaultPlan string
}

// NewService creates a billing service. defaultPlan is the plan new tenants
// start their trial on.
func NewService(db *sql.DB, defaultPlan string) *Service {
	return &Service{db: db, defaultPlan: defaultPlan}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPlanInto(dest []interface{}, p *Plan, featuresJSON *[]byte) []interface{} {
	return append(dest,
		&p.ID, &p.Slug, &p.Name, &p.MonthlyTokenLimit, &p.DailyTokenLimit,
		&p.RequestsPerMinute, featuresJSON, &p.CreatedAt, &p.UpdatedAt,
	)
}

func scanSubscriptionInto(dest []interface{}, s *Subscription, endsAt *sql.NullTime) []interface{} {
	return append(dest,
		&s.ID, &s.TenantID, &s.PlanID, &s.Status, &s.StartsAt, endsAt, &s.CreatedAt, &s.UpdatedAt,
	)
}

func decodeFeatures(p *Plan, raw []byte) error {
	p.Features = map[string]bool{}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &p.Features); err != nil {
		return fmt.Errorf("failed to unmarshal plan features: %w", err)
	}
	return nil
}

func scanPlan(row rowScanner) (*Plan, error) {
	p := &Plan{}
	var featuresJSON []byte
	if err := row.Scan(scanPlanInto(nil, p, &featuresJSON)...); err != nil {
		return nil, err
	}
	if err := decodeFeatures(p, featuresJSON); err != nil {
		return nil, err
	}
	return p, nil
}

func scanSubscription(row rowScanner) (*Subscription, error) {
	s := &Subscription{}
	var endsAt sql.NullTime
	if err := row.Scan(scanSubscriptionInto(nil, s, &endsAt)...); err != nil {
		return nil, err
	}
	if endsAt.Valid {
		s.EndsAt = &endsAt.Time
	}
	return s, nil
}

// GetPlan retrieves a plan by slug
func (s *Service) GetPlan(ctx context.Context, slug string) (*Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans p WHERE p.slug = $1`
	p, err := scanPlan(s.db.QueryRowContext(ctx, query, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return p, nil
}

// ListPlans returns every plan ordered by monthly budget
func (s *Service) ListPlans(ctx context.Context) ([]*Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans p ORDER BY p.monthly_token_limit, p.slug`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []*Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

// CurrentEntitlement returns the subscription current at now together with
// its plan and the tenant's billing timezone. ErrNoSubscription when the
// tenant has no active or trial subscription in its validity window.
func (s *Service) CurrentEntitlement(ctx context.Context, tenantID int64, now time.Time) (*Entitlement, error) {
	query := `
		SELECT ` + subscriptionColumns + `, ` + planColumns + `, t.billing_timezone
		FROM subscriptions s
		JOIN plans p ON p.id = s.plan_id
		JOIN tenants t ON t.id = s.tenant_id
		WHERE s.tenant_id = $1
		  AND s.status IN ('active', 'trial')
		  AND s.starts_at <= $2
		  AND (s.ends_at IS NULL OR s.ends_at > $2)
		ORDER BY s.starts_at DESC
		LIMIT 1
	`
	sub := &Subscription{}
	plan := &Plan{}
	var endsAt sql.NullTime
	var featuresJSON []byte
	var timezone string

	dest := scanSubscriptionInto(nil, sub, &endsAt)
	dest = scanPlanInto(dest, plan, &featuresJSON)
	dest = append(dest, &timezone)

	err := s.db.QueryRowContext(ctx, query, tenantID, now).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSubscription
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve entitlement: %w", err)
	}
	if endsAt.Valid {
		sub.EndsAt = &endsAt.Time
	}
	if err := decodeFeatures(plan, featuresJSON); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil || timezone == "" {
		loc = time.UTC
	}
	return &Entitlement{Subscription: sub, Plan: plan, Location: loc}, nil
}

// CreateSubscription inserts a subscription inside q. A second current
// subscription for the tenant fails with ErrSubscriptionConflict.
func (s *Service) CreateSubscription(ctx context.Context, q postgres.Querier, input CreateSubscriptionInput) (*Subscription, error) {
	if !input.Status.Valid() {
		return nil, fmt.Errorf("invalid subscription status %q", input.Status)
	}
	if input.StartsAt.IsZero() {
		return nil, fmt.Errorf("subscription start is required")
	}
	if input.EndsAt != nil && !input.EndsAt.After(input.StartsAt) {
		return nil, fmt.Errorf("subscription must end after it starts")
	}

	query := `
		INSERT INTO subscriptions (tenant_id, plan_id, status, starts_at, ends_at)
		SELECT $1::bigint, p.id, $3::text, $4::timestamptz, $5::timestamptz FROM plans p WHERE p.slug = $2
		RETURNING id, tenant_id, plan_id, status, starts_at, ends_at, created_at, updated_at
	`
	var endsAt sql.NullTime
	if input.EndsAt != nil {
		endsAt = sql.NullTime{Time: *input.EndsAt, Valid: true}
	}

	sub, err := scanSubscription(q.QueryRowContext(ctx, query,
		input.TenantID, input.PlanSlug, input.Status, input.StartsAt, endsAt,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if postgres.IsUniqueViolation(err, currentSubscriptionConstraint) {
		return nil, ErrSubscriptionConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	return sub, nil
}

// StartTrial creates an open-ended trial on the default plan
func (s *Service) StartTrial(ctx context.Context, q postgres.Querier, tenantID int64, now time.Time) (*Subscription, error) {
	return s.CreateSubscription(ctx, q, CreateSubscriptionInput{
		TenantID: tenantID,
		PlanSlug: s.defaultPlan,
		Status:   SubscriptionStatusTrial,
		StartsAt: now,
	})
}

// UpdateStatus moves a subscription to status. Reviving a subscription
// while another one is current fails with ErrSubscriptionConflict.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status SubscriptionStatus) (*Subscription, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid subscription status %q", status)
	}

	query := `
		UPDATE subscriptions
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, tenant_id, plan_id, status, starts_at, ends_at, created_at, updated_at
	`
	sub, err := scanSubscription(s.db.QueryRowContext(ctx, query, status, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	if postgres.IsUniqueViolation(err, currentSubscriptionConstraint) {
		return nil, ErrSubscriptionConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}
	return sub, nil
}

// Seed loads the catalog at path (built-in when empty), upserts its plans
// and checks that the default plan exists
func (s *Service) Seed(ctx context.Context, path string) (*Catalog, error) {
	catalog, err := LoadCatalog(path)
	if err != nil {
		return nil, err
	}
	if _, ok := catalog.Find(s.defaultPlan); !ok {
		return nil, fmt.Errorf("default plan %q is not in the catalog", s.defaultPlan)
	}
	if err := SeedPlans(ctx, s.db, catalog); err != nil {
		return nil, err
	}
	return catalog, nil
}
