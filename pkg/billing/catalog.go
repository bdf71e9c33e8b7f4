package billing

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/backoffice/pkg/storage/postgres"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// PlanSpec is one plan entry of a catalog file
type PlanSpec struct {
	Slug              string          `yaml:"slug"`
	Name              string          `yaml:"name"`
	MonthlyTokenLimit int64           `yaml:"monthly_token_limit"`
	DailyTokenLimit   int64           `yaml:"daily_token_limit"`
	RequestsPerMinute int64           `yaml:"requests_per_minute"`
	Features          map[string]bool `yaml:"features"`
}

// Catalog is the set of plans offered by the deployment
type Catalog struct {
	Plans []PlanSpec `yaml:"plans"`
}

// Find returns the plan with slug
func (c *Catalog) Find(slug string) (PlanSpec, bool) {
	for _, p := range c.Plans {
		if p.Slug == slug {
			return p, true
		}
	}
	return PlanSpec{}, false
}

// LoadCatalog reads a catalog from path, or the built-in catalog when path
// is empty
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates catalog YAML
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse plan catalog: %w", err)
	}
	if len(c.Plans) == 0 {
		return nil, fmt.Errorf("plan catalog is empty")
	}

	seen := make(map[string]bool, len(c.Plans))
	for _, p := range c.Plans {
		if p.Slug == "" {
			return nil, fmt.Errorf("plan catalog entry without slug")
		}
		if seen[p.Slug] {
			return nil, fmt.Errorf("duplicate plan %q in catalog", p.Slug)
		}
		seen[p.Slug] = true
		if p.MonthlyTokenLimit < 0 || p.DailyTokenLimit < 0 || p.RequestsPerMinute < 0 {
			return nil, fmt.Errorf("plan %q has a negative limit", p.Slug)
		}
	}
	return &c, nil
}

// SeedPlans upserts every catalog plan by slug
func SeedPlans(ctx context.Context, q postgres.Querier, c *Catalog) error {
	query := `
		INSERT INTO plans (slug, name, monthly_token_limit, daily_token_limit, requests_per_minute, features)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name,
		    monthly_token_limit = EXCLUDED.monthly_token_limit,
		    daily_token_limit = EXCLUDED.daily_token_limit,
		    requests_per_minute = EXCLUDED.requests_per_minute,
		    features = EXCLUDED.features,
		    updated_at = NOW()
	`
	for _, p := range c.Plans {
		features := p.Features
		if features == nil {
			features = map[string]bool{}
		}
		featuresJSON, err := json.Marshal(features)
		if err != nil {
			return fmt.Errorf("failed to marshal features of %s: %w", p.Slug, err)
		}
		if _, err := q.ExecContext(ctx, query,
			p.Slug, p.Name, p.MonthlyTokenLimit, p.DailyTokenLimit, p.RequestsPerMinute, featuresJSON,
		); err != nil {
			return fmt.Errorf("failed to seed plan %s: %w", p.Slug, err)
		}
	}
	return nil
}
