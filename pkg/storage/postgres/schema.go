package postgres

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the embedded DDL
func Schema() string {
	return schemaSQL
}

// ApplySchema creates missing tables and indexes and seeds the system roles.
// Every statement is idempotent, so it is safe to run on each bootstrap.
func ApplySchema(ctx context.Context, q Querier) error {
	if _, err := q.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
