package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/platinummonkey/backoffice/pkg/storage/postgres"
)

// rejection aborts the admission transaction
type rejection struct {
	index   int
	current int64
}

func (r *rejection) Error() string { return "window ceiling reached" }

// PostgresCounter keeps window counters in the usage_counters table.
// Each admission is one transaction of conditional updates; row locks
// taken in window order serialize concurrent admissions per tenant.
type PostgresCounter struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresCounter creates a Postgres-backed counter
func NewPostgresCounter(db *sql.DB) *PostgresCounter {
	return &PostgresCounter{db: db, now: time.Now}
}

// Backend implements Counter
func (c *PostgresCounter) Backend() string { return "postgres" }

// Admit implements Counter
func (c *PostgresCounter) Admit(ctx context.Context, windows []Window) (*Outcome, error) {
	values := make([]int64, len(windows))
	now := c.now()

	err := postgres.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		for i, w := range windows {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO usage_counters (counter_key, value, expires_at)
				VALUES ($1, 0, $2)
				ON CONFLICT (counter_key) DO NOTHING
			`, w.Key, now.Add(w.TTL)); err != nil {
				return fmt.Errorf("failed to seed counter: %w", err)
			}

			err := tx.QueryRowContext(ctx, `
				UPDATE usage_counters
				SET value = value + $2
				WHERE counter_key = $1 AND value + $2 <= $3
				RETURNING value
			`, w.Key, w.Increment, w.Ceiling).Scan(&values[i])
			if errors.Is(err, sql.ErrNoRows) {
				var current int64
				if err := tx.QueryRowContext(ctx,
					`SELECT value FROM usage_counters WHERE counter_key = $1`, w.Key,
				).Scan(&current); err != nil {
					return fmt.Errorf("failed to read counter: %w", err)
				}
				return &rejection{index: i, current: current}
			}
			if err != nil {
				return fmt.Errorf("failed to increment counter: %w", err)
			}
		}
		return nil
	})

	var rej *rejection
	if errors.As(err, &rej) {
		return &Outcome{Rejected: rej.index, Current: rej.current}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Outcome{Admitted: true, Rejected: -1, Values: values}, nil
}

// Current implements Counter
func (c *PostgresCounter) Current(ctx context.Context, keys []string) ([]int64, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT counter_key, value FROM usage_counters WHERE counter_key = ANY($1)`,
		pq.Array(keys),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}
	defer rows.Close()

	byKey := make(map[string]int64, len(keys))
	for rows.Next() {
		var key string
		var value int64
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan counter: %w", err)
		}
		byKey[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}

	values := make([]int64, len(keys))
	for i, k := range keys {
		values[i] = byKey[k]
	}
	return values, nil
}

// DeleteExpired removes counters whose window closed before now
func (c *PostgresCounter) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := c.db.ExecContext(ctx, `DELETE FROM usage_counters WHERE expires_at < $1`, c.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired counters: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
