// Package postgres holds the connection setup for PostgreSQL and Redis and the
// small helpers the stores share.
//
// # Overview
//
// Open and NewRedisClient build verified clients from pkg/config sections.
// Stores accept a Querier so the same function works on the pool or inside a
// transaction opened by WithTx:
//
//	err := postgres.WithTx(ctx, db, func(tx *sql.Tx) error {
//		tenant, err := tenants.InsertTenant(ctx, tx, name, slug)
//		if err != nil {
//			return err
//		}
//		_, err = users.InsertUser(ctx, tx, ...)
//		return err
//	})
//
// # Schema
//
// schema.sql is embedded and applied with ApplySchema. It only uses
// CREATE ... IF NOT EXISTS and ON CONFLICT seeds, so it can run on every
// bootstrap.
//
// # Errors
//
// IsUniqueViolation recognizes lib/pq error 23505 and optionally matches the
// constraint name, e.g. users_email_key or subscriptions_one_current.
package postgres
