package database

import (
	"context"
	"fmt"

	schema "coupon-backend/db"
	"coupon-backend/pkg/logger"
)

// Migrate applies the embedded schema. Every statement is IF NOT EXISTS,
// so running it on an up-to-date database is a no-op.
func (db *PostgresDB) Migrate(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	if _, err := db.Pool.Exec(ctx, schema.Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("Database schema applied", nil)
	return nil
}
