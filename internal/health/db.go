// Package health provides readiness checks for backing services.
package health

import (
	"context"
	"database/sql"
	"fmt"
)

// DBChecker checks the relational store.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker creates a new database health checker. Pass the handle from
// gorm's DB() so the pool under the ORM is the one probed.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the pool and then runs a trivial query, since a ping
// can succeed against a server that rejects statements.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	var one int
	if err := d.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("select: %w", err)
	}
	return nil
}
