package postgres

import (
	"context"
	"errors"
	"fmt"
)

// HealthCheck reports PostgreSQL as healthy once it answers and the schema
// has at least one applied migration.
type HealthCheck struct {
	pool Pool
}

// NewHealthCheck creates a PostgreSQL health checker.
func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping reads the latest applied migration version.
func (h *HealthCheck) Ping(ctx context.Context) error {
	var version *string
	if err := h.pool.QueryRow(ctx, "SELECT max(version) FROM schema_migrations").Scan(&version); err != nil {
		return fmt.Errorf("schema_migrations: %w", err)
	}
	if version == nil {
		return errors.New("no migrations applied")
	}
	return nil
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "postgresql"
}
