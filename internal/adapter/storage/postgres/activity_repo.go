package postgres

import (
	"context"
	"fmt"

	"status-promo-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ActivityRepo implements ports.ActivityRepository over activity_logs.
type ActivityRepo struct {
	pool Pool
}

// NewActivityRepo creates a new ActivityRepo.
func NewActivityRepo(pool Pool) *ActivityRepo {
	return &ActivityRepo{pool: pool}
}

// Append inserts entries within a database transaction.
func (r *ActivityRepo) Append(ctx context.Context, tx pgx.Tx, entries ...domain.ActivityEntry) error {
	query := `INSERT INTO activity_logs (id, entity_type, entity_id, action, performed_by, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, e := range entries {
		_, err := tx.Exec(ctx, query,
			e.ID, e.EntityType, e.EntityID, e.Action, e.PerformedBy, e.Details, e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert activity %s: %w", e.Action, err)
		}
	}
	return nil
}

// List returns the newest entries for one aggregate, newest first.
func (r *ActivityRepo) List(ctx context.Context, entity domain.EntityType, entityID uuid.UUID, limit int) ([]domain.ActivityEntry, error) {
	query := `SELECT id, entity_type, entity_id, action, performed_by, details, created_at
		FROM activity_logs WHERE entity_type = $1 AND entity_id = $2 ORDER BY created_at DESC`
	args := []any{entity, entityID}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []domain.ActivityEntry
	for rows.Next() {
		var e domain.ActivityEntry
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.PerformedBy, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity rows: %w", err)
	}
	return out, nil
}
