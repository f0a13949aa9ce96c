package memory

import (
	"context"

	"status-promo-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ActivityRepo implements ports.ActivityRepository.
type ActivityRepo struct {
	store *Store
}

// NewActivityRepo creates an ActivityRepo over store.
func NewActivityRepo(store *Store) *ActivityRepo {
	return &ActivityRepo{store: store}
}

// Append records entries inside tx.
func (r *ActivityRepo) Append(ctx context.Context, tx pgx.Tx, entries ...domain.ActivityEntry) error {
	return r.store.write(tx, func(db *tables) error {
		db.activity = append(db.activity, entries...)
		return nil
	})
}

// List returns the newest entries for one aggregate, newest first.
func (r *ActivityRepo) List(ctx context.Context, entity domain.EntityType, entityID uuid.UUID, limit int) ([]domain.ActivityEntry, error) {
	var out []domain.ActivityEntry
	_ = r.store.read(nil, func(db *tables) error {
		for i := len(db.activity) - 1; i >= 0; i-- {
			e := db.activity[i]
			if e.EntityType != entity || e.EntityID != entityID {
				continue
			}
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, nil
}
