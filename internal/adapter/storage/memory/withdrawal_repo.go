package memory

import (
	"context"
	"fmt"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	store *Store
}

// NewWithdrawalRepo creates a WithdrawalRepo over store.
func NewWithdrawalRepo(store *Store) *WithdrawalRepo {
	return &WithdrawalRepo{store: store}
}

// Create inserts a withdrawal; the reference is unique per user.
func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error {
	return r.store.write(tx, func(db *tables) error {
		for _, existing := range db.withdrawals {
			if existing.UserID == w.UserID && existing.ReferenceID == w.ReferenceID {
				return apperror.ErrDuplicateWithdrawal()
			}
		}
		db.withdrawals[w.ID] = *w
		return nil
	})
}

// GetByID fetches a withdrawal without locking.
func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	return r.get(nil, id)
}

// GetByIDForUpdate fetches a withdrawal inside tx.
func (r *WithdrawalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Withdrawal, error) {
	return r.get(tx, id)
}

func (r *WithdrawalRepo) get(tx pgx.Tx, id uuid.UUID) (*domain.Withdrawal, error) {
	var out *domain.Withdrawal
	err := r.store.read(tx, func(db *tables) error {
		if w, ok := db.withdrawals[id]; ok {
			out = &w
		}
		return nil
	})
	return out, err
}

// GetByReference fetches a user's withdrawal by client reference.
func (r *WithdrawalRepo) GetByReference(ctx context.Context, userID uuid.UUID, referenceID string) (*domain.Withdrawal, error) {
	var out *domain.Withdrawal
	_ = r.store.read(nil, func(db *tables) error {
		for _, w := range db.withdrawals {
			if w.UserID == userID && w.ReferenceID == referenceID {
				out = &w
				return nil
			}
		}
		return nil
	})
	return out, nil
}

// Update overwrites the mutable withdrawal columns.
func (r *WithdrawalRepo) Update(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error {
	return r.store.write(tx, func(db *tables) error {
		if _, ok := db.withdrawals[w.ID]; !ok {
			return fmt.Errorf("withdrawal not found: %s", w.ID)
		}
		db.withdrawals[w.ID] = *w
		return nil
	})
}
