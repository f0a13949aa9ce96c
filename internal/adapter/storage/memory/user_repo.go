package memory

import (
	"context"
	"fmt"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	store *Store
}

// NewUserRepo creates a UserRepo over store.
func NewUserRepo(store *Store) *UserRepo {
	return &UserRepo{store: store}
}

func cloneUser(u domain.User) *domain.User {
	u.Roles = append([]domain.Role(nil), u.Roles...)
	return &u
}

// Create inserts a user.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	return r.store.autocommit(ctx, func(tx pgx.Tx) error {
		return r.store.write(tx, func(db *tables) error {
			if _, ok := db.users[u.ID]; ok {
				return apperror.ErrConflict(fmt.Sprintf("user %s already exists", u.ID))
			}
			for _, existing := range db.users {
				if existing.Username == u.Username {
					return apperror.ErrConflict(fmt.Sprintf("username %q already exists", u.Username))
				}
			}
			db.users[u.ID] = *cloneUser(*u)
			return nil
		})
	})
}

// GetByID fetches a user without locking.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.get(nil, id)
}

// GetByIDForUpdate fetches a user inside tx.
func (r *UserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error) {
	return r.get(tx, id)
}

func (r *UserRepo) get(tx pgx.Tx, id uuid.UUID) (*domain.User, error) {
	var out *domain.User
	err := r.store.read(tx, func(db *tables) error {
		if u, ok := db.users[id]; ok {
			out = cloneUser(u)
		}
		return nil
	})
	return out, err
}

// UpdateWallets persists both wallets of u.
func (r *UserRepo) UpdateWallets(ctx context.Context, tx pgx.Tx, u *domain.User) error {
	return r.store.write(tx, func(db *tables) error {
		existing, ok := db.users[u.ID]
		if !ok {
			return fmt.Errorf("user not found: %s", u.ID)
		}
		existing.MarketerWallet = u.MarketerWallet
		existing.PromoterWallet = u.PromoterWallet
		existing.UpdatedAt = u.UpdatedAt
		db.users[u.ID] = existing
		return nil
	})
}
