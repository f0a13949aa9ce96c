package postgres

import (
	"context"
	"errors"
	"fmt"

	"status-promo-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, username, email, roles, marketer_balance, marketer_reserved,
		promoter_balance, promoter_reserved, created_at, updated_at`

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	pool Pool
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(pool Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// Create inserts a user with both wallets.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	query := `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		u.ID, u.Username, u.Email, rolesToStrings(u.Roles),
		u.MarketerWallet.Balance, u.MarketerWallet.Reserved,
		u.PromoterWallet.Balance, u.PromoterWallet.Reserved,
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", mapConstraintError(err))
	}
	return nil
}

// GetByID fetches a user without locking.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a user with pessimistic locking.
// This MUST be called within a transaction.
func (r *UserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	return scanUser(tx.QueryRow(ctx, query, id))
}

// UpdateWallets writes both wallets of a locked user.
func (r *UserRepo) UpdateWallets(ctx context.Context, tx pgx.Tx, u *domain.User) error {
	query := `UPDATE users SET marketer_balance = $1, marketer_reserved = $2,
		promoter_balance = $3, promoter_reserved = $4, updated_at = $5 WHERE id = $6`

	tag, err := tx.Exec(ctx, query,
		u.MarketerWallet.Balance, u.MarketerWallet.Reserved,
		u.PromoterWallet.Balance, u.PromoterWallet.Reserved,
		u.UpdatedAt, u.ID,
	)
	if err != nil {
		return fmt.Errorf("update wallets: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", u.ID)
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	u := &domain.User{}
	var roles []string
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &roles,
		&u.MarketerWallet.Balance, &u.MarketerWallet.Reserved,
		&u.PromoterWallet.Balance, &u.PromoterWallet.Reserved,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Roles = make([]domain.Role, len(roles))
	for i, r := range roles {
		u.Roles[i] = domain.Role(r)
	}
	return u, nil
}

func rolesToStrings(roles []domain.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
