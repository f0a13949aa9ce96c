package postgres

import (
	"context"
	"errors"
	"fmt"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const withdrawalColumns = `id, user_id, wallet, reference_id, amount, fee, total_debit,
		bank_code, account_number, account_name, status, gateway_reference, failure_reason,
		debit_transaction_id, created_at, updated_at`

// WithdrawalRepo implements ports.WithdrawalRepository. When a cipher is
// set, account numbers are sealed at rest.
type WithdrawalRepo struct {
	pool   Pool
	cipher ports.FieldCipher
}

// NewWithdrawalRepo creates a new WithdrawalRepo. cipher may be nil.
func NewWithdrawalRepo(pool Pool, cipher ports.FieldCipher) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool, cipher: cipher}
}

// Create inserts a withdrawal within a database transaction.
func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error {
	account, err := r.seal(w.AccountNumber)
	if err != nil {
		return err
	}

	query := `INSERT INTO withdrawals (` + withdrawalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err = tx.Exec(ctx, query,
		w.ID, w.UserID, w.Wallet, w.ReferenceID, w.Amount, w.Fee, w.TotalDebit,
		w.BankCode, account, w.AccountName, w.Status, w.GatewayReference, w.FailureReason,
		w.DebitTransactionID, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		if mapped := mapConstraintError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

// GetByID fetches a withdrawal without locking.
func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`
	return r.get(r.pool.QueryRow(ctx, query, id), "get withdrawal by id")
}

// GetByReference fetches a user's withdrawal by client reference.
func (r *WithdrawalRepo) GetByReference(ctx context.Context, userID uuid.UUID, referenceID string) (*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE user_id = $1 AND reference_id = $2`
	return r.get(r.pool.QueryRow(ctx, query, userID, referenceID), "get withdrawal by reference")
}

// GetByIDForUpdate fetches a withdrawal with pessimistic locking.
func (r *WithdrawalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1 FOR UPDATE`
	return r.get(tx.QueryRow(ctx, query, id), "get withdrawal for update")
}

// Update writes the saga outcome columns.
func (r *WithdrawalRepo) Update(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error {
	query := `UPDATE withdrawals SET status = $1, gateway_reference = $2, failure_reason = $3,
		updated_at = $4 WHERE id = $5`

	tag, err := tx.Exec(ctx, query, w.Status, w.GatewayReference, w.FailureReason, w.UpdatedAt, w.ID)
	if err != nil {
		return fmt.Errorf("update withdrawal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal not found: %s", w.ID)
	}
	return nil
}

func (r *WithdrawalRepo) get(row pgx.Row, op string) (*domain.Withdrawal, error) {
	w := &domain.Withdrawal{}
	err := row.Scan(
		&w.ID, &w.UserID, &w.Wallet, &w.ReferenceID, &w.Amount, &w.Fee, &w.TotalDebit,
		&w.BankCode, &w.AccountNumber, &w.AccountName, &w.Status, &w.GatewayReference, &w.FailureReason,
		&w.DebitTransactionID, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if r.cipher != nil {
		plain, err := r.cipher.Decrypt(w.AccountNumber)
		if err != nil {
			return nil, fmt.Errorf("%s: decrypt account number: %w", op, err)
		}
		w.AccountNumber = plain
	}
	return w, nil
}

func (r *WithdrawalRepo) seal(account string) (string, error) {
	if r.cipher == nil {
		return account, nil
	}
	sealed, err := r.cipher.Encrypt(account)
	if err != nil {
		return "", fmt.Errorf("encrypt account number: %w", err)
	}
	return sealed, nil
}
