package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletTxColumns = `id, user_id, wallet, amount, direction, category, description,
		campaign_id, promotion_id, withdrawal_id, reference, status, created_at, updated_at`

// WalletTransactionRepo implements ports.WalletTransactionRepository.
type WalletTransactionRepo struct {
	pool Pool
}

// NewWalletTransactionRepo creates a new WalletTransactionRepo.
func NewWalletTransactionRepo(pool Pool) *WalletTransactionRepo {
	return &WalletTransactionRepo{pool: pool}
}

// Create appends a ledger entry within a database transaction.
func (r *WalletTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.WalletTransaction) error {
	query := `INSERT INTO wallet_transactions (` + walletTxColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.UserID, t.Wallet, t.Amount, t.Direction, t.Category, t.Description,
		t.CampaignID, t.PromotionID, t.WithdrawalID, t.Reference, t.Status, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if mapped := mapConstraintError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("insert wallet transaction: %w", err)
	}
	return nil
}

// GetByIDForUpdate fetches a ledger entry with pessimistic locking.
func (r *WalletTransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WalletTransaction, error) {
	query := `SELECT ` + walletTxColumns + ` FROM wallet_transactions WHERE id = $1 FOR UPDATE`

	t, err := scanWalletTx(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet transaction for update: %w", err)
	}
	return t, nil
}

// GetByReference finds the entry booked for an external reference.
func (r *WalletTransactionRepo) GetByReference(ctx context.Context, tx pgx.Tx, userID uuid.UUID, category domain.TxCategory, reference string) (*domain.WalletTransaction, error) {
	query := `SELECT ` + walletTxColumns + ` FROM wallet_transactions
		WHERE user_id = $1 AND category = $2 AND reference = $3`

	t, err := scanWalletTx(tx.QueryRow(ctx, query, userID, category, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet transaction by reference: %w", err)
	}
	return t, nil
}

// UpdateStatus settles a pending entry. Settled entries are never touched again.
func (r *WalletTransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TxStatus) error {
	query := `UPDATE wallet_transactions SET status = $1, updated_at = now()
		WHERE id = $2 AND status = 'pending'`

	tag, err := tx.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update wallet transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pending wallet transaction not found: %s", id)
	}
	return nil
}

// ListByUser fetches a user's ledger history, newest first.
func (r *WalletTransactionRepo) ListByUser(ctx context.Context, params ports.WalletTxListParams) ([]domain.WalletTransaction, int64, error) {
	conditions := []string{"user_id = $1"}
	args := []any{params.UserID}
	argIdx := 2

	if params.Wallet != nil {
		conditions = append(conditions, fmt.Sprintf("wallet = $%d", argIdx))
		args = append(args, *params.Wallet)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM wallet_transactions "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count wallet transactions: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT `+walletTxColumns+`
		FROM wallet_transactions %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list wallet transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.WalletTransaction
	for rows.Next() {
		t, err := scanWalletTx(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan wallet transaction row: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate wallet transaction rows: %w", err)
	}
	return out, total, nil
}

func scanWalletTx(row pgx.Row) (*domain.WalletTransaction, error) {
	t := &domain.WalletTransaction{}
	err := row.Scan(
		&t.ID, &t.UserID, &t.Wallet, &t.Amount, &t.Direction, &t.Category, &t.Description,
		&t.CampaignID, &t.PromotionID, &t.WithdrawalID, &t.Reference, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}
