package memory

import (
	"context"
	"fmt"
	"sort"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"
	"status-promo-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletTransactionRepo implements ports.WalletTransactionRepository.
type WalletTransactionRepo struct {
	store *Store
}

// NewWalletTransactionRepo creates a WalletTransactionRepo over store.
func NewWalletTransactionRepo(store *Store) *WalletTransactionRepo {
	return &WalletTransactionRepo{store: store}
}

// Create appends a ledger entry.
func (r *WalletTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.WalletTransaction) error {
	return r.store.write(tx, func(db *tables) error {
		if _, ok := db.walletTxs[t.ID]; ok {
			return fmt.Errorf("insert wallet transaction: duplicate id %s", t.ID)
		}
		if t.Reference != nil {
			if _, dup := findByReference(db, t.UserID, t.Category, *t.Reference); dup {
				return apperror.ErrDuplicateDeposit()
			}
		}
		db.walletTxs[t.ID] = *t
		return nil
	})
}

// GetByIDForUpdate fetches a ledger entry inside tx.
func (r *WalletTransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WalletTransaction, error) {
	var out *domain.WalletTransaction
	err := r.store.read(tx, func(db *tables) error {
		if t, ok := db.walletTxs[id]; ok {
			out = &t
		}
		return nil
	})
	return out, err
}

// GetByReference finds the entry booked for an external reference.
func (r *WalletTransactionRepo) GetByReference(ctx context.Context, tx pgx.Tx, userID uuid.UUID, category domain.TxCategory, reference string) (*domain.WalletTransaction, error) {
	var out *domain.WalletTransaction
	err := r.store.read(tx, func(db *tables) error {
		if t, ok := findByReference(db, userID, category, reference); ok {
			out = &t
		}
		return nil
	})
	return out, err
}

func findByReference(db *tables, userID uuid.UUID, category domain.TxCategory, reference string) (domain.WalletTransaction, bool) {
	for _, t := range db.walletTxs {
		if t.UserID == userID && t.Category == category && t.Reference != nil && *t.Reference == reference {
			return t, true
		}
	}
	return domain.WalletTransaction{}, false
}

// UpdateStatus settles a pending entry.
func (r *WalletTransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TxStatus) error {
	return r.store.write(tx, func(db *tables) error {
		t, ok := db.walletTxs[id]
		if !ok {
			return fmt.Errorf("wallet transaction not found: %s", id)
		}
		if !t.CanSettle() {
			return fmt.Errorf("wallet transaction %s already %s", id, t.Status)
		}
		t.Status = status
		db.walletTxs[id] = t
		return nil
	})
}

// ListByUser returns a user's ledger, newest first.
func (r *WalletTransactionRepo) ListByUser(ctx context.Context, params ports.WalletTxListParams) ([]domain.WalletTransaction, int64, error) {
	var result []domain.WalletTransaction
	_ = r.store.read(nil, func(db *tables) error {
		for _, t := range db.walletTxs {
			if t.UserID != params.UserID {
				continue
			}
			if params.Wallet != nil && t.Wallet != *params.Wallet {
				continue
			}
			result = append(result, t)
		}
		return nil
	})
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return paginate(result, params.Page, params.PageSize), int64(len(result)), nil
}
