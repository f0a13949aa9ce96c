package postgres

import (
	"context"
	"testing"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"
	"status-promo-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWalletTx(userID uuid.UUID) *domain.WalletTransaction {
	campaignID := uuid.New()
	return &domain.WalletTransaction{
		ID:          uuid.New(),
		UserID:      userID,
		Wallet:      domain.WalletMarketer,
		Amount:      1000,
		Direction:   domain.DirectionDebit,
		Category:    domain.CategoryCampaignReserve,
		Description: "Budget reserved",
		CampaignID:  &campaignID,
		Status:      domain.TxStatusSuccessful,
		CreatedAt:   testTime(),
		UpdatedAt:   testTime(),
	}
}

func walletTxColumnNames() []string {
	return []string{"id", "user_id", "wallet", "amount", "direction", "category", "description",
		"campaign_id", "promotion_id", "withdrawal_id", "reference", "status", "created_at", "updated_at"}
}

func walletTxRow(rows *pgxmock.Rows, t *domain.WalletTransaction) *pgxmock.Rows {
	return rows.AddRow(
		t.ID, t.UserID, t.Wallet, t.Amount, t.Direction, t.Category, t.Description,
		t.CampaignID, t.PromotionID, t.WithdrawalID, t.Reference, t.Status, t.CreatedAt, t.UpdatedAt,
	)
}

func TestWalletTransactionRepo_Create(t *testing.T) {
	mock := newMockPool(t)
	repo := NewWalletTransactionRepo(mock)
	entry := newTestWalletTx(uuid.New())
	tx := beginTx(t, mock)

	mock.ExpectExec("INSERT INTO wallet_transactions").
		WithArgs(entry.ID, entry.UserID, entry.Wallet, entry.Amount, entry.Direction, entry.Category,
			entry.Description, entry.CampaignID, entry.PromotionID, entry.WithdrawalID, entry.Reference, entry.Status,
			entry.CreatedAt, entry.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), tx, entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletTransactionRepo_Create_DuplicateReference(t *testing.T) {
	mock := newMockPool(t)
	repo := NewWalletTransactionRepo(mock)
	entry := newTestWalletTx(uuid.New())
	ref := "PSK-REF-1"
	entry.Category = domain.CategoryDeposit
	entry.Reference = &ref
	tx := beginTx(t, mock)

	mock.ExpectExec("INSERT INTO wallet_transactions").
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: constraintLedgerRef})

	err := repo.Create(context.Background(), tx, entry)
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletTransactionRepo_GetByReference(t *testing.T) {
	mock := newMockPool(t)
	repo := NewWalletTransactionRepo(mock)
	entry := newTestWalletTx(uuid.New())
	ref := "PSK-REF-1"
	entry.Category = domain.CategoryDeposit
	entry.Reference = &ref
	tx := beginTx(t, mock)

	mock.ExpectQuery("SELECT .+ FROM wallet_transactions\\s+WHERE user_id = \\$1 AND category = \\$2 AND reference = \\$3").
		WithArgs(entry.UserID, domain.CategoryDeposit, ref).
		WillReturnRows(walletTxRow(pgxmock.NewRows(walletTxColumnNames()), entry))
	mock.ExpectQuery("SELECT .+ FROM wallet_transactions").
		WithArgs(entry.UserID, domain.CategoryDeposit, "other").
		WillReturnRows(pgxmock.NewRows(walletTxColumnNames()))

	got, err := repo.GetByReference(context.Background(), tx, entry.UserID, domain.CategoryDeposit, ref)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.ID, got.ID)
	require.NotNil(t, got.Reference)
	assert.Equal(t, ref, *got.Reference)

	missing, err := repo.GetByReference(context.Background(), tx, entry.UserID, domain.CategoryDeposit, "other")
	assert.NoError(t, err)
	assert.Nil(t, missing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletTransactionRepo_GetByIDForUpdate(t *testing.T) {
	mock := newMockPool(t)
	repo := NewWalletTransactionRepo(mock)
	entry := newTestWalletTx(uuid.New())
	tx := beginTx(t, mock)

	mock.ExpectQuery("SELECT .+ FROM wallet_transactions WHERE id = \\$1 FOR UPDATE").
		WithArgs(entry.ID).
		WillReturnRows(walletTxRow(pgxmock.NewRows(walletTxColumnNames()), entry))

	got, err := repo.GetByIDForUpdate(context.Background(), tx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.Category, got.Category)
	assert.Equal(t, *entry.CampaignID, *got.CampaignID)
	assert.Nil(t, got.PromotionID)
}

func TestWalletTransactionRepo_GetByIDForUpdate_NotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewWalletTransactionRepo(mock)
	tx := beginTx(t, mock)

	mock.ExpectQuery("SELECT .+ FROM wallet_transactions").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(walletTxColumnNames()))

	got, err := repo.GetByIDForUpdate(context.Background(), tx, uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestWalletTransactionRepo_UpdateStatus(t *testing.T) {
	mock := newMockPool(t)
	repo := NewWalletTransactionRepo(mock)
	id := uuid.New()
	tx := beginTx(t, mock)

	mock.ExpectExec("UPDATE wallet_transactions SET status .+ AND status = 'pending'").
		WithArgs(domain.TxStatusSuccessful, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), tx, id, domain.TxStatusSuccessful))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletTransactionRepo_UpdateStatus_AlreadySettled(t *testing.T) {
	mock := newMockPool(t)
	repo := NewWalletTransactionRepo(mock)
	tx := beginTx(t, mock)

	mock.ExpectExec("UPDATE wallet_transactions").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateStatus(context.Background(), tx, uuid.New(), domain.TxStatusFailed)
	assert.ErrorContains(t, err, "pending wallet transaction not found")
}

func TestWalletTransactionRepo_ListByUser(t *testing.T) {
	mock := newMockPool(t)
	repo := NewWalletTransactionRepo(mock)
	userID := uuid.New()
	wallet := domain.WalletMarketer
	first, second := newTestWalletTx(userID), newTestWalletTx(userID)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM wallet_transactions WHERE user_id = \\$1 AND wallet = \\$2").
		WithArgs(userID, wallet).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	rows := pgxmock.NewRows(walletTxColumnNames())
	walletTxRow(rows, first)
	walletTxRow(rows, second)
	mock.ExpectQuery("SELECT .+ FROM wallet_transactions WHERE user_id = \\$1 AND wallet = \\$2 ORDER BY created_at DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs(userID, wallet, 2, 2).
		WillReturnRows(rows)

	got, total, err := repo.ListByUser(context.Background(), ports.WalletTxListParams{
		UserID: userID, Wallet: &wallet, Page: 2, PageSize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
