package memory

import (
	"context"
	"testing"
	"time"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"
	"status-promo-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, store *Store, balance int64) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:             uuid.New(),
		Username:       "user-" + uuid.NewString()[:8],
		Roles:          []domain.Role{domain.RoleMarketer},
		MarketerWallet: domain.Wallet{Balance: balance},
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, NewUserRepo(store).Create(context.Background(), u))
	return u
}

func TestStore_CommitPersists(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	users := NewUserRepo(store)
	u := seedUser(t, store, 500)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	locked, err := users.GetByIDForUpdate(ctx, tx, u.ID)
	require.NoError(t, err)
	require.NoError(t, locked.MarketerWallet.Reserve(200))
	require.NoError(t, users.UpdateWallets(ctx, tx, locked))
	require.NoError(t, tx.Commit(ctx))

	got, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Wallet{Balance: 300, Reserved: 200}, got.MarketerWallet)
}

func TestStore_RollbackRestoresEveryTable(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	users := NewUserRepo(store)
	campaigns := NewCampaignRepo(store)
	activity := NewActivityRepo(store)
	u := seedUser(t, store, 500)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	locked, err := users.GetByIDForUpdate(ctx, tx, u.ID)
	require.NoError(t, err)
	locked.MarketerWallet.Balance = 0
	require.NoError(t, users.UpdateWallets(ctx, tx, locked))

	c := &domain.Campaign{ID: uuid.New(), OwnerID: u.ID, Status: domain.CampaignActive}
	require.NoError(t, campaigns.Create(ctx, tx, c))
	require.NoError(t, activity.Append(ctx, tx, domain.NewActivity(domain.EntityCampaign, c.ID, domain.ActionCreated, nil, "", time.Now())))

	require.NoError(t, tx.Rollback(ctx))

	got, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), got.MarketerWallet.Balance)

	missing, err := campaigns.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	entries, err := activity.List(ctx, domain.EntityCampaign, c.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_UncommittedWritesAreInvisibleOutsideTx(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	users := NewUserRepo(store)
	withdrawals := NewWithdrawalRepo(store)
	u := seedUser(t, store, 500)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	locked, err := users.GetByIDForUpdate(ctx, tx, u.ID)
	require.NoError(t, err)
	locked.MarketerWallet.Balance = 100
	require.NoError(t, users.UpdateWallets(ctx, tx, locked))
	w := &domain.Withdrawal{ID: uuid.New(), UserID: u.ID, ReferenceID: "wd-1", Status: domain.WithdrawalPending}
	require.NoError(t, withdrawals.Create(ctx, tx, w))

	// The transaction sees its own writes.
	inTx, err := users.GetByIDForUpdate(ctx, tx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), inTx.MarketerWallet.Balance)

	// Pool reads do not block and only see committed data.
	outside, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), outside.MarketerWallet.Balance)
	byRef, err := withdrawals.GetByReference(ctx, u.ID, "wd-1")
	require.NoError(t, err)
	assert.Nil(t, byRef)

	require.NoError(t, tx.Rollback(ctx))

	after, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), after.MarketerWallet.Balance)
	byRef, err = withdrawals.GetByReference(ctx, u.ID, "wd-1")
	require.NoError(t, err)
	assert.Nil(t, byRef)
}

func TestWalletTransactionRepo_ReferenceUniquePerUserAndCategory(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewWalletTransactionRepo(store)
	u := seedUser(t, store, 0)
	ref := "PSK-REF-1"
	entry := func(category domain.TxCategory) *domain.WalletTransaction {
		return &domain.WalletTransaction{
			ID: uuid.New(), UserID: u.ID, Wallet: domain.WalletMarketer, Amount: 100,
			Direction: domain.DirectionCredit, Category: category, Reference: &ref, Status: domain.TxStatusSuccessful,
		}
	}

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	first := entry(domain.CategoryDeposit)
	require.NoError(t, repo.Create(ctx, tx, first))
	err = repo.Create(ctx, tx, entry(domain.CategoryDeposit))
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))
	require.NoError(t, repo.Create(ctx, tx, entry(domain.CategoryWithdrawal)))

	got, err := repo.GetByReference(ctx, tx, u.ID, domain.CategoryDeposit, ref)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
	require.NoError(t, tx.Commit(ctx))
}

func TestStore_RollbackAfterCommitIsNoop(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	assert.ErrorIs(t, tx.Rollback(ctx), pgx.ErrTxClosed)

	// The lock was released by Commit.
	tx2, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx2.Rollback(ctx))
}

func TestStore_RejectsClosedAndForeignTx(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	other := NewStore()
	campaigns := NewCampaignRepo(store)

	foreign, err := other.Begin(ctx)
	require.NoError(t, err)
	defer foreign.Rollback(ctx) //nolint:errcheck
	_, err = campaigns.GetByIDForUpdate(ctx, foreign, uuid.New())
	assert.ErrorIs(t, err, ErrForeignTx)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	err = campaigns.Create(ctx, tx, &domain.Campaign{ID: uuid.New()})
	assert.ErrorIs(t, err, pgx.ErrTxClosed)
}

func TestStore_BeginHonoursContext(t *testing.T) {
	store := NewStore()
	tx, err := store.Begin(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = store.Begin(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, tx.Commit(context.Background()))
	tx2, err := store.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx2.Commit(context.Background()))
}

func TestPromotionRepo_UniqueConstraints(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewPromotionRepo(store)
	campaignID, promoterID := uuid.New(), uuid.New()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx) //nolint:errcheck

	first := &domain.Promotion{ID: uuid.New(), CampaignID: campaignID, PromoterID: promoterID, UPI: "111111", Status: domain.PromotionPending}
	require.NoError(t, repo.Create(ctx, tx, first))

	dupPair := &domain.Promotion{ID: uuid.New(), CampaignID: campaignID, PromoterID: promoterID, UPI: "222222"}
	assert.True(t, apperror.IsKind(repo.Create(ctx, tx, dupPair), apperror.KindConflict))

	dupUPI := &domain.Promotion{ID: uuid.New(), CampaignID: uuid.New(), PromoterID: promoterID, UPI: "111111"}
	assert.True(t, apperror.IsKind(repo.Create(ctx, tx, dupUPI), apperror.KindConflict))

	exists, err := repo.ExistsForPair(ctx, tx, campaignID, promoterID)
	require.NoError(t, err)
	assert.True(t, exists)

	taken, err := repo.UPIExists(ctx, tx, "111111")
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestPromotionRepo_ListPendingCreatedBetween(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewPromotionRepo(store)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mk := func(age time.Duration, status domain.PromotionStatus) uuid.UUID {
		p := &domain.Promotion{
			ID: uuid.New(), CampaignID: uuid.New(), PromoterID: uuid.New(),
			UPI: uuid.NewString()[:6], Status: status, CreatedAt: now.Add(-age),
		}
		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, tx, p))
		require.NoError(t, tx.Commit(ctx))
		return p.ID
	}

	inWindow := mk(24*time.Hour+30*time.Minute, domain.PromotionPending)
	mk(24*time.Hour, domain.PromotionPending) // exactly 24h is not yet stale
	mk(24*time.Hour+10*time.Minute, domain.PromotionSubmitted)
	veryOld := mk(72*time.Hour, domain.PromotionPending)

	ids, err := repo.ListPendingCreatedBetween(ctx, now.Add(-25*time.Hour), now.Add(-24*time.Hour), 100)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{inWindow}, ids)

	ids, err = repo.ListPendingCreatedBetween(ctx, time.Time{}, now.Add(-48*time.Hour), 100)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{veryOld}, ids)
}

func TestCampaignRepo_ListFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewCampaignRepo(store)
	owner := uuid.New()
	base := time.Now().UTC()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		status := domain.CampaignActive
		if i%2 == 1 {
			status = domain.CampaignPaused
		}
		require.NoError(t, repo.Create(ctx, tx, &domain.Campaign{
			ID: uuid.New(), OwnerID: owner, Status: status, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Create(ctx, tx, &domain.Campaign{ID: uuid.New(), OwnerID: uuid.New(), Status: domain.CampaignActive}))
	require.NoError(t, tx.Commit(ctx))

	page, total, err := repo.List(ctx, ports.CampaignListParams{OwnerID: &owner, Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	active := domain.CampaignActive
	_, total, err = repo.List(ctx, ports.CampaignListParams{OwnerID: &owner, Status: &active})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestWalletTransactionRepo_SettlesOnce(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewWalletTransactionRepo(store)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx) //nolint:errcheck

	entry := &domain.WalletTransaction{ID: uuid.New(), UserID: uuid.New(), Amount: 10, Status: domain.TxStatusPending}
	require.NoError(t, repo.Create(ctx, tx, entry))
	require.NoError(t, repo.UpdateStatus(ctx, tx, entry.ID, domain.TxStatusSuccessful))
	assert.Error(t, repo.UpdateStatus(ctx, tx, entry.ID, domain.TxStatusFailed))
}

func TestWithdrawalRepo_ReferenceUniquePerUser(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewWithdrawalRepo(store)
	userID := uuid.New()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, tx, &domain.Withdrawal{ID: uuid.New(), UserID: userID, ReferenceID: "WD-1"}))
	err = repo.Create(ctx, tx, &domain.Withdrawal{ID: uuid.New(), UserID: userID, ReferenceID: "WD-1"})
	assert.Equal(t, "CON_003", err.(*apperror.AppError).Code)
	require.NoError(t, repo.Create(ctx, tx, &domain.Withdrawal{ID: uuid.New(), UserID: uuid.New(), ReferenceID: "WD-1"}))
	require.NoError(t, tx.Commit(ctx))

	got, err := repo.GetByReference(ctx, userID, "WD-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, userID, got.UserID)
}
