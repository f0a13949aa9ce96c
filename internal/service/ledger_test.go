package service

import (
	"context"
	"testing"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withTx runs fn in a transaction and commits only if fn succeeds.
func (m *marketplace) withTx(fn func(ctx context.Context, tx pgx.Tx, users map[uuid.UUID]*domain.User) error, ids ...uuid.UUID) error {
	ctx := context.Background()
	tx, err := m.store.Begin(ctx)
	require.NoError(m.t, err)
	defer tx.Rollback(ctx) //nolint:errcheck

	users, err := lockUsers(ctx, tx, m.repos.Users, ids...)
	require.NoError(m.t, err)
	if err := fn(ctx, tx, users); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func TestLedger_ReserveMovesBalanceAndRecordsDebit(t *testing.T) {
	m := newMarketplace(t)
	mk := m.marketer("acme", 1000)

	err := m.withTx(func(ctx context.Context, tx pgx.Tx, users map[uuid.UUID]*domain.User) error {
		return m.ledger.Reserve(ctx, tx, users[mk.ID], domain.WalletMarketer, 400, domain.TxRefs{Description: "hold"})
	}, mk.ID)
	require.NoError(t, err)

	u := m.user(mk.ID)
	assert.Equal(t, domain.Wallet{Balance: 600, Reserved: 400}, u.MarketerWallet)

	entries := m.ledgerOf(mk.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.CategoryCampaignReserve, entries[0].Category)
	assert.Equal(t, domain.DirectionDebit, entries[0].Direction)
	assert.Equal(t, int64(400), entries[0].Amount)
	assert.Equal(t, domain.TxStatusSuccessful, entries[0].Status)
}

func TestLedger_ReserveInsufficientLeavesNothing(t *testing.T) {
	m := newMarketplace(t)
	mk := m.marketer("acme", 100)

	err := m.withTx(func(ctx context.Context, tx pgx.Tx, users map[uuid.UUID]*domain.User) error {
		return m.ledger.Reserve(ctx, tx, users[mk.ID], domain.WalletMarketer, 101, domain.TxRefs{})
	}, mk.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindInsufficientFunds))

	assert.Equal(t, domain.Wallet{Balance: 100}, m.user(mk.ID).MarketerWallet)
	assert.Empty(t, m.ledgerOf(mk.ID))
}

func TestLedger_EscrowRoundTripBalances(t *testing.T) {
	m := newMarketplace(t)
	mk := m.newUser("acme", 0, 0, domain.RoleMarketer)
	pr := m.promoter("pat")
	require.NoError(t, m.withTx(func(ctx context.Context, tx pgx.Tx, users map[uuid.UUID]*domain.User) error {
		if _, err := m.ledger.Deposit(ctx, tx, users[mk.ID], domain.WalletMarketer, 500, domain.TxRefs{}); err != nil {
			return err
		}
		return m.ledger.Reserve(ctx, tx, users[mk.ID], domain.WalletMarketer, 500, domain.TxRefs{})
	}, mk.ID))

	promotionID := uuid.New()
	refs := domain.TxRefs{PromotionID: &promotionID}
	require.NoError(t, m.withTx(func(ctx context.Context, tx pgx.Tx, users map[uuid.UUID]*domain.User) error {
		return m.ledger.HoldEscrow(ctx, tx, users[mk.ID], users[pr.ID], 200, refs)
	}, mk.ID, pr.ID))

	assert.Equal(t, int64(300), m.user(mk.ID).MarketerWallet.Reserved)
	assert.Equal(t, int64(200), m.user(pr.ID).PromoterWallet.Reserved)

	require.NoError(t, m.withTx(func(ctx context.Context, tx pgx.Tx, users map[uuid.UUID]*domain.User) error {
		return m.ledger.ReturnEscrow(ctx, tx, users[pr.ID], users[mk.ID], 200, refs)
	}, mk.ID, pr.ID))

	assert.Equal(t, int64(500), m.user(mk.ID).MarketerWallet.Reserved)
	assert.Equal(t, int64(0), m.user(pr.ID).PromoterWallet.Reserved)

	// Paired entries for the promotion net to zero.
	var debits, credits int64
	for _, id := range []uuid.UUID{mk.ID, pr.ID} {
		for _, e := range m.ledgerOf(id) {
			if e.PromotionID == nil || *e.PromotionID != promotionID {
				continue
			}
			if e.Direction == domain.DirectionDebit {
				debits += e.Amount
			} else {
				credits += e.Amount
			}
		}
	}
	assert.Equal(t, int64(400), debits)
	assert.Equal(t, debits, credits)
}

// Marketer reserve 500, payouts of 200: two holds succeed, the third finds
// only 100 left.
func TestLedger_HoldEscrowRunsOutOfReserve(t *testing.T) {
	m := newMarketplace(t)
	mk := m.marketer("acme", 500)
	a := m.promoter("a")
	b := m.promoter("b")
	c := m.promoter("c")
	require.NoError(t, m.withTx(func(ctx context.Context, tx pgx.Tx, users map[uuid.UUID]*domain.User) error {
		return m.ledger.Reserve(ctx, tx, users[mk.ID], domain.WalletMarketer, 500, domain.TxRefs{})
	}, mk.ID))

	hold := func(p *domain.User) error {
		return m.withTx(func(ctx context.Context, tx pgx.Tx, users map[uuid.UUID]*domain.User) error {
			return m.ledger.HoldEscrow(ctx, tx, users[mk.ID], users[p.ID], 200, domain.TxRefs{})
		}, mk.ID, p.ID)
	}

	require.NoError(t, hold(a))
	assert.Equal(t, int64(300), m.user(mk.ID).MarketerWallet.Reserved)
	assert.Equal(t, int64(200), m.user(a.ID).PromoterWallet.Reserved)

	require.NoError(t, hold(b))
	assert.Equal(t, int64(100), m.user(mk.ID).MarketerWallet.Reserved)
	assert.Equal(t, int64(200), m.user(b.ID).PromoterWallet.Reserved)

	err := hold(c)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindInsufficientReservedFunds))
	assert.Equal(t, int64(100), m.user(mk.ID).MarketerWallet.Reserved)
	assert.Equal(t, int64(0), m.user(c.ID).PromoterWallet.Reserved)
	assert.Empty(t, m.ledgerOf(c.ID))
}

func TestLedger_TransferToSameUserAcrossWallets(t *testing.T) {
	m := newMarketplace(t)
	both := m.newUser("both", 300, 0, domain.RoleMarketer, domain.RolePromoter)
	require.NoError(t, m.withTx(func(ctx context.Context, tx pgx.Tx, users map[uuid.UUID]*domain.User) error {
		u := users[both.ID]
		if err := m.ledger.Reserve(ctx, tx, u, domain.WalletMarketer, 300, domain.TxRefs{}); err != nil {
			return err
		}
		return m.ledger.HoldEscrow(ctx, tx, u, u, 100, domain.TxRefs{})
	}, both.ID))

	u := m.user(both.ID)
	assert.Equal(t, domain.Wallet{Balance: 0, Reserved: 200}, u.MarketerWallet)
	assert.Equal(t, domain.Wallet{Balance: 0, Reserved: 100}, u.PromoterWallet)
}

func TestLedger_ReleaseAndRefund(t *testing.T) {
	m := newMarketplace(t)
	u := m.newUser("u", 500, 0, domain.RoleMarketer, domain.RolePromoter)
	require.NoError(t, m.withTx(func(ctx context.Context, tx pgx.Tx, users map[uuid.UUID]*domain.User) error {
		x := users[u.ID]
		if err := m.ledger.Reserve(ctx, tx, x, domain.WalletMarketer, 500, domain.TxRefs{}); err != nil {
			return err
		}
		if err := m.ledger.HoldEscrow(ctx, tx, x, x, 200, domain.TxRefs{}); err != nil {
			return err
		}
		if err := m.ledger.ReleaseReserved(ctx, tx, x, domain.WalletPromoter, 200, domain.TxRefs{}); err != nil {
			return err
		}
		return m.ledger.RefundReservedToBalance(ctx, tx, x, domain.WalletMarketer, 300, domain.TxRefs{})
	}, u.ID))

	got := m.user(u.ID)
	assert.Equal(t, domain.Wallet{Balance: 300}, got.MarketerWallet)
	assert.Equal(t, domain.Wallet{Balance: 200}, got.PromoterWallet)

	categories := map[domain.TxCategory]int{}
	for _, e := range m.ledgerOf(u.ID) {
		categories[e.Category]++
	}
	assert.Equal(t, 1, categories[domain.CategoryPayoutRelease])
	assert.Equal(t, 1, categories[domain.CategoryCampaignRefund])
	assert.Equal(t, 1, categories[domain.CategoryEscrowHold])
	assert.Equal(t, 1, categories[domain.CategoryEscrowReceive])
}

func TestLedger_SettleOnlyOnce(t *testing.T) {
	m := newMarketplace(t)
	u := m.newUser("u", 0, 1000, domain.RolePromoter)

	var entry *domain.WalletTransaction
	require.NoError(t, m.withTx(func(ctx context.Context, tx pgx.Tx, users map[uuid.UUID]*domain.User) error {
		var err error
		entry, err = m.ledger.DebitPending(ctx, tx, users[u.ID], domain.WalletPromoter, 600, domain.TxRefs{})
		return err
	}, u.ID))
	assert.Equal(t, domain.TxStatusPending, entry.Status)
	assert.Equal(t, int64(400), m.user(u.ID).PromoterWallet.Balance)

	require.NoError(t, m.withTx(func(ctx context.Context, tx pgx.Tx, _ map[uuid.UUID]*domain.User) error {
		return m.ledger.Settle(ctx, tx, entry.ID, domain.TxStatusSuccessful)
	}))

	err := m.withTx(func(ctx context.Context, tx pgx.Tx, _ map[uuid.UUID]*domain.User) error {
		return m.ledger.Settle(ctx, tx, entry.ID, domain.TxStatusFailed)
	})
	assert.True(t, apperror.IsKind(err, apperror.KindInvalidTransition))

	err = m.withTx(func(ctx context.Context, tx pgx.Tx, _ map[uuid.UUID]*domain.User) error {
		return m.ledger.Settle(ctx, tx, entry.ID, domain.TxStatusPending)
	})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	err = m.withTx(func(ctx context.Context, tx pgx.Tx, _ map[uuid.UUID]*domain.User) error {
		return m.ledger.Settle(ctx, tx, uuid.New(), domain.TxStatusFailed)
	})
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestLedger_ReverseDebitRestoresBalance(t *testing.T) {
	m := newMarketplace(t)
	u := m.newUser("u", 0, 1000, domain.RolePromoter)

	require.NoError(t, m.withTx(func(ctx context.Context, tx pgx.Tx, users map[uuid.UUID]*domain.User) error {
		entry, err := m.ledger.DebitPending(ctx, tx, users[u.ID], domain.WalletPromoter, 1000, domain.TxRefs{})
		if err != nil {
			return err
		}
		if err := m.ledger.Settle(ctx, tx, entry.ID, domain.TxStatusFailed); err != nil {
			return err
		}
		return m.ledger.ReverseDebit(ctx, tx, users[u.ID], domain.WalletPromoter, 1000, domain.TxRefs{})
	}, u.ID))

	assert.Equal(t, int64(1000), m.user(u.ID).PromoterWallet.Balance)
	byCategory := map[domain.TxCategory]domain.WalletTransaction{}
	for _, e := range m.ledgerOf(u.ID) {
		byCategory[e.Category] = e
	}
	require.Len(t, byCategory, 2)
	assert.Equal(t, domain.TxStatusFailed, byCategory[domain.CategoryWithdrawal].Status)
	assert.Equal(t, domain.DirectionCredit, byCategory[domain.CategoryWithdrawalReversal].Direction)
}

func TestLedger_RejectsNonPositiveTransfer(t *testing.T) {
	m := newMarketplace(t)
	a := m.marketer("a", 100)
	b := m.promoter("b")

	err := m.withTx(func(ctx context.Context, tx pgx.Tx, users map[uuid.UUID]*domain.User) error {
		return m.ledger.HoldEscrow(ctx, tx, users[a.ID], users[b.ID], 0, domain.TxRefs{})
	}, a.ID, b.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}
