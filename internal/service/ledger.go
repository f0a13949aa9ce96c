package service

import (
	"context"
	"fmt"
	"time"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"
	"status-promo-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Destination selects where TransferReserved credits the receiver.
type Destination int

const (
	ToReserved Destination = iota // escrow handoff
	ToBalance                     // final payout
)

// Transfer describes a reserved-to-reserved or reserved-to-balance move
// between two wallets. From and To may be the same user.
type Transfer struct {
	From           *domain.User
	FromWallet     domain.WalletKind
	To             *domain.User
	ToWallet       domain.WalletKind
	Amount         int64
	Dest           Destination
	DebitCategory  domain.TxCategory
	CreditCategory domain.TxCategory
	Refs           domain.TxRefs
}

// Ledger applies wallet mutations and writes their ledger entries. Every
// method runs inside the caller's transaction on users the caller already
// locked; nothing is persisted unless every check passes.
type Ledger struct {
	users ports.UserRepository
	txs   ports.WalletTransactionRepository
	now   func() time.Time
}

// NewLedger creates a Ledger.
func NewLedger(users ports.UserRepository, txs ports.WalletTransactionRepository) *Ledger {
	return &Ledger{users: users, txs: txs, now: func() time.Time { return time.Now().UTC() }}
}

// Reserve moves amount from balance into reserved.
func (l *Ledger) Reserve(ctx context.Context, tx pgx.Tx, user *domain.User, kind domain.WalletKind, amount int64, refs domain.TxRefs) error {
	if err := user.Wallet(kind).Reserve(amount); err != nil {
		return err
	}
	if err := l.persist(ctx, tx, user); err != nil {
		return err
	}
	_, err := l.record(ctx, tx, user.ID, kind, amount, domain.DirectionDebit, domain.CategoryCampaignReserve, domain.TxStatusSuccessful, refs)
	return err
}

// TransferReserved takes amount from the sender's reserve and credits the
// receiver's reserve or balance. Both sides are checked before either moves.
func (l *Ledger) TransferReserved(ctx context.Context, tx pgx.Tx, t Transfer) error {
	if t.Amount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	if err := t.From.Wallet(t.FromWallet).TakeReserved(t.Amount); err != nil {
		return err
	}
	to := t.To.Wallet(t.ToWallet)
	var err error
	if t.Dest == ToReserved {
		err = to.CreditReserved(t.Amount)
	} else {
		err = to.Credit(t.Amount)
	}
	if err != nil {
		return err
	}

	if err := l.persist(ctx, tx, t.From); err != nil {
		return err
	}
	if t.To.ID != t.From.ID {
		if err := l.persist(ctx, tx, t.To); err != nil {
			return err
		}
	}

	if _, err := l.record(ctx, tx, t.From.ID, t.FromWallet, t.Amount, domain.DirectionDebit, t.DebitCategory, domain.TxStatusSuccessful, t.Refs); err != nil {
		return err
	}
	_, err = l.record(ctx, tx, t.To.ID, t.ToWallet, t.Amount, domain.DirectionCredit, t.CreditCategory, domain.TxStatusSuccessful, t.Refs)
	return err
}

// HoldEscrow moves a payout from the marketer's reserve into the promoter's reserve.
func (l *Ledger) HoldEscrow(ctx context.Context, tx pgx.Tx, marketer, promoter *domain.User, amount int64, refs domain.TxRefs) error {
	return l.TransferReserved(ctx, tx, Transfer{
		From: marketer, FromWallet: domain.WalletMarketer,
		To: promoter, ToWallet: domain.WalletPromoter,
		Amount: amount, Dest: ToReserved,
		DebitCategory: domain.CategoryEscrowHold, CreditCategory: domain.CategoryEscrowReceive,
		Refs: refs,
	})
}

// ReturnEscrow moves a payout from the promoter's reserve back to the marketer's reserve.
func (l *Ledger) ReturnEscrow(ctx context.Context, tx pgx.Tx, promoter, marketer *domain.User, amount int64, refs domain.TxRefs) error {
	return l.TransferReserved(ctx, tx, Transfer{
		From: promoter, FromWallet: domain.WalletPromoter,
		To: marketer, ToWallet: domain.WalletMarketer,
		Amount: amount, Dest: ToReserved,
		DebitCategory: domain.CategoryEscrowReturn, CreditCategory: domain.CategoryEscrowReturn,
		Refs: refs,
	})
}

// ReleaseReserved moves amount from reserved to balance within one wallet.
// It is the promoter side of a payout.
func (l *Ledger) ReleaseReserved(ctx context.Context, tx pgx.Tx, user *domain.User, kind domain.WalletKind, amount int64, refs domain.TxRefs) error {
	return l.releaseAs(ctx, tx, user, kind, amount, domain.CategoryPayoutRelease, refs)
}

// RefundReservedToBalance returns unspent campaign budget to the owner.
func (l *Ledger) RefundReservedToBalance(ctx context.Context, tx pgx.Tx, user *domain.User, kind domain.WalletKind, amount int64, refs domain.TxRefs) error {
	return l.releaseAs(ctx, tx, user, kind, amount, domain.CategoryCampaignRefund, refs)
}

func (l *Ledger) releaseAs(ctx context.Context, tx pgx.Tx, user *domain.User, kind domain.WalletKind, amount int64, category domain.TxCategory, refs domain.TxRefs) error {
	if err := user.Wallet(kind).ReleaseReserved(amount); err != nil {
		return err
	}
	if err := l.persist(ctx, tx, user); err != nil {
		return err
	}
	_, err := l.record(ctx, tx, user.ID, kind, amount, domain.DirectionCredit, category, domain.TxStatusSuccessful, refs)
	return err
}

// Deposit credits gateway-confirmed funds to balance.
func (l *Ledger) Deposit(ctx context.Context, tx pgx.Tx, user *domain.User, kind domain.WalletKind, amount int64, refs domain.TxRefs) (*domain.WalletTransaction, error) {
	if err := user.Wallet(kind).Credit(amount); err != nil {
		return nil, err
	}
	if err := l.persist(ctx, tx, user); err != nil {
		return nil, err
	}
	return l.record(ctx, tx, user.ID, kind, amount, domain.DirectionCredit, domain.CategoryDeposit, domain.TxStatusSuccessful, refs)
}

// DebitPending removes amount from balance and records a pending withdrawal
// debit that Settle later resolves.
func (l *Ledger) DebitPending(ctx context.Context, tx pgx.Tx, user *domain.User, kind domain.WalletKind, amount int64, refs domain.TxRefs) (*domain.WalletTransaction, error) {
	if err := user.Wallet(kind).Debit(amount); err != nil {
		return nil, err
	}
	if err := l.persist(ctx, tx, user); err != nil {
		return nil, err
	}
	return l.record(ctx, tx, user.ID, kind, amount, domain.DirectionDebit, domain.CategoryWithdrawal, domain.TxStatusPending, refs)
}

// Settle resolves a pending entry. Only pending entries may settle.
func (l *Ledger) Settle(ctx context.Context, tx pgx.Tx, txID uuid.UUID, status domain.TxStatus) error {
	if status != domain.TxStatusSuccessful && status != domain.TxStatusFailed {
		return apperror.Validation(fmt.Sprintf("cannot settle to %q", status))
	}
	entry, err := l.txs.GetByIDForUpdate(ctx, tx, txID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock wallet transaction: %w", err))
	}
	if entry == nil {
		return apperror.ErrNotFound("Wallet transaction")
	}
	if !entry.CanSettle() {
		return apperror.ErrInvalidTransition("wallet transaction", string(entry.Status), string(status))
	}
	if err := l.txs.UpdateStatus(ctx, tx, txID, status); err != nil {
		return apperror.InternalError(fmt.Errorf("settle wallet transaction: %w", err))
	}
	return nil
}

// ReverseDebit credits back a failed withdrawal.
func (l *Ledger) ReverseDebit(ctx context.Context, tx pgx.Tx, user *domain.User, kind domain.WalletKind, amount int64, refs domain.TxRefs) error {
	if err := user.Wallet(kind).Credit(amount); err != nil {
		return err
	}
	if err := l.persist(ctx, tx, user); err != nil {
		return err
	}
	_, err := l.record(ctx, tx, user.ID, kind, amount, domain.DirectionCredit, domain.CategoryWithdrawalReversal, domain.TxStatusSuccessful, refs)
	return err
}

func (l *Ledger) persist(ctx context.Context, tx pgx.Tx, user *domain.User) error {
	user.UpdatedAt = l.now()
	if err := l.users.UpdateWallets(ctx, tx, user); err != nil {
		return apperror.InternalError(fmt.Errorf("update wallets: %w", err))
	}
	return nil
}

func (l *Ledger) record(ctx context.Context, tx pgx.Tx, userID uuid.UUID, kind domain.WalletKind, amount int64,
	dir domain.TxDirection, category domain.TxCategory, status domain.TxStatus, refs domain.TxRefs,
) (*domain.WalletTransaction, error) {
	now := l.now()
	entry := &domain.WalletTransaction{
		ID:           uuid.New(),
		UserID:       userID,
		Wallet:       kind,
		Amount:       amount,
		Direction:    dir,
		Category:     category,
		Description:  refs.Description,
		CampaignID:   refs.CampaignID,
		PromotionID:  refs.PromotionID,
		WithdrawalID: refs.WithdrawalID,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if refs.Reference != "" {
		ref := refs.Reference
		entry.Reference = &ref
	}
	if err := l.txs.Create(ctx, tx, entry); err != nil {
		return nil, asAppError(err, "create wallet transaction")
	}
	return entry, nil
}
