package domain

import (
	"time"

	"status-promo-marketplace/pkg/apperror"

	"github.com/google/uuid"
)

// WalletKind selects one of the two wallets every user carries.
type WalletKind string

const (
	WalletMarketer WalletKind = "marketer"
	WalletPromoter WalletKind = "promoter"
)

// IsValid reports whether k names a known wallet.
func (k WalletKind) IsValid() bool {
	return k == WalletMarketer || k == WalletPromoter
}

// Wallet holds spendable and earmarked funds in minor currency units.
// Both fields stay >= 0; every mutator checks before applying.
type Wallet struct {
	Balance  int64 `json:"balance"`
	Reserved int64 `json:"reserved"`
}

// Reserve moves amount from balance into reserved.
func (w *Wallet) Reserve(amount int64) error {
	if amount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	if w.Balance < amount {
		return apperror.ErrInsufficientFunds(w.Balance, amount)
	}
	w.Balance -= amount
	w.Reserved += amount
	return nil
}

// TakeReserved removes amount from reserved; the caller credits it elsewhere.
func (w *Wallet) TakeReserved(amount int64) error {
	if amount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	if w.Reserved < amount {
		return apperror.ErrInsufficientReservedFunds(w.Reserved, amount)
	}
	w.Reserved -= amount
	return nil
}

// ReleaseReserved moves amount from reserved back into balance.
func (w *Wallet) ReleaseReserved(amount int64) error {
	if err := w.TakeReserved(amount); err != nil {
		return err
	}
	w.Balance += amount
	return nil
}

// Credit adds amount to balance.
func (w *Wallet) Credit(amount int64) error {
	if amount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	w.Balance += amount
	return nil
}

// CreditReserved adds amount to reserved.
func (w *Wallet) CreditReserved(amount int64) error {
	if amount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	w.Reserved += amount
	return nil
}

// Debit removes amount from balance.
func (w *Wallet) Debit(amount int64) error {
	if amount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	if w.Balance < amount {
		return apperror.ErrInsufficientFunds(w.Balance, amount)
	}
	w.Balance -= amount
	return nil
}

// TxDirection is the sign of a ledger entry.
type TxDirection string

const (
	DirectionCredit TxDirection = "credit"
	DirectionDebit  TxDirection = "debit"
)

// TxCategory classifies a ledger entry.
type TxCategory string

const (
	CategoryDeposit            TxCategory = "deposit"
	CategoryCampaignReserve    TxCategory = "campaign_reserve"
	CategoryEscrowHold         TxCategory = "escrow_hold"
	CategoryEscrowReceive      TxCategory = "escrow_receive"
	CategoryEscrowReturn       TxCategory = "escrow_return"
	CategoryPayoutRelease      TxCategory = "payout_release"
	CategoryCampaignRefund     TxCategory = "campaign_refund"
	CategoryWithdrawal         TxCategory = "withdrawal"
	CategoryWithdrawalReversal TxCategory = "withdrawal_reversal"
)

// TxStatus is the settlement state of a ledger entry.
type TxStatus string

const (
	TxStatusPending    TxStatus = "pending"
	TxStatusSuccessful TxStatus = "successful"
	TxStatusFailed     TxStatus = "failed"
)

// WalletTransaction is an append-only ledger entry. Only Status may change,
// once, from pending to successful or failed.
type WalletTransaction struct {
	ID           uuid.UUID   `json:"id"`
	UserID       uuid.UUID   `json:"user_id"`
	Wallet       WalletKind  `json:"wallet"`
	Amount       int64       `json:"amount"` // minor units, > 0
	Direction    TxDirection `json:"direction"`
	Category     TxCategory  `json:"category"`
	Description  string      `json:"description"`
	CampaignID   *uuid.UUID  `json:"campaign_id,omitempty"`
	PromotionID  *uuid.UUID  `json:"promotion_id,omitempty"`
	WithdrawalID *uuid.UUID  `json:"withdrawal_id,omitempty"`
	Reference    *string     `json:"reference,omitempty"`
	Status       TxStatus    `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// CanSettle reports whether the entry may still move out of pending.
func (t *WalletTransaction) CanSettle() bool {
	return t.Status == TxStatusPending
}

// TxRefs links a ledger entry to the aggregates that caused it.
type TxRefs struct {
	CampaignID   *uuid.UUID
	PromotionID  *uuid.UUID
	WithdrawalID *uuid.UUID
	Description  string
	// Reference is an external payment reference, unique per user and
	// category. Deposits use it to detect replays.
	Reference string
}
