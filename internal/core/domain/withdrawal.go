package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WithdrawalStatus represents the saga state of a payout to a bank account.
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalCompleted WithdrawalStatus = "completed"
	WithdrawalFailed    WithdrawalStatus = "failed"
)

// IsTerminal returns true if the withdrawal is in a final state.
func (s WithdrawalStatus) IsTerminal() bool {
	return s == WithdrawalCompleted || s == WithdrawalFailed
}

// Withdrawal moves spendable funds out to a bank account through the
// payment gateway. TotalDebit = Amount + Fee.
type Withdrawal struct {
	ID                 uuid.UUID        `json:"id"`
	UserID             uuid.UUID        `json:"user_id"`
	Wallet             WalletKind       `json:"wallet"`
	ReferenceID        string           `json:"reference_id"`
	Amount             int64            `json:"amount"`
	Fee                int64            `json:"fee"`
	TotalDebit         int64            `json:"total_debit"`
	BankCode           string           `json:"bank_code"`
	AccountNumber      string           `json:"account_number"`
	AccountName        string           `json:"account_name"`
	Status             WithdrawalStatus `json:"status"`
	GatewayReference   *string          `json:"gateway_reference,omitempty"`
	FailureReason      *string          `json:"failure_reason,omitempty"`
	DebitTransactionID uuid.UUID        `json:"debit_transaction_id"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// Masked returns a copy whose account number only shows the last four
// characters. Copies that leave the database go out masked.
func (w Withdrawal) Masked() Withdrawal {
	w.AccountNumber = MaskAccountNumber(w.AccountNumber)
	return w
}

// MaskAccountNumber keeps the last four characters. Masking an already
// masked number is a no-op.
func MaskAccountNumber(s string) string {
	if len(s) <= 4 {
		return s
	}
	masked := make([]byte, len(s))
	for i := range masked[:len(s)-4] {
		masked[i] = '*'
	}
	copy(masked[len(s)-4:], s[len(s)-4:])
	return string(masked)
}

// FeePolicy prices a withdrawal as max(ceil(amount * Rate), Minimum).
type FeePolicy struct {
	Rate    decimal.Decimal
	Minimum int64
}

// Fee returns the fee for amount in minor units.
func (p FeePolicy) Fee(amount int64) int64 {
	pct := decimal.NewFromInt(amount).Mul(p.Rate).Ceil().IntPart()
	if pct < p.Minimum {
		return p.Minimum
	}
	return pct
}

// BuildWithdrawalIdempotencyKey scopes a client reference to its user.
func BuildWithdrawalIdempotencyKey(userID uuid.UUID, referenceID string) string {
	return userID.String() + ":withdrawal:" + referenceID
}
