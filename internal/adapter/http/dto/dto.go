package dto

import (
	"time"

	"status-promo-marketplace/internal/core/domain"

	"github.com/google/uuid"
)

// CreateCampaignRequest is the request body for campaign creation.
type CreateCampaignRequest struct {
	Title                string     `json:"title" binding:"required,min=3,max=120"`
	Description          string     `json:"description" binding:"max=2000"`
	MediaURL             string     `json:"media_url" binding:"omitempty,safe_url" sanitize:"trim"`
	Budget               int64      `json:"budget" binding:"required,gt=0"`
	PayoutPerPromotion   int64      `json:"payout_per_promotion" binding:"required,gt=0"`
	MinViewsPerPromotion *int       `json:"min_views_per_promotion,omitempty" binding:"omitempty,gte=0"`
	StartDate            *time.Time `json:"start_date,omitempty"`
	EndDate              *time.Time `json:"end_date,omitempty"`
	Draft                bool       `json:"draft"`
}

// UpdateCampaignStatusRequest is the request body for a status change.
type UpdateCampaignStatusRequest struct {
	Status  string `json:"status" binding:"required"`
	Details string `json:"details" binding:"max=500"`
}

// SubmitProofRequest is the request body for proof submission.
type SubmitProofRequest struct {
	MediaURLs []string `json:"media_urls" binding:"required,min=1,max=10,dive,required,safe_url"`
	Views     int      `json:"views" binding:"gte=0"`
}

// RejectPromotionRequest is the request body for rejecting a promotion.
type RejectPromotionRequest struct {
	Reason string `json:"reason" binding:"required,min=3,max=500"`
}

// ProvisionUserRequest is the optional profile sent on first contact.
type ProvisionUserRequest struct {
	Username string `json:"username" binding:"omitempty,min=3,max=50,safe_id"`
	Email    string `json:"email" binding:"omitempty,email" sanitize:"trim"`
}

// DepositRequest is the request body for crediting a gateway-confirmed payment.
type DepositRequest struct {
	UserID    uuid.UUID `json:"user_id" binding:"required"`
	Wallet    string    `json:"wallet" binding:"omitempty,oneof=marketer promoter"`
	Amount    int64     `json:"amount" binding:"required,gt=0"`
	Reference string    `json:"reference" binding:"required,max=100,safe_id"`
}

// WithdrawalRequest is the request body for a bank withdrawal.
type WithdrawalRequest struct {
	ReferenceID   string `json:"reference_id" binding:"required,max=100,safe_id"`
	Wallet        string `json:"wallet" binding:"omitempty,oneof=marketer promoter"`
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	BankCode      string `json:"bank_code" binding:"required,max=20,safe_id"`
	AccountNumber string `json:"account_number" binding:"required,min=6,max=34,numeric"`
	AccountName   string `json:"account_name" binding:"required,max=100"`
}

// WalletsResponse is the response for the caller's two wallets.
type WalletsResponse struct {
	UserID   uuid.UUID     `json:"user_id"`
	Marketer domain.Wallet `json:"marketer"`
	Promoter domain.Wallet `json:"promoter"`
}

// WithdrawalResponse hides all but the last four account digits.
type WithdrawalResponse struct {
	ID               uuid.UUID `json:"id"`
	ReferenceID      string    `json:"reference_id"`
	Wallet           string    `json:"wallet"`
	Amount           int64     `json:"amount"`
	Fee              int64     `json:"fee"`
	TotalDebit       int64     `json:"total_debit"`
	BankCode         string    `json:"bank_code"`
	AccountNumber    string    `json:"account_number"`
	AccountName      string    `json:"account_name"`
	Status           string    `json:"status"`
	GatewayReference *string   `json:"gateway_reference,omitempty"`
	FailureReason    *string   `json:"failure_reason,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewWithdrawalResponse converts a withdrawal for output.
func NewWithdrawalResponse(w *domain.Withdrawal) WithdrawalResponse {
	return WithdrawalResponse{
		ID:               w.ID,
		ReferenceID:      w.ReferenceID,
		Wallet:           string(w.Wallet),
		Amount:           w.Amount,
		Fee:              w.Fee,
		TotalDebit:       w.TotalDebit,
		BankCode:         w.BankCode,
		AccountNumber:    MaskAccountNumber(w.AccountNumber),
		AccountName:      w.AccountName,
		Status:           string(w.Status),
		GatewayReference: w.GatewayReference,
		FailureReason:    w.FailureReason,
		CreatedAt:        w.CreatedAt,
		UpdatedAt:        w.UpdatedAt,
	}
}

// MaskAccountNumber keeps the last four characters.
func MaskAccountNumber(s string) string {
	return domain.MaskAccountNumber(s)
}

// ListResponse wraps a paginated list.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewListResponse builds the page envelope; a nil items slice renders as [].
func NewListResponse[T any](items []T, total int64, page, pageSize int) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return ListResponse[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
