package ports

import (
	"context"
	"time"

	"status-promo-marketplace/internal/core/domain"

	"github.com/google/uuid"
)

// --- Collaborator Ports (Infrastructure) ---

// TokenService validates JWTs issued by the external auth service.
type TokenService interface {
	Generate(userID uuid.UUID, roles []domain.Role) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Roles  []domain.Role
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// SweepLock is a lease lock that keeps concurrent instances from sweeping at once.
type SweepLock interface {
	// TryLock returns ok=false when another holder owns key. unlock is non-nil when ok.
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}

// RateLimiter counts requests in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// PaymentGateway sends money to bank accounts.
type PaymentGateway interface {
	ProcessPayment(ctx context.Context, req PayoutRequest) (*PayoutResult, error)
}

// PayoutRequest is one bank transfer.
type PayoutRequest struct {
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	Amount        int64  `json:"amount"`
	Reference     string `json:"reference"`
}

// PayoutResult is the gateway's answer. Success=false is a declined transfer.
type PayoutResult struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference"`
	Message   string `json:"message"`
}

// ProofValidator is the automated proof review service. A nil verdict with a
// nil error means validation is disabled.
type ProofValidator interface {
	ValidateProofSubmission(ctx context.Context, mediaURLs []string, promotion *domain.Promotion) (*ProofVerdict, error)
}

// ProofVerdict is the automated review outcome.
type ProofVerdict struct {
	IsValid    bool    `json:"is_valid"`
	Confidence float64 `json:"confidence"`
	Feedback   string  `json:"feedback"`
}

// FieldCipher seals sensitive columns at rest.
type FieldCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(sealed string) (string, error)
}

// EventPublisher fans notifications out to the notification service.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event Event) error
}

// Event topics.
const (
	TopicPromotions  = "promotions"
	TopicCampaigns   = "campaigns"
	TopicWithdrawals = "withdrawals"
)

// Event is a post-commit notification.
type Event struct {
	Type       string         `json:"type"`
	EntityID   uuid.UUID      `json:"entity_id"`
	UserIDs    []uuid.UUID    `json:"user_ids"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// --- Service Ports (Business Logic) ---

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID uuid.UUID
	Roles  []domain.Role
}

// PerformedBy returns the actor id for activity entries, nil for the system.
func (a Actor) PerformedBy() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	for _, r := range a.Roles {
		if r == domain.RoleAdmin {
			return true
		}
	}
	return false
}

// CampaignService defines campaign lifecycle and query logic.
type CampaignService interface {
	CreateCampaign(ctx context.Context, req CreateCampaignRequest) (*domain.Campaign, error)
	GetCampaign(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)
	ListCampaigns(ctx context.Context, params CampaignListParams) ([]domain.Campaign, int64, error)
	CampaignActivity(ctx context.Context, id uuid.UUID, limit int) ([]domain.ActivityEntry, error)
	UpdateCampaignStatus(ctx context.Context, req StatusChangeRequest) (*domain.Campaign, error)
	ArchiveCampaign(ctx context.Context, campaignID uuid.UUID, actor Actor) (*domain.Campaign, error)
	DeleteCampaign(ctx context.Context, campaignID uuid.UUID, actor Actor) error
}

// CreateCampaignRequest holds validated input for campaign creation.
type CreateCampaignRequest struct {
	OwnerID              uuid.UUID
	Title                string
	Description          string
	MediaURL             string
	Budget               int64
	PayoutPerPromotion   int64
	MinViewsPerPromotion *int
	StartDate            *time.Time
	EndDate              *time.Time
	Draft                bool
}

// StatusChangeRequest holds input for a campaign status change.
type StatusChangeRequest struct {
	CampaignID uuid.UUID
	Status     domain.CampaignStatus
	Actor      Actor
	Details    string
}

// PromotionService defines admission, proof and review logic.
type PromotionService interface {
	AssignPromoter(ctx context.Context, campaignID, promoterID uuid.UUID) (*domain.Promotion, error)
	MarkDownloaded(ctx context.Context, promotionID, promoterID uuid.UUID) (*domain.Promotion, error)
	SubmitProof(ctx context.Context, req SubmitProofRequest) (*domain.Promotion, error)
	ValidatePromotion(ctx context.Context, promotionID uuid.UUID, actor Actor) (*domain.Promotion, error)
	PayPromotion(ctx context.Context, promotionID uuid.UUID, actor Actor) (*domain.Promotion, error)
	ApproveAndPay(ctx context.Context, promotionID uuid.UUID, actor Actor) (*domain.Promotion, error)
	RejectPromotion(ctx context.Context, promotionID uuid.UUID, actor Actor, reason string) (*domain.Promotion, error)
	GetPromotion(ctx context.Context, id uuid.UUID) (*domain.Promotion, error)
	GetPromotionByUPI(ctx context.Context, upi string) (*domain.Promotion, error)
	ListPromotions(ctx context.Context, params PromotionListParams) ([]domain.Promotion, int64, error)
}

// SubmitProofRequest holds validated input for proof submission.
type SubmitProofRequest struct {
	PromotionID uuid.UUID
	PromoterID  uuid.UUID
	MediaURLs   []string
	Views       int
}

// ExpirationService sweeps promotions and campaigns whose time ran out.
type ExpirationService interface {
	ExpireStalePromotions(ctx context.Context) (*SweepResult, error)
	RunDailyCleanup(ctx context.Context) (*SweepResult, error)
}

// SweepResult summarises one sweeper pass.
type SweepResult struct {
	Candidates       int
	Expired          int
	Skipped          int
	Failed           int
	CampaignsExpired int
	LockNotAcquired  bool
}

// WalletService defines user provisioning, funding and wallet queries.
type WalletService interface {
	// ProvisionUser creates the caller's user row on first contact. created
	// is false when the user already existed.
	ProvisionUser(ctx context.Context, req ProvisionUserRequest) (user *domain.User, created bool, err error)
	Deposit(ctx context.Context, req DepositRequest) (*domain.WalletTransaction, error)
	GetWallets(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	ListTransactions(ctx context.Context, params WalletTxListParams) ([]domain.WalletTransaction, int64, error)
}

// ProvisionUserRequest carries the identity asserted by the auth service.
type ProvisionUserRequest struct {
	UserID   uuid.UUID
	Username string
	Email    string
	Roles    []domain.Role
}

// DepositRequest holds a gateway-confirmed funding.
type DepositRequest struct {
	UserID    uuid.UUID
	Wallet    domain.WalletKind
	Amount    int64
	Reference string
}

// WithdrawalService defines the bank payout saga.
type WithdrawalService interface {
	Withdraw(ctx context.Context, req WithdrawalRequest) (*domain.Withdrawal, error)
	GetWithdrawal(ctx context.Context, id, userID uuid.UUID) (*domain.Withdrawal, error)
}

// WithdrawalRequest holds validated input for a withdrawal.
type WithdrawalRequest struct {
	UserID        uuid.UUID
	Wallet        domain.WalletKind
	ReferenceID   string
	Amount        int64
	BankCode      string
	AccountNumber string
	AccountName   string
}
