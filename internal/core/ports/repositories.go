package ports

import (
	"context"
	"time"

	"status-promo-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Read methods return (nil, nil) when the row does not exist.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.

// UserRepository defines persistence operations for users and their wallets.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error)
	UpdateWallets(ctx context.Context, tx pgx.Tx, user *domain.User) error
}

// WalletTransactionRepository defines persistence for the append-only ledger.
type WalletTransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.WalletTransaction) error
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WalletTransaction, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TxStatus) error
	// GetByReference returns nil, nil when no entry carries the reference.
	GetByReference(ctx context.Context, tx pgx.Tx, userID uuid.UUID, category domain.TxCategory, reference string) (*domain.WalletTransaction, error)
	ListByUser(ctx context.Context, params WalletTxListParams) ([]domain.WalletTransaction, int64, error)
}

// WalletTxListParams holds filter + pagination for ledger history.
type WalletTxListParams struct {
	UserID   uuid.UUID
	Wallet   *domain.WalletKind
	Page     int
	PageSize int
}

// CampaignRepository defines persistence operations for campaigns.
type CampaignRepository interface {
	Create(ctx context.Context, tx pgx.Tx, campaign *domain.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Campaign, error)
	Update(ctx context.Context, tx pgx.Tx, campaign *domain.Campaign) error
	Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	List(ctx context.Context, params CampaignListParams) ([]domain.Campaign, int64, error)
	// ListEndedBefore returns ids of campaigns in one of statuses whose end date is before t.
	ListEndedBefore(ctx context.Context, t time.Time, statuses []domain.CampaignStatus, limit int) ([]uuid.UUID, error)
}

// CampaignListParams holds filter + pagination for listing campaigns.
type CampaignListParams struct {
	OwnerID  *uuid.UUID
	Status   *domain.CampaignStatus
	Page     int
	PageSize int
}

// PromotionRepository defines persistence operations for promotions.
type PromotionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, promotion *domain.Promotion) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Promotion, error)
	GetByUPI(ctx context.Context, upi string) (*domain.Promotion, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Promotion, error)
	ExistsForPair(ctx context.Context, tx pgx.Tx, campaignID, promoterID uuid.UUID) (bool, error)
	UPIExists(ctx context.Context, tx pgx.Tx, upi string) (bool, error)
	CountByCampaign(ctx context.Context, tx pgx.Tx, campaignID uuid.UUID) (int, error)
	Update(ctx context.Context, tx pgx.Tx, promotion *domain.Promotion) error
	List(ctx context.Context, params PromotionListParams) ([]domain.Promotion, int64, error)
	// ListPendingCreatedBetween returns ids of pending promotions with after < created_at < before.
	// A zero after means no lower bound.
	ListPendingCreatedBetween(ctx context.Context, after, before time.Time, limit int) ([]uuid.UUID, error)
}

// PromotionListParams holds filter + pagination for listing promotions.
type PromotionListParams struct {
	CampaignID *uuid.UUID
	PromoterID *uuid.UUID
	Status     *domain.PromotionStatus
	Page       int
	PageSize   int
}

// ActivityRepository persists the campaign/promotion history.
type ActivityRepository interface {
	Append(ctx context.Context, tx pgx.Tx, entries ...domain.ActivityEntry) error
	List(ctx context.Context, entity domain.EntityType, entityID uuid.UUID, limit int) ([]domain.ActivityEntry, error)
}

// WithdrawalRepository defines persistence operations for withdrawals.
type WithdrawalRepository interface {
	Create(ctx context.Context, tx pgx.Tx, withdrawal *domain.Withdrawal) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error)
	GetByReference(ctx context.Context, userID uuid.UUID, referenceID string) (*domain.Withdrawal, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Withdrawal, error)
	Update(ctx context.Context, tx pgx.Tx, withdrawal *domain.Withdrawal) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
