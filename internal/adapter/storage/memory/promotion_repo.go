package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"
	"status-promo-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PromotionRepo implements ports.PromotionRepository.
type PromotionRepo struct {
	store *Store
}

// NewPromotionRepo creates a PromotionRepo over store.
func NewPromotionRepo(store *Store) *PromotionRepo {
	return &PromotionRepo{store: store}
}

func clonePromotion(p domain.Promotion) *domain.Promotion {
	p.ProofMedia = append([]string{}, p.ProofMedia...)
	return &p
}

// Create inserts a promotion, enforcing the (campaign, promoter) and UPI
// uniqueness the SQL schema enforces with indexes.
func (r *PromotionRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Promotion) error {
	return r.store.write(tx, func(db *tables) error {
		for _, existing := range db.promotions {
			if existing.CampaignID == p.CampaignID && existing.PromoterID == p.PromoterID {
				return apperror.ErrDuplicatePromotion()
			}
			if existing.UPI == p.UPI {
				return apperror.ErrUPITaken().WithDetail("upi", p.UPI)
			}
		}
		db.promotions[p.ID] = *clonePromotion(*p)
		return nil
	})
}

// GetByID fetches a promotion without locking.
func (r *PromotionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Promotion, error) {
	return r.get(nil, id)
}

// GetByIDForUpdate fetches a promotion inside tx.
func (r *PromotionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Promotion, error) {
	return r.get(tx, id)
}

func (r *PromotionRepo) get(tx pgx.Tx, id uuid.UUID) (*domain.Promotion, error) {
	var out *domain.Promotion
	err := r.store.read(tx, func(db *tables) error {
		if p, ok := db.promotions[id]; ok {
			out = clonePromotion(p)
		}
		return nil
	})
	return out, err
}

// GetByUPI fetches a promotion by its tracking code.
func (r *PromotionRepo) GetByUPI(ctx context.Context, upi string) (*domain.Promotion, error) {
	var out *domain.Promotion
	_ = r.store.read(nil, func(db *tables) error {
		for _, p := range db.promotions {
			if p.UPI == upi {
				out = clonePromotion(p)
				return nil
			}
		}
		return nil
	})
	return out, nil
}

// ExistsForPair reports whether the promoter already holds a promotion on the campaign.
func (r *PromotionRepo) ExistsForPair(ctx context.Context, tx pgx.Tx, campaignID, promoterID uuid.UUID) (bool, error) {
	found := false
	err := r.store.read(tx, func(db *tables) error {
		for _, p := range db.promotions {
			if p.CampaignID == campaignID && p.PromoterID == promoterID {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

// UPIExists reports whether upi is taken.
func (r *PromotionRepo) UPIExists(ctx context.Context, tx pgx.Tx, upi string) (bool, error) {
	found := false
	err := r.store.read(tx, func(db *tables) error {
		for _, p := range db.promotions {
			if p.UPI == upi {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

// CountByCampaign counts all promotions ever created on a campaign.
func (r *PromotionRepo) CountByCampaign(ctx context.Context, tx pgx.Tx, campaignID uuid.UUID) (int, error) {
	n := 0
	err := r.store.read(tx, func(db *tables) error {
		for _, p := range db.promotions {
			if p.CampaignID == campaignID {
				n++
			}
		}
		return nil
	})
	return n, err
}

// Update overwrites the mutable promotion columns.
func (r *PromotionRepo) Update(ctx context.Context, tx pgx.Tx, p *domain.Promotion) error {
	return r.store.write(tx, func(db *tables) error {
		if _, ok := db.promotions[p.ID]; !ok {
			return fmt.Errorf("promotion not found: %s", p.ID)
		}
		db.promotions[p.ID] = *clonePromotion(*p)
		return nil
	})
}

// List returns promotions matching params, newest first.
func (r *PromotionRepo) List(ctx context.Context, params ports.PromotionListParams) ([]domain.Promotion, int64, error) {
	var result []domain.Promotion
	_ = r.store.read(nil, func(db *tables) error {
		for _, p := range db.promotions {
			if params.CampaignID != nil && p.CampaignID != *params.CampaignID {
				continue
			}
			if params.PromoterID != nil && p.PromoterID != *params.PromoterID {
				continue
			}
			if params.Status != nil && p.Status != *params.Status {
				continue
			}
			result = append(result, *clonePromotion(p))
		}
		return nil
	})
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return paginate(result, params.Page, params.PageSize), int64(len(result)), nil
}

// ListPendingCreatedBetween returns pending promotions with after < created_at < before, oldest first.
func (r *PromotionRepo) ListPendingCreatedBetween(ctx context.Context, after, before time.Time, limit int) ([]uuid.UUID, error) {
	var matches []domain.Promotion
	_ = r.store.read(nil, func(db *tables) error {
		for _, p := range db.promotions {
			if p.Status != domain.PromotionPending || !p.CreatedAt.Before(before) {
				continue
			}
			if !after.IsZero() && !p.CreatedAt.After(after) {
				continue
			}
			matches = append(matches, p)
		}
		return nil
	})
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
	ids := make([]uuid.UUID, 0, len(matches))
	for _, p := range matches {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, p.ID)
	}
	return ids, nil
}
