package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CampaignRepo implements ports.CampaignRepository.
type CampaignRepo struct {
	store *Store
}

// NewCampaignRepo creates a CampaignRepo over store.
func NewCampaignRepo(store *Store) *CampaignRepo {
	return &CampaignRepo{store: store}
}

// Create inserts a campaign.
func (r *CampaignRepo) Create(ctx context.Context, tx pgx.Tx, c *domain.Campaign) error {
	return r.store.write(tx, func(db *tables) error {
		if _, ok := db.campaigns[c.ID]; ok {
			return fmt.Errorf("insert campaign: duplicate id %s", c.ID)
		}
		db.campaigns[c.ID] = *c
		return nil
	})
}

// GetByID fetches a campaign without locking.
func (r *CampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	return r.get(nil, id)
}

// GetByIDForUpdate fetches a campaign inside tx.
func (r *CampaignRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Campaign, error) {
	return r.get(tx, id)
}

func (r *CampaignRepo) get(tx pgx.Tx, id uuid.UUID) (*domain.Campaign, error) {
	var out *domain.Campaign
	err := r.store.read(tx, func(db *tables) error {
		if c, ok := db.campaigns[id]; ok {
			out = &c
		}
		return nil
	})
	return out, err
}

// Update overwrites the mutable campaign columns.
func (r *CampaignRepo) Update(ctx context.Context, tx pgx.Tx, c *domain.Campaign) error {
	return r.store.write(tx, func(db *tables) error {
		if _, ok := db.campaigns[c.ID]; !ok {
			return fmt.Errorf("campaign not found: %s", c.ID)
		}
		db.campaigns[c.ID] = *c
		return nil
	})
}

// Delete removes a campaign.
func (r *CampaignRepo) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	return r.store.write(tx, func(db *tables) error {
		if _, ok := db.campaigns[id]; !ok {
			return fmt.Errorf("campaign not found: %s", id)
		}
		delete(db.campaigns, id)
		return nil
	})
}

// List returns campaigns matching params, newest first.
func (r *CampaignRepo) List(ctx context.Context, params ports.CampaignListParams) ([]domain.Campaign, int64, error) {
	var result []domain.Campaign
	_ = r.store.read(nil, func(db *tables) error {
		for _, c := range db.campaigns {
			if params.OwnerID != nil && c.OwnerID != *params.OwnerID {
				continue
			}
			if params.Status != nil && c.Status != *params.Status {
				continue
			}
			result = append(result, c)
		}
		return nil
	})
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return paginate(result, params.Page, params.PageSize), int64(len(result)), nil
}

// ListEndedBefore returns campaigns in statuses whose end date is before t.
func (r *CampaignRepo) ListEndedBefore(ctx context.Context, t time.Time, statuses []domain.CampaignStatus, limit int) ([]uuid.UUID, error) {
	var matches []domain.Campaign
	_ = r.store.read(nil, func(db *tables) error {
		for _, c := range db.campaigns {
			if c.EndDate == nil || !c.EndDate.Before(t) || !containsStatus(statuses, c.Status) {
				continue
			}
			matches = append(matches, c)
		}
		return nil
	})
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].EndDate.Before(*matches[j].EndDate)
	})
	ids := make([]uuid.UUID, 0, len(matches))
	for _, c := range matches {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func containsStatus(statuses []domain.CampaignStatus, s domain.CampaignStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}
