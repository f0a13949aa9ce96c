package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const campaignColumns = `id, owner_id, title, description, media_url, budget, spent_budget,
		refunded_budget, paid_out_budget, payout_per_promotion, max_promoters, current_promoters,
		total_promotions, validated_promotions, paid_promotions, min_views_per_promotion,
		status, start_date, end_date, created_at, updated_at`

// CampaignRepo implements ports.CampaignRepository.
type CampaignRepo struct {
	pool Pool
}

// NewCampaignRepo creates a new CampaignRepo.
func NewCampaignRepo(pool Pool) *CampaignRepo {
	return &CampaignRepo{pool: pool}
}

// Create inserts a campaign within a database transaction.
func (r *CampaignRepo) Create(ctx context.Context, tx pgx.Tx, c *domain.Campaign) error {
	query := `INSERT INTO campaigns (` + campaignColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

	_, err := tx.Exec(ctx, query,
		c.ID, c.OwnerID, c.Title, c.Description, c.MediaURL, c.Budget, c.SpentBudget,
		c.RefundedBudget, c.PaidOutBudget, c.PayoutPerPromotion, c.MaxPromoters, c.CurrentPromoters,
		c.TotalPromotions, c.ValidatedPromotions, c.PaidPromotions, c.MinViewsPerPromotion,
		c.Status, c.StartDate, c.EndDate, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

// GetByID fetches a campaign without locking.
func (r *CampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`

	c, err := scanCampaign(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get campaign by id: %w", err)
	}
	return c, nil
}

// GetByIDForUpdate fetches a campaign with pessimistic locking.
// This MUST be called within a transaction.
func (r *CampaignRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1 FOR UPDATE`

	c, err := scanCampaign(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get campaign for update: %w", err)
	}
	return c, nil
}

// Update writes the mutable campaign columns.
func (r *CampaignRepo) Update(ctx context.Context, tx pgx.Tx, c *domain.Campaign) error {
	query := `UPDATE campaigns SET spent_budget = $1, refunded_budget = $2, paid_out_budget = $3,
		current_promoters = $4, total_promotions = $5, validated_promotions = $6, paid_promotions = $7,
		status = $8, updated_at = $9 WHERE id = $10`

	tag, err := tx.Exec(ctx, query,
		c.SpentBudget, c.RefundedBudget, c.PaidOutBudget,
		c.CurrentPromoters, c.TotalPromotions, c.ValidatedPromotions, c.PaidPromotions,
		c.Status, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("campaign not found: %s", c.ID)
	}
	return nil
}

// Delete hard-deletes a campaign.
func (r *CampaignRepo) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := tx.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("campaign not found: %s", id)
	}
	return nil
}

// List fetches campaigns with filtering and pagination, newest first.
func (r *CampaignRepo) List(ctx context.Context, params ports.CampaignListParams) ([]domain.Campaign, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.OwnerID != nil {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", argIdx))
		args = append(args, *params.OwnerID)
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM campaigns "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT `+campaignColumns+`
		FROM campaigns %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign row: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate campaign rows: %w", err)
	}
	return out, total, nil
}

// ListEndedBefore returns ids of campaigns in statuses whose end date is before t,
// earliest end first.
func (r *CampaignRepo) ListEndedBefore(ctx context.Context, t time.Time, statuses []domain.CampaignStatus, limit int) ([]uuid.UUID, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	query := `SELECT id FROM campaigns
		WHERE end_date IS NOT NULL AND end_date < $1 AND status = ANY($2)
		ORDER BY end_date`
	args := []any{t, names}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}

	return collectIDs(ctx, r.pool, "list ended campaigns", query, args...)
}

func scanCampaign(row pgx.Row) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.Title, &c.Description, &c.MediaURL, &c.Budget, &c.SpentBudget,
		&c.RefundedBudget, &c.PaidOutBudget, &c.PayoutPerPromotion, &c.MaxPromoters, &c.CurrentPromoters,
		&c.TotalPromotions, &c.ValidatedPromotions, &c.PaidPromotions, &c.MinViewsPerPromotion,
		&c.Status, &c.StartDate, &c.EndDate, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// collectIDs runs a single-column uuid query.
func collectIDs(ctx context.Context, pool Pool, op, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return ids, nil
}
