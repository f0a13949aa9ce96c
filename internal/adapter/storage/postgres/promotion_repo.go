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

const promotionColumns = `id, campaign_id, promoter_id, marketer_id, status, payout_amount, upi,
		proof_media, proof_views, is_downloaded, rejection_reason, validated_by,
		submitted_at, validated_at, paid_at, rejected_at, created_at, updated_at`

// PromotionRepo implements ports.PromotionRepository.
type PromotionRepo struct {
	pool Pool
}

// NewPromotionRepo creates a new PromotionRepo.
func NewPromotionRepo(pool Pool) *PromotionRepo {
	return &PromotionRepo{pool: pool}
}

// Create inserts a promotion. The (campaign, promoter) and UPI unique
// constraints surface as Conflict errors.
func (r *PromotionRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Promotion) error {
	query := `INSERT INTO promotions (` + promotionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := tx.Exec(ctx, query,
		p.ID, p.CampaignID, p.PromoterID, p.MarketerID, p.Status, p.PayoutAmount, p.UPI,
		nonNilMedia(p.ProofMedia), p.ProofViews, p.IsDownloaded, p.RejectionReason, p.ValidatedBy,
		p.SubmittedAt, p.ValidatedAt, p.PaidAt, p.RejectedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if mapped := mapConstraintError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("insert promotion: %w", err)
	}
	return nil
}

// GetByID fetches a promotion without locking.
func (r *PromotionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Promotion, error) {
	query := `SELECT ` + promotionColumns + ` FROM promotions WHERE id = $1`
	return getPromotion(r.pool.QueryRow(ctx, query, id), "get promotion by id")
}

// GetByUPI fetches a promotion by its tracking code.
func (r *PromotionRepo) GetByUPI(ctx context.Context, upi string) (*domain.Promotion, error) {
	query := `SELECT ` + promotionColumns + ` FROM promotions WHERE upi = $1`
	return getPromotion(r.pool.QueryRow(ctx, query, upi), "get promotion by upi")
}

// GetByIDForUpdate fetches a promotion with pessimistic locking.
// This MUST be called within a transaction.
func (r *PromotionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Promotion, error) {
	query := `SELECT ` + promotionColumns + ` FROM promotions WHERE id = $1 FOR UPDATE`
	return getPromotion(tx.QueryRow(ctx, query, id), "get promotion for update")
}

// ExistsForPair reports whether the promoter already holds a promotion on the campaign.
func (r *PromotionRepo) ExistsForPair(ctx context.Context, tx pgx.Tx, campaignID, promoterID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM promotions WHERE campaign_id = $1 AND promoter_id = $2)`

	var exists bool
	if err := tx.QueryRow(ctx, query, campaignID, promoterID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check promotion pair: %w", err)
	}
	return exists, nil
}

// UPIExists reports whether upi is taken.
func (r *PromotionRepo) UPIExists(ctx context.Context, tx pgx.Tx, upi string) (bool, error) {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM promotions WHERE upi = $1)`, upi).Scan(&exists); err != nil {
		return false, fmt.Errorf("check upi: %w", err)
	}
	return exists, nil
}

// CountByCampaign counts all promotions ever created on a campaign.
func (r *PromotionRepo) CountByCampaign(ctx context.Context, tx pgx.Tx, campaignID uuid.UUID) (int, error) {
	var n int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM promotions WHERE campaign_id = $1`, campaignID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count promotions: %w", err)
	}
	return n, nil
}

// Update writes the mutable promotion columns.
func (r *PromotionRepo) Update(ctx context.Context, tx pgx.Tx, p *domain.Promotion) error {
	query := `UPDATE promotions SET status = $1, proof_media = $2, proof_views = $3, is_downloaded = $4,
		rejection_reason = $5, validated_by = $6, submitted_at = $7, validated_at = $8,
		paid_at = $9, rejected_at = $10, updated_at = $11 WHERE id = $12`

	tag, err := tx.Exec(ctx, query,
		p.Status, nonNilMedia(p.ProofMedia), p.ProofViews, p.IsDownloaded,
		p.RejectionReason, p.ValidatedBy, p.SubmittedAt, p.ValidatedAt,
		p.PaidAt, p.RejectedAt, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update promotion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("promotion not found: %s", p.ID)
	}
	return nil
}

// List fetches promotions with filtering and pagination, newest first.
func (r *PromotionRepo) List(ctx context.Context, params ports.PromotionListParams) ([]domain.Promotion, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.CampaignID != nil {
		conditions = append(conditions, fmt.Sprintf("campaign_id = $%d", argIdx))
		args = append(args, *params.CampaignID)
		argIdx++
	}
	if params.PromoterID != nil {
		conditions = append(conditions, fmt.Sprintf("promoter_id = $%d", argIdx))
		args = append(args, *params.PromoterID)
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
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM promotions "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count promotions: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT `+promotionColumns+`
		FROM promotions %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list promotions: %w", err)
	}
	defer rows.Close()

	var out []domain.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan promotion row: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate promotion rows: %w", err)
	}
	return out, total, nil
}

// ListPendingCreatedBetween returns ids of pending promotions with
// after < created_at < before, oldest first. A zero after means no lower bound.
func (r *PromotionRepo) ListPendingCreatedBetween(ctx context.Context, after, before time.Time, limit int) ([]uuid.UUID, error) {
	query := `SELECT id FROM promotions WHERE status = 'pending' AND created_at < $1`
	args := []any{before}
	if !after.IsZero() {
		args = append(args, after)
		query += fmt.Sprintf(" AND created_at > $%d", len(args))
	}
	query += " ORDER BY created_at"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return collectIDs(ctx, r.pool, "list stale promotions", query, args...)
}

func getPromotion(row pgx.Row, op string) (*domain.Promotion, error) {
	p, err := scanPromotion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func scanPromotion(row pgx.Row) (*domain.Promotion, error) {
	p := &domain.Promotion{}
	err := row.Scan(
		&p.ID, &p.CampaignID, &p.PromoterID, &p.MarketerID, &p.Status, &p.PayoutAmount, &p.UPI,
		&p.ProofMedia, &p.ProofViews, &p.IsDownloaded, &p.RejectionReason, &p.ValidatedBy,
		&p.SubmittedAt, &p.ValidatedAt, &p.PaidAt, &p.RejectedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.ProofMedia == nil {
		p.ProofMedia = []string{}
	}
	return p, nil
}

func nonNilMedia(media []string) []string {
	if media == nil {
		return []string{}
	}
	return media
}
