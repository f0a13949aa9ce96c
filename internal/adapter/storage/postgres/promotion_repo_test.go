package postgres

import (
	"context"
	"testing"
	"time"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"
	"status-promo-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPromotion() *domain.Promotion {
	c := newTestCampaign(uuid.New())
	return domain.NewPromotion(c, uuid.New(), "482913", testTime())
}

func promotionColumnNames() []string {
	return []string{"id", "campaign_id", "promoter_id", "marketer_id", "status", "payout_amount", "upi",
		"proof_media", "proof_views", "is_downloaded", "rejection_reason", "validated_by",
		"submitted_at", "validated_at", "paid_at", "rejected_at", "created_at", "updated_at"}
}

func promotionRow(rows *pgxmock.Rows, p *domain.Promotion) *pgxmock.Rows {
	return rows.AddRow(
		p.ID, p.CampaignID, p.PromoterID, p.MarketerID, p.Status, p.PayoutAmount, p.UPI,
		p.ProofMedia, p.ProofViews, p.IsDownloaded, p.RejectionReason, p.ValidatedBy,
		p.SubmittedAt, p.ValidatedAt, p.PaidAt, p.RejectedAt, p.CreatedAt, p.UpdatedAt,
	)
}

func TestPromotionRepo_Create(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPromotionRepo(mock)
	p := newTestPromotion()
	tx := beginTx(t, mock)

	mock.ExpectExec("INSERT INTO promotions").
		WithArgs(
			p.ID, p.CampaignID, p.PromoterID, p.MarketerID, p.Status, p.PayoutAmount, p.UPI,
			[]string{}, 0, false, p.RejectionReason, p.ValidatedBy,
			p.SubmittedAt, p.ValidatedAt, p.PaidAt, p.RejectedAt, p.CreatedAt, p.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), tx, p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepo_Create_UniqueViolations(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		code       string
	}{
		{"same promoter twice", constraintPromotionPair, "CON_002"},
		{"upi collision", constraintPromotionUPI, apperror.CodeUPITaken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockPool(t)
			repo := NewPromotionRepo(mock)
			tx := beginTx(t, mock)

			mock.ExpectExec("INSERT INTO promotions").
				WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: tt.constraint})

			err := repo.Create(context.Background(), tx, newTestPromotion())
			require.Error(t, err)
			appErr, ok := err.(*apperror.AppError)
			require.True(t, ok)
			assert.Equal(t, tt.code, appErr.Code)
		})
	}
}

func TestPromotionRepo_GetByUPI(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPromotionRepo(mock)
	p := newTestPromotion()
	reason := "blurry screenshot"
	p.Status = domain.PromotionRejected
	p.RejectionReason = &reason

	mock.ExpectQuery("SELECT .+ FROM promotions WHERE upi").
		WithArgs("482913").
		WillReturnRows(promotionRow(pgxmock.NewRows(promotionColumnNames()), p))

	got, err := repo.GetByUPI(context.Background(), "482913")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, reason, *got.RejectionReason)
	assert.Equal(t, []string{}, got.ProofMedia)
}

func TestPromotionRepo_GetByID_NotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPromotionRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM promotions WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(promotionColumnNames()))

	got, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestPromotionRepo_LockAndUpdate(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPromotionRepo(mock)
	p := newTestPromotion()
	tx := beginTx(t, mock)

	mock.ExpectQuery("SELECT .+ FROM promotions WHERE id = \\$1 FOR UPDATE").
		WithArgs(p.ID).
		WillReturnRows(promotionRow(pgxmock.NewRows(promotionColumnNames()), p))

	locked, err := repo.GetByIDForUpdate(context.Background(), tx, p.ID)
	require.NoError(t, err)

	now := testTime().Add(time.Hour)
	require.NoError(t, locked.Submit([]string{"https://cdn.example.com/p.jpg"}, 40, now))

	mock.ExpectExec("UPDATE promotions SET status").
		WithArgs(domain.PromotionSubmitted, []string{"https://cdn.example.com/p.jpg"}, 40, false,
			locked.RejectionReason, locked.ValidatedBy, locked.SubmittedAt, locked.ValidatedAt,
			locked.PaidAt, locked.RejectedAt, now, p.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Update(context.Background(), tx, locked))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepo_ExistenceChecks(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPromotionRepo(mock)
	campaignID, promoterID := uuid.New(), uuid.New()
	tx := beginTx(t, mock)

	mock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM promotions WHERE campaign_id = \\$1 AND promoter_id = \\$2\\)").
		WithArgs(campaignID, promoterID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM promotions WHERE upi = \\$1\\)").
		WithArgs("000123").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM promotions WHERE campaign_id").
		WithArgs(campaignID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	ctx := context.Background()
	exists, err := repo.ExistsForPair(ctx, tx, campaignID, promoterID)
	require.NoError(t, err)
	assert.True(t, exists)

	taken, err := repo.UPIExists(ctx, tx, "000123")
	require.NoError(t, err)
	assert.False(t, taken)

	n, err := repo.CountByCampaign(ctx, tx, campaignID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepo_List(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPromotionRepo(mock)
	p := newTestPromotion()
	status := domain.PromotionPending

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM promotions WHERE campaign_id = \\$1 AND status = \\$2").
		WithArgs(p.CampaignID, status).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM promotions WHERE campaign_id = \\$1 AND status = \\$2 ORDER BY created_at DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs(p.CampaignID, status, 20, 20).
		WillReturnRows(promotionRow(pgxmock.NewRows(promotionColumnNames()), p))

	got, total, err := repo.List(context.Background(), ports.PromotionListParams{
		CampaignID: &p.CampaignID, Status: &status, Page: 2, PageSize: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, got, 1)
	assert.Equal(t, p.UPI, got[0].UPI)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepo_ListPendingCreatedBetween(t *testing.T) {
	before := testTime().Add(-24 * time.Hour)
	after := testTime().Add(-25 * time.Hour)
	id := uuid.New()

	t.Run("bounded window", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewPromotionRepo(mock)

		mock.ExpectQuery("SELECT id FROM promotions WHERE status = 'pending' AND created_at < \\$1 AND created_at > \\$2 ORDER BY created_at LIMIT \\$3").
			WithArgs(before, after, 100).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id))

		ids, err := repo.ListPendingCreatedBetween(context.Background(), after, before, 100)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{id}, ids)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no lower bound or limit", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewPromotionRepo(mock)

		mock.ExpectQuery("SELECT id FROM promotions WHERE status = 'pending' AND created_at < \\$1 ORDER BY created_at$").
			WithArgs(before).
			WillReturnRows(pgxmock.NewRows([]string{"id"}))

		ids, err := repo.ListPendingCreatedBetween(context.Background(), time.Time{}, before, 0)
		require.NoError(t, err)
		assert.Empty(t, ids)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
