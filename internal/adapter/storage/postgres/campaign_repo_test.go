package postgres

import (
	"context"
	"testing"
	"time"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCampaign(ownerID uuid.UUID) *domain.Campaign {
	end := testTime().Add(7 * 24 * time.Hour)
	return &domain.Campaign{
		ID:                   uuid.New(),
		OwnerID:              ownerID,
		Title:                "Spring launch",
		Description:          "Post our banner",
		MediaURL:             "https://cdn.example.com/banner.jpg",
		Budget:               1000,
		SpentBudget:          400,
		PayoutPerPromotion:   200,
		MaxPromoters:         5,
		CurrentPromoters:     2,
		TotalPromotions:      2,
		MinViewsPerPromotion: domain.DefaultMinViewsPerPromotion,
		Status:               domain.CampaignActive,
		EndDate:              &end,
		CreatedAt:            testTime(),
		UpdatedAt:            testTime(),
	}
}

func campaignColumnNames() []string {
	return []string{"id", "owner_id", "title", "description", "media_url", "budget", "spent_budget",
		"refunded_budget", "paid_out_budget", "payout_per_promotion", "max_promoters", "current_promoters",
		"total_promotions", "validated_promotions", "paid_promotions", "min_views_per_promotion",
		"status", "start_date", "end_date", "created_at", "updated_at"}
}

func campaignRow(rows *pgxmock.Rows, c *domain.Campaign) *pgxmock.Rows {
	return rows.AddRow(
		c.ID, c.OwnerID, c.Title, c.Description, c.MediaURL, c.Budget, c.SpentBudget,
		c.RefundedBudget, c.PaidOutBudget, c.PayoutPerPromotion, c.MaxPromoters, c.CurrentPromoters,
		c.TotalPromotions, c.ValidatedPromotions, c.PaidPromotions, c.MinViewsPerPromotion,
		c.Status, c.StartDate, c.EndDate, c.CreatedAt, c.UpdatedAt,
	)
}

func TestCampaignRepo_Create(t *testing.T) {
	mock := newMockPool(t)
	repo := NewCampaignRepo(mock)
	c := newTestCampaign(uuid.New())
	tx := beginTx(t, mock)

	mock.ExpectExec("INSERT INTO campaigns").
		WithArgs(
			c.ID, c.OwnerID, c.Title, c.Description, c.MediaURL, c.Budget, c.SpentBudget,
			c.RefundedBudget, c.PaidOutBudget, c.PayoutPerPromotion, c.MaxPromoters, c.CurrentPromoters,
			c.TotalPromotions, c.ValidatedPromotions, c.PaidPromotions, c.MinViewsPerPromotion,
			c.Status, c.StartDate, c.EndDate, c.CreatedAt, c.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), tx, c))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepo_GetByID(t *testing.T) {
	mock := newMockPool(t)
	repo := NewCampaignRepo(mock)
	c := newTestCampaign(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM campaigns WHERE id").
		WithArgs(c.ID).
		WillReturnRows(campaignRow(pgxmock.NewRows(campaignColumnNames()), c))

	got, err := repo.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.Status, got.Status)
	assert.Equal(t, c.RemainingBudget(), got.RemainingBudget())
	assert.Equal(t, *c.EndDate, *got.EndDate)
	assert.Nil(t, got.StartDate)
}

func TestCampaignRepo_GetByID_NotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewCampaignRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM campaigns WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(campaignColumnNames()))

	got, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestCampaignRepo_GetByIDForUpdate(t *testing.T) {
	mock := newMockPool(t)
	repo := NewCampaignRepo(mock)
	c := newTestCampaign(uuid.New())
	tx := beginTx(t, mock)

	mock.ExpectQuery("SELECT .+ FROM campaigns WHERE id = \\$1 FOR UPDATE").
		WithArgs(c.ID).
		WillReturnRows(campaignRow(pgxmock.NewRows(campaignColumnNames()), c))

	got, err := repo.GetByIDForUpdate(context.Background(), tx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepo_Update(t *testing.T) {
	mock := newMockPool(t)
	repo := NewCampaignRepo(mock)
	c := newTestCampaign(uuid.New())
	c.Status = domain.CampaignExhausted
	tx := beginTx(t, mock)

	mock.ExpectExec("UPDATE campaigns SET spent_budget").
		WithArgs(c.SpentBudget, c.RefundedBudget, c.PaidOutBudget,
			c.CurrentPromoters, c.TotalPromotions, c.ValidatedPromotions, c.PaidPromotions,
			domain.CampaignExhausted, c.UpdatedAt, c.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Update(context.Background(), tx, c))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepo_Update_NotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewCampaignRepo(mock)
	tx := beginTx(t, mock)

	mock.ExpectExec("UPDATE campaigns").WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.ErrorContains(t, repo.Update(context.Background(), tx, newTestCampaign(uuid.New())), "campaign not found")
}

func TestCampaignRepo_Delete(t *testing.T) {
	mock := newMockPool(t)
	repo := NewCampaignRepo(mock)
	id := uuid.New()
	tx := beginTx(t, mock)

	mock.ExpectExec("DELETE FROM campaigns WHERE id").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, repo.Delete(context.Background(), tx, id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepo_List_Filters(t *testing.T) {
	mock := newMockPool(t)
	repo := NewCampaignRepo(mock)
	ownerID := uuid.New()
	status := domain.CampaignActive
	c := newTestCampaign(ownerID)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM campaigns WHERE owner_id = \\$1 AND status = \\$2").
		WithArgs(ownerID, status).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM campaigns WHERE owner_id = \\$1 AND status = \\$2 ORDER BY created_at DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs(ownerID, status, 20, 0).
		WillReturnRows(campaignRow(pgxmock.NewRows(campaignColumnNames()), c))

	got, total, err := repo.List(context.Background(), ports.CampaignListParams{
		OwnerID: &ownerID, Status: &status, Page: 1, PageSize: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, got, 1)
	assert.Equal(t, c.ID, got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepo_List_NoFilters(t *testing.T) {
	mock := newMockPool(t)
	repo := NewCampaignRepo(mock)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM campaigns$").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery("SELECT .+ FROM campaigns\\s+ORDER BY created_at DESC LIMIT \\$1 OFFSET \\$2").
		WithArgs(10, 0).
		WillReturnRows(pgxmock.NewRows(campaignColumnNames()))

	got, total, err := repo.List(context.Background(), ports.CampaignListParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepo_ListEndedBefore(t *testing.T) {
	mock := newMockPool(t)
	repo := NewCampaignRepo(mock)
	cutoff := testTime()
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	mock.ExpectQuery("SELECT id FROM campaigns\\s+WHERE end_date IS NOT NULL AND end_date < \\$1 AND status = ANY\\(\\$2\\)\\s+ORDER BY end_date LIMIT \\$3").
		WithArgs(cutoff, []string{"active", "paused", "exhausted"}, 50).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(ids[0]).AddRow(ids[1]))

	got, err := repo.ListEndedBefore(context.Background(), cutoff,
		[]domain.CampaignStatus{domain.CampaignActive, domain.CampaignPaused, domain.CampaignExhausted}, 50)
	require.NoError(t, err)
	assert.Equal(t, ids, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
