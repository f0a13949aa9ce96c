package postgres

import (
	"context"
	"errors"
	"testing"

	"status-promo-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityRepo_Append(t *testing.T) {
	mock := newMockPool(t)
	repo := NewActivityRepo(mock)
	campaignID := uuid.New()
	actor := uuid.New()
	entries := []domain.ActivityEntry{
		domain.NewActivity(domain.EntityCampaign, campaignID, domain.ActionPromoterAssigned, &actor, "slot 1", testTime()),
		domain.NewActivity(domain.EntityCampaign, campaignID, domain.ActionExhausted, nil, "", testTime()),
	}
	tx := beginTx(t, mock)

	for _, e := range entries {
		mock.ExpectExec("INSERT INTO activity_logs").
			WithArgs(e.ID, e.EntityType, e.EntityID, e.Action, e.PerformedBy, e.Details, e.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	require.NoError(t, repo.Append(context.Background(), tx, entries...))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepo_Append_Error(t *testing.T) {
	mock := newMockPool(t)
	repo := NewActivityRepo(mock)
	tx := beginTx(t, mock)

	mock.ExpectExec("INSERT INTO activity_logs").WillReturnError(errors.New("disk full"))

	err := repo.Append(context.Background(), tx,
		domain.NewActivity(domain.EntityPromotion, uuid.New(), domain.ActionPaid, nil, "", testTime()))
	assert.ErrorContains(t, err, "insert activity paid")
}

func TestActivityRepo_List(t *testing.T) {
	mock := newMockPool(t)
	repo := NewActivityRepo(mock)
	promotionID := uuid.New()
	e := domain.NewActivity(domain.EntityPromotion, promotionID, domain.ActionRejected, nil, "expired", testTime())

	mock.ExpectQuery("SELECT .+ FROM activity_logs WHERE entity_type = \\$1 AND entity_id = \\$2 ORDER BY created_at DESC LIMIT \\$3").
		WithArgs(domain.EntityPromotion, promotionID, 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "entity_type", "entity_id", "action", "performed_by", "details", "created_at"}).
			AddRow(e.ID, e.EntityType, e.EntityID, e.Action, e.PerformedBy, e.Details, e.CreatedAt))

	got, err := repo.List(context.Background(), domain.EntityPromotion, promotionID, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ActionRejected, got[0].Action)
	assert.Nil(t, got[0].PerformedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}
