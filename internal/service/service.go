package service

import (
	"context"
	"fmt"
	"time"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"
	"status-promo-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Repos bundles the repositories the marketplace services share.
type Repos struct {
	Transactor  ports.DBTransactor
	Users       ports.UserRepository
	WalletTxs   ports.WalletTransactionRepository
	Campaigns   ports.CampaignRepository
	Promotions  ports.PromotionRepository
	Activity    ports.ActivityRepository
	Withdrawals ports.WithdrawalRepository
}

// Clock returns the current time. Services default to UTC wall time.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// lockUsers locks the given users in id order and returns them by id.
func lockUsers(ctx context.Context, tx pgx.Tx, repo ports.UserRepository, ids ...uuid.UUID) (map[uuid.UUID]*domain.User, error) {
	out := make(map[uuid.UUID]*domain.User, len(ids))
	for _, id := range domain.SortUserIDs(ids...) {
		u, err := repo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lock user %s: %w", id, err))
		}
		if u == nil {
			return nil, apperror.ErrNotFound("User")
		}
		out[id] = u
	}
	return out, nil
}

func lockCampaign(ctx context.Context, tx pgx.Tx, repo ports.CampaignRepository, id uuid.UUID) (*domain.Campaign, error) {
	c, err := repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock campaign: %w", err))
	}
	if c == nil {
		return nil, apperror.ErrNotFound("Campaign")
	}
	return c, nil
}

func lockPromotion(ctx context.Context, tx pgx.Tx, repo ports.PromotionRepository, id uuid.UUID) (*domain.Promotion, error) {
	p, err := repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock promotion: %w", err))
	}
	if p == nil {
		return nil, apperror.ErrNotFound("Promotion")
	}
	return p, nil
}

// publish sends a post-commit notification; failures are logged only.
func publish(ctx context.Context, pub ports.EventPublisher, log zerolog.Logger, topic string, evt ports.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, topic, evt); err != nil {
		log.Warn().Err(err).Str("topic", topic).Str("event", evt.Type).Msg("failed to publish event")
	}
}

func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return page, size
}
