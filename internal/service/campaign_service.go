package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"
	"status-promo-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const maxCampaignTitleLength = 200

// CampaignOptions tunes campaign creation.
type CampaignOptions struct {
	// RequireApproval starts new campaigns in pending until an admin activates them.
	RequireApproval bool
}

// CampaignServiceImpl implements ports.CampaignService.
type CampaignServiceImpl struct {
	repos     Repos
	ledger    *Ledger
	publisher ports.EventPublisher
	opts      CampaignOptions
	log       zerolog.Logger
	now       Clock
}

// NewCampaignService creates a new CampaignServiceImpl.
func NewCampaignService(repos Repos, ledger *Ledger, publisher ports.EventPublisher, opts CampaignOptions, log zerolog.Logger) *CampaignServiceImpl {
	return &CampaignServiceImpl{
		repos:     repos,
		ledger:    ledger,
		publisher: publisher,
		opts:      opts,
		log:       log,
		now:       systemClock,
	}
}

// CreateCampaign validates the request and reserves the full budget from the
// owner's marketer wallet in the same transaction that inserts the campaign.
func (s *CampaignServiceImpl) CreateCampaign(ctx context.Context, req ports.CreateCampaignRequest) (*domain.Campaign, error) {
	if err := validateCreateCampaign(&req); err != nil {
		return nil, err
	}

	dbTx, err := s.repos.Transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	users, err := lockUsers(ctx, dbTx, s.repos.Users, req.OwnerID)
	if err != nil {
		return nil, err
	}
	owner := users[req.OwnerID]
	if !owner.HasRole(domain.RoleMarketer) {
		return nil, apperror.ErrForbidden("Only marketers can create campaigns")
	}

	now := s.now()
	minViews := domain.DefaultMinViewsPerPromotion
	if req.MinViewsPerPromotion != nil {
		minViews = *req.MinViewsPerPromotion
	}

	status := domain.CampaignActive
	switch {
	case req.Draft:
		status = domain.CampaignDraft
	case s.opts.RequireApproval:
		status = domain.CampaignPending
	}

	c := &domain.Campaign{
		ID:                   uuid.New(),
		OwnerID:              owner.ID,
		Title:                req.Title,
		Description:          req.Description,
		MediaURL:             req.MediaURL,
		Budget:               req.Budget,
		PayoutPerPromotion:   req.PayoutPerPromotion,
		MaxPromoters:         domain.MaxPromotersFor(req.Budget, req.PayoutPerPromotion),
		MinViewsPerPromotion: minViews,
		Status:               status,
		StartDate:            req.StartDate,
		EndDate:              req.EndDate,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.repos.Campaigns.Create(ctx, dbTx, c); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create campaign: %w", err))
	}

	refs := domain.TxRefs{CampaignID: uuidPtr(c.ID), Description: fmt.Sprintf("Budget reserved for campaign %q", c.Title)}
	if err := s.ledger.Reserve(ctx, dbTx, owner, domain.WalletMarketer, c.Budget, refs); err != nil {
		return nil, err
	}

	entry := domain.NewActivity(domain.EntityCampaign, c.ID, domain.ActionCreated, uuidPtr(owner.ID),
		fmt.Sprintf("budget %d, payout %d, max promoters %d, status %s", c.Budget, c.PayoutPerPromotion, c.MaxPromoters, c.Status), now)
	if err := s.repos.Activity.Append(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append activity: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	publish(ctx, s.publisher, s.log, ports.TopicCampaigns, ports.Event{
		Type: "campaign.created", EntityID: c.ID, UserIDs: []uuid.UUID{c.OwnerID}, OccurredAt: now,
		Payload: map[string]any{"status": c.Status, "budget": c.Budget},
	})

	s.log.Info().
		Str("campaign_id", c.ID.String()).
		Str("owner_id", c.OwnerID.String()).
		Int64("budget", c.Budget).
		Int("max_promoters", c.MaxPromoters).
		Str("status", string(c.Status)).
		Msg("campaign created")

	return c, nil
}

func validateCreateCampaign(req *ports.CreateCampaignRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	switch {
	case req.Title == "":
		return apperror.Validation("title is required")
	case len(req.Title) > maxCampaignTitleLength:
		return apperror.Validation(fmt.Sprintf("title must be at most %d characters", maxCampaignTitleLength))
	case req.Budget <= 0:
		return apperror.Validation("budget must be positive")
	case req.PayoutPerPromotion <= 0:
		return apperror.Validation("payout per promotion must be positive")
	case req.PayoutPerPromotion > req.Budget:
		return apperror.Validation("payout per promotion cannot exceed the budget")
	case req.MinViewsPerPromotion != nil && *req.MinViewsPerPromotion < 0:
		return apperror.Validation("minimum views cannot be negative")
	case req.StartDate != nil && req.EndDate != nil && !req.EndDate.After(*req.StartDate):
		return apperror.Validation("end date must be after start date")
	}
	return nil
}

// GetCampaign fetches a campaign by id.
func (s *CampaignServiceImpl) GetCampaign(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	c, err := s.repos.Campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get campaign: %w", err))
	}
	if c == nil {
		return nil, apperror.ErrNotFound("Campaign")
	}
	return c, nil
}

// ListCampaigns returns a page of campaigns.
func (s *CampaignServiceImpl) ListCampaigns(ctx context.Context, params ports.CampaignListParams) ([]domain.Campaign, int64, error) {
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)
	campaigns, total, err := s.repos.Campaigns.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list campaigns: %w", err))
	}
	return campaigns, total, nil
}

// CampaignActivity returns the newest history entries of a campaign.
func (s *CampaignServiceImpl) CampaignActivity(ctx context.Context, id uuid.UUID, limit int) ([]domain.ActivityEntry, error) {
	if _, err := s.GetCampaign(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	entries, err := s.repos.Activity.List(ctx, domain.EntityCampaign, id, limit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list activity: %w", err))
	}
	return entries, nil
}

// refundRemaining returns the campaign's unspent budget to the owner's
// marketer balance. It is a no-op when nothing is left.
func refundRemaining(ctx context.Context, ledger *Ledger, tx pgx.Tx, c *domain.Campaign, owner *domain.User, by *uuid.UUID, now time.Time) ([]domain.ActivityEntry, error) {
	amount := c.RemainingBudget()
	if amount <= 0 {
		return nil, nil
	}
	refs := domain.TxRefs{CampaignID: uuidPtr(c.ID), Description: fmt.Sprintf("Unspent budget of campaign %q", c.Title)}
	if err := ledger.RefundReservedToBalance(ctx, tx, owner, domain.WalletMarketer, amount, refs); err != nil {
		return nil, err
	}
	c.MarkRefunded(amount)
	return []domain.ActivityEntry{
		domain.NewActivity(domain.EntityCampaign, c.ID, domain.ActionRefunded, by, fmt.Sprintf("refunded %d to owner", amount), now),
	}, nil
}
