package service

import (
	"context"
	"fmt"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"
	"status-promo-marketplace/pkg/apperror"

	"github.com/google/uuid"
)

// manualTargets lists the statuses a user may request from each status.
// exhausted, completed, expired and archived are reached only through
// admission, payout, the sweeper or ArchiveCampaign.
var manualTargets = map[domain.CampaignStatus][]domain.CampaignStatus{
	domain.CampaignDraft:     {domain.CampaignPending, domain.CampaignActive, domain.CampaignCancelled},
	domain.CampaignPending:   {domain.CampaignActive, domain.CampaignRejected, domain.CampaignCancelled},
	domain.CampaignActive:    {domain.CampaignPaused, domain.CampaignCancelled, domain.CampaignRejected},
	domain.CampaignPaused:    {domain.CampaignActive, domain.CampaignCancelled, domain.CampaignRejected},
	domain.CampaignExhausted: {domain.CampaignPaused, domain.CampaignCancelled, domain.CampaignRejected},
}

func (s *CampaignServiceImpl) checkManualChange(c *domain.Campaign, next domain.CampaignStatus, actor ports.Actor) error {
	allowed := false
	for _, target := range manualTargets[c.Status] {
		if target == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return apperror.ErrInvalidTransition("campaign", string(c.Status), string(next))
	}
	if actor.IsAdmin() {
		return nil
	}
	switch {
	case next == domain.CampaignRejected:
		return apperror.ErrForbidden("Only admins can reject campaigns")
	case next == domain.CampaignActive && c.Status == domain.CampaignPending:
		return apperror.ErrForbidden("Only admins can approve campaigns")
	case next == domain.CampaignActive && c.Status == domain.CampaignDraft && s.opts.RequireApproval:
		return apperror.ErrForbidden("Campaigns require admin approval before going live")
	}
	return nil
}

// UpdateCampaignStatus applies a manual status change. Entering rejected or
// cancelled refunds the unspent budget in the same transaction.
func (s *CampaignServiceImpl) UpdateCampaignStatus(ctx context.Context, req ports.StatusChangeRequest) (*domain.Campaign, error) {
	if !req.Status.IsValid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown campaign status %q", req.Status))
	}

	dbTx, err := s.repos.Transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	c, err := lockCampaign(ctx, dbTx, s.repos.Campaigns, req.CampaignID)
	if err != nil {
		return nil, err
	}
	if !c.IsOwnedBy(req.Actor.UserID) && !req.Actor.IsAdmin() {
		return nil, apperror.ErrForbidden("You do not own this campaign")
	}
	if req.Status == c.Status {
		return nil, apperror.ErrConflict(fmt.Sprintf("campaign is already %s", c.Status))
	}
	if c.Status.IsClosed() {
		return nil, apperror.ErrInvalidTransition("campaign", string(c.Status), string(req.Status))
	}
	if err := s.checkManualChange(c, req.Status, req.Actor); err != nil {
		return nil, err
	}

	now := s.now()
	by := req.Actor.PerformedBy()
	prev := c.Status
	entry, err := c.UpdateStatus(req.Status, by, req.Details, now)
	if err != nil {
		return nil, err
	}
	entries := []domain.ActivityEntry{entry}

	// A resumed campaign with no capacity left is full, not live.
	if c.Status == domain.CampaignActive && !c.CanAssignPromoter() {
		c.Status = domain.CampaignExhausted
		entries = append(entries, domain.NewActivity(domain.EntityCampaign, c.ID, domain.ActionExhausted, by, "no capacity left on resume", now))
	}

	if c.Status.RefundsOnEntry() {
		users, err := lockUsers(ctx, dbTx, s.repos.Users, c.OwnerID)
		if err != nil {
			return nil, err
		}
		refunds, err := refundRemaining(ctx, s.ledger, dbTx, c, users[c.OwnerID], by, now)
		if err != nil {
			return nil, err
		}
		entries = append(entries, refunds...)
	}

	if err := s.repos.Campaigns.Update(ctx, dbTx, c); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update campaign: %w", err))
	}
	if err := s.repos.Activity.Append(ctx, dbTx, entries...); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append activity: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	publish(ctx, s.publisher, s.log, ports.TopicCampaigns, ports.Event{
		Type: "campaign.status_changed", EntityID: c.ID, UserIDs: []uuid.UUID{c.OwnerID}, OccurredAt: now,
		Payload: map[string]any{"from": prev, "to": c.Status},
	})

	s.log.Info().
		Str("campaign_id", c.ID.String()).
		Str("from", string(prev)).
		Str("to", string(c.Status)).
		Int64("refunded_budget", c.RefundedBudget).
		Msg("campaign status changed")

	return c, nil
}

// ArchiveCampaign closes a campaign that has no live promoters and refunds
// its unspent budget.
func (s *CampaignServiceImpl) ArchiveCampaign(ctx context.Context, campaignID uuid.UUID, actor ports.Actor) (*domain.Campaign, error) {
	dbTx, err := s.repos.Transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	c, err := lockCampaign(ctx, dbTx, s.repos.Campaigns, campaignID)
	if err != nil {
		return nil, err
	}
	if !c.IsOwnedBy(actor.UserID) && !actor.IsAdmin() {
		return nil, apperror.ErrForbidden("You do not own this campaign")
	}

	switch c.Status {
	case domain.CampaignDraft, domain.CampaignPending:
	case domain.CampaignActive, domain.CampaignPaused, domain.CampaignExhausted:
		if c.CurrentPromoters > 0 {
			return nil, apperror.ErrInvalidTransition("campaign", string(c.Status), string(domain.CampaignArchived)).
				WithDetail("current_promoters", c.CurrentPromoters)
		}
	}

	now := s.now()
	by := actor.PerformedBy()
	entry, err := c.UpdateStatus(domain.CampaignArchived, by, "archived by user", now)
	if err != nil {
		return nil, err
	}
	entry.Action = domain.ActionArchived

	users, err := lockUsers(ctx, dbTx, s.repos.Users, c.OwnerID)
	if err != nil {
		return nil, err
	}
	refunds, err := refundRemaining(ctx, s.ledger, dbTx, c, users[c.OwnerID], by, now)
	if err != nil {
		return nil, err
	}

	if err := s.repos.Campaigns.Update(ctx, dbTx, c); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update campaign: %w", err))
	}
	if err := s.repos.Activity.Append(ctx, dbTx, append([]domain.ActivityEntry{entry}, refunds...)...); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append activity: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("campaign_id", c.ID.String()).
		Int64("refunded_budget", c.RefundedBudget).
		Msg("campaign archived")

	return c, nil
}

// DeleteCampaign removes a campaign that never admitted anyone, refunding
// its reserved budget first.
func (s *CampaignServiceImpl) DeleteCampaign(ctx context.Context, campaignID uuid.UUID, actor ports.Actor) error {
	dbTx, err := s.repos.Transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	c, err := lockCampaign(ctx, dbTx, s.repos.Campaigns, campaignID)
	if err != nil {
		return err
	}
	if !c.IsOwnedBy(actor.UserID) && !actor.IsAdmin() {
		return apperror.ErrForbidden("You do not own this campaign")
	}

	count, err := s.repos.Promotions.CountByCampaign(ctx, dbTx, c.ID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("count promotions: %w", err))
	}
	if c.CurrentPromoters > 0 || c.SpentBudget > 0 || count > 0 {
		return apperror.ErrConflict("Campaign has promotions and cannot be deleted").
			WithDetail("promotions", count)
	}

	users, err := lockUsers(ctx, dbTx, s.repos.Users, c.OwnerID)
	if err != nil {
		return err
	}
	if _, err := refundRemaining(ctx, s.ledger, dbTx, c, users[c.OwnerID], actor.PerformedBy(), s.now()); err != nil {
		return err
	}

	if err := s.repos.Campaigns.Delete(ctx, dbTx, c.ID); err != nil {
		return apperror.InternalError(fmt.Errorf("delete campaign: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("campaign_id", c.ID.String()).
		Int64("refunded_budget", c.RefundedBudget).
		Msg("campaign deleted")

	return nil
}
