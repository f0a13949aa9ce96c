package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"
	"status-promo-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// PromotionOptions tunes admission and proof submission.
type PromotionOptions struct {
	SubmissionWindow time.Duration // proof deadline measured from creation
	// StrictSubmissionWindow only accepts proof during the final
	// StrictWindowLength before the deadline.
	StrictSubmissionWindow bool
	StrictWindowLength     time.Duration
	UPIAttempts            int
}

// DefaultPromotionOptions returns the production defaults.
func DefaultPromotionOptions() PromotionOptions {
	return PromotionOptions{
		SubmissionWindow:   24 * time.Hour,
		StrictWindowLength: 30 * time.Minute,
		UPIAttempts:        10,
	}
}

// PromotionServiceImpl implements ports.PromotionService.
type PromotionServiceImpl struct {
	repos     Repos
	ledger    *Ledger
	validator ports.ProofValidator
	publisher ports.EventPublisher
	opts      PromotionOptions
	log       zerolog.Logger
	now       Clock
	newUPI    func() (string, error)
}

// NewPromotionService creates a new PromotionServiceImpl.
func NewPromotionService(
	repos Repos,
	ledger *Ledger,
	validator ports.ProofValidator,
	publisher ports.EventPublisher,
	opts PromotionOptions,
	log zerolog.Logger,
) *PromotionServiceImpl {
	if opts.SubmissionWindow <= 0 {
		opts.SubmissionWindow = 24 * time.Hour
	}
	if opts.StrictWindowLength <= 0 {
		opts.StrictWindowLength = 30 * time.Minute
	}
	if opts.UPIAttempts <= 0 {
		opts.UPIAttempts = 10
	}
	return &PromotionServiceImpl{
		repos:     repos,
		ledger:    ledger,
		validator: validator,
		publisher: publisher,
		opts:      opts,
		log:       log,
		now:       systemClock,
		newUPI:    randomUPI,
	}
}

// randomUPI returns a uniformly random six digit code.
func randomUPI() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate upi: %w", err)
	}
	return fmt.Sprintf("%0*d", domain.UPILength, n.Int64()), nil
}

// AssignPromoter admits a promoter to a campaign: it creates a pending
// promotion, moves one payout into the promoter's reserve and consumes a
// slot, all in one transaction. A UPI lost to a concurrent admission
// between the existence check and the insert reruns the transaction with a
// fresh code.
func (s *PromotionServiceImpl) AssignPromoter(ctx context.Context, campaignID, promoterID uuid.UUID) (*domain.Promotion, error) {
	for attempt := 1; attempt <= s.opts.UPIAttempts; attempt++ {
		p, err := s.assignPromoter(ctx, campaignID, promoterID)
		if !apperror.HasCode(err, apperror.CodeUPITaken) {
			return p, err
		}
		s.log.Warn().
			Str("campaign_id", campaignID.String()).
			Int("attempt", attempt).
			Msg("upi taken at insert, retrying admission")
	}
	return nil, apperror.InternalError(fmt.Errorf("no free upi after %d admission attempts", s.opts.UPIAttempts))
}

func (s *PromotionServiceImpl) assignPromoter(ctx context.Context, campaignID, promoterID uuid.UUID) (*domain.Promotion, error) {
	dbTx, err := s.repos.Transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	c, err := lockCampaign(ctx, dbTx, s.repos.Campaigns, campaignID)
	if err != nil {
		return nil, err
	}
	if !c.CanAssignPromoter() {
		return nil, apperror.ErrCampaignNotAssignable().
			WithDetail("status", c.Status).
			WithDetail("remaining_slots", c.MaxPromoters-c.TotalPromotions)
	}
	if c.IsOwnedBy(promoterID) {
		return nil, apperror.ErrForbidden("You cannot promote your own campaign")
	}

	users, err := lockUsers(ctx, dbTx, s.repos.Users, c.OwnerID, promoterID)
	if err != nil {
		return nil, err
	}
	promoter, marketer := users[promoterID], users[c.OwnerID]
	if !promoter.HasRole(domain.RolePromoter) {
		return nil, apperror.ErrForbidden("Only promoters can join campaigns")
	}

	exists, err := s.repos.Promotions.ExistsForPair(ctx, dbTx, c.ID, promoterID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check existing promotion: %w", err))
	}
	if exists {
		return nil, apperror.ErrDuplicatePromotion()
	}

	upi, err := s.allocateUPI(ctx, dbTx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := domain.NewPromotion(c, promoterID, upi, now)
	if err := s.repos.Promotions.Create(ctx, dbTx, p); err != nil {
		return nil, asAppError(err, "create promotion")
	}

	refs := domain.TxRefs{
		CampaignID:  uuidPtr(c.ID),
		PromotionID: uuidPtr(p.ID),
		Description: fmt.Sprintf("Escrow for %s", p.Describe()),
	}
	if err := s.ledger.HoldEscrow(ctx, dbTx, marketer, promoter, p.PayoutAmount, refs); err != nil {
		return nil, err
	}

	exhausted := c.AssignPromoter()
	c.UpdatedAt = now
	promoterRef := uuidPtr(promoterID)
	entries := []domain.ActivityEntry{
		domain.NewActivity(domain.EntityPromotion, p.ID, domain.ActionCreated, promoterRef, fmt.Sprintf("upi %s, payout %d", p.UPI, p.PayoutAmount), now),
		domain.NewActivity(domain.EntityCampaign, c.ID, domain.ActionPromoterAssigned, promoterRef, p.Describe(), now),
	}
	if exhausted {
		entries = append(entries, domain.NewActivity(domain.EntityCampaign, c.ID, domain.ActionExhausted, nil,
			fmt.Sprintf("%d of %d slots taken", c.TotalPromotions, c.MaxPromoters), now))
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

	publish(ctx, s.publisher, s.log, ports.TopicPromotions, ports.Event{
		Type: "promotion.assigned", EntityID: p.ID, UserIDs: []uuid.UUID{promoterID, c.OwnerID}, OccurredAt: now,
		Payload: map[string]any{"campaign_id": c.ID, "upi": p.UPI},
	})

	s.log.Info().
		Str("promotion_id", p.ID.String()).
		Str("campaign_id", c.ID.String()).
		Str("promoter_id", promoterID.String()).
		Int64("payout", p.PayoutAmount).
		Bool("campaign_exhausted", exhausted).
		Msg("promoter assigned")

	return p, nil
}

func (s *PromotionServiceImpl) allocateUPI(ctx context.Context, tx pgx.Tx) (string, error) {
	for attempt := 0; attempt < s.opts.UPIAttempts; attempt++ {
		upi, err := s.newUPI()
		if err != nil {
			return "", apperror.InternalError(err)
		}
		taken, err := s.repos.Promotions.UPIExists(ctx, tx, upi)
		if err != nil {
			return "", apperror.InternalError(fmt.Errorf("check upi: %w", err))
		}
		if !taken {
			return upi, nil
		}
	}
	return "", apperror.InternalError(fmt.Errorf("no free upi after %d attempts", s.opts.UPIAttempts))
}

// MarkDownloaded records that the promoter fetched the campaign media.
// Repeated calls are no-ops.
func (s *PromotionServiceImpl) MarkDownloaded(ctx context.Context, promotionID, promoterID uuid.UUID) (*domain.Promotion, error) {
	dbTx, err := s.repos.Transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	p, err := lockPromotion(ctx, dbTx, s.repos.Promotions, promotionID)
	if err != nil {
		return nil, err
	}
	if p.PromoterID != promoterID {
		return nil, apperror.ErrForbidden("This promotion belongs to another promoter")
	}
	if p.IsDownloaded {
		return p, nil
	}

	now := s.now()
	p.IsDownloaded = true
	p.UpdatedAt = now
	if err := s.repos.Promotions.Update(ctx, dbTx, p); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update promotion: %w", err))
	}
	entry := domain.NewActivity(domain.EntityPromotion, p.ID, domain.ActionDownloaded, uuidPtr(promoterID), "", now)
	if err := s.repos.Activity.Append(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append activity: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return p, nil
}

// SubmitProof records the promoter's proof of delivery and, after commit,
// asks the proof validator for an automated verdict.
func (s *PromotionServiceImpl) SubmitProof(ctx context.Context, req ports.SubmitProofRequest) (*domain.Promotion, error) {
	if err := validateProof(req); err != nil {
		return nil, err
	}

	dbTx, err := s.repos.Transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	c, p, err := s.lockCampaignAndPromotion(ctx, dbTx, req.PromotionID)
	if err != nil {
		return nil, err
	}
	if p.PromoterID != req.PromoterID {
		return nil, apperror.ErrForbidden("This promotion belongs to another promoter")
	}
	if p.Status != domain.PromotionPending {
		return nil, apperror.ErrInvalidTransition("promotion", string(p.Status), string(domain.PromotionSubmitted))
	}

	now := s.now()
	if err := s.checkSubmissionWindow(c, p, now); err != nil {
		return nil, err
	}
	if req.Views < c.MinViewsPerPromotion {
		return nil, apperror.ErrInsufficientViews(req.Views, c.MinViewsPerPromotion)
	}

	if err := p.Submit(req.MediaURLs, req.Views, now); err != nil {
		return nil, err
	}
	if err := s.repos.Promotions.Update(ctx, dbTx, p); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update promotion: %w", err))
	}

	by := uuidPtr(req.PromoterID)
	details := fmt.Sprintf("%d media, %d views", len(p.ProofMedia), p.ProofViews)
	if err := s.repos.Activity.Append(ctx, dbTx,
		domain.NewActivity(domain.EntityPromotion, p.ID, domain.ActionProofSubmitted, by, details, now),
		domain.NewActivity(domain.EntityCampaign, c.ID, domain.ActionProofSubmitted, by, p.Describe()+": "+details, now),
	); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append activity: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.autoReview(ctx, p)

	publish(ctx, s.publisher, s.log, ports.TopicPromotions, ports.Event{
		Type: "promotion.submitted", EntityID: p.ID, UserIDs: []uuid.UUID{p.MarketerID}, OccurredAt: now,
		Payload: map[string]any{"campaign_id": c.ID, "views": p.ProofViews},
	})

	s.log.Info().
		Str("promotion_id", p.ID.String()).
		Int("views", p.ProofViews).
		Int("media", len(p.ProofMedia)).
		Msg("proof submitted")

	return p, nil
}

func validateProof(req ports.SubmitProofRequest) error {
	if len(req.MediaURLs) == 0 {
		return apperror.Validation("at least one proof image is required")
	}
	for _, raw := range req.MediaURLs {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return apperror.Validation(fmt.Sprintf("invalid proof url %q", raw))
		}
	}
	if req.Views < 0 {
		return apperror.Validation("views cannot be negative")
	}
	return nil
}

func (s *PromotionServiceImpl) checkSubmissionWindow(c *domain.Campaign, p *domain.Promotion, now time.Time) error {
	deadline := p.SubmissionDeadline(s.opts.SubmissionWindow)
	if now.After(deadline) {
		return apperror.ErrSubmissionWindowClosed().WithDetail("deadline", deadline)
	}
	if s.opts.StrictSubmissionWindow {
		opensAt := deadline.Add(-s.opts.StrictWindowLength)
		if now.Before(opensAt) {
			return apperror.ErrSubmissionWindowClosed().WithDetail("opens_at", opensAt)
		}
	}
	if !c.AcceptsProofs(now) {
		return apperror.ErrSubmissionWindowClosed().WithDetail("campaign_status", c.Status)
	}
	return nil
}

// autoReview runs the proof validator best-effort and records its verdict.
func (s *PromotionServiceImpl) autoReview(ctx context.Context, p *domain.Promotion) {
	if s.validator == nil {
		return
	}
	verdict, err := s.validator.ValidateProofSubmission(ctx, p.ProofMedia, p)
	if err != nil {
		s.log.Warn().Err(err).Str("promotion_id", p.ID.String()).Msg("proof validation failed")
		return
	}
	if verdict == nil {
		return
	}

	details := fmt.Sprintf("valid=%t confidence=%.2f", verdict.IsValid, verdict.Confidence)
	if verdict.Feedback != "" {
		details += ": " + verdict.Feedback
	}
	dbTx, err := s.repos.Transactor.Begin(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("promotion_id", p.ID.String()).Msg("failed to record proof verdict")
		return
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck
	entry := domain.NewActivity(domain.EntityPromotion, p.ID, domain.ActionAutoReview, nil, details, s.now())
	if err := s.repos.Activity.Append(ctx, dbTx, entry); err != nil {
		s.log.Warn().Err(err).Str("promotion_id", p.ID.String()).Msg("failed to record proof verdict")
		return
	}
	if err := dbTx.Commit(ctx); err != nil {
		s.log.Warn().Err(err).Str("promotion_id", p.ID.String()).Msg("failed to record proof verdict")
	}
}

// lockCampaignAndPromotion locks in campaign -> promotion order. The
// unlocked read only discovers the campaign id; the promotion is re-read
// under lock.
func (s *PromotionServiceImpl) lockCampaignAndPromotion(ctx context.Context, tx pgx.Tx, promotionID uuid.UUID) (*domain.Campaign, *domain.Promotion, error) {
	return lockPromotionCampaign(ctx, tx, s.repos, promotionID)
}

func lockPromotionCampaign(ctx context.Context, tx pgx.Tx, repos Repos, promotionID uuid.UUID) (*domain.Campaign, *domain.Promotion, error) {
	peek, err := repos.Promotions.GetByID(ctx, promotionID)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("get promotion: %w", err))
	}
	if peek == nil {
		return nil, nil, apperror.ErrNotFound("Promotion")
	}
	c, err := lockCampaign(ctx, tx, repos.Campaigns, peek.CampaignID)
	if err != nil {
		return nil, nil, err
	}
	p, err := lockPromotion(ctx, tx, repos.Promotions, promotionID)
	if err != nil {
		return nil, nil, err
	}
	return c, p, nil
}

// ValidatePromotion approves submitted proof.
func (s *PromotionServiceImpl) ValidatePromotion(ctx context.Context, promotionID uuid.UUID, actor ports.Actor) (*domain.Promotion, error) {
	return s.review(ctx, promotionID, actor, true, false)
}

// PayPromotion releases the payout of a validated promotion.
func (s *PromotionServiceImpl) PayPromotion(ctx context.Context, promotionID uuid.UUID, actor ports.Actor) (*domain.Promotion, error) {
	return s.review(ctx, promotionID, actor, false, true)
}

// ApproveAndPay validates and pays a submitted promotion in one transaction.
func (s *PromotionServiceImpl) ApproveAndPay(ctx context.Context, promotionID uuid.UUID, actor ports.Actor) (*domain.Promotion, error) {
	return s.review(ctx, promotionID, actor, true, true)
}

func (s *PromotionServiceImpl) review(ctx context.Context, promotionID uuid.UUID, actor ports.Actor, validate, pay bool) (*domain.Promotion, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden("Only admins can review promotions")
	}

	dbTx, err := s.repos.Transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	c, p, err := s.lockCampaignAndPromotion(ctx, dbTx, promotionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	by := actor.PerformedBy()
	var entries []domain.ActivityEntry

	if validate {
		if err := p.Validate(actor.UserID, now); err != nil {
			return nil, err
		}
		c.RecordValidated()
		entries = append(entries,
			domain.NewActivity(domain.EntityPromotion, p.ID, domain.ActionValidated, by, "", now),
			domain.NewActivity(domain.EntityCampaign, c.ID, domain.ActionValidated, by, p.Describe(), now),
		)
	}

	completed := false
	if pay {
		if err := p.MarkPaid(now); err != nil {
			return nil, err
		}
		users, err := lockUsers(ctx, dbTx, s.repos.Users, p.PromoterID, c.OwnerID)
		if err != nil {
			return nil, err
		}
		refs := domain.TxRefs{
			CampaignID:  uuidPtr(c.ID),
			PromotionID: uuidPtr(p.ID),
			Description: fmt.Sprintf("Payout for %s", p.Describe()),
		}
		if err := s.ledger.ReleaseReserved(ctx, dbTx, users[p.PromoterID], domain.WalletPromoter, p.PayoutAmount, refs); err != nil {
			return nil, err
		}
		entries = append(entries,
			domain.NewActivity(domain.EntityPromotion, p.ID, domain.ActionPaid, by, fmt.Sprintf("released %d", p.PayoutAmount), now),
			domain.NewActivity(domain.EntityCampaign, c.ID, domain.ActionPaid, by, p.Describe(), now),
		)

		if completed = c.RecordPaid(p.PayoutAmount); completed {
			entries = append(entries, domain.NewActivity(domain.EntityCampaign, c.ID, domain.ActionCompleted, nil, "all promotions settled", now))
			refunds, err := refundRemaining(ctx, s.ledger, dbTx, c, users[c.OwnerID], nil, now)
			if err != nil {
				return nil, err
			}
			entries = append(entries, refunds...)
		}
	}

	c.UpdatedAt = now
	if err := s.repos.Promotions.Update(ctx, dbTx, p); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update promotion: %w", err))
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

	publish(ctx, s.publisher, s.log, ports.TopicPromotions, ports.Event{
		Type: "promotion." + string(p.Status), EntityID: p.ID, UserIDs: []uuid.UUID{p.PromoterID}, OccurredAt: now,
		Payload: map[string]any{"campaign_id": c.ID, "payout": p.PayoutAmount},
	})

	s.log.Info().
		Str("promotion_id", p.ID.String()).
		Str("status", string(p.Status)).
		Bool("campaign_completed", completed).
		Msg("promotion reviewed")

	return p, nil
}

// RejectPromotion rejects pending or submitted work and returns its escrow
// to the marketer.
func (s *PromotionServiceImpl) RejectPromotion(ctx context.Context, promotionID uuid.UUID, actor ports.Actor, reason string) (*domain.Promotion, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.Validation("rejection reason is required")
	}

	dbTx, err := s.repos.Transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	c, p, err := s.lockCampaignAndPromotion(ctx, dbTx, promotionID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !c.IsOwnedBy(actor.UserID) {
		return nil, apperror.ErrForbidden("Only admins or the campaign owner can reject promotions")
	}

	now := s.now()
	if err := p.Reject(reason, now); err != nil {
		return nil, err
	}
	entries, err := reverseEscrow(ctx, s.ledger, s.repos, dbTx, c, p, actor.PerformedBy(), domain.ActionRejected, now)
	if err != nil {
		return nil, err
	}

	if err := s.repos.Promotions.Update(ctx, dbTx, p); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update promotion: %w", err))
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

	publish(ctx, s.publisher, s.log, ports.TopicPromotions, ports.Event{
		Type: "promotion.rejected", EntityID: p.ID, UserIDs: []uuid.UUID{p.PromoterID}, OccurredAt: now,
		Payload: map[string]any{"campaign_id": c.ID, "reason": reason},
	})

	s.log.Info().
		Str("promotion_id", p.ID.String()).
		Str("campaign_id", c.ID.String()).
		Str("campaign_status", string(c.Status)).
		Msg("promotion rejected")

	return p, nil
}

// reverseEscrow returns a rejected promotion's payout from the promoter's
// reserve to the marketer's reserve and frees its slot. When the campaign is
// already closed the payout continues on to the marketer's balance.
// The caller has already moved p to rejected.
func reverseEscrow(ctx context.Context, ledger *Ledger, repos Repos, tx pgx.Tx, c *domain.Campaign, p *domain.Promotion,
	by *uuid.UUID, action string, now time.Time,
) ([]domain.ActivityEntry, error) {
	users, err := lockUsers(ctx, tx, repos.Users, p.PromoterID, c.OwnerID)
	if err != nil {
		return nil, err
	}
	promoter, marketer := users[p.PromoterID], users[c.OwnerID]

	refs := domain.TxRefs{
		CampaignID:  uuidPtr(c.ID),
		PromotionID: uuidPtr(p.ID),
		Description: fmt.Sprintf("Escrow returned for %s", p.Describe()),
	}
	if err := ledger.ReturnEscrow(ctx, tx, promoter, marketer, p.PayoutAmount, refs); err != nil {
		return nil, err
	}

	reason := ""
	if p.RejectionReason != nil {
		reason = *p.RejectionReason
	}
	entries := []domain.ActivityEntry{
		domain.NewActivity(domain.EntityPromotion, p.ID, action, by, reason, now),
		domain.NewActivity(domain.EntityCampaign, c.ID, action, by, p.Describe()+": "+reason, now),
	}

	if c.ReleaseSlot(p.PayoutAmount) {
		entries = append(entries, domain.NewActivity(domain.EntityCampaign, c.ID, domain.ActionReactivated, nil, "slot freed", now))
	}
	c.UpdatedAt = now

	if c.Status.IsClosed() {
		refs.Description = fmt.Sprintf("Returned escrow of closed campaign %q", c.Title)
		if err := ledger.RefundReservedToBalance(ctx, tx, marketer, domain.WalletMarketer, p.PayoutAmount, refs); err != nil {
			return nil, err
		}
		c.MarkRefunded(p.PayoutAmount)
		entries = append(entries, domain.NewActivity(domain.EntityCampaign, c.ID, domain.ActionRefunded, nil,
			fmt.Sprintf("refunded %d to owner", p.PayoutAmount), now))
	}
	return entries, nil
}

// GetPromotion fetches a promotion by id.
func (s *PromotionServiceImpl) GetPromotion(ctx context.Context, id uuid.UUID) (*domain.Promotion, error) {
	p, err := s.repos.Promotions.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get promotion: %w", err))
	}
	if p == nil {
		return nil, apperror.ErrNotFound("Promotion")
	}
	return p, nil
}

// GetPromotionByUPI fetches a promotion by its tracking code.
func (s *PromotionServiceImpl) GetPromotionByUPI(ctx context.Context, upi string) (*domain.Promotion, error) {
	if len(upi) != domain.UPILength || strings.Trim(upi, "0123456789") != "" {
		return nil, apperror.Validation(fmt.Sprintf("upi must be %d digits", domain.UPILength))
	}
	p, err := s.repos.Promotions.GetByUPI(ctx, upi)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get promotion by upi: %w", err))
	}
	if p == nil {
		return nil, apperror.ErrNotFound("Promotion")
	}
	return p, nil
}

// ListPromotions returns a page of promotions.
func (s *PromotionServiceImpl) ListPromotions(ctx context.Context, params ports.PromotionListParams) ([]domain.Promotion, int64, error) {
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)
	promotions, total, err := s.repos.Promotions.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list promotions: %w", err))
	}
	return promotions, total, nil
}

// asAppError keeps repository conflicts typed and wraps everything else.
func asAppError(err error, op string) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.InternalError(fmt.Errorf("%s: %w", op, err))
}
