package service

import (
	"context"
	"fmt"
	"time"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"
	"status-promo-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	hourlySweepLockKey = "sweeper:hourly"
	dailySweepLockKey  = "sweeper:daily"
)

// expirableCampaignStatuses are the live statuses a passed end date closes.
var expirableCampaignStatuses = []domain.CampaignStatus{
	domain.CampaignActive, domain.CampaignPaused, domain.CampaignExhausted,
}

// ExpirationOptions tunes the sweeper passes.
type ExpirationOptions struct {
	SubmissionWindow time.Duration // promotions older than this are stale
	HourlyLookback   time.Duration // hourly pass only looks this far back
	CleanupAge       time.Duration // daily pass catches anything older
	BatchSize        int
	LockTTL          time.Duration
}

// DefaultExpirationOptions returns the production defaults.
func DefaultExpirationOptions() ExpirationOptions {
	return ExpirationOptions{
		SubmissionWindow: 24 * time.Hour,
		HourlyLookback:   25 * time.Hour,
		CleanupAge:       48 * time.Hour,
		BatchSize:        500,
		LockTTL:          10 * time.Minute,
	}
}

// ExpirationServiceImpl implements ports.ExpirationService.
type ExpirationServiceImpl struct {
	repos     Repos
	ledger    *Ledger
	lock      ports.SweepLock
	publisher ports.EventPublisher
	opts      ExpirationOptions
	log       zerolog.Logger
	now       Clock
}

// NewExpirationService creates a new ExpirationServiceImpl.
func NewExpirationService(
	repos Repos,
	ledger *Ledger,
	lock ports.SweepLock,
	publisher ports.EventPublisher,
	opts ExpirationOptions,
	log zerolog.Logger,
) *ExpirationServiceImpl {
	defaults := DefaultExpirationOptions()
	if opts.SubmissionWindow <= 0 {
		opts.SubmissionWindow = defaults.SubmissionWindow
	}
	if opts.HourlyLookback <= opts.SubmissionWindow {
		opts.HourlyLookback = opts.SubmissionWindow + time.Hour
	}
	if opts.CleanupAge <= 0 {
		opts.CleanupAge = defaults.CleanupAge
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaults.BatchSize
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaults.LockTTL
	}
	return &ExpirationServiceImpl{
		repos:     repos,
		ledger:    ledger,
		lock:      lock,
		publisher: publisher,
		opts:      opts,
		log:       log,
		now:       systemClock,
	}
}

// ExpireStalePromotions rejects promotions that went past their submission
// deadline within the last hour.
func (s *ExpirationServiceImpl) ExpireStalePromotions(ctx context.Context) (*ports.SweepResult, error) {
	return s.withLock(ctx, hourlySweepLockKey, func(result *ports.SweepResult) error {
		now := s.now()
		ids, err := s.repos.Promotions.ListPendingCreatedBetween(ctx,
			now.Add(-s.opts.HourlyLookback), now.Add(-s.opts.SubmissionWindow), s.opts.BatchSize)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("list stale promotions: %w", err))
		}
		s.expireAll(ctx, ids, result)
		return nil
	})
}

// RunDailyCleanup catches stale promotions the hourly pass missed and
// expires campaigns whose end date has passed.
func (s *ExpirationServiceImpl) RunDailyCleanup(ctx context.Context) (*ports.SweepResult, error) {
	return s.withLock(ctx, dailySweepLockKey, func(result *ports.SweepResult) error {
		now := s.now()
		ids, err := s.repos.Promotions.ListPendingCreatedBetween(ctx, time.Time{}, now.Add(-s.opts.CleanupAge), s.opts.BatchSize)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("list abandoned promotions: %w", err))
		}
		s.expireAll(ctx, ids, result)

		campaignIDs, err := s.repos.Campaigns.ListEndedBefore(ctx, now, expirableCampaignStatuses, s.opts.BatchSize)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("list ended campaigns: %w", err))
		}
		for _, id := range campaignIDs {
			expired, err := s.expireCampaign(ctx, id)
			if err != nil {
				result.Failed++
				s.log.Error().Err(err).Str("campaign_id", id.String()).Msg("failed to expire campaign")
				continue
			}
			if expired {
				result.CampaignsExpired++
			}
		}
		return nil
	})
}

func (s *ExpirationServiceImpl) withLock(ctx context.Context, key string, pass func(*ports.SweepResult) error) (*ports.SweepResult, error) {
	result := &ports.SweepResult{}
	if s.lock != nil {
		unlock, ok, err := s.lock.TryLock(ctx, key, s.opts.LockTTL)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("acquire sweep lock: %w", err))
		}
		if !ok {
			result.LockNotAcquired = true
			s.log.Debug().Str("lock", key).Msg("sweep already running elsewhere")
			return result, nil
		}
		defer unlock()
	}

	if err := pass(result); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("pass", key).
		Int("candidates", result.Candidates).
		Int("expired", result.Expired).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Int("campaigns_expired", result.CampaignsExpired).
		Msg("sweep finished")
	return result, nil
}

// expireAll gives each promotion its own transaction so one failure does not
// stop the batch.
func (s *ExpirationServiceImpl) expireAll(ctx context.Context, ids []uuid.UUID, result *ports.SweepResult) {
	result.Candidates += len(ids)
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		expired, err := s.expirePromotion(ctx, id)
		switch {
		case err != nil:
			result.Failed++
			s.log.Error().Err(err).Str("promotion_id", id.String()).Msg("failed to expire promotion")
		case expired:
			result.Expired++
		default:
			result.Skipped++
		}
	}
}

// expirePromotion re-checks the promotion under lock and skips it unless it
// is still pending past its deadline.
func (s *ExpirationServiceImpl) expirePromotion(ctx context.Context, id uuid.UUID) (bool, error) {
	dbTx, err := s.repos.Transactor.Begin(ctx)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	c, p, err := lockPromotionCampaign(ctx, dbTx, s.repos, id)
	if err != nil {
		return false, err
	}
	now := s.now()
	if p.Status != domain.PromotionPending || !p.CreatedAt.Before(now.Add(-s.opts.SubmissionWindow)) {
		return false, nil
	}

	if err := p.Reject(domain.ExpiryRejectionReason, now); err != nil {
		return false, err
	}
	entries, err := reverseEscrow(ctx, s.ledger, s.repos, dbTx, c, p, nil, domain.ActionExpired, now)
	if err != nil {
		return false, err
	}

	if err := s.repos.Promotions.Update(ctx, dbTx, p); err != nil {
		return false, apperror.InternalError(fmt.Errorf("update promotion: %w", err))
	}
	if err := s.repos.Campaigns.Update(ctx, dbTx, c); err != nil {
		return false, apperror.InternalError(fmt.Errorf("update campaign: %w", err))
	}
	if err := s.repos.Activity.Append(ctx, dbTx, entries...); err != nil {
		return false, apperror.InternalError(fmt.Errorf("append activity: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return false, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	publish(ctx, s.publisher, s.log, ports.TopicPromotions, ports.Event{
		Type: "promotion.expired", EntityID: p.ID, UserIDs: []uuid.UUID{p.PromoterID}, OccurredAt: now,
		Payload: map[string]any{"campaign_id": c.ID},
	})

	s.log.Info().
		Str("promotion_id", p.ID.String()).
		Str("campaign_id", c.ID.String()).
		Int64("returned", p.PayoutAmount).
		Msg("promotion expired")
	return true, nil
}

func (s *ExpirationServiceImpl) expireCampaign(ctx context.Context, id uuid.UUID) (bool, error) {
	dbTx, err := s.repos.Transactor.Begin(ctx)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	c, err := lockCampaign(ctx, dbTx, s.repos.Campaigns, id)
	if err != nil {
		return false, err
	}
	now := s.now()
	if c.EndDate == nil || !c.EndDate.Before(now) || !containsCampaignStatus(expirableCampaignStatuses, c.Status) {
		return false, nil
	}

	entry, err := c.UpdateStatus(domain.CampaignExpired, nil, "end date passed", now)
	if err != nil {
		return false, err
	}
	entry.Action = domain.ActionExpired

	users, err := lockUsers(ctx, dbTx, s.repos.Users, c.OwnerID)
	if err != nil {
		return false, err
	}
	refunds, err := refundRemaining(ctx, s.ledger, dbTx, c, users[c.OwnerID], nil, now)
	if err != nil {
		return false, err
	}

	if err := s.repos.Campaigns.Update(ctx, dbTx, c); err != nil {
		return false, apperror.InternalError(fmt.Errorf("update campaign: %w", err))
	}
	if err := s.repos.Activity.Append(ctx, dbTx, append([]domain.ActivityEntry{entry}, refunds...)...); err != nil {
		return false, apperror.InternalError(fmt.Errorf("append activity: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return false, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	publish(ctx, s.publisher, s.log, ports.TopicCampaigns, ports.Event{
		Type: "campaign.expired", EntityID: c.ID, UserIDs: []uuid.UUID{c.OwnerID}, OccurredAt: now,
	})

	s.log.Info().
		Str("campaign_id", c.ID.String()).
		Int64("refunded_budget", c.RefundedBudget).
		Msg("campaign expired")
	return true, nil
}

func containsCampaignStatus(statuses []domain.CampaignStatus, s domain.CampaignStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}
