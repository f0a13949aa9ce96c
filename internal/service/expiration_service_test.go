package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"
	"status-promo-marketplace/internal/core/ports/mocks"
	"status-promo-marketplace/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestExpirationService_HourlyBoundary(t *testing.T) {
	m := newMarketplace(t)
	mk := m.marketer("acme", 1000)
	pr := m.promoter("pat")
	c := m.launch(mk, 1000, 200)
	p := m.assign(c, pr)

	m.clock.Advance(23*time.Hour + 59*time.Minute)
	result, err := m.expiration.ExpireStalePromotions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Expired)
	assert.Equal(t, domain.PromotionPending, m.promotion(p.ID).Status)

	m.clock.Advance(time.Minute + time.Second)
	result, err = m.expiration.ExpireStalePromotions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Candidates)
	assert.Equal(t, 1, result.Expired)

	got := m.promotion(p.ID)
	assert.Equal(t, domain.PromotionRejected, got.Status)
	require.NotNil(t, got.RejectionReason)
	assert.Equal(t, domain.ExpiryRejectionReason, *got.RejectionReason)

	assert.Equal(t, domain.Wallet{}, m.user(pr.ID).PromoterWallet)
	assert.Equal(t, int64(1000), m.user(mk.ID).MarketerWallet.Reserved)
	assert.Equal(t, 0, m.campaign(c.ID).CurrentPromoters)
	m.requireBudgetHeld(mk.ID, c.ID)
	assert.Contains(t, m.activity(domain.EntityPromotion, p.ID), domain.ActionExpired)
}

func TestExpirationService_RerunIsNoop(t *testing.T) {
	m := newMarketplace(t)
	mk := m.marketer("acme", 1000)
	c := m.launch(mk, 1000, 200)
	p := m.assign(c, m.promoter("pat"))
	m.clock.Advance(24*time.Hour + time.Second)

	_, err := m.expiration.ExpireStalePromotions(context.Background())
	require.NoError(t, err)
	ledgerSize := len(m.ledgerOf(mk.ID))

	result, err := m.expiration.ExpireStalePromotions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Candidates)

	// A candidate list gone stale between listing and locking is skipped.
	expired, err := m.expiration.expirePromotion(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, expired)

	assert.Len(t, m.ledgerOf(mk.ID), ledgerSize)
	assert.Equal(t, int64(1000), m.user(mk.ID).MarketerWallet.Reserved)
	m.requireBudgetHeld(mk.ID, c.ID)
}

func TestExpirationService_SkipsSubmittedWork(t *testing.T) {
	m := newMarketplace(t)
	mk := m.marketer("acme", 1000)
	c := m.launch(mk, 1000, 200)
	p := m.assign(c, m.promoter("pat"))
	m.clock.Advance(time.Hour)
	m.submit(p, 30)
	m.clock.Advance(24 * time.Hour)

	result, err := m.expiration.ExpireStalePromotions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Expired)
	assert.Equal(t, domain.PromotionSubmitted, m.promotion(p.ID).Status)
}

// An exhausted campaign whose pending promotion expires becomes assignable
// again.
func TestExpirationService_ReactivatesExhaustedCampaign(t *testing.T) {
	m := newMarketplace(t)
	mk := m.marketer("acme", 1000)
	c := m.launch(mk, 400, 200)
	stale := m.assign(c, m.promoter("stale"))
	m.clock.Advance(2 * time.Hour)
	m.assign(c, m.promoter("fresh"))
	require.Equal(t, domain.CampaignExhausted, m.campaign(c.ID).Status)

	m.clock.Advance(22*time.Hour + time.Second)
	result, err := m.expiration.ExpireStalePromotions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Expired)
	assert.Equal(t, domain.PromotionRejected, m.promotion(stale.ID).Status)

	got := m.campaign(c.ID)
	assert.Equal(t, 1, got.CurrentPromoters)
	assert.True(t, got.CanAssignPromoter())
	assert.Equal(t, domain.CampaignActive, got.Status)
	m.requireBudgetHeld(mk.ID, c.ID)
}

func TestExpirationService_ClosedCampaignEscrowGoesToOwner(t *testing.T) {
	m := newMarketplace(t)
	mk := m.marketer("acme", 1000)
	c := m.launch(mk, 1000, 200)
	m.assign(c, m.promoter("pat"))
	_, err := m.setStatus(c, actorOf(mk), domain.CampaignCancelled)
	require.NoError(t, err)

	m.clock.Advance(24*time.Hour + time.Second)
	result, err := m.expiration.ExpireStalePromotions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Expired)

	assert.Equal(t, domain.Wallet{Balance: 1000}, m.user(mk.ID).MarketerWallet)
	assert.Equal(t, domain.CampaignCancelled, m.campaign(c.ID).Status)
	m.requireBudgetHeld(mk.ID, c.ID)
}

func TestExpirationService_DailyCleanup(t *testing.T) {
	m := newMarketplace(t)
	mk := m.marketer("acme", 2000)
	end := testEpoch.Add(48 * time.Hour)
	ending, err := m.campaigns.CreateCampaign(context.Background(), ports.CreateCampaignRequest{
		OwnerID: mk.ID, Title: "weekend", Budget: 1000, PayoutPerPromotion: 200, EndDate: &end,
	})
	require.NoError(t, err)
	ongoing := m.launch(mk, 1000, 200)
	abandoned := m.assign(ongoing, m.promoter("pat"))
	admitted := m.assign(ending, m.promoter("sam"))

	m.clock.Advance(49 * time.Hour)

	// The hourly pass only looks one hour past the deadline.
	hourly, err := m.expiration.ExpireStalePromotions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, hourly.Candidates)

	result, err := m.expiration.RunDailyCleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Expired)
	assert.Equal(t, 1, result.CampaignsExpired)
	assert.Zero(t, result.Failed)

	assert.Equal(t, domain.PromotionRejected, m.promotion(abandoned.ID).Status)
	assert.Equal(t, domain.PromotionRejected, m.promotion(admitted.ID).Status)

	got := m.campaign(ending.ID)
	assert.Equal(t, domain.CampaignExpired, got.Status)
	assert.Equal(t, int64(1000), got.RefundedBudget)
	assert.Equal(t, domain.CampaignActive, m.campaign(ongoing.ID).Status)

	u := m.user(mk.ID)
	assert.Equal(t, domain.Wallet{Balance: 1000, Reserved: 1000}, u.MarketerWallet)
	m.requireBudgetHeld(mk.ID, ending.ID, ongoing.ID)

	again, err := m.expiration.RunDailyCleanup(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Expired)
	assert.Zero(t, again.CampaignsExpired)
}

func TestExpirationService_SweepLock(t *testing.T) {
	t.Run("held elsewhere", func(t *testing.T) {
		m := newMarketplace(t)
		ctrl := gomock.NewController(t)
		lock := mocks.NewMockSweepLock(ctrl)
		m.expiration.lock = lock
		c := m.launch(m.marketer("acme", 1000), 1000, 200)
		p := m.assign(c, m.promoter("pat"))
		m.clock.Advance(25 * time.Hour)

		lock.EXPECT().TryLock(gomock.Any(), hourlySweepLockKey, 10*time.Minute).Return(nil, false, nil)

		result, err := m.expiration.ExpireStalePromotions(context.Background())
		require.NoError(t, err)
		assert.True(t, result.LockNotAcquired)
		assert.Equal(t, domain.PromotionPending, m.promotion(p.ID).Status)
	})

	t.Run("acquired and released", func(t *testing.T) {
		m := newMarketplace(t)
		ctrl := gomock.NewController(t)
		lock := mocks.NewMockSweepLock(ctrl)
		m.expiration.lock = lock

		released := false
		lock.EXPECT().
			TryLock(gomock.Any(), dailySweepLockKey, gomock.Any()).
			Return(func() { released = true }, true, nil)

		result, err := m.expiration.RunDailyCleanup(context.Background())
		require.NoError(t, err)
		assert.False(t, result.LockNotAcquired)
		assert.True(t, released)
	})

	t.Run("lock store down", func(t *testing.T) {
		m := newMarketplace(t)
		ctrl := gomock.NewController(t)
		lock := mocks.NewMockSweepLock(ctrl)
		m.expiration.lock = lock

		lock.EXPECT().TryLock(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, false, errors.New("connection refused"))

		_, err := m.expiration.ExpireStalePromotions(context.Background())
		assert.True(t, apperror.IsKind(err, apperror.KindInternal))
	})
}

func TestNewExpirationService_FixesLookback(t *testing.T) {
	svc := NewExpirationService(Repos{}, nil, nil, nil, ExpirationOptions{SubmissionWindow: 2 * time.Hour, HourlyLookback: time.Hour}, zerolog.Nop())
	assert.Equal(t, 3*time.Hour, svc.opts.HourlyLookback)
	assert.Equal(t, 500, svc.opts.BatchSize)
}
