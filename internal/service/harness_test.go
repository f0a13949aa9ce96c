package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"status-promo-marketplace/internal/adapter/storage/memory"
	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// marketplace wires every service over one in-memory store.
type marketplace struct {
	t          *testing.T
	store      *memory.Store
	repos      Repos
	clock      *fakeClock
	ledger     *Ledger
	campaigns  *CampaignServiceImpl
	promotions *PromotionServiceImpl
	expiration *ExpirationServiceImpl
	wallets    *WalletServiceImpl
}

func newMarketplace(t *testing.T) *marketplace {
	t.Helper()
	store := memory.NewStore()
	repos := Repos{
		Transactor:  store,
		Users:       memory.NewUserRepo(store),
		WalletTxs:   memory.NewWalletTransactionRepo(store),
		Campaigns:   memory.NewCampaignRepo(store),
		Promotions:  memory.NewPromotionRepo(store),
		Activity:    memory.NewActivityRepo(store),
		Withdrawals: memory.NewWithdrawalRepo(store),
	}
	clock := &fakeClock{t: testEpoch}
	log := zerolog.Nop()

	ledger := NewLedger(repos.Users, repos.WalletTxs)
	ledger.now = clock.Now

	m := &marketplace{
		t:          t,
		store:      store,
		repos:      repos,
		clock:      clock,
		ledger:     ledger,
		campaigns:  NewCampaignService(repos, ledger, nil, CampaignOptions{}, log),
		promotions: NewPromotionService(repos, ledger, nil, nil, DefaultPromotionOptions(), log),
		expiration: NewExpirationService(repos, ledger, nil, nil, DefaultExpirationOptions(), log),
		wallets:    NewWalletService(repos, ledger, log),
	}
	m.campaigns.now = clock.Now
	m.wallets.now = clock.Now
	m.promotions.now = clock.Now
	m.expiration.now = clock.Now
	return m
}

func (m *marketplace) newUser(name string, marketerBalance, promoterBalance int64, roles ...domain.Role) *domain.User {
	m.t.Helper()
	u := &domain.User{
		ID:             uuid.New(),
		Username:       name,
		Email:          name + "@example.com",
		Roles:          roles,
		MarketerWallet: domain.Wallet{Balance: marketerBalance},
		PromoterWallet: domain.Wallet{Balance: promoterBalance},
		CreatedAt:      m.clock.Now(),
		UpdatedAt:      m.clock.Now(),
	}
	require.NoError(m.t, m.repos.Users.Create(context.Background(), u))
	return u
}

func (m *marketplace) marketer(name string, balance int64) *domain.User {
	return m.newUser(name, balance, 0, domain.RoleMarketer)
}

func (m *marketplace) promoter(name string) *domain.User {
	return m.newUser(name, 0, 0, domain.RolePromoter)
}

func (m *marketplace) admin() ports.Actor {
	u := m.newUser("admin-"+uuid.NewString()[:8], 0, 0, domain.RoleAdmin)
	return ports.Actor{UserID: u.ID, Roles: u.Roles}
}

func actorOf(u *domain.User) ports.Actor {
	return ports.Actor{UserID: u.ID, Roles: u.Roles}
}

func (m *marketplace) launch(owner *domain.User, budget, payout int64) *domain.Campaign {
	m.t.Helper()
	c, err := m.campaigns.CreateCampaign(context.Background(), ports.CreateCampaignRequest{
		OwnerID:            owner.ID,
		Title:              "Spring sale",
		Budget:             budget,
		PayoutPerPromotion: payout,
	})
	require.NoError(m.t, err)
	return c
}

func (m *marketplace) assign(c *domain.Campaign, promoter *domain.User) *domain.Promotion {
	m.t.Helper()
	p, err := m.promotions.AssignPromoter(context.Background(), c.ID, promoter.ID)
	require.NoError(m.t, err)
	return p
}

func (m *marketplace) submit(p *domain.Promotion, views int) *domain.Promotion {
	m.t.Helper()
	out, err := m.promotions.SubmitProof(context.Background(), ports.SubmitProofRequest{
		PromotionID: p.ID,
		PromoterID:  p.PromoterID,
		MediaURLs:   []string{"https://cdn.example.com/proof/" + p.UPI + ".jpg"},
		Views:       views,
	})
	require.NoError(m.t, err)
	return out
}

func (m *marketplace) user(id uuid.UUID) *domain.User {
	m.t.Helper()
	u, err := m.repos.Users.GetByID(context.Background(), id)
	require.NoError(m.t, err)
	require.NotNil(m.t, u)
	return u
}

func (m *marketplace) campaign(id uuid.UUID) *domain.Campaign {
	m.t.Helper()
	c, err := m.repos.Campaigns.GetByID(context.Background(), id)
	require.NoError(m.t, err)
	require.NotNil(m.t, c)
	return c
}

func (m *marketplace) promotion(id uuid.UUID) *domain.Promotion {
	m.t.Helper()
	p, err := m.repos.Promotions.GetByID(context.Background(), id)
	require.NoError(m.t, err)
	require.NotNil(m.t, p)
	return p
}

func (m *marketplace) ledgerOf(userID uuid.UUID) []domain.WalletTransaction {
	m.t.Helper()
	txs, _, err := m.repos.WalletTxs.ListByUser(context.Background(), ports.WalletTxListParams{UserID: userID, Page: 1, PageSize: 1000})
	require.NoError(m.t, err)
	return txs
}

func (m *marketplace) activity(entity domain.EntityType, id uuid.UUID) []string {
	m.t.Helper()
	entries, err := m.repos.Activity.List(context.Background(), entity, id, 0)
	require.NoError(m.t, err)
	actions := make([]string, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		actions = append(actions, entries[i].Action)
	}
	return actions
}

// requireBudgetHeld checks that the owner's marketer reserve equals the
// remaining budget of their campaigns, and that campaign counters stay in
// range.
func (m *marketplace) requireBudgetHeld(owner uuid.UUID, campaignIDs ...uuid.UUID) {
	m.t.Helper()
	var remaining int64
	for _, id := range campaignIDs {
		c := m.campaign(id)
		require.GreaterOrEqual(m.t, c.SpentBudget, int64(0))
		require.LessOrEqual(m.t, c.SpentBudget, c.Budget)
		require.GreaterOrEqual(m.t, c.CurrentPromoters, 0)
		require.LessOrEqual(m.t, c.CurrentPromoters, c.MaxPromoters)
		remaining += c.RemainingBudget()
	}
	u := m.user(owner)
	require.Equal(m.t, remaining, u.MarketerWallet.Reserved, "marketer reserve must equal remaining budget")
	require.GreaterOrEqual(m.t, u.MarketerWallet.Balance, int64(0))
}

func (m *marketplace) totalFunds(ids ...uuid.UUID) int64 {
	var sum int64
	for _, id := range ids {
		u := m.user(id)
		sum += u.MarketerWallet.Balance + u.MarketerWallet.Reserved + u.PromoterWallet.Balance + u.PromoterWallet.Reserved
	}
	return sum
}
