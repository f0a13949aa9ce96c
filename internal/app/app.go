// Package app assembles the marketplace from configuration: storage,
// Redis adapters, external clients, services, the HTTP router and the
// sweep scheduler. Both binaries build on it.
package app

import (
	"context"
	"fmt"
	"net/http"

	"status-promo-marketplace/config"
	"status-promo-marketplace/internal/adapter/external"
	httpHandler "status-promo-marketplace/internal/adapter/http/handler"
	"status-promo-marketplace/internal/adapter/http/middleware"
	"status-promo-marketplace/internal/adapter/notify"
	"status-promo-marketplace/internal/adapter/storage/memory"
	pgStorage "status-promo-marketplace/internal/adapter/storage/postgres"
	redisStorage "status-promo-marketplace/internal/adapter/storage/redis"
	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"
	"status-promo-marketplace/internal/service"
	"status-promo-marketplace/internal/worker"
	"status-promo-marketplace/pkg/logger"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Services exposes the business services for callers that bypass HTTP.
type Services struct {
	Campaigns   *service.CampaignServiceImpl
	Promotions  *service.PromotionServiceImpl
	Wallets     *service.WalletServiceImpl
	Withdrawals *service.WithdrawalServiceImpl
	Expiration  *service.ExpirationServiceImpl
	Tokens      *service.JWTTokenService
}

// Infra holds optional pre-built clients. Nil fields are created from config.
type Infra struct {
	Redis *goredis.Client
	// HTTPClient is used by the webhook publisher.
	HTTPClient notify.HTTPClient
}

// App is a fully wired marketplace instance.
type App struct {
	cfg       *config.Config
	log       zerolog.Logger
	services  Services
	checkers  []ports.HealthChecker
	limiter   ports.RateLimiter
	scheduler *worker.Scheduler
	webhook   *notify.WebhookPublisher
	closers   []func()
}

// New connects to the configured backends and wires every component. On
// error, anything already opened is closed.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, infra Infra) (a *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a = &App{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	var cipher ports.FieldCipher
	if cfg.Security.EncryptionKey != "" {
		c, err := service.NewAESFieldCipher(cfg.Security.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("field cipher: %w", err)
		}
		cipher = c
	} else {
		log.Warn().Msg("security.encryption_key not set, bank account numbers are stored in plaintext")
	}

	repos, err := a.openStorage(ctx, cipher)
	if err != nil {
		return nil, err
	}

	publishers := notify.MultiPublisher{notify.NewLogPublisher(logger.Component(log, "events"))}

	var (
		idempCache ports.IdempotencyCache
		sweepLock  ports.SweepLock
	)
	rdb := infra.Redis
	if rdb == nil && cfg.Redis.Enabled {
		rdb, err = redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		client := rdb
		a.closers = append(a.closers, func() { _ = client.Close() })
	}
	if rdb != nil {
		idempCache = redisStorage.NewIdempotencyCache(rdb, "withdrawals")
		sweepLock = redisStorage.NewSweepLock(rdb, logger.Component(log, "sweep_lock"))
		if cfg.RateLimit.Enabled {
			a.limiter = redisStorage.NewRateLimitStore(rdb)
		}
		if cfg.Notifications.RedisPubSub {
			publishers = append(publishers, redisStorage.NewPublisher(rdb))
		}
		a.checkers = append(a.checkers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("redis disabled: no rate limiting, sweep lock or idempotency cache")
	}

	if cfg.Notifications.WebhookURL != "" {
		client := infra.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: cfg.Notifications.Timeout}
		}
		a.webhook = notify.NewWebhookPublisher(cfg.Notifications.WebhookURL, cfg.Notifications.WebhookSecret, client, nil, log)
		publishers = append(publishers, a.webhook)
	}

	feeRate, err := decimal.NewFromString(cfg.Withdrawal.FeeRate)
	if err != nil {
		return nil, fmt.Errorf("withdrawal.fee_rate: %w", err)
	}

	gateway := external.NewPaymentGateway(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, cfg.Gateway.Timeout, log)
	var validator ports.ProofValidator
	if cfg.ProofValidator.Enabled {
		validator = external.NewProofValidator(true, cfg.ProofValidator.BaseURL, cfg.ProofValidator.APIKey, cfg.ProofValidator.Timeout, log)
	}

	ledger := service.NewLedger(repos.Users, repos.WalletTxs)
	a.services = Services{
		Campaigns: service.NewCampaignService(repos, ledger, publishers, service.CampaignOptions{
			RequireApproval: cfg.Campaigns.RequireApproval,
		}, logger.Component(log, "campaigns")),
		Promotions: service.NewPromotionService(repos, ledger, validator, publishers, service.PromotionOptions{
			SubmissionWindow:       cfg.Promotions.SubmissionWindow,
			StrictSubmissionWindow: cfg.Promotions.StrictSubmissionWindow,
			StrictWindowLength:     cfg.Promotions.StrictWindowLength,
			UPIAttempts:            cfg.Promotions.UPIAttempts,
		}, logger.Component(log, "promotions")),
		Wallets: service.NewWalletService(repos, ledger, logger.Component(log, "wallets")),
		Withdrawals: service.NewWithdrawalService(repos, ledger, gateway, idempCache, publishers, service.WithdrawalOptions{
			Fee:            domain.FeePolicy{Rate: feeRate, Minimum: cfg.Withdrawal.MinFee},
			IdempotencyTTL: cfg.Withdrawal.IdempotencyTTL,
		}, logger.Component(log, "withdrawals")),
		Expiration: service.NewExpirationService(repos, ledger, sweepLock, publishers, service.ExpirationOptions{
			SubmissionWindow: cfg.Promotions.SubmissionWindow,
			HourlyLookback:   cfg.Sweeper.HourlyLookback,
			CleanupAge:       cfg.Sweeper.CleanupAge,
			BatchSize:        cfg.Sweeper.BatchSize,
			LockTTL:          cfg.Sweeper.LockTTL,
		}, logger.Component(log, "expiration")),
		Tokens: service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer),
	}

	a.scheduler = worker.NewScheduler(a.services.Expiration, worker.Options{
		HourlyInterval: cfg.Sweeper.HourlyInterval,
		DailyInterval:  cfg.Sweeper.DailyInterval,
		RunOnStart:     cfg.Sweeper.RunOnStart,
	}, log)

	return a, nil
}

func (a *App) openStorage(ctx context.Context, cipher ports.FieldCipher) (service.Repos, error) {
	if a.cfg.Storage.Driver == config.StorageMemory {
		a.log.Warn().Msg("using in-memory storage, data is lost on exit")
		store := memory.NewStore()
		return service.Repos{
			Transactor:  store,
			Users:       memory.NewUserRepo(store),
			WalletTxs:   memory.NewWalletTransactionRepo(store),
			Campaigns:   memory.NewCampaignRepo(store),
			Promotions:  memory.NewPromotionRepo(store),
			Activity:    memory.NewActivityRepo(store),
			Withdrawals: memory.NewWithdrawalRepo(store),
		}, nil
	}

	pool, err := pgStorage.NewPool(ctx, a.cfg.Database, a.log)
	if err != nil {
		return service.Repos{}, fmt.Errorf("connect postgres: %w", err)
	}
	a.closers = append(a.closers, pool.Close)

	if a.cfg.Database.AutoMigrate {
		n, err := pgStorage.Migrate(ctx, pool, pgStorage.Migrations, a.log)
		if err != nil {
			return service.Repos{}, fmt.Errorf("migrate: %w", err)
		}
		a.log.Info().Int("applied", n).Msg("migrations up to date")
	}

	a.checkers = append(a.checkers, pgStorage.NewHealthCheck(pool))
	return service.Repos{
		Transactor:  pgStorage.NewTransactor(pool),
		Users:       pgStorage.NewUserRepo(pool),
		WalletTxs:   pgStorage.NewWalletTransactionRepo(pool),
		Campaigns:   pgStorage.NewCampaignRepo(pool),
		Promotions:  pgStorage.NewPromotionRepo(pool),
		Activity:    pgStorage.NewActivityRepo(pool),
		Withdrawals: pgStorage.NewWithdrawalRepo(pool, cipher),
	}, nil
}

// Services returns the wired business services.
func (a *App) Services() Services {
	return a.services
}

// Scheduler returns the sweep scheduler.
func (a *App) Scheduler() *worker.Scheduler {
	return a.scheduler
}

// Router builds the HTTP handler.
func (a *App) Router() *gin.Engine {
	return httpHandler.SetupRouter(httpHandler.RouterDeps{
		CampaignSvc:   a.services.Campaigns,
		PromotionSvc:  a.services.Promotions,
		WalletSvc:     a.services.Wallets,
		WithdrawalSvc: a.services.Withdrawals,
		TokenSvc:      a.services.Tokens,
		RateLimiter:   a.limiter,
		RateLimit: middleware.RateLimitRule{
			Limit:  a.cfg.RateLimit.Requests,
			Window: a.cfg.RateLimit.Window,
		},
		HealthCheckers: a.checkers,
		Mode:           a.cfg.Server.Mode,
		Logger:         a.log,
	})
}

// Close stops webhook redelivery and releases connections in reverse order
// of opening.
func (a *App) Close() {
	if a.webhook != nil {
		a.webhook.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
