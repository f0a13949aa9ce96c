package handler

import (
	"status-promo-marketplace/internal/adapter/http/middleware"
	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	CampaignSvc    ports.CampaignService
	PromotionSvc   ports.PromotionService
	WalletSvc      ports.WalletService
	WithdrawalSvc  ports.WithdrawalService
	TokenSvc       ports.TokenService
	RateLimiter    ports.RateLimiter // nil = rate limiting disabled
	RateLimit      middleware.RateLimitRule
	HealthCheckers []ports.HealthChecker
	Mode           string // gin mode; empty means release
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules(deps.RateLimit)
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rules[group], deps.Logger)
	}

	adminOnly := middleware.RequireRole(domain.RoleAdmin)

	campaigns := NewCampaignHandler(deps.CampaignSvc)
	promotions := NewPromotionHandler(deps.PromotionSvc, deps.CampaignSvc)
	wallets := NewWalletHandler(deps.WalletSvc)
	withdrawals := NewWithdrawalHandler(deps.WithdrawalSvc)

	v1 := r.Group("/api/v1", middleware.JWTAuth(deps.TokenSvc, deps.Logger))

	v1.PUT("/users/me", rl(middleware.GroupDefault), wallets.Provision)

	w := v1.Group("/wallets")
	{
		w.GET("/me", rl(middleware.GroupDefault), wallets.GetWallets)
		w.GET("/me/transactions", rl(middleware.GroupDefault), wallets.ListTransactions)
		w.POST("/deposits", adminOnly, rl(middleware.GroupDeposits), wallets.Deposit)
	}

	wd := v1.Group("/withdrawals")
	{
		wd.POST("", rl(middleware.GroupWithdrawals), withdrawals.Create)
		wd.GET("/:id", rl(middleware.GroupDefault), withdrawals.Get)
	}

	cg := v1.Group("/campaigns")
	{
		cg.POST("", middleware.RequireRole(domain.RoleMarketer), rl(middleware.GroupDefault), campaigns.Create)
		cg.GET("", rl(middleware.GroupDefault), campaigns.List)
		cg.GET("/:id", rl(middleware.GroupDefault), campaigns.Get)
		cg.GET("/:id/activity", rl(middleware.GroupDefault), campaigns.Activity)
		cg.PATCH("/:id/status", rl(middleware.GroupDefault), campaigns.UpdateStatus)
		cg.POST("/:id/archive", rl(middleware.GroupDefault), campaigns.Archive)
		cg.DELETE("/:id", rl(middleware.GroupDefault), campaigns.Delete)
		cg.POST("/:id/promotions", middleware.RequireRole(domain.RolePromoter), rl(middleware.GroupJoin), promotions.Join)
	}

	pg := v1.Group("/promotions")
	{
		pg.GET("", rl(middleware.GroupDefault), promotions.List)
		pg.GET("/lookup", rl(middleware.GroupDefault), promotions.Lookup)
		pg.GET("/:id", rl(middleware.GroupDefault), promotions.Get)
		pg.POST("/:id/download", rl(middleware.GroupDefault), promotions.MarkDownloaded)
		pg.POST("/:id/proof", rl(middleware.GroupProof), promotions.SubmitProof)
		pg.POST("/:id/validate", adminOnly, rl(middleware.GroupDefault), promotions.Validate)
		pg.POST("/:id/pay", adminOnly, rl(middleware.GroupDefault), promotions.Pay)
		pg.POST("/:id/approve", adminOnly, rl(middleware.GroupDefault), promotions.Approve)
		pg.POST("/:id/reject", rl(middleware.GroupDefault), promotions.Reject)
	}

	return r
}
