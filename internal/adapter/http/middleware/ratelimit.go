package middleware

import (
	"fmt"
	"strconv"
	"time"

	"status-promo-marketplace/internal/core/ports"
	"status-promo-marketplace/pkg/apperror"
	"status-promo-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// Endpoint groups with their own budgets.
const (
	GroupDefault     = "default"
	GroupJoin        = "promotions_join"
	GroupProof       = "promotions_proof"
	GroupWithdrawals = "withdrawals"
	GroupDeposits    = "deposits"
)

// DefaultRateLimitRules returns per-group limits. base is the general budget
// for reads and anything without a dedicated group.
func DefaultRateLimitRules(base RateLimitRule) map[string]RateLimitRule {
	if base.Limit <= 0 {
		base.Limit = 120
	}
	if base.Window <= 0 {
		base.Window = time.Minute
	}
	return map[string]RateLimitRule{
		GroupDefault:     base,
		GroupJoin:        {Limit: 30, Window: time.Minute},
		GroupProof:       {Limit: 20, Window: time.Minute},
		GroupWithdrawals: {Limit: 5, Window: time.Minute},
		GroupDeposits:    {Limit: 60, Window: time.Minute},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
// Limiter failures let the request through.
func RateLimiter(limiter ports.RateLimiter, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", extractIdentifier(c), group)

		result, err := limiter.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractIdentifier keys authenticated callers by user id and the rest by IP.
func extractIdentifier(c *gin.Context) string {
	if actor, ok := ActorFrom(c); ok {
		return actor.UserID.String()
	}
	return c.ClientIP()
}
