package middleware

import (
	"net/http"
	"strings"
	"time"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"
	"status-promo-marketplace/pkg/apperror"
	"status-promo-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	HeaderRequestID = "X-Request-ID"

	// Context keys
	CtxUserID    = "user_id"
	CtxRoles     = "roles"
	CtxRequestID = "request_id"
)

// RequestID tags every request with an id, reusing a sane client-supplied one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// JWTAuth validates the bearer token issued by the auth service and stores
// the caller's id and roles on the context.
func JWTAuth(tokenSvc ports.TokenService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenStr == "" {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		claims, err := tokenSvc.Validate(tokenStr)
		if err != nil {
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("rejected bearer token")
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxRoles, claims.Roles)
		c.Next()
	}
}

// RequireRole lets the request through when the caller holds any of roles.
// It must run after JWTAuth.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}
		for _, have := range actor.Roles {
			for _, want := range roles {
				if have == want {
					c.Next()
					return
				}
			}
		}
		response.Error(c, apperror.ErrForbidden("Insufficient role for this operation"))
		c.Abort()
	}
}

// ActorFrom returns the authenticated caller set by JWTAuth.
func ActorFrom(c *gin.Context) (ports.Actor, bool) {
	raw, ok := c.Get(CtxUserID)
	if !ok {
		return ports.Actor{}, false
	}
	id, ok := raw.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return ports.Actor{}, false
	}
	var roles []domain.Role
	if r, exists := c.Get(CtxRoles); exists {
		roles, _ = r.([]domain.Role)
	}
	return ports.Actor{UserID: id, Roles: roles}, true
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event = event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(CtxRequestID))
		if actor, ok := ActorFrom(c); ok {
			event = event.Str("user_id", actor.UserID.String())
		}
		event.Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("path", c.Request.URL.Path).
					Str("request_id", c.GetString(CtxRequestID)).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_code": "SYS_001",
					"message":    "Internal server error",
				})
			}
		}()
		c.Next()
	}
}
