package handler

import (
	"strconv"

	"status-promo-marketplace/internal/adapter/http/middleware"
	"status-promo-marketplace/internal/core/ports"
	"status-promo-marketplace/pkg/apperror"
	"status-promo-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requireActor writes 401 and returns false when JWTAuth did not run.
func requireActor(c *gin.Context) (ports.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return ports.Actor{}, false
	}
	return actor, true
}

// uuidParam parses the named path parameter.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, apperror.Validation("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// optionalUUIDQuery parses ?name=; absent yields nil.
func optionalUUIDQuery(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		response.Error(c, apperror.Validation("invalid "+name))
		return nil, false
	}
	return &id, true
}

func pagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// bindJSON binds and validates the body, writing a 400 on failure.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	return true
}
