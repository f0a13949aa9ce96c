package handler

import (
	"context"

	"status-promo-marketplace/internal/adapter/http/dto"
	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"
	"status-promo-marketplace/pkg/apperror"
	"status-promo-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PromotionHandler serves admission, proof and review endpoints.
type PromotionHandler struct {
	promotionSvc ports.PromotionService
	campaignSvc  ports.CampaignService
}

// NewPromotionHandler creates a new PromotionHandler.
func NewPromotionHandler(promotionSvc ports.PromotionService, campaignSvc ports.CampaignService) *PromotionHandler {
	return &PromotionHandler{promotionSvc: promotionSvc, campaignSvc: campaignSvc}
}

// Join handles POST /api/v1/campaigns/:id/promotions.
func (h *PromotionHandler) Join(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	campaignID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	promotion, err := h.promotionSvc.AssignPromoter(c.Request.Context(), campaignID, actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, promotion)
}

// Get handles GET /api/v1/promotions/:id.
func (h *PromotionHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	promotion, err := h.promotionSvc.GetPromotion(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !canView(actor, promotion) {
		response.Error(c, apperror.ErrNotFound("Promotion"))
		return
	}
	response.OK(c, promotion)
}

// Lookup handles GET /api/v1/promotions/lookup?upi=.
func (h *PromotionHandler) Lookup(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	upi := c.Query("upi")
	if !dto.IsUPI(upi) {
		response.Error(c, apperror.Validation("upi must be 6 digits"))
		return
	}

	promotion, err := h.promotionSvc.GetPromotionByUPI(c.Request.Context(), upi)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !canView(actor, promotion) {
		response.Error(c, apperror.ErrNotFound("Promotion"))
		return
	}
	response.OK(c, promotion)
}

// List handles GET /api/v1/promotions. Admins may filter freely; a campaign
// owner may list one campaign's promotions; everyone else sees their own.
func (h *PromotionHandler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	campaignID, ok := optionalUUIDQuery(c, "campaign_id")
	if !ok {
		return
	}
	promoterID, ok := optionalUUIDQuery(c, "promoter_id")
	if !ok {
		return
	}

	page, pageSize := pagination(c)
	params := ports.PromotionListParams{
		CampaignID: campaignID,
		PromoterID: promoterID,
		Page:       page,
		PageSize:   pageSize,
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.PromotionStatus(raw)
		if !status.IsValid() {
			response.Error(c, apperror.Validation("unknown promotion status "+raw))
			return
		}
		params.Status = &status
	}

	if !actor.IsAdmin() {
		owner := false
		if campaignID != nil {
			campaign, err := h.campaignSvc.GetCampaign(c.Request.Context(), *campaignID)
			if err != nil {
				response.Error(c, err)
				return
			}
			owner = campaign.IsOwnedBy(actor.UserID)
		}
		if !owner {
			params.PromoterID = &actor.UserID
		}
	}

	promotions, total, err := h.promotionSvc.ListPromotions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewListResponse(promotions, total, page, pageSize))
}

// MarkDownloaded handles POST /api/v1/promotions/:id/download.
func (h *PromotionHandler) MarkDownloaded(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	promotion, err := h.promotionSvc.MarkDownloaded(c.Request.Context(), id, actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, promotion)
}

// SubmitProof handles POST /api/v1/promotions/:id/proof.
func (h *PromotionHandler) SubmitProof(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req dto.SubmitProofRequest
	if !bindJSON(c, &req) {
		return
	}

	promotion, err := h.promotionSvc.SubmitProof(c.Request.Context(), ports.SubmitProofRequest{
		PromotionID: id,
		PromoterID:  actor.UserID,
		MediaURLs:   req.MediaURLs,
		Views:       req.Views,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, promotion)
}

// Validate handles POST /api/v1/promotions/:id/validate.
func (h *PromotionHandler) Validate(c *gin.Context) {
	h.review(c, h.promotionSvc.ValidatePromotion)
}

// Pay handles POST /api/v1/promotions/:id/pay.
func (h *PromotionHandler) Pay(c *gin.Context) {
	h.review(c, h.promotionSvc.PayPromotion)
}

// Approve handles POST /api/v1/promotions/:id/approve (validate and pay).
func (h *PromotionHandler) Approve(c *gin.Context) {
	h.review(c, h.promotionSvc.ApproveAndPay)
}

// Reject handles POST /api/v1/promotions/:id/reject.
func (h *PromotionHandler) Reject(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req dto.RejectPromotionRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	promotion, err := h.promotionSvc.RejectPromotion(c.Request.Context(), id, actor, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, promotion)
}

type reviewFunc func(ctx context.Context, id uuid.UUID, actor ports.Actor) (*domain.Promotion, error)

func (h *PromotionHandler) review(c *gin.Context, fn reviewFunc) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	promotion, err := fn(c.Request.Context(), id, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, promotion)
}

// canView hides promotions from users who are neither party nor admin.
func canView(actor ports.Actor, p *domain.Promotion) bool {
	return actor.IsAdmin() || p.PromoterID == actor.UserID || p.MarketerID == actor.UserID
}
