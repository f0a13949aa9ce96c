package handler

import (
	"net/http"
	"strconv"

	"status-promo-marketplace/internal/adapter/http/dto"
	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"
	"status-promo-marketplace/pkg/apperror"
	"status-promo-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
)

// CampaignHandler serves campaign lifecycle endpoints.
type CampaignHandler struct {
	campaignSvc ports.CampaignService
}

// NewCampaignHandler creates a new CampaignHandler.
func NewCampaignHandler(campaignSvc ports.CampaignService) *CampaignHandler {
	return &CampaignHandler{campaignSvc: campaignSvc}
}

// Create handles POST /api/v1/campaigns.
func (h *CampaignHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req dto.CreateCampaignRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	campaign, err := h.campaignSvc.CreateCampaign(c.Request.Context(), ports.CreateCampaignRequest{
		OwnerID:              actor.UserID,
		Title:                req.Title,
		Description:          req.Description,
		MediaURL:             req.MediaURL,
		Budget:               req.Budget,
		PayoutPerPromotion:   req.PayoutPerPromotion,
		MinViewsPerPromotion: req.MinViewsPerPromotion,
		StartDate:            req.StartDate,
		EndDate:              req.EndDate,
		Draft:                req.Draft,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, campaign)
}

// Get handles GET /api/v1/campaigns/:id.
func (h *CampaignHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	campaign, err := h.campaignSvc.GetCampaign(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, campaign)
}

// List handles GET /api/v1/campaigns?status=&mine=true.
func (h *CampaignHandler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	page, pageSize := pagination(c)
	params := ports.CampaignListParams{Page: page, PageSize: pageSize}
	if raw := c.Query("status"); raw != "" {
		status, err := domain.ParseCampaignStatus(raw)
		if err != nil {
			response.Error(c, err)
			return
		}
		params.Status = &status
	}
	if mine, _ := strconv.ParseBool(c.Query("mine")); mine {
		params.OwnerID = &actor.UserID
	}

	campaigns, total, err := h.campaignSvc.ListCampaigns(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewListResponse(campaigns, total, page, pageSize))
}

// Activity handles GET /api/v1/campaigns/:id/activity. Owner or admin only.
func (h *CampaignHandler) Activity(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	campaign, err := h.campaignSvc.GetCampaign(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !campaign.IsOwnedBy(actor.UserID) && !actor.IsAdmin() {
		response.Error(c, apperror.ErrForbidden("You do not own this campaign"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	entries, err := h.campaignSvc.CampaignActivity(c.Request.Context(), id, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	if entries == nil {
		entries = []domain.ActivityEntry{}
	}
	response.OK(c, entries)
}

// UpdateStatus handles PATCH /api/v1/campaigns/:id/status.
func (h *CampaignHandler) UpdateStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateCampaignStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	status, err := domain.ParseCampaignStatus(req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	campaign, err := h.campaignSvc.UpdateCampaignStatus(c.Request.Context(), ports.StatusChangeRequest{
		CampaignID: id,
		Status:     status,
		Actor:      actor,
		Details:    req.Details,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, campaign)
}

// Archive handles POST /api/v1/campaigns/:id/archive.
func (h *CampaignHandler) Archive(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	campaign, err := h.campaignSvc.ArchiveCampaign(c.Request.Context(), id, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, campaign)
}

// Delete handles DELETE /api/v1/campaigns/:id.
func (h *CampaignHandler) Delete(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.campaignSvc.DeleteCampaign(c.Request.Context(), id, actor); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
