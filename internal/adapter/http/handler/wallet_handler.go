package handler

import (
	"status-promo-marketplace/internal/adapter/http/dto"
	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"
	"status-promo-marketplace/pkg/apperror"
	"status-promo-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler serves user provisioning, wallet and deposit endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// Provision handles PUT /api/v1/users/me. Roles come from the token, never
// from the body.
func (h *WalletHandler) Provision(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req dto.ProvisionUserRequest
	if c.Request.ContentLength != 0 {
		if !bindJSON(c, &req) {
			return
		}
		dto.SanitizeStruct(&req)
	}

	user, created, err := h.walletSvc.ProvisionUser(c.Request.Context(), ports.ProvisionUserRequest{
		UserID:   actor.UserID,
		Username: req.Username,
		Email:    req.Email,
		Roles:    actor.Roles,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	if created {
		response.Created(c, user)
		return
	}
	response.OK(c, user)
}

// GetWallets handles GET /api/v1/wallets/me.
func (h *WalletHandler) GetWallets(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	user, err := h.walletSvc.GetWallets(c.Request.Context(), actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.WalletsResponse{
		UserID:   user.ID,
		Marketer: user.MarketerWallet,
		Promoter: user.PromoterWallet,
	})
}

// ListTransactions handles GET /api/v1/wallets/me/transactions?wallet=.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	page, pageSize := pagination(c)
	params := ports.WalletTxListParams{UserID: actor.UserID, Page: page, PageSize: pageSize}
	if raw := c.Query("wallet"); raw != "" {
		kind := domain.WalletKind(raw)
		if !kind.IsValid() {
			response.Error(c, apperror.Validation("wallet must be marketer or promoter"))
			return
		}
		params.Wallet = &kind
	}

	txs, total, err := h.walletSvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewListResponse(txs, total, page, pageSize))
}

// Deposit handles POST /api/v1/wallets/deposits. Admin only: it books a
// payment the gateway already confirmed.
func (h *WalletHandler) Deposit(c *gin.Context) {
	var req dto.DepositRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	entry, err := h.walletSvc.Deposit(c.Request.Context(), ports.DepositRequest{
		UserID:    req.UserID,
		Wallet:    domain.WalletKind(req.Wallet),
		Amount:    req.Amount,
		Reference: req.Reference,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}
