package handler

import (
	"status-promo-marketplace/internal/adapter/http/dto"
	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"
	"status-promo-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
)

// WithdrawalHandler serves bank withdrawal endpoints.
type WithdrawalHandler struct {
	withdrawalSvc ports.WithdrawalService
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(withdrawalSvc ports.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalSvc: withdrawalSvc}
}

// Create handles POST /api/v1/withdrawals. Replaying a reference returns the
// original withdrawal.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req dto.WithdrawalRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	w, err := h.withdrawalSvc.Withdraw(c.Request.Context(), ports.WithdrawalRequest{
		UserID:        actor.UserID,
		Wallet:        domain.WalletKind(req.Wallet),
		ReferenceID:   req.ReferenceID,
		Amount:        req.Amount,
		BankCode:      req.BankCode,
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewWithdrawalResponse(w))
}

// Get handles GET /api/v1/withdrawals/:id.
func (h *WithdrawalHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	w, err := h.withdrawalSvc.GetWithdrawal(c.Request.Context(), id, actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWithdrawalResponse(w))
}
