// internal/handlers/payment/payment_handler.go
package payment

import (
	"net/http"

	domain "autopay-service/internal/domain/payment"
	"autopay-service/internal/pkg/response"
	autopaysvc "autopay-service/internal/service/autopay"
	settlementsvc "autopay-service/internal/service/settlement"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	autopayService    *autopaysvc.AutoPayService
	settlementService *settlementsvc.SettlementService
}

func NewPaymentHandler(
	autopayService *autopaysvc.AutoPayService,
	settlementService *settlementsvc.SettlementService,
) *PaymentHandler {
	return &PaymentHandler{
		autopayService:    autopayService,
		settlementService: settlementService,
	}
}

// CreateRequest registers an incoming payment request.
func (h *PaymentHandler) CreateRequest(c *gin.Context) {
	var req domain.CreateRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	created, err := h.settlementService.CreateRequest(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, "failed to create payment request", err)
		return
	}
	response.Success(c, http.StatusCreated, "payment request created", created)
}

// GetRequest retrieves a payment request by id.
func (h *PaymentHandler) GetRequest(c *gin.Context) {
	req, err := h.settlementService.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "payment request not found", err)
		return
	}
	response.Success(c, http.StatusOK, "payment request retrieved", req)
}

// ListRequests retrieves payment requests with optional filters.
func (h *PaymentHandler) ListRequests(c *gin.Context) {
	filters := domain.RequestListFilters{PeerKey: c.Query("peer")}
	if status := c.Query("status"); status != "" {
		filters.Statuses = []domain.RequestStatus{domain.RequestStatus(status)}
	}

	requests, err := h.settlementService.ListRequests(c.Request.Context(), filters)
	if err != nil {
		response.FromError(c, "failed to list payment requests", err)
		return
	}
	response.Success(c, http.StatusOK, "payment requests retrieved", requests)
}

// Decide runs the auto-pay eligibility check without executing anything.
func (h *PaymentHandler) Decide(c *gin.Context) {
	req, err := h.settlementService.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "payment request not found", err)
		return
	}

	decision, err := h.autopayService.ShouldAutoPay(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, "failed to evaluate autopay decision", err)
		return
	}
	response.Success(c, http.StatusOK, "autopay decision evaluated", decision)
}

// Settle runs the full unattended path: decision, then reserve-pay-settle.
func (h *PaymentHandler) Settle(c *gin.Context) {
	ctx := c.Request.Context()
	req, err := h.settlementService.GetRequest(ctx, c.Param("id"))
	if err != nil {
		response.FromError(c, "payment request not found", err)
		return
	}

	decision, err := h.autopayService.ShouldAutoPay(ctx, req)
	if err != nil {
		response.FromError(c, "failed to evaluate autopay decision", err)
		return
	}
	if !decision.Allowed {
		response.Error(c, http.StatusUnprocessableEntity, "autopay refused: "+decision.Reason, nil)
		return
	}

	if err := h.settlementService.AttachSubscription(ctx, req.ID, decision.Subscription.Subscription.ID); err != nil {
		response.FromError(c, "failed to link subscription", err)
		return
	}

	receipt, err := h.settlementService.ExecuteAutoPay(ctx, req.ID)
	if err != nil {
		response.FromError(c, "settlement failed", err)
		return
	}
	response.Success(c, http.StatusOK, "payment settled", receipt)
}
