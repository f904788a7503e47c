// internal/handlers/limits/limits_handler.go
package limits

import (
	"net/http"

	"autopay-service/internal/domain/payment"
	"autopay-service/internal/pkg/response"
	limitssvc "autopay-service/internal/service/limits"

	"github.com/gin-gonic/gin"
)

type LimitsHandler struct {
	limitsService *limitssvc.LimitsService
}

func NewLimitsHandler(limitsService *limitssvc.LimitsService) *LimitsHandler {
	return &LimitsHandler{limitsService: limitsService}
}

// Set creates or replaces a peer spending limit.
func (h *LimitsHandler) Set(c *gin.Context) {
	var req payment.SetLimitInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	limit, err := h.limitsService.Set(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, "failed to set spending limit", err)
		return
	}
	response.Success(c, http.StatusOK, "spending limit set", limit)
}

// Show retrieves one peer's limit.
func (h *LimitsHandler) Show(c *gin.Context) {
	limit, err := h.limitsService.Get(c.Request.Context(), c.Param("peer"))
	if err != nil {
		response.FromError(c, "spending limit not found", err)
		return
	}
	response.Success(c, http.StatusOK, "spending limit retrieved", limit)
}

// List retrieves all configured limits.
func (h *LimitsHandler) List(c *gin.Context) {
	limits, err := h.limitsService.List(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to list spending limits", err)
		return
	}
	response.Success(c, http.StatusOK, "spending limits retrieved", limits)
}

// Delete removes a peer's limit. The peer can no longer auto-pay.
func (h *LimitsHandler) Delete(c *gin.Context) {
	if err := h.limitsService.Delete(c.Request.Context(), c.Param("peer")); err != nil {
		response.FromError(c, "failed to delete spending limit", err)
		return
	}
	response.Success(c, http.StatusOK, "spending limit deleted", nil)
}

// Reset zeroes the running total for a peer.
func (h *LimitsHandler) Reset(c *gin.Context) {
	if err := h.limitsService.Reset(c.Request.Context(), c.Param("peer")); err != nil {
		response.FromError(c, "failed to reset spending limit", err)
		return
	}
	response.Success(c, http.StatusOK, "spending limit reset", nil)
}
