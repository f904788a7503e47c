// internal/handlers/autopay/autopay_handler.go
package autopay

import (
	"net/http"

	"autopay-service/internal/domain/payment"
	"autopay-service/internal/pkg/response"
	autopaysvc "autopay-service/internal/service/autopay"

	"github.com/gin-gonic/gin"
)

type AutoPayHandler struct {
	autopayService *autopaysvc.AutoPayService
}

func NewAutoPayHandler(autopayService *autopaysvc.AutoPayService) *AutoPayHandler {
	return &AutoPayHandler{autopayService: autopayService}
}

// Enable turns auto-pay on for a subscription.
func (h *AutoPayHandler) Enable(c *gin.Context) {
	var req payment.ConfigureAutoPayInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	rule, err := h.autopayService.Enable(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.FromError(c, "failed to enable autopay", err)
		return
	}
	response.Success(c, http.StatusOK, "autopay enabled", rule)
}

// Disable turns auto-pay off for a subscription.
func (h *AutoPayHandler) Disable(c *gin.Context) {
	rule, err := h.autopayService.Disable(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "failed to disable autopay", err)
		return
	}
	response.Success(c, http.StatusOK, "autopay disabled", rule)
}

// Show retrieves the auto-pay rule for a subscription.
func (h *AutoPayHandler) Show(c *gin.Context) {
	rule, err := h.autopayService.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "autopay rule not found", err)
		return
	}
	response.Success(c, http.StatusOK, "autopay rule retrieved", rule)
}
