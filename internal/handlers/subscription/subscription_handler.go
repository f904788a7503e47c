// internal/handlers/subscription/subscription_handler.go
package subscription

import (
	"net/http"

	domain "autopay-service/internal/domain/subscription"
	"autopay-service/internal/middleware"
	"autopay-service/internal/pkg/response"
	agreementsvc "autopay-service/internal/service/agreement"
	modificationsvc "autopay-service/internal/service/modification"

	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	agreementService    *agreementsvc.AgreementService
	modificationService *modificationsvc.ModificationService
}

func NewSubscriptionHandler(
	agreementService *agreementsvc.AgreementService,
	modificationService *modificationsvc.ModificationService,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		agreementService:    agreementService,
		modificationService: modificationService,
	}
}

// Propose creates and signs a new subscription proposal.
func (h *SubscriptionHandler) Propose(c *gin.Context) {
	var req domain.ProposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	sub, err := h.agreementService.Propose(c.Request.Context(), &req)
	if err != nil {
		if sub != nil {
			// Pending record persisted, only the send failed.
			response.Success(c, http.StatusAccepted, "proposal stored, send failed; retry via resend", sub)
			return
		}
		response.FromError(c, "failed to propose subscription", err)
		return
	}

	response.Success(c, http.StatusCreated, "subscription proposed", sub)
}

// Accept countersigns a pending proposal.
func (h *SubscriptionHandler) Accept(c *gin.Context) {
	var req domain.AcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	signed, err := h.agreementService.Accept(c.Request.Context(), req.SubscriptionID, &req.ProposerSig)
	if err != nil {
		if signed != nil {
			response.Success(c, http.StatusAccepted, "agreement signed, acceptance send failed", signed)
			return
		}
		response.FromError(c, "failed to accept subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription accepted", signed)
}

// Resend re-transmits a pending proposal without re-signing.
func (h *SubscriptionHandler) Resend(c *gin.Context) {
	if err := h.agreementService.Resend(c.Request.Context(), c.Param("id")); err != nil {
		response.FromError(c, "failed to resend proposal", err)
		return
	}
	response.Success(c, http.StatusOK, "proposal resent", nil)
}

// Get retrieves a subscription by id.
func (h *SubscriptionHandler) Get(c *gin.Context) {
	sub, err := h.agreementService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "subscription not found", err)
		return
	}
	response.Success(c, http.StatusOK, "subscription retrieved", sub)
}

// GetSigned retrieves the signed agreement for a subscription.
func (h *SubscriptionHandler) GetSigned(c *gin.Context) {
	signed, err := h.agreementService.GetSigned(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "signed subscription not found", err)
		return
	}
	response.Success(c, http.StatusOK, "signed subscription retrieved", signed)
}

// List retrieves the caller's subscriptions, optionally filtered by status.
func (h *SubscriptionHandler) List(c *gin.Context) {
	peerKey := middleware.MustGetPeerKey(c)

	filters := domain.ListFilters{PeerKey: peerKey}
	if status := c.Query("status"); status != "" {
		filters.Statuses = []domain.Status{domain.Status(status)}
	}

	subs, err := h.agreementService.List(c.Request.Context(), filters)
	if err != nil {
		response.FromError(c, "failed to list subscriptions", err)
		return
	}
	response.Success(c, http.StatusOK, "subscriptions retrieved", subs)
}

// Modify applies a modification to a subscription.
func (h *SubscriptionHandler) Modify(c *gin.Context) {
	peerKey := middleware.MustGetPeerKey(c)

	var req domain.ModifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	sub, err := h.modificationService.Request(c.Request.Context(), c.Param("id"), peerKey, &req)
	if err != nil {
		response.FromError(c, "failed to apply modification", err)
		return
	}
	response.Success(c, http.StatusOK, "modification applied", sub)
}

// History lists the modification audit trail for a subscription.
func (h *SubscriptionHandler) History(c *gin.Context) {
	records, err := h.modificationService.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "failed to list modification history", err)
		return
	}
	response.Success(c, http.StatusOK, "modification history retrieved", records)
}
