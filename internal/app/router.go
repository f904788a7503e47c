// internal/app/router.go
package app

import (
	autopayHandler "autopay-service/internal/handlers/autopay"
	limitsHandler "autopay-service/internal/handlers/limits"
	paymentHandler "autopay-service/internal/handlers/payment"
	subscriptionHandler "autopay-service/internal/handlers/subscription"
	wsHandler "autopay-service/internal/handlers/websocket"
	"autopay-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	SubscriptionHandler *subscriptionHandler.SubscriptionHandler
	AutoPayHandler      *autopayHandler.AutoPayHandler
	LimitsHandler       *limitsHandler.LimitsHandler
	PaymentHandler      *paymentHandler.PaymentHandler
	WSHandler           *wsHandler.WebSocketHandler
	AuthMiddleware      *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)

	// ==================== Subscription Agreements ====================
	subscriptions := api.Group("/subscriptions")
	subscriptions.Use(h.AuthMiddleware.Auth())
	{
		// Proposal lifecycle
		subscriptions.POST("", h.SubscriptionHandler.Propose)
		subscriptions.POST("/accept", h.SubscriptionHandler.Accept)
		subscriptions.POST("/:id/resend", h.SubscriptionHandler.Resend)

		// View agreements
		subscriptions.GET("", h.SubscriptionHandler.List)
		subscriptions.GET("/:id", h.SubscriptionHandler.Get)
		subscriptions.GET("/:id/signed", h.SubscriptionHandler.GetSigned)

		// Modifications
		subscriptions.POST("/:id/modifications", h.SubscriptionHandler.Modify)
		subscriptions.GET("/:id/modifications", h.SubscriptionHandler.History)

		// Auto-pay rule per subscription
		subscriptions.POST("/:id/autopay/enable", h.AutoPayHandler.Enable)
		subscriptions.POST("/:id/autopay/disable", h.AutoPayHandler.Disable)
		subscriptions.GET("/:id/autopay", h.AutoPayHandler.Show)
	}

	// ==================== Spending Limits ====================
	limits := api.Group("/limits")
	limits.Use(h.AuthMiddleware.Auth())
	{
		limits.POST("", h.LimitsHandler.Set)
		limits.GET("", h.LimitsHandler.List)
		limits.GET("/:peer", h.LimitsHandler.Show)
		limits.DELETE("/:peer", h.LimitsHandler.Delete)
		limits.POST("/:peer/reset", h.LimitsHandler.Reset)
	}

	// ==================== Payment Requests ====================
	requests := api.Group("/requests")
	requests.Use(h.AuthMiddleware.Auth())
	{
		requests.POST("", h.PaymentHandler.CreateRequest)
		requests.GET("", h.PaymentHandler.ListRequests)
		requests.GET("/:id", h.PaymentHandler.GetRequest)

		// Auto-pay decision and settlement
		requests.GET("/:id/decision", h.PaymentHandler.Decide)
		requests.POST("/:id/settle", h.PaymentHandler.Settle)
	}
}
