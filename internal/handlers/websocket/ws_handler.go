// internal/handlers/websocket/ws_handler.go
package websocket

import (
	"net/http"

	"autopay-service/internal/pkg/jwt"
	ws "autopay-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type WebSocketHandler struct {
	hub        *ws.Hub
	jwtManager *jwt.Manager
	logger     *zap.Logger
}

func NewWebSocketHandler(hub *ws.Hub, jwtManager *jwt.Manager, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, jwtManager: jwtManager, logger: logger}
}

// HandleConnection authenticates via the token query parameter and attaches
// the client to the event hub.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	token := c.Query("token")
	claims, err := h.jwtManager.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, claims.PeerKey, h.logger)
	client.Start()
}
