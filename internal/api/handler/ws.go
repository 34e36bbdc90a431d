package handler

import (
	"complaintflow/backend/internal/notify"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Moderator UI is served from a separate origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeNotifications upgrades an authenticated moderator to the live feed.
func (h *Handler) ServeNotifications(c *gin.Context) {
	token := bearerToken(c.GetHeader("Authorization"), c.Query("token"))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization token missing"})
		return
	}

	moderatorID, err := h.Tokens.Parse(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token or expired"})
		return
	}

	m, err := h.Complaints.GetModerator(c.Request.Context(), moderatorID)
	if err != nil || !m.IsActive {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "moderator is not active"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.Logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := notify.NewWebSocketSubscriber(conn, h.Hub, moderatorID, h.Logger)
	if err := h.Hub.Register(sub); err != nil {
		h.Logger.Warn("notification hub unavailable", zap.Error(err))
		conn.Close()
	}
}
