// Package handler exposes the complaint service over HTTP and the moderator
// notification feed over WebSocket.
package handler

import (
	"complaintflow/backend/internal/complaint"
	"complaintflow/backend/internal/notify"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	Complaints *complaint.Service
	Hub        *notify.Hub
	Tokens     *TokenIssuer
	Logger     *zap.Logger
	// OperatorKey guards moderator creation and deletion; empty disables them.
	OperatorKey string
}

func NewHandler(svc *complaint.Service, hub *notify.Hub, tokens *TokenIssuer, operatorKey string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Complaints: svc, Hub: hub, Tokens: tokens, OperatorKey: operatorKey, Logger: logger}
}

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(h.Logger), gin.Recovery())

	r.GET("/healthz", h.Health)

	complaints := r.Group("/complaints")
	complaints.POST("", h.CreateComplaint)
	complaints.GET("", h.ListComplaints)
	complaints.GET("/:id", h.GetComplaint)
	complaints.DELETE("/:id", h.DeleteComplaint)
	complaints.PUT("/:id/executor-update", h.ExecutorUpdate)
	complaints.GET("/:id/history", h.GetHistory)
	complaints.GET("/:id/statuses", h.ListStatuses)

	executors := r.Group("/executors")
	executors.POST("", h.CreateExecutor)
	executors.GET("/:id", h.GetExecutor)
	executors.PUT("/:id", h.UpdateExecutor)
	executors.DELETE("/:id", h.DeleteExecutor)

	moderators := r.Group("/moderators")
	moderators.POST("/login", h.Login)
	moderators.GET("/:id", h.GetModerator)
	operator := RequireOperatorKey(h.OperatorKey)
	moderators.POST("", operator, h.CreateModerator)
	moderators.DELETE("/:id", operator, h.DeleteModerator)

	r.GET("/ws/notifications", h.ServeNotifications)
	return r
}

// Health reports liveness and how many moderators are connected to this
// instance's notification hub.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "subscribers": h.Hub.Count()})
}

// pathID parses the :id parameter and answers 400 itself when it is bad.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be an integer"})
		return 0, false
	}
	return v, true
}

// bindJSON decodes the body and answers 400 itself on malformed JSON.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}
