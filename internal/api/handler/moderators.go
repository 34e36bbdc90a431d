package handler

import (
	"complaintflow/backend/internal/complaint"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateModerator(c *gin.Context) {
	var req complaint.ModeratorInput
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.Complaints.CreateModerator(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetModerator(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	m, err := h.Complaints.GetModerator(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) DeleteModerator(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Complaints.DeleteModerator(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks moderator credentials and returns a JWT that opens the
// notification feed.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.Complaints.AuthenticateModerator(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	token, expiresAt, err := h.Tokens.Issue(m.ModeratorID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "moderator_id": m.ModeratorID, "expires_at": expiresAt})
}
