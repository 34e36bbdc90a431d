package handler

import (
	"complaintflow/backend/internal/complaint"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateComplaint(c *gin.Context) {
	var req complaint.NewComplaint
	if !bindJSON(c, &req) {
		return
	}
	created, err := h.Complaints.CreateComplaint(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) ListComplaints(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset")
	if !ok {
		return
	}
	list, err := h.Complaints.ListComplaints(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetComplaint(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	got, err := h.Complaints.GetComplaint(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

func (h *Handler) DeleteComplaint(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Complaints.DeleteComplaint(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ExecutorUpdate feeds one executor response into the lifecycle.
func (h *Handler) ExecutorUpdate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var upd complaint.ExecutorUpdate
	if !bindJSON(c, &upd) {
		return
	}
	updated, err := h.Complaints.HandleExecutorUpdate(c.Request.Context(), id, upd)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) GetHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	history, err := h.Complaints.GetHistory(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *Handler) ListStatuses(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	statuses, err := h.Complaints.ListStatuses(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, statuses)
}
