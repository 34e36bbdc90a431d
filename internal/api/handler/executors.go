package handler

import (
	"complaintflow/backend/internal/complaint"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateExecutor(c *gin.Context) {
	var req complaint.ExecutorInput
	if !bindJSON(c, &req) {
		return
	}
	e, err := h.Complaints.CreateExecutor(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *Handler) GetExecutor(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	e, err := h.Complaints.GetExecutor(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) UpdateExecutor(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var patch complaint.ExecutorPatch
	if !bindJSON(c, &patch) {
		return
	}
	e, err := h.Complaints.UpdateExecutor(c.Request.Context(), id, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) DeleteExecutor(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Complaints.DeleteExecutor(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
