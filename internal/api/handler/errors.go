package handler

import (
	"complaintflow/backend/internal/classifier"
	"complaintflow/backend/internal/complaint"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var ve *complaint.ValidationError
	var ce *classifier.Error
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, complaint.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, complaint.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, complaint.ErrTerminalStatus), errors.Is(err, complaint.ErrDuplicate):
		return http.StatusConflict
	case errors.As(err, &ce):
		if ce.Kind == classifier.KindUnavailable {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
