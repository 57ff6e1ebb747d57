package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) setProgress(c *gin.Context) {
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "sessionId and status are required")
		return
	}
	entry, err := h.progress.Set(c.Request.Context(), req.SessionID, req.Progress, req.Status, req.Message)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	progressUpdatesTotal.WithLabelValues(string(entry.Status)).Inc()
	h.logger.Debug("Progress updated",
		zap.String("session_id", entry.SessionID),
		zap.Int("progress", entry.Percent),
		zap.String("status", string(entry.Status)))
	c.JSON(http.StatusOK, progressResponse{Success: true, Progress: entry})
}

func (h *Handler) getProgress(c *gin.Context) {
	entry, err := h.progress.Get(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) deleteProgress(c *gin.Context) {
	if err := h.progress.Delete(c.Request.Context(), c.Param("sessionId")); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
