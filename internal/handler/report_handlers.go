package handler

import (
	"net/http"

	"destiny-server/internal/middleware"
	"destiny-server/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) createReport(c *gin.Context) {
	var req createReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid create report request", zap.Error(err))
		badRequest(c, "Invalid request body")
		return
	}

	report, err := h.reports.CreateReport(c.Request.Context(), service.CreateReportInput{
		UserID:    middleware.UserID(c),
		BirthData: req.BirthData,
		Chart:     req.Chart,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	reportsCreatedTotal.Inc()
	c.JSON(http.StatusCreated, toReportResponse(report, false))
}

func (h *Handler) getReport(c *gin.Context) {
	id, ok := parseReportID(c)
	if !ok {
		return
	}
	report, err := h.reports.GetReport(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReportResponse(report, h.reports.IsGenerating(id)))
}

func (h *Handler) markPaid(c *gin.Context) {
	id, ok := parseReportID(c)
	if !ok {
		return
	}
	if err := h.reports.MarkPaid(c.Request.Context(), id, middleware.SourceService(c)); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
