package handler

import (
	"context"
	"net/http"

	"destiny-server/internal/generation"
	"destiny-server/internal/middleware"
	"destiny-server/internal/models"
	"destiny-server/internal/progress"
	"destiny-server/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReportService - операции над отчетами, нужные HTTP-слою.
type ReportService interface {
	CreateReport(ctx context.Context, in service.CreateReportInput) (*models.Report, error)
	GetReport(ctx context.Context, id uuid.UUID, userID string) (*models.Report, error)
	MarkPaid(ctx context.Context, id uuid.UUID, sourceService string) error
	StartGeneration(ctx context.Context, id uuid.UUID, userID string, sink generation.Sink) (*generation.Run, error)
	IsGenerating(id uuid.UUID) bool
}

var _ ReportService = (*service.ReportService)(nil)

type Options struct {
	SinkBufferSize int
	AllowedOrigins []string
}

type Handler struct {
	reports  ReportService
	progress progress.Store
	auth     *middleware.Authenticator
	internal *middleware.InterServiceAuthenticator
	opts     Options
	logger   *zap.Logger
}

func NewHandler(reports ReportService, progressStore progress.Store, auth *middleware.Authenticator, internal *middleware.InterServiceAuthenticator, opts Options, logger *zap.Logger) *Handler {
	if opts.SinkBufferSize <= 0 {
		opts.SinkBufferSize = 256
	}
	return &Handler{
		reports:  reports,
		progress: progressStore,
		auth:     auth,
		internal: internal,
		opts:     opts,
		logger:   logger.Named("HTTPHandler"),
	}
}

// RegisterRoutes регистрирует маршруты API. /metrics вешает go-gin-prometheus в main.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)
	router.HEAD("/health", h.health)

	api := router.Group("/api")

	reports := api.Group("/reports")
	reports.Use(h.auth.Optional())
	{
		reports.POST("", h.createReport)
		reports.GET("/:id", h.getReport)
		// оплату подтверждает только платежный сервис
		reports.POST("/:id/paid", h.internal.Required(), h.markPaid)
		reports.GET("/:id/generate", h.generateSSE)
		reports.POST("/:id/generate", h.generateSSE)
		reports.GET("/:id/generate/ws", h.generateWS)
	}

	progressGroup := api.Group("/progress")
	{
		progressGroup.POST("", h.setProgress)
		progressGroup.GET("/:sessionId", h.getProgress)
		progressGroup.DELETE("/:sessionId", h.deleteProgress)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseReportID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid report id")
		return uuid.Nil, false
	}
	return id, true
}
