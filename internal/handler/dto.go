package handler

import (
	"encoding/json"
	"time"
	"unicode/utf8"

	"destiny-server/internal/models"
	"destiny-server/internal/progress"

	"github.com/google/uuid"
)

type createReportRequest struct {
	models.BirthData
	Chart json.RawMessage `json:"chart"`
}

// reportResponse - отчет в ответе API. FullText отдается только оплаченным отчетам.
type reportResponse struct {
	ID            uuid.UUID           `json:"id"`
	Status        models.ReportStatus `json:"status"`
	BirthData     models.BirthData    `json:"birthData"`
	PreviewText   *string             `json:"previewText"`
	FullText      *string             `json:"fullText,omitempty"`
	PreviewLength int                 `json:"previewLength"`
	FullLength    int                 `json:"fullLength"`
	Paid          bool                `json:"paid"`
	Generating    bool                `json:"generating"`
	ErrorMessage  *string             `json:"errorMessage,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

func toReportResponse(r *models.Report, generating bool) reportResponse {
	resp := reportResponse{
		ID:            r.ID,
		Status:        r.Status,
		BirthData:     r.BirthData,
		PreviewText:   r.PreviewText,
		PreviewLength: runeLen(r.PreviewText),
		FullLength:    runeLen(r.FullText),
		Paid:          r.Paid,
		Generating:    generating,
		ErrorMessage:  r.ErrorMessage,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.Paid {
		resp.FullText = r.FullText
	}
	return resp
}

func runeLen(s *string) int {
	if s == nil {
		return 0
	}
	return utf8.RuneCountInString(*s)
}

type progressRequest struct {
	SessionID string          `json:"sessionId" binding:"required"`
	Progress  int             `json:"progress"`
	Status    progress.Status `json:"status" binding:"required"`
	Message   string          `json:"message"`
}

type progressResponse struct {
	Success  bool           `json:"success"`
	Progress progress.Entry `json:"progress"`
}

// streamFrame - формат сообщения в WebSocket.
type streamFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}
