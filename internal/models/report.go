package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ReportStatus - этап жизненного цикла отчета.
type ReportStatus string

const (
	ReportStatusPending    ReportStatus = "pending"
	ReportStatusGenerating ReportStatus = "generating"
	ReportStatusCompleted  ReportStatus = "completed"
	ReportStatusFailed     ReportStatus = "failed"
)

// BirthData - исходные данные пользователя, по которым строится отчет.
type BirthData struct {
	Name       string `json:"name"`
	BirthDate  string `json:"birthDate"`           // YYYY-MM-DD
	BirthTime  string `json:"birthTime,omitempty"` // HH:MM, может быть неизвестно
	BirthPlace string `json:"birthPlace"`
	Gender     string `json:"gender,omitempty"`
}

// Report - запись отчета в хранилище.
// PreviewText и FullText равны nil, пока соответствующий текст ни разу не сохранялся.
type Report struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	UserID       *string         `db:"user_id" json:"userId,omitempty"`
	BirthData    BirthData       `db:"birth_data" json:"birthData"`
	Chart        json.RawMessage `db:"chart" json:"chart,omitempty"`
	PreviewText  *string         `db:"preview_text" json:"previewText,omitempty"`
	FullText     *string         `db:"full_text" json:"fullText,omitempty"`
	Status       ReportStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"errorMessage,omitempty"`
	Paid         bool            `db:"paid" json:"paid"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
}

// ReportUpdate - частичное обновление отчета. nil-поля не меняются.
type ReportUpdate struct {
	PreviewText  *string
	FullText     *string
	Status       *ReportStatus
	ErrorMessage *string
}

// GenerationInput - все, что нужно источнику токенов, чтобы начать генерацию.
type GenerationInput struct {
	ReportID  uuid.UUID
	UserID    string
	BirthData BirthData
	Chart     json.RawMessage
}
