// Package progress хранит грубый прогресс подготовки отчета по ключу сессии.
// Записи живут ограниченное время (TTL) и перезаписываются целиком.
package progress

import (
	"context"
	"fmt"
	"time"

	"destiny-server/internal/models"
)

// Status - стадия подготовки отчета. Порядок стадий не проверяется.
type Status string

const (
	StatusPreparing  Status = "preparing"
	StatusAnalyzing  Status = "analyzing"
	StatusGenerating Status = "generating"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// DefaultTTL - сколько живет запись без обновлений.
const DefaultTTL = 10 * time.Minute

// Valid сообщает, входит ли статус в допустимый набор.
func (s Status) Valid() bool {
	switch s {
	case StatusPreparing, StatusAnalyzing, StatusGenerating, StatusProcessing, StatusCompleted, StatusError:
		return true
	}
	return false
}

// Entry - запись прогресса.
type Entry struct {
	SessionID string    `json:"sessionId"`
	Percent   int       `json:"progress"`
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Store - хранилище прогресса. Get и Delete для отсутствующей или просроченной записи
// возвращают ошибку, обернутую в models.ErrProgressNotFound.
type Store interface {
	Set(ctx context.Context, sessionID string, percent int, status Status, message string) (Entry, error)
	Get(ctx context.Context, sessionID string) (Entry, error)
	Delete(ctx context.Context, sessionID string) error
}

// ClampPercent приводит процент к диапазону [0, 100].
func ClampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func validate(sessionID string, status Status) error {
	if sessionID == "" {
		return fmt.Errorf("%w: sessionId is required", models.ErrInvalidInput)
	}
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", models.ErrInvalidInput, status)
	}
	return nil
}

func notFound(sessionID string) error {
	return fmt.Errorf("%w: session %s", models.ErrProgressNotFound, sessionID)
}
