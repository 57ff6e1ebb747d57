package repository

import (
	"context"

	"destiny-server/internal/models"

	"github.com/google/uuid"
)

// ReportRepository - долговременное хранилище отчетов.
type ReportRepository interface {
	// Create сохраняет новый пустой отчет.
	Create(ctx context.Context, report *models.Report) error
	// GetByID возвращает отчет или models.ErrReportNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error)
	// UpdateReport частично обновляет отчет: nil-поля не трогаются, updated_at обновляется всегда.
	UpdateReport(ctx context.Context, id uuid.UUID, upd models.ReportUpdate) error
	// BeginGeneration переводит отчет в generating и очищает тексты прошлого прогона.
	BeginGeneration(ctx context.Context, id uuid.UUID) error
	// MarkPaid отмечает отчет оплаченным.
	MarkPaid(ctx context.Context, id uuid.UUID) error
}
