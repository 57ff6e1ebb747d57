package repository

import (
	"context"
	"errors"
	"fmt"

	"destiny-server/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	createReportQuery = `
        INSERT INTO reports (id, user_id, birth_data, chart, status, paid, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, FALSE, $6, $6)`

	getReportByIDQuery = `
        SELECT id, user_id, birth_data, chart, preview_text, full_text, status, error_message, paid, created_at, updated_at
        FROM reports
        WHERE id = $1`

	updateReportQuery = `
        UPDATE reports SET
            preview_text  = COALESCE($2, preview_text),
            full_text     = COALESCE($3, full_text),
            status        = COALESCE($4, status),
            error_message = COALESCE($5, error_message),
            updated_at    = NOW()
        WHERE id = $1`

	beginGenerationQuery = `
        UPDATE reports SET
            status        = 'generating',
            preview_text  = NULL,
            full_text     = NULL,
            error_message = NULL,
            updated_at    = NOW()
        WHERE id = $1`

	markPaidQuery = `UPDATE reports SET paid = TRUE, updated_at = NOW() WHERE id = $1`
)

var _ ReportRepository = (*pgReportRepository)(nil)

type pgReportRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPgReportRepository создает репозиторий отчетов поверх pgxpool.
func NewPgReportRepository(db *pgxpool.Pool, logger *zap.Logger) ReportRepository {
	return &pgReportRepository{
		db:     db,
		logger: logger.Named("PgReportRepo"),
	}
}

func (r *pgReportRepository) Create(ctx context.Context, report *models.Report) error {
	var chart any
	if len(report.Chart) > 0 {
		chart = report.Chart
	}
	_, err := r.db.Exec(ctx, createReportQuery,
		report.ID,
		report.UserID,
		report.BirthData,
		chart,
		string(report.Status),
		report.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create report", zap.String("report_id", report.ID.String()), zap.Error(err))
		return fmt.Errorf("error creating report %s: %w", report.ID, err)
	}
	r.logger.Debug("Report created", zap.String("report_id", report.ID.String()))
	return nil
}

func (r *pgReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var report models.Report
	if err := pgxscan.Get(ctx, r.db, &report, getReportByIDQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", models.ErrReportNotFound, id)
		}
		r.logger.Error("Failed to get report", zap.String("report_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("error getting report %s: %w", id, err)
	}
	return &report, nil
}

func (r *pgReportRepository) UpdateReport(ctx context.Context, id uuid.UUID, upd models.ReportUpdate) error {
	var status *string
	if upd.Status != nil {
		s := string(*upd.Status)
		status = &s
	}
	tag, err := r.db.Exec(ctx, updateReportQuery, id, upd.PreviewText, upd.FullText, status, upd.ErrorMessage)
	if err != nil {
		return fmt.Errorf("error updating report %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", models.ErrReportNotFound, id)
	}
	return nil
}

func (r *pgReportRepository) BeginGeneration(ctx context.Context, id uuid.UUID) error {
	return r.execByID(ctx, beginGenerationQuery, id, "begin generation")
}

func (r *pgReportRepository) MarkPaid(ctx context.Context, id uuid.UUID) error {
	return r.execByID(ctx, markPaidQuery, id, "mark paid")
}

func (r *pgReportRepository) execByID(ctx context.Context, query string, id uuid.UUID, op string) error {
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Report update failed", zap.String("op", op), zap.String("report_id", id.String()), zap.Error(err))
		return fmt.Errorf("error on %s for report %s: %w", op, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", models.ErrReportNotFound, id)
	}
	return nil
}
