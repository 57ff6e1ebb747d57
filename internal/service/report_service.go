package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"destiny-server/internal/generation"
	"destiny-server/internal/models"
	"destiny-server/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunStarter запускает прогон генерации в фоне.
type RunStarter interface {
	Start(input models.GenerationInput, sink generation.Sink) *generation.Run
}

// CreateReportInput - данные для нового отчета.
type CreateReportInput struct {
	UserID    string
	BirthData models.BirthData
	Chart     json.RawMessage
}

// ReportService - операции над отчетами и запуск генерации.
type ReportService struct {
	repo     repository.ReportRepository
	starter  RunStarter
	registry *generation.Registry
	now      func() time.Time
	logger   *zap.Logger
}

func NewReportService(repo repository.ReportRepository, starter RunStarter, registry *generation.Registry, logger *zap.Logger) *ReportService {
	return &ReportService{
		repo:     repo,
		starter:  starter,
		registry: registry,
		now:      time.Now,
		logger:   logger.Named("ReportService"),
	}
}

// CreateReport проверяет входные данные и создает пустой отчет в статусе pending.
func (s *ReportService) CreateReport(ctx context.Context, in CreateReportInput) (*models.Report, error) {
	if err := validateBirthData(in.BirthData, s.now()); err != nil {
		return nil, err
	}
	if len(in.Chart) > 0 && !isJSONObject(in.Chart) {
		return nil, fmt.Errorf("%w: chart must be a JSON object", models.ErrInvalidInput)
	}

	now := s.now().UTC()
	report := &models.Report{
		ID:        uuid.New(),
		BirthData: normalizeBirthData(in.BirthData),
		Chart:     in.Chart,
		Status:    models.ReportStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.UserID != "" {
		userID := in.UserID
		report.UserID = &userID
	}

	if err := s.repo.Create(ctx, report); err != nil {
		return nil, err
	}
	s.logger.Info("Report created", zap.String("report_id", report.ID.String()), zap.String("user_id", in.UserID))
	return report, nil
}

// GetReport возвращает отчет, если userID имеет к нему доступ.
func (s *ReportService) GetReport(ctx context.Context, id uuid.UUID, userID string) (*models.Report, error) {
	report, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccess(report, userID) {
		return nil, models.ErrForbidden
	}
	return report, nil
}

// MarkPaid отмечает отчет оплаченным. Вызывается только платежным сервисом, поэтому владелец не проверяется.
func (s *ReportService) MarkPaid(ctx context.Context, id uuid.UUID, sourceService string) error {
	if err := s.repo.MarkPaid(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Report marked as paid", zap.String("report_id", id.String()), zap.String("source_service", sourceService))
	return nil
}

// StartGeneration запускает прогон для отчета и возвращает его дескриптор.
// Второй одновременный запуск для того же отчета отклоняется с models.ErrGenerationInProgress.
// ctx используется только для подготовки: сам прогон от него не зависит.
func (s *ReportService) StartGeneration(ctx context.Context, id uuid.UUID, userID string, sink generation.Sink) (*generation.Run, error) {
	release, err := s.registry.Acquire(id)
	if err != nil {
		return nil, err
	}

	report, err := s.GetReport(ctx, id, userID)
	if err != nil {
		release()
		return nil, err
	}
	if report.Status == models.ReportStatusCompleted {
		release()
		return nil, models.ErrReportAlreadyComplete
	}
	if err := s.repo.BeginGeneration(ctx, id); err != nil {
		release()
		return nil, err
	}

	input := models.GenerationInput{
		ReportID:  report.ID,
		BirthData: report.BirthData,
		Chart:     report.Chart,
	}
	if report.UserID != nil {
		input.UserID = *report.UserID
	}

	run := s.starter.Start(input, sink)
	go func() {
		<-run.Done()
		release()
	}()

	s.logger.Info("Report generation started", zap.String("report_id", id.String()), zap.String("previous_status", string(report.Status)))
	return run, nil
}

// IsGenerating сообщает, идет ли прогон для отчета в этом процессе.
func (s *ReportService) IsGenerating(id uuid.UUID) bool {
	return s.registry.IsActive(id)
}

// Shutdown запрещает новые прогоны и ждет завершения текущих.
func (s *ReportService) Shutdown(ctx context.Context) error {
	active := s.registry.Len()
	if active > 0 {
		s.logger.Info("Waiting for active generation runs", zap.Int("active", active))
	}
	return s.registry.Drain(ctx)
}

func canAccess(report *models.Report, userID string) bool {
	if report.UserID == nil || *report.UserID == "" {
		return true
	}
	return *report.UserID == userID
}

func validateBirthData(b models.BirthData, now time.Time) error {
	var problems []string
	name := strings.TrimSpace(b.Name)
	if name == "" {
		problems = append(problems, "name is required")
	} else if utf8.RuneCountInString(name) > 100 {
		problems = append(problems, "name is too long")
	}

	if b.BirthDate == "" {
		problems = append(problems, "birthDate is required")
	} else if d, err := time.Parse("2006-01-02", b.BirthDate); err != nil {
		problems = append(problems, "birthDate must be YYYY-MM-DD")
	} else if d.After(now) {
		problems = append(problems, "birthDate is in the future")
	} else if d.Year() < 1900 {
		problems = append(problems, "birthDate is too far in the past")
	}

	if b.BirthTime != "" {
		if _, err := time.Parse("15:04", b.BirthTime); err != nil {
			problems = append(problems, "birthTime must be HH:MM")
		}
	}
	if strings.TrimSpace(b.BirthPlace) == "" {
		problems = append(problems, "birthPlace is required")
	}
	if utf8.RuneCountInString(b.Gender) > 32 {
		problems = append(problems, "gender is too long")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", models.ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

func normalizeBirthData(b models.BirthData) models.BirthData {
	b.Name = strings.TrimSpace(b.Name)
	b.BirthPlace = strings.TrimSpace(b.BirthPlace)
	b.Gender = strings.ToLower(strings.TrimSpace(b.Gender))
	return b
}

func isJSONObject(raw json.RawMessage) bool {
	var obj map[string]any
	return json.Unmarshal(raw, &obj) == nil && obj != nil
}
