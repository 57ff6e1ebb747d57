package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"destiny-server/internal/generation"
	"destiny-server/internal/mocks"
	"destiny-server/internal/models"
	"destiny-server/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// gatedSource отдает чанки после того, как тест откроет gate.
type gatedSource struct {
	gate   chan struct{}
	chunks []string
}

func (s *gatedSource) StreamReport(ctx context.Context, _ models.GenerationInput, onChunk func(string) error) error {
	select {
	case <-s.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	for _, c := range s.chunks {
		_ = onChunk(c)
	}
	return nil
}

func newReportService(t *testing.T, repo *mocks.MockReportRepository, source generation.TokenSource) *service.ReportService {
	t.Helper()
	cfg := generation.DefaultConfig()
	cfg.FinalFlushBackoff = 0
	cfg.RunTimeout = 5 * time.Second
	orch := generation.NewOrchestrator(source, repo, cfg, zap.NewNop())
	return service.NewReportService(repo, orch, generation.NewRegistry(), zap.NewNop())
}

func TestReportService_CreateReport(t *testing.T) {
	repo := mocks.NewMockReportRepository(t)
	svc := newReportService(t, repo, &gatedSource{})

	repo.On("Create", mock.Anything, mock.MatchedBy(func(r *models.Report) bool {
		return r.Status == models.ReportStatusPending && r.BirthData.Name == "Ada" && *r.UserID == "user-1" && r.ID != uuid.Nil
	})).Return(nil).Once()

	birth := testBirth
	birth.Name = "  Ada "
	report, err := svc.CreateReport(context.Background(), service.CreateReportInput{
		UserID:    "user-1",
		BirthData: birth,
		Chart:     json.RawMessage(`{"sun":"Aries"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusPending, report.Status)
	repo.AssertExpectations(t)
}

func TestReportService_CreateReportValidation(t *testing.T) {
	repo := mocks.NewMockReportRepository(t)
	svc := newReportService(t, repo, &gatedSource{})

	cases := map[string]func(b *models.BirthData){
		"missing name":      func(b *models.BirthData) { b.Name = " " },
		"bad date":          func(b *models.BirthData) { b.BirthDate = "12/04/1990" },
		"future date":       func(b *models.BirthData) { b.BirthDate = time.Now().AddDate(1, 0, 0).Format("2006-01-02") },
		"bad time":          func(b *models.BirthData) { b.BirthTime = "25:99" },
		"missing place":     func(b *models.BirthData) { b.BirthPlace = "" },
		"ancient birthdate": func(b *models.BirthData) { b.BirthDate = "1800-01-01" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			birth := testBirth
			mutate(&birth)
			_, err := svc.CreateReport(context.Background(), service.CreateReportInput{BirthData: birth})
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}

	_, err := svc.CreateReport(context.Background(), service.CreateReportInput{BirthData: testBirth, Chart: json.RawMessage(`[1,2]`)})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReportService_GetReportOwnership(t *testing.T) {
	repo := mocks.NewMockReportRepository(t)
	svc := newReportService(t, repo, &gatedSource{})

	owner := "owner"
	id := uuid.New()
	repo.On("GetByID", mock.Anything, id).Return(&models.Report{ID: id, UserID: &owner}, nil)

	_, err := svc.GetReport(context.Background(), id, "owner")
	assert.NoError(t, err)
	_, err = svc.GetReport(context.Background(), id, "someone-else")
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestReportService_StartGeneration(t *testing.T) {
	repo := mocks.NewMockReportRepository(t)
	source := &gatedSource{gate: make(chan struct{}), chunks: []string{"Your ", "destiny."}}
	svc := newReportService(t, repo, source)

	id := uuid.New()
	repo.On("GetByID", mock.Anything, id).Return(&models.Report{ID: id, Status: models.ReportStatusFailed, BirthData: testBirth}, nil)
	repo.On("BeginGeneration", mock.Anything, id).Return(nil).Once()
	repo.On("UpdateReport", mock.Anything, id, mock.MatchedBy(func(u models.ReportUpdate) bool {
		return u.Status != nil && *u.Status == models.ReportStatusCompleted && *u.FullText == "Your destiny."
	})).Return(nil).Once()

	sink := generation.NewChannelSink(8)
	run, err := svc.StartGeneration(context.Background(), id, "", sink)
	require.NoError(t, err)
	assert.True(t, svc.IsGenerating(id))

	// второй запуск того же отчета отклоняется
	_, err = svc.StartGeneration(context.Background(), id, "", generation.NewChannelSink(1))
	assert.ErrorIs(t, err, models.ErrGenerationInProgress)

	close(source.gate)
	res := run.Result()
	assert.Equal(t, models.ReportStatusCompleted, res.Status)

	assert.Eventually(t, func() bool { return !svc.IsGenerating(id) }, time.Second, 5*time.Millisecond)
	repo.AssertExpectations(t)
}

func TestReportService_StartGenerationRejected(t *testing.T) {
	t.Run("already completed", func(t *testing.T) {
		repo := mocks.NewMockReportRepository(t)
		svc := newReportService(t, repo, &gatedSource{})
		id := uuid.New()
		repo.On("GetByID", mock.Anything, id).Return(&models.Report{ID: id, Status: models.ReportStatusCompleted}, nil)

		_, err := svc.StartGeneration(context.Background(), id, "", nil)
		assert.ErrorIs(t, err, models.ErrReportAlreadyComplete)
		assert.False(t, svc.IsGenerating(id))
	})

	t.Run("not found", func(t *testing.T) {
		repo := mocks.NewMockReportRepository(t)
		svc := newReportService(t, repo, &gatedSource{})
		id := uuid.New()
		repo.On("GetByID", mock.Anything, id).Return(nil, models.ErrReportNotFound)

		_, err := svc.StartGeneration(context.Background(), id, "", nil)
		assert.ErrorIs(t, err, models.ErrReportNotFound)
		assert.False(t, svc.IsGenerating(id))
	})

	t.Run("begin fails", func(t *testing.T) {
		repo := mocks.NewMockReportRepository(t)
		svc := newReportService(t, repo, &gatedSource{})
		id := uuid.New()
		repo.On("GetByID", mock.Anything, id).Return(&models.Report{ID: id, Status: models.ReportStatusPending}, nil)
		repo.On("BeginGeneration", mock.Anything, id).Return(errors.New("db down"))

		_, err := svc.StartGeneration(context.Background(), id, "", nil)
		assert.Error(t, err)
		assert.False(t, svc.IsGenerating(id))
	})
}

func TestReportService_ShutdownWaitsForRuns(t *testing.T) {
	repo := mocks.NewMockReportRepository(t)
	source := &gatedSource{gate: make(chan struct{}), chunks: []string{"x"}}
	svc := newReportService(t, repo, source)

	id := uuid.New()
	repo.On("GetByID", mock.Anything, id).Return(&models.Report{ID: id, Status: models.ReportStatusPending}, nil)
	repo.On("BeginGeneration", mock.Anything, id).Return(nil)
	repo.On("UpdateReport", mock.Anything, id, mock.Anything).Return(nil)

	_, err := svc.StartGeneration(context.Background(), id, "", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, svc.Shutdown(ctx), context.DeadlineExceeded)

	close(source.gate)
	require.NoError(t, svc.Shutdown(context.Background()))

	_, err = svc.StartGeneration(context.Background(), uuid.New(), "", nil)
	assert.ErrorIs(t, err, models.ErrShuttingDown)
}
