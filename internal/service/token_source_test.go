package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"destiny-server/internal/mocks"
	"destiny-server/internal/models"
	"destiny-server/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReportTokenSource_StreamReport(t *testing.T) {
	prompts, err := service.NewPromptBuilder("en", "", zap.NewNop())
	require.NoError(t, err)

	mockAI := mocks.NewMockAIClient(t)
	mockAI.On("GenerateTextStream",
		mock.Anything,
		"user-7",
		mock.MatchedBy(func(s string) bool { return s != "" }),
		mock.MatchedBy(func(s string) bool { return strings.Contains(s, "Name: Ada") }),
		mock.Anything,
		mock.Anything,
	).Run(func(args mock.Arguments) {
		handler := args.Get(5).(func(string) error)
		_ = handler("first ")
		_ = handler("second")
	}).Return(service.UsageInfo{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12}, nil).Once()

	source := service.NewReportTokenSource(mockAI, prompts, "en", service.GenerationParams{}, zap.NewNop())

	var got []string
	err = source.StreamReport(context.Background(), models.GenerationInput{
		ReportID:  uuid.New(),
		UserID:    "user-7",
		BirthData: testBirth,
	}, func(s string) error {
		got = append(got, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first ", "second"}, got)
	mockAI.AssertExpectations(t)
}

func TestReportTokenSource_PropagatesError(t *testing.T) {
	prompts, err := service.NewPromptBuilder("en", "", zap.NewNop())
	require.NoError(t, err)

	cause := errors.New("stream read failed")
	mockAI := mocks.NewMockAIClient(t)
	mockAI.On("GenerateTextStream", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(service.UsageInfo{}, cause).Once()

	source := service.NewReportTokenSource(mockAI, prompts, "en", service.GenerationParams{}, zap.NewNop())
	err = source.StreamReport(context.Background(), models.GenerationInput{ReportID: uuid.New(), BirthData: testBirth}, func(string) error { return nil })
	assert.ErrorIs(t, err, cause)
}

func TestReportTokenSource_UnknownLanguage(t *testing.T) {
	prompts, err := service.NewPromptBuilder("en", "", zap.NewNop())
	require.NoError(t, err)

	source := service.NewReportTokenSource(mocks.NewMockAIClient(t), prompts, "xx", service.GenerationParams{}, zap.NewNop())
	err = source.StreamReport(context.Background(), models.GenerationInput{ReportID: uuid.New()}, func(string) error { return nil })
	assert.ErrorIs(t, err, service.ErrPromptNotFound)
}
