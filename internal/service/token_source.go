package service

import (
	"context"
	"fmt"

	"destiny-server/internal/generation"
	"destiny-server/internal/models"

	"go.uber.org/zap"
)

var _ generation.TokenSource = (*ReportTokenSource)(nil)

// ReportTokenSource строит промты по данным отчета и стримит ответ AI.
type ReportTokenSource struct {
	client   AIClient
	prompts  *PromptBuilder
	language string
	params   GenerationParams
	logger   *zap.Logger
}

func NewReportTokenSource(client AIClient, prompts *PromptBuilder, language string, params GenerationParams, logger *zap.Logger) *ReportTokenSource {
	return &ReportTokenSource{
		client:   client,
		prompts:  prompts,
		language: language,
		params:   params,
		logger:   logger.Named("ReportTokenSource"),
	}
}

func (s *ReportTokenSource) StreamReport(ctx context.Context, input models.GenerationInput, onChunk func(string) error) error {
	systemPrompt, userPrompt, err := s.prompts.Build(s.language, input.BirthData, input.Chart)
	if err != nil {
		return fmt.Errorf("failed to build prompts: %w", err)
	}

	usage, err := s.client.GenerateTextStream(ctx, input.UserID, systemPrompt, userPrompt, s.params, onChunk)
	if err != nil {
		return err
	}
	s.logger.Debug("Report stream usage",
		zap.String("report_id", input.ReportID.String()),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
		zap.Bool("estimated", usage.Estimated),
	)
	return nil
}
