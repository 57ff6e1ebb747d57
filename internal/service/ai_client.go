package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"destiny-server/internal/config"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrAIGenerationFailed - ошибка генерации текста AI.
var ErrAIGenerationFailed = errors.New("ai text generation failed")

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "destiny_ai_requests_total",
			Help: "Total number of streaming requests to the AI API.",
		},
		[]string{"model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "destiny_ai_request_duration_seconds",
			Help:    "Histogram of AI streaming request durations.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"model"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "destiny_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"model"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "destiny_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"model"},
	)
)

// GenerationParams - параметры генерации. nil означает значение по умолчанию модели.
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// UsageInfo - расход токенов. Для стрима без финального блока usage значения оценочные.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Estimated        bool
}

// AIClient - потоковая генерация текста.
type AIClient interface {
	// GenerateTextStream вызывает chunkHandler для каждого фрагмента по порядку.
	// Ошибка chunkHandler прерывает стрим.
	GenerateTextStream(ctx context.Context, userID string, systemPrompt string, userInput string, params GenerationParams, chunkHandler func(string) error) (UsageInfo, error)
}

// NewAIClient создает клиента по AI_CLIENT_TYPE.
func NewAIClient(cfg *config.Config, logger *zap.Logger) (AIClient, error) {
	switch strings.ToLower(cfg.AIClientType) {
	case "openai":
		openaiConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
		openaiConfig.BaseURL = cfg.AIBaseURL
		openaiConfig.HTTPClient = &http.Client{Timeout: cfg.AITimeout}
		logger.Info("OpenAI client created", zap.String("base_url", cfg.AIBaseURL), zap.String("model", cfg.AIModel), zap.Duration("timeout", cfg.AITimeout))
		return &openAIClient{
			client:    openaigo.NewClientWithConfig(openaiConfig),
			model:     cfg.AIModel,
			tokenizer: newTokenizer(cfg.AIModel),
			logger:    logger.Named("OpenAIClient"),
		}, nil
	case "ollama":
		return newOllamaClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown AI client type '%s'", cfg.AIClientType)
	}
}

// --- OpenAI ---

type openAIClient struct {
	client    *openaigo.Client
	model     string
	tokenizer *tiktoken.Tiktoken
	logger    *zap.Logger
}

func (c *openAIClient) GenerateTextStream(ctx context.Context, userID string, systemPrompt string, userInput string, params GenerationParams, chunkHandler func(string) error) (UsageInfo, error) {
	usage := UsageInfo{}
	if strings.TrimSpace(systemPrompt) == "" {
		return usage, fmt.Errorf("%w: system prompt is empty", ErrAIGenerationFailed)
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{Role: openaigo.ChatMessageRoleUser, Content: userInput})
	}

	request := openaigo.ChatCompletionRequest{
		Model:         c.model,
		Messages:      messages,
		Stream:        true,
		StreamOptions: &openaigo.StreamOptions{IncludeUsage: true},
		Temperature:   float32Val(params.Temperature),
		MaxTokens:     intVal(params.MaxTokens),
		TopP:          float32Val(params.TopP),
	}

	log := c.logger.With(zap.String("user_id", userID))
	log.Debug("Sending stream request", zap.String("model", c.model), zap.Int("system_prompt_bytes", len(systemPrompt)), zap.Int("user_input_bytes", len(userInput)))

	startTime := time.Now()
	stream, err := c.client.CreateChatCompletionStream(ctx, request)
	if err != nil {
		aiRequestsTotal.WithLabelValues(c.model, "error_stream_init").Inc()
		return usage, fmt.Errorf("%w: failed to open stream: %v", ErrAIGenerationFailed, err)
	}
	defer stream.Close()

	var finalUsage *openaigo.Usage
	completionTokens := 0
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			aiRequestsTotal.WithLabelValues(c.model, "error_stream_read").Inc()
			log.Warn("Stream read failed", zap.Duration("elapsed", time.Since(startTime)), zap.Error(err))
			return usage, fmt.Errorf("%w: stream read failed: %w", ErrAIGenerationFailed, err)
		}
		if response.Usage != nil && response.Usage.TotalTokens > 0 {
			finalUsage = response.Usage
		}
		if len(response.Choices) == 0 {
			continue
		}
		chunk := response.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		completionTokens += c.countTokens(chunk)
		if chunkHandler != nil {
			if err := chunkHandler(chunk); err != nil {
				aiRequestsTotal.WithLabelValues(c.model, "error_handler").Inc()
				return usage, fmt.Errorf("stream chunk handler failed: %w", err)
			}
		}
	}

	duration := time.Since(startTime)
	if finalUsage != nil {
		usage.PromptTokens = finalUsage.PromptTokens
		usage.CompletionTokens = finalUsage.CompletionTokens
		usage.TotalTokens = finalUsage.TotalTokens
	} else if c.tokenizer != nil {
		usage.PromptTokens = c.countTokens(systemPrompt) + c.countTokens(userInput)
		usage.CompletionTokens = completionTokens
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		usage.Estimated = true
	}

	observeUsage(c.model, usage, duration)
	log.Info("Stream finished",
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
		zap.Bool("estimated", usage.Estimated),
	)
	return usage, nil
}

func (c *openAIClient) countTokens(s string) int {
	if c.tokenizer == nil || s == "" {
		return 0
	}
	return len(c.tokenizer.Encode(s, nil, nil))
}

// newTokenizer возвращает токенизатор модели или nil, если модель tiktoken неизвестна.
func newTokenizer(model string) *tiktoken.Tiktoken {
	tke, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil
	}
	return tke
}

// --- Ollama ---

type ollamaClient struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func newOllamaClient(cfg *config.Config, logger *zap.Logger) (AIClient, error) {
	baseURL := strings.TrimSuffix(cfg.AIBaseURL, "/v1")
	baseURL = strings.TrimSuffix(baseURL, "/")

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Ollama base URL '%s': %w", baseURL, err)
	}
	// таймаут на весь стрим задается контекстом, а не http-клиентом
	client := api.NewClient(parsedURL, &http.Client{})

	logger.Info("Ollama client created", zap.String("base_url", baseURL), zap.String("model", cfg.AIModel), zap.Duration("timeout", cfg.AITimeout))
	return &ollamaClient{
		client:  client,
		model:   cfg.AIModel,
		timeout: cfg.AITimeout,
		logger:  logger.Named("OllamaClient"),
	}, nil
}

func (c *ollamaClient) GenerateTextStream(ctx context.Context, userID string, systemPrompt string, userInput string, params GenerationParams, chunkHandler func(string) error) (UsageInfo, error) {
	usage := UsageInfo{}
	if strings.TrimSpace(systemPrompt) == "" {
		return usage, fmt.Errorf("%w: system prompt is empty", ErrAIGenerationFailed)
	}

	messages := []api.Message{{Role: "system", Content: systemPrompt}}
	if userInput != "" {
		messages = append(messages, api.Message{Role: "user", Content: userInput})
	}

	stream := true
	options := map[string]any{}
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}

	requestCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		requestCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	log := c.logger.With(zap.String("user_id", userID))
	startTime := time.Now()
	err := c.client.Chat(requestCtx, req, func(resp api.ChatResponse) error {
		if resp.Message.Content != "" && chunkHandler != nil {
			if err := chunkHandler(resp.Message.Content); err != nil {
				return fmt.Errorf("stream chunk handler failed: %w", err)
			}
		}
		if resp.Done {
			usage.PromptTokens = resp.PromptEvalCount
			usage.CompletionTokens = resp.EvalCount
			usage.TotalTokens = resp.PromptEvalCount + resp.EvalCount
			if resp.DoneReason != "" && resp.DoneReason != "stop" {
				log.Warn("Ollama stream finished with unexpected reason", zap.String("done_reason", resp.DoneReason))
			}
		}
		return nil
	})
	duration := time.Since(startTime)

	if err != nil {
		aiRequestsTotal.WithLabelValues(c.model, "error_stream").Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("Ollama stream timed out", zap.Duration("timeout", c.timeout), zap.Duration("elapsed", duration))
		} else {
			log.Warn("Ollama stream failed", zap.Duration("elapsed", duration), zap.Error(err))
		}
		return usage, fmt.Errorf("%w: %w", ErrAIGenerationFailed, err)
	}

	observeUsage(c.model, usage, duration)
	log.Info("Stream finished", zap.Duration("duration", duration), zap.Int("prompt_tokens", usage.PromptTokens), zap.Int("completion_tokens", usage.CompletionTokens))
	return usage, nil
}

func observeUsage(model string, usage UsageInfo, duration time.Duration) {
	status := "success_stream"
	if usage.Estimated {
		status = "success_stream_estimated"
	}
	aiRequestsTotal.WithLabelValues(model, status).Inc()
	aiRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
	if usage.TotalTokens > 0 {
		aiPromptTokens.WithLabelValues(model).Observe(float64(usage.PromptTokens))
		aiCompletionTokens.WithLabelValues(model).Observe(float64(usage.CompletionTokens))
	}
}

func float32Val(f64 *float64) float32 {
	if f64 == nil {
		return 0
	}
	return float32(*f64)
}

func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
