package agents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrAIGenerationFailed - ошибка при генерации текста AI
var ErrAIGenerationFailed = errors.New("ошибка генерации текста AI")

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "a2s_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "a2s_ai_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
	aiTotalTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "a2s_ai_tokens_used_total",
			Help: "Total number of AI tokens used (prompt + completion).",
		},
		[]string{"model"},
	)
)

// AIClient - интерфейс доступа к AI-модели.
// Агенты запрашивают строго структурированный JSON-ответ.
type AIClient interface {
	// GenerateJSON выполняет один запрос и возвращает сырой JSON-текст ответа.
	GenerateJSON(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

type openAIClient struct {
	client  *openaigo.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewOpenAIClient создает клиент для OpenAI-совместимого endpoint (OpenRouter).
func NewOpenAIClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) AIClient {
	cfg := openaigo.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &openAIClient{
		client:  openaigo.NewClientWithConfig(cfg),
		timeout: timeout,
		logger:  logger.Named("AIClient"),
	}
}

var _ AIClient = (*openAIClient)(nil)

// GenerateJSON выполняет chat completion с принудительным JSON-форматом ответа.
func (c *openAIClient) GenerateJSON(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(reqCtx, openaigo.ChatCompletionRequest{
		Model: model,
		Messages: []openaigo.ChatCompletionMessage{
			{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openaigo.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openaigo.ChatCompletionResponseFormat{
			Type: openaigo.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	duration := time.Since(start)
	aiRequestDuration.WithLabelValues(model).Observe(duration.Seconds())

	if err != nil {
		aiRequestsTotal.WithLabelValues(model, "error").Inc()
		c.logger.Error("AI request failed",
			zap.String("model", model),
			zap.Duration("duration", duration),
			zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		aiRequestsTotal.WithLabelValues(model, "empty").Inc()
		return "", fmt.Errorf("%w: пустой ответ модели", ErrAIGenerationFailed)
	}

	aiRequestsTotal.WithLabelValues(model, "success").Inc()
	aiTotalTokens.WithLabelValues(model).Add(float64(resp.Usage.TotalTokens))
	c.logger.Debug("AI request completed",
		zap.String("model", model),
		zap.Duration("duration", duration),
		zap.Int("totalTokens", resp.Usage.TotalTokens))

	return resp.Choices[0].Message.Content, nil
}
