package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/shaiso/Vetflow/internal/telemetry"
)

// Ошибки AI.
var (
	ErrEmptyText     = errors.New("text is empty")
	ErrEmptyResponse = errors.New("model returned empty response")
	ErrInvalidJSON   = errors.New("model returned invalid JSON")
)

// DefaultModel — модель по умолчанию.
const DefaultModel = "gpt-4o-mini"

// Config — параметры OpenAI-совместимого API.
type Config struct {
	// BaseURL — для self-hosted/proxy endpoint. Пустой — api.openai.com.
	BaseURL string
	Token   string
	Model   string
}

// NewModel создаёт llms.Model для OpenAI-совместимого API.
func NewModel(cfg Config) (llms.Model, error) {
	if cfg.Token == "" {
		return nil, errors.New("ai token is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	opts := []openai.Option{
		openai.WithToken(cfg.Token),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return llm, nil
}

// complete отправляет system + user сообщения и возвращает текст первого ответа.
func complete(ctx context.Context, model llms.Model, system, user string, opts ...llms.CallOption) (string, error) {
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(system)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(user)},
		},
	}

	logger := telemetry.FromContext(ctx)
	start := time.Now()

	resp, err := model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		logger.Warn("llm request failed", "error", err, "duration", time.Since(start))
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	content := strings.TrimSpace(resp.Choices[0].Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	logger.Debug("llm completion",
		"prompt_len", len(user),
		"response_len", len(content),
		"duration", time.Since(start),
	)
	return content, nil
}

// stripCodeFence убирает ```json ... ``` вокруг ответа модели.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
