package answer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/scout/internal/config"
	"github.com/hyperjump/scout/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ChatSynthesizer answers through an OpenAI-compatible chat completions endpoint.
type ChatSynthesizer struct {
	client       llms.Model
	systemPrompt string
	temperature  float64
	timeout      time.Duration
}

// NewChatSynthesizer creates a synthesizer from cfg. A missing API key is sent
// as "none" so local servers without authentication work.
func NewChatSynthesizer(cfg *config.LLMConfig) (*ChatSynthesizer, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm model is required")
	}
	token := cfg.APIKey
	if token == "" {
		token = "none"
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = config.DefaultSystemPrompt
	}
	return &ChatSynthesizer{
		client:       client,
		systemPrompt: prompt,
		temperature:  cfg.Temperature,
		timeout:      cfg.Timeout,
	}, nil
}

// Answer sends the system prompt and the numbered context to the model.
func (s *ChatSynthesizer) Answer(ctx context.Context, question string, evidence []models.Evidence) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, s.systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, BuildPrompt(question, evidence)),
	}
	resp, err := s.client.GenerateContent(ctx, content, llms.WithTemperature(s.temperature))
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
