package embedding

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hyperjump/scout/internal/config"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint (OpenAI, Ollama, vLLM, LocalAI).
type OpenAIEmbedder struct {
	embedder   embeddings.Embedder
	dimensions int
	timeout    time.Duration
}

// NewOpenAIEmbedder creates an embedder from cfg. A missing API key is sent as
// "none" so local servers without authentication work.
func NewOpenAIEmbedder(cfg *config.EmbeddingConfig) (*OpenAIEmbedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	token := cfg.APIKey
	if token == "" {
		token = "none"
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return &OpenAIEmbedder{embedder: embedder, dimensions: cfg.Dimensions, timeout: cfg.Timeout}, nil
}

func (e *OpenAIEmbedder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

// Embed returns the embedding for one text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if err := e.checkDimensions(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedBatch returns one embedding per text in a single request.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d texts", len(vecs), len(texts))
	}
	for _, v := range vecs {
		if err := e.checkDimensions(v); err != nil {
			return nil, err
		}
	}
	return vecs, nil
}

func (e *OpenAIEmbedder) checkDimensions(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("embedding provider returned an empty vector")
	}
	if e.dimensions > 0 && len(vec) != e.dimensions {
		return fmt.Errorf("embedding has %d dimensions, expected %d", len(vec), e.dimensions)
	}
	return nil
}

// Dimensions returns the configured vector size.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
