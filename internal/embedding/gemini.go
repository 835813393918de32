// Package embedding computes text embeddings with Google's Gemini API for
// semantic duplicate detection.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/keywatch/internal/config"
)

// TaskType tells the embedding model the vectors will be compared with each other.
const TaskType = "SEMANTIC_SIMILARITY"

// ErrNoEmbedding is returned when the API answers without a vector.
var ErrNoEmbedding = errors.New("no embedding returned")

// ContentEmbedder is the subset of *genai.Models used here.
type ContentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GeminiEmbedder embeds text through the Gemini API, retrying transient
// server errors. It is safe for concurrent use.
type GeminiEmbedder struct {
	api        ContentEmbedder
	log        *slog.Logger
	model      string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
}

// NewGeminiEmbedder creates a genai client for the Gemini API backend.
func NewGeminiEmbedder(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	e := NewEmbedder(client.Models, cfg, log)
	e.log.Info("Gemini embedder initialized", "model", cfg.EmbeddingModel)
	return e, nil
}

// NewEmbedder wraps an existing API handle.
func NewEmbedder(api ContentEmbedder, cfg config.GeminiConfig, log *slog.Logger) *GeminiEmbedder {
	return &GeminiEmbedder{
		api:        api,
		log:        log.With("component", "embedding"),
		model:      cfg.EmbeddingModel,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryDelay: time.Duration(cfg.RetryDelaySeconds) * time.Second,
	}
}

// Embed returns the embedding vector of text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	cfg := &genai.EmbedContentConfig{TaskType: TaskType}

	var err error
	for i := 0; i <= e.maxRetries; i++ {
		var resp *genai.EmbedContentResponse
		resp, err = e.call(ctx, contents, cfg)
		if err == nil {
			if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
				return nil, ErrNoEmbedding
			}
			return resp.Embeddings[0].Values, nil
		}

		var apiErr *genai.APIError
		if !errors.As(err, &apiErr) || (apiErr.Code != 500 && apiErr.Code != 503) {
			return nil, fmt.Errorf("gemini embed call failed: %w", err)
		}
		if i == e.maxRetries {
			break
		}

		e.log.WarnContext(ctx, "Retrying Gemini embed call", "attempt", i+1, "max_retries", e.maxRetries, "code", apiErr.Code, "delay", e.retryDelay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.retryDelay):
		}
	}

	return nil, fmt.Errorf("gemini embed call failed after %d retries: %w", e.maxRetries, err)
}

func (e *GeminiEmbedder) call(ctx context.Context, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return e.api.EmbedContent(ctx, e.model, contents, cfg)
}
