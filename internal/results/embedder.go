package results

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/searchlab/search-eval/internal/pkg/errors"
)

// DefaultEmbedModel is used when no embedding model is configured.
const DefaultEmbedModel = "text-embedding-3-small"

// Embedder turns query text into dense vectors for retrieval.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIEmbedder embeds queries through an OpenAI-compatible endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbedder creates an embedder. baseURL may point at any
// OpenAI-compatible server; model defaults to DefaultEmbedModel.
func NewOpenAIEmbedder(apiKey, baseURL, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errors.ConfigurationError("embedding API key is required")
	}
	if model == "" {
		model = DefaultEmbedModel
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// Embed returns one vector per input text, in input order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, "embedding request failed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, errors.New(errors.CodeData, "embedding response count mismatch")
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, errors.New(errors.CodeData, "embedding response index out of range")
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}
