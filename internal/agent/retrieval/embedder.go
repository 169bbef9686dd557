package retrieval

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	errx "github.com/spacecopilot/server/internal/core/error"
	logx "github.com/spacecopilot/server/pkg/logger"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GenAIEmbedder embeds text with a Gemini embedding model.
type GenAIEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int32
}

// NewGenAIEmbedder builds an embedder on an existing client. A
// non-positive dimensions keeps the model default.
func NewGenAIEmbedder(client *genai.Client, model string, dimensions int32) *GenAIEmbedder {
	return &GenAIEmbedder{client: client, model: model, dimensions: dimensions}
}

// Model returns the embedding model name.
func (e *GenAIEmbedder) Model() string {
	return e.model
}

// Embed replaces newlines with spaces and embeds the text.
func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.client == nil {
		return nil, errx.WrapLLM(fmt.Errorf("embedding client is not initialised"))
	}
	text = strings.ReplaceAll(text, "\n", " ")

	cfg := &genai.EmbedContentConfig{}
	if e.dimensions > 0 {
		cfg.OutputDimensionality = genai.Ptr(e.dimensions)
	}
	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), cfg)
	if err != nil {
		logx.Error().Err(err).Str("model", e.model).Msg("embedding failed")
		return nil, errx.WrapLLM(err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, errx.WrapLLM(fmt.Errorf("embedding response is empty"))
	}
	return resp.Embeddings[0].Values, nil
}

// VectorCache stores embeddings by key. Get reports a miss as (nil, false, nil).
type VectorCache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32) error
}

// CachedEmbedder consults cache before calling next. Cache failures are
// logged and never fail the embedding.
type CachedEmbedder struct {
	next  Embedder
	cache VectorCache
	model string
}

// NewCachedEmbedder wraps next; model is part of every cache key.
func NewCachedEmbedder(next Embedder, cache VectorCache, model string) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: cache, model: model}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(c.model, strings.ReplaceAll(text, "\n", " "))

	vec, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		logx.Component("embedding_cache").Warn().Err(err).Msg("cache read failed")
	}
	if ok {
		return vec, nil
	}

	vec, err = c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, vec); err != nil {
		logx.Component("embedding_cache").Warn().Err(err).Msg("cache write failed")
	}
	return vec, nil
}
