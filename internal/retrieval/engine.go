package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/watchsense/backend/internal/analysis"
	"github.com/watchsense/backend/internal/memory"
	"github.com/watchsense/backend/internal/vector"
	"github.com/watchsense/backend/pkg/logger"
	"github.com/watchsense/backend/pkg/utils"
)

// Embedder vectorizes free text. Satisfied by the LLM client.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingCache stores query embeddings keyed by text hash. Satisfied by the
// redis cache client.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

// Filters narrow a retrieved set by metadata. Filtering only removes rows; the
// similarity ordering of survivors is never changed.
type Filters struct {
	Brand   string
	MinStar *int
	MaxStar *int
}

// Engine retrieves semantically relevant reviews for a query.
type Engine struct {
	embedder   Embedder
	index      vector.Index
	reviews    map[int64]analysis.Review
	memory     *memory.Store
	embedCache EmbeddingCache
	cacheTTL   time.Duration
}

func NewEngine(embedder Embedder, index vector.Index, reviews map[int64]analysis.Review, store *memory.Store) *Engine {
	return &Engine{
		embedder: embedder,
		index:    index,
		reviews:  reviews,
		memory:   store,
	}
}

// SetEmbeddingCache enables query-embedding reuse across requests. Cache
// failures fall back to the embedder.
func (e *Engine) SetEmbeddingCache(cache EmbeddingCache, ttl time.Duration) {
	e.embedCache = cache
	e.cacheTTL = ttl
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	hash := utils.HashString(query)

	if e.embedCache != nil {
		cached, found, err := e.embedCache.GetEmbedding(ctx, hash)
		if err != nil {
			logger.Warn("Embedding cache lookup failed", zap.Error(err))
		}
		if found {
			return cached, nil
		}
	}

	embedding, err := e.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	if e.embedCache != nil {
		if err := e.embedCache.SetEmbedding(ctx, hash, embedding, e.cacheTTL); err != nil {
			logger.Warn("Failed to cache query embedding", zap.Error(err))
		}
	}

	return embedding, nil
}

// Retrieve embeds the query, searches the index and applies metadata filters.
// An empty result is a normal outcome, not an error.
func (e *Engine) Retrieve(ctx context.Context, query string, k int, filters Filters) ([]analysis.RetrievedReview, error) {
	e.memory.AddQuery(query)

	embedding, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	neighbors, err := e.index.Search(ctx, vector.Normalize(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	results := make([]analysis.RetrievedReview, 0, len(neighbors))
	retrievedIDs := make([]int64, 0, len(neighbors))
	for _, n := range neighbors {
		review, ok := e.reviews[n.ID]
		if !ok {
			logger.Warn("Index returned unknown review id", zap.Int64("id", n.ID))
			continue
		}
		results = append(results, analysis.RetrievedReview{Review: review, Score: n.Score})
		retrievedIDs = append(retrievedIDs, n.ID)
	}

	e.memory.UpdateShortTerm(memory.Update{
		LastQuery:    &query,
		RetrievedIDs: retrievedIDs,
	})

	if filters.Brand != "" {
		e.memory.AddBrand(filters.Brand)
		results = keep(results, func(r analysis.RetrievedReview) bool {
			return strings.EqualFold(r.Brand, filters.Brand)
		})
	}

	if filters.MinStar != nil {
		results = keep(results, func(r analysis.RetrievedReview) bool {
			return r.StarRating >= *filters.MinStar
		})
	}

	if filters.MaxStar != nil {
		results = keep(results, func(r analysis.RetrievedReview) bool {
			return r.StarRating <= *filters.MaxStar
		})
	}

	logger.Info("Reviews retrieved",
		zap.String("query", query),
		zap.Int("candidates", len(neighbors)),
		zap.Int("after_filters", len(results)),
	)

	return results, nil
}

// keep filters in place, preserving order.
func keep(reviews []analysis.RetrievedReview, pred func(analysis.RetrievedReview) bool) []analysis.RetrievedReview {
	filtered := reviews[:0]
	for _, r := range reviews {
		if pred(r) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
