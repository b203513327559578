package pgstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"selfrag-orchestrator/internal/domain"
)

const (
	defaultCacheSize = 256
	defaultCacheTTL  = 5 * time.Minute
)

// Retriever implements domain.Retriever: it embeds the query, runs a
// similarity search over the passages table, and memoizes results per
// (query, k) in an expirable LRU. The cache absorbs the rewrite loop's
// re-retrievals and keeps identical queries returning identical orderings.
type Retriever struct {
	encoder domain.VectorEncoder
	repo    domain.PassageRepository
	cache   *expirable.LRU[string, []domain.Document]
	logger  *slog.Logger
}

// NewRetriever wires the encoder and passage repository into the retrieval
// service. Non-positive cacheSize or cacheTTL fall back to defaults.
func NewRetriever(
	encoder domain.VectorEncoder,
	repo domain.PassageRepository,
	cacheSize int,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *Retriever {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &Retriever{
		encoder: encoder,
		repo:    repo,
		cache:   expirable.NewLRU[string, []domain.Document](cacheSize, nil, cacheTTL),
		logger:  logger,
	}
}

func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]domain.Document, error) {
	if k <= 0 {
		return nil, nil
	}

	cacheKey := fmt.Sprintf("%d|%s", k, query)
	if docs, ok := r.cache.Get(cacheKey); ok {
		r.logger.Debug("retrieval_cache_hit", slog.String("query", query), slog.Int("k", k))
		return cloneDocs(docs), nil
	}

	embeddings, err := r.encoder.Encode(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w: %w", domain.ErrRetrievalUnavailable, err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("encode query: %w: expected 1 embedding, got %d",
			domain.ErrRetrievalUnavailable, len(embeddings))
	}

	hits, err := r.repo.Search(ctx, embeddings[0], k)
	if err != nil {
		return nil, fmt.Errorf("search passages: %w: %w", domain.ErrRetrievalUnavailable, err)
	}

	docs := make([]domain.Document, 0, len(hits))
	for _, hit := range hits {
		docs = append(docs, domain.Document{
			ID:     hit.Passage.ID.String(),
			Source: hit.Passage.Source,
			Text:   hit.Passage.Content,
			Score:  hit.Score,
		})
	}

	r.cache.Add(cacheKey, cloneDocs(docs))

	r.logger.Info("passages_retrieved",
		slog.String("query", query),
		slog.Int("k", k),
		slog.Int("hits", len(docs)))

	return docs, nil
}

// Invalidate drops every memoized retrieval. The ingestion pipeline calls
// this after rewriting the passage index so cached answers cannot cite
// passages that no longer exist.
func (r *Retriever) Invalidate() {
	r.cache.Purge()
	r.logger.Debug("retrieval_cache_invalidated")
}

// cloneDocs keeps cached slices isolated from caller mutation.
func cloneDocs(docs []domain.Document) []domain.Document {
	out := make([]domain.Document, len(docs))
	copy(out, docs)
	return out
}

var _ domain.Retriever = (*Retriever)(nil)
