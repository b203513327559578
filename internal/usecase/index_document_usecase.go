package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"selfrag-orchestrator/internal/domain"
)

// encodeBatchSize bounds how many chunk texts go to the embedder per call.
const encodeBatchSize = 32

// RetrievalCacheInvalidator drops memoized retrieval results once the
// passage index changes underneath them.
type RetrievalCacheInvalidator interface {
	Invalidate()
}

// IndexDocumentUsecase ingests one document into the passage index.
type IndexDocumentUsecase interface {
	// Upsert replaces all passages previously ingested from source with
	// freshly chunked and embedded ones.
	Upsert(ctx context.Context, source, body string) error

	// Purge removes all passages for source.
	Purge(ctx context.Context, source string) error
}

type indexDocumentUsecase struct {
	passageRepo domain.PassageRepository
	txManager   domain.TransactionManager
	chunker     domain.Chunker
	encoder     domain.VectorEncoder
	cache       RetrievalCacheInvalidator
	logger      *slog.Logger
}

// NewIndexDocumentUsecase wires the ingestion pipeline. cache may be nil
// when the process serves no queries (the CLI indexer).
func NewIndexDocumentUsecase(
	passageRepo domain.PassageRepository,
	txManager domain.TransactionManager,
	chunker domain.Chunker,
	encoder domain.VectorEncoder,
	cache RetrievalCacheInvalidator,
	logger *slog.Logger,
) IndexDocumentUsecase {
	return &indexDocumentUsecase{
		passageRepo: passageRepo,
		txManager:   txManager,
		chunker:     chunker,
		encoder:     encoder,
		cache:       cache,
		logger:      logger,
	}
}

func (u *indexDocumentUsecase) Upsert(ctx context.Context, source, body string) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return fmt.Errorf("source is required")
	}
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("body is required")
	}

	chunks, err := u.chunker.Chunk(body)
	if err != nil {
		return fmt.Errorf("failed to chunk document: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("document produced no chunks")
	}

	passages, err := u.embedChunks(ctx, source, chunks)
	if err != nil {
		return err
	}

	// Delete and insert in one transaction so a reader never sees the
	// source half-indexed.
	err = u.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := u.passageRepo.DeleteBySource(txCtx, source); err != nil {
			return err
		}
		return u.passageRepo.BulkInsert(txCtx, passages)
	})
	if err != nil {
		return fmt.Errorf("failed to replace passages for %s: %w", source, err)
	}

	u.invalidateCache()

	u.logger.Info("document_indexed",
		slog.String("source", source),
		slog.Int("chunks", len(chunks)),
		slog.String("chunker_version", string(u.chunker.Version())),
		slog.String("embedder_version", u.encoder.Version()))
	return nil
}

func (u *indexDocumentUsecase) Purge(ctx context.Context, source string) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return fmt.Errorf("source is required")
	}
	if err := u.passageRepo.DeleteBySource(ctx, source); err != nil {
		return fmt.Errorf("failed to purge passages for %s: %w", source, err)
	}
	u.invalidateCache()
	u.logger.Info("document_purged", slog.String("source", source))
	return nil
}

func (u *indexDocumentUsecase) invalidateCache() {
	if u.cache != nil {
		u.cache.Invalidate()
	}
}

func (u *indexDocumentUsecase) embedChunks(ctx context.Context, source string, chunks []domain.Chunk) ([]domain.Passage, error) {
	now := time.Now()
	passages := make([]domain.Passage, 0, len(chunks))

	for start := 0; start < len(chunks); start += encodeBatchSize {
		end := start + encodeBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Content
		}

		embeddings, err := u.encoder.Encode(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks: %w", err)
		}
		if len(embeddings) != len(batch) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(batch), len(embeddings))
		}

		for i, ch := range batch {
			passages = append(passages, domain.Passage{
				ID:        uuid.New(),
				Source:    source,
				Ordinal:   ch.Ordinal,
				Content:   ch.Content,
				Embedding: pgvector.NewVector(embeddings[i]),
				CreatedAt: now,
			})
		}
	}
	return passages, nil
}
