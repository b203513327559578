package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Passage is a persisted, embedded chunk of an ingested document.
type Passage struct {
	ID        uuid.UUID
	Source    string
	Ordinal   int
	Content   string
	Embedding pgvector.Vector
	CreatedAt time.Time
}

// PassageHit is a passage found via vector search with its similarity score.
type PassageHit struct {
	Passage Passage
	Score   float32
}

// PassageRepository manages the passages table backing the retrieval service.
type PassageRepository interface {
	// BulkInsert inserts passages in one round trip.
	BulkInsert(ctx context.Context, passages []Passage) error

	// DeleteBySource removes all passages ingested from the given source.
	DeleteBySource(ctx context.Context, source string) error

	// Search returns up to limit passages ordered by similarity to the
	// query vector, best first. Ties break on passage id so the ordering
	// is stable for an unchanged index.
	Search(ctx context.Context, queryVector []float32, limit int) ([]PassageHit, error)

	// Count reports the number of stored passages.
	Count(ctx context.Context) (int64, error)
}

// IndexJob is a queued ingestion request processed by the background worker.
type IndexJob struct {
	ID           uuid.UUID
	JobType      string
	Payload      map[string]interface{}
	Status       string
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IndexJobRepository manages the ingestion job queue.
type IndexJobRepository interface {
	Enqueue(ctx context.Context, job *IndexJob) error

	// AcquireNextJob atomically claims the oldest queued job, marking it
	// processing. Returns nil, nil when the queue is empty.
	AcquireNextJob(ctx context.Context) (*IndexJob, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error
}

// TransactionManager runs a function within a database transaction.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
