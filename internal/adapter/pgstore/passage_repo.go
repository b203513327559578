package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"selfrag-orchestrator/internal/domain"
)

type passageRepository struct {
	pool *pgxpool.Pool
}

// NewPassageRepository creates a PassageRepository backed by pgvector.
func NewPassageRepository(pool *pgxpool.Pool) domain.PassageRepository {
	return &passageRepository{pool: pool}
}

type dbExecutor interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *passageRepository) getExecutor(ctx context.Context) dbExecutor {
	if tx := ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *passageRepository) BulkInsert(ctx context.Context, passages []domain.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(passages))
	for i, p := range passages {
		rows[i] = []interface{}{
			p.ID,
			p.Source,
			p.Ordinal,
			p.Content,
			p.Embedding,
			p.CreatedAt,
		}
	}

	_, err := r.getExecutor(ctx).CopyFrom(
		ctx,
		pgx.Identifier{"passages"},
		[]string{"id", "source", "ordinal", "content", "embedding", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert passages: %w", err)
	}
	return nil
}

func (r *passageRepository) DeleteBySource(ctx context.Context, source string) error {
	_, err := r.getExecutor(ctx).Exec(ctx, `DELETE FROM passages WHERE source = $1`, source)
	if err != nil {
		return fmt.Errorf("failed to delete passages for source %s: %w", source, err)
	}
	return nil
}

// Search orders hits by cosine distance; the id tiebreak keeps identical
// queries returning identical orderings for an unchanged index.
func (r *passageRepository) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.PassageHit, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT id, source, ordinal, content, created_at,
		       1 - (embedding <=> $1) AS score
		FROM passages
		ORDER BY embedding <=> $1, id
		LIMIT $2
	`
	rows, err := r.getExecutor(ctx).Query(ctx, query, pgvector.NewVector(queryVector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search passages: %w", err)
	}
	defer rows.Close()

	var hits []domain.PassageHit
	for rows.Next() {
		var hit domain.PassageHit
		if err := rows.Scan(
			&hit.Passage.ID,
			&hit.Passage.Source,
			&hit.Passage.Ordinal,
			&hit.Passage.Content,
			&hit.Passage.CreatedAt,
			&hit.Score,
		); err != nil {
			return nil, fmt.Errorf("failed to scan passage hit: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return hits, nil
}

func (r *passageRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.getExecutor(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM passages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count passages: %w", err)
	}
	return count, nil
}
