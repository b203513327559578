package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

const (
	defaultMaxConns = 10
	defaultMinConns = 2
	connLifetime    = 1 * time.Hour
	connIdleTime    = 30 * time.Minute
)

// PoolConfig holds tunable parameters for the PostgreSQL connection pool.
// Zero values fall back to the defaults above.
type PoolConfig struct {
	MaxConns int
	MinConns int
}

// NewPostgresDB opens a connection pool against the passage store. Each
// connection registers the pgvector codec so passage embeddings scan and
// bind as vectors without casts.
func NewPostgresDB(ctx context.Context, dsn string, opts ...PoolConfig) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.MaxConns = defaultMaxConns
	config.MinConns = defaultMinConns
	if len(opts) > 0 && opts[0].MaxConns > 0 {
		config.MaxConns = int32(opts[0].MaxConns)
	}
	if len(opts) > 0 && opts[0].MinConns > 0 {
		config.MinConns = int32(opts[0].MinConns)
	}

	config.MaxConnLifetime = connLifetime
	config.MaxConnIdleTime = connIdleTime

	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return pool, nil
}
