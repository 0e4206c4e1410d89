package store

import (
	"context"
	"errors"
	"fmt"
	"ingestion/internal/apperrors"
	"ingestion/internal/job"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// payload is json rather than jsonb so the caller's bytes round-trip unchanged.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS ingestion_jobs (
    id         TEXT PRIMARY KEY,
    status     TEXT NOT NULL,
    payload    JSON NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
`

// Postgres stores records in PostgreSQL through a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return NewPostgres(pool), nil
}

// NewPostgres wraps an existing pool. The schema must already exist.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Get(ctx context.Context, id string) (*job.Job, error) {
	const q = `
SELECT id, status, payload, created_at, updated_at
FROM ingestion_jobs
WHERE id = $1;
`
	var (
		j       job.Job
		status  string
		payload []byte
	)
	if err := p.pool.QueryRow(ctx, q, id).Scan(&j.ID, &status, &payload, &j.CreatedAt, &j.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("job", id)
		}
		return nil, apperrors.Internal("store.get", err)
	}

	j.Status = job.Status(status)
	j.Payload = payload
	j.CreatedAt = j.CreatedAt.UTC()
	j.UpdatedAt = j.UpdatedAt.UTC()
	return &j, nil
}

func (p *Postgres) Put(ctx context.Context, j *job.Job) error {
	const q = `
INSERT INTO ingestion_jobs (id, status, payload, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    payload = EXCLUDED.payload,
    updated_at = EXCLUDED.updated_at;
`
	if _, err := p.pool.Exec(ctx, q, j.ID, string(j.Status), string(j.Payload), j.CreatedAt, j.UpdatedAt); err != nil {
		return apperrors.Internal("store.put", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
