package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"ingestion/internal/apperrors"
	"ingestion/internal/job"
	"time"

	_ "modernc.org/sqlite" // Register sqlite driver
)

//go:embed migrations/001_ingestion_jobs.sql
var sqliteMigration string

// SQLite stores records in a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens dsn and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Each connection to :memory: is a separate database.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteMigration); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, id string) (*job.Job, error) {
	const query = `SELECT id, status, payload, created_at, updated_at
		FROM ingestion_jobs WHERE id = ?`

	var (
		j                      job.Job
		status, payload        string
		createdStr, updatedStr string
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&j.ID, &status, &payload, &createdStr, &updatedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("job", id)
	}
	if err != nil {
		return nil, apperrors.Internal("store.get", err)
	}

	j.Status = job.Status(status)
	j.Payload = []byte(payload)
	if j.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr); err != nil {
		return nil, apperrors.Internal("store.get", fmt.Errorf("parse created_at: %w", err))
	}
	if j.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedStr); err != nil {
		return nil, apperrors.Internal("store.get", fmt.Errorf("parse updated_at: %w", err))
	}
	return &j, nil
}

func (s *SQLite) Put(ctx context.Context, j *job.Job) error {
	const query = `INSERT INTO ingestion_jobs (id, status, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			payload = excluded.payload,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		j.ID, string(j.Status), string(j.Payload),
		j.CreatedAt.UTC().Format(time.RFC3339Nano),
		j.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return apperrors.Internal("store.put", err)
	}
	return nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
