package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ingestion/internal/apperrors"
	"ingestion/internal/job"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ingestion:job:"

// Redis stores each record as a JSON string under ingestion:job:{id}.
type Redis struct {
	rdb *redis.Client
}

// OpenRedis connects using a redis:// URL, or a bare host:port address.
func OpenRedis(ctx context.Context, dsn string) (*Redis, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		opts = &redis.Options{Addr: dsn}
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(rdb), nil
}

// NewRedis wraps an existing client.
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (r *Redis) Get(ctx context.Context, id string) (*job.Job, error) {
	raw, err := r.rdb.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NotFound("job", id)
	}
	if err != nil {
		return nil, apperrors.Internal("store.get", err)
	}

	var j job.Job
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, apperrors.Internal("store.get", fmt.Errorf("decode record: %w", err))
	}
	return &j, nil
}

func (r *Redis) Put(ctx context.Context, j *job.Job) error {
	raw, err := json.Marshal(j)
	if err != nil {
		return apperrors.Internal("store.put", err)
	}
	if err := r.rdb.Set(ctx, redisKeyPrefix+j.ID, raw, 0).Err(); err != nil {
		return apperrors.Internal("store.put", err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
