package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hibrida/pricing-engine/internal/model"
)

const redisSnapshotKey = "hibrida:snapshot"

// RedisStore implements Store with the snapshot held in a single Redis key.
// Suitable as the sole store for demo deployments; pair it with Postgres
// via CachedStore when durability matters.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Load(ctx context.Context) (*model.Snapshot, error) {
	data, err := s.rdb.Get(ctx, redisSnapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *RedisStore) Save(ctx context.Context, snap *model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, redisSnapshotKey, data, 0).Err()
}

// CachedStore wraps a primary Store (PostgreSQL) with a Redis copy. Saves
// write through to both; Load prefers Redis and falls back to the primary,
// re-populating the cache on a miss.
type CachedStore struct {
	primary Store
	cache   *RedisStore
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		cache:   NewRedisStore(rdb),
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (s *CachedStore) Load(ctx context.Context) (*model.Snapshot, error) {
	if snap, err := s.cache.Load(ctx); err == nil {
		return snap, nil
	}

	snap, err := s.primary.Load(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(snap); err == nil {
		s.rdb.Set(ctx, redisSnapshotKey, data, s.ttl)
	}
	return snap, nil
}

func (s *CachedStore) Save(ctx context.Context, snap *model.Snapshot) error {
	if err := s.primary.Save(ctx, snap); err != nil {
		return err
	}
	if data, err := json.Marshal(snap); err == nil {
		s.rdb.Set(ctx, redisSnapshotKey, data, s.ttl)
	}
	return nil
}
