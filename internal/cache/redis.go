package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/af-corp/pulseboard/internal/types"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "pulse:cache:"

// RedisStore is a Redis-backed Store so degraded responses survive process
// restarts. Entries get no Redis expiration: staleness is the reader's
// judgement and only Invalidate removes data. Redis errors degrade to a
// cache miss rather than failing the request.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key Key) (*Entry, bool) {
	if s.rdb == nil {
		return nil, false
	}
	data, err := s.rdb.Get(ctx, redisKeyPrefix+key.String()).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("cache get failed", "error", err, "provider", key.Provider, "endpoint", key.Endpoint)
		}
		return nil, false
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		slog.Warn("cache entry corrupt, dropping", "error", err, "provider", key.Provider)
		s.rdb.Del(ctx, redisKeyPrefix+key.String())
		return nil, false
	}
	return &e, true
}

func (s *RedisStore) Set(ctx context.Context, key Key, items []types.UnifiedItem) {
	if s.rdb == nil {
		return
	}
	e := Entry{
		Items:    items,
		StoredAt: time.Now(),
		TTL:      s.ttl,
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, redisKeyPrefix+key.String(), data, 0).Err(); err != nil {
		slog.Warn("cache set failed", "error", err, "provider", key.Provider, "endpoint", key.Endpoint)
	}
}

func (s *RedisStore) Invalidate(ctx context.Context, key Key) {
	if s.rdb == nil {
		return
	}
	s.rdb.Del(ctx, redisKeyPrefix+key.String())
}
