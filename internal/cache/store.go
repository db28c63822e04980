package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"reviewfeed/internal/middleware"
	"reviewfeed/internal/observability"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Lookup outcomes reported to metrics.
const (
	outcomeLocal = "hit_local"
	outcomeRedis = "hit_redis"
	outcomeMiss  = "miss"
)

// Store is a get-or-compute cache of JSON snapshots. Reads try the in-process
// layer, then Redis; a miss runs the compute function and writes both layers.
// Cache failures never fail the caller. Concurrent misses on one key each
// recompute; there is no single-flight.
type Store struct {
	redis    *redis.Client
	local    *gocache.Cache
	localTTL time.Duration
	logger   *slog.Logger
}

// NewStore creates a Store. rdb may be nil, leaving only the in-process layer.
// A non-positive localTTL disables the in-process layer.
func NewStore(rdb *redis.Client, localTTL time.Duration) *Store {
	return &Store{
		redis:    rdb,
		local:    gocache.New(localTTL, 2*localTTL+time.Minute),
		localTTL: localTTL,
		logger:   middleware.Logger,
	}
}

// Aside fills dest from the cache or, on a miss, by calling compute, which must
// write into dest. The computed value is stored for ttl. Errors from compute
// are returned unchanged and nothing is cached.
func (s *Store) Aside(ctx context.Context, key string, dest any, ttl time.Duration, compute func(ctx context.Context) error) error {
	view := viewOf(key)

	if raw, ok := s.getLocal(key); ok {
		if err := json.Unmarshal(raw, dest); err == nil {
			observability.CacheLookups.WithLabelValues(view, outcomeLocal).Inc()
			return nil
		}
		s.local.Delete(key)
		s.fail(ctx, view, "decode_local", key, errors.New("undecodable local entry"))
	}

	if raw, left, ok := s.getRedis(ctx, key, view); ok {
		err := json.Unmarshal(raw, dest)
		if err == nil {
			observability.CacheLookups.WithLabelValues(view, outcomeRedis).Inc()
			s.setLocal(key, raw, left)
			return nil
		}
		s.fail(ctx, view, "decode_redis", key, err)
	}

	observability.CacheLookups.WithLabelValues(view, outcomeMiss).Inc()
	start := time.Now()
	if err := compute(ctx); err != nil {
		return err
	}
	observability.FeedComputeSeconds.WithLabelValues(view).Observe(time.Since(start).Seconds())

	raw, err := json.Marshal(dest)
	if err != nil {
		s.fail(ctx, view, "encode", key, err)
		return nil
	}
	s.setLocal(key, raw, ttl)
	if s.redis != nil {
		if err := s.redis.Set(ctx, key, raw, ttl).Err(); err != nil {
			s.fail(ctx, view, "write_redis", key, err)
		}
	}
	return nil
}

// Cached reports whether key currently has an entry in either layer.
func (s *Store) Cached(ctx context.Context, key string) bool {
	if _, ok := s.getLocal(key); ok {
		return true
	}
	if s.redis == nil {
		return false
	}
	n, err := s.redis.Exists(ctx, key).Result()
	return err == nil && n > 0
}

// Invalidate removes keys from both layers.
func (s *Store) Invalidate(ctx context.Context, keys ...string) {
	for _, key := range keys {
		s.local.Delete(key)
	}
	if s.redis == nil || len(keys) == 0 {
		return
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		s.fail(ctx, viewOf(keys[0]), "invalidate", keys[0], err)
	}
}

func (s *Store) getLocal(key string) ([]byte, bool) {
	if s.localTTL <= 0 {
		return nil, false
	}
	v, ok := s.local.Get(key)
	if !ok {
		return nil, false
	}
	raw, ok := v.([]byte)
	return raw, ok
}

func (s *Store) setLocal(key string, raw []byte, ttl time.Duration) {
	if s.localTTL <= 0 || ttl <= 0 {
		return
	}
	s.local.Set(key, raw, min(s.localTTL, ttl))
}

// getRedis reads key together with the time Redis still keeps it. A local
// copy must not outlive the shared entry.
func (s *Store) getRedis(ctx context.Context, key, view string) ([]byte, time.Duration, bool) {
	if s.redis == nil {
		return nil, 0, false
	}
	pipe := s.redis.Pipeline()
	get := pipe.Get(ctx, key)
	pttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		if !errors.Is(err, redis.Nil) {
			s.fail(ctx, view, "read_redis", key, err)
		}
		return nil, 0, false
	}
	raw, err := get.Bytes()
	if err != nil {
		return nil, 0, false
	}
	// PTTL is negative for keys without expiry; those stay out of the local layer.
	return raw, max(pttl.Val(), 0), true
}

func (s *Store) fail(ctx context.Context, view, stage, key string, err error) {
	observability.CacheFailures.WithLabelValues(view, stage).Inc()
	s.logger.WarnContext(ctx, "cache failure, falling back",
		slog.String("stage", stage),
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
}
