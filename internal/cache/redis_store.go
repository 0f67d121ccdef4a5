package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"kestrel/internal/domain"
)

const (
	redisEntryPrefix = "kestrel:cache:"
	redisIndexKey    = "kestrel:cache:index"
)

// RedisStore mirrors cache entries into redis so multiple engine instances
// can share lookups.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) LoadAll(ctx context.Context) ([]domain.CacheEntry, error) {
	keys, err := s.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis cache index: %w", err)
	}

	entries := make([]domain.CacheEntry, 0, len(keys))
	var stale []string

	for _, key := range keys {
		raw, err := s.client.Get(ctx, redisEntryPrefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			stale = append(stale, key)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis cache entry %q: %w", key, err)
		}

		var entry domain.CacheEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			// Corrupt payloads behave like a miss; drop them from the index.
			log.Warn("Dropping corrupt redis cache entry", "key", key, "error", err)
			stale = append(stale, key)
			continue
		}
		entries = append(entries, entry)
	}

	if len(stale) > 0 {
		if err := s.client.SRem(ctx, redisIndexKey, toAny(stale)...).Err(); err != nil {
			log.Warn("Failed to prune redis cache index", "error", err)
		}
	}

	return entries, nil
}

func (s *RedisStore) Upsert(ctx context.Context, entry domain.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisEntryPrefix+entry.Key, raw, 0)
	pipe.SAdd(ctx, redisIndexKey, entry.Key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis cache upsert: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = redisEntryPrefix + key
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, prefixed...)
	pipe.SRem(ctx, redisIndexKey, toAny(keys)...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis cache delete: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	keys, err := s.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return fmt.Errorf("redis cache index: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, key := range keys {
		pipe.Del(ctx, redisEntryPrefix+key)
	}
	pipe.Del(ctx, redisIndexKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis cache clear: %w", err)
	}
	return nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
