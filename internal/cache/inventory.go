package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"socialfeed/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	PostKeyPrefix = "post:%s"
	RateKeyPrefix = "ratelimit:%s:%s"
)

const (
	PostTTL = 5 * time.Minute
	// TombstoneTTL bounds how long a deleted post is remembered as gone.
	TombstoneTTL = 30 * time.Second
)

func PostKey(postID string) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func RateKey(scope, subject string) string {
	return fmt.Sprintf(RateKeyPrefix, scope, subject)
}

// Store wraps an optional Redis client. A Store with a nil client is a no-op
// cache: every lookup misses and every write is dropped.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore returns a Store writing entries with the given TTL. Pass a nil
// client to disable caching.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = PostTTL
	}
	return &Store{client: client, ttl: ttl}
}

// Client exposes the underlying Redis client, which may be nil.
func (s *Store) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// Enabled reports whether a Redis client is attached.
func (s *Store) Enabled() bool {
	return s != nil && s.client != nil
}

// GetJSON decodes the value at key into dest. It reports false on a miss, a
// Redis failure, or an undecodable entry; corrupt entries are removed.
func (s *Store) GetJSON(ctx context.Context, key string, dest any) bool {
	if !s.Enabled() {
		return false
	}
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			observability.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		observability.Logger.WarnContext(ctx, "cache entry undecodable", slog.String("key", key), slog.String("error", err.Error()))
		s.Invalidate(ctx, key)
		return false
	}
	return true
}

// SetJSON stores value at key with the store TTL, replacing any entry. A
// failed write removes the key so a superseded entry cannot outlive it.
func (s *Store) SetJSON(ctx context.Context, key string, value any) {
	if !s.Enabled() {
		return
	}
	s.SetJSONWithTTL(ctx, key, value, s.ttl)
}

// SetJSONWithTTL is SetJSON with an explicit expiry.
func (s *Store) SetJSONWithTTL(ctx context.Context, key string, value any, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		observability.Logger.WarnContext(ctx, "cache encode failed", slog.String("key", key), slog.String("error", err.Error()))
		s.Invalidate(ctx, key)
		return
	}
	if err := s.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		observability.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
		s.Invalidate(ctx, key)
	}
}

// FillJSON stores value at key only when the key is absent. It reports
// whether the entry was written. Read paths use it so a value loaded before a
// concurrent write cannot replace the entry that write left behind.
func (s *Store) FillJSON(ctx context.Context, key string, value any) bool {
	if !s.Enabled() {
		return false
	}
	raw, err := json.Marshal(value)
	if err != nil {
		observability.Logger.WarnContext(ctx, "cache encode failed", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	ok, err := s.client.SetNX(ctx, key, raw, s.ttl).Result()
	if err != nil {
		observability.Logger.WarnContext(ctx, "cache fill failed", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return ok
}

func (s *Store) Invalidate(ctx context.Context, key string) {
	if !s.Enabled() {
		return
	}
	s.client.Del(ctx, key)
}

// Aside returns the cached value at key when present; otherwise it calls load
// and fills the key if nothing was written there meanwhile. Load errors are
// returned unchanged and never cached.
func Aside[T any](ctx context.Context, s *Store, key string, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if s.GetJSON(ctx, key, &cached) {
		return cached, nil
	}
	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	s.FillJSON(ctx, key, value)
	return value, nil
}
