package source

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"docbridge/internal/compliance/models"
)

// DefaultCacheKey is where RedisCachedSource stores the encoded records.
const DefaultCacheKey = "docbridge:catalog:requirements"

// RedisCachedSource caches another source's records in Redis. Cache errors
// are logged and bypassed; only the inner source can fail a fetch.
type RedisCachedSource struct {
	inner  Source
	client redis.Cmdable
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// CacheOption configures a RedisCachedSource.
type CacheOption func(*RedisCachedSource)

func WithCacheKey(key string) CacheOption {
	return func(s *RedisCachedSource) {
		s.key = key
	}
}

func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(s *RedisCachedSource) {
		s.logger = logger
	}
}

func NewRedisCachedSource(inner Source, client redis.Cmdable, ttl time.Duration, opts ...CacheOption) *RedisCachedSource {
	s := &RedisCachedSource{
		inner:  inner,
		client: client,
		key:    DefaultCacheKey,
		ttl:    ttl,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisCachedSource) Name() string { return "redis(" + s.inner.Name() + ")" }

func (s *RedisCachedSource) Fetch(ctx context.Context) ([]models.JurisdictionRequirement, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	switch {
	case err == nil:
		records, decodeErr := Decode(data, FormatJSON)
		if decodeErr == nil {
			return records, nil
		}
		s.logger.WarnContext(ctx, "discarding corrupt requirements cache entry", "key", s.key, "error", decodeErr)
	case errors.Is(err, redis.Nil):
	default:
		s.logger.WarnContext(ctx, "requirements cache read failed", "key", s.key, "error", err)
	}

	records, err := s.inner.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.store(ctx, records)
	return records, nil
}

// Invalidate drops the cached entry so the next Fetch reads the inner source.
func (s *RedisCachedSource) Invalidate(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

func (s *RedisCachedSource) store(ctx context.Context, records []models.JurisdictionRequirement) {
	data, err := Encode(records)
	if err != nil {
		s.logger.WarnContext(ctx, "requirements cache encode failed", "error", err)
		return
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		s.logger.WarnContext(ctx, "requirements cache write failed", "key", s.key, "error", err)
	}
}
