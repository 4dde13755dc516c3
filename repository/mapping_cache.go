package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"civicroute/metrics"
	"civicroute/models"
)

// MappingFinder is the read surface the cache decorates.
type MappingFinder interface {
	FindByCategoryAndCity(ctx context.Context, category, city string) (*models.DepartmentMapping, error)
	FindByCategory(ctx context.Context, category string) (*models.DepartmentMapping, error)
}

// cachedMapping wraps a lookup result so not-found answers can be cached too.
type cachedMapping struct {
	Found   bool                      `json:"found"`
	Mapping *models.DepartmentMapping `json:"mapping,omitempty"`
}

// CachedMappingStore layers Redis in front of a MappingFinder. Cache failures
// never fail a lookup; they fall through to the inner store.
type CachedMappingStore struct {
	inner  MappingFinder
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCachedMappingStore(inner MappingFinder, client *redis.Client, ttl time.Duration, logger zerolog.Logger) *CachedMappingStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedMappingStore{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (s *CachedMappingStore) FindByCategoryAndCity(ctx context.Context, category, city string) (*models.DepartmentMapping, error) {
	key := mappingKey(category, city)
	if m, ok := s.lookup(ctx, key); ok {
		return s.unwrap(m)
	}
	m, err := s.inner.FindByCategoryAndCity(ctx, category, city)
	s.store(ctx, key, m, err)
	return m, err
}

func (s *CachedMappingStore) FindByCategory(ctx context.Context, category string) (*models.DepartmentMapping, error) {
	key := mappingKey(category, "")
	if m, ok := s.lookup(ctx, key); ok {
		return s.unwrap(m)
	}
	m, err := s.inner.FindByCategory(ctx, category)
	s.store(ctx, key, m, err)
	return m, err
}

// Invalidate drops the cached entries a mapping write may have changed. The
// category-only key is always dropped because the lowest-ID row for the
// category can shift.
func (s *CachedMappingStore) Invalidate(ctx context.Context, category, city string) {
	if s.client == nil {
		return
	}
	keys := []string{mappingKey(category, "")}
	if city != "" {
		keys = append(keys, mappingKey(category, city))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn().Err(err).Str("category", category).Msg("[cache] invalidate failed")
	}
}

// Flush removes every cached mapping entry.
func (s *CachedMappingStore) Flush(ctx context.Context) {
	if s.client == nil {
		return
	}
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, "mapping:*", 100).Result()
		if err != nil {
			s.logger.Warn().Err(err).Msg("[cache] flush scan failed")
			return
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("[cache] flush delete failed")
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

func (s *CachedMappingStore) lookup(ctx context.Context, key string) (cachedMapping, bool) {
	if s.client == nil {
		return cachedMapping{}, false
	}
	raw, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			metrics.MappingCache.WithLabelValues("error").Inc()
			s.logger.Warn().Err(err).Str("key", key).Msg("[cache] get failed")
		} else {
			metrics.MappingCache.WithLabelValues("miss").Inc()
		}
		return cachedMapping{}, false
	}
	var entry cachedMapping
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		metrics.MappingCache.WithLabelValues("error").Inc()
		return cachedMapping{}, false
	}
	metrics.MappingCache.WithLabelValues("hit").Inc()
	return entry, true
}

func (s *CachedMappingStore) unwrap(entry cachedMapping) (*models.DepartmentMapping, error) {
	if !entry.Found || entry.Mapping == nil {
		return nil, ErrNotFound
	}
	return entry.Mapping, nil
}

func (s *CachedMappingStore) store(ctx context.Context, key string, m *models.DepartmentMapping, lookupErr error) {
	if s.client == nil {
		return
	}
	entry := cachedMapping{Found: m != nil, Mapping: m}
	ttl := s.ttl
	switch {
	case lookupErr == nil:
	case errors.Is(lookupErr, ErrNotFound):
		// Negative entries stay short-lived so new mappings take effect quickly.
		if ttl > 30*time.Second {
			ttl = 30 * time.Second
		}
	default:
		return
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("[cache] set failed")
	}
}

func mappingKey(category, city string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	city = strings.ToLower(strings.TrimSpace(city))
	if city == "" {
		return "mapping:" + category
	}
	return "mapping:" + category + ":" + city
}
