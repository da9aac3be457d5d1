package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheInvalidation is an eviction that failed and is handed to the retry queue.
type CacheInvalidation struct {
	Keys    []string
	Pattern string
}

type invalidationQueue interface {
	Enqueue(payload CacheInvalidation) error
}

// CacheService orchestrates cache operations and related metrics.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
	retries    invalidationQueue
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Second
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrCacheMiss) {
			if s.metrics != nil {
				s.metrics.RecordCacheOperation(false, duration)
			}
			return false, nil
		}
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(false, duration)
		}
		if s.logger != nil {
			s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false, err
	}
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(true, duration)
	}
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	if s.metrics != nil {
		s.metrics.ObserveCacheWrite(time.Since(start))
	}
	if err != nil && s.logger != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Delete removes specific cached keys.
func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	if !s.Enabled() || len(keys) == 0 {
		return nil
	}
	if err := s.repo.Delete(ctx, keys...); err != nil {
		if s.logger != nil {
			s.logger.Warn("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
		}
		s.deferInvalidation(CacheInvalidation{Keys: keys})
		return err
	}
	return nil
}

// Invalidate removes cached values for the provided pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		if s.logger != nil {
			s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		}
		s.deferInvalidation(CacheInvalidation{Pattern: pattern})
		return err
	}
	return nil
}

// UseRetryQueue routes failed evictions to q for background retries.
func (s *CacheService) UseRetryQueue(q invalidationQueue) {
	if s != nil {
		s.retries = q
	}
}

// RetryInvalidation is the retry queue handler. It bypasses deferInvalidation
// since the queue owns the retry count.
func (s *CacheService) RetryInvalidation(ctx context.Context, job jobs.Job[CacheInvalidation]) error {
	if !s.Enabled() {
		return nil
	}
	if len(job.Payload.Keys) > 0 {
		if err := s.repo.Delete(ctx, job.Payload.Keys...); err != nil {
			return err
		}
	}
	if job.Payload.Pattern != "" {
		return s.repo.DeleteByPattern(ctx, job.Payload.Pattern)
	}
	return nil
}

// AbandonInvalidation is the give-up hook of the retry queue. Stale entries
// survive until their TTL lapses.
func (s *CacheService) AbandonInvalidation(job jobs.Job[CacheInvalidation], err error) {
	s.metrics.RecordAbandonedInvalidation()
	if s.logger != nil {
		s.logger.Error("cache invalidation abandoned",
			zap.String("job_id", job.ID),
			zap.Int("attempts", job.Attempt),
			zap.Strings("keys", job.Payload.Keys),
			zap.String("pattern", job.Payload.Pattern),
			zap.Duration("ttl", s.defaultTTL),
			zap.Error(err),
		)
	}
}

func (s *CacheService) deferInvalidation(inv CacheInvalidation) {
	if s.retries == nil {
		return
	}
	if err := s.retries.Enqueue(inv); err != nil && s.logger != nil {
		s.logger.Error("cache invalidation dropped", zap.Strings("keys", inv.Keys), zap.String("pattern", inv.Pattern), zap.Error(err))
	}
}
