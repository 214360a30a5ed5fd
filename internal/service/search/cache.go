package search

import (
	"context"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/logger"
	"github.com/Domenick1991/travelbooking/internal/metrics"
	"github.com/Domenick1991/travelbooking/internal/repository"
)

const DefaultCacheTTL = 30 * time.Minute

// Cache is the search result cache. None of its operations fail: a store
// error is logged and treated as a miss, so callers fall back to the provider.
type Cache struct {
	repo repository.SearchCacheRepository
	ttl  time.Duration
	now  func() time.Time
}

func NewCache(repo repository.SearchCacheRepository, ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{repo: repo, ttl: ttl, now: now}
}

// Put stores a fresh entry for searchID. It returns nil when the store failed.
func (c *Cache) Put(ctx context.Context, searchID string, params domain.SearchParams, results []domain.FlightOffer) *domain.SearchResultCacheEntry {
	now := c.now()
	entry := &domain.SearchResultCacheEntry{
		SearchID:  searchID,
		Params:    params,
		Results:   results,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
		Active:    true,
	}
	if err := c.repo.Put(ctx, entry); err != nil {
		logger.GetLogger("search.cache").Warnw("cache put failed", "search_id", searchID, "error", err)
		return nil
	}
	return entry
}

// Get returns the newest valid entry for searchID.
func (c *Cache) Get(ctx context.Context, searchID string) (*domain.SearchResultCacheEntry, bool) {
	now := c.now()
	entry, err := c.repo.Latest(ctx, searchID, now)
	if err != nil {
		if !domain.IsNotFound(err) {
			logger.GetLogger("search.cache").Warnw("cache get failed", "search_id", searchID, "error", err)
		}
		metrics.SearchCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	if !entry.Valid(now) {
		metrics.SearchCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.SearchCacheLookups.WithLabelValues("hit").Inc()
	return entry, true
}

// Sweep marks every expired entry inactive and returns how many were touched.
func (c *Cache) Sweep(ctx context.Context) int64 {
	n, err := c.repo.Sweep(ctx, c.now())
	if err != nil {
		logger.GetLogger("search.cache").Warnw("cache sweep failed", "error", err)
		return 0
	}
	metrics.SearchCacheSwept.Add(float64(n))
	return n
}

// Purge removes inactive entries older than retention.
func (c *Cache) Purge(ctx context.Context, retention time.Duration) int64 {
	n, err := c.repo.Purge(ctx, c.now().Add(-retention))
	if err != nil {
		logger.GetLogger("search.cache").Warnw("cache purge failed", "error", err)
		return 0
	}
	return n
}
