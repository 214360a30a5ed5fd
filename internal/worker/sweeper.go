package worker

import (
	"context"
	"time"

	"github.com/Domenick1991/travelbooking/internal/logger"
)

// CacheMaintainer is the search cache housekeeping the worker drives.
type CacheMaintainer interface {
	Sweep(ctx context.Context) int64
	Purge(ctx context.Context, retention time.Duration) int64
}

// RunSweeps marks expired search cache entries inactive every interval and
// deletes inactive ones older than retention. It blocks until ctx is done.
func RunSweeps(ctx context.Context, cache CacheMaintainer, interval, retention time.Duration) {
	log := logger.GetLogger("worker")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if swept := cache.Sweep(ctx); swept > 0 {
				log.Infow("search cache swept", "deactivated", swept)
			}
			if purged := cache.Purge(ctx, retention); purged > 0 {
				log.Infow("search cache purged", "deleted", purged)
			}
		case <-ctx.Done():
			return
		}
	}
}
