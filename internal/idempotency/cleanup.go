package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/onnwee/aria/internal/jobs"
)

// DefaultExpiry is how long a stored response is replayed.
const DefaultExpiry = 24 * time.Hour

// CleanupOldKeys removes records older than expiry. metrics may be nil.
func CleanupOldKeys(ctx context.Context, repo Repository, expiry time.Duration, metrics *jobs.Metrics) (int64, error) {
	start := time.Now()
	deleted, err := repo.DeleteOlderThan(ctx, expiry)
	metrics.Record(jobs.JobTypeIdempotencyCleanup, time.Since(start).Seconds(), err, "repository_error")
	if err != nil {
		slog.ErrorContext(ctx, "failed to cleanup old idempotency keys", "error", err)
		return 0, err
	}

	if deleted > 0 {
		slog.InfoContext(ctx, "cleaned up old idempotency keys", "deleted", deleted, "older_than", expiry)
	}
	return deleted, nil
}

// RunPeriodicCleanup runs CleanupOldKeys every interval until ctx is done.
//
//	go idempotency.RunPeriodicCleanup(ctx, repo, time.Hour, idempotency.DefaultExpiry, metrics)
func RunPeriodicCleanup(ctx context.Context, repo Repository, interval, expiry time.Duration, metrics *jobs.Metrics) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := CleanupOldKeys(ctx, repo, expiry, metrics); err != nil {
		slog.ErrorContext(ctx, "initial cleanup failed", "error", err)
	}

	for {
		select {
		case <-ticker.C:
			if _, err := CleanupOldKeys(ctx, repo, expiry, metrics); err != nil {
				slog.ErrorContext(ctx, "periodic cleanup failed", "error", err)
			}
		case <-ctx.Done():
			slog.Info("stopping periodic cleanup")
			return
		}
	}
}
