package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/onnwee/aria/internal/archive"
	"github.com/onnwee/aria/internal/jobs"
)

const archiveTimeout = 30 * time.Second

// archiveWriter copies uploads and generated reports to the object archive.
// Failures are logged and counted but never fail the request.
type archiveWriter struct {
	archiver archive.Archiver
	metrics  *jobs.Metrics
}

func (a archiveWriter) put(ctx context.Context, jobType, key, contentType string, body []byte) {
	if a.archiver == nil || !a.archiver.Enabled() {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	start := time.Now()
	err := a.archiver.Put(ctx, key, contentType, body)
	a.metrics.Record(jobType, time.Since(start).Seconds(), err, "s3_error")
	if err != nil {
		slog.WarnContext(ctx, "failed to archive object", "key", key, "error", err)
		return
	}
	slog.DebugContext(ctx, "archived object", "key", key, "bytes", len(body))
}
