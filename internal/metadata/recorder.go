package metadata

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content hashes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

// Recorder is the default MetadataSink/CrawlFinalizer. It writes structured
// log lines through zap and keeps a small set of mutex-guarded counters,
// since many crawl workers may hold the same Recorder concurrently.
type Recorder struct {
	workerID string
	logger   *zap.Logger

	mu           sync.Mutex
	fetchCount   int
	assetCount   int
	errorCount   int
	artifactSeen map[ArtifactKind]int
}

// NewRecorder builds a Recorder identified by workerID, surfaced on every
// log line so interleaved worker output stays attributable. Falls back to
// a no-op logger if the production logger cannot be constructed: metadata
// emission must never be able to fail a crawl.
func NewRecorder(workerID string) Recorder {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	return Recorder{
		workerID:     workerID,
		logger:       logger.With(zap.String("worker", workerID)),
		artifactSeen: make(map[ArtifactKind]int),
	}
}

func (r *Recorder) RecordFetch(
	fetchURL string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	retryCount int,
	crawlDepth int,
) {
	r.mu.Lock()
	r.fetchCount++
	r.mu.Unlock()

	r.logger.Info("fetch",
		zap.String("url", fetchURL),
		zap.Int("status", httpStatus),
		zap.Duration("duration", duration),
		zap.String("content_type", contentType),
		zap.Int("retry_count", retryCount),
		zap.Int("depth", crawlDepth),
	)
}

func (r *Recorder) RecordAssetFetch(
	fetchURL string,
	httpStatus int,
	duration time.Duration,
	retryCount int,
) {
	r.mu.Lock()
	r.assetCount++
	r.mu.Unlock()

	r.logger.Info("asset_fetch",
		zap.String("url", fetchURL),
		zap.Int("status", httpStatus),
		zap.Duration("duration", duration),
		zap.Int("retry_count", retryCount),
	)
}

func (r *Recorder) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	errorString string,
	attrs []Attribute,
) {
	r.mu.Lock()
	r.errorCount++
	r.mu.Unlock()

	fields := make([]zap.Field, 0, len(attrs)+4)
	fields = append(fields,
		zap.Time("observed_at", observedAt),
		zap.String("package", packageName),
		zap.String("action", action),
		zap.String("cause", cause.String()),
	)
	for _, attr := range attrs {
		fields = append(fields, zap.String(string(attr.Key), attr.Value))
	}

	r.logger.Warn(errorString, fields...)
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	r.mu.Lock()
	r.artifactSeen[kind]++
	r.mu.Unlock()

	fields := make([]zap.Field, 0, len(attrs)+2)
	fields = append(fields,
		zap.String("kind", string(kind)),
		zap.String("path", path),
	)
	for _, attr := range attrs {
		fields = append(fields, zap.String(string(attr.Key), attr.Value))
	}

	r.logger.Info("artifact", fields...)
}

// RecordFinalCrawlStats is invoked exactly once by the scheduler after crawl
// termination. The counts it logs come from the caller, which derives them
// independently; the Recorder does not read back its own event history to
// produce them.
func (r *Recorder) RecordFinalCrawlStats(totalPages int, totalErrors int, totalAssets int, duration time.Duration) {
	r.logger.Info("crawl_finished",
		zap.Int("total_pages", totalPages),
		zap.Int("total_errors", totalErrors),
		zap.Int("total_assets", totalAssets),
		zap.Duration("duration", duration),
	)
	_ = r.logger.Sync()
}

var (
	_ MetadataSink   = (*Recorder)(nil)
	_ CrawlFinalizer = (*Recorder)(nil)
)
