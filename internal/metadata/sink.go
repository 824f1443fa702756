package metadata

import "time"

// MetadataSink is the observational-only event surface every pipeline stage
// writes through. Nothing reachable from a MetadataSink call may feed back
// into scheduling, retry, or termination decisions.
type MetadataSink interface {
	RecordFetch(fetchURL string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int)
	RecordAssetFetch(fetchURL string, httpStatus int, duration time.Duration, retryCount int)
	RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, errorString string, attrs []Attribute)
	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
}

// CrawlFinalizer records the terminal, derived summary of a completed crawl.
// It is invoked exactly once, after the scheduler has stopped admitting work.
type CrawlFinalizer interface {
	RecordFinalCrawlStats(totalPages int, totalErrors int, totalAssets int, duration time.Duration)
}

// NoopSink discards every event. Used by tests and by callers that do not
// need observability (e.g. one-shot CLI reads).
type NoopSink struct{}

func (NoopSink) RecordFetch(string, int, time.Duration, string, int, int) {}
func (NoopSink) RecordAssetFetch(string, int, time.Duration, int)         {}
func (NoopSink) RecordError(time.Time, string, string, ErrorCause, string, []Attribute) {
}
func (NoopSink) RecordArtifact(ArtifactKind, string, []Attribute) {}
func (NoopSink) RecordFinalCrawlStats(int, int, int, time.Duration) {}

var (
	_ MetadataSink    = NoopSink{}
	_ CrawlFinalizer  = NoopSink{}
)
