package scheduler

import (
	"time"

	"github.com/mascanho/seocrawl/internal/storage"
)

// CrawlingExecution is what ExecuteCrawling returns once every worker has
// drained the frontier: the cumulative storage write results across every
// flushed batch, plus the headline counts the CLI prints on exit.
type CrawlingExecution struct {
	WriteResults []storage.WriteResult
	PagesCrawled int
	PagesFailed  int
	Duration     time.Duration
}

// PipelineOutcome is processToken's per-URL verdict: Continue means the
// page was recorded and its links were submitted for admission, Retry
// means a transient error already exhausted the Fetcher's own retry
// budget (recorded as a failure, not retried again at this layer), Abort
// means a fatal, non-retryable error terminated processing for this URL.
type PipelineOutcome struct {
	Continue bool
	Retry    bool
	Abort    bool
}
