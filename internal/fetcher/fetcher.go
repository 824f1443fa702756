package fetcher

import (
	"context"
	"net/http"
	"net/url"

	"github.com/mascanho/seocrawl/pkg/failure"
	"github.com/mascanho/seocrawl/pkg/retry"
)

// Fetcher performs a single bounded-retry HTTP GET. It never follows
// redirects itself; a 3xx response is returned to the caller like any
// other response so a RedirectTracer can decide what to do with it.
type Fetcher interface {
	Init(httpClient *http.Client, userAgent string)
	Fetch(
		ctx context.Context,
		crawlDepth int,
		fetchUrl url.URL,
		retryParam retry.RetryParam,
	) (FetchResult, failure.ClassifiedError)
}
