package extractor

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/mascanho/seocrawl/internal/crawl"
	"golang.org/x/sync/semaphore"
)

// LinkStatusCheckConcurrency bounds how many discovered-link HEAD checks run
// at once, independent of and much tighter than the crawl's own fetch
// concurrency — these are side requests to whatever hosts the page happened
// to link to, not the crawl target itself.
const LinkStatusCheckConcurrency = 50

// LinkStatusCheckTimeout bounds a single HEAD request.
const LinkStatusCheckTimeout = 10 * time.Second

// LinkStatusChecker fills in LinkRef.StatusCode for a page's discovered
// links, run as a network-dependent follow-up after the synchronous
// extraction fan-out has released the parsed DOM.
type LinkStatusChecker struct {
	httpClient *http.Client
	userAgent  string
	sem        *semaphore.Weighted
}

func NewLinkStatusChecker(httpClient *http.Client, userAgent string) LinkStatusChecker {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return LinkStatusChecker{
		httpClient: httpClient,
		userAgent:  userAgent,
		sem:        semaphore.NewWeighted(LinkStatusCheckConcurrency),
	}
}

// CheckAll mutates links in place, setting StatusCode on each entry it
// could reach. A link that errors (timeout, DNS failure, connection
// refused) is left at its zero StatusCode — this is advisory status
// reporting, not a fetch the crawl depends on, so individual failures
// never abort the batch.
func (c *LinkStatusChecker) CheckAll(ctx context.Context, links []crawl.LinkRef) {
	var wg sync.WaitGroup
	for i := range links {
		i := i
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer c.sem.Release(1)
			links[i].StatusCode = c.checkOne(ctx, links[i].URL)
		}()
	}
	wg.Wait()
}

func (c *LinkStatusChecker) checkOne(ctx context.Context, link string) int {
	reqCtx, cancel := context.WithTimeout(ctx, LinkStatusCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, link, nil)
	if err != nil {
		return 0
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	return resp.StatusCode
}
