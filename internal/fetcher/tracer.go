package fetcher

import (
	"context"
	"net/url"
	"time"

	"github.com/mascanho/seocrawl/pkg/failure"
	"github.com/mascanho/seocrawl/pkg/retry"
)

// MaxRedirectHops bounds how many hops a RedirectTracer will follow
// before giving up and returning whatever it last saw.
const MaxRedirectHops = 10

// RedirectTracer wraps a Fetcher and follows 3xx responses itself, since
// the wrapped Fetcher's http.Client is configured to never do so. It
// stops on a non-redirect response, a missing Location header, a
// previously-seen target (a loop), or the hop cap, whichever comes
// first.
type RedirectTracer struct {
	fetcher Fetcher
}

func NewRedirectTracer(f Fetcher) RedirectTracer {
	return RedirectTracer{fetcher: f}
}

func (t *RedirectTracer) Trace(
	ctx context.Context,
	crawlDepth int,
	startURL url.URL,
	retryParam retry.RetryParam,
) (TraceResult, failure.ClassifiedError) {
	start := time.Now()
	current := startURL
	seen := map[string]bool{current.String(): true}

	var hops []RedirectHop
	var redirectType int
	var lastResult FetchResult

	for i := 0; i < MaxRedirectHops; i++ {
		result, err := t.fetcher.Fetch(ctx, crawlDepth, current, retryParam)
		if err != nil {
			return TraceResult{
				Hops:          hops,
				RedirectCount: len(hops),
				HadRedirect:   len(hops) > 0,
				RedirectType:  redirectType,
				Elapsed:       time.Since(start),
			}, err
		}
		lastResult = result
		hops = append(hops, RedirectHop{URL: current.String(), StatusCode: result.Code()})

		if result.Code() < 300 || result.Code() >= 400 {
			return t.finish(lastResult, hops, redirectType, false, start), nil
		}
		if redirectType == 0 {
			redirectType = result.Code()
		}

		location := result.Headers()["Location"]
		if location == "" {
			return t.finish(lastResult, hops, redirectType, false, start), nil
		}

		relURL, perr := url.Parse(location)
		if perr != nil {
			return t.finish(lastResult, hops, redirectType, false, start), nil
		}
		target := current.ResolveReference(relURL)

		if seen[target.String()] {
			return t.finish(lastResult, hops, redirectType, true, start), nil
		}
		seen[target.String()] = true
		current = *target
	}

	return t.finish(lastResult, hops, redirectType, false, start), nil
}

func (t *RedirectTracer) finish(final FetchResult, hops []RedirectHop, redirectType int, loop bool, start time.Time) TraceResult {
	return TraceResult{
		Final:         final,
		Hops:          hops,
		RedirectCount: len(hops) - 1,
		HadRedirect:   len(hops) > 1,
		RedirectType:  redirectType,
		LoopDetected:  loop,
		Elapsed:       time.Since(start),
	}
}
