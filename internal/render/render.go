// Package render implements the optional JS Renderer second-stage fetch:
// a headless-browser re-fetch of a page already retrieved statically, for
// sites whose content only appears after client-side hydration.
package render

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/mascanho/seocrawl/internal/metadata"
	"github.com/mascanho/seocrawl/pkg/failure"
	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency bounds how many headless instances run at once when
// NewRenderer is given no positive value — independent of, and much
// tighter than, the Scheduler's main fetch concurrency.
const DefaultConcurrency = 2

// SettlePeriod is the fixed wait after navigation-complete, giving
// client-side hydration and XHRs time to settle before the DOM is read.
const SettlePeriod = 3 * time.Second

// NavigationTimeout bounds a single render, separate from the Scheduler's
// 30s static per-page timeout since a renderer call is allowed to run
// longer.
const NavigationTimeout = 45 * time.Second

// Renderer runs a headless Chrome instance per Render call, gated by a
// semaphore so at most the configured concurrency of browsers run simultaneously. Each call
// dispatches its blocking chromedp work onto its own goroutine so it never
// stalls a caller's async runtime.
type Renderer struct {
	sem          *semaphore.Weighted
	metadataSink metadata.MetadataSink
	allocOpts    []chromedp.ExecAllocatorOption
}

func NewRenderer(concurrency int, metadataSink metadata.MetadataSink) Renderer {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return Renderer{
		sem:          semaphore.NewWeighted(int64(concurrency)),
		metadataSink: metadataSink,
		allocOpts: append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
		),
	}
}

// RenderError is non-fatal to the pipeline: the caller always has the
// static body to fall back to, so render failures are recorded and
// returned as a Severity that callers can downgrade to a log line.
type RenderError struct {
	URL     string
	Message string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %s", e.URL, e.Message)
}

func (e *RenderError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

var _ failure.ClassifiedError = (*RenderError)(nil)

// Render navigates to pageURL in a fresh headless tab, waits for the
// settling period, and returns the serialized post-render document. It
// blocks until a concurrency permit is free, then dispatches the actual
// chromedp work on a dedicated goroutine to keep the browser's blocking
// CDP round-trips off the caller's goroutine.
func (r *Renderer) Render(ctx context.Context, pageURL string) (string, failure.ClassifiedError) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return "", &RenderError{URL: pageURL, Message: "concurrency permit: " + err.Error()}
	}
	defer r.sem.Release(1)

	type result struct {
		html string
		err  error
	}
	out := make(chan result, 1)

	go func() {
		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), r.allocOpts...)
		defer allocCancel()
		browserCtx, browserCancel := chromedp.NewContext(allocCtx)
		defer browserCancel()
		browserCtx, timeoutCancel := context.WithTimeout(browserCtx, NavigationTimeout)
		defer timeoutCancel()

		var html string
		err := chromedp.Run(browserCtx,
			chromedp.Navigate(pageURL),
			chromedp.Sleep(SettlePeriod),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		)
		out <- result{html: html, err: err}
	}()

	select {
	case res := <-out:
		if res.err != nil {
			renderErr := &RenderError{URL: pageURL, Message: res.err.Error()}
			if r.metadataSink != nil {
				r.metadataSink.RecordError(time.Now(), "render", "Renderer.Render",
					metadata.CauseNetworkFailure, res.err.Error(),
					[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, pageURL)})
			}
			return "", renderErr
		}
		return res.html, nil
	case <-ctx.Done():
		return "", &RenderError{URL: pageURL, Message: ctx.Err().Error()}
	}
}
