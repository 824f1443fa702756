package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mascanho/seocrawl/internal/metadata"
	"github.com/mascanho/seocrawl/pkg/failure"
	"github.com/mascanho/seocrawl/pkg/retry"
	"github.com/mascanho/seocrawl/pkg/timeutil"
)

/*
Responsibilities

- Perform HTTP requests with browser-like headers
- Retry connection errors and 429/503 responses, honoring Retry-After
  over exponential backoff when the server supplies one
- Never follow redirects itself; hand a 3xx response straight back
- Classify whether a successful body is HTML

The fetcher never parses content; it only returns bytes and metadata.
Wall-clock timeouts and redirect-following are the caller's job
(RedirectTracer), not this type's.
*/

type HtmlFetcher struct {
	metadataSink metadata.MetadataSink
	httpClient   *http.Client
	userAgent    string
}

func NewHtmlFetcher(
	metadataSink metadata.MetadataSink,
) HtmlFetcher {
	return HtmlFetcher{
		metadataSink: metadataSink,
		httpClient:   newNonFollowingClient(&http.Client{}),
	}
}

// Init binds the HTTP client this fetcher will use and the user-agent
// sent on every request. The client's CheckRedirect is always
// overridden: this type never follows redirects on its own.
func (h *HtmlFetcher) Init(httpClient *http.Client, userAgent string) {
	h.httpClient = newNonFollowingClient(httpClient)
	h.userAgent = userAgent
}

func newNonFollowingClient(client *http.Client) *http.Client {
	if client == nil {
		client = &http.Client{}
	}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return client
}

func (h *HtmlFetcher) Fetch(
	ctx context.Context,
	crawlDepth int,
	fetchUrl url.URL,
	retryParam retry.RetryParam,
) (FetchResult, failure.ClassifiedError) {
	callerMethod := "HtmlFetcher.Fetch"
	startTime := time.Now()

	result, err, attempts := h.fetchWithRetry(ctx, fetchUrl, retryParam)

	duration := time.Since(startTime)

	var statusCode int
	var contentType string

	if err == nil {
		statusCode = result.Code()
		contentType = h.extractContentType(result.Headers())
	}

	h.metadataSink.RecordFetch(
		fetchUrl.String(),
		statusCode,
		duration,
		contentType,
		attempts,
		crawlDepth,
	)

	if err != nil {
		var retryErr *retry.RetryError
		if errors.As(err, &retryErr) {
			h.recordRetryError(callerMethod, fetchUrl, err)
		} else {
			h.recordFetchError(callerMethod, fetchUrl, err)
		}
		return FetchResult{}, err
	}

	return result, nil
}

func (h *HtmlFetcher) extractContentType(headers map[string]string) string {
	if ct, ok := headers["Content-Type"]; ok {
		return ct
	}
	return ""
}

func (h *HtmlFetcher) recordFetchError(callerMethod string, fetchUrl url.URL, err failure.ClassifiedError) {
	var fetchError *FetchError
	if errors.As(err, &fetchError) {
		h.metadataSink.RecordError(
			time.Now(),
			"fetcher",
			callerMethod,
			mapFetchErrorToMetadataCause(fetchError),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, fetchUrl.String()),
			},
		)
	}
}

func (h *HtmlFetcher) recordRetryError(callerMethod string, fetchUrl url.URL, err failure.ClassifiedError) {
	var retryError *retry.RetryError
	if errors.As(err, &retryError) {
		h.metadataSink.RecordError(
			time.Now(),
			"fetcher",
			callerMethod,
			metadata.CauseRetryFailure,
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrMessage, retryError.Error()),
				metadata.NewAttr(metadata.AttrURL, fetchUrl.String()),
			},
		)
	}
}

// fetchWithRetry drives performFetch up to retryParam.MaxAttempts times.
// Connection errors and 429/503 responses are retryable; everything else
// returns immediately. A server-supplied Retry-After overrides the
// exponential backoff delay for that attempt. The returned attempt count
// reflects how many requests were actually made, not the configured
// budget.
func (h *HtmlFetcher) fetchWithRetry(ctx context.Context, fetchUrl url.URL, retryParam retry.RetryParam) (FetchResult, failure.ClassifiedError, int) {
	if retryParam.MaxAttempts < 1 {
		return FetchResult{}, &retry.RetryError{
			Message:   "max attempt cannot be 0",
			Cause:     retry.ErrZeroAttempt,
			Retryable: true,
		}, 0
	}

	rng := rand.New(rand.NewSource(retryParam.RandomSeed))
	var lastErr failure.ClassifiedError

	for attempt := 1; attempt <= retryParam.MaxAttempts; attempt++ {
		result, err := h.performFetch(ctx, fetchUrl)
		if err == nil {
			return result, nil, attempt
		}
		lastErr = err

		fetchErr, isFetchErr := err.(*FetchError)
		if !isFetchErr || !fetchErr.IsRetryable() {
			return FetchResult{}, err, attempt
		}

		if attempt == retryParam.MaxAttempts {
			break
		}

		delay := fetchErr.RetryAfter
		if delay <= 0 {
			delay = timeutil.ExponentialBackoffDelay(attempt, retryParam.Jitter, *rng, retryParam.BackoffParam)
		}

		select {
		case <-ctx.Done():
			return FetchResult{}, &FetchError{
				Message:   ctx.Err().Error(),
				Retryable: false,
				Cause:     ErrCauseTimeout,
			}, attempt
		case <-time.After(delay):
		}
	}

	return FetchResult{}, &retry.RetryError{
		Message:   fmt.Sprintf("exhausted %d attempts. Last error: %v", retryParam.MaxAttempts, lastErr),
		Cause:     retry.ErrExhaustedAttempts,
		Retryable: true,
	}, retryParam.MaxAttempts
}

func (h *HtmlFetcher) performFetch(ctx context.Context, fetchUrl url.URL) (FetchResult, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchUrl.String(), nil)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}

	for key, value := range requestHeaders(h.userAgent) {
		req.Header.Set(key, value)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return FetchResult{}, &FetchError{
			Message:    "service unavailable (503)",
			Retryable:  true,
			Cause:      ErrCauseRequestUnavailable,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}

	case resp.StatusCode == http.StatusTooManyRequests:
		return FetchResult{}, &FetchError{
			Message:    "rate limited (429)",
			Retryable:  true,
			Cause:      ErrCauseRequestTooMany,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}

	case resp.StatusCode == http.StatusForbidden:
		return FetchResult{}, &FetchError{
			Message:   "access forbidden (403)",
			Retryable: false,
			Cause:     ErrCauseRequestPageForbidden,
		}

	case resp.StatusCode >= 500:
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("server error: %d", resp.StatusCode),
			Retryable: false,
			Cause:     ErrCauseRequest5xx,
		}

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("client error: %d", resp.StatusCode),
			Retryable: false,
			Cause:     ErrCauseRequestClientError,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to read response body: %v", err),
			Retryable: true,
			Cause:     ErrCauseReadResponseBodyError,
		}
	}

	responseHeaders := make(map[string]string)
	for key, values := range resp.Header {
		if len(values) > 0 {
			responseHeaders[key] = values[0]
		}
	}

	isRedirect := resp.StatusCode >= 300 && resp.StatusCode < 400
	if !isRedirect {
		contentType := resp.Header.Get("Content-Type")
		if !IsHTMLContent(contentType, body) {
			return FetchResult{}, &FetchError{
				Message:   fmt.Sprintf("non-HTML content type: %s", contentType),
				Retryable: false,
				Cause:     ErrCauseContentTypeInvalid,
			}
		}
	}

	return FetchResult{
		url:  fetchUrl,
		body: body,
		meta: ResponseMeta{
			statusCode:      resp.StatusCode,
			responseHeaders: responseHeaders,
		},
	}, nil
}

// parseRetryAfter parses a Retry-After header given in seconds. The
// HTTP-date form is not supported: the caller falls back to exponential
// backoff when parsing fails.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func requestHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":                userAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.5",
		"Accept-Encoding":           "gzip, deflate, br",
		"Upgrade-Insecure-Requests": "1",
		"Cache-Control":             "no-cache",
		"DNT":                       "1",
		"Connection":                "keep-alive",
	}
}
