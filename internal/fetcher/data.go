package fetcher

import (
	"net/url"
	"time"
)

// HTTP boundary

type FetchParam struct {
	fetchUrl  url.URL
	userAgent string
}

func NewFetchParam(fetchUrl url.URL, userAgent string) FetchParam {
	return FetchParam{
		fetchUrl:  fetchUrl,
		userAgent: userAgent,
	}
}

type FetchResult struct {
	url       url.URL
	body      []byte
	meta      ResponseMeta
	fetchedAt time.Time
}

func (f *FetchResult) URL() url.URL {
	return f.url
}

func (f *FetchResult) Body() []byte {
	return f.body
}

func (f *FetchResult) Code() int {
	return f.meta.statusCode
}

func (f *FetchResult) SizeByte() uint64 {
	return uint64(len(f.body))
}

func (f *FetchResult) Headers() map[string]string {
	return f.meta.responseHeaders
}

func (f *FetchResult) FetchedAt() time.Time {
	return f.fetchedAt
}

type ResponseMeta struct {
	statusCode      int
	responseHeaders map[string]string
}

// RedirectHop records one response observed while tracing a redirect
// chain: the URL that was requested and the status it returned.
type RedirectHop struct {
	URL        string
	StatusCode int
}

// TraceResult is what a RedirectTracer returns: the final response after
// following (or giving up on) a redirect chain, plus the chain itself.
type TraceResult struct {
	Final FetchResult

	Hops          []RedirectHop
	RedirectCount int
	HadRedirect   bool

	// RedirectType is the first redirect status observed in the chain,
	// zero if no redirect occurred.
	RedirectType int

	// LoopDetected is set when a hop resolved to a URL already seen
	// earlier in the chain.
	LoopDetected bool

	Elapsed time.Duration
}

// NewFetchResultForTest creates a FetchResult for testing purposes.
// This allows test packages to construct FetchResult values without
// accessing unexported fields directly.
func NewFetchResultForTest(
	url url.URL,
	body []byte,
	statusCode int,
	contentType string,
	responseHeaders map[string]string,
	fetchedAt time.Time,
) FetchResult {
	headers := responseHeaders
	if headers == nil {
		headers = make(map[string]string)
	}
	if contentType != "" {
		if _, ok := headers["Content-Type"]; !ok {
			headers["Content-Type"] = contentType
		}
	}
	return FetchResult{
		url:       url,
		body:      body,
		fetchedAt: fetchedAt,
		meta: ResponseMeta{
			statusCode:      statusCode,
			responseHeaders: headers,
		},
	}
}
