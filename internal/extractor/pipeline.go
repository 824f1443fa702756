package extractor

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/mascanho/seocrawl/internal/crawl"
	"github.com/mascanho/seocrawl/internal/fetcher"
	"github.com/mascanho/seocrawl/internal/metadata"
	"github.com/mascanho/seocrawl/internal/normalize"
	"github.com/mascanho/seocrawl/pkg/failure"
)

// RunInput is everything the Extraction Pipeline needs to build a single
// PageRecord: the response the Redirect Tracer already resolved, plus the
// per-crawl knobs that shape optional fields.
type RunInput struct {
	OriginalURL     string
	FinalURL        string
	RedirectChain   []crawl.RedirectHop
	HadRedirect     bool
	RedirectCount   int
	RedirectionType int
	StatusCode      int
	ContentType     string
	Body            []byte
	ResponseTimeMs  int64
	Headers         map[string]string
	Cookies         []string

	CheckLinkStatus bool
	ExtractNgrams   bool
	NgramSize       int
	StopWords       []string
	PageSpeedBulk   bool
	PageSpeedAPIKey string
}

// Pipeline runs the full per-page contract: classify the response, parse
// the document, fan out synchronously across field extractors while the
// DOM is live, release it, then run the network-dependent follow-ups. The
// content-isolation step parses the body a second time into its own tree,
// so an HTML body is parsed twice per page.
type Pipeline struct {
	contentExtractor Extractor
	linkChecker      *LinkStatusChecker
	pageSpeedClient  PageSpeedClient
	metadataSink     metadata.MetadataSink
}

func NewPipeline(contentExtractor Extractor, linkChecker *LinkStatusChecker, metadataSink metadata.MetadataSink) Pipeline {
	return Pipeline{
		contentExtractor: contentExtractor,
		linkChecker:      linkChecker,
		pageSpeedClient:  NoopPageSpeedClient{},
		metadataSink:     metadataSink,
	}
}

// WithPageSpeedClient swaps in a real page-speed client. Kept as a
// post-construction setter, mirroring DomExtractor.SetExtractParam, since
// most crawls run with the noop default.
func (p *Pipeline) WithPageSpeedClient(client PageSpeedClient) {
	p.pageSpeedClient = client
}

func (p *Pipeline) Run(ctx context.Context, in RunInput) (crawl.PageRecord, failure.ClassifiedError) {
	record := crawl.PageRecord{
		OriginalURL:     in.OriginalURL,
		FinalURL:        in.FinalURL,
		RedirectChain:   in.RedirectChain,
		HadRedirect:     in.HadRedirect,
		RedirectCount:   in.RedirectCount,
		RedirectionType: in.RedirectionType,
		StatusCode:      in.StatusCode,
		ContentType:     in.ContentType,
		ContentLength:   int64(len(in.Body)),
		ResponseTimeMs:  in.ResponseTimeMs,
		HTTPHeaders:     in.Headers,
		Cookies:         in.Cookies,
	}

	finalURL, err := url.Parse(in.FinalURL)
	if err != nil {
		return crawl.PageRecord{}, &ExtractionError{
			Message:   fmt.Sprintf("final URL does not parse: %v", err),
			Retryable: false,
			Cause:     ErrCauseNotHTML,
		}
	}
	record.IsHTTPS = finalURL.Scheme == "https"
	record.URLDepth = normalize.URLDepth(finalURL.Path)

	if !fetcher.IsHTMLContent(in.ContentType, in.Body) {
		if isPDFResponse(in.ContentType, finalURL.Path) {
			record.PDFFiles = []string{in.OriginalURL}
		}
		return record, nil
	}

	doc, perr := goquery.NewDocumentFromReader(bytes.NewReader(in.Body))
	if perr != nil {
		return crawl.PageRecord{}, &ExtractionError{
			Message:   fmt.Sprintf("failed to parse HTML: %v", perr),
			Retryable: false,
			Cause:     ErrCauseNotHTML,
		}
	}

	p.fanOutSynchronousExtractors(&record, doc, *finalURL, in)

	record.HTMLSizeBytes = len(in.Body)
	record.HTMLSizeKB = float64(len(in.Body)) / 1024.0

	p.runNetworkFollowUps(ctx, &record, finalURL.String(), in)

	return record, nil
}

// fanOutSynchronousExtractors runs every field extractor over the single
// parsed document concurrently, joining before returning so the *html.Node
// tree backing doc is never touched again once this call returns — the
// network follow-ups that come after only see plain Go values copied out
// of the record.
func (p *Pipeline) fanOutSynchronousExtractors(record *crawl.PageRecord, doc *goquery.Document, pageURL url.URL, in RunInput) {
	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	run(func() { record.Title = titleFrom(doc) })
	run(func() { record.Description = descriptionFrom(doc) })
	run(func() { record.Headings = headingsFrom(doc) })
	run(func() { record.ImageURLs, record.AltTags = imagesFrom(doc) })
	run(func() { record.InternalLinks, record.ExternalLinks = linksFrom(doc, pageURL) })
	run(func() {
		record.Canonicals = canonicalsFrom(doc)
		record.Hreflangs = hreflangsFrom(doc)
	})
	run(func() { record.MetaRobots = metaRobotsFrom(doc) })
	run(func() { record.SchemaJSONLD = schemaJSONLDFrom(doc) })
	run(func() { record.Language = languageFrom(doc) })
	run(func() { record.MobileViewport = mobileViewportFrom(doc) })

	var contentText string
	run(func() { contentText = p.contentTextFor(pageURL, in.Body, doc) })

	wg.Wait()

	record.Indexable = indexableFrom(record.MetaRobots, in.Headers["X-Robots-Tag"])
	record.WordCount = wordCount(contentText)
	record.FleschScore = fleschReadingEase(contentText)
	record.TextRatio = textRatio(contentText, len(in.Body))
	record.Keywords = keywordFrequency(contentText, in.StopWords, 20)
	if in.ExtractNgrams {
		n := in.NgramSize
		if n <= 0 {
			n = 2
		}
		record.Ngrams = ngrams(contentText, n)
	}
}

// contentTextFor isolates the page's main content and returns its text.
// Isolation failure (no semantic container, or every layer rejects the
// page as non-meaningful) is non-fatal to the page record: word count and
// readability fall back to the whole document's text-bearing elements.
func (p *Pipeline) contentTextFor(pageURL url.URL, body []byte, fullDoc *goquery.Document) string {
	if p.contentExtractor != nil {
		result, extractErr := p.contentExtractor.Extract(pageURL, body)
		if extractErr == nil && result.ContentNode != nil {
			return collectText(goquery.NewDocumentFromNode(result.ContentNode).Selection)
		}
	}
	return collectText(fullDoc.Selection)
}

// runNetworkFollowUps performs the link-status checks and optional
// page-speed calls that only make sense after the DOM is gone: these talk
// to the network, not the parsed page.
func (p *Pipeline) runNetworkFollowUps(ctx context.Context, record *crawl.PageRecord, finalURL string, in RunInput) {
	var wg sync.WaitGroup

	if in.CheckLinkStatus && p.linkChecker != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.linkChecker.CheckAll(ctx, record.InternalLinks)
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.linkChecker.CheckAll(ctx, record.ExternalLinks)
		}()
	}

	if in.PageSpeedBulk && in.PageSpeedAPIKey != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			psi := fetchPageSpeedBothStrategies(ctx, p.pageSpeedClient, finalURL, in.PageSpeedAPIKey)
			if len(psi) > 0 {
				record.PSIResults = psi
			}
		}()
	}

	wg.Wait()
}

func isPDFResponse(contentType, path string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/pdf") || normalize.IsPDFPath(path)
}
