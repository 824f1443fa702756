// Package scheduler is the Concurrent Scheduler (§4.9): the component
// that owns a crawl end to end, driving a bounded worker pool over the
// Frontier and wiring every other module (robots, fetch/redirect trace,
// extraction pipeline, optional render, storage, rate limiting, dedupe,
// event bus) into a single per-URL pipeline.
package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mascanho/seocrawl/internal/config"
	"github.com/mascanho/seocrawl/internal/crawl"
	"github.com/mascanho/seocrawl/internal/dedupe"
	"github.com/mascanho/seocrawl/internal/events"
	"github.com/mascanho/seocrawl/internal/extractor"
	"github.com/mascanho/seocrawl/internal/fetcher"
	"github.com/mascanho/seocrawl/internal/frontier"
	"github.com/mascanho/seocrawl/internal/metadata"
	"github.com/mascanho/seocrawl/internal/normalize"
	"github.com/mascanho/seocrawl/internal/render"
	"github.com/mascanho/seocrawl/internal/robots"
	"github.com/mascanho/seocrawl/internal/storage"
	"github.com/mascanho/seocrawl/pkg/hashutil"
	"github.com/mascanho/seocrawl/pkg/limiter"
	"github.com/mascanho/seocrawl/pkg/retry"
	"github.com/mascanho/seocrawl/pkg/timeutil"
)

// workerPollInterval is how long an idle worker sleeps before checking
// the frontier again, once every other worker has also gone idle.
const workerPollInterval = 50 * time.Millisecond

// thinContentWordCount is the word-count floor below which a page is
// considered a client-rendering shell worth a headless re-fetch.
const thinContentWordCount = 50

// Scheduler owns one crawl's worker pool, counters, and module wiring.
// A fresh Scheduler is intended for a single ExecuteCrawling call; reuse
// across crawls is not supported since the frontier and counters are
// crawl-scoped.
type Scheduler struct {
	ctx            context.Context
	metadataSink   metadata.MetadataSink
	crawlFinalizer metadata.CrawlFinalizer
	bus            *events.Bus

	robot        robots.Robot
	htmlFetcher  fetcher.Fetcher
	storageSink  storage.Sink
	rateLimiter  limiter.RateLimiter
	frontier     frontier.CrawlFrontier
	deduper      *dedupe.Deduper
	filterConfig normalize.FilterConfig

	mu            sync.Mutex
	crawled       int
	failed        int
	discovered    int
	robotsBlocked int
	failedURLs    []string
	batch         []crawl.PageRecord
	batchSize     int
	writeResults  []storage.WriteResult
}

// NewScheduler builds a Scheduler wired to production implementations of
// every dependency. cfg is not consulted here: ExecuteCrawling performs
// the actual Init/configuration pass, since a Scheduler's identity
// (frontier, dedupe state) is meant to be built once and configured once.
func NewScheduler(ctx context.Context, metadataSink metadata.MetadataSink, crawlFinalizer metadata.CrawlFinalizer, bus *events.Bus, storageSink storage.Sink) Scheduler {
	htmlFetcher := fetcher.NewHtmlFetcher(metadataSink)
	robot := robots.NewCachedRobot(metadataSink)
	return NewSchedulerWithDeps(ctx, metadataSink, crawlFinalizer, bus, storageSink, &htmlFetcher, &robot, limiter.NewConcurrentRateLimiter())
}

// NewSchedulerWithDeps builds a Scheduler from explicit dependencies,
// letting tests substitute doubles for the fetcher, robots checker, and
// rate limiter without touching the network or the clock.
func NewSchedulerWithDeps(
	ctx context.Context,
	metadataSink metadata.MetadataSink,
	crawlFinalizer metadata.CrawlFinalizer,
	bus *events.Bus,
	storageSink storage.Sink,
	htmlFetcher fetcher.Fetcher,
	robot robots.Robot,
	rateLimiter limiter.RateLimiter,
) Scheduler {
	return Scheduler{
		ctx:            ctx,
		metadataSink:   metadataSink,
		crawlFinalizer: crawlFinalizer,
		bus:            bus,
		robot:          robot,
		htmlFetcher:    htmlFetcher,
		storageSink:    storageSink,
		rateLimiter:    rateLimiter,
		frontier:       frontier.NewCrawlFrontier(),
		deduper:        dedupe.NewDeduper(),
		filterConfig:   normalize.NewFilterConfig(),
	}
}

// ExecuteCrawling runs a crawl to completion: seeds the frontier, starts
// a bounded worker pool, drains the frontier in BFS order, and flushes
// whatever remains in the in-memory batch once every worker has gone
// idle. It returns once the frontier is exhausted or ctx is canceled.
func (s *Scheduler) ExecuteCrawling(cfg config.Config) (CrawlingExecution, error) {
	if len(cfg.SeedURLs()) == 0 {
		return CrawlingExecution{}, fmt.Errorf("scheduler: no seed URLs configured")
	}
	baseURL := cfg.SeedURLs()[0]

	s.frontier.Init(cfg)
	s.robot.Init(cfg.UserAgent())
	s.rateLimiter.SetBaseDelay(cfg.BaseDelay())
	s.rateLimiter.SetJitter(cfg.Jitter())
	s.rateLimiter.SetRandomSeed(cfg.RandomSeed())
	s.htmlFetcher.Init(&http.Client{Timeout: cfg.Timeout()}, cfg.UserAgent())
	s.batchSize = cfg.DBBatchSize()
	if s.batchSize <= 0 {
		s.batchSize = storage.DefaultBatchSize
	}

	tracer := fetcher.NewRedirectTracer(s.htmlFetcher)

	domExtractor := extractor.NewDomExtractor(s.metadataSink)
	domExtractor.SetExtractParam(extractParamFromConfig(cfg))
	linkChecker := extractor.NewLinkStatusChecker(&http.Client{Timeout: extractor.LinkStatusCheckTimeout}, cfg.UserAgent())
	pipeline := extractor.NewPipeline(&domExtractor, &linkChecker, s.metadataSink)

	var renderer *render.Renderer
	if cfg.JavaScriptRendering() {
		r := render.NewRenderer(cfg.JSConcurrency(), s.metadataSink)
		renderer = &r
	}

	retryParam := retryParamFromConfig(cfg)

	for _, seed := range cfg.SeedURLs() {
		s.submitForAdmission(seed, frontier.SourceSeed, frontier.NewDiscoveryMetadata(0, nil))
	}

	startTime := time.Now()
	concurrency := cfg.Concurrency()
	if concurrency < 1 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(s.ctx)
	var active atomic.Int64

	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			for {
				if gctx.Err() != nil {
					return nil
				}
				token, ok := s.frontier.Dequeue()
				if !ok {
					if active.Load() == 0 {
						return nil
					}
					time.Sleep(workerPollInterval)
					continue
				}
				active.Add(1)
				s.processToken(gctx, cfg, baseURL, &tracer, &pipeline, renderer, retryParam, token)
				active.Add(-1)
			}
		})
	}

	runErr := g.Wait()
	s.flushBatch(context.Background())
	duration := time.Since(startTime)

	s.mu.Lock()
	crawled, failed := s.crawled, s.failed
	s.mu.Unlock()

	if s.crawlFinalizer != nil {
		s.crawlFinalizer.RecordFinalCrawlStats(crawled, failed, 0, duration)
	}

	execution := CrawlingExecution{
		WriteResults: s.writeResults,
		PagesCrawled: crawled,
		PagesFailed:  failed,
		Duration:     duration,
	}

	if runErr != nil && s.ctx.Err() != nil {
		return execution, s.ctx.Err()
	}
	return execution, nil
}

// processToken runs the full per-URL pipeline for a single frontier
// token: robots decision, politeness delay, fetch+redirect trace,
// extraction, optional render follow-up, link discovery, and bookkeeping.
// Every branch that stops early records its own outcome (failure or
// robots-blocked) before returning, so callers never need to inspect the
// returned PipelineOutcome to keep counters correct; it exists for
// observability and tests that want to assert what happened without
// reaching into the Scheduler's private counters.
func (s *Scheduler) processToken(
	ctx context.Context,
	cfg config.Config,
	baseURL url.URL,
	tracer *fetcher.RedirectTracer,
	pipeline *extractor.Pipeline,
	renderer *render.Renderer,
	retryParam retry.RetryParam,
	token frontier.CrawlToken,
) PipelineOutcome {
	target := token.URL()
	depth := token.Depth()

	decision, err := s.robot.Decide(target)
	if err != nil {
		s.recordFailure(target.String(), err.Error())
		return PipelineOutcome{Abort: true}
	}
	if !decision.Allowed {
		s.mu.Lock()
		s.robotsBlocked++
		s.mu.Unlock()
		s.emitProgress()
		return PipelineOutcome{Continue: true}
	}

	host := target.Hostname()
	if decision.CrawlDelay > 0 {
		s.rateLimiter.SetCrawlDelay(host, decision.CrawlDelay)
	}
	if delay := s.rateLimiter.ResolveDelay(host); delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return PipelineOutcome{Abort: true}
		}
	}

	traceResult, terr := tracer.Trace(ctx, depth, target, retryParam)
	s.rateLimiter.MarkLastFetchAsNow(host)
	if terr != nil {
		s.rateLimiter.Backoff(host)
		s.recordFailure(target.String(), terr.Error())
		return PipelineOutcome{Retry: true}
	}
	s.rateLimiter.ResetBackoff(host)

	record, perr := pipeline.Run(ctx, runInputFrom(target, traceResult, cfg))
	if perr != nil {
		s.recordFailure(target.String(), perr.Error())
		return PipelineOutcome{Abort: true}
	}
	if digest, herr := hashutil.HashBytes(traceResult.Final.Body(), hashutil.HashAlgoBLAKE3); herr == nil {
		record.ContentHash = digest
	}

	if renderer != nil && needsRender(record) {
		if rendered, rerr := renderer.Render(ctx, record.FinalURL); rerr == nil {
			renderInput := runInputFrom(target, traceResult, cfg)
			renderInput.Body = []byte(rendered)
			if reRecord, reerr := pipeline.Run(ctx, renderInput); reerr == nil {
				record = reRecord
			}
		}
	}

	s.enqueueDiscoveredLinks(record, baseURL, depth)
	s.recordSuccess(record)
	return PipelineOutcome{Continue: true}
}

// submitForAdmission hands a target off to the frontier as an already
// cleared admission candidate; robots/scope checks happen upstream of
// this call, never inside the frontier itself.
func (s *Scheduler) submitForAdmission(target url.URL, source frontier.SourceContext, meta frontier.DiscoveryMetadata) {
	candidate := frontier.NewCrawlAdmissionCandidate(target, source, meta)
	s.frontier.Submit(candidate)
}

// enqueueDiscoveredLinks runs every internal link a page yielded through
// canonicalization, scope/blacklist admission, and pattern dedup before
// submitting it to the frontier one depth deeper than its source page.
func (s *Scheduler) enqueueDiscoveredLinks(record crawl.PageRecord, baseURL url.URL, depth int) {
	for _, link := range record.InternalLinks {
		canonical, ok, _ := normalize.Canonicalize(link.URL, baseURL)
		if !ok {
			continue
		}
		if !normalize.Admit(canonical, baseURL, s.filterConfig) {
			continue
		}
		if !s.deduper.Admit(canonical) {
			continue
		}
		parsed, perr := url.Parse(canonical)
		if perr != nil {
			continue
		}
		s.mu.Lock()
		s.discovered++
		s.mu.Unlock()
		s.submitForAdmission(*parsed, frontier.SourceCrawl, frontier.NewDiscoveryMetadata(depth+1, nil))
	}
}

func (s *Scheduler) recordFailure(url string, message string) {
	s.mu.Lock()
	s.failed++
	s.failedURLs = append(s.failedURLs, url)
	s.mu.Unlock()
	if s.metadataSink != nil {
		s.metadataSink.RecordError(time.Now(), "scheduler", "processToken", metadata.CauseNetworkFailure, message, []metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, url),
		})
	}
	s.emitProgress()
}

func (s *Scheduler) recordSuccess(record crawl.PageRecord) {
	s.mu.Lock()
	s.crawled++
	s.batch = append(s.batch, record)
	shouldFlush := len(s.batch) >= s.batchSize
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.PublishCrawlResult(record)
	}
	s.emitProgress()
	if shouldFlush {
		s.flushBatch(s.ctx)
	}
}

// flushBatch swaps out the pending in-memory batch and writes it through
// the storage sink, accumulating the results the final CrawlingExecution
// reports. Safe to call with an empty batch.
func (s *Scheduler) flushBatch(ctx context.Context) {
	s.mu.Lock()
	pending := s.batch
	s.batch = nil
	s.mu.Unlock()

	if s.storageSink == nil || len(pending) == 0 {
		return
	}

	results, err := s.storageSink.Flush(ctx, pending)
	if err != nil {
		if s.metadataSink != nil {
			s.metadataSink.RecordError(time.Now(), "scheduler", "flushBatch", metadata.CauseStorageFailure, err.Error(), nil)
		}
		return
	}

	s.mu.Lock()
	s.writeResults = append(s.writeResults, results...)
	s.mu.Unlock()
}

func (s *Scheduler) emitProgress() {
	if s.bus == nil {
		return
	}
	s.mu.Lock()
	in := events.ProgressInput{
		Crawled:         s.crawled,
		Failed:          s.failed,
		TotalDiscovered: s.discovered,
		FailedURLs:      append([]string(nil), s.failedURLs...),
		RobotsBlocked:   s.robotsBlocked,
	}
	s.mu.Unlock()
	s.bus.PublishProgress(in)
}

// runInputFrom assembles the Extraction Pipeline's input from a traced
// fetch response. fetcher.RedirectHop and crawl.RedirectHop share a
// shape but are distinct types, so the chain is copied element by
// element rather than reinterpreted.
func runInputFrom(original url.URL, trace fetcher.TraceResult, cfg config.Config) extractor.RunInput {
	chain := make([]crawl.RedirectHop, len(trace.Hops))
	for i, hop := range trace.Hops {
		chain[i] = crawl.RedirectHop{URL: hop.URL, StatusCode: hop.StatusCode}
	}

	final := trace.Final
	headers := final.Headers()

	return extractor.RunInput{
		OriginalURL:     original.String(),
		FinalURL:        final.URL().String(),
		RedirectChain:   chain,
		HadRedirect:     trace.HadRedirect,
		RedirectCount:   trace.RedirectCount,
		RedirectionType: trace.RedirectType,
		StatusCode:      final.Code(),
		ContentType:     headers["Content-Type"],
		Body:            final.Body(),
		ResponseTimeMs:  trace.Elapsed.Milliseconds(),
		Headers:         headers,

		CheckLinkStatus: cfg.CheckLinkStatus(),
		ExtractNgrams:   cfg.ExtractNgrams(),
		NgramSize:       cfg.NgramSize(),
		StopWords:       cfg.StopWords(),
		PageSpeedBulk:   cfg.PageSpeedBulk(),
		PageSpeedAPIKey: cfg.PageSpeedAPIKey(),
	}
}

func retryParamFromConfig(cfg config.Config) retry.RetryParam {
	backoff := timeutil.NewBackoffParam(cfg.BackoffInitialDuration(), cfg.BackoffMultiplier(), cfg.BackoffMaxDuration())
	return retry.NewRetryParam(cfg.BaseDelay(), cfg.Jitter(), cfg.RandomSeed(), cfg.MaxAttempt(), backoff)
}

func extractParamFromConfig(cfg config.Config) extractor.ExtractParam {
	return extractor.ExtractParam{
		BodySpecificityBias:  cfg.BodySpecificityBias(),
		LinkDensityThreshold: cfg.LinkDensityThreshold(),
		ScoreMultiplier: extractor.ContentScoreMultiplier{
			NonWhitespaceDivisor: cfg.ScoreMultiplierNonWhitespaceDivisor(),
			Paragraphs:           cfg.ScoreMultiplierParagraphs(),
			Headings:             cfg.ScoreMultiplierHeadings(),
			CodeBlocks:           cfg.ScoreMultiplierCodeBlocks(),
			ListItems:            cfg.ScoreMultiplierListItems(),
		},
		Threshold: extractor.MeaningfulThreshold{
			MinNonWhitespace:    cfg.ThresholdMinNonWhitespace(),
			MinHeadings:         cfg.ThresholdMinHeadings(),
			MinParagraphsOrCode: cfg.ThresholdMinParagraphsOrCode(),
			MaxLinkDensity:      cfg.ThresholdMaxLinkDensity(),
		},
	}
}

func needsRender(record crawl.PageRecord) bool {
	return record.WordCount < thinContentWordCount
}
