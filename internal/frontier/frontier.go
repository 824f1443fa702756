package frontier

/*
CrawlFrontier Responsibilities
- Maintain BFS ordering across discovery depths
- Deduplicate URLs by their canonical form
- Track crawl depth
- Enforce the page-count and depth limits the scheduler was configured with
- Knows nothing about:
	- fetching
	- extraction
	- storage

It is a data structure + policy module, not a pipeline executor. The
scheduler is the only caller allowed to construct admission candidates;
the frontier trusts that robots/scope checks already happened and only
applies structural admission (dedup, depth cap, page cap, BFS order).
*/

import (
	"sync"

	"github.com/mascanho/seocrawl/internal/config"
	"github.com/mascanho/seocrawl/pkg/urlutil"
)

// CrawlFrontier is the BFS frontier: one FIFO queue per discovery depth,
// dequeued lowest-depth-first so no depth N+1 URL is ever returned while
// a depth-N URL is still pending.
type CrawlFrontier struct {
	mu           sync.Mutex
	visited      Set[string]
	queuesByDepth map[int]*FIFOQueue[CrawlToken]
	maxDepth     int
	maxPages     int
}

func NewCrawlFrontier() CrawlFrontier {
	return CrawlFrontier{
		visited:       NewSet[string](),
		queuesByDepth: make(map[int]*FIFOQueue[CrawlToken]),
	}
}

// Init configures the frontier's admission limits from the crawl config.
// A zero value for either limit means unlimited, matching config's own
// convention.
func (f *CrawlFrontier) Init(cfg config.Config) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maxDepth = cfg.MaxDepth()
	f.maxPages = cfg.MaxPages()
}

// Submit admits a candidate already cleared by the scheduler's robots and
// scope checks. It silently drops the candidate (no error: rejection here
// is a normal structural outcome, not a failure) when:
//   - its canonical URL was already visited
//   - its depth exceeds the configured max depth
//   - the page cap has already been reached
func (f *CrawlFrontier) Submit(candidate CrawlAdmissionCandidate) {
	f.mu.Lock()
	defer f.mu.Unlock()

	target := candidate.TargetURL()
	depth := candidate.DiscoveryMetadata().Depth()

	if f.maxDepth > 0 && depth > f.maxDepth {
		return
	}
	if f.maxPages > 0 && f.visited.Size() >= f.maxPages {
		return
	}

	canonical := urlutil.Canonicalize(target)
	key := canonical.String()
	if f.visited.Contains(key) {
		return
	}
	f.visited.Add(key)

	queue, ok := f.queuesByDepth[depth]
	if !ok {
		queue = NewFIFOQueue[CrawlToken]()
		f.queuesByDepth[depth] = queue
	}
	queue.Enqueue(NewCrawlToken(target, depth))
}

// Dequeue returns the next token in strict BFS order: the lowest depth
// with a non-empty queue. It never panics on an unpopulated depth level,
// whether that level was skipped entirely or already drained.
func (f *CrawlFrontier) Dequeue() (CrawlToken, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	depth := f.minPendingDepthLocked()
	if depth == -1 {
		return CrawlToken{}, false
	}
	return f.queuesByDepth[depth].Dequeue()
}

// VisitedCount is the number of distinct canonical URLs ever admitted,
// independent of how many have since been dequeued.
func (f *CrawlFrontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited.Size()
}

// IsDepthExhausted reports whether a given depth currently has no pending
// tokens, which is also true of any depth never populated.
func (f *CrawlFrontier) IsDepthExhausted(depth int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	queue, ok := f.queuesByDepth[depth]
	return !ok || queue.Size() == 0
}

// CurrentMinDepth is the smallest depth with a pending token, or -1 if
// every depth is exhausted.
func (f *CrawlFrontier) CurrentMinDepth() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.minPendingDepthLocked()
}

func (f *CrawlFrontier) minPendingDepthLocked() int {
	min := -1
	for depth, queue := range f.queuesByDepth {
		if queue.Size() == 0 {
			continue
		}
		if min == -1 || depth < min {
			min = depth
		}
	}
	return min
}

func NewCrawlingPolicy(cfg config.Config) CrawlingPolicy {
	return CrawlingPolicy{}
}

// CrawlingPolicy is reserved for future scope-decision wiring (allowed
// hosts, path prefixes); the scheduler currently applies those checks
// itself via pkg/urlutil before ever constructing a CrawlAdmissionCandidate.
type CrawlingPolicy struct{}
