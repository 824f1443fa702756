package robots

/*
CachedRobot

Responsibilities
- Fetch robots.txt per host (delegated to RobotsFetcher)
- Cache parsed rule sets for the lifetime of the crawl
- Decide whether a URL is allowed, and surface any crawl-delay

Robots decisions are advisory: the scheduler records a disallowed outcome
as a normal terminal result for that URL, not as a fatal crawl error. Only
a robots.txt fetch failure (network error, server error) is reported back
as an error, since that leaves the policy genuinely undetermined.
*/

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mascanho/seocrawl/internal/metadata"
	"github.com/mascanho/seocrawl/internal/robots/cache"
	"github.com/mascanho/seocrawl/pkg/failure"
)

// Robot decides whether a URL may be fetched under a host's robots.txt
// policy. The scheduler holds one Robot for the lifetime of a crawl.
type Robot interface {
	Init(userAgent string)
	InitWithCache(userAgent string, c cache.Cache)
	Decide(target url.URL) (Decision, failure.ClassifiedError)
}

type robotState struct {
	mu    sync.Mutex
	rules map[string]ruleSet
}

// CachedRobot is the default Robot: it fetches robots.txt through a
// RobotsFetcher and memoizes the mapped ruleSet per host so a crawl only
// ever fetches a given host's robots.txt once.
type CachedRobot struct {
	sink      metadata.MetadataSink
	userAgent string
	fetcher   *RobotsFetcher
	state     *robotState
}

// NewCachedRobot constructs a CachedRobot bound to the given metadata
// sink. Call Init or InitWithCache before Decide.
func NewCachedRobot(sink metadata.MetadataSink) CachedRobot {
	return CachedRobot{sink: sink}
}

// Init prepares the robot with an in-memory cache.
func (r *CachedRobot) Init(userAgent string) {
	r.InitWithCache(userAgent, cache.NewMemoryCache())
}

// InitWithCache prepares the robot with a caller-supplied cache, useful
// for sharing a cache across robots or substituting a test double.
func (r *CachedRobot) InitWithCache(userAgent string, c cache.Cache) {
	r.userAgent = userAgent
	r.fetcher = NewRobotsFetcher(r.sink, userAgent, c)
	r.state = &robotState{rules: make(map[string]ruleSet)}
}

// Decide fetches (or reuses) target's host robots.txt and reports
// whether target may be crawled.
func (r *CachedRobot) Decide(target url.URL) (Decision, failure.ClassifiedError) {
	rs, err := r.ruleSetFor(context.Background(), target.Scheme, target.Host)
	if err != nil {
		r.sink.RecordError(time.Now(), "robots", "fetch", mapRobotsErrorToMetadataCause(err), err.Error(),
			[]metadata.Attribute{metadata.NewAttr(metadata.AttrHost, target.Host), metadata.NewAttr(metadata.AttrURL, target.String())})
		return Decision{}, err
	}

	if !rs.hasGroups {
		return Decision{Url: target, Allowed: true, Reason: EmptyRuleSet}, nil
	}
	if !rs.matchedGroup {
		return Decision{Url: target, Allowed: true, Reason: UserAgentNotMatched}, nil
	}

	path := target.Path
	if path == "" {
		path = "/"
	}
	allowed, reason := evaluatePath(rs, path)

	decision := Decision{Url: target, Allowed: allowed, Reason: reason}
	if rs.crawlDelay != nil {
		decision.CrawlDelay = *rs.crawlDelay
	}
	return decision, nil
}

func (r *CachedRobot) ruleSetFor(ctx context.Context, scheme, host string) (ruleSet, *RobotsError) {
	r.state.mu.Lock()
	if rs, ok := r.state.rules[host]; ok {
		r.state.mu.Unlock()
		return rs, nil
	}
	r.state.mu.Unlock()

	result, ferr := r.fetcher.Fetch(ctx, scheme, host)
	if ferr != nil {
		return ruleSet{}, ferr
	}

	rs := MapResponseToRuleSet(result.Response, r.userAgent, result.FetchedAt)

	r.state.mu.Lock()
	r.state.rules[host] = rs
	r.state.mu.Unlock()
	return rs, nil
}

// evaluatePath picks the most specific matching rule for path, favoring
// Allow on a tie, per the longest-match convention robots.txt parsers use.
func evaluatePath(rs ruleSet, path string) (bool, DecisionReason) {
	bestAllowLen, bestDisallowLen := -1, -1

	for _, rule := range rs.AllowRules() {
		if matchesPattern(rule.Prefix(), path) && len(rule.Prefix()) > bestAllowLen {
			bestAllowLen = len(rule.Prefix())
		}
	}
	for _, rule := range rs.DisallowRules() {
		if matchesPattern(rule.Prefix(), path) && len(rule.Prefix()) > bestDisallowLen {
			bestDisallowLen = len(rule.Prefix())
		}
	}

	if bestAllowLen == -1 && bestDisallowLen == -1 {
		return true, NoMatchingRules
	}
	if bestAllowLen >= bestDisallowLen {
		return true, AllowedByRobots
	}
	return false, DisallowedByRobots
}

// matchesPattern reports whether path matches a robots.txt rule pattern.
// Patterns may contain '*' (match any sequence) and a trailing '$'
// (anchor the match to the end of path).
func matchesPattern(pattern, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	p := pattern
	if anchored {
		p = strings.TrimSuffix(p, "$")
	}

	segments := strings.Split(p, "*")
	pos := 0
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if i == 0 {
			if !strings.HasPrefix(path, seg) {
				return false
			}
			pos = len(seg)
			continue
		}
		idx := strings.Index(path[pos:], seg)
		if idx == -1 {
			return false
		}
		pos += idx + len(seg)
	}

	if anchored {
		return pos == len(path)
	}
	return true
}
