// Package events is the one-way channel from the Scheduler to the UI:
// progress snapshots and per-page results, emitted as a crawl runs.
package events

import (
	"math"

	"github.com/mascanho/seocrawl/internal/crawl"
)

// Kind discriminates the two event shapes carried on the Bus.
type Kind string

const (
	KindProgressUpdate Kind = "progress_update"
	KindCrawlResult     Kind = "crawl_result"
)

// ProgressUpdate is the progress_update payload.
type ProgressUpdate struct {
	TotalURLs       int      `json:"total_urls"`
	CrawledURLs     int      `json:"crawled_urls"`
	Percentage      float64  `json:"percentage"`
	FailedURLsCount int      `json:"failed_urls_count"`
	FailedURLs      []string `json:"failed_urls,omitempty"`
	DiscoveredURLs  int      `json:"discovered_urls"`
	RobotsBlocked   int      `json:"robots_blocked,omitempty"`
}

// Event wraps one emission; exactly one of Progress/Result is set,
// selected by Kind.
type Event struct {
	Kind     Kind
	Progress *ProgressUpdate
	Result   *crawl.PageRecord
}

// Bus is an in-memory pub-sub channel: the Scheduler produces, and any
// number of UI-side consumers drain via Subscribe. Modeled as a simple
// fan-out over a slice of subscriber channels rather than a single shared
// channel, since the UI may attach after the crawl has already started
// and still wants every subsequent event.
type Bus struct {
	subscribers []chan Event
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe returns a receive-only channel that gets every event emitted
// after this call. The channel is buffered so a slow consumer does not
// block the Scheduler's emit path; Publish drops the event for that
// subscriber if its buffer is full rather than blocking.
func (b *Bus) Subscribe(bufferSize int) <-chan Event {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	ch := make(chan Event, bufferSize)
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Publish fans an event out to every subscriber, non-blocking.
func (b *Bus) Publish(e Event) {
	for _, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

// Close closes every subscriber channel; callers must not Publish after
// calling Close.
func (b *Bus) Close() {
	for _, ch := range b.subscribers {
		close(ch)
	}
}

// PublishCrawlResult emits a crawl_result event for one page.
func (b *Bus) PublishCrawlResult(record crawl.PageRecord) {
	b.Publish(Event{Kind: KindCrawlResult, Result: &record})
}

// ProgressInput is the raw counters the Scheduler tracks; ComputeProgress
// turns these into the clamped percentage the UI expects.
type ProgressInput struct {
	Crawled        int
	Failed         int
	PendingInFlight int
	ActiveTasks    int
	TotalDiscovered int
	FailedURLs     []string
	RobotsBlocked  int
}

// ComputeProgress implements the §4.11 formula:
//
//	completed = crawled + failed
//	active = pending_in_flight + active_tasks
//	denominator = total_discovered + active
//	percentage = denominator > 0 ? (completed / denominator) * 100 : 0
//
// Clamped to <= 95 while work remains active, <= 100 once it doesn't.
// Returns ok=false when the update should not be emitted at all: a zero
// denominator, or a non-finite percentage.
func ComputeProgress(in ProgressInput) (ProgressUpdate, bool) {
	completed := in.Crawled + in.Failed
	active := in.PendingInFlight + in.ActiveTasks
	denominator := in.TotalDiscovered + active

	if denominator == 0 {
		return ProgressUpdate{}, false
	}

	percentage := (float64(completed) / float64(denominator)) * 100
	if math.IsNaN(percentage) || math.IsInf(percentage, 0) {
		return ProgressUpdate{}, false
	}

	maxPercentage := 100.0
	if active > 0 {
		maxPercentage = 95.0
	}
	if percentage > maxPercentage {
		percentage = maxPercentage
	}

	return ProgressUpdate{
		TotalURLs:       in.TotalDiscovered,
		CrawledURLs:     in.Crawled,
		Percentage:      percentage,
		FailedURLsCount: in.Failed,
		FailedURLs:      in.FailedURLs,
		DiscoveredURLs:  in.TotalDiscovered,
		RobotsBlocked:   in.RobotsBlocked,
	}, true
}

// PublishProgress computes and, if valid, emits a progress_update event.
func (b *Bus) PublishProgress(in ProgressInput) {
	update, ok := ComputeProgress(in)
	if !ok {
		return
	}
	b.Publish(Event{Kind: KindProgressUpdate, Progress: &update})
}
