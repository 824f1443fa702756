package dedupe

import (
	"sync"

	"github.com/mascanho/seocrawl/internal/crawl"
)

const (
	thresholdSmall  = 20
	thresholdMedium = 5
	thresholdLarge  = 10

	smallCeiling  = 1000
	mediumCeiling = 5000
)

// Deduper tracks how many URLs have been admitted under each structural
// pattern and rejects further admissions once the pattern's count exceeds the
// threshold for the current frontier size (§4.3). The threshold tightens
// as the frontier grows: a large pattern set is more likely mid-explosion,
// so K drops from 20 to 5 before climbing back to 10 past 5000 URLs.
type Deduper struct {
	mu       sync.Mutex
	patterns crawl.URLPatternSet
}

func NewDeduper() *Deduper {
	return &Deduper{patterns: crawl.NewURLPatternSet()}
}

// Admit extracts canonicalURL's pattern and reports whether it may be
// enqueued. Rejects when the pattern has already been emitted more than
// K times for the current frontier size; otherwise records this emission
// and admits.
func (d *Deduper) Admit(canonicalURL string) bool {
	pattern := ExtractPattern(canonicalURL)

	d.mu.Lock()
	defer d.mu.Unlock()

	threshold := d.thresholdLocked()
	if d.patterns.CountOf(pattern) > threshold {
		return false
	}
	d.patterns.Record(pattern)
	return true
}

func (d *Deduper) thresholdLocked() int {
	size := d.patterns.Size()
	switch {
	case size <= smallCeiling:
		return thresholdSmall
	case size <= mediumCeiling:
		return thresholdMedium
	default:
		return thresholdLarge
	}
}

// Reset clears all tracked pattern counts, used between independent
// crawls that share a Deduper instance.
func (d *Deduper) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.patterns.Clear()
}
