// Package diff implements the Diff Engine (§4.12): comparing two crawl
// stores by URL key and classifying each page as added, removed, or
// changed.
package diff

import "github.com/mascanho/seocrawl/internal/crawl"

// FieldDelta is a single tracked field's before/after pair for a changed
// page.
type FieldDelta struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Changed is one URL present in both crawls with at least one tracked
// field different.
type Changed struct {
	URL     string       `json:"url"`
	Deltas  []FieldDelta `json:"deltas"`
}

// Result is the full comparison: pages only in the current crawl, pages
// only in the previous crawl, and pages present in both with differences.
type Result struct {
	Added   []string  `json:"added"`
	Removed []string  `json:"removed"`
	Changed []Changed `json:"changed"`
}

// Compare classifies every URL from previous and current by presence and,
// for URLs in both, by whether any tracked field differs. Tracked fields:
// status code, title, internal link count, indexability — the same
// headline signals a human auditor checks first after a recrawl.
func Compare(previous, current []crawl.PageRecord) Result {
	prevByURL := indexByURL(previous)
	currByURL := indexByURL(current)

	var result Result
	for url := range prevByURL {
		if _, ok := currByURL[url]; !ok {
			result.Removed = append(result.Removed, url)
		}
	}
	for url, currRecord := range currByURL {
		prevRecord, ok := prevByURL[url]
		if !ok {
			result.Added = append(result.Added, url)
			continue
		}
		if sameContentHash(prevRecord, currRecord) {
			continue
		}
		if deltas := diffFields(prevRecord, currRecord); len(deltas) > 0 {
			result.Changed = append(result.Changed, Changed{URL: url, Deltas: deltas})
		}
	}
	return result
}

func indexByURL(records []crawl.PageRecord) map[string]crawl.PageRecord {
	byURL := make(map[string]crawl.PageRecord, len(records))
	for _, r := range records {
		byURL[r.FinalURL] = r
	}
	return byURL
}

// sameContentHash short-circuits the per-field comparison when the
// Scheduler already fingerprinted both responses identically: a BLAKE3
// match over the raw body means every derived field is unchanged too,
// so there's no need to compare them one by one. Either hash being
// empty (an older crawl predating ContentHash, or a non-HTML response)
// falls through to the full field comparison instead.
func sameContentHash(before, after crawl.PageRecord) bool {
	return before.ContentHash != "" && after.ContentHash != "" && before.ContentHash == after.ContentHash
}

func diffFields(before, after crawl.PageRecord) []FieldDelta {
	var deltas []FieldDelta

	if before.StatusCode != after.StatusCode {
		deltas = append(deltas, FieldDelta{
			Field:  "status_code",
			Before: itoa(before.StatusCode),
			After:  itoa(after.StatusCode),
		})
	}
	if before.Title != after.Title {
		deltas = append(deltas, FieldDelta{Field: "title", Before: before.Title, After: after.Title})
	}
	if len(before.InternalLinks) != len(after.InternalLinks) {
		deltas = append(deltas, FieldDelta{
			Field:  "internal_link_count",
			Before: itoa(len(before.InternalLinks)),
			After:  itoa(len(after.InternalLinks)),
		})
	}
	if before.Indexable != after.Indexable {
		deltas = append(deltas, FieldDelta{
			Field:  "indexability",
			Before: boolStr(before.Indexable),
			After:  boolStr(after.Indexable),
		})
	}

	return deltas
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
