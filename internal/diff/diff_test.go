package diff_test

import (
	"testing"

	"github.com/mascanho/seocrawl/internal/crawl"
	"github.com/mascanho/seocrawl/internal/diff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare_DetectsAddedAndRemoved(t *testing.T) {
	previous := []crawl.PageRecord{
		{FinalURL: "https://example.com/gone", StatusCode: 200},
	}
	current := []crawl.PageRecord{
		{FinalURL: "https://example.com/new", StatusCode: 200},
	}

	result := diff.Compare(previous, current)

	assert.Equal(t, []string{"https://example.com/new"}, result.Added)
	assert.Equal(t, []string{"https://example.com/gone"}, result.Removed)
	assert.Empty(t, result.Changed)
}

func TestCompare_DetectsChangedStatusCodeAndTitle(t *testing.T) {
	previous := []crawl.PageRecord{
		{FinalURL: "https://example.com/", StatusCode: 200, Title: "Home"},
	}
	current := []crawl.PageRecord{
		{FinalURL: "https://example.com/", StatusCode: 404, Title: "Not Found"},
	}

	result := diff.Compare(previous, current)

	require.Len(t, result.Changed, 1)
	changed := result.Changed[0]
	assert.Equal(t, "https://example.com/", changed.URL)

	fields := make(map[string]diff.FieldDelta)
	for _, d := range changed.Deltas {
		fields[d.Field] = d
	}
	require.Contains(t, fields, "status_code")
	assert.Equal(t, "200", fields["status_code"].Before)
	assert.Equal(t, "404", fields["status_code"].After)
	require.Contains(t, fields, "title")
	assert.Equal(t, "Home", fields["title"].Before)
	assert.Equal(t, "Not Found", fields["title"].After)
}

func TestCompare_DetectsChangedLinkCountAndIndexability(t *testing.T) {
	previous := []crawl.PageRecord{
		{
			FinalURL:      "https://example.com/",
			Indexable:     true,
			InternalLinks: []crawl.LinkRef{{URL: "https://example.com/a"}},
		},
	}
	current := []crawl.PageRecord{
		{
			FinalURL:  "https://example.com/",
			Indexable: false,
			InternalLinks: []crawl.LinkRef{
				{URL: "https://example.com/a"},
				{URL: "https://example.com/b"},
			},
		},
	}

	result := diff.Compare(previous, current)

	require.Len(t, result.Changed, 1)
	fields := make(map[string]diff.FieldDelta)
	for _, d := range result.Changed[0].Deltas {
		fields[d.Field] = d
	}
	require.Contains(t, fields, "internal_link_count")
	assert.Equal(t, "1", fields["internal_link_count"].Before)
	assert.Equal(t, "2", fields["internal_link_count"].After)
	require.Contains(t, fields, "indexability")
	assert.Equal(t, "true", fields["indexability"].Before)
	assert.Equal(t, "false", fields["indexability"].After)
}

func TestCompare_MatchingContentHashShortCircuitsFieldComparison(t *testing.T) {
	previous := []crawl.PageRecord{
		{FinalURL: "https://example.com/", StatusCode: 200, Title: "Home", ContentHash: "abc123"},
	}
	current := []crawl.PageRecord{
		// Title differs, but a matching ContentHash means the Scheduler
		// fingerprinted an identical body, so this must not surface as a
		// changed page.
		{FinalURL: "https://example.com/", StatusCode: 200, Title: "Homepage", ContentHash: "abc123"},
	}

	result := diff.Compare(previous, current)

	assert.Empty(t, result.Changed)
}

func TestCompare_EmptyContentHashFallsBackToFieldComparison(t *testing.T) {
	previous := []crawl.PageRecord{
		{FinalURL: "https://example.com/", StatusCode: 200, Title: "Home"},
	}
	current := []crawl.PageRecord{
		{FinalURL: "https://example.com/", StatusCode: 200, Title: "Homepage"},
	}

	result := diff.Compare(previous, current)

	require.Len(t, result.Changed, 1)
}

func TestCompare_IdenticalRecordsProduceNoChanges(t *testing.T) {
	record := crawl.PageRecord{FinalURL: "https://example.com/", StatusCode: 200, Title: "Home", Indexable: true}

	result := diff.Compare([]crawl.PageRecord{record}, []crawl.PageRecord{record})

	assert.Empty(t, result.Added)
	assert.Empty(t, result.Removed)
	assert.Empty(t, result.Changed)
}
