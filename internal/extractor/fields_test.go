package extractor

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseDoc(t *testing.T, htmlBody string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	require.NoError(t, err)
	return doc
}

func TestTitleFromFallsBackThroughHeadings(t *testing.T) {
	doc := mustParseDoc(t, `<html><head></head><body><h1>Fallback Title</h1></body></html>`)
	assert.Equal(t, "Fallback Title", titleFrom(doc))
}

func TestTitleFromPrefersTitleTag(t *testing.T) {
	doc := mustParseDoc(t, `<html><head><title>Real Title</title></head><body><h1>Ignored</h1></body></html>`)
	assert.Equal(t, "Real Title", titleFrom(doc))
}

func TestTitleFromFallsBackToMetaOGTitle(t *testing.T) {
	doc := mustParseDoc(t, `<html><head><meta property="og:title" content="OG Title"></head><body></body></html>`)
	assert.Equal(t, "OG Title", titleFrom(doc))
}

func TestDescriptionFromPrefersMetaDescription(t *testing.T) {
	doc := mustParseDoc(t, `<html><head><meta name="description" content="desc one"><meta property="og:description" content="desc two"></head></html>`)
	assert.Equal(t, "desc one", descriptionFrom(doc))
}

func TestHeadingsFromSkipsEmptyHeadings(t *testing.T) {
	doc := mustParseDoc(t, `<html><body><h1>First</h1><h2></h2><h3>Third</h3></body></html>`)
	assert.Equal(t, []string{"h1: First", "h3: Third"}, headingsFrom(doc))
}

func TestMetaRobotsFromJoinsMultipleDirectives(t *testing.T) {
	doc := mustParseDoc(t, `<html><head><meta name="robots" content="noindex"><meta name="robots" content="nofollow"></head></html>`)
	assert.Equal(t, "noindex, nofollow", metaRobotsFrom(doc))
}

func TestIndexableFromDetectsNoindexEitherSource(t *testing.T) {
	assert.False(t, indexableFrom("noindex", ""))
	assert.False(t, indexableFrom("", "NOINDEX"))
	assert.True(t, indexableFrom("index, follow", ""))
}

func TestLinksFromClassifiesInternalVsExternal(t *testing.T) {
	base, err := url.Parse("https://www.example.com/blog/post")
	require.NoError(t, err)
	doc := mustParseDoc(t, `
		<a href="/about">About</a>
		<a href="https://example.com/contact">Contact</a>
		<a href="https://other.com/page">Other</a>
		<a href="#section">Anchor only</a>
		<a href="mailto:a@b.com">Mail</a>
		<a href="javascript:void(0)">JS</a>
	`)
	internal, external := linksFrom(doc, *base)
	require.Len(t, internal, 2)
	require.Len(t, external, 1)
	assert.Equal(t, "https://other.com/page", external[0].URL)
}

func TestLinksFromRejectsNonHTTPSchemes(t *testing.T) {
	base, err := url.Parse("https://example.com/")
	require.NoError(t, err)
	doc := mustParseDoc(t, `<a href="ftp://example.com/file">file</a><a href="/ok">ok</a>`)
	internal, external := linksFrom(doc, *base)
	assert.Len(t, internal, 1)
	assert.Empty(t, external)
}

func TestCanonicalsAndHreflangsFrom(t *testing.T) {
	doc := mustParseDoc(t, `<html><head>
		<link rel="canonical" href="https://example.com/page">
		<link rel="alternate" hreflang="es" href="https://example.com/es/page">
	</head></html>`)
	assert.Equal(t, []string{"https://example.com/page"}, canonicalsFrom(doc))
	assert.Equal(t, []string{"es: https://example.com/es/page"}, hreflangsFrom(doc))
}

func TestSchemaJSONLDFromReturnsFirstBlock(t *testing.T) {
	doc := mustParseDoc(t, `<html><head>
		<script type="application/ld+json">{"a":1}</script>
		<script type="application/ld+json">{"b":2}</script>
	</head></html>`)
	assert.Equal(t, `{"a":1}`, schemaJSONLDFrom(doc))
}

func TestMobileViewportFrom(t *testing.T) {
	withViewport := mustParseDoc(t, `<html><head><meta name="viewport" content="width=device-width"></head></html>`)
	without := mustParseDoc(t, `<html><head></head></html>`)
	assert.True(t, mobileViewportFrom(withViewport))
	assert.False(t, mobileViewportFrom(without))
}
