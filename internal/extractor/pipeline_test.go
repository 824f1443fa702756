package extractor_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mascanho/seocrawl/internal/extractor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline() (extractor.Pipeline, *mockMetadataSink) {
	sink := &mockMetadataSink{}
	domExtractor := extractor.NewDomExtractor(sink)
	checker := extractor.NewLinkStatusChecker(nil, "seocrawl-test")
	p := extractor.NewPipeline(&domExtractor, &checker, sink)
	return p, sink
}

func runInputFor(finalURL, body string) extractor.RunInput {
	return extractor.RunInput{
		OriginalURL: finalURL,
		FinalURL:    finalURL,
		StatusCode:  200,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(body),
		Headers:     map[string]string{},
	}
}

func TestPipeline_Run_ExtractsCoreFields(t *testing.T) {
	body := `<html lang="en"><head>
		<title>Widgets for Sale</title>
		<meta name="description" content="Buy widgets here">
		<meta name="viewport" content="width=device-width">
		<link rel="canonical" href="https://example.com/widgets">
		<meta name="robots" content="index, follow">
	</head><body>
		<main>
			<h1>Widgets</h1>
			<p>Our widgets are the best widgets you can buy today. They ship fast. Customers love them.</p>
		</main>
		<a href="/about">About</a>
		<a href="https://other.com/page">External</a>
		<img src="/logo.png" alt="logo">
	</body></html>`

	p, _ := newTestPipeline()
	record, cerr := p.Run(context.Background(), runInputFor("https://example.com/widgets", body))
	require.Nil(t, cerr)

	assert.Equal(t, "Widgets for Sale", record.Title)
	assert.Equal(t, "Buy widgets here", record.Description)
	assert.Contains(t, record.Canonicals, "https://example.com/widgets")
	assert.True(t, record.MobileViewport)
	assert.True(t, record.Indexable)
	assert.True(t, record.IsHTTPS)
	assert.Len(t, record.InternalLinks, 1)
	assert.Len(t, record.ExternalLinks, 1)
	assert.Equal(t, "https://example.com/about", record.InternalLinks[0].URL)
	assert.Equal(t, []string{"/logo.png"}, record.ImageURLs)
	assert.Equal(t, []string{"logo"}, record.AltTags)
	assert.Greater(t, record.WordCount, 0)
	assert.Greater(t, record.HTMLSizeBytes, 0)
}

func TestPipeline_Run_NoindexIsNotIndexable(t *testing.T) {
	body := `<html><head><meta name="robots" content="noindex, nofollow"></head><body><p>hi</p></body></html>`
	p, _ := newTestPipeline()
	record, cerr := p.Run(context.Background(), runInputFor("https://example.com/", body))
	require.Nil(t, cerr)
	assert.False(t, record.Indexable)
}

func TestPipeline_Run_NonHTMLGetsMinimalRecordWithPDFFiles(t *testing.T) {
	p, _ := newTestPipeline()
	in := runInputFor("https://example.com/report.pdf", "%PDF-1.4 fake pdf body")
	in.ContentType = "application/pdf"
	record, cerr := p.Run(context.Background(), in)
	require.Nil(t, cerr)
	assert.Equal(t, []string{"https://example.com/report.pdf"}, record.PDFFiles)
	assert.Empty(t, record.Title)
	assert.Empty(t, record.InternalLinks)
}

func TestPipeline_Run_InvalidFinalURLIsFatal(t *testing.T) {
	p, _ := newTestPipeline()
	in := runInputFor("https://example.com/", "<html></html>")
	in.FinalURL = "http://[::1]:namedport"
	_, cerr := p.Run(context.Background(), in)
	require.NotNil(t, cerr)
}

func TestPipeline_Run_LinkStatusCheckPopulatesStatusCodes(t *testing.T) {
	linked := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer linked.Close()

	sink := &mockMetadataSink{}
	domExtractor := extractor.NewDomExtractor(sink)
	checker := extractor.NewLinkStatusChecker(linked.Client(), "seocrawl-test")
	p := extractor.NewPipeline(&domExtractor, &checker, sink)

	body := `<html><body><a href="` + linked.URL + `">link</a></body></html>`
	in := runInputFor("https://example.com/", body)
	in.CheckLinkStatus = true
	record, cerr := p.Run(context.Background(), in)
	require.Nil(t, cerr)
	require.Len(t, record.ExternalLinks, 1)
	assert.Equal(t, http.StatusOK, record.ExternalLinks[0].StatusCode)
}

func TestPipeline_Run_NgramsOnlyComputedWhenEnabled(t *testing.T) {
	body := `<html><body><p>red fox red fox jumps</p></body></html>`
	p, _ := newTestPipeline()

	disabled, cerr := p.Run(context.Background(), runInputFor("https://example.com/", body))
	require.Nil(t, cerr)
	assert.Nil(t, disabled.Ngrams)

	in := runInputFor("https://example.com/", body)
	in.ExtractNgrams = true
	in.NgramSize = 2
	enabled, cerr := p.Run(context.Background(), in)
	require.Nil(t, cerr)
	assert.NotEmpty(t, enabled.Ngrams)
}
