package extractor_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mascanho/seocrawl/internal/crawl"
	"github.com/mascanho/seocrawl/internal/extractor"
	"github.com/stretchr/testify/assert"
)

func TestLinkStatusChecker_CheckAll_FillsStatusCodes(t *testing.T) {
	okServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer okServer.Close()
	notFoundServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer notFoundServer.Close()

	checker := extractor.NewLinkStatusChecker(okServer.Client(), "seocrawl-test")
	links := []crawl.LinkRef{
		{URL: okServer.URL},
		{URL: notFoundServer.URL},
	}
	checker.CheckAll(context.Background(), links)

	assert.Equal(t, http.StatusOK, links[0].StatusCode)
	assert.Equal(t, http.StatusNotFound, links[1].StatusCode)
}

func TestLinkStatusChecker_CheckAll_UnreachableLinkLeavesZeroStatus(t *testing.T) {
	checker := extractor.NewLinkStatusChecker(nil, "")
	links := []crawl.LinkRef{{URL: "http://127.0.0.1:1"}}
	checker.CheckAll(context.Background(), links)
	assert.Equal(t, 0, links[0].StatusCode)
}
