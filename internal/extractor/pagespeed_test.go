package extractor_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mascanho/seocrawl/internal/extractor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPPageSpeedClient_FetchDecodesPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "mobile", r.URL.Query().Get("strategy"))
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		json.NewEncoder(w).Encode(map[string]any{"score": 92})
	}))
	defer server.Close()

	client := extractor.NewHTTPPageSpeedClient(server.URL, "mobile", server.Client())
	payload, err := client.Fetch(context.Background(), "https://example.com/", "secret")
	require.NoError(t, err)
	assert.Equal(t, float64(92), payload["score"])
}

func TestHTTPPageSpeedClient_FetchReturnsErrorOnNonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := extractor.NewHTTPPageSpeedClient(server.URL, "desktop", server.Client())
	_, err := client.Fetch(context.Background(), "https://example.com/", "")
	assert.Error(t, err)
}

func TestNoopPageSpeedClient_FetchReturnsNil(t *testing.T) {
	client := extractor.NoopPageSpeedClient{}
	payload, err := client.Fetch(context.Background(), "https://example.com/", "")
	require.NoError(t, err)
	assert.Nil(t, payload)
}
