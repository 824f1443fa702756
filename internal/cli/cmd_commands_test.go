package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mascanho/seocrawl/internal/crawl"
	"github.com/mascanho/seocrawl/internal/metadata"
	"github.com/mascanho/seocrawl/internal/storage"
)

func TestGroupRecordsBy_CountsByStatusCode(t *testing.T) {
	records := []crawl.PageRecord{
		{StatusCode: 200}, {StatusCode: 200}, {StatusCode: 404},
	}
	counts, err := groupRecordsBy(groupByStatusCode, records)
	require.NoError(t, err)
	assert.Equal(t, 2, counts["200"])
	assert.Equal(t, 1, counts["404"])
}

func TestGroupRecordsBy_CountsByIndexable(t *testing.T) {
	records := []crawl.PageRecord{
		{Indexable: true}, {Indexable: true}, {Indexable: false},
	}
	counts, err := groupRecordsBy(groupByIndexable, records)
	require.NoError(t, err)
	assert.Equal(t, 2, counts["true"])
	assert.Equal(t, 1, counts["false"])
}

func TestGroupRecordsBy_RejectsUnknownKey(t *testing.T) {
	_, err := groupRecordsBy("nonsense", nil)
	assert.Error(t, err)
}

func TestResolveDBPath_DefaultsUnderOutputDir(t *testing.T) {
	t.Cleanup(func() { dbPath = "" })
	dbPath = ""
	assert.Equal(t, filepath.Join("out", "seocrawl.db"), resolveDBPath("out"))

	dbPath = "/tmp/custom.db"
	assert.Equal(t, "/tmp/custom.db", resolveDBPath("out"))
}

func TestCancelCmd_SignalsProcessFromPIDFile(t *testing.T) {
	t.Cleanup(ResetFlags)
	ResetFlags()

	// A real, harmless child process to target: never the test binary
	// itself, since cancel delivers SIGTERM for real.
	child := exec.Command("sleep", "30")
	require.NoError(t, child.Start())

	dir := t.TempDir()
	pidPath := filepath.Join(dir, "seocrawl.pid")
	require.NoError(t, os.WriteFile(pidPath, []byte(fmt.Sprintf("%d", child.Process.Pid)), 0o644))

	pidFile = pidPath
	t.Cleanup(func() { pidFile = "" })

	cancelCmd.SetContext(context.Background())
	err := cancelCmd.RunE(cancelCmd, nil)
	require.NoError(t, err)

	waitErr := child.Wait()
	assert.Error(t, waitErr, "expected the child to have been terminated by the cancel signal")
}

func TestStartCmd_CrawlsSeedAndPersistsToStore(t *testing.T) {
	t.Cleanup(ResetFlags)
	ResetFlags()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><p>Enough words in this fixture body to clear the thin-content render threshold for the test.</p></body></html>`)
	}))
	defer server.Close()

	dir := t.TempDir()
	SetSeedURLsForTest([]string{server.URL})
	SetOutputDirForTest(dir)
	SetConcurrencyForTest(1)
	SetMaxPagesForTest(1)
	dbPath = filepath.Join(dir, "test.db")
	t.Cleanup(func() { dbPath = "" })

	startCmd.SetContext(context.Background())
	err := startCmd.RunE(startCmd, nil)
	require.NoError(t, err)

	_, statErr := os.Stat(dbPath)
	require.NoError(t, statErr, "expected start to create the sqlite database file")
}

func TestRankCmd_RanksHubAboveLeaf(t *testing.T) {
	t.Cleanup(ResetFlags)
	ResetFlags()

	dir := t.TempDir()
	dsn := filepath.Join(dir, "rank.db")

	store, err := storage.Open(dsn, metadata.NoopSink{})
	require.Nil(t, err)
	require.Nil(t, store.Initialize(context.Background()))

	_, werr := store.Upsert(context.Background(), crawl.PageRecord{
		FinalURL: "https://example.com/",
		InternalLinks: []crawl.LinkRef{
			{URL: "https://example.com/hub"},
		},
	})
	require.Nil(t, werr)
	_, werr = store.Upsert(context.Background(), crawl.PageRecord{
		FinalURL: "https://example.com/hub",
		InternalLinks: []crawl.LinkRef{
			{URL: "https://example.com/leaf"},
		},
	})
	require.Nil(t, werr)
	_, werr = store.Upsert(context.Background(), crawl.PageRecord{FinalURL: "https://example.com/leaf"})
	require.Nil(t, werr)
	require.NoError(t, store.Close())

	rankDBPath = dsn
	t.Cleanup(func() { rankDBPath = "" })

	rankCmd.SetContext(context.Background())
	runErr := rankCmd.RunE(rankCmd, nil)
	require.NoError(t, runErr)
}
