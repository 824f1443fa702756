package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mascanho/seocrawl/internal/metadata"
	"github.com/mascanho/seocrawl/internal/storage"
)

var (
	cloneDBPath string
	cloneDomain string
	cloneStatus string
)

// cloneCmd is the "clone-batched-into-persistent" UI command of §6: it
// folds the currently batched domain_crawl rows (one row per URL,
// overwritten on every recrawl) into a single durable
// deep_crawls_history summary row, the same aggregate a desktop shell
// would show on a crawl-history timeline.
var cloneCmd = &cobra.Command{
	Use:   "clone",
	Short: "Clone the current batch of crawled pages into a persistent crawl-history entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cloneDBPath
		if path == "" {
			path = resolveDBPath(outputDir)
		}
		if cloneDomain == "" {
			return fmt.Errorf("--domain is required")
		}

		store, err := storage.Open(path, metadata.NoopSink{})
		if err != nil {
			return fmt.Errorf("opening store at %s: %w", path, err)
		}
		defer store.Close()
		if ierr := store.Initialize(cmd.Context()); ierr != nil {
			return fmt.Errorf("initializing store: %w", ierr)
		}

		records, lerr := store.LoadAll(cmd.Context())
		if lerr != nil {
			return fmt.Errorf("loading crawl data: %w", lerr)
		}

		entry := storage.CrawlHistoryEntry{
			Domain: cloneDomain,
			Date:   time.Now(),
			Status: cloneStatus,
		}
		for _, r := range records {
			if r.StatusCode == 0 || r.StatusCode >= 400 {
				entry.Errors++
			}
			entry.TotalLinks += len(r.InternalLinks) + len(r.ExternalLinks)
			entry.TotalInternalLinks += len(r.InternalLinks)
			entry.TotalExternalLinks += len(r.ExternalLinks)
			if r.Indexable {
				entry.IndexablePages++
			} else {
				entry.NotIndexablePages++
			}
		}
		entry.Pages = len(records)

		if herr := store.RecordCrawlHistory(cmd.Context(), entry); herr != nil {
			return fmt.Errorf("recording crawl history: %w", herr)
		}

		fmt.Printf("Cloned %d pages for %s into deep_crawls_history (status=%s)\n", entry.Pages, cloneDomain, entry.Status)
		return nil
	},
}

func init() {
	cloneCmd.Flags().StringVar(&cloneDBPath, "db-path", "", "sqlite database path (default <output-dir>/seocrawl.db)")
	cloneCmd.Flags().StringVar(&cloneDomain, "domain", "", "domain label for the deep_crawls_history row")
	cloneCmd.Flags().StringVar(&cloneStatus, "status", "completed", "status label for the deep_crawls_history row")
	rootCmd.AddCommand(cloneCmd)
}
