package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mascanho/seocrawl/internal/crawl"
	"github.com/mascanho/seocrawl/internal/diff"
	"github.com/mascanho/seocrawl/internal/metadata"
	"github.com/mascanho/seocrawl/internal/storage"
)

var (
	diffPreviousDB string
	diffCurrentDB  string
)

// diffCmd is the "diff-between-last-two-crawls" UI command of §6: load two
// stored crawl snapshots and classify every URL as added, removed, or
// changed (§4.12). Each crawl is its own sqlite file, since the store
// always overwrites domain_crawl by URL and keeps no built-in history of
// the pages themselves (only the deep_crawls_history summary row).
var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Diff two crawl snapshots of the same site",
	RunE: func(cmd *cobra.Command, args []string) error {
		if diffPreviousDB == "" || diffCurrentDB == "" {
			return fmt.Errorf("both --previous-db and --current-db are required")
		}

		previous, err := loadCrawlSnapshot(cmd, diffPreviousDB)
		if err != nil {
			return fmt.Errorf("loading --previous-db: %w", err)
		}
		current, err := loadCrawlSnapshot(cmd, diffCurrentDB)
		if err != nil {
			return fmt.Errorf("loading --current-db: %w", err)
		}

		result := diff.Compare(previous, current)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func loadCrawlSnapshot(cmd *cobra.Command, path string) ([]crawl.PageRecord, error) {
	store, err := storage.Open(path, metadata.NoopSink{})
	if err != nil {
		return nil, err
	}
	defer store.Close()
	if ierr := store.Initialize(cmd.Context()); ierr != nil {
		return nil, ierr
	}
	records, lerr := store.LoadAll(cmd.Context())
	if lerr != nil {
		return nil, lerr
	}
	return records, nil
}

func init() {
	diffCmd.Flags().StringVar(&diffPreviousDB, "previous-db", "", "sqlite database path for the earlier crawl")
	diffCmd.Flags().StringVar(&diffCurrentDB, "current-db", "", "sqlite database path for the later crawl")
	rootCmd.AddCommand(diffCmd)
}
