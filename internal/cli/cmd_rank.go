package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mascanho/seocrawl/internal/linkgraph"
	"github.com/mascanho/seocrawl/internal/metadata"
	"github.com/mascanho/seocrawl/internal/storage"
)

var (
	rankDBPath string
	rankTop    int
)

// rankCmd is the supplemented PageRank-style link-graph scorer: a
// read-only aggregate over a completed crawl's Store, not a live crawl
// operation. It never touches the network; every score comes from the
// internal-link graph the crawl already persisted.
var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Score crawled pages by internal-link importance (PageRank-style)",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := rankDBPath
		if path == "" {
			path = resolveDBPath(outputDir)
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

		scores := linkgraph.Rank(records)
		if rankTop > 0 && rankTop < len(scores) {
			scores = scores[:rankTop]
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(scores)
	},
}

func init() {
	rankCmd.Flags().StringVar(&rankDBPath, "db-path", "", "sqlite database path (default <output-dir>/seocrawl.db)")
	rankCmd.Flags().IntVar(&rankTop, "top", 0, "limit output to the top N ranked pages (0 for all)")
	rootCmd.AddCommand(rankCmd)
}
