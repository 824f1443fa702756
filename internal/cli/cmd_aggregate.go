package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mascanho/seocrawl/internal/crawl"
	"github.com/mascanho/seocrawl/internal/metadata"
	"github.com/mascanho/seocrawl/internal/storage"
)

var (
	aggregateDBPath string
	aggregateBy     string
)

// aggregateGroupKeys names the fields the "aggregated-crawl-data" UI
// command of §6 can group by.
const (
	groupByStatusCode  = "status_code"
	groupByContentType = "content_type"
	groupByIndexable   = "indexable"
	groupByURLDepth    = "url_depth"
)

// aggregateCmd is the "aggregated-crawl-data" UI command of §6: load every
// stored PageRecord and count how many fall into each distinct value of
// the chosen grouping key.
var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Group the stored crawl data by a chosen key and print counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := aggregateDBPath
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

		groups, err := groupRecordsBy(aggregateBy, records)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(groups)
	},
}

func groupRecordsBy(key string, records []crawl.PageRecord) (map[string]int, error) {
	switch key {
	case groupByStatusCode, groupByContentType, groupByIndexable, groupByURLDepth:
	default:
		return nil, fmt.Errorf("unsupported --by key %q (want one of %s, %s, %s, %s)",
			key, groupByStatusCode, groupByContentType, groupByIndexable, groupByURLDepth)
	}

	counts := make(map[string]int)
	for _, r := range records {
		var groupKey string
		switch key {
		case groupByStatusCode:
			groupKey = strconv.Itoa(r.StatusCode)
		case groupByContentType:
			groupKey = r.ContentType
		case groupByIndexable:
			groupKey = strconv.FormatBool(r.Indexable)
		case groupByURLDepth:
			groupKey = strconv.Itoa(r.URLDepth)
		}
		counts[groupKey]++
	}
	return counts, nil
}

func init() {
	aggregateCmd.Flags().StringVar(&aggregateDBPath, "db-path", "", "sqlite database path (default <output-dir>/seocrawl.db)")
	aggregateCmd.Flags().StringVar(&aggregateBy, "by", groupByStatusCode, "grouping key: status_code, content_type, indexable, or url_depth")
	rootCmd.AddCommand(aggregateCmd)
}
