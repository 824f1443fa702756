package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mascanho/seocrawl/internal/metadata"
	"github.com/mascanho/seocrawl/internal/storage"
)

var pageDBPath string

// pageCmd is the "read-one-url" UI command of §6: look up a single
// PageRecord in the store by its stored FinalURL and print it as JSON.
var pageCmd = &cobra.Command{
	Use:   "page <url>",
	Short: "Print the stored crawl record for a single URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := pageDBPath
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

		record, found, gerr := store.GetByURL(cmd.Context(), args[0])
		if gerr != nil {
			return fmt.Errorf("looking up %s: %w", args[0], gerr)
		}
		if !found {
			return fmt.Errorf("no crawl record found for %s", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	},
}

func init() {
	pageCmd.Flags().StringVar(&pageDBPath, "db-path", "", "sqlite database path (default <output-dir>/seocrawl.db)")
	rootCmd.AddCommand(pageCmd)
}
