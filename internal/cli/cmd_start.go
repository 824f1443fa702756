package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mascanho/seocrawl/internal/events"
	"github.com/mascanho/seocrawl/internal/metadata"
	"github.com/mascanho/seocrawl/internal/scheduler"
	"github.com/mascanho/seocrawl/internal/storage"
)

var (
	dbPath  string
	pidFile string
)

// startCmd is the "start" UI command of §6: build a Config from the
// persistent flags (or --config-file), open the store, and drive a crawl
// to completion through the Scheduler. Progress events are printed to
// stdout as they arrive; the final summary and write counts print on
// exit.
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a crawl from one or more seed URLs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(seedURLs) == 0 {
			return fmt.Errorf("--seed-url is required: provide at least one seed URL to start crawling")
		}
		parsedURLs, err := parseSeedURLs(seedURLs)
		if err != nil {
			return err
		}
		cfg, err := InitConfigWithError(parsedURLs)
		if err != nil {
			return err
		}

		if !cfg.DryRun() {
			if err := os.MkdirAll(cfg.OutputDir(), 0o755); err != nil {
				return fmt.Errorf("creating output dir: %w", err)
			}
		}

		resolvedDBPath := resolveDBPath(cfg.OutputDir())
		recorder := metadata.NewRecorder("start")

		var sink storage.Sink
		var store *storage.Store
		if !cfg.DryRun() {
			store, err = storage.Open(resolvedDBPath, &recorder)
			if err != nil {
				return fmt.Errorf("opening store at %s: %w", resolvedDBPath, err)
			}
			defer store.Close()
			if ierr := store.Initialize(cmd.Context()); ierr != nil {
				return fmt.Errorf("initializing store: %w", ierr)
			}
			sink = store
		}

		if err := writePIDFile(resolvedPIDFile(cfg.OutputDir())); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not write pid file: %s\n", err)
		}
		defer os.Remove(resolvedPIDFile(cfg.OutputDir()))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		bus := events.NewBus()
		updates := bus.Subscribe(256)
		done := make(chan struct{})
		go printProgress(updates, done)

		sched := scheduler.NewScheduler(ctx, &recorder, &recorder, bus, sink)
		execution, err := sched.ExecuteCrawling(cfg)
		bus.Close()
		<-done
		if err != nil {
			return fmt.Errorf("crawl aborted: %w", err)
		}

		fmt.Printf("\nCrawl finished in %s: %d pages crawled, %d failed, %d rows written\n",
			execution.Duration, execution.PagesCrawled, execution.PagesFailed, len(execution.WriteResults))
		if store != nil {
			fmt.Printf("Store: %s\n", resolvedDBPath)
		}
		return nil
	},
}

func printProgress(updates <-chan events.Event, done chan<- struct{}) {
	defer close(done)
	for ev := range updates {
		switch ev.Kind {
		case events.KindProgressUpdate:
			p := ev.Progress
			fmt.Printf("\rcrawled=%d failed=%d discovered=%d (%.1f%%)",
				p.CrawledURLs, p.FailedURLsCount, p.DiscoveredURLs, p.Percentage)
		case events.KindCrawlResult:
			// the start command only surfaces aggregate progress; a
			// higher-verbosity flag could print ev.Result per page.
		}
	}
}

// cancelCmd is the "cancel" UI command of §6: it has no in-process handle
// to a running crawl (start and cancel are separate CLI invocations), so
// it signals the running start process via the pid file start wrote.
var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel a crawl started with 'start' in another process",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolvedPIDFile(outputDir)
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading pid file %s: %w", path, err)
		}
		pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
		if err != nil {
			return fmt.Errorf("pid file %s does not contain a valid pid: %w", path, err)
		}
		proc, err := os.FindProcess(pid)
		if err != nil {
			return fmt.Errorf("finding process %d: %w", pid, err)
		}
		if err := proc.Signal(syscall.SIGTERM); err != nil {
			return fmt.Errorf("signaling process %d: %w", pid, err)
		}
		fmt.Printf("Sent cancellation signal to crawl process %d\n", pid)
		return nil
	},
}

func resolveDBPath(outputDir string) string {
	if dbPath != "" {
		return dbPath
	}
	return filepath.Join(outputDir, "seocrawl.db")
}

func resolvedPIDFile(outputDir string) string {
	if pidFile != "" {
		return pidFile
	}
	return filepath.Join(outputDir, "seocrawl.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func init() {
	startCmd.Flags().StringVar(&dbPath, "db-path", "", "sqlite database path (default <output-dir>/seocrawl.db)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "pid file path for 'cancel' to target (default <output-dir>/seocrawl.pid)")
	cancelCmd.Flags().StringVar(&pidFile, "pid-file", "", "pid file written by 'start' (default <output-dir>/seocrawl.pid)")
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(cancelCmd)
}
