package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/yokharian/catalog-engine/cmd/catalog-cli/ui"
)

// newWatchCmd creates the watch subcommand.
func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "Watch a directory and ingest CSV feeds as they arrive",
		Long: `Watch monitors a directory for new or rewritten *.csv files and runs each
one through the ingestion pipeline once writes settle. Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]

			info, err := os.Stat(dir)
			if err != nil {
				return fmt.Errorf("stat watch dir: %w", err)
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}

			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer watcher.Close()

			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("watch %s: %w", dir, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			debounce := cfg.Ingest.WatchDebounce
			if debounce <= 0 {
				debounce = 2 * time.Second
			}

			ui.Info("Watching %s for CSV feeds", dir)

			// A feed being copied in fires a burst of writes; the timer per
			// path delays ingestion until the burst ends.
			var (
				mu     sync.Mutex
				timers = make(map[string]*time.Timer)
			)
			ingestLater := func(path string) {
				mu.Lock()
				defer mu.Unlock()

				if timer, ok := timers[path]; ok {
					timer.Reset(debounce)
					return
				}
				timers[path] = time.AfterFunc(debounce, func() {
					mu.Lock()
					delete(timers, path)
					mu.Unlock()

					if ctx.Err() != nil {
						return
					}
					report, err := engine.IngestFile(ctx, path)
					if err != nil {
						ui.Error("%s: %v", path, err)
						return
					}
					printReport(report)
				})
			}

			for {
				select {
				case <-ctx.Done():
					ui.Info("Stopping watcher")
					return nil
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
						continue
					}
					if !strings.EqualFold(filepath.Ext(event.Name), ".csv") {
						continue
					}
					ingestLater(event.Name)
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					ui.Warning("watch error: %v", err)
				}
			}
		},
	}
}
