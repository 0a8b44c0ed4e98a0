package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/repoindex/internal/fileindex"
	"github.com/standardbeagle/repoindex/internal/types"
	"github.com/standardbeagle/repoindex/internal/watcher"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch the project root and re-index on debounced, batched changes",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "debounce-ms", Value: types.DefaultWatchDebounceMs},
			&cli.IntFlag{Name: "batch-delay-ms", Value: types.DefaultBatchDelayMs},
			&cli.StringSliceFlag{Name: "watch-ext", Usage: "Limit watching to these extensions (e.g. --watch-ext .go)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}

			wcfg := watcher.DefaultConfig()
			wcfg.DebounceMs = c.Int("debounce-ms")
			wcfg.BatchDelayMs = c.Int("batch-delay-ms")
			wcfg.WatchExtensions = c.StringSlice("watch-ext")
			wcfg.IgnorePatterns = cfg.Watcher.IgnorePatterns

			w, err := watcher.New(cfg.Project.Root, wcfg)
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			w.OnTerminalError(func(err error) {
				fmt.Fprintf(os.Stderr, "repoindex: watcher stopped: %v\n", err)
			})

			idx := fileindex.New()
			blobPath := indexBlobPath(cfg.Project.Root)
			if _, statErr := os.Stat(blobPath); statErr == nil {
				_ = idx.Load(blobPath)
			}

			reindex := func(batch []types.FileChange) {
				fmt.Printf("reindexing %d change(s)\n", len(batch))
				for _, ch := range batch {
					rel, relErr := filepath.Rel(cfg.Project.Root, ch.Path)
					if relErr != nil {
						rel = ch.Path
					}
					switch ch.Type {
					case types.ChangeDeleted:
						idx.Remove(rel)
					default:
						content, readErr := os.ReadFile(ch.Path)
						if readErr != nil {
							continue
						}
						idx.Add(types.FileEntry{
							Path:        rel,
							ContentHash: hashContent(content),
							Size:        int64(len(content)),
						})
					}
				}
				if err := os.MkdirAll(filepath.Dir(blobPath), 0755); err == nil {
					_ = idx.Save(blobPath)
				}
			}

			sched := watcher.NewScheduler(w.Events(), wcfg, reindex)

			if err := w.Start(); err != nil {
				return fmt.Errorf("start watcher: %w", err)
			}
			ctx, cancel := context.WithCancel(context.Background())
			sched.Run(ctx)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			fmt.Printf("watching %s (ctrl-c to stop)\n", cfg.Project.Root)
			<-sigCh

			cancel()
			sched.Stop()
			return w.Stop()
		},
	}
}
