package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/repoindex/internal/fileindex"
	"github.com/standardbeagle/repoindex/internal/scanner"
	"github.com/standardbeagle/repoindex/internal/sourcemap"
)

// hashContent fingerprints file bytes the same way the Scanner does,
// for incremental re-hashing from the Watcher's reindex callback.
func hashContent(content []byte) uint64 {
	return xxhash.Sum64(content)
}

// defaultIndexDir is the persisted-state directory named in §6, scoped to
// this project's own config-file convention (.repoindex.kdl alongside it).
const defaultIndexDir = ".repoindex"

func indexBlobPath(root string) string {
	return filepath.Join(root, defaultIndexDir, "index.json")
}

func scanConfigFrom(c *cli.Context) scanner.Config {
	cfg := scanner.DefaultConfig()
	if c.Bool("no-hash") {
		cfg.ComputeContentHash = false
	}
	if v := c.Int64("max-file-size"); v > 0 {
		cfg.MaxFileSize = v
	}
	if v := c.Int("workers"); v > 0 {
		cfg.ParallelWorkers = v
	}
	cfg.FollowSymlinks = c.Bool("follow-symlinks")
	return cfg
}

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Walk the project root and persist a FileIndex snapshot",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Output the ScanResult as JSON"},
			&cli.BoolFlag{Name: "no-hash", Usage: "Skip content hashing (faster, disables modification and rename detection)"},
			&cli.BoolFlag{Name: "follow-symlinks", Usage: "Follow symbolic links while walking"},
			&cli.Int64Flag{Name: "max-file-size", Usage: "Skip files larger than this many bytes"},
			&cli.IntFlag{Name: "workers", Usage: "Bounded worker-pool size for hashing I/O"},
			&cli.BoolFlag{Name: "no-save", Usage: "Scan without persisting a FileIndex snapshot"},
			&cli.BoolFlag{Name: "source-maps", Usage: "Discover *.js.map files under root and fold their embedded sources into the scan"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}

			scanCfg := scanConfigFrom(c)
			scanCfg.IncludePatterns = cfg.Include
			if len(cfg.Exclude) > 0 {
				scanCfg.ExcludePatterns = cfg.Exclude
			}

			result := scanner.New().Scan(cfg.Project.Root, scanCfg)
			if result.Error != nil {
				return fmt.Errorf("scan failed: %w", result.Error)
			}

			if c.Bool("source-maps") {
				mapPaths, discErr := sourcemap.Discover(cfg.Project.Root)
				if discErr != nil {
					return fmt.Errorf("discover source maps: %w", discErr)
				}
				if len(mapPaths) > 0 {
					extracted, extractErr := sourcemap.Extract(mapPaths)
					if extractErr != nil {
						return fmt.Errorf("extract source maps: %w", extractErr)
					}
					result = scanner.MergeVirtualFiles(result, extracted.Files)
				}
			}

			if !c.Bool("no-save") {
				idx := fileindex.New()
				for _, f := range result.Files {
					idx.Add(f)
				}
				blobPath := indexBlobPath(cfg.Project.Root)
				if err := os.MkdirAll(filepath.Dir(blobPath), 0755); err != nil {
					return fmt.Errorf("create index directory: %w", err)
				}
				if err := idx.Save(blobPath); err != nil {
					return fmt.Errorf("save index: %w", err)
				}
			}

			if c.Bool("json") {
				return printJSON(result)
			}

			fmt.Printf("scanned %s: %d files, %d dirs, %d bytes, %d skipped, %dms\n",
				cfg.Project.Root, result.TotalFiles, result.TotalDirs, result.TotalSize,
				result.SkippedFiles, result.ScanTimeMs)
			return nil
		},
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
