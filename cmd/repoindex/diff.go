package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/repoindex/internal/differ"
	"github.com/standardbeagle/repoindex/internal/fileindex"
	"github.com/standardbeagle/repoindex/internal/scanner"
	"github.com/standardbeagle/repoindex/internal/types"
)

func diffCommand() *cli.Command {
	return &cli.Command{
		Name:  "diff",
		Usage: "Compare the last persisted FileIndex snapshot against a fresh scan",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Output the DiffResult as JSON"},
			&cli.BoolFlag{Name: "no-rename-detection", Usage: "Disable content-hash rename pairing"},
			&cli.BoolFlag{Name: "no-save", Usage: "Diff without persisting the new snapshot"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}

			blobPath := indexBlobPath(cfg.Project.Root)
			oldIdx := fileindex.New()
			if _, statErr := os.Stat(blobPath); statErr == nil {
				if err := oldIdx.Load(blobPath); err != nil {
					return fmt.Errorf("load prior index: %w", err)
				}
			}
			old := types.ScanResult{Files: oldIdx.GetAll()}

			scanCfg := scanConfigFrom(c)
			scanCfg.IncludePatterns = cfg.Include
			if len(cfg.Exclude) > 0 {
				scanCfg.ExcludePatterns = cfg.Exclude
			}
			updated := scanner.New().Scan(cfg.Project.Root, scanCfg)
			if updated.Error != nil {
				return fmt.Errorf("scan failed: %w", updated.Error)
			}

			detectRenames := !c.Bool("no-rename-detection")
			result := differ.Diff(old, updated, detectRenames)

			if !c.Bool("no-save") {
				newIdx := fileindex.New()
				for _, f := range updated.Files {
					newIdx.Add(f)
				}
				if err := os.MkdirAll(filepath.Dir(blobPath), 0755); err != nil {
					return fmt.Errorf("create index directory: %w", err)
				}
				if err := newIdx.Save(blobPath); err != nil {
					return fmt.Errorf("save index: %w", err)
				}
			}

			if c.Bool("json") {
				return printJSON(result)
			}

			fmt.Printf("diff: %d added, %d modified, %d deleted, %d renamed (%dms)\n",
				result.AddedCount, result.ModifiedCount, result.DeletedCount, result.RenamedCount, result.DiffTimeMs)
			for _, ch := range result.Changes {
				switch ch.Type {
				case types.ChangeRenamed:
					fmt.Printf("  renamed %s -> %s\n", ch.OldPath, ch.Path)
				case types.ChangeAdded:
					fmt.Printf("  added   %s\n", ch.Path)
				case types.ChangeModified:
					fmt.Printf("  modified %s\n", ch.Path)
				case types.ChangeDeleted:
					fmt.Printf("  deleted %s\n", ch.Path)
				}
			}
			return nil
		},
	}
}
