package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/repoindex/internal/graph"
	"github.com/standardbeagle/repoindex/internal/scanner"
	"github.com/standardbeagle/repoindex/internal/search"
	"github.com/standardbeagle/repoindex/internal/types"
)

// loadSymbols reads the external symbol producer's contract shape (§6): a
// JSON array of types.Symbol. Absence of a --symbols-file means the code
// index is still fully searchable; only symbol search is empty.
func loadSymbols(path string) ([]types.Symbol, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read symbols file: %w", err)
	}
	var symbols []types.Symbol
	if err := json.Unmarshal(raw, &symbols); err != nil {
		return nil, fmt.Errorf("parse symbols file: %w", err)
	}
	return symbols, nil
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search file contents or symbols with BM25 ranking",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Output SearchResults as JSON"},
			&cli.BoolFlag{Name: "symbols", Usage: "Search the symbol index instead of file contents"},
			&cli.IntFlag{Name: "limit", Value: 10, Usage: "Maximum number of results"},
			&cli.StringFlag{Name: "symbols-file", Usage: "JSON file of symbols (external parser output, §6)"},
			&cli.StringFlag{Name: "edges-file", Usage: "JSON adjacency-list file used to compute graph-boost for code search"},
		},
		Action: func(c *cli.Context) error {
			query := c.Args().First()
			if query == "" {
				return fmt.Errorf("search requires a query argument")
			}

			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}

			scanCfg := scanner.DefaultConfig()
			scanCfg.IncludePatterns = cfg.Include
			if len(cfg.Exclude) > 0 {
				scanCfg.ExcludePatterns = cfg.Exclude
			}
			result := scanner.New().Scan(cfg.Project.Root, scanCfg)
			if result.Error != nil {
				return fmt.Errorf("scan failed: %w", result.Error)
			}

			symbols, err := loadSymbols(c.String("symbols-file"))
			if err != nil {
				return err
			}
			symbolsByFile := make(map[string][]types.Symbol)
			for _, sym := range symbols {
				symbolsByFile[sym.FilePath] = append(symbolsByFile[sym.FilePath], sym)
			}

			coord := search.New()
			for _, f := range result.Files {
				content, readErr := os.ReadFile(filepath.Join(cfg.Project.Root, f.Path))
				if readErr != nil {
					continue
				}
				coord.UpdateFile(f.Path, string(content), symbolsByFile[f.Path])
			}

			if edgesPath := c.String("edges-file"); edgesPath != "" {
				g, loadErr := loadGraphFromFile(edgesPath)
				if loadErr != nil {
					return loadErr
				}
				coord.RefreshDependentCounts(g)
			} else {
				coord.RefreshDependentCounts(graph.New())
			}

			limit := c.Int("limit")
			if c.Bool("symbols") {
				results, suggestions := coord.SearchSymbols(query, limit)
				if c.Bool("json") {
					return printJSON(struct {
						Results     []types.SearchResult `json:"results"`
						Suggestions []string             `json:"suggestions,omitempty"`
					}{results, suggestions})
				}
				if len(results) == 0 && len(suggestions) > 0 {
					fmt.Printf("no symbol matches for %q; did you mean: %v\n", query, suggestions)
					return nil
				}
				for _, r := range results {
					fmt.Printf("%s:%d  %s (%s)  score=%.3f\n", r.FilePath, r.Line, r.SymbolName, r.SymbolKind, r.Score)
				}
				return nil
			}

			results := coord.SearchCode(query, limit)
			if c.Bool("json") {
				return printJSON(results)
			}
			for _, r := range results {
				fmt.Printf("%s  score=%.3f\n", r.FilePath, r.Score)
				if r.Snippet != "" {
					fmt.Println(indent(r.Snippet))
				}
			}
			return nil
		},
	}
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}
