package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/repoindex/internal/config"
	"github.com/standardbeagle/repoindex/internal/version"
)

// Version is surfaced on the CLI's --version flag.
var Version = version.Version

// loadConfigWithOverrides loads configuration and applies CLI flag
// overrides, mirroring the teacher's cmd/lci override-precedence shape:
// CLI flags win over the project/global .repoindex.kdl merge.
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	configPath := c.String("config")

	if rootFlag := c.String("root"); rootFlag != "" && configPath == ".repoindex.kdl" {
		configPath = filepath.Join(rootFlag, ".repoindex.kdl")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludeFlags...)
	}
	if rootFlag := c.String("root"); rootFlag != "" {
		absRoot, err := filepath.Abs(rootFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", rootFlag, err)
		}
		cfg.Project.Root = absRoot
	}
	if cfg.Project.Root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		cfg.Project.Root = cwd
	}

	return cfg, nil
}

func main() {
	app := &cli.App{
		Name:                   "repoindex",
		Usage:                  "Incremental code index engine: scan, diff, search, and graph a repository",
		Version:                Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   ".repoindex.kdl",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Include files matching glob patterns (e.g., --include '*.go')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching glob patterns (e.g., --exclude '**/testdata/**')",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory to index (overrides config)",
			},
		},
		Commands: []*cli.Command{
			scanCommand(),
			diffCommand(),
			searchCommand(),
			graphCommand(),
			watchCommand(),
			validateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "repoindex: %v\n", err)
		os.Exit(1)
	}
}
