package config

import (
	"os"
	"runtime"

	"github.com/standardbeagle/repoindex/internal/types"
)

// Config is the root configuration tree loaded from .repoindex.kdl, per §6.
type Config struct {
	Version              int
	Project              Project
	Index                Index
	Watcher              Watcher
	Performance          Performance
	Search               Search
	Include              []string
	Exclude              []string
	PropagationConfigDir string
}

type Project struct {
	Root string
	Name string
}

// Index configures the Scanner (§4.A): followSymlinks/computeContentHash/
// detectRenames/maxFileSize/parallelWorkers, plus the legacy smart-size
// knobs the teacher's scanner still honors. Include and exclude patterns
// are not part of Index; they live in Config.Include and Config.Exclude.
type Index struct {
	MaxFileSize      int64
	MaxTotalSizeMB   int64
	MaxFileCount     int
	FollowSymlinks   bool
	ComputeContentHash bool
	DetectRenames    bool
	ParallelWorkers  int
	SmartSizeControl bool
	PriorityMode     string // "recent", "small", "important"
	RespectGitignore bool
}

// Watcher configures the Watcher + Reindex Scheduler (§4.H / §6):
// debounceMs, batchDelayMs, watchExtensions, ignorePatterns, recursive.
type Watcher struct {
	Enabled         bool
	DebounceMs      int
	BatchDelayMs    int
	WatchExtensions []string
	IgnorePatterns  []string
	Recursive       bool
}

type Performance struct {
	MaxMemoryMB         int
	MaxGoroutines       int
	ParallelFileWorkers int // 0 = auto-detect (NumCPU)
	IndexingTimeoutSec  int
	StartupDelayMs      int
}

type Search struct {
	DefaultContextLines    int
	MaxResults             int
	EnableFuzzy            bool
	MaxContextLines        int
	MergeFileResults       bool
	EnsureCompleteStmt     bool
	IncludeLeadingComments bool
}

func Load(path string) (*Config, error) {
	return LoadWithRoot(path, "")
}

func LoadWithRoot(path string, rootDir string) (*Config, error) {
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}

	homeDir, err := os.UserHomeDir()
	var baseConfig *Config
	if err == nil {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	var projectConfig *Config
	if kdlCfg, err := LoadKDL(searchDir); err == nil && kdlCfg != nil {
		projectConfig = kdlCfg
	} else if err != nil {
		return nil, err
	}

	if baseConfig != nil && projectConfig != nil {
		return mergeConfigs(baseConfig, projectConfig), nil
	} else if projectConfig != nil {
		return projectConfig, nil
	} else if baseConfig != nil {
		baseConfig.Project.Root = searchDir
		return baseConfig, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	cfg := &Config{
		Version: 1,
		Project: Project{Root: cwd},
		Index: Index{
			MaxFileSize:        types.DefaultMaxFileSize,
			MaxTotalSizeMB:     types.DefaultMaxTotalSizeMB,
			MaxFileCount:       types.DefaultMaxFileCount,
			FollowSymlinks:     false,
			ComputeContentHash: true,
			DetectRenames:      true,
			ParallelWorkers:    types.DefaultParallelWorkers,
			SmartSizeControl:   true,
			PriorityMode:       "recent",
			RespectGitignore:   true,
		},
		Watcher: Watcher{
			Enabled:      true,
			DebounceMs:   types.DefaultWatchDebounceMs,
			BatchDelayMs: types.DefaultBatchDelayMs,
			Recursive:    true,
		},
		Performance: Performance{
			MaxMemoryMB:         500,
			MaxGoroutines:       runtime.NumCPU(),
			ParallelFileWorkers: 0,
			IndexingTimeoutSec:  120,
			StartupDelayMs:      1500,
		},
		Search: Search{
			DefaultContextLines:    0,
			MaxResults:             100,
			EnableFuzzy:            true,
			MaxContextLines:        100,
			MergeFileResults:       true,
			EnsureCompleteStmt:     false,
			IncludeLeadingComments: true,
		},
		Include: []string{},
		Exclude: defaultExclude(),
	}

	cfg.EnrichExclusionsWithBuildArtifacts()

	return cfg, nil
}

func defaultExclude() []string {
	return []string{
		"**/.git/**",
		"**/.*/**",
		"**/node_modules/**",
		"**/vendor/**",
		"**/bower_components/**",
		"**/jspm_packages/**",
		"**/dist/**",
		"**/build/**",
		"**/out/**",
		"**/target/**",
		"**/bin/**",
		"**/obj/**",
		"**/*.min.js",
		"**/*.min.css",
		"**/*.bundle.js",
		"**/*.chunk.js",
		"**/*.min.map",
		"**/__pycache__/**",
		"**/*.pyc",
		"**/Thumbs.db",
		"**/desktop.ini",
		"**/logs/**",
		"**/*.log",
	}
}

// mergeConfigs merges a base config with a project config. Project
// config takes precedence, but base exclusions are preserved.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		excludeMap := make(map[string]bool)
		for _, pattern := range base.Exclude {
			excludeMap[pattern] = true
		}
		for _, pattern := range project.Exclude {
			excludeMap[pattern] = true
		}
		merged.Exclude = make([]string, 0, len(excludeMap))
		for pattern := range excludeMap {
			merged.Exclude = append(merged.Exclude, pattern)
		}
	}

	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}

	return &merged
}

// EnrichExclusionsWithBuildArtifacts detects build output directories from
// language configs and adds them to the exclusion list.
func (c *Config) EnrichExclusionsWithBuildArtifacts() {
	if c.Project.Root == "" {
		return
	}

	detector := NewBuildArtifactDetector(c.Project.Root)
	detectedPatterns := detector.DetectOutputDirectories()

	if len(detectedPatterns) > 0 {
		c.Exclude = append(c.Exclude, detectedPatterns...)
		c.Exclude = DeduplicatePatterns(c.Exclude)
	}
}
