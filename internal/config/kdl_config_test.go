package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKDL_Defaults(t *testing.T) {
	cfg, err := parseKDL("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.True(t, cfg.Index.ComputeContentHash)
	assert.True(t, cfg.Index.DetectRenames)
	assert.Equal(t, 4, cfg.Index.ParallelWorkers)
	assert.True(t, cfg.Watcher.Enabled)
	assert.Equal(t, 300, cfg.Watcher.DebounceMs)
	assert.Equal(t, 1000, cfg.Watcher.BatchDelayMs)
	assert.True(t, cfg.Watcher.Recursive)
}

func TestParseKDL_WatcherConfig(t *testing.T) {
	kdlContent := `
watcher {
    enabled true
    debounce_ms 50
    batch_delay_ms 200
    recursive false
    watch_extensions {
        ".go"
        ".md"
    }
    ignore_patterns {
        "**/*.tmp"
    }
}
`
	cfg, err := parseKDL(kdlContent)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.True(t, cfg.Watcher.Enabled)
	assert.Equal(t, 50, cfg.Watcher.DebounceMs)
	assert.Equal(t, 200, cfg.Watcher.BatchDelayMs)
	assert.False(t, cfg.Watcher.Recursive)
	assert.Contains(t, cfg.Watcher.WatchExtensions, ".go")
	assert.Contains(t, cfg.Watcher.IgnorePatterns, "**/*.tmp")
}

func TestParseKDL_WatcherDisabled(t *testing.T) {
	kdlContent := `
watcher {
    enabled false
}
`
	cfg, err := parseKDL(kdlContent)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.False(t, cfg.Watcher.Enabled)
	// Other values should still be defaults
	assert.Equal(t, 300, cfg.Watcher.DebounceMs)
}

func TestParseKDL_PartialIndexConfig(t *testing.T) {
	kdlContent := `
index {
    parallel_workers 16
}
`
	cfg, err := parseKDL(kdlContent)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Only parallel_workers changed, others should be defaults
	assert.Equal(t, 16, cfg.Index.ParallelWorkers)
	assert.True(t, cfg.Index.ComputeContentHash)
	assert.True(t, cfg.Index.DetectRenames)
}

func TestParseKDL_IndexSizeString(t *testing.T) {
	kdlContent := `
index {
    max_file_size "5MB"
}
`
	cfg, err := parseKDL(kdlContent)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, int64(5*1024*1024), cfg.Index.MaxFileSize)
}

func TestParseKDL_FullConfig(t *testing.T) {
	kdlContent := `
project {
    root "."
    name "test-project"
}

index {
    max_file_size "5MB"
    max_file_count 5000
    respect_gitignore true
    compute_content_hash false
    detect_renames false
    parallel_workers 2
}

watcher {
    debounce_ms 500
    batch_delay_ms 2000
}

performance {
    max_memory_mb 256
    max_goroutines 8
}

search {
    max_results 50
    enable_fuzzy true
}

exclude "**/.git/**" "**/node_modules/**"
`
	cfg, err := parseKDL(kdlContent)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "test-project", cfg.Project.Name)
	assert.Equal(t, int64(5*1024*1024), cfg.Index.MaxFileSize)
	assert.Equal(t, 5000, cfg.Index.MaxFileCount)
	assert.False(t, cfg.Index.ComputeContentHash)
	assert.False(t, cfg.Index.DetectRenames)
	assert.Equal(t, 2, cfg.Index.ParallelWorkers)
	assert.Equal(t, 500, cfg.Watcher.DebounceMs)
	assert.Equal(t, 2000, cfg.Watcher.BatchDelayMs)
	assert.Equal(t, 256, cfg.Performance.MaxMemoryMB)
	assert.Equal(t, 8, cfg.Performance.MaxGoroutines)
	assert.Equal(t, 50, cfg.Search.MaxResults)
	assert.True(t, cfg.Search.EnableFuzzy)
	assert.Contains(t, cfg.Exclude, "**/.git/**")
	assert.Contains(t, cfg.Exclude, "**/node_modules/**")
}
