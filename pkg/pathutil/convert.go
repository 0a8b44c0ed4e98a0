// Package pathutil converts between absolute and relative paths.
//
// It turns absolute paths (such as the watcher's) into paths relative to
// a root directory, for user-facing output (CLI, JSON) that favors
// readability and portability.
package pathutil

import (
	"path/filepath"
	"strings"

	"github.com/standardbeagle/repoindex/internal/types"
)

// ToRelative converts an absolute path to relative based on a root directory.
// Falls back to the original path if conversion fails or path is already relative.
//
// Examples:
//   - ToRelative("/home/user/project/src/main.go", "/home/user/project") → "src/main.go"
//   - ToRelative("/other/location/file.go", "/home/user/project") → "/other/location/file.go" (outside root)
//   - ToRelative("src/main.go", "/home/user/project") → "src/main.go" (already relative)
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}
	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		return absPath
	}
	if strings.HasPrefix(relPath, "..") {
		return absPath
	}
	return relPath
}

// ToRelativeSearchResults converts the FilePath field of each entry in a
// SearchResult slice from absolute to relative, for display
// at CLI/JSON output boundaries. Returns a new slice; the input is left
// untouched.
func ToRelativeSearchResults(results []types.SearchResult, rootDir string) []types.SearchResult {
	if len(results) == 0 {
		return results
	}
	converted := make([]types.SearchResult, len(results))
	copy(converted, results)
	for i := range converted {
		converted[i].FilePath = ToRelative(converted[i].FilePath, rootDir)
	}
	return converted
}
