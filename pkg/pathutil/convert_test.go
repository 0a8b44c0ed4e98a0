package pathutil

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/standardbeagle/repoindex/internal/types"
)

func TestToRelative(t *testing.T) {
	tests := []struct {
		name     string
		absPath  string
		rootDir  string
		expected string
	}{
		{
			name:     "simple relative path",
			absPath:  "/home/user/project/src/main.go",
			rootDir:  "/home/user/project",
			expected: "src/main.go",
		},
		{
			name:     "nested relative path",
			absPath:  "/home/user/project/internal/core/search.go",
			rootDir:  "/home/user/project",
			expected: "internal/core/search.go",
		},
		{
			name:     "root level file",
			absPath:  "/home/user/project/README.md",
			rootDir:  "/home/user/project",
			expected: "README.md",
		},
		{
			name:     "same directory",
			absPath:  "/home/user/project",
			rootDir:  "/home/user/project",
			expected: ".",
		},
		{
			name:     "already relative path",
			absPath:  "src/main.go",
			rootDir:  "/home/user/project",
			expected: "src/main.go",
		},
		{
			name:     "path outside root - fallback to absolute",
			absPath:  "/other/location/file.go",
			rootDir:  "/home/user/project",
			expected: "/other/location/file.go",
		},
		{
			name:     "empty root directory",
			absPath:  "/home/user/project/file.go",
			rootDir:  "",
			expected: "/home/user/project/file.go",
		},
		{
			name:     "empty absolute path",
			absPath:  "",
			rootDir:  "/home/user/project",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToRelative(tt.absPath, tt.rootDir)
			if runtime.GOOS == "windows" {
				result = filepath.ToSlash(result)
				expected := filepath.ToSlash(tt.expected)
				if result != expected {
					t.Errorf("ToRelative() = %v, want %v", result, expected)
				}
			} else if result != tt.expected {
				t.Errorf("ToRelative() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestToRelativeSearchResults(t *testing.T) {
	rootDir := "/home/user/project"

	input := []types.SearchResult{
		{FilePath: "/home/user/project/src/main.go", Score: 1.5, SymbolName: "Main"},
		{FilePath: "/home/user/project/internal/core/search.go", Score: 0.9},
		{FilePath: "/home/user/project/README.md", Score: 0.1},
	}

	results := ToRelativeSearchResults(input, rootDir)

	expected := []string{"src/main.go", "internal/core/search.go", "README.md"}
	if len(results) != len(expected) {
		t.Fatalf("expected %d results, got %d", len(expected), len(results))
	}
	for i, r := range results {
		got, want := r.FilePath, expected[i]
		if runtime.GOOS == "windows" {
			got = filepath.ToSlash(got)
			want = filepath.ToSlash(want)
		}
		if got != want {
			t.Errorf("result %d: FilePath = %v, want %v", i, got, want)
		}
		if r.Score != input[i].Score {
			t.Errorf("result %d: Score changed", i)
		}
	}
	if results[0].SymbolName != "Main" {
		t.Errorf("SymbolName not preserved: got %v", results[0].SymbolName)
	}
}

func TestToRelativeSearchResultsEmptySlice(t *testing.T) {
	results := ToRelativeSearchResults([]types.SearchResult{}, "/home/user/project")
	if len(results) != 0 {
		t.Errorf("expected empty slice, got %d elements", len(results))
	}
}

func TestToRelativeSearchResultsDoesNotMutateInput(t *testing.T) {
	input := []types.SearchResult{{FilePath: "/home/user/project/a.go"}}
	_ = ToRelativeSearchResults(input, "/home/user/project")
	if input[0].FilePath != "/home/user/project/a.go" {
		t.Errorf("input slice was mutated: %v", input[0].FilePath)
	}
}
