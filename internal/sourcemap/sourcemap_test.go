package sourcemap

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestNormalizeWebpackPrefixAndQueryString(t *testing.T) {
	got := Normalize("webpack://app/./src/foo.ts?a1b2", "")
	assert.Equal(t, "src/foo.ts", got)
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"webpack://app/./src/foo.ts?a1b2",
		"node_modules/lib/x.js",
		"./relative/path.ts",
		`windows\style\path.ts`,
	}
	for _, in := range inputs {
		once := Normalize(in, "")
		twice := Normalize(once, "")
		assert.Equal(t, once, twice, in)
	}
}

func TestNormalizeSourceRootPrepend(t *testing.T) {
	got := Normalize("src/foo.ts", "app")
	assert.Equal(t, "app/src/foo.ts", got)
}

func TestExtractFiltersNodeModulesAndDedups(t *testing.T) {
	dir := t.TempDir()
	m := rawMap{
		Version:    3,
		Sources:    []string{"webpack://app/./src/foo.ts?a1b2", "node_modules/lib/x.js"},
		SourcesContent: []*string{
			strPtr("export const foo = 1;\n"),
			strPtr("module.exports = {};\n"),
		},
	}
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	mapPath := filepath.Join(dir, "bundle.js.map")
	require.NoError(t, os.WriteFile(mapPath, raw, 0644))

	result, err := Extract([]string{mapPath})
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.Equal(t, "src/foo.ts", result.Files[0].Path)
	assert.Equal(t, "export const foo = 1;\n", result.Files[0].Content)
}

func TestExtractSkipsDuplicateVirtualPaths(t *testing.T) {
	dir := t.TempDir()
	mk := func(name string) string {
		m := rawMap{
			Version:        3,
			Sources:        []string{"src/foo.ts"},
			SourcesContent: []*string{strPtr("x")},
		}
		raw, _ := json.Marshal(m)
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, raw, 0644))
		return p
	}
	a := mk("a.js.map")
	b := mk("b.js.map")

	result, err := Extract([]string{a, b})
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.Equal(t, 1, result.SkippedFiles)
}

func TestExtractRejectsPolyfills(t *testing.T) {
	dir := t.TempDir()
	m := rawMap{
		Version:    3,
		Sources:    []string{"src/foo.ts", "webpack/polyfills/array.js"},
		SourcesContent: []*string{
			strPtr("export const foo = 1;\n"),
			strPtr("Array.prototype.includes = function() {};\n"),
		},
	}
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	mapPath := filepath.Join(dir, "bundle.js.map")
	require.NoError(t, os.WriteFile(mapPath, raw, 0644))

	result, err := Extract([]string{mapPath})
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.Equal(t, "src/foo.ts", result.Files[0].Path)
}

func TestDiscoverSkipsNodeModulesAndDotDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "dep"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "dep", "bundle.js.map"), []byte("{}"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dist"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dist", "app.js.map"), []byte("{}"), 0644))

	maps, err := Discover(root)
	require.NoError(t, err)
	require.Len(t, maps, 1)
	assert.Contains(t, maps[0], "app.js.map")
}
