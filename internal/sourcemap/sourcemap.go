// Package sourcemap reconstructs original source files embedded in
// JavaScript v3 source maps, for repositories that ship only compiled
// artifacts.
package sourcemap

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/standardbeagle/repoindex/internal/debug"
	repoerrors "github.com/standardbeagle/repoindex/internal/errors"
	"github.com/standardbeagle/repoindex/internal/types"
)

const maxDiscoveryDepth = 5

var recognizedSourceExtensions = map[string]bool{
	".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".mjs": true, ".cjs": true,
	".vue": true, ".svelte": true,
}

var queryStringSuffix = regexp.MustCompile(`\?[0-9a-fA-F]+$`)

var rejectSubstrings = []string{
	"node_modules/",
	"webpack/runtime",
	"webpack/bootstrap",
	"(webpack)",
	"__webpack",
	"ignored|",
	"/external ",
	"polyfill",
	".css",
}

// rawMap mirrors the JSON shape of a v3 source map.
type rawMap struct {
	Version        int      `json:"version"`
	File           string   `json:"file"`
	SourceRoot     string   `json:"sourceRoot"`
	Sources        []string `json:"sources"`
	SourcesContent []*string `json:"sourcesContent"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// Discover walks root up to maxDiscoveryDepth, skipping node_modules and
// dot-directories, and returns every path ending in ".js.map".
func Discover(root string) ([]string, error) {
	var maps []string
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	rootDepth := strings.Count(absRoot, string(filepath.Separator))

	walkErr := filepath.Walk(absRoot, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		depth := strings.Count(p, string(filepath.Separator)) - rootDepth
		if info.IsDir() {
			name := info.Name()
			if name != "." && (name == "node_modules" || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			if depth > maxDiscoveryDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if depth > maxDiscoveryDepth {
			return nil
		}
		if strings.HasSuffix(p, ".js.map") {
			maps = append(maps, p)
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return maps, nil
}

// ExtractResult is the output of extracting one or more source maps.
type ExtractResult struct {
	Files        []types.VirtualFile
	SkippedFiles int
}

// Extract parses every map in mapPaths and reconstructs their embedded
// sources, per spec §4.D. First virtual path wins across all maps;
// later duplicates are counted in SkippedFiles. A map that cannot be
// read or parsed is logged as a *ParseError and skipped, and extraction
// continues with the remaining maps.
func Extract(mapPaths []string) (ExtractResult, error) {
	result := ExtractResult{}
	seen := make(map[string]bool)

	for _, mp := range mapPaths {
		raw, err := os.ReadFile(mp)
		if err != nil {
			debug.Log("SOURCEMAP", "skipping map: %v", repoerrors.NewParseError(mp, err))
			continue
		}
		var m rawMap
		if err := json.Unmarshal(raw, &m); err != nil {
			debug.Log("SOURCEMAP", "skipping map: %v", repoerrors.NewParseError(mp, err))
			continue
		}

		for i, src := range m.Sources {
			if i >= len(m.SourcesContent) || m.SourcesContent[i] == nil {
				continue
			}
			content := *m.SourcesContent[i]

			normalized := Normalize(src, m.SourceRoot)
			if !accept(normalized) {
				continue
			}
			if seen[normalized] {
				result.SkippedFiles++
				continue
			}
			seen[normalized] = true
			result.Files = append(result.Files, types.VirtualFile{
				Path:          normalized,
				Content:       content,
				SourceMapPath: mp,
			})
		}
	}
	return result, nil
}

// Normalize applies the spec's ordered normalization rules to a source
// map "sources[i]" entry. It is idempotent: Normalize(Normalize(p), "")
// == Normalize(p, "").
func Normalize(src, sourceRoot string) string {
	s := src

	if idx := strings.Index(s, "webpack://"); idx == 0 {
		rest := s[len("webpack://"):]
		if slash := strings.Index(rest, "/"); slash >= 0 {
			s = rest[slash+1:]
		} else {
			s = ""
		}
	}

	s = strings.TrimPrefix(s, "./")

	if sourceRoot != "" && !strings.HasPrefix(s, sourceRoot) {
		s = path.Join(sourceRoot, s)
	}

	s = queryStringSuffix.ReplaceAllString(s, "")

	s = strings.ReplaceAll(s, "\\", "/")

	return s
}

func accept(normalized string) bool {
	lower := strings.ToLower(normalized)
	for _, bad := range rejectSubstrings {
		if strings.Contains(lower, bad) {
			return false
		}
	}
	ext := strings.ToLower(filepath.Ext(normalized))
	return recognizedSourceExtensions[ext]
}
