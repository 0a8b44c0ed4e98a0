// Package scanner walks a repository tree and produces the FileEntry/
// DirEntry records that every other component (Merkle Indexer, Differ,
// BM25 Index, Dependency Graph) is built from.
package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/repoindex/internal/debug"
	"github.com/standardbeagle/repoindex/internal/types"
)

// DefaultExcludePatterns is applied whenever a caller supplies no excludes
// of its own; it is not merged with a caller-supplied list.
var DefaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/dist/**",
	"**/build/**",
	"**/__pycache__/**",
	"**/*.min.js",
	"**/*.min.css",
	"**/vendor/**",
	"**/.venv/**",
	"**/target/**",
}

// extensionLanguage maps a lowercase file extension to its detected
// Language. Extensions absent from this table resolve to LanguageUnknown.
var extensionLanguage = map[string]types.Language{
	".js": types.LanguageJavaScript, ".mjs": types.LanguageJavaScript, ".cjs": types.LanguageJavaScript, ".jsx": types.LanguageJavaScript,
	".ts": types.LanguageTypeScript, ".tsx": types.LanguageTypeScript, ".mts": types.LanguageTypeScript,
	".py": types.LanguagePython, ".pyw": types.LanguagePython,
	".rs": types.LanguageRust,
	".go": types.LanguageGo,
	".java": types.LanguageJava,
	".cpp": types.LanguageCPP, ".cc": types.LanguageCPP, ".cxx": types.LanguageCPP, ".hpp": types.LanguageCPP, ".h": types.LanguageCPP,
	".c": types.LanguageC,
	".cs": types.LanguageCSharp,
	".rb": types.LanguageRuby,
	".php": types.LanguagePHP,
	".swift": types.LanguageSwift,
	".kt": types.LanguageKotlin, ".kts": types.LanguageKotlin,
}

// DetectLanguage returns the Language implied by path's extension.
func DetectLanguage(path string) types.Language {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := extensionLanguage[ext]; ok {
		return lang
	}
	return types.LanguageUnknown
}

// Config controls a single Scan invocation (spec's IndexerConfig).
type Config struct {
	IncludePatterns    []string
	ExcludePatterns    []string
	FollowSymlinks     bool
	ComputeContentHash bool
	DetectRenames      bool // carried for callers that forward Config straight to the Differ
	MaxFileSize        int64
	ParallelWorkers    int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		ExcludePatterns:    append([]string(nil), DefaultExcludePatterns...),
		FollowSymlinks:     false,
		ComputeContentHash: true,
		DetectRenames:      true,
		MaxFileSize:        types.DefaultMaxFileSize,
		ParallelWorkers:    types.DefaultParallelWorkers,
	}
}

// Scanner performs a depth-first walk of a root directory.
type Scanner struct {
	binary *binaryDetector
}

// New returns a ready-to-use Scanner.
func New() *Scanner {
	return &Scanner{binary: newBinaryDetector()}
}

type walkEntry struct {
	relPath string
	absPath string
	size    int64
	modTime time.Time
}

// Scan walks root and returns its ScanResult. Per-file I/O errors are
// logged and counted in SkippedFiles; a root-level error (root missing,
// unreadable) aborts the whole scan and is returned via ScanResult.Error.
func (s *Scanner) Scan(root string, cfg Config) types.ScanResult {
	start := time.Now()
	result := types.ScanResult{}

	if cfg.ParallelWorkers <= 0 {
		cfg.ParallelWorkers = types.DefaultParallelWorkers
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = types.DefaultMaxFileSize
	}
	excludes := cfg.ExcludePatterns
	if excludes == nil {
		excludes = DefaultExcludePatterns
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		result.Error = err
		return result
	}
	if info, statErr := os.Stat(absRoot); statErr != nil {
		result.Error = statErr
		return result
	} else if !info.IsDir() {
		result.Error = &os.PathError{Op: "scan", Path: absRoot, Err: os.ErrInvalid}
		return result
	}

	var entries []walkEntry
	dirSet := map[string]*types.DirEntry{}

	walkErr := filepath.Walk(absRoot, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			if path == absRoot {
				return walkErr
			}
			debug.LogScan("skipping %s: %v", path, walkErr)
			result.SkippedFiles++
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 && !cfg.FollowSymlinks {
			return nil
		}
		relPath, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)
		if relPath == "." {
			return nil
		}

		if info.IsDir() {
			if matchesAny(excludes, relPath+"/") || matchesAny(excludes, relPath) {
				return filepath.SkipDir
			}
			dirSet[relPath] = &types.DirEntry{Path: relPath}
			return nil
		}

		if matchesAny(excludes, relPath) {
			return nil
		}
		if len(cfg.IncludePatterns) > 0 && !matchesAny(cfg.IncludePatterns, relPath) {
			return nil
		}
		if info.Size() > cfg.MaxFileSize {
			result.SkippedFiles++
			return nil
		}

		entries = append(entries, walkEntry{
			relPath: relPath,
			absPath: path,
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		return nil
	})
	if walkErr != nil {
		result.Error = walkErr
		return result
	}

	files := make([]types.FileEntry, len(entries))
	var mu sync.Mutex
	group := new(errgroup.Group)
	group.SetLimit(cfg.ParallelWorkers)

	for i, e := range entries {
		i, e := i, e
		group.Go(func() error {
			fe := types.FileEntry{
				Path:      e.relPath,
				Size:      e.size,
				ModTimeMs: types.NowMs(e.modTime),
				Language:  DetectLanguage(e.relPath),
			}
			if cfg.ComputeContentHash {
				content, readErr := os.ReadFile(e.absPath)
				if readErr != nil {
					debug.LogScan("read failed for %s: %v", e.relPath, readErr)
					mu.Lock()
					result.SkippedFiles++
					mu.Unlock()
					return nil
				}
				if s.binary.isBinary(e.relPath, content) {
					mu.Lock()
					result.SkippedFiles++
					mu.Unlock()
					return nil
				}
				fe.ContentHash = xxhash.Sum64(content)
			}
			files[i] = fe
			return nil
		})
	}
	_ = group.Wait() // workers never return non-nil errors; failures are counted, not propagated

	kept := files[:0]
	var totalSize int64
	for _, fe := range files {
		if fe.Path == "" {
			continue
		}
		kept = append(kept, fe)
		totalSize += fe.Size
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Path < kept[j].Path })

	fileHashesByDir := map[string][]uint64{}
	for _, fe := range kept {
		dir := filepath.ToSlash(filepath.Dir(fe.Path))
		if d, ok := dirSet[dir]; ok {
			d.FileCount++
		}
		fileHashesByDir[dir] = append(fileHashesByDir[dir], fe.ContentHash)
	}

	dirPaths := make([]string, 0, len(dirSet))
	for p := range dirSet {
		dirPaths = append(dirPaths, p)
	}
	for _, p := range dirPaths {
		parent := filepath.ToSlash(filepath.Dir(p))
		if d, ok := dirSet[parent]; ok && d.Path != p {
			d.DirCount++
		}
	}
	// Deepest directories first, so a parent's Merkle hash folds in its
	// children's already-computed hashes (§4.B: directory Merkle hash is
	// the sorted hash of file content hashes and sub-directory hashes).
	sort.Slice(dirPaths, func(i, j int) bool {
		di := strings.Count(dirPaths[i], "/")
		dj := strings.Count(dirPaths[j], "/")
		if di != dj {
			return di > dj
		}
		return dirPaths[i] > dirPaths[j]
	})

	childHashesByDir := map[string][]uint64{}
	for _, p := range dirPaths {
		d := dirSet[p]
		hashes := append(append([]uint64(nil), fileHashesByDir[p]...), childHashesByDir[p]...)
		d.MerkleHash = dirMerkleHash(hashes)

		parent := filepath.ToSlash(filepath.Dir(p))
		if parent != p {
			childHashesByDir[parent] = append(childHashesByDir[parent], d.MerkleHash)
		}
	}

	dirs := make([]types.DirEntry, 0, len(dirSet))
	for _, d := range dirSet {
		dirs = append(dirs, *d)
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Path < dirs[j].Path })

	result.Files = kept
	result.Directories = dirs
	result.TotalSize = totalSize
	result.TotalFiles = len(kept)
	result.TotalDirs = len(dirs)
	result.ScanTimeMs = time.Since(start).Milliseconds()
	return result
}

// MergeVirtualFiles folds Source-Map Extractor output into a ScanResult,
// per §2's data flow ("Extractor (D) feeds virtual files into A's output"):
// each VirtualFile becomes a FileEntry hashed and language-detected the
// same way an on-disk file would be, skipped if a real file already
// occupies that path.
func MergeVirtualFiles(result types.ScanResult, virtualFiles []types.VirtualFile) types.ScanResult {
	if len(virtualFiles) == 0 {
		return result
	}
	existing := make(map[string]bool, len(result.Files))
	for _, fe := range result.Files {
		existing[fe.Path] = true
	}

	now := types.NowMs(time.Now())
	for _, vf := range virtualFiles {
		if existing[vf.Path] {
			continue
		}
		content := []byte(vf.Content)
		fe := types.FileEntry{
			Path:        vf.Path,
			ContentHash: xxhash.Sum64(content),
			Size:        int64(len(content)),
			ModTimeMs:   now,
			Language:    DetectLanguage(vf.Path),
		}
		result.Files = append(result.Files, fe)
		result.TotalSize += fe.Size
	}
	sort.Slice(result.Files, func(i, j int) bool { return result.Files[i].Path < result.Files[j].Path })
	result.TotalFiles = len(result.Files)
	return result
}

// dirMerkleHash folds a directory's child hashes (file content hashes and
// sub-directory Merkle hashes) into one fingerprint, the same sorted-xxhash
// construction fileindex.FileIndex.MerkleHash uses for the flat file-set
// hash, per §4.B.
func dirMerkleHash(hashes []uint64) uint64 {
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	digest := xxhash.New()
	buf := make([]byte, 8)
	for _, h := range hashes {
		if h == 0 {
			continue
		}
		for i := 0; i < 8; i++ {
			buf[i] = byte(h >> (8 * i))
		}
		_, _ = digest.Write(buf)
	}
	return digest.Sum64()
}

// matchesAny reports whether rel matches any of patterns using the spec's
// glob semantics (doublestar: `**` crosses `/`, `*` and `?` do not), case
// insensitively.
func matchesAny(patterns []string, rel string) bool {
	lower := strings.ToLower(rel)
	for _, p := range patterns {
		pl := strings.ToLower(p)
		if ok, _ := doublestar.Match(pl, lower); ok {
			return true
		}
	}
	return false
}
