// Package fileindex implements the Merkle Indexer / FileIndex: the
// authoritative in-memory store of FileEntry records, keyed by path, with
// single-blob persistence.
package fileindex

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"

	repoerrors "github.com/standardbeagle/repoindex/internal/errors"
	"github.com/standardbeagle/repoindex/internal/types"
)

// FileIndex stores FileEntry records by path under an RWMutex: many
// readers (search, graph, CLI queries), a single writer (scanner/watcher).
type FileIndex struct {
	mu    sync.RWMutex
	files map[string]types.FileEntry
}

// New returns an empty FileIndex.
func New() *FileIndex {
	return &FileIndex{files: make(map[string]types.FileEntry)}
}

// Add inserts or replaces the entry for e.Path.
func (idx *FileIndex) Add(e types.FileEntry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.files[e.Path] = e
}

// Remove deletes the entry at path, reporting whether one existed.
func (idx *FileIndex) Remove(path string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.files[path]; !ok {
		return false
	}
	delete(idx.files, path)
	return true
}

// Get returns the entry at path.
func (idx *FileIndex) Get(path string) (types.FileEntry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.files[path]
	return e, ok
}

// Contains reports whether path is indexed.
func (idx *FileIndex) Contains(path string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.files[path]
	return ok
}

// GetAll returns every entry, stably sorted by path.
func (idx *FileIndex) GetAll() []types.FileEntry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]types.FileEntry, 0, len(idx.files))
	for _, e := range idx.files {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// GetByLanguage returns every entry whose detected Language matches lang,
// stably sorted by path.
func (idx *FileIndex) GetByLanguage(lang types.Language) []types.FileEntry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]types.FileEntry, 0)
	for _, e := range idx.files {
		if e.Language == lang {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Size returns the number of indexed files.
func (idx *FileIndex) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.files)
}

// Clear empties the index.
func (idx *FileIndex) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.files = make(map[string]types.FileEntry)
}

// MerkleHash returns a single fingerprint over the sorted set of
// non-zero file content hashes. Directory structure is not folded in;
// this is a flat hash over the file set, per spec §4.B.
func (idx *FileIndex) MerkleHash() uint64 {
	idx.mu.RLock()
	hashes := make([]uint64, 0, len(idx.files))
	for _, e := range idx.files {
		if e.ContentHash != 0 {
			hashes = append(hashes, e.ContentHash)
		}
	}
	idx.mu.RUnlock()

	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	digest := xxhash.New()
	buf := make([]byte, 8)
	for _, h := range hashes {
		for i := 0; i < 8; i++ {
			buf[i] = byte(h >> (8 * i))
		}
		_, _ = digest.Write(buf)
	}
	return digest.Sum64()
}

// persistedBlob is the on-disk shape written by Save. Checksum is a
// BLAKE3 digest of the JSON-encoded Files slice, letting Load distinguish
// a truncated or corrupted blob from a stale-but-valid one without
// re-reading the indexed tree (see SPEC_FULL.md: persisted-blob integrity
// digest).
type persistedBlob struct {
	Files    []types.FileEntry `json:"files"`
	Checksum string            `json:"checksum"`
}

func checksumOf(payload []byte) string {
	sum := blake3.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Save atomically (whole-blob replace) writes the index to path.
func (idx *FileIndex) Save(path string) error {
	files := idx.GetAll()

	payload, err := json.Marshal(files)
	if err != nil {
		return repoerrors.NewParseError(path, err)
	}

	blob := persistedBlob{Files: files, Checksum: checksumOf(payload)}
	out, err := json.Marshal(blob)
	if err != nil {
		return repoerrors.NewParseError(path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0644); err != nil {
		return repoerrors.NewScanError(path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return repoerrors.NewScanError(path, err)
	}
	return nil
}

// Load replaces the index's contents with the blob stored at path. A
// checksum mismatch or malformed blob returns *errors.ParseError and
// leaves the in-memory state untouched.
func (idx *FileIndex) Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return repoerrors.NewScanError(path, err)
	}

	var blob persistedBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return repoerrors.NewParseError(path, err)
	}

	payload, err := json.Marshal(blob.Files)
	if err != nil {
		return repoerrors.NewParseError(path, err)
	}
	if checksumOf(payload) != blob.Checksum {
		return repoerrors.NewParseError(path, errChecksumMismatch)
	}

	replacement := make(map[string]types.FileEntry, len(blob.Files))
	for _, e := range blob.Files {
		replacement[e.Path] = e
	}

	idx.mu.Lock()
	idx.files = replacement
	idx.mu.Unlock()
	return nil
}

var errChecksumMismatch = checksumMismatchError{}

type checksumMismatchError struct{}

func (checksumMismatchError) Error() string { return "persisted file index checksum mismatch" }
