// Package differ computes FileChange events between two scans, with
// optional content-hash-based rename detection.
package differ

import (
	"sort"
	"time"

	"github.com/standardbeagle/repoindex/internal/types"
)

// Diff compares old and new ScanResults and returns the changes needed to
// turn old's file set into new's, per spec §4.C.
func Diff(old, updated types.ScanResult, detectRenames bool) types.DiffResult {
	start := time.Now()

	oldByPath := make(map[string]types.FileEntry, len(old.Files))
	for _, e := range old.Files {
		oldByPath[e.Path] = e
	}
	newByPath := make(map[string]types.FileEntry, len(updated.Files))
	for _, e := range updated.Files {
		newByPath[e.Path] = e
	}

	var changes []types.FileChange
	renamedOld := map[string]bool{}
	renamedNew := map[string]bool{}

	if detectRenames {
		oldByHash := groupByHash(old.Files)
		newByHash := groupByHash(updated.Files)

		var hashes []uint64
		for h := range oldByHash {
			if _, ok := newByHash[h]; ok {
				hashes = append(hashes, h)
			}
		}
		sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

		for _, h := range hashes {
			var oldCandidates, newCandidates []string
			for _, p := range oldByHash[h] {
				if _, present := newByPath[p]; !present {
					oldCandidates = append(oldCandidates, p)
				}
			}
			for _, p := range newByHash[h] {
				if _, present := oldByPath[p]; !present {
					newCandidates = append(newCandidates, p)
				}
			}

			n := len(oldCandidates)
			if len(newCandidates) < n {
				n = len(newCandidates)
			}
			for i := 0; i < n; i++ {
				oldPath := oldCandidates[i]
				newPath := newCandidates[i]
				renamedOld[oldPath] = true
				renamedNew[newPath] = true
				changes = append(changes, types.FileChange{
					Type:    types.ChangeRenamed,
					Path:    newPath,
					OldPath: oldPath,
					OldHash: h,
					NewHash: h,
				})
			}
		}
	}

	var added, modified, deleted, renamed int
	renamed = len(changes)

	newPaths := make([]string, 0, len(updated.Files))
	for _, e := range updated.Files {
		newPaths = append(newPaths, e.Path)
	}
	sort.Strings(newPaths)
	for _, p := range newPaths {
		if renamedNew[p] {
			continue
		}
		ne := newByPath[p]
		if oe, ok := oldByPath[p]; !ok {
			changes = append(changes, types.FileChange{Type: types.ChangeAdded, Path: p, NewHash: ne.ContentHash})
			added++
		} else if oe.ContentHash != ne.ContentHash {
			changes = append(changes, types.FileChange{Type: types.ChangeModified, Path: p, OldHash: oe.ContentHash, NewHash: ne.ContentHash})
			modified++
		}
	}

	oldPaths := make([]string, 0, len(old.Files))
	for _, e := range old.Files {
		oldPaths = append(oldPaths, e.Path)
	}
	sort.Strings(oldPaths)
	for _, p := range oldPaths {
		if renamedOld[p] {
			continue
		}
		if _, ok := newByPath[p]; !ok {
			oe := oldByPath[p]
			changes = append(changes, types.FileChange{Type: types.ChangeDeleted, Path: p, OldHash: oe.ContentHash})
			deleted++
		}
	}

	return types.DiffResult{
		Changes:       changes,
		AddedCount:    added,
		ModifiedCount: modified,
		DeletedCount:  deleted,
		RenamedCount:  renamed,
		DiffTimeMs:    time.Since(start).Milliseconds(),
	}
}

// groupByHash buckets files by ContentHash, skipping hash 0 (never a
// rename-pairing candidate). Order within a bucket follows scan order,
// which callers rely on for deterministic greedy pairing.
func groupByHash(files []types.FileEntry) map[uint64][]string {
	out := make(map[uint64][]string)
	for _, e := range files {
		if e.ContentHash == 0 {
			continue
		}
		out[e.ContentHash] = append(out[e.ContentHash], e.Path)
	}
	return out
}
