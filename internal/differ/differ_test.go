package differ

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/repoindex/internal/types"
)

func scan(entries ...types.FileEntry) types.ScanResult {
	return types.ScanResult{Files: entries}
}

func TestDiffRename(t *testing.T) {
	a := scan(types.FileEntry{Path: "src/a.ts", ContentHash: 42})
	b := scan(types.FileEntry{Path: "src/b.ts", ContentHash: 42})

	result := Diff(a, b, true)

	require.Len(t, result.Changes, 1)
	ch := result.Changes[0]
	assert.Equal(t, types.ChangeRenamed, ch.Type)
	assert.Equal(t, "src/b.ts", ch.Path)
	assert.Equal(t, "src/a.ts", ch.OldPath)
	assert.Equal(t, uint64(42), ch.OldHash)
	assert.Equal(t, uint64(42), ch.NewHash)
	assert.Equal(t, 0, result.AddedCount)
	assert.Equal(t, 0, result.ModifiedCount)
	assert.Equal(t, 0, result.DeletedCount)
	assert.Equal(t, 1, result.RenamedCount)
}

func TestDiffAddModifyDelete(t *testing.T) {
	a := scan(
		types.FileEntry{Path: "x.ts", ContentHash: 1},
		types.FileEntry{Path: "y.ts", ContentHash: 2},
	)
	b := scan(
		types.FileEntry{Path: "x.ts", ContentHash: 11},
		types.FileEntry{Path: "z.ts", ContentHash: 3},
	)

	result := Diff(a, b, true)

	assert.Equal(t, 1, result.AddedCount)
	assert.Equal(t, 1, result.ModifiedCount)
	assert.Equal(t, 1, result.DeletedCount)
	assert.Equal(t, 0, result.RenamedCount)

	byType := map[types.ChangeType][]string{}
	for _, c := range result.Changes {
		byType[c.Type] = append(byType[c.Type], c.Path)
	}
	assert.Equal(t, []string{"z.ts"}, byType[types.ChangeAdded])
	assert.Equal(t, []string{"x.ts"}, byType[types.ChangeModified])
	assert.Equal(t, []string{"y.ts"}, byType[types.ChangeDeleted])
}

func TestDiffZeroHashNeverRenamePaired(t *testing.T) {
	a := scan(types.FileEntry{Path: "a.ts", ContentHash: 0})
	b := scan(types.FileEntry{Path: "b.ts", ContentHash: 0})

	result := Diff(a, b, true)

	assert.Equal(t, 0, result.RenamedCount)
	assert.Equal(t, 1, result.AddedCount)
	assert.Equal(t, 1, result.DeletedCount)
}

func TestDiffClosure(t *testing.T) {
	a := scan(
		types.FileEntry{Path: "x.ts", ContentHash: 1},
		types.FileEntry{Path: "y.ts", ContentHash: 2},
		types.FileEntry{Path: "w.ts", ContentHash: 9},
	)
	b := scan(
		types.FileEntry{Path: "x.ts", ContentHash: 1},
		types.FileEntry{Path: "z.ts", ContentHash: 9}, // w.ts renamed to z.ts
		types.FileEntry{Path: "v.ts", ContentHash: 5}, // new file
	)

	result := Diff(a, b, true)

	applied := map[string]types.FileEntry{}
	for _, e := range a.Files {
		applied[e.Path] = e
	}
	for _, c := range result.Changes {
		switch c.Type {
		case types.ChangeAdded:
			applied[c.Path] = types.FileEntry{Path: c.Path, ContentHash: c.NewHash}
		case types.ChangeModified:
			applied[c.Path] = types.FileEntry{Path: c.Path, ContentHash: c.NewHash}
		case types.ChangeDeleted:
			delete(applied, c.Path)
		case types.ChangeRenamed:
			delete(applied, c.OldPath)
			applied[c.Path] = types.FileEntry{Path: c.Path, ContentHash: c.NewHash}
		}
	}

	expected := map[string]uint64{}
	for _, e := range b.Files {
		expected[e.Path] = e.ContentHash
	}
	got := map[string]uint64{}
	for p, e := range applied {
		got[p] = e.ContentHash
	}
	assert.Equal(t, expected, got)
}

func TestDiffRenameDetectionDisabled(t *testing.T) {
	a := scan(types.FileEntry{Path: "src/a.ts", ContentHash: 42})
	b := scan(types.FileEntry{Path: "src/b.ts", ContentHash: 42})

	result := Diff(a, b, false)

	assert.Equal(t, 0, result.RenamedCount)
	assert.Equal(t, 1, result.AddedCount)
	assert.Equal(t, 1, result.DeletedCount)
}
