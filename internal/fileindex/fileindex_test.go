package fileindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	repoerrors "github.com/standardbeagle/repoindex/internal/errors"
	"github.com/standardbeagle/repoindex/internal/types"
)

func TestAddGetContainsRemove(t *testing.T) {
	idx := New()
	e := types.FileEntry{Path: "a.go", ContentHash: 123, Size: 10}
	idx.Add(e)

	assert.True(t, idx.Contains("a.go"))
	got, ok := idx.Get("a.go")
	require.True(t, ok)
	assert.Equal(t, e, got)

	assert.True(t, idx.Remove("a.go"))
	assert.False(t, idx.Contains("a.go"))
	assert.False(t, idx.Remove("a.go"))
}

func TestGetAllSortedByPath(t *testing.T) {
	idx := New()
	idx.Add(types.FileEntry{Path: "z.go"})
	idx.Add(types.FileEntry{Path: "a.go"})
	idx.Add(types.FileEntry{Path: "m.go"})

	all := idx.GetAll()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a.go", "m.go", "z.go"}, []string{all[0].Path, all[1].Path, all[2].Path})
}

func TestGetByLanguage(t *testing.T) {
	idx := New()
	idx.Add(types.FileEntry{Path: "a.go", Language: types.LanguageGo})
	idx.Add(types.FileEntry{Path: "b.ts", Language: types.LanguageTypeScript})
	idx.Add(types.FileEntry{Path: "c.go", Language: types.LanguageGo})

	goFiles := idx.GetByLanguage(types.LanguageGo)
	require.Len(t, goFiles, 2)
	assert.Equal(t, "a.go", goFiles[0].Path)
	assert.Equal(t, "c.go", goFiles[1].Path)
}

func TestMerkleHashIgnoresZeroHashEntries(t *testing.T) {
	idx := New()
	idx.Add(types.FileEntry{Path: "a.go", ContentHash: 111})
	h1 := idx.MerkleHash()

	idx.Add(types.FileEntry{Path: "b.go", ContentHash: 0})
	h2 := idx.MerkleHash()

	assert.Equal(t, h1, h2)
}

func TestMerkleHashOrderIndependent(t *testing.T) {
	a := New()
	a.Add(types.FileEntry{Path: "a.go", ContentHash: 111})
	a.Add(types.FileEntry{Path: "b.go", ContentHash: 222})

	b := New()
	b.Add(types.FileEntry{Path: "b.go", ContentHash: 222})
	b.Add(types.FileEntry{Path: "a.go", ContentHash: 111})

	assert.Equal(t, a.MerkleHash(), b.MerkleHash())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	idx := New()
	idx.Add(types.FileEntry{Path: "a.go", ContentHash: 111, Size: 5})
	idx.Add(types.FileEntry{Path: "b.go", ContentHash: 222, Size: 7})

	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, idx.Save(path))

	loaded := New()
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, idx.GetAll(), loaded.GetAll())
	assert.Equal(t, idx.MerkleHash(), loaded.MerkleHash())
}

func TestLoadRejectsCorruptedBlob(t *testing.T) {
	idx := New()
	idx.Add(types.FileEntry{Path: "a.go", ContentHash: 111})
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, idx.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-2] ^= 0xFF // flip a byte inside the checksum field
	require.NoError(t, os.WriteFile(path, raw, 0644))

	loaded := New()
	loaded.Add(types.FileEntry{Path: "untouched.go"})

	err = loaded.Load(path)
	require.Error(t, err)
	var parseErr *repoerrors.ParseError
	assert.ErrorAs(t, err, &parseErr)

	assert.True(t, loaded.Contains("untouched.go"))
}
