package metacatalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	cat, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return cat
}

func TestRegisterAndLookupIndex(t *testing.T) {
	cat := newTestCatalog(t)

	def := IndexDef{Name: "kv_idx", Table: "kv.tbl", Field: "key", FieldType: 1, MaxFieldSize: 256}
	require.NoError(t, cat.RegisterIndex(def))

	got, found, err := cat.LookupIndex("kv_idx")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, def, got)
}

func TestLookupIndexMissingReturnsFalse(t *testing.T) {
	cat := newTestCatalog(t)

	_, found, err := cat.LookupIndex("nope")
	require.NoError(t, err)
	require.False(t, found)
}

func TestListIndexesReturnsAllRegistered(t *testing.T) {
	cat := newTestCatalog(t)

	require.NoError(t, cat.RegisterIndex(IndexDef{Name: "a", Table: "t1", Field: "k"}))
	require.NoError(t, cat.RegisterIndex(IndexDef{Name: "b", Table: "t2", Field: "k"}))

	defs, err := cat.ListIndexes()
	require.NoError(t, err)
	require.Len(t, defs, 2)
}

func TestDeleteIndexRemovesEntry(t *testing.T) {
	cat := newTestCatalog(t)

	require.NoError(t, cat.RegisterIndex(IndexDef{Name: "a", Table: "t1", Field: "k"}))
	require.NoError(t, cat.DeleteIndex("a"))

	_, found, err := cat.LookupIndex("a")
	require.NoError(t, err)
	require.False(t, found)
}

func TestRegisterIndexOverwritesExisting(t *testing.T) {
	cat := newTestCatalog(t)

	require.NoError(t, cat.RegisterIndex(IndexDef{Name: "a", Table: "t1", Field: "k", MaxFieldSize: 10}))
	require.NoError(t, cat.RegisterIndex(IndexDef{Name: "a", Table: "t1", Field: "k", MaxFieldSize: 20}))

	got, _, err := cat.LookupIndex("a")
	require.NoError(t, err)
	require.Equal(t, 20, got.MaxFieldSize)
}
