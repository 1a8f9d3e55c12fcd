package file

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := fmt.Sprintf("%s/simpledb-file-test-%d", t.TempDir(), os.Getpid())
	fm, err := NewManager(dir, 400, Options{Format: true})
	require.NoError(t, err)
	t.Cleanup(func() { fm.Close() })
	return fm
}

func TestManagerWriteThenRead(t *testing.T) {
	fm := newTestManager(t)

	block, err := fm.AppendBlock("test.tbl")
	require.NoError(t, err)

	out := NewPage(fm.BlockSize())
	out.SetInt32(0, 42)
	_, err = out.SetString(4, "hello")
	require.NoError(t, err)
	require.NoError(t, fm.Write(block, out))

	in := NewPage(fm.BlockSize())
	require.NoError(t, fm.Read(block, in))
	require.Equal(t, int32(42), in.GetInt32(0))
	s, _ := in.GetString(4)
	require.Equal(t, "hello", s)
}

func TestManagerAppendGrowsBlockCount(t *testing.T) {
	fm := newTestManager(t)

	n, err := fm.NumBlocks("growing.tbl")
	require.NoError(t, err)
	require.Equal(t, 0, n)

	for i := 0; i < 3; i++ {
		block, err := fm.AppendBlock("growing.tbl")
		require.NoError(t, err)
		require.Equal(t, i, block.Slot)
	}

	n, err = fm.NumBlocks("growing.tbl")
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestManagerIsNewReflectsDirectoryPreexistence(t *testing.T) {
	dir := fmt.Sprintf("%s/simpledb-isnew-test-%d", t.TempDir(), os.Getpid())

	fm1, err := NewManager(dir, 400, Options{})
	require.NoError(t, err)
	require.True(t, fm1.IsNew())
	require.NoError(t, fm1.Close())

	fm2, err := NewManager(dir, 400, Options{})
	require.NoError(t, err)
	require.False(t, fm2.IsNew())
	require.NoError(t, fm2.Close())
}

func TestManagerStatsCountReadsAndWrites(t *testing.T) {
	fm := newTestManager(t)

	block, err := fm.AppendBlock("stats.tbl")
	require.NoError(t, err)

	page := NewPage(fm.BlockSize())
	require.NoError(t, fm.Write(block, page))
	require.NoError(t, fm.Read(block, page))

	stats := fm.Stats()
	require.GreaterOrEqual(t, stats.Writes, int64(1))
	require.GreaterOrEqual(t, stats.Reads, int64(1))
}
