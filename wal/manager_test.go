package wal

import (
	"fmt"
	"os"
	"testing"

	"github.com/flowlight0/simpledb-go/file"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestFileManager(t *testing.T, blockSize int) *file.Manager {
	t.Helper()
	dir := fmt.Sprintf("%s/simpledb-wal-test-%d", t.TempDir(), os.Getpid())
	fm, err := file.NewManager(dir, blockSize, file.Options{Format: true})
	require.NoError(t, err)
	t.Cleanup(func() { fm.Close() })
	return fm
}

func TestManagerAppendReturnsIncreasingLSNs(t *testing.T) {
	fm := newTestFileManager(t, 400)
	lm, err := NewManager(fm, "log", zerolog.Nop())
	require.NoError(t, err)

	lsn1, err := lm.Append(StartRecord(1))
	require.NoError(t, err)
	lsn2, err := lm.Append(CommitRecord(1))
	require.NoError(t, err)

	require.Less(t, int64(lsn1), int64(lsn2))
}

func TestManagerIterateReturnsRecordsNewestFirst(t *testing.T) {
	fm := newTestFileManager(t, 400)
	lm, err := NewManager(fm, "log", zerolog.Nop())
	require.NoError(t, err)

	_, err = lm.Append(StartRecord(1))
	require.NoError(t, err)
	lsn, err := lm.Append(CommitRecord(1))
	require.NoError(t, err)

	require.NoError(t, lm.Flush(lsn))

	it, err := lm.Iterate()
	require.NoError(t, err)

	rec, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, KindCommit, rec.Kind)

	rec, ok = it.Next()
	require.True(t, ok)
	require.Equal(t, KindStart, rec.Kind)

	_, ok = it.Next()
	require.False(t, ok)
	require.NoError(t, it.Err())
}

func TestManagerIterateCrossesBlockBoundary(t *testing.T) {
	fm := newTestFileManager(t, 64)
	lm, err := NewManager(fm, "log", zerolog.Nop())
	require.NoError(t, err)

	const n = 20
	var lastLSN LSN
	for i := 0; i < n; i++ {
		lastLSN, err = lm.Append(CommitRecord(int64(i)))
		require.NoError(t, err)
	}
	require.NoError(t, lm.Flush(lastLSN))

	numBlocks, err := fm.NumBlocks("log")
	require.NoError(t, err)
	require.Greater(t, numBlocks, 1, "expected appends to span multiple blocks")

	it, err := lm.Iterate()
	require.NoError(t, err)

	var got []int64
	for {
		rec, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, rec.TxID)
	}
	require.NoError(t, it.Err())
	require.Len(t, got, n)
	for i, txID := range got {
		require.Equal(t, int64(n-1-i), txID)
	}
}
