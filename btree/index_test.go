package btree

import (
	"fmt"
	"os"
	"testing"

	"github.com/flowlight0/simpledb-go/buffer"
	"github.com/flowlight0/simpledb-go/file"
	"github.com/flowlight0/simpledb-go/lock"
	"github.com/flowlight0/simpledb-go/record"
	"github.com/flowlight0/simpledb-go/tx"
	"github.com/flowlight0/simpledb-go/wal"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newIndexTestTx(t *testing.T, blockSize int) *tx.Transaction {
	t.Helper()
	dir := fmt.Sprintf("%s/simpledb-btree-test-%d", t.TempDir(), os.Getpid())
	fm, err := file.NewManager(dir, blockSize, file.Options{Format: true})
	require.NoError(t, err)
	t.Cleanup(func() { fm.Close() })

	lm, err := wal.NewManager(fm, "log", zerolog.Nop())
	require.NoError(t, err)
	bp := buffer.NewPool(fm, lm, 16, 0, zerolog.Nop())
	lockTable := lock.NewTable(0)

	txn, err := tx.New(fm, lm, bp, lockTable, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { txn.Commit() })
	return txn
}

func TestIndexInsertAndRetrieveAtScale(t *testing.T) {
	txn := newIndexTestTx(t, 512)
	leafLayout := LeafLayout(record.TypeInt32, 0)
	idx, err := New(txn, "scale_idx", leafLayout)
	require.NoError(t, err)
	defer idx.Close()

	const n = 300
	for i := 0; i < n; i++ {
		require.NoError(t, idx.Insert(Int32Value(int32(i)), RecordID{BlockSlot: i, RecordSlot: i % 4}))
	}

	for i := 0; i < n; i++ {
		require.NoError(t, idx.BeforeFirst(Int32Value(int32(i))))
		ok, err := idx.Next()
		require.NoError(t, err)
		require.True(t, ok, "expected to find key %d", i)
		rid, err := idx.Get()
		require.NoError(t, err)
		require.Equal(t, RecordID{BlockSlot: i, RecordSlot: i % 4}, rid)

		ok, err = idx.Next()
		require.NoError(t, err)
		require.False(t, ok)
	}
}

func TestIndexOverflowChainForEqualKeys(t *testing.T) {
	txn := newIndexTestTx(t, 256)
	leafLayout := LeafLayout(record.TypeInt32, 0)
	idx, err := New(txn, "dup_idx", leafLayout)
	require.NoError(t, err)
	defer idx.Close()

	const n = 100
	for i := 0; i < n; i++ {
		require.NoError(t, idx.Insert(Int32Value(7), RecordID{BlockSlot: i, RecordSlot: 0}))
	}

	require.NoError(t, idx.BeforeFirst(Int32Value(7)))
	count := 0
	seen := make(map[int]bool)
	for {
		ok, err := idx.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		rid, err := idx.Get()
		require.NoError(t, err)
		seen[rid.BlockSlot] = true
		count++
	}
	require.Equal(t, n, count)
	require.Len(t, seen, n)
}

func TestIndexDeleteRemovesEntry(t *testing.T) {
	txn := newIndexTestTx(t, 512)
	leafLayout := LeafLayout(record.TypeString, 12)
	idx, err := New(txn, "del_idx", leafLayout)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Insert(StringValue("alpha"), RecordID{BlockSlot: 1, RecordSlot: 0}))
	require.NoError(t, idx.Insert(StringValue("alpha"), RecordID{BlockSlot: 2, RecordSlot: 0}))

	require.NoError(t, idx.Delete(StringValue("alpha"), RecordID{BlockSlot: 1, RecordSlot: 0}))

	require.NoError(t, idx.BeforeFirst(StringValue("alpha")))
	var remaining []RecordID
	for {
		ok, err := idx.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		rid, err := idx.Get()
		require.NoError(t, err)
		remaining = append(remaining, rid)
	}
	require.Equal(t, []RecordID{{BlockSlot: 2, RecordSlot: 0}}, remaining)
}

func TestSearchCostGrowsLogarithmically(t *testing.T) {
	small := SearchCost(10, 20)
	large := SearchCost(10000, 20)
	require.Less(t, small, large)
	require.Equal(t, 1+10, SearchCost(10, 1))
}

func TestValueLessAndEqualOrdering(t *testing.T) {
	require.True(t, Int32Value(1).Less(Int32Value(2)))
	require.False(t, Int32Value(2).Less(Int32Value(1)))
	require.True(t, Int32Value(1).Equal(Int32Value(1)))
	require.True(t, StringValue("a").Less(StringValue("b")))

	null := Value{Type: record.TypeInt32, Null: true}
	require.True(t, Int32Value(0).Less(null))
	require.False(t, null.Less(Int32Value(0)))
}
