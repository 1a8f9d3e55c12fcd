package lock

import (
	"testing"
	"time"

	"github.com/flowlight0/simpledb-go/file"
	"github.com/stretchr/testify/require"
)

func TestConcurrencyManagerSharedRequestsAreIdempotent(t *testing.T) {
	table := NewTable(50 * time.Millisecond)
	cm := NewConcurrencyManager(table)
	block := file.NewBlockID("accounts.tbl", 0)

	require.NoError(t, cm.LockShared(block))
	require.NoError(t, cm.LockShared(block))
	require.Equal(t, 1, table.sharedCount(block))
}

func TestConcurrencyManagerUpgradesSharedToExclusive(t *testing.T) {
	table := NewTable(50 * time.Millisecond)
	cm := NewConcurrencyManager(table)
	block := file.NewBlockID("accounts.tbl", 0)

	require.NoError(t, cm.LockShared(block))
	require.NoError(t, cm.LockExclusive(block))
	require.True(t, table.hasExclusive(block))

	require.NoError(t, cm.LockExclusive(block))
}

func TestConcurrencyManagerReleaseDropsAllHeldLocks(t *testing.T) {
	table := NewTable(50 * time.Millisecond)
	cm := NewConcurrencyManager(table)
	blockA := file.NewBlockID("accounts.tbl", 0)
	blockB := file.NewBlockID("accounts.tbl", 1)

	require.NoError(t, cm.LockShared(blockA))
	require.NoError(t, cm.LockExclusive(blockB))

	cm.Release()

	_, ok := table.locks[blockA]
	require.False(t, ok)
	_, ok = table.locks[blockB]
	require.False(t, ok)
}

func TestConcurrencyManagerSharedAbortsWhileAnotherHoldsExclusive(t *testing.T) {
	table := NewTable(50 * time.Millisecond)
	cm1 := NewConcurrencyManager(table)
	cm2 := NewConcurrencyManager(table)
	block := file.NewBlockID("accounts.tbl", 0)

	require.NoError(t, cm1.LockExclusive(block))

	err := cm2.LockShared(block)
	require.ErrorIs(t, err, ErrLockAbort)
}
