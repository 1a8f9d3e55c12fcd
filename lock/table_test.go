package lock

import (
	"testing"
	"time"

	"github.com/flowlight0/simpledb-go/file"
	"github.com/stretchr/testify/require"
)

func TestTableMultipleSharedLocksAllowed(t *testing.T) {
	table := NewTable(100 * time.Millisecond)
	block := file.NewBlockID("accounts.tbl", 0)

	require.NoError(t, table.LockShared(block))
	require.NoError(t, table.LockShared(block))
}

func TestTableExclusiveWaitsForSharedToRelease(t *testing.T) {
	table := NewTable(50 * time.Millisecond)
	block := file.NewBlockID("accounts.tbl", 0)

	require.NoError(t, table.LockShared(block))
	require.NoError(t, table.LockShared(block))

	err := table.LockExclusive(block)
	require.ErrorIs(t, err, ErrLockAbort)

	table.Unlock(block)
	require.NoError(t, table.LockExclusive(block))
}

func TestTableSharedWaitsForExclusiveToRelease(t *testing.T) {
	table := NewTable(50 * time.Millisecond)
	block := file.NewBlockID("accounts.tbl", 0)

	require.NoError(t, table.LockShared(block))
	require.NoError(t, table.LockExclusive(block))

	done := make(chan error, 1)
	go func() {
		done <- table.LockShared(block)
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrLockAbort)
	case <-time.After(time.Second):
		t.Fatal("LockShared did not return")
	}
}

func TestTableUnlockDropsEntryOnFullRelease(t *testing.T) {
	table := NewTable(50 * time.Millisecond)
	block := file.NewBlockID("accounts.tbl", 0)

	require.NoError(t, table.LockShared(block))
	table.Unlock(block)

	_, ok := table.locks[block]
	require.False(t, ok)
}
