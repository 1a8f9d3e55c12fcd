package tx

import (
	"fmt"
	"os"
	"testing"

	"github.com/flowlight0/simpledb-go/buffer"
	"github.com/flowlight0/simpledb-go/file"
	"github.com/flowlight0/simpledb-go/lock"
	"github.com/flowlight0/simpledb-go/wal"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	fm        *file.Manager
	lm        *wal.Manager
	bp        *buffer.Pool
	lockTable *lock.Table
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := fmt.Sprintf("%s/simpledb-tx-test-%d", t.TempDir(), os.Getpid())
	fm, err := file.NewManager(dir, 400, file.Options{Format: true})
	require.NoError(t, err)
	t.Cleanup(func() { fm.Close() })

	lm, err := wal.NewManager(fm, "log", zerolog.Nop())
	require.NoError(t, err)

	bp := buffer.NewPool(fm, lm, 8, 0, zerolog.Nop())
	lockTable := lock.NewTable(0)

	return &testEnv{fm: fm, lm: lm, bp: bp, lockTable: lockTable}
}

func (e *testEnv) begin(t *testing.T) *Transaction {
	t.Helper()
	txn, err := New(e.fm, e.lm, e.bp, e.lockTable, zerolog.Nop())
	require.NoError(t, err)
	return txn
}

func TestTransactionCommitPersistsWrites(t *testing.T) {
	env := newTestEnv(t)

	txn := env.begin(t)
	block, err := txn.AppendBlock("accounts.tbl")
	require.NoError(t, err)
	require.NoError(t, txn.Pin(block))

	require.NoError(t, txn.SetInt32(block, 0, 42, true))
	require.NoError(t, txn.SetString(block, 8, "hello", true))
	require.NoError(t, txn.Commit())

	txn2 := env.begin(t)
	require.NoError(t, txn2.Pin(block))
	v, err := txn2.GetInt32(block, 0)
	require.NoError(t, err)
	require.Equal(t, int32(42), v)

	s, err := txn2.GetString(block, 8)
	require.NoError(t, err)
	require.Equal(t, "hello", s)
	require.NoError(t, txn2.Commit())
}

func TestTransactionRollbackUndoesWrites(t *testing.T) {
	env := newTestEnv(t)

	setup := env.begin(t)
	block, err := setup.AppendBlock("accounts.tbl")
	require.NoError(t, err)
	require.NoError(t, setup.Pin(block))
	require.NoError(t, setup.SetInt32(block, 0, 1, true))
	require.NoError(t, setup.Commit())

	txn := env.begin(t)
	require.NoError(t, txn.Pin(block))
	require.NoError(t, txn.SetInt32(block, 0, 999, true))
	require.NoError(t, txn.Rollback())

	verify := env.begin(t)
	require.NoError(t, verify.Pin(block))
	v, err := verify.GetInt32(block, 0)
	require.NoError(t, err)
	require.Equal(t, int32(1), v)
	require.NoError(t, verify.Commit())
}

func TestTransactionRecoverUndoesUncommittedWrites(t *testing.T) {
	env := newTestEnv(t)

	setup := env.begin(t)
	block, err := setup.AppendBlock("accounts.tbl")
	require.NoError(t, err)
	require.NoError(t, setup.Pin(block))
	require.NoError(t, setup.SetInt32(block, 0, 7, true))
	require.NoError(t, setup.Commit())

	crashed := env.begin(t)
	require.NoError(t, crashed.Pin(block))
	require.NoError(t, crashed.SetInt32(block, 0, 12345, true))
	// No Commit/Rollback: simulates a crash mid-transaction.

	recoverer := env.begin(t)
	require.NoError(t, recoverer.Recover())

	verify := env.begin(t)
	require.NoError(t, verify.Pin(block))
	v, err := verify.GetInt32(block, 0)
	require.NoError(t, err)
	require.Equal(t, int32(7), v)
	require.NoError(t, verify.Commit())
}
