package engine

import (
	"bytes"
	"fmt"
	"os"
	"testing"

	"github.com/flowlight0/simpledb-go/common"
	"github.com/flowlight0/simpledb-go/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) (*DB, string) {
	t.Helper()
	dir := fmt.Sprintf("%s/simpledb-engine-test-%d", t.TempDir(), os.Getpid())
	cfg := config.Default(dir)
	cfg.NumBuffers = 16
	cfg.BlockSize = 512
	db, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, dir
}

func TestDBPutGetRoundTrip(t *testing.T) {
	db, _ := newTestDB(t)

	require.NoError(t, db.Put([]byte("hello"), []byte("world")))

	v, err := db.Get([]byte("hello"))
	require.NoError(t, err)
	require.True(t, bytes.Equal([]byte("world"), v))
}

func TestDBPutOverwritesExistingKey(t *testing.T) {
	db, _ := newTestDB(t)

	require.NoError(t, db.Put([]byte("k"), []byte("v1")))
	require.NoError(t, db.Put([]byte("k"), []byte("v2")))

	v, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, "v2", string(v))
}

func TestDBGetMissingKeyReturnsErrKeyNotFound(t *testing.T) {
	db, _ := newTestDB(t)

	_, err := db.Get([]byte("missing"))
	require.ErrorIs(t, err, common.ErrKeyNotFound)
}

func TestDBDeleteRemovesKey(t *testing.T) {
	db, _ := newTestDB(t)

	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	require.NoError(t, db.Delete([]byte("k")))

	_, err := db.Get([]byte("k"))
	require.ErrorIs(t, err, common.ErrKeyNotFound)
}

func TestDBDeleteMissingKeyReturnsErrKeyNotFound(t *testing.T) {
	db, _ := newTestDB(t)

	err := db.Delete([]byte("missing"))
	require.ErrorIs(t, err, common.ErrKeyNotFound)
}

func TestDBStatsReflectReadsAndWrites(t *testing.T) {
	db, _ := newTestDB(t)

	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	_, err := db.Get([]byte("k"))
	require.NoError(t, err)

	stats := db.Stats()
	require.Greater(t, stats.WriteCount, int64(0))
	require.Greater(t, stats.ReadCount, int64(0))
}

func TestDBCompactIsNoOp(t *testing.T) {
	db, _ := newTestDB(t)
	require.NoError(t, db.Compact())
}

func TestDBSyncSucceeds(t *testing.T) {
	db, _ := newTestDB(t)
	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	require.NoError(t, db.Sync())
}

func TestDBInstanceIDIsStable(t *testing.T) {
	db, _ := newTestDB(t)
	id1 := db.InstanceID()
	id2 := db.InstanceID()
	require.Equal(t, id1, id2)
	require.NotEqual(t, "00000000-0000-0000-0000-000000000000", id1.String())
}

func TestDBReopenRecoversCommittedData(t *testing.T) {
	db, dir := newTestDB(t)
	require.NoError(t, db.Put([]byte("persisted"), []byte("value")))
	require.NoError(t, db.Close())

	cfg := config.Default(dir)
	cfg.NumBuffers = 16
	cfg.BlockSize = 512
	reopened, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.Get([]byte("persisted"))
	require.NoError(t, err)
	require.Equal(t, "value", string(v))
}
