package buffer

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/flowlight0/simpledb-go/file"
	"github.com/flowlight0/simpledb-go/wal"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, numBuffers int, pinWait time.Duration) (*Pool, *file.Manager) {
	t.Helper()
	dir := fmt.Sprintf("%s/simpledb-buffer-test-%d", t.TempDir(), os.Getpid())
	fm, err := file.NewManager(dir, 400, file.Options{Format: true})
	require.NoError(t, err)
	t.Cleanup(func() { fm.Close() })

	lm, err := wal.NewManager(fm, "log", zerolog.Nop())
	require.NoError(t, err)

	return NewPool(fm, lm, numBuffers, pinWait, zerolog.Nop()), fm
}

func TestPoolPinUnpinTracksAvailability(t *testing.T) {
	pool, fm := newTestPool(t, 2, 200*time.Millisecond)

	block, err := fm.AppendBlock("data.tbl")
	require.NoError(t, err)

	require.Equal(t, 2, pool.Available())

	buf, err := pool.Pin(block)
	require.NoError(t, err)
	require.Equal(t, 1, pool.Available())

	pool.Unpin(buf)
	require.Equal(t, 2, pool.Available())
}

func TestPoolPinSameBlockTwiceReusesBuffer(t *testing.T) {
	pool, fm := newTestPool(t, 2, 200*time.Millisecond)

	block, err := fm.AppendBlock("data.tbl")
	require.NoError(t, err)

	buf1, err := pool.Pin(block)
	require.NoError(t, err)
	buf2, err := pool.Pin(block)
	require.NoError(t, err)

	require.Same(t, buf1, buf2)
	require.Equal(t, 1, pool.Available())

	pool.Unpin(buf1)
	pool.Unpin(buf2)
}

func TestPoolPinAbortsWhenExhausted(t *testing.T) {
	pool, fm := newTestPool(t, 1, 50*time.Millisecond)

	blockA, err := fm.AppendBlock("data.tbl")
	require.NoError(t, err)
	blockB, err := fm.AppendBlock("data.tbl")
	require.NoError(t, err)

	buf, err := pool.Pin(blockA)
	require.NoError(t, err)
	defer pool.Unpin(buf)

	_, err = pool.Pin(blockB)
	require.ErrorIs(t, err, ErrBufferAbort)
}

func TestPoolFlushAllWritesDirtyBuffersForTx(t *testing.T) {
	pool, fm := newTestPool(t, 2, 200*time.Millisecond)

	block, err := fm.AppendBlock("data.tbl")
	require.NoError(t, err)

	buf, err := pool.Pin(block)
	require.NoError(t, err)

	buf.Page().SetInt32(0, 99)
	buf.MarkModified(7, 1)

	require.NoError(t, pool.FlushAll(7))

	_, dirty := buf.ModifyingTx()
	require.False(t, dirty)

	out := file.NewPage(fm.BlockSize())
	require.NoError(t, fm.Read(block, out))
	require.Equal(t, int32(99), out.GetInt32(0))

	pool.Unpin(buf)
}
