// Package tx implements the transaction manager: typed reads/writes
// funnelled through locking and undo logging, pin tracking, and
// commit/rollback/recover. Recovery is folded directly into Transaction
// rather than split into a back-referencing RecoveryManager, per the
// cyclic-ownership design note this repo follows.
//
// Grounded on _examples/original_source/src/tx/transaction.rs, restyled
// after the teacher's btree/btree.go (Config/New, receiver methods,
// atomic counters, fmt.Errorf wrapping).
package tx

import (
	"fmt"
	"sync/atomic"

	"github.com/flowlight0/simpledb-go/buffer"
	"github.com/flowlight0/simpledb-go/file"
	"github.com/flowlight0/simpledb-go/lock"
	"github.com/flowlight0/simpledb-go/wal"
	"github.com/rs/zerolog"
)

// nextTxID is the process-wide monotonic transaction id counter (spec §9:
// "model it as an atomic integer initialized at engine start"). Shared
// across every Transaction constructed against the same engine instance.
var nextTxID atomic.Int64

// endOfFile is the reserved sentinel block a transaction locks around
// append_block/get_num_blocks, so two transactions extending the same
// file serialize on file length even though the file manager itself has
// no per-file transactional lock.
func endOfFile(fileName string) file.BlockID {
	return file.NewBlockID(fileName, -1)
}

// Transaction is a unit of work against the pool/log/lock table triple.
// It is created, issues pins/reads/writes, and terminates exactly once via
// Commit or Rollback.
type Transaction struct {
	id int64

	fm *file.Manager
	lm *wal.Manager
	bp *buffer.Pool
	cm *lock.ConcurrencyManager

	pins       []file.BlockID
	buffers    map[file.BlockID]*buffer.Buffer
	pinCounts  map[file.BlockID]int

	log zerolog.Logger
}

// New obtains the next transaction id, appends a Start record, and returns
// a Transaction ready for pins and reads/writes.
func New(fm *file.Manager, lm *wal.Manager, bp *buffer.Pool, lockTable *lock.Table, logger zerolog.Logger) (*Transaction, error) {
	id := nextTxID.Add(1)
	t := &Transaction{
		id:        id,
		fm:        fm,
		lm:        lm,
		bp:        bp,
		cm:        lock.NewConcurrencyManager(lockTable),
		buffers:   make(map[file.BlockID]*buffer.Buffer),
		pinCounts: make(map[file.BlockID]int),
		log:       logger,
	}
	if _, err := lm.Append(wal.StartRecord(id)); err != nil {
		return nil, fmt.Errorf("tx: append start record: %w", err)
	}
	return t, nil
}

// ID returns this transaction's id.
func (t *Transaction) ID() int64 { return t.id }

// BlockSize is an ambient read of the engine's configured block size.
func (t *Transaction) BlockSize() int { return t.fm.BlockSize() }

// Pin brings block into the buffer pool and records ownership; repeated
// pins of the same block are allowed and tracked so Unpin stays symmetric.
func (t *Transaction) Pin(block file.BlockID) error {
	buf, err := t.bp.Pin(block)
	if err != nil {
		return fmt.Errorf("tx %d: pin %s: %w", t.id, block, err)
	}
	t.buffers[block] = buf
	t.pins = append(t.pins, block)
	t.pinCounts[block]++
	return nil
}

// Unpin releases one pin on block, dropping the buffer handle once no
// pins remain.
func (t *Transaction) Unpin(block file.BlockID) {
	buf, ok := t.buffers[block]
	if !ok {
		return
	}
	t.bp.Unpin(buf)
	t.pinCounts[block]--

	for i, b := range t.pins {
		if b == block {
			t.pins = append(t.pins[:i], t.pins[i+1:]...)
			break
		}
	}
	if t.pinCounts[block] <= 0 {
		delete(t.pinCounts, block)
		delete(t.buffers, block)
	}
}

func (t *Transaction) bufferFor(block file.BlockID) (*buffer.Buffer, error) {
	buf, ok := t.buffers[block]
	if !ok {
		return nil, fmt.Errorf("tx %d: block %s is not pinned", t.id, block)
	}
	return buf, nil
}

// GetInt32 takes a shared lock on block, then reads offset from its page.
func (t *Transaction) GetInt32(block file.BlockID, offset int64) (int32, error) {
	if err := t.cm.LockShared(block); err != nil {
		return 0, err
	}
	buf, err := t.bufferFor(block)
	if err != nil {
		return 0, err
	}
	return buf.Page().GetInt32(int(offset)), nil
}

// SetInt32 takes an exclusive lock on block, optionally logs an undo
// record, then mutates the page and marks the buffer dirty.
func (t *Transaction) SetInt32(block file.BlockID, offset int64, value int32, doLog bool) error {
	if err := t.cm.LockExclusive(block); err != nil {
		return err
	}
	buf, err := t.bufferFor(block)
	if err != nil {
		return err
	}
	page := buf.Page()
	var lsn wal.LSN
	if doLog {
		old := page.GetInt32(int(offset))
		lsn, err = t.lm.Append(wal.SetInt32Record(t.id, block, offset, old, value))
		if err != nil {
			return fmt.Errorf("tx %d: log SetInt32: %w", t.id, err)
		}
	}
	page.SetInt32(int(offset), value)
	if doLog {
		buf.MarkModified(t.id, lsn)
	}
	return nil
}

// GetString takes a shared lock on block, then reads a length-prefixed
// string at offset.
func (t *Transaction) GetString(block file.BlockID, offset int64) (string, error) {
	if err := t.cm.LockShared(block); err != nil {
		return "", err
	}
	buf, err := t.bufferFor(block)
	if err != nil {
		return "", err
	}
	s, _ := buf.Page().GetString(int(offset))
	return s, nil
}

// SetString takes an exclusive lock on block, optionally logs the
// overwritten bytes as an undo image, then writes value at offset.
func (t *Transaction) SetString(block file.BlockID, offset int64, value string, doLog bool) error {
	if err := t.cm.LockExclusive(block); err != nil {
		return err
	}
	buf, err := t.bufferFor(block)
	if err != nil {
		return err
	}
	page := buf.Page()
	var lsn wal.LSN
	if doLog {
		old, _ := page.GetBytes(int(offset))
		oldCopy := append([]byte(nil), old...)
		lsn, err = t.lm.Append(wal.SetBytesRecord(t.id, block, offset, oldCopy))
		if err != nil {
			return fmt.Errorf("tx %d: log SetBytes: %w", t.id, err)
		}
	}
	if _, err := page.SetString(int(offset), value); err != nil {
		return fmt.Errorf("tx %d: set string: %w", t.id, err)
	}
	if doLog {
		buf.MarkModified(t.id, lsn)
	}
	return nil
}

// AppendBlock grows fileName by one zeroed block, serialized against
// concurrent growers via the file's end-of-file sentinel lock.
func (t *Transaction) AppendBlock(fileName string) (file.BlockID, error) {
	sentinel := endOfFile(fileName)
	if err := t.cm.LockExclusive(sentinel); err != nil {
		return file.BlockID{}, err
	}
	block, err := t.fm.AppendBlock(fileName)
	if err != nil {
		return file.BlockID{}, fmt.Errorf("tx %d: append block to %s: %w", t.id, fileName, err)
	}
	return block, nil
}

// NumBlocks returns fileName's current block count, taking a shared lock
// on the end-of-file sentinel first.
func (t *Transaction) NumBlocks(fileName string) (int, error) {
	sentinel := endOfFile(fileName)
	if err := t.cm.LockShared(sentinel); err != nil {
		return 0, err
	}
	n, err := t.fm.NumBlocks(fileName)
	if err != nil {
		return 0, fmt.Errorf("tx %d: num blocks of %s: %w", t.id, fileName, err)
	}
	return n, nil
}

func (t *Transaction) unpinAll() {
	for len(t.pins) > 0 {
		t.Unpin(t.pins[0])
	}
}

// Commit flushes every buffer this transaction dirtied, force-writes a
// Commit record, releases every lock, and unpins every block.
func (t *Transaction) Commit() error {
	if err := t.bp.FlushAll(t.id); err != nil {
		return fmt.Errorf("tx %d: commit flush: %w", t.id, err)
	}
	lsn, err := t.lm.Append(wal.CommitRecord(t.id))
	if err != nil {
		return fmt.Errorf("tx %d: append commit record: %w", t.id, err)
	}
	if err := t.lm.Flush(lsn); err != nil {
		return fmt.Errorf("tx %d: force commit record: %w", t.id, err)
	}
	t.log.Debug().Int64("tx", t.id).Msg("tx: committed")
	t.cm.Release()
	t.unpinAll()
	return nil
}

// undoRecord re-pins the record's block, rewrites the old value without
// logging, and unpins — used by both Rollback and Recover.
func (t *Transaction) undoRecord(rec wal.Record) error {
	switch rec.Kind {
	case wal.KindSetInt32:
		if err := t.Pin(rec.Block); err != nil {
			return err
		}
		defer t.Unpin(rec.Block)
		return t.SetInt32(rec.Block, rec.Offset, rec.OldInt32, false)
	case wal.KindSetBytes:
		if err := t.Pin(rec.Block); err != nil {
			return err
		}
		defer t.Unpin(rec.Block)
		return t.SetString(rec.Block, rec.Offset, string(rec.OldBytes), false)
	default:
		return nil
	}
}

// Rollback undoes every write this transaction logged, then appends a
// Rollback record, releases locks, and unpins every block.
func (t *Transaction) Rollback() error {
	it, err := t.lm.Iterate()
	if err != nil {
		return fmt.Errorf("tx %d: rollback iterate: %w", t.id, err)
	}
	for {
		rec, ok := it.Next()
		if !ok {
			break
		}
		if rec.TxID != t.id {
			continue
		}
		if rec.Kind == wal.KindStart {
			break
		}
		if err := t.undoRecord(rec); err != nil {
			return fmt.Errorf("tx %d: rollback undo: %w", t.id, err)
		}
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("tx %d: rollback iterate: %w", t.id, err)
	}

	if err := t.bp.FlushAll(t.id); err != nil {
		return fmt.Errorf("tx %d: rollback flush: %w", t.id, err)
	}
	lsn, err := t.lm.Append(wal.RollbackRecord(t.id))
	if err != nil {
		return fmt.Errorf("tx %d: append rollback record: %w", t.id, err)
	}
	if err := t.lm.Flush(lsn); err != nil {
		return fmt.Errorf("tx %d: force rollback record: %w", t.id, err)
	}
	t.log.Debug().Int64("tx", t.id).Msg("tx: rolled back")
	t.cm.Release()
	t.unpinAll()
	return nil
}

// Recover replays crash recovery: every record not belonging to a
// transaction already known to have committed or rolled back (stopping
// the backward scan at the first Checkpoint) is undone, then a Checkpoint
// is appended. Idempotent modulo that extra Checkpoint record — running it
// twice in a row finds no un-finished records the second time.
func (t *Transaction) Recover() error {
	it, err := t.lm.Iterate()
	if err != nil {
		return fmt.Errorf("tx %d: recover iterate: %w", t.id, err)
	}

	finished := make(map[int64]bool)
	var toUndo []wal.Record
	for {
		rec, ok := it.Next()
		if !ok {
			break
		}
		if rec.Kind == wal.KindCheckpoint {
			break
		}
		switch rec.Kind {
		case wal.KindCommit, wal.KindRollback:
			finished[rec.TxID] = true
		default:
			if !finished[rec.TxID] {
				toUndo = append(toUndo, rec)
			}
		}
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("tx %d: recover iterate: %w", t.id, err)
	}

	for _, rec := range toUndo {
		if err := t.undoRecord(rec); err != nil {
			return fmt.Errorf("tx %d: recover undo: %w", t.id, err)
		}
	}

	if err := t.bp.FlushAll(t.id); err != nil {
		return fmt.Errorf("tx %d: recover flush: %w", t.id, err)
	}
	lsn, err := t.lm.Append(wal.CheckpointRecord(t.id))
	if err != nil {
		return fmt.Errorf("tx %d: append checkpoint: %w", t.id, err)
	}
	if err := t.lm.Flush(lsn); err != nil {
		return fmt.Errorf("tx %d: force checkpoint: %w", t.id, err)
	}
	t.log.Debug().Int64("tx", t.id).Int("undone", len(toUndo)).Msg("tx: recovered")
	return nil
}
