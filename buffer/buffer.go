// Package buffer implements the pin/unpin buffer pool: a fixed-size slice
// of Buffer slots backed by the file manager, with wait-with-timeout pin
// semantics and the write-ahead-log flush discipline.
//
// Grounded on _examples/original_source/src/buffer.rs (Buffer,
// BufferManager, PIN_TIME_LIMIT_IN_MILLIS, try_to_pin/choose_unpinned_buffer),
// restyled after the teacher's btree/pager.go (LRU-flavored cache
// bookkeeping, receiver methods) though eviction here picks any unpinned
// buffer rather than an LRU order, per spec §4.4.
package buffer

import (
	"fmt"

	"github.com/flowlight0/simpledb-go/file"
	"github.com/flowlight0/simpledb-go/wal"
)

// Buffer is one pool slot: a page, the block currently assigned to it (if
// any), a pin count, and — when dirty — the id of the transaction that
// last modified it and the LSN of that write.
type Buffer struct {
	fm *file.Manager

	page           *file.Page
	block          file.BlockID
	hasBlock       bool
	pins           int
	modifyingTx    int64
	isDirty        bool
	lastLSN        wal.LSN
}

func newBuffer(fm *file.Manager) *Buffer {
	return &Buffer{fm: fm, page: file.NewPage(fm.BlockSize())}
}

// Page returns the buffer's current page contents.
func (b *Buffer) Page() *file.Page { return b.page }

// Block returns the block assigned to this buffer, if any.
func (b *Buffer) Block() (file.BlockID, bool) { return b.block, b.hasBlock }

// IsPinned reports whether the buffer has at least one outstanding pin.
func (b *Buffer) IsPinned() bool { return b.pins > 0 }

// ModifyingTx returns the id of the transaction that last dirtied this
// buffer, and whether the buffer is currently dirty.
func (b *Buffer) ModifyingTx() (int64, bool) { return b.modifyingTx, b.isDirty }

// MarkModified records that transaction txID wrote this buffer's page at
// lsn; it is now dirty.
func (b *Buffer) MarkModified(txID int64, lsn wal.LSN) {
	b.isDirty = true
	b.modifyingTx = txID
	b.lastLSN = lsn
}

func (b *Buffer) flush(lm *wal.Manager) error {
	if !b.isDirty {
		return nil
	}
	if err := lm.Flush(b.lastLSN); err != nil {
		return fmt.Errorf("buffer: force log before flush: %w", err)
	}
	if err := b.fm.Write(b.block, b.page); err != nil {
		return fmt.Errorf("buffer: flush block %s: %w", b.block, err)
	}
	b.isDirty = false
	return nil
}

// assignToBlock flushes the buffer's current contents if dirty, then
// loads block into the page.
func (b *Buffer) assignToBlock(block file.BlockID, lm *wal.Manager) error {
	if b.hasBlock && b.isDirty {
		if err := b.flush(lm); err != nil {
			return err
		}
	}
	if err := b.fm.Read(block, b.page); err != nil {
		return fmt.Errorf("buffer: assign block %s: %w", block, err)
	}
	b.block = block
	b.hasBlock = true
	return nil
}

func (b *Buffer) pin()   { b.pins++ }
func (b *Buffer) unpin() { b.pins-- }
