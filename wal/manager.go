package wal

import (
	"fmt"
	"sync"

	"github.com/flowlight0/simpledb-go/file"
	"github.com/rs/zerolog"
)

// LSN is a log sequence number: the monotone value append_record returns,
// used by the buffer pool's write-ahead rule.
type LSN int64

// Manager owns the single in-memory current log page and appends records
// right-to-left within it, flushing and allocating a fresh block when a
// record no longer fits. One mutex serializes all appends (spec §5: "one
// mutex for the log manager").
//
// Grounded on _examples/original_source/src/log/manager.rs; restyled after
// the teacher's btree/wal.go (receiver methods, explicit Flush/Iterate,
// fmt.Errorf wrapping) though the wire format here has no checksum.
type Manager struct {
	fm       *file.Manager
	logFile  string
	mu       sync.Mutex
	page     *file.Page
	block    file.BlockID
	latest   LSN
	lastSave LSN
	log      zerolog.Logger
}

// NewManager opens (or creates) logFile inside fm and positions the
// manager at its last block, reading the persisted boundary. If the file
// is empty, a fresh zeroed block is appended and its boundary initialized
// to the block size.
func NewManager(fm *file.Manager, logFile string, logger zerolog.Logger) (*Manager, error) {
	m := &Manager{fm: fm, logFile: logFile, log: logger}

	numBlocks, err := fm.NumBlocks(logFile)
	if err != nil {
		return nil, fmt.Errorf("wal: inspect log file: %w", err)
	}

	if numBlocks == 0 {
		block, err := fm.AppendBlock(logFile)
		if err != nil {
			return nil, fmt.Errorf("wal: allocate first log block: %w", err)
		}
		page := file.NewPage(fm.BlockSize())
		page.SetInt32(0, int32(fm.BlockSize()))
		if err := fm.Write(block, page); err != nil {
			return nil, fmt.Errorf("wal: initialize first log block: %w", err)
		}
		m.block = block
		m.page = page
		return m, nil
	}

	block := file.NewBlockID(logFile, numBlocks-1)
	page := file.NewPage(fm.BlockSize())
	if err := fm.Read(block, page); err != nil {
		return nil, fmt.Errorf("wal: read last log block: %w", err)
	}
	m.block = block
	m.page = page
	return m, nil
}

func (m *Manager) boundary() int32 {
	return m.page.GetInt32(0)
}

func (m *Manager) setBoundary(v int32) {
	m.page.SetInt32(0, v)
}

func (m *Manager) flushCurrentLocked() error {
	if err := m.fm.Write(m.block, m.page); err != nil {
		return fmt.Errorf("wal: flush log block %s: %w", m.block, err)
	}
	m.lastSave = m.latest
	return nil
}

func (m *Manager) appendNewBlockLocked() error {
	block, err := m.fm.AppendBlock(m.logFile)
	if err != nil {
		return fmt.Errorf("wal: allocate log block: %w", err)
	}
	page := file.NewPage(m.fm.BlockSize())
	page.SetInt32(0, int32(m.fm.BlockSize()))
	if err := m.fm.Write(block, page); err != nil {
		return fmt.Errorf("wal: initialize log block %s: %w", block, err)
	}
	m.block = block
	m.page = page
	return nil
}

// Append writes rec into the current block, flushing and rolling to a
// fresh block first if it would not fit, and returns its LSN.
func (m *Manager) Append(rec Record) (LSN, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	recLen := rec.EncodedLen()
	boundary := int(m.boundary())

	if boundary-recLen < 4 {
		if err := m.flushCurrentLocked(); err != nil {
			return 0, err
		}
		if err := m.appendNewBlockLocked(); err != nil {
			return 0, err
		}
		boundary = int(m.boundary())
	}

	newBoundary := boundary - recLen
	copy(m.page.Bytes()[newBoundary:boundary], rec.Encode())
	m.setBoundary(int32(newBoundary))

	m.latest++
	m.log.Debug().Stringer("kind", rec.Kind).Int64("tx", rec.TxID).Int64("lsn", int64(m.latest)).Msg("wal: appended record")
	return m.latest, nil
}

// Flush forces the current page to disk if lsn has not already been
// persisted.
func (m *Manager) Flush(lsn LSN) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lsn < m.lastSave {
		return nil
	}
	return m.flushCurrentLocked()
}

// Iterator walks the log backward (newest-first), crossing block
// boundaries automatically and stopping when there is no previous block.
type Iterator struct {
	fm       *file.Manager
	logFile  string
	block    file.BlockID
	page     *file.Page
	pos      int
	boundary int
	err      error
	done     bool
}

// Iterate flushes the current log page to disk, then returns a backward
// iterator starting from the manager's current block, so every record
// appended so far is visible to it.
func (m *Manager) Iterate() (*Iterator, error) {
	m.mu.Lock()
	if err := m.flushCurrentLocked(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	block := m.block
	m.mu.Unlock()
	return m.iterateFrom(block)
}

func (m *Manager) iterateFrom(block file.BlockID) (*Iterator, error) {
	page := file.NewPage(m.fm.BlockSize())
	if err := m.fm.Read(block, page); err != nil {
		return nil, fmt.Errorf("wal: read log block %s: %w", block, err)
	}
	it := &Iterator{fm: m.fm, logFile: m.logFile, block: block, page: page}
	it.boundary = int(page.GetInt32(0))
	it.pos = it.boundary
	return it, nil
}

// Next decodes the next record (newest-first) and advances the cursor. It
// reports false once the backward scan is exhausted (no previous block);
// Err distinguishes exhaustion from a genuine I/O or decode failure.
func (it *Iterator) Next() (Record, bool) {
	if it.done || it.err != nil {
		return Record{}, false
	}

	if it.pos == it.page.Len() {
		prev, ok := it.block.Previous()
		if !ok {
			it.done = true
			return Record{}, false
		}
		page := file.NewPage(it.fm.BlockSize())
		if err := it.fm.Read(prev, page); err != nil {
			it.err = fmt.Errorf("wal: read log block %s: %w", prev, err)
			return Record{}, false
		}
		it.block = prev
		it.page = page
		it.pos = int(page.GetInt32(0))
		if it.pos == it.page.Len() {
			it.done = true
			return Record{}, false
		}
	}

	rec, err := Decode(it.page.Bytes()[it.pos:])
	if err != nil {
		it.err = err
		return Record{}, false
	}
	it.pos += rec.EncodedLen()
	return rec, true
}

// Err returns the first error encountered during iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}
