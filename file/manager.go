package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// Stats is the (reads, writes) access counter pair spec §3 requires the
// file manager to track.
type Stats struct {
	Reads  int64
	Writes int64
}

type handle struct {
	mu   sync.Mutex
	file *os.File
}

// Manager maps (file, block#) pairs to bytes on disk. It owns a root
// directory and a cache of open file handles behind a read-many/write-one
// discipline (sync.RWMutex over the map, one mutex per handle serializing
// seek+io), matching spec §4.2/§5.
//
// Grounded on _examples/original_source/src/file.rs's FileManager; restyled
// after the teacher's btree/pager.go (receiver style, explicit stats
// struct, fmt.Errorf wrapping).
type Manager struct {
	dir       string
	blockSize int

	mu    sync.RWMutex
	files map[string]*handle

	isNew bool

	stats struct {
		reads  atomic.Int64
		writes atomic.Int64
	}
}

// Options configures Manager construction.
type Options struct {
	// Format, when true, wipes any existing regular files in dir on
	// construction ("bootstrap-as-fresh"). When false (the default) an
	// existing directory's files are left untouched, and the caller uses
	// IsNew to decide whether to format or recover. See DESIGN.md's
	// Open Question decision on this.
	Format bool
}

// NewManager opens (creating if necessary) a block store rooted at dir.
func NewManager(dir string, blockSize int, opts Options) (*Manager, error) {
	_, statErr := os.Stat(dir)
	dirExisted := statErr == nil

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file: create directory %s: %w", dir, err)
	}

	m := &Manager{
		dir:       dir,
		blockSize: blockSize,
		files:     make(map[string]*handle),
		isNew:     !dirExisted,
	}

	if opts.Format {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("file: list directory %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				return nil, fmt.Errorf("file: clear stale file %s: %w", e.Name(), err)
			}
		}
		m.isNew = true
	}

	return m, nil
}

// IsNew reports whether the data directory was freshly created (or wiped
// by Options.Format) at construction time.
func (m *Manager) IsNew() bool {
	return m.isNew
}

// BlockSize returns the configured block size.
func (m *Manager) BlockSize() int {
	return m.blockSize
}

// Stats returns a snapshot of the access counters.
func (m *Manager) Stats() Stats {
	return Stats{Reads: m.stats.reads.Load(), Writes: m.stats.writes.Load()}
}

func (m *Manager) openHandle(fileName string) (*handle, error) {
	m.mu.RLock()
	h, ok := m.files[fileName]
	m.mu.RUnlock()
	if ok {
		return h, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.files[fileName]; ok {
		return h, nil
	}

	f, err := os.OpenFile(filepath.Join(m.dir, fileName), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file: open %s: %w", fileName, err)
	}
	h = &handle{file: f}
	m.files[fileName] = h
	return h, nil
}

// Read fills page with the contents of block.
func (m *Manager) Read(block BlockID, page *Page) error {
	h, err := m.openHandle(block.FileName)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := page.ReadFrom(h.file, int64(block.Slot)*int64(m.blockSize)); err != nil {
		return fmt.Errorf("file: read %s: %w", block, err)
	}
	m.stats.reads.Add(1)
	return nil
}

// Write persists page to block.
func (m *Manager) Write(block BlockID, page *Page) error {
	h, err := m.openHandle(block.FileName)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := page.WriteTo(h.file, int64(block.Slot)*int64(m.blockSize)); err != nil {
		return fmt.Errorf("file: write %s: %w", block, err)
	}
	m.stats.writes.Add(1)
	return nil
}

// AppendBlock writes a zeroed block at EOF of fileName and returns its slot.
func (m *Manager) AppendBlock(fileName string) (BlockID, error) {
	h, err := m.openHandle(fileName)
	if err != nil {
		return BlockID{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	info, err := h.file.Stat()
	if err != nil {
		return BlockID{}, fmt.Errorf("file: stat %s: %w", fileName, err)
	}
	slot := int(info.Size()) / m.blockSize

	zero := make([]byte, m.blockSize)
	if _, err := h.file.WriteAt(zero, info.Size()); err != nil {
		return BlockID{}, fmt.Errorf("file: append block to %s: %w", fileName, err)
	}
	m.stats.writes.Add(1)
	return NewBlockID(fileName, slot), nil
}

// NumBlocks returns the number of blocks currently in fileName.
func (m *Manager) NumBlocks(fileName string) (int, error) {
	h, err := m.openHandle(fileName)
	if err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	info, err := h.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("file: stat %s: %w", fileName, err)
	}
	return int(info.Size()) / m.blockSize, nil
}

// LastBlock returns the last block of fileName.
func (m *Manager) LastBlock(fileName string) (BlockID, error) {
	n, err := m.NumBlocks(fileName)
	if err != nil {
		return BlockID{}, err
	}
	if n == 0 {
		return BlockID{}, fmt.Errorf("file: %s has no blocks", fileName)
	}
	return NewBlockID(fileName, n-1), nil
}

// Close closes all open file handles.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for name, h := range m.files {
		if err := h.file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("file: close %s: %w", name, err)
		}
	}
	m.files = make(map[string]*handle)
	return firstErr
}
