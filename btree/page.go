package btree

import (
	"fmt"

	"github.com/flowlight0/simpledb-go/file"
	"github.com/flowlight0/simpledb-go/record"
	"github.com/flowlight0/simpledb-go/tx"
)

// overflowNone is the leaf-flag sentinel meaning "no overflow chain".
const overflowNone int32 = -1

// Page is the shared slotted page format directories and leaves are both
// built from: a flag word, a record count, then fixed-width slots.
type Page struct {
	tx     *tx.Transaction
	block  file.BlockID
	layout *Layout
}

// NewPage pins block and returns a Page over it.
func NewPage(t *tx.Transaction, block file.BlockID, layout *Layout) (*Page, error) {
	if err := t.Pin(block); err != nil {
		return nil, err
	}
	return &Page{tx: t, block: block, layout: layout}, nil
}

// Close unpins the underlying block.
func (p *Page) Close() {
	p.tx.Unpin(p.block)
}

// Block returns the block this page is positioned on.
func (p *Page) Block() file.BlockID { return p.block }

func (p *Page) slotOffset(slot int) int64 {
	return int64(headerSize + slot*p.layout.SlotSize())
}

// Format sets the flag word, zeroes the record count, and zeroes every
// field of every slot that fits in the block — unlogged, since a freshly
// allocated or about-to-be-reformatted block carries no data worth an
// undo image yet.
func (p *Page) Format(flag int32) error {
	if err := p.tx.SetInt32(p.block, 0, flag, false); err != nil {
		return err
	}
	if err := p.tx.SetInt32(p.block, 4, 0, false); err != nil {
		return err
	}

	slot := 0
	for p.slotOffset(slot+1) <= int64(p.tx.BlockSize()) {
		off := p.slotOffset(slot)
		if err := p.tx.SetInt32(p.block, off+int64(p.layout.offsets[fieldValue]), 0, false); err != nil {
			return err
		}
		if p.layout.valueType == record.TypeString {
			if err := p.tx.SetString(p.block, off+int64(p.layout.offsets[fieldValue]), "", false); err != nil {
				return err
			}
		}
		if err := p.tx.SetInt32(p.block, off+int64(p.layout.offsets[fieldBlockSlot]), 0, false); err != nil {
			return err
		}
		if p.layout.hasRecord {
			if err := p.tx.SetInt32(p.block, off+int64(p.layout.offsets[fieldRecordSlot]), 0, false); err != nil {
				return err
			}
		}
		slot++
	}
	return nil
}

// GetFlag reads the page's flag word.
func (p *Page) GetFlag() (int32, error) {
	return p.tx.GetInt32(p.block, 0)
}

// SetFlag writes the page's flag word.
func (p *Page) SetFlag(flag int32) error {
	return p.tx.SetInt32(p.block, 0, flag, true)
}

// NumRecords reads the page's record count.
func (p *Page) NumRecords() (int, error) {
	n, err := p.tx.GetInt32(p.block, 4)
	return int(n), err
}

func (p *Page) setNumRecords(n int) error {
	return p.tx.SetInt32(p.block, 4, int32(n), true)
}

// IsFull reports whether one more record would not fit in the block.
func (p *Page) IsFull() (bool, error) {
	n, err := p.NumRecords()
	if err != nil {
		return false, err
	}
	return p.slotOffset(n+1) > int64(p.tx.BlockSize()), nil
}

// GetValue reads the value column of slot.
func (p *Page) GetValue(slot int) (Value, error) {
	off := p.slotOffset(slot) + int64(p.layout.offsets[fieldValue])
	if p.layout.valueType == record.TypeInt32 {
		v, err := p.tx.GetInt32(p.block, off)
		return Int32Value(v), err
	}
	s, err := p.tx.GetString(p.block, off)
	return StringValue(s), err
}

// SetValue writes the value column of slot.
func (p *Page) SetValue(slot int, v Value) error {
	off := p.slotOffset(slot) + int64(p.layout.offsets[fieldValue])
	if p.layout.valueType == record.TypeInt32 {
		return p.tx.SetInt32(p.block, off, v.Int32, true)
	}
	return p.tx.SetString(p.block, off, v.Str, true)
}

// GetBlockSlot reads the block-slot column of slot.
func (p *Page) GetBlockSlot(slot int) (int, error) {
	off := p.slotOffset(slot) + int64(p.layout.offsets[fieldBlockSlot])
	v, err := p.tx.GetInt32(p.block, off)
	return int(v), err
}

// SetBlockSlot writes the block-slot column of slot.
func (p *Page) SetBlockSlot(slot int, v int) error {
	off := p.slotOffset(slot) + int64(p.layout.offsets[fieldBlockSlot])
	return p.tx.SetInt32(p.block, off, int32(v), true)
}

// GetRecordSlot reads the record-slot column of slot (leaf layouts only).
func (p *Page) GetRecordSlot(slot int) (int, error) {
	off := p.slotOffset(slot) + int64(p.layout.offsets[fieldRecordSlot])
	v, err := p.tx.GetInt32(p.block, off)
	return int(v), err
}

// SetRecordSlot writes the record-slot column of slot (leaf layouts only).
func (p *Page) SetRecordSlot(slot int, v int) error {
	off := p.slotOffset(slot) + int64(p.layout.offsets[fieldRecordSlot])
	return p.tx.SetInt32(p.block, off, int32(v), true)
}

func (p *Page) copySlot(from *Page, fromSlot int, toSlot int) error {
	v, err := from.GetValue(fromSlot)
	if err != nil {
		return err
	}
	if err := p.SetValue(toSlot, v); err != nil {
		return err
	}
	bs, err := from.GetBlockSlot(fromSlot)
	if err != nil {
		return err
	}
	if err := p.SetBlockSlot(toSlot, bs); err != nil {
		return err
	}
	if p.layout.hasRecord {
		rs, err := from.GetRecordSlot(fromSlot)
		if err != nil {
			return err
		}
		if err := p.SetRecordSlot(toSlot, rs); err != nil {
			return err
		}
	}
	return nil
}

// InsertEmptySlot shifts records [slot..count) one position to the right
// and increments the record count, opening up slot for a new entry.
func (p *Page) InsertEmptySlot(slot int) error {
	n, err := p.NumRecords()
	if err != nil {
		return err
	}
	for i := n; i > slot; i-- {
		if err := p.copySlot(p, i-1, i); err != nil {
			return err
		}
	}
	return p.setNumRecords(n + 1)
}

// DeleteAndShift removes slot, shifting every later record one position
// left and decrementing the record count.
func (p *Page) DeleteAndShift(slot int) error {
	n, err := p.NumRecords()
	if err != nil {
		return err
	}
	for i := slot + 1; i < n; i++ {
		if err := p.copySlot(p, i, i-1); err != nil {
			return err
		}
	}
	return p.setNumRecords(n - 1)
}

// FindSlotBefore returns the largest slot whose key is strictly less than
// key, or -1 ("Start", before slot 0) if none — assuming slot 0's key is
// already ≤ key, per spec §4.9. Equal keys are not "less than", so the
// scan stops before any equal key.
func (p *Page) FindSlotBefore(key Value) (int, error) {
	n, err := p.NumRecords()
	if err != nil {
		return 0, err
	}
	result := -1
	for i := 0; i < n; i++ {
		v, err := p.GetValue(i)
		if err != nil {
			return 0, err
		}
		if v.Less(key) {
			result = i
			continue
		}
		break
	}
	return result, nil
}

// Split appends a new block in the same file as p, formats it with
// newFlag, and transfers records [position..count) from p into it,
// deleting them from p as they move.
func (p *Page) Split(position int, newFlag int32) (file.BlockID, error) {
	newBlock, err := p.tx.AppendBlock(p.block.FileName)
	if err != nil {
		return file.BlockID{}, fmt.Errorf("btree: allocate split block: %w", err)
	}
	newPage, err := NewPage(p.tx, newBlock, p.layout)
	if err != nil {
		return file.BlockID{}, err
	}
	defer newPage.Close()
	if err := newPage.Format(newFlag); err != nil {
		return file.BlockID{}, err
	}

	n, err := p.NumRecords()
	if err != nil {
		return file.BlockID{}, err
	}
	dest := 0
	for src := position; src < n; src++ {
		if err := newPage.copySlot(p, src, dest); err != nil {
			return file.BlockID{}, err
		}
		dest++
	}
	if err := newPage.setNumRecords(dest); err != nil {
		return file.BlockID{}, err
	}
	if err := p.setNumRecords(position); err != nil {
		return file.BlockID{}, err
	}
	return newBlock, nil
}
