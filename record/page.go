package record

import (
	"github.com/flowlight0/simpledb-go/file"
	"github.com/flowlight0/simpledb-go/tx"
)

const (
	flagEmpty int32 = 0
	flagUsed  int32 = 1

	// endOfBlock is the "no such slot" marker next_after/insert_after
	// return once the block is exhausted.
	endOfBlock = -1
)

// Page is the slotted-block view of a transaction-pinned block: every
// slot starts with a 4-byte used/free flag, followed by the fields a
// Layout places after it.
type Page struct {
	tx     *tx.Transaction
	block  file.BlockID
	layout *Layout
}

// NewPage pins block and returns a Page over it; Close must be called to
// release the pin.
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

func (p *Page) slotOffset(slot int) int {
	return slot * p.layout.SlotSize()
}

func (p *Page) isValidSlot(slot int) bool {
	return p.slotOffset(slot+1) <= p.tx.BlockSize()
}

// Format writes an empty flag and zeroes every field of every slot that
// fits in the block, so unused slots decode cleanly.
func (p *Page) Format() error {
	slot := 0
	for p.isValidSlot(slot) {
		if err := p.tx.SetInt32(p.block, int64(p.slotOffset(slot)), flagEmpty, false); err != nil {
			return err
		}
		for _, name := range p.layout.Schema().Fields() {
			offset := int64(p.slotOffset(slot) + p.layout.Offset(name))
			spec := p.layout.Schema().Spec(name)
			if spec.Type == TypeInt32 {
				if err := p.tx.SetInt32(p.block, offset, 0, false); err != nil {
					return err
				}
			} else {
				if err := p.tx.SetString(p.block, offset, "", false); err != nil {
					return err
				}
			}
		}
		slot++
	}
	return nil
}

func (p *Page) flagAt(slot int) (int32, error) {
	return p.tx.GetInt32(p.block, int64(p.slotOffset(slot)))
}

func (p *Page) searchAfter(slot int, wantFlag int32) (int, error) {
	slot++
	for p.isValidSlot(slot) {
		flag, err := p.flagAt(slot)
		if err != nil {
			return endOfBlock, err
		}
		if flag == wantFlag {
			return slot, nil
		}
		slot++
	}
	return endOfBlock, nil
}

// NextAfter returns the next used slot strictly after slot, or
// endOfBlock(-1) if none remains.
func (p *Page) NextAfter(slot int) (int, error) {
	return p.searchAfter(slot, flagUsed)
}

// InsertAfter finds the next empty slot at or after slot+1, marks it
// used, and returns its index; returns endOfBlock(-1) if the block is
// full.
func (p *Page) InsertAfter(slot int) (int, error) {
	next, err := p.searchAfter(slot, flagEmpty)
	if err != nil {
		return endOfBlock, err
	}
	if next == endOfBlock {
		return endOfBlock, nil
	}
	if err := p.setFlag(next, flagUsed); err != nil {
		return endOfBlock, err
	}
	return next, nil
}

func (p *Page) setFlag(slot int, flag int32) error {
	return p.tx.SetInt32(p.block, int64(p.slotOffset(slot)), flag, true)
}

// Delete marks slot empty.
func (p *Page) Delete(slot int) error {
	return p.setFlag(slot, flagEmpty)
}

// IsUsed reports whether slot currently carries live data.
func (p *Page) IsUsed(slot int) (bool, error) {
	flag, err := p.flagAt(slot)
	if err != nil {
		return false, err
	}
	return flag == flagUsed, nil
}

func (p *Page) fieldOffset(slot int, field string) int64 {
	return int64(p.slotOffset(slot) + p.layout.Offset(field))
}

// GetInt32 reads an I32 field of slot.
func (p *Page) GetInt32(slot int, field string) (int32, error) {
	return p.tx.GetInt32(p.block, p.fieldOffset(slot, field))
}

// SetInt32 writes an I32 field of slot, undo-logged.
func (p *Page) SetInt32(slot int, field string, value int32) error {
	return p.tx.SetInt32(p.block, p.fieldOffset(slot, field), value, true)
}

// GetString reads a string field of slot.
func (p *Page) GetString(slot int, field string) (string, error) {
	return p.tx.GetString(p.block, p.fieldOffset(slot, field))
}

// SetString writes a string field of slot, undo-logged.
func (p *Page) SetString(slot int, field string, value string) error {
	return p.tx.SetString(p.block, p.fieldOffset(slot, field), value, true)
}
