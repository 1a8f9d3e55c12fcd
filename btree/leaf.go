package btree

import (
	"github.com/flowlight0/simpledb-go/file"
	"github.com/flowlight0/simpledb-go/tx"
)

// startSlot is the "before slot 0" cursor position a Leaf is rewound to
// when it moves onto the next block of an overflow chain.
const startSlot = -1

// Leaf is a B-tree leaf positioned on one search key: the page, a cursor
// slot, and the key every Next()/GetDataRecordID() call is relative to.
// The flag word doubles as an overflow-chain pointer (overflowNone means
// no further block).
type Leaf struct {
	tx       *tx.Transaction
	fileName string
	layout   *Layout
	page     *Page
	slot     int
	key      Value
}

// NewLeaf opens a leaf on block and positions it just before key's first
// candidate slot.
func NewLeaf(t *tx.Transaction, fileName string, block file.BlockID, layout *Layout, key Value) (*Leaf, error) {
	page, err := NewPage(t, block, layout)
	if err != nil {
		return nil, err
	}
	slot, err := page.FindSlotBefore(key)
	if err != nil {
		page.Close()
		return nil, err
	}
	return &Leaf{tx: t, fileName: fileName, layout: layout, page: page, slot: slot, key: key}, nil
}

// Close releases the leaf's pinned page.
func (l *Leaf) Close() {
	l.page.Close()
}

// Next advances the cursor; it reports true while the current slot's key
// still equals the search key, following an overflow chain transparently
// when the current block is exhausted and might continue one.
func (l *Leaf) Next() (bool, error) {
	l.slot++
	n, err := l.page.NumRecords()
	if err != nil {
		return false, err
	}
	if l.slot < n {
		v, err := l.page.GetValue(l.slot)
		if err != nil {
			return false, err
		}
		return v.Equal(l.key), nil
	}
	return l.tryOverflow()
}

func (l *Leaf) tryOverflow() (bool, error) {
	n, err := l.page.NumRecords()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	first, err := l.page.GetValue(0)
	if err != nil {
		return false, err
	}
	if !first.Equal(l.key) {
		return false, nil
	}
	flag, err := l.page.GetFlag()
	if err != nil {
		return false, err
	}
	if flag == overflowNone {
		return false, nil
	}

	next := file.NewBlockID(l.fileName, int(flag))
	l.page.Close()
	page, err := NewPage(l.tx, next, l.layout)
	if err != nil {
		return false, err
	}
	l.page = page
	l.slot = startSlot
	return l.Next()
}

// GetDataRecordID returns the (block, record) slot pair the current entry
// points at.
func (l *Leaf) GetDataRecordID() (RecordID, error) {
	bs, err := l.page.GetBlockSlot(l.slot)
	if err != nil {
		return RecordID{}, err
	}
	rs, err := l.page.GetRecordSlot(l.slot)
	if err != nil {
		return RecordID{}, err
	}
	return RecordID{BlockSlot: bs, RecordSlot: rs}, nil
}

// Delete scans forward from the cursor's current position (following the
// overflow chain as Next does) for an entry matching rid and removes it.
func (l *Leaf) Delete(rid RecordID) error {
	for {
		ok, err := l.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		current, err := l.GetDataRecordID()
		if err != nil {
			return err
		}
		if current == rid {
			if err := l.page.DeleteAndShift(l.slot); err != nil {
				return err
			}
			l.slot--
			return nil
		}
	}
}

// Insert places (l.key, rid) just after the cursor's current position. If
// the block is now full it splits, per the overflow-vs-balanced-split
// policy of spec §4.10, and returns the directory entry to promote (nil
// for an overflow split, which never propagates upward).
func (l *Leaf) Insert(rid RecordID) (*DirEntry, error) {
	l.slot++
	if err := l.page.InsertEmptySlot(l.slot); err != nil {
		return nil, err
	}
	if err := l.page.SetValue(l.slot, l.key); err != nil {
		return nil, err
	}
	if err := l.page.SetBlockSlot(l.slot, rid.BlockSlot); err != nil {
		return nil, err
	}
	if err := l.page.SetRecordSlot(l.slot, rid.RecordSlot); err != nil {
		return nil, err
	}

	full, err := l.page.IsFull()
	if err != nil || !full {
		return nil, err
	}
	return l.split()
}

func (l *Leaf) split() (*DirEntry, error) {
	n, err := l.page.NumRecords()
	if err != nil {
		return nil, err
	}
	first, err := l.page.GetValue(0)
	if err != nil {
		return nil, err
	}
	last, err := l.page.GetValue(n - 1)
	if err != nil {
		return nil, err
	}

	if first.Equal(last) {
		flag, err := l.page.GetFlag()
		if err != nil {
			return nil, err
		}
		newBlock, err := l.page.Split(1, flag)
		if err != nil {
			return nil, err
		}
		if err := l.page.SetFlag(int32(newBlock.Slot)); err != nil {
			return nil, err
		}
		return nil, nil
	}

	splitPos := n / 2
	splitKey, err := l.page.GetValue(splitPos)
	if err != nil {
		return nil, err
	}
	if splitKey.Equal(first) {
		for splitKey.Equal(first) {
			splitPos++
			splitKey, err = l.page.GetValue(splitPos)
			if err != nil {
				return nil, err
			}
		}
	} else if splitKey.Equal(last) {
		for {
			prev, err := l.page.GetValue(splitPos - 1)
			if err != nil {
				return nil, err
			}
			if !prev.Equal(splitKey) {
				break
			}
			splitPos--
		}
	}

	newBlock, err := l.page.Split(splitPos, overflowNone)
	if err != nil {
		return nil, err
	}
	return &DirEntry{Key: splitKey, BlockSlot: newBlock.Slot}, nil
}
