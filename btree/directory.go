package btree

import (
	"github.com/flowlight0/simpledb-go/file"
	"github.com/flowlight0/simpledb-go/tx"
)

// DirEntry is a promoted (or sentinel) directory entry: a key and the
// child block it routes to.
type DirEntry struct {
	Key       Value
	BlockSlot int
}

// Directory is a B-tree directory node: level k>0 entries point at
// further directory blocks in the same file; level 0 entries point at
// leaf-file blocks.
type Directory struct {
	tx       *tx.Transaction
	fileName string
	layout   *Layout
	page     *Page
}

// NewDirectory opens a directory node on block.
func NewDirectory(t *tx.Transaction, fileName string, block file.BlockID, layout *Layout) (*Directory, error) {
	page, err := NewPage(t, block, layout)
	if err != nil {
		return nil, err
	}
	return &Directory{tx: t, fileName: fileName, layout: layout, page: page}, nil
}

// Close releases the directory's pinned page.
func (d *Directory) Close() {
	d.page.Close()
}

func (d *Directory) level() (int32, error) {
	return d.page.GetFlag()
}

// findChildBlockSlot returns the slot to follow for key: the slot just
// before key, bumped right by one if the following slot's key equals key
// (right-biased on equality, so duplicate directory keys route to the
// newest subtree).
func (d *Directory) findChildBlockSlot(key Value) (int, error) {
	slot, err := d.page.FindSlotBefore(key)
	if err != nil {
		return 0, err
	}
	n, err := d.page.NumRecords()
	if err != nil {
		return 0, err
	}
	if slot+1 < n {
		next, err := d.page.GetValue(slot + 1)
		if err != nil {
			return 0, err
		}
		if next.Equal(key) {
			slot++
		}
	}
	return slot, nil
}

// Search descends the directory chain for key and returns the leaf-file
// block slot to open.
func (d *Directory) Search(key Value) (int, error) {
	for {
		lvl, err := d.level()
		if err != nil {
			return 0, err
		}
		slot, err := d.findChildBlockSlot(key)
		if err != nil {
			return 0, err
		}
		childBlockSlot, err := d.page.GetBlockSlot(slot)
		if err != nil {
			return 0, err
		}
		if lvl == 0 {
			return childBlockSlot, nil
		}
		next, err := NewPage(d.tx, file.NewBlockID(d.fileName, childBlockSlot), d.layout)
		if err != nil {
			return 0, err
		}
		d.page.Close()
		d.page = next
	}
}

// insertEntry writes entry at its sorted position, splitting the page at
// its midpoint (promoting the right half's first key) if it is now full.
func (d *Directory) insertEntry(entry DirEntry) (*DirEntry, error) {
	before, err := d.page.FindSlotBefore(entry.Key)
	if err != nil {
		return nil, err
	}
	slot := before + 1
	if err := d.page.InsertEmptySlot(slot); err != nil {
		return nil, err
	}
	if err := d.page.SetValue(slot, entry.Key); err != nil {
		return nil, err
	}
	if err := d.page.SetBlockSlot(slot, entry.BlockSlot); err != nil {
		return nil, err
	}

	full, err := d.page.IsFull()
	if err != nil || !full {
		return nil, err
	}

	n, err := d.page.NumRecords()
	if err != nil {
		return nil, err
	}
	splitPos := n / 2
	splitKey, err := d.page.GetValue(splitPos)
	if err != nil {
		return nil, err
	}
	lvl, err := d.level()
	if err != nil {
		return nil, err
	}
	newBlock, err := d.page.Split(splitPos, lvl)
	if err != nil {
		return nil, err
	}
	return &DirEntry{Key: splitKey, BlockSlot: newBlock.Slot}, nil
}

// Insert routes entry to the appropriate leaf-level directory node
// (recursing through intermediate levels) and merges any split promotion
// back up the call chain.
func (d *Directory) Insert(entry DirEntry) (*DirEntry, error) {
	lvl, err := d.level()
	if err != nil {
		return nil, err
	}
	if lvl == 0 {
		return d.insertEntry(entry)
	}

	slot, err := d.findChildBlockSlot(entry.Key)
	if err != nil {
		return nil, err
	}
	childBlockSlot, err := d.page.GetBlockSlot(slot)
	if err != nil {
		return nil, err
	}
	child, err := NewDirectory(d.tx, d.fileName, file.NewBlockID(d.fileName, childBlockSlot), d.layout)
	if err != nil {
		return nil, err
	}
	promoted, err := child.Insert(entry)
	child.Close()
	if err != nil {
		return nil, err
	}
	if promoted == nil {
		return nil, nil
	}
	return d.insertEntry(*promoted)
}

// MakeNewRoot handles the root-split case: the current root's contents
// move into a freshly allocated block at the same level, and the root
// block itself is reformatted one level higher holding two entries — the
// old content (keyed by its original first value) and the newly promoted
// entry.
func (d *Directory) MakeNewRoot(entry DirEntry) error {
	firstVal, err := d.page.GetValue(0)
	if err != nil {
		return err
	}
	oldLevel, err := d.level()
	if err != nil {
		return err
	}

	newBlock, err := d.page.Split(0, oldLevel)
	if err != nil {
		return err
	}

	if err := d.page.Format(oldLevel + 1); err != nil {
		return err
	}
	if _, err := d.insertEntry(DirEntry{Key: firstVal, BlockSlot: newBlock.Slot}); err != nil {
		return err
	}
	if _, err := d.insertEntry(entry); err != nil {
		return err
	}
	return nil
}
