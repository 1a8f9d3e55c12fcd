package engine

import (
	"github.com/flowlight0/simpledb-go/file"
	"github.com/flowlight0/simpledb-go/record"
	"github.com/flowlight0/simpledb-go/tx"
)

// insertSlot finds (or allocates) a free slot in fileName for layout and
// returns it positioned and marked used, ready for field writes. This is
// the minimal table-scan behavior engine.DB needs — spec.md's relational
// scans are out of scope, so there is no general-purpose Scan/Plan here,
// only enough record-page traversal to back a single always-indexed
// key/value table.
func insertSlot(t *tx.Transaction, fileName string, layout *record.Layout) (file.BlockID, int, error) {
	n, err := t.NumBlocks(fileName)
	if err != nil {
		return file.BlockID{}, 0, err
	}

	for i := 0; i < n; i++ {
		block := file.NewBlockID(fileName, i)
		page, err := record.NewPage(t, block, layout)
		if err != nil {
			return file.BlockID{}, 0, err
		}
		slot, err := page.InsertAfter(-1)
		if err != nil {
			page.Close()
			return file.BlockID{}, 0, err
		}
		if slot >= 0 {
			page.Close()
			return block, slot, nil
		}
		page.Close()
	}

	block, err := t.AppendBlock(fileName)
	if err != nil {
		return file.BlockID{}, 0, err
	}
	page, err := record.NewPage(t, block, layout)
	if err != nil {
		return file.BlockID{}, 0, err
	}
	defer page.Close()
	if err := page.Format(); err != nil {
		return file.BlockID{}, 0, err
	}
	slot, err := page.InsertAfter(-1)
	if err != nil {
		return file.BlockID{}, 0, err
	}
	return block, slot, nil
}
