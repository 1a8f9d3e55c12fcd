package btree

import (
	"fmt"
	"io"
	"math"

	"github.com/flowlight0/simpledb-go/file"
	"github.com/flowlight0/simpledb-go/tx"
)

// Index is the B-tree secondary index façade: before_first/next/get/
// insert/delete over a pair of files, `<name>_leaf` and `<name>_directory`.
type Index struct {
	tx           *tx.Transaction
	leafFileName string
	dirFileName  string
	leafLayout   *Layout
	dirLayout    *Layout

	leaf *Leaf
	key  Value
}

// New opens (creating if necessary) the index named indexName over
// leafLayout: ensures block 0 of the leaf file exists and is formatted
// with no overflow, builds the directory layout from the leaf layout's
// value column, and ensures the directory file's root block exists with
// a level-0 sentinel entry keyed at the value type's minimum.
func New(t *tx.Transaction, indexName string, leafLayout *Layout) (*Index, error) {
	leafFileName := indexName + "_leaf"
	dirFileName := indexName + "_directory"
	dirLayout := DirectoryLayoutFor(leafLayout)

	idx := &Index{tx: t, leafFileName: leafFileName, dirFileName: dirFileName, leafLayout: leafLayout, dirLayout: dirLayout}

	if err := idx.ensureLeafRoot(); err != nil {
		return nil, err
	}
	if err := idx.ensureDirectoryRoot(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) ensureLeafRoot() error {
	n, err := idx.tx.NumBlocks(idx.leafFileName)
	if err != nil {
		return fmt.Errorf("btree: inspect leaf file: %w", err)
	}
	if n > 0 {
		return nil
	}
	block, err := idx.tx.AppendBlock(idx.leafFileName)
	if err != nil {
		return fmt.Errorf("btree: allocate leaf root: %w", err)
	}
	page, err := NewPage(idx.tx, block, idx.leafLayout)
	if err != nil {
		return err
	}
	defer page.Close()
	return page.Format(overflowNone)
}

func (idx *Index) ensureDirectoryRoot() error {
	n, err := idx.tx.NumBlocks(idx.dirFileName)
	if err != nil {
		return fmt.Errorf("btree: inspect directory file: %w", err)
	}
	if n > 0 {
		return nil
	}
	block, err := idx.tx.AppendBlock(idx.dirFileName)
	if err != nil {
		return fmt.Errorf("btree: allocate directory root: %w", err)
	}
	page, err := NewPage(idx.tx, block, idx.dirLayout)
	if err != nil {
		return err
	}
	defer page.Close()
	if err := page.Format(0); err != nil {
		return err
	}
	if err := page.InsertEmptySlot(0); err != nil {
		return err
	}
	sentinel := MinValue(idx.dirLayout.ValueType())
	if err := page.SetValue(0, sentinel); err != nil {
		return err
	}
	return page.SetBlockSlot(0, 0)
}

func (idx *Index) directoryRoot() (file.BlockID, error) {
	return file.NewBlockID(idx.dirFileName, 0), nil
}

func (idx *Index) searchLeafBlock(key Value) (int, error) {
	rootBlock, err := idx.directoryRoot()
	if err != nil {
		return 0, err
	}
	root, err := NewDirectory(idx.tx, idx.dirFileName, rootBlock, idx.dirLayout)
	if err != nil {
		return 0, err
	}
	defer root.Close()
	return root.Search(key)
}

// BeforeFirst positions the index on the first candidate leaf entry for
// key; Next/Get operate relative to it until the next BeforeFirst or
// Close.
func (idx *Index) BeforeFirst(key Value) error {
	if idx.leaf != nil {
		idx.leaf.Close()
		idx.leaf = nil
	}
	leafBlockSlot, err := idx.searchLeafBlock(key)
	if err != nil {
		return err
	}
	leaf, err := NewLeaf(idx.tx, idx.leafFileName, file.NewBlockID(idx.leafFileName, leafBlockSlot), idx.leafLayout, key)
	if err != nil {
		return err
	}
	idx.leaf = leaf
	idx.key = key
	return nil
}

// Next advances to the next matching entry.
func (idx *Index) Next() (bool, error) {
	return idx.leaf.Next()
}

// Get returns the current entry's record id.
func (idx *Index) Get() (RecordID, error) {
	return idx.leaf.GetDataRecordID()
}

// Insert adds (value, rid), splitting leaf and/or directory nodes and
// growing the tree's root if necessary.
func (idx *Index) Insert(value Value, rid RecordID) error {
	if err := idx.BeforeFirst(value); err != nil {
		return err
	}
	defer func() {
		idx.leaf.Close()
		idx.leaf = nil
	}()

	promoted, err := idx.leaf.Insert(rid)
	if err != nil {
		return err
	}
	if promoted == nil {
		return nil
	}

	rootBlock, err := idx.directoryRoot()
	if err != nil {
		return err
	}
	root, err := NewDirectory(idx.tx, idx.dirFileName, rootBlock, idx.dirLayout)
	if err != nil {
		return err
	}
	defer root.Close()

	rootPromoted, err := root.Insert(*promoted)
	if err != nil {
		return err
	}
	if rootPromoted != nil {
		return root.MakeNewRoot(*rootPromoted)
	}
	return nil
}

// Delete removes (value, rid) if present.
func (idx *Index) Delete(value Value, rid RecordID) error {
	if err := idx.BeforeFirst(value); err != nil {
		return err
	}
	defer func() {
		idx.leaf.Close()
		idx.leaf = nil
	}()
	return idx.leaf.Delete(rid)
}

// Close releases the current cursor leaf, if any.
func (idx *Index) Close() {
	if idx.leaf != nil {
		idx.leaf.Close()
		idx.leaf = nil
	}
}

// SearchCost estimates the number of block reads a lookup costs, for a
// future cost-based planner (spec §4.12): 1 + ceil(log2(B+1)/log2(R+1)).
func SearchCost(numBlocks, recordsPerBlock int) int {
	if recordsPerBlock <= 1 {
		return 1 + numBlocks
	}
	return 1 + int(math.Ceil(math.Log(float64(numBlocks+1))/math.Log(float64(recordsPerBlock+1))))
}

// DebugPrint walks the directory tree and every leaf block, writing a
// human-readable trace — diagnostic only, not part of the index's
// transactional surface.
func (idx *Index) DebugPrint(w io.Writer) error {
	rootBlock, err := idx.directoryRoot()
	if err != nil {
		return err
	}
	return idx.debugPrintDirectory(w, rootBlock, 0)
}

func (idx *Index) debugPrintDirectory(w io.Writer, block file.BlockID, depth int) error {
	page, err := NewPage(idx.tx, block, idx.dirLayout)
	if err != nil {
		return err
	}
	defer page.Close()

	lvl, err := page.GetFlag()
	if err != nil {
		return err
	}
	n, err := page.NumRecords()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%*sdirectory block=%d level=%d entries=%d\n", depth*2, "", block.Slot, lvl, n)
	for i := 0; i < n; i++ {
		v, err := page.GetValue(i)
		if err != nil {
			return err
		}
		childSlot, err := page.GetBlockSlot(i)
		if err != nil {
			return err
		}
		if lvl > 0 {
			if err := idx.debugPrintDirectory(w, file.NewBlockID(idx.dirFileName, childSlot), depth+1); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(w, "%*s  -> leaf block=%d key=%v\n", depth*2, "", childSlot, v)
		}
	}
	return nil
}
