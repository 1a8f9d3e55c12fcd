// Package file implements the block-granular page store: BlockID values,
// the fixed-size Page byte container, and the Manager that maps (file,
// block#) pairs onto disk bytes.
//
// Grounded on _examples/original_source/src/file.rs (BlockId, FileManager)
// and _examples/original_source/src/page.rs, restyled after the teacher's
// btree/page.go and btree/pager.go (receiver methods, sync.RWMutex caches,
// fmt.Errorf wrapping).
package file

import (
	"encoding/binary"
	"fmt"
)

// BlockID addresses one fixed-size block within a named file.
type BlockID struct {
	FileName string
	Slot     int
}

// NewBlockID constructs a BlockID for the given file and slot.
func NewBlockID(fileName string, slot int) BlockID {
	return BlockID{FileName: fileName, Slot: slot}
}

// FirstBlock returns the reserved "first block" of a file (slot 0).
func FirstBlock(fileName string) BlockID {
	return BlockID{FileName: fileName, Slot: 0}
}

// Previous returns the block immediately before b, and false if b is
// already the first block of its file (the reserved "previous-of-slot-0"
// form, which has no concrete value).
func (b BlockID) Previous() (BlockID, bool) {
	if b.Slot == 0 {
		return BlockID{}, false
	}
	return BlockID{FileName: b.FileName, Slot: b.Slot - 1}, true
}

// Next returns the block immediately after b.
func (b BlockID) Next() BlockID {
	return BlockID{FileName: b.FileName, Slot: b.Slot + 1}
}

func (b BlockID) String() string {
	return fmt.Sprintf("[file %s, block %d]", b.FileName, b.Slot)
}

// ToBytesLen returns the number of bytes ToBytes(b) will produce.
func (b BlockID) ToBytesLen() int {
	return 8 + 8 + len(b.FileName)
}

// ToBytes serializes b as totalLen(8) | blockSlot(8) | nameBytes, matching
// spec §6's BlockId wire format.
func (b BlockID) ToBytes() []byte {
	total := b.ToBytesLen()
	out := make([]byte, total)
	binary.LittleEndian.PutUint64(out[0:8], uint64(total))
	binary.LittleEndian.PutUint64(out[8:16], uint64(b.Slot))
	copy(out[16:], b.FileName)
	return out
}

// BlockIDFromBytes decodes a BlockID written by ToBytes, returning the
// number of bytes consumed.
func BlockIDFromBytes(buf []byte) (int, BlockID, error) {
	if len(buf) < 16 {
		return 0, BlockID{}, fmt.Errorf("file: truncated block id (%d bytes)", len(buf))
	}
	total := int(binary.LittleEndian.Uint64(buf[0:8]))
	slot := int(binary.LittleEndian.Uint64(buf[8:16]))
	if len(buf) < total {
		return 0, BlockID{}, fmt.Errorf("file: truncated block id body (want %d, have %d)", total, len(buf))
	}
	name := string(buf[16:total])
	return total, BlockID{FileName: name, Slot: slot}, nil
}
