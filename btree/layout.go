package btree

import "github.com/flowlight0/simpledb-go/record"

// headerSize is the B-tree page header: a 4-byte flag word followed by a
// 4-byte record count (spec §4.9), distinct from record.Page's 4-byte
// used-flag-per-slot header.
const headerSize = 8

const (
	fieldValue      = "value"
	fieldBlockSlot  = "block_slot"
	fieldRecordSlot = "record_slot"
)

// Layout assigns fixed offsets for a B-tree slot's fields: the indexed
// value column, the child/data block-slot column, and — for leaf slots
// only — the record-slot column.
type Layout struct {
	valueType   record.FieldType
	maxStrLen   int
	hasRecord   bool
	offsets     map[string]int
	slotSize    int
}

func newLayout(valueType record.FieldType, maxStrLen int, hasRecordSlot bool) *Layout {
	l := &Layout{valueType: valueType, maxStrLen: maxStrLen, hasRecord: hasRecordSlot, offsets: make(map[string]int)}

	pos := headerSize
	l.offsets[fieldValue] = pos
	if valueType == record.TypeInt32 {
		pos += 4
	} else {
		pos += 2 + maxStrLen
	}
	l.offsets[fieldBlockSlot] = pos
	pos += 4
	if hasRecordSlot {
		l.offsets[fieldRecordSlot] = pos
		pos += 4
	}
	l.slotSize = pos
	return l
}

// LeafLayout builds the layout for a leaf file indexing a field of the
// given type (and, for strings, max length).
func LeafLayout(valueType record.FieldType, maxStrLen int) *Layout {
	return newLayout(valueType, maxStrLen, true)
}

// DirectoryLayoutFor builds the directory-file layout matching a leaf
// layout's value column (spec §4.12: "Build the directory layout from the
// leaf layout's value field").
func DirectoryLayoutFor(leaf *Layout) *Layout {
	return newLayout(leaf.valueType, leaf.maxStrLen, false)
}

// ValueType reports which field type this layout's value column holds.
func (l *Layout) ValueType() record.FieldType { return l.valueType }

// SlotSize returns the total size of one slot in bytes.
func (l *Layout) SlotSize() int { return l.slotSize }
