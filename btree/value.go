// Package btree implements the secondary index: a shared slotted page
// format for directory and leaf nodes, leaves with overflow chains for
// runs of equal keys, directories with recursive insert and root-split
// promotion, and the Index façade tying them together.
//
// Grounded on _examples/original_source/src/index/btree/btree_page.rs,
// btree_leaf.rs, btree_directory.rs and btree_index.rs, restyled after the
// teacher's btree/btree.go (Config-carrying constructors, receiver
// methods, Close-based resource release standing in for the source's
// Drop impl).
package btree

import (
	"fmt"
	"math"

	"github.com/flowlight0/simpledb-go/record"
)

// Value is a B-tree key: either an I32 or a String, matching the two
// field types a Schema can index. Null sorts greater than every concrete
// value, mirroring _examples/original_source/src/record/field.rs's Value
// ordering. The sentinel entry at the root of every directory file is
// MinValue, not Null.
type Value struct {
	Type  record.FieldType
	Int32 int32
	Str   string
	Null  bool
}

// Int32Value wraps an I32 key.
func Int32Value(v int32) Value { return Value{Type: record.TypeInt32, Int32: v} }

// StringValue wraps a string key.
func StringValue(v string) Value { return Value{Type: record.TypeString, Str: v} }

// MinValue returns the smallest possible value of typ — the sentinel key
// stored at slot 0 of every directory file.
func MinValue(typ record.FieldType) Value {
	if typ == record.TypeInt32 {
		return Int32Value(math.MinInt32)
	}
	return StringValue("")
}

// Less reports whether v sorts strictly before other. Both must be the
// same concrete type (never mix I32 and String keys within one index).
func (v Value) Less(other Value) bool {
	if other.Null {
		return !v.Null
	}
	if v.Null {
		return false
	}
	switch v.Type {
	case record.TypeInt32:
		return v.Int32 < other.Int32
	case record.TypeString:
		return v.Str < other.Str
	default:
		panic(fmt.Sprintf("btree: comparing unknown value type %v", v.Type))
	}
}

// Equal reports whether v and other carry the same key.
func (v Value) Equal(other Value) bool {
	if v.Null || other.Null {
		return v.Null == other.Null
	}
	switch v.Type {
	case record.TypeInt32:
		return v.Int32 == other.Int32
	case record.TypeString:
		return v.Str == other.Str
	default:
		return false
	}
}

// RecordID identifies one tuple by (block slot, record slot within that
// block) — the payload a leaf entry points at.
type RecordID struct {
	BlockSlot  int
	RecordSlot int
}
