// Package wal implements the write-ahead log: tagged log records, the
// right-to-left block-local append format, and the Manager that owns the
// current log block plus a backward iterator over the whole log file.
//
// Grounded on _examples/original_source/src/log/record.rs (tagged enum,
// to_bytes/from_bytes) and _examples/original_source/src/log/manager.rs
// (boundary bookkeeping, backward iterator), restyled after the teacher's
// btree/wal.go (CRC-free here — the source format has no checksum, only a
// type tag and boundary).
package wal

import (
	"encoding/binary"
	"fmt"

	"github.com/flowlight0/simpledb-go/file"
)

// Kind is a log record's one-byte type tag, matching spec §6's tag
// characters.
type Kind byte

const (
	KindStart      Kind = 'S'
	KindCommit     Kind = 'C'
	KindCheckpoint Kind = 'K'
	KindRollback   Kind = 'R'
	KindSetInt32   Kind = 'I'
	// KindSetBytes is the supplemented variant (DESIGN.md's Open Question
	// decisions / spec §9 Open Question 3) making string/bytes updates undo-safe; the source
	// only fully wires SetI32.
	KindSetBytes Kind = 'B'
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "Start"
	case KindCommit:
		return "Commit"
	case KindCheckpoint:
		return "Checkpoint"
	case KindRollback:
		return "Rollback"
	case KindSetInt32:
		return "SetInt32"
	case KindSetBytes:
		return "SetBytes"
	default:
		return fmt.Sprintf("Kind(%q)", byte(k))
	}
}

// Record is a decoded log record. Not every field is meaningful for every
// Kind: Start/Commit/Checkpoint/Rollback only use TxID; SetInt32 uses
// Block/Offset/OldInt32/NewInt32; SetBytes uses Block/Offset/OldBytes (the
// undo image — there is no redo logging in this engine, so no NewBytes is
// carried on the wire).
type Record struct {
	Kind     Kind
	TxID     int64
	Block    file.BlockID
	Offset   int64
	OldInt32 int32
	NewInt32 int32
	OldBytes []byte
}

// StartRecord builds a Start(tid) record.
func StartRecord(txID int64) Record { return Record{Kind: KindStart, TxID: txID} }

// CommitRecord builds a Commit(tid) record.
func CommitRecord(txID int64) Record { return Record{Kind: KindCommit, TxID: txID} }

// CheckpointRecord builds a Checkpoint(tid) record.
func CheckpointRecord(txID int64) Record { return Record{Kind: KindCheckpoint, TxID: txID} }

// RollbackRecord builds a Rollback(tid) record.
func RollbackRecord(txID int64) Record { return Record{Kind: KindRollback, TxID: txID} }

// SetInt32Record builds a SetI32(tid, block, offset, old, new) record.
func SetInt32Record(txID int64, block file.BlockID, offset int64, oldV, newV int32) Record {
	return Record{Kind: KindSetInt32, TxID: txID, Block: block, Offset: offset, OldInt32: oldV, NewInt32: newV}
}

// SetBytesRecord builds a SetBytes(tid, block, offset, old) undo record.
func SetBytesRecord(txID int64, block file.BlockID, offset int64, old []byte) Record {
	return Record{Kind: KindSetBytes, TxID: txID, Block: block, Offset: offset, OldBytes: old}
}

// EncodedLen returns the number of bytes Encode(r) will produce.
func (r Record) EncodedLen() int {
	switch r.Kind {
	case KindStart, KindCommit, KindCheckpoint, KindRollback:
		return 1 + 8
	case KindSetInt32:
		return 1 + 8 + 8 + 4 + 4 + r.Block.ToBytesLen()
	case KindSetBytes:
		return 1 + 8 + 8 + 2 + len(r.OldBytes) + r.Block.ToBytesLen()
	default:
		panic(fmt.Sprintf("wal: encode unknown record kind %v", r.Kind))
	}
}

// Encode serializes r per spec §6's wire format.
func (r Record) Encode() []byte {
	out := make([]byte, r.EncodedLen())
	out[0] = byte(r.Kind)
	binary.LittleEndian.PutUint64(out[1:9], uint64(r.TxID))

	switch r.Kind {
	case KindStart, KindCommit, KindCheckpoint, KindRollback:
		return out
	case KindSetInt32:
		binary.LittleEndian.PutUint64(out[9:17], uint64(r.Offset))
		binary.LittleEndian.PutUint32(out[17:21], uint32(r.OldInt32))
		binary.LittleEndian.PutUint32(out[21:25], uint32(r.NewInt32))
		copy(out[25:], r.Block.ToBytes())
		return out
	case KindSetBytes:
		binary.LittleEndian.PutUint64(out[9:17], uint64(r.Offset))
		binary.LittleEndian.PutUint16(out[17:19], uint16(len(r.OldBytes)))
		n := copy(out[19:], r.OldBytes)
		copy(out[19+n:], r.Block.ToBytes())
		return out
	default:
		panic(fmt.Sprintf("wal: encode unknown record kind %v", r.Kind))
	}
}

// Decode parses a Record from buf, which must hold at least one full
// record starting at offset 0. Malformed tags are a fatal invariant
// violation (the append-only discipline should never produce one).
func Decode(buf []byte) (Record, error) {
	if len(buf) < 9 {
		return Record{}, fmt.Errorf("wal: truncated record header (%d bytes)", len(buf))
	}
	kind := Kind(buf[0])
	txID := int64(binary.LittleEndian.Uint64(buf[1:9]))

	switch kind {
	case KindStart, KindCommit, KindCheckpoint, KindRollback:
		return Record{Kind: kind, TxID: txID}, nil
	case KindSetInt32:
		if len(buf) < 25 {
			return Record{}, fmt.Errorf("wal: truncated SetInt32 record (%d bytes)", len(buf))
		}
		offset := int64(binary.LittleEndian.Uint64(buf[9:17]))
		oldV := int32(binary.LittleEndian.Uint32(buf[17:21]))
		newV := int32(binary.LittleEndian.Uint32(buf[21:25]))
		_, block, err := file.BlockIDFromBytes(buf[25:])
		if err != nil {
			return Record{}, fmt.Errorf("wal: decode SetInt32 block id: %w", err)
		}
		return Record{Kind: kind, TxID: txID, Block: block, Offset: offset, OldInt32: oldV, NewInt32: newV}, nil
	case KindSetBytes:
		if len(buf) < 19 {
			return Record{}, fmt.Errorf("wal: truncated SetBytes record (%d bytes)", len(buf))
		}
		offset := int64(binary.LittleEndian.Uint64(buf[9:17]))
		n := int(binary.LittleEndian.Uint16(buf[17:19]))
		if len(buf) < 19+n {
			return Record{}, fmt.Errorf("wal: truncated SetBytes payload (want %d, have %d)", n, len(buf)-19)
		}
		old := make([]byte, n)
		copy(old, buf[19:19+n])
		_, block, err := file.BlockIDFromBytes(buf[19+n:])
		if err != nil {
			return Record{}, fmt.Errorf("wal: decode SetBytes block id: %w", err)
		}
		return Record{Kind: kind, TxID: txID, Block: block, Offset: offset, OldBytes: old}, nil
	default:
		return Record{}, fmt.Errorf("wal: unknown log record tag %q", byte(kind))
	}
}
