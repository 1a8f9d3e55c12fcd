package wal

import (
	"testing"

	"github.com/flowlight0/simpledb-go/file"
	"github.com/stretchr/testify/require"
)

func TestRecordEncodeDecodeRoundTrip(t *testing.T) {
	block := file.NewBlockID("accounts.tbl", 3)

	cases := []Record{
		StartRecord(1),
		CommitRecord(1),
		CheckpointRecord(1),
		RollbackRecord(1),
		SetInt32Record(2, block, 16, 100, 200),
		SetBytesRecord(2, block, 32, []byte("old value")),
	}

	for _, rec := range cases {
		encoded := rec.Encode()
		require.Equal(t, rec.EncodedLen(), len(encoded))

		decoded, err := Decode(encoded)
		require.NoError(t, err)
		require.Equal(t, rec, decoded)
	}
}

func TestDecodeRejectsTruncatedBuffer(t *testing.T) {
	block := file.NewBlockID("accounts.tbl", 3)
	encoded := SetInt32Record(1, block, 0, 1, 2).Encode()

	_, err := Decode(encoded[:len(encoded)-1])
	require.Error(t, err)
}
