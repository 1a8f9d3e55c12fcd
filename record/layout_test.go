package record

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLayoutPlacesIntegersBeforeStrings(t *testing.T) {
	schema := NewSchema()
	schema.AddStringField("name", 10)
	schema.AddInt32Field("id")
	schema.AddStringField("note", 5)

	layout := NewLayout(schema)

	require.Equal(t, usedFlagSize, layout.Offset("id"))
	require.Equal(t, usedFlagSize+4, layout.Offset("name"))
	require.Equal(t, usedFlagSize+4+2+10, layout.Offset("note"))
	require.Equal(t, usedFlagSize+4+(2+10)+(2+5), layout.SlotSize())
}

func TestSchemaAddAllPreservesOrderAndIgnoresDuplicates(t *testing.T) {
	src := NewSchema()
	src.AddInt32Field("id")
	src.AddStringField("name", 10)

	dst := NewSchema()
	dst.AddStringField("extra", 4)
	dst.AddInt32Field("id")
	dst.AddAll(src)

	require.Equal(t, []string{"extra", "id", "name"}, dst.Fields())
	require.True(t, dst.HasField("id"))
	require.False(t, dst.HasField("missing"))
}

func TestSchemaSpecPanicsOnUnknownField(t *testing.T) {
	schema := NewSchema()
	require.Panics(t, func() { schema.Spec("nope") })
}
