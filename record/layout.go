package record

// usedFlagSize is the 4-byte used/free header every slot carries.
const usedFlagSize = 4

// Layout assigns every field of a Schema a fixed byte offset inside a
// slot: the 4-byte used-flag header, then every I32 field (4 bytes each),
// then every string field (2-byte length prefix + its max length).
type Layout struct {
	schema   *Schema
	offsets  map[string]int
	slotSize int
}

// NewLayout computes field offsets from schema in declaration order,
// integers first, matching spec §3's "Schema / Layout" field ordering.
func NewLayout(schema *Schema) *Layout {
	offsets := make(map[string]int)
	pos := usedFlagSize

	for _, name := range schema.Fields() {
		if schema.Spec(name).Type == TypeInt32 {
			offsets[name] = pos
			pos += 4
		}
	}
	for _, name := range schema.Fields() {
		spec := schema.Spec(name)
		if spec.Type == TypeString {
			offsets[name] = pos
			pos += 2 + spec.MaxLength
		}
	}

	return &Layout{schema: schema, offsets: offsets, slotSize: pos}
}

// Schema returns the underlying schema.
func (l *Layout) Schema() *Schema { return l.schema }

// Offset returns field's byte offset within a slot.
func (l *Layout) Offset(field string) int { return l.offsets[field] }

// SlotSize returns the total size of one slot in bytes.
func (l *Layout) SlotSize() int { return l.slotSize }
