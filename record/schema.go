// Package record implements the typed tuple layer above a transaction:
// Schema/Layout describe a table's fields and their byte offsets inside a
// slot, and Page is the slotted-block cursor (format/next_after/
// insert_after/delete/typed accessors) that drives ordinary tables. The
// B-tree's leaf/directory slots use btree.Page, not this package's Page.
//
// Grounded on _examples/original_source/src/record/schema.rs,
// record/layout.rs and record/field.rs; restyled after the teacher's
// btree/page.go naming (FieldSpec/Type mirrors the teacher's cell-header
// vocabulary even though the byte layout itself is fixed-slot, not
// varint-celled).
package record

import "fmt"

// FieldType distinguishes the two field kinds the spec supports.
type FieldType int

const (
	TypeInt32 FieldType = iota
	TypeString
)

// FieldSpec is a field's type and, for strings, its maximum length.
type FieldSpec struct {
	Type      FieldType
	MaxLength int
}

// MaxStringLength is the largest VarChar(n) this schema format supports,
// bounded by the 16-bit length prefix Page uses for strings.
const MaxStringLength = 1<<16 - 1

// Schema is the ordered set of a table's fields.
type Schema struct {
	fields []string
	specs  map[string]FieldSpec
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{specs: make(map[string]FieldSpec)}
}

// AddField adds a field with an explicit spec.
func (s *Schema) AddField(name string, spec FieldSpec) {
	if _, exists := s.specs[name]; !exists {
		s.fields = append(s.fields, name)
	}
	s.specs[name] = spec
}

// AddInt32Field adds an I32 field.
func (s *Schema) AddInt32Field(name string) {
	s.AddField(name, FieldSpec{Type: TypeInt32})
}

// AddStringField adds a VarChar(maxLength) field.
func (s *Schema) AddStringField(name string, maxLength int) {
	s.AddField(name, FieldSpec{Type: TypeString, MaxLength: maxLength})
}

// AddAll copies every field from other into s, preserving order.
func (s *Schema) AddAll(other *Schema) {
	for _, name := range other.fields {
		s.AddField(name, other.specs[name])
	}
}

// HasField reports whether name is part of this schema.
func (s *Schema) HasField(name string) bool {
	_, ok := s.specs[name]
	return ok
}

// Fields returns the schema's fields in declaration order.
func (s *Schema) Fields() []string {
	return append([]string(nil), s.fields...)
}

// Spec returns the spec for a field, panicking if it does not exist (an
// invariant violation — callers must check HasField for untrusted names).
func (s *Schema) Spec(name string) FieldSpec {
	spec, ok := s.specs[name]
	if !ok {
		panic(fmt.Sprintf("record: schema has no field %q", name))
	}
	return spec
}
