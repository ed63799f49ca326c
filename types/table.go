package types

import "fmt"

// Table is (name, ordered fields) with unique field names; fields whose
// IsKey is true form the primary key, in declaration order.
type Table struct {
	name   string
	fields []ArgField
}

// NewTable validates field-name uniqueness and constructs a Table.
func NewTable(name string, fields []ArgField) (*Table, error) {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			return nil, fmt.Errorf("types: duplicate field name %q in table %q", f.Name, name)
		}
		seen[f.Name] = true
	}
	return &Table{name: name, fields: append([]ArgField(nil), fields...)}, nil
}

// Name returns the table's name. The state-store backends format SQL
// using this string, never a Table value, closing the spec's §9
// "UPDATE uses table object not table name" source bug.
func (t *Table) Name() string {
	return t.name
}

// Fields returns the table's fields in declaration order.
func (t *Table) Fields() []ArgField {
	return append([]ArgField(nil), t.fields...)
}

// Keys returns the fields with IsKey set, in declaration order; these form
// the table's primary key.
func (t *Table) Keys() []ArgField {
	var out []ArgField
	for _, f := range t.fields {
		if f.IsKey {
			out = append(out, f)
		}
	}
	return out
}

// Field looks up a field by name.
func (t *Table) Field(name string) (ArgField, bool) {
	for _, f := range t.fields {
		if f.Name == name {
			return f, true
		}
	}
	return ArgField{}, false
}
