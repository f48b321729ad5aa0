package model

import (
	"strings"

	porm "github.com/satishbabariya/porm-go"
)

// Schema is the immutable descriptor of a table: its database, name and
// fields in declaration order.
type Schema struct {
	database string
	table    string
	fields   []Field
	index    map[string]int
}

// NewSchema declares a table. Empty or duplicate names are param errors.
func NewSchema(database, table string, fields ...Field) (*Schema, error) {
	const op = "model.NewSchema"
	database = strings.TrimSpace(database)
	table = strings.TrimSpace(table)
	if database == "" {
		return nil, porm.NewError(porm.KindParam, op, "database name is empty")
	}
	if table == "" {
		return nil, porm.NewError(porm.KindParam, op, "table name is empty")
	}
	if len(fields) == 0 {
		return nil, porm.NewError(porm.KindParam, op, "table %s declares no fields", table)
	}

	s := &Schema{
		database: database,
		table:    table,
		fields:   make([]Field, 0, len(fields)),
		index:    make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if f.name == "" {
			return nil, porm.NewError(porm.KindParam, op, "field with empty name in %s", table)
		}
		if _, dup := s.index[f.name]; dup {
			return nil, porm.NewError(porm.KindParam, op, "field %s declared twice in %s", f.name, table)
		}
		s.index[f.name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustSchema is NewSchema for declarations known to be valid.
func MustSchema(database, table string, fields ...Field) *Schema {
	s, err := NewSchema(database, table, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Database() string { return s.database }
func (s *Schema) Table() string { return s.table }

// FullName returns database.table.
func (s *Schema) FullName() string {
	return s.database + "." + s.table
}

// TableName resolves a table reference. An empty table means this schema's
// table; db overrides the database; a table already qualified with the
// database is returned as is.
func (s *Schema) TableName(db, table string) string {
	if db == "" {
		db = s.database
	}
	table = strings.TrimSpace(table)
	if table == "" {
		table = s.table
	}
	if strings.HasPrefix(table, db+".") {
		return table
	}
	return db + "." + table
}

// Fields returns the fields in declaration order.
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Field returns the named field.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Has reports whether the schema declares name.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Names returns every field name in declaration order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.name
	}
	return names
}

// QualifiedNames returns every field name prefixed with table.
func (s *Schema) QualifiedNames(table string) []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = table + "." + f.name
	}
	return names
}

// PrimaryKeys returns the primary key field names.
func (s *Schema) PrimaryKeys() []string {
	var names []string
	for _, f := range s.fields {
		if f.pk {
			names = append(names, f.name)
		}
	}
	return names
}

// Columns returns the names of the fields outside the primary key.
func (s *Schema) Columns() []string {
	var names []string
	for _, f := range s.fields {
		if !f.pk {
			names = append(names, f.name)
		}
	}
	return names
}

func (s *Schema) unknown(op, name string) error {
	return porm.NewError(porm.KindValidation, op, "unknown field %s in valid fields %v", name, s.Names())
}
