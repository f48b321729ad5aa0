package model

import (
	"encoding/json"
	"maps"

	porm "github.com/satishbabariya/porm-go"
)

// Record is one row of a schema. Only the fields that were set are active;
// inserts and updates render active fields only.
type Record struct {
	schema *Schema
	data   map[string]any
}

// NewRecord validates values against the schema. Fields that are not given
// and declare a default are set to it.
func (s *Schema) NewRecord(values map[string]any) (*Record, error) {
	r, err := s.Load(values)
	if err != nil {
		return nil, err
	}
	for _, f := range s.fields {
		if _, set := r.data[f.name]; set || !f.hasDef {
			continue
		}
		if err := r.Set(f.name, f.Default()); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Load builds a record from a stored row. Columns the schema does not declare
// are ignored and defaults are not applied.
func (s *Schema) Load(row map[string]any) (*Record, error) {
	r := &Record{schema: s, data: make(map[string]any, len(row))}
	for name, v := range row {
		if !s.Has(name) {
			continue
		}
		if err := r.Set(name, v); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Schema returns the record's schema.
func (r *Record) Schema() *Schema {
	return r.schema
}

// Get returns an active field value.
func (r *Record) Get(name string) (any, error) {
	const op = "model.Record.Get"
	if !r.schema.Has(name) {
		return nil, r.schema.unknown(op, name)
	}
	v, ok := r.data[name]
	if !ok {
		return nil, porm.NewError(porm.KindEmpty, op, "empty value: %s", name)
	}
	return v, nil
}

// Set validates v and activates the field.
func (r *Record) Set(name string, v any) error {
	f, ok := r.schema.Field(name)
	if !ok {
		return r.schema.unknown("model.Record.Set", name)
	}
	valid, err := f.Validate(v)
	if err != nil {
		return err
	}
	r.data[name] = valid
	return nil
}

// Has reports whether the field is active.
func (r *Record) Has(name string) bool {
	_, ok := r.data[name]
	return ok
}

// Delete deactivates a field.
func (r *Record) Delete(name string) {
	delete(r.data, name)
}

// Len returns the number of active fields.
func (r *Record) Len() int {
	return len(r.data)
}

// Copy returns an independent record with the same active fields.
func (r *Record) Copy() *Record {
	return &Record{schema: r.schema, data: maps.Clone(r.data)}
}

// Names returns the active field names in declaration order.
func (r *Record) Names() []string {
	var names []string
	for _, f := range r.schema.fields {
		if _, ok := r.data[f.name]; ok {
			names = append(names, f.name)
		}
	}
	return names
}

// Values returns the active fields as validated values.
func (r *Record) Values() map[string]any {
	return maps.Clone(r.data)
}

// ValidFields returns the active fields. forSave converts each value to its
// stored form.
func (r *Record) ValidFields(forSave bool) (map[string]any, error) {
	return r.collect(r.schema.fields, forSave)
}

// PKFields returns the active primary key fields.
func (r *Record) PKFields() map[string]any {
	out := map[string]any{}
	for _, f := range r.schema.fields {
		if v, ok := r.data[f.name]; ok && f.pk {
			out[f.name] = v
		}
	}
	return out
}

// ColumnFields returns the active fields outside the primary key.
func (r *Record) ColumnFields(forSave bool) (map[string]any, error) {
	cols := make([]Field, 0, len(r.schema.fields))
	for _, f := range r.schema.fields {
		if !f.pk {
			cols = append(cols, f)
		}
	}
	return r.collect(cols, forSave)
}

func (r *Record) collect(fields []Field, forSave bool) (map[string]any, error) {
	out := map[string]any{}
	for _, f := range fields {
		v, ok := r.data[f.name]
		if !ok {
			continue
		}
		if forSave {
			dumped, err := f.Dump(v)
			if err != nil {
				return nil, err
			}
			v = dumped
		}
		out[f.name] = v
	}
	return out, nil
}

// Reset sets new values on columns. Primary key and unknown fields are
// skipped.
func (r *Record) Reset(values map[string]any) error {
	for name, v := range values {
		f, ok := r.schema.Field(name)
		if !ok || f.pk {
			continue
		}
		if err := r.Set(name, v); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON encodes the active fields in their stored form.
func (r *Record) MarshalJSON() ([]byte, error) {
	vals, err := r.ValidFields(true)
	if err != nil {
		return nil, err
	}
	return json.Marshal(vals)
}

// String returns the record as JSON.
func (r *Record) String() string {
	b, err := r.MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(b)
}
