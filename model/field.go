// Package model maps declared tables onto records and renders their CRUD,
// join and search statements through the mysql facade.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/spf13/cast"

	porm "github.com/satishbabariya/porm-go"
)

// Type is the column type of a Field.
type Type string

const (
	TypeInteger  Type = "INTEGER"
	TypeVarchar  Type = "VARCHAR"
	TypeText     Type = "TEXT"
	TypeDatetime Type = "DATETIME"
	TypeDate     Type = "DATE"
	TypeTime     Type = "TIME"
	TypeJSON     Type = "JSON"
)

// Default layouts of the temporal types.
const (
	DatetimeFormat = "2006-01-02 15:04:05"
	DateFormat     = "2006-01-02"
	TimeFormat     = "15:04:05"
)

// DefaultVarcharLength bounds Varchar fields without a Length option.
const DefaultVarcharLength = 255

// Field describes one column. Fields are values; options apply at
// construction and a Field never changes afterwards.
type Field struct {
	name     string
	typ      Type
	pk       bool
	required bool
	hasDef   bool
	def      any
	defFunc  func() any
	length   int
	min, max int64
	format   string
}

// FieldOption configures a Field.
type FieldOption func(*Field)

// PrimaryKey marks the field as part of the primary key.
func PrimaryKey() FieldOption {
	return func(f *Field) { f.pk = true }
}

// Required rejects nil values.
func Required() FieldOption {
	return func(f *Field) { f.required = true }
}

// Default is the value given to new records that do not set the field.
func Default(v any) FieldOption {
	return func(f *Field) {
		f.hasDef = true
		f.def = v
	}
}

// DefaultFunc is Default with a value computed for each new record.
func DefaultFunc(fn func() any) FieldOption {
	return func(f *Field) {
		f.hasDef = fn != nil
		f.defFunc = fn
	}
}

// Length bounds the number of characters of a Varchar or Text field.
// Zero means unbounded.
func Length(n int) FieldOption {
	return func(f *Field) { f.length = n }
}

// Range bounds an Integer field, both ends included.
func Range(lo, hi int64) FieldOption {
	return func(f *Field) {
		f.min = lo
		f.max = hi
	}
}

// Format sets the layout used to parse and store a temporal field.
func Format(layout string) FieldOption {
	return func(f *Field) { f.format = layout }
}

func newField(name string, typ Type, opts []FieldOption) Field {
	f := Field{name: name, typ: typ, min: math.MinInt64, max: math.MaxInt64}
	switch typ {
	case TypeVarchar:
		f.length = DefaultVarcharLength
	case TypeDatetime:
		f.format = DatetimeFormat
	case TypeDate:
		f.format = DateFormat
	case TypeTime:
		f.format = TimeFormat
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// Integer declares a 64-bit integer column.
func Integer(name string, opts ...FieldOption) Field { return newField(name, TypeInteger, opts) }

// Varchar declares a string column of at most DefaultVarcharLength characters.
func Varchar(name string, opts ...FieldOption) Field { return newField(name, TypeVarchar, opts) }

// Text declares an unbounded string column.
func Text(name string, opts ...FieldOption) Field { return newField(name, TypeText, opts) }

// Datetime declares a timestamp column.
func Datetime(name string, opts ...FieldOption) Field { return newField(name, TypeDatetime, opts) }

// Date declares a calendar date column.
func Date(name string, opts ...FieldOption) Field { return newField(name, TypeDate, opts) }

// Time declares a time of day column. Strings that do not match the layout
// are read as unix timestamps.
func Time(name string, opts ...FieldOption) Field { return newField(name, TypeTime, opts) }

// JSON declares a column holding a JSON document.
func JSON(name string, opts ...FieldOption) Field { return newField(name, TypeJSON, opts) }

func (f Field) Name() string { return f.name }
func (f Field) Type() Type { return f.typ }
func (f Field) IsPK() bool { return f.pk }
func (f Field) IsRequired() bool { return f.required }

// HasDefault reports whether the field declares a default.
func (f Field) HasDefault() bool { return f.hasDef }

// Default returns the declared default, calling DefaultFunc when set.
func (f Field) Default() any {
	if f.defFunc != nil {
		return f.defFunc()
	}
	return f.def
}

func (f Field) invalid(format string, args ...any) error {
	name := f.name
	if name == "" {
		name = "value"
	}
	return porm.NewError(porm.KindValidation, "model.Field", "%s: %s", name, fmt.Sprintf(format, args...))
}

// Validate coerces v to the field type.
func (f Field) Validate(v any) (any, error) {
	if v == nil {
		if f.required {
			return nil, f.invalid("is not null but got null")
		}
		return nil, nil
	}

	switch f.typ {
	case TypeInteger:
		n, err := cast.ToInt64E(v)
		if err != nil {
			return nil, f.invalid("%v is not integer type", v)
		}
		if n < f.min || n > f.max {
			return nil, f.invalid("%d not in [%d, %d]", n, f.min, f.max)
		}
		return n, nil

	case TypeVarchar, TypeText:
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, f.invalid("%v is not string type", v)
		}
		if f.length > 0 && utf8.RuneCountInString(s) > f.length {
			return nil, f.invalid("%s is over size: %d", s, f.length)
		}
		return s, nil

	case TypeDatetime:
		return f.toTime(v)

	case TypeDate:
		t, err := f.toTime(v)
		if err != nil {
			return nil, err
		}
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location()), nil

	case TypeTime:
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
		s, err := cast.ToStringE(v)
		if err == nil {
			if t, perr := time.ParseInLocation(f.format, s, time.Local); perr == nil {
				return t, nil
			}
		}
		sec, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, f.invalid("%v is not valid", v)
		}
		whole, frac := math.Modf(sec)
		return time.Unix(int64(whole), int64(frac*1e9)), nil

	case TypeJSON:
		switch raw := v.(type) {
		case string:
			return f.decodeJSON([]byte(raw))
		case []byte:
			return f.decodeJSON(raw)
		case json.RawMessage:
			return f.decodeJSON(raw)
		}
		if _, err := json.Marshal(v); err != nil {
			return nil, f.invalid("%v is not JSON serializable", v)
		}
		return v, nil
	}
	return v, nil
}

func (f Field) decodeJSON(raw []byte) (any, error) {
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, f.invalid("invalid JSON document: %v", err)
	}
	return out, nil
}

func (f Field) toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string, []byte:
		s := cast.ToString(t)
		if parsed, err := time.ParseInLocation(f.format, s, time.Local); err == nil {
			return parsed, nil
		}
		if parsed, err := cast.ToTimeE(s); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, f.invalid("%v is not string type or %s type", v, f.typ)
}

// Dump converts a validated value into its stored form: temporal values are
// formatted with the field layout and JSON values are encoded.
func (f Field) Dump(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.typ {
	case TypeDatetime, TypeDate, TypeTime:
		if t, ok := v.(time.Time); ok {
			return t.Format(f.format), nil
		}
	case TypeJSON:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, f.invalid("%v is not JSON serializable", v)
		}
		return string(b), nil
	}
	return v, nil
}
