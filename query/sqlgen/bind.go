package sqlgen

import (
	"reflect"
	"strings"

	porm "github.com/satishbabariya/porm-go"
	"github.com/satishbabariya/porm-go/query/cache"
)

// template is a pyformat statement compiled to ? placeholders.
type template struct {
	sql        string
	names      []string
	positional int
}

var templates = cache.NewLRU[*template](512, 0)

// TemplateStats reports how the compiled template cache is used.
func TemplateStats() cache.Stats {
	return templates.Stats()
}

// Bind converts a pyformat statement into a Query.
//
// params may be nil, a map keyed by string for %(name)s placeholders, or a
// []any for %s placeholders. A nil params leaves the statement untouched, so
// %% is only unescaped when parameters are given.
func Bind(query string, params any) (Query, error) {
	const op = "sqlgen.Bind"

	switch p := params.(type) {
	case nil:
		return Query{SQL: query}, nil

	case map[string]any:
		t, err := compile(query)
		if err != nil {
			return Query{}, err
		}
		if t.positional > 0 {
			return Query{}, porm.NewError(porm.KindParam, op, "positional placeholder in statement bound with named parameters")
		}
		args := make([]any, len(t.names))
		for i, name := range t.names {
			v, ok := p[name]
			if !ok {
				return Query{}, porm.NewError(porm.KindEmpty, op, "missing parameter %q", name)
			}
			args[i] = v
		}
		return Query{SQL: t.sql, Args: args}, nil

	case []any:
		t, err := compile(query)
		if err != nil {
			return Query{}, err
		}
		if len(t.names) > 0 {
			return Query{}, porm.NewError(porm.KindParam, op, "named placeholder in statement bound with positional parameters")
		}
		if t.positional != len(p) {
			return Query{}, porm.NewError(porm.KindParam, op, "statement has %d placeholders, got %d parameters", t.positional, len(p))
		}
		return Query{SQL: t.sql, Args: append([]any(nil), p...)}, nil
	}

	if named, ok := asNamed(params); ok {
		return Bind(query, named)
	}
	return Query{}, porm.NewError(porm.KindParam, op, "unsupported parameter type %T", params)
}

// asNamed converts string keyed maps of named types, such as filter.Params.
func asNamed(params any) (map[string]any, bool) {
	rv := reflect.ValueOf(params)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// MustBind is Bind for statements known to be well formed, such as those
// rendered by this package. It panics on error.
func MustBind(query string, params any) Query {
	q, err := Bind(query, params)
	if err != nil {
		panic(err)
	}
	return q
}

func compile(query string) (*template, error) {
	return templates.GetOrCreate(query, func() (*template, error) {
		return parse(query)
	})
}

func parse(query string) (*template, error) {
	const op = "sqlgen.Bind"
	t := &template{}
	var b strings.Builder
	b.Grow(len(query))

	for i := 0; i < len(query); i++ {
		c := query[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(query) {
			return nil, porm.NewError(porm.KindParam, op, "incomplete format at offset %d", i)
		}
		switch query[i+1] {
		case '%':
			b.WriteByte('%')
			i++
		case 's':
			b.WriteByte('?')
			t.positional++
			i++
		case '(':
			end := strings.Index(query[i+2:], ")s")
			if end < 0 {
				return nil, porm.NewError(porm.KindParam, op, "unterminated placeholder at offset %d", i)
			}
			t.names = append(t.names, query[i+2:i+2+end])
			b.WriteByte('?')
			i += 2 + end + 1
		default:
			return nil, porm.NewError(porm.KindParam, op, "unsupported format %%%c at offset %d", query[i+1], i)
		}
	}
	t.sql = b.String()
	return t, nil
}
