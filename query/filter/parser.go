package filter

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	porm "github.com/satishbabariya/porm-go"
)

const (
	// FilterPrefix prefixes every parameter produced by Parse.
	FilterPrefix = "fltr_"
	// JoinPrefix prefixes every parameter produced by ParseJoin.
	JoinPrefix = "joinfltr_"

	// PageFrom and PageTo are the LIMIT parameters appended by WithPage.
	PageFrom = "page_from"
	PageTo   = "page_to"

	// Tautology starts every compiled filter.
	Tautology = "1=1"
	// Contradiction replaces IN terms over an empty set.
	Contradiction = "1<>1"
)

// Params maps placeholder names to bound values.
type Params map[string]any

// ParsedResult is a compiled filter clause and its parameters. Every
// %(name)s placeholder in Filter has a key in Params.
type ParsedResult struct {
	params Params
	filter string
}

// NewParsedResult creates a ParsedResult, copying params.
func NewParsedResult(params Params, filter string) ParsedResult {
	return ParsedResult{params: maps.Clone(params), filter: filter}
}

// Params returns a copy of the parameter mapping.
func (r ParsedResult) Params() Params {
	if r.params == nil {
		return Params{}
	}
	return maps.Clone(r.params)
}

// Filter returns the SQL filter clause.
func (r ParsedResult) Filter() string {
	return r.filter
}

// MergeParams combines the parameters of several results. A key bound by two
// results is a validation error.
func MergeParams(results ...ParsedResult) (Params, error) {
	out := Params{}
	for _, r := range results {
		for k, v := range r.params {
			if _, dup := out[k]; dup {
				return nil, porm.NewError(porm.KindValidation, "filter.MergeParams", "parameter %q bound twice", k)
			}
			out[k] = v
		}
	}
	return out, nil
}

type options struct {
	table   string
	orderBy string
	page    *int
	size    int
}

// Option configures Parse.
type Option func(*options)

// WithTable qualifies every field as table.field.
func WithTable(table string) Option {
	return func(o *options) {
		o.table = table
	}
}

// WithOrderBy appends ORDER BY orderBy. The text is emitted verbatim.
func WithOrderBy(orderBy string) Option {
	return func(o *options) {
		o.orderBy = orderBy
	}
}

// WithPage appends a LIMIT clause for the 1-indexed page of the given size.
// Pages below 1 behave as page 1 and sizes below 1 as size 1.
func WithPage(page, size int) Option {
	return func(o *options) {
		o.page = &page
		o.size = size
	}
}

// Parse compiles terms into a WHERE fragment. Fields are compiled in sorted
// order, so equal input always yields equal SQL.
func Parse(terms Terms, opts ...Option) (ParsedResult, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	c := compiler{prefix: FilterPrefix, table: o.table, params: Params{}}
	filter, err := c.compile(terms)
	if err != nil {
		return ParsedResult{}, err
	}

	if o.orderBy != "" {
		filter = fmt.Sprintf("%s ORDER BY %s", filter, o.orderBy)
	}
	if o.page != nil {
		size := max(1, o.size)
		filter = fmt.Sprintf("%s LIMIT %%(%s)s, %%(%s)s", filter, PageFrom, PageTo)
		c.params[PageFrom] = max(0, *o.page-1) * size
		c.params[PageTo] = size
	}
	return ParsedResult{params: c.params, filter: filter}, nil
}

// ParseJoin compiles the terms of one joined table into an ON fragment. Its
// parameters live in the JoinPrefix namespace, so they never collide with
// the result of Parse.
func ParseJoin(terms Terms) (ParsedResult, error) {
	c := compiler{prefix: JoinPrefix, params: Params{}}
	filter, err := c.compile(terms)
	if err != nil {
		return ParsedResult{}, err
	}
	return ParsedResult{params: c.params, filter: filter}, nil
}

type compiler struct {
	prefix string
	table  string
	params Params
}

func (c *compiler) compile(terms Terms) (string, error) {
	parts := []string{Tautology}
	for _, name := range slices.Sorted(maps.Keys(terms)) {
		column := name
		if c.table != "" {
			column = c.table + "." + name
		}
		part, err := c.term(name, column, terms[name])
		if err != nil {
			return "", err
		}
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " AND "), nil
}

func (c *compiler) term(name, column string, t any) (string, error) {
	const op = "filter.Parse"
	key := c.prefix + name

	switch t := t.(type) {
	case nil:
		return "", nil

	case Compare:
		if t.Value == nil {
			return "", nil
		}
		if !comparisons[t.Op] {
			return "", porm.NewError(porm.KindValidation, op, "invalid operator %q for field %s", t.Op, name)
		}
		return fmt.Sprintf("%s %s %%(%s)s", column, t.Op, c.bind(key, t.Value)), nil

	case Membership:
		if t.Op != OpIn && t.Op != OpNotIn {
			return "", porm.NewError(porm.KindValidation, op, "invalid operator %q for field %s", t.Op, name)
		}
		if len(t.Values) == 0 {
			return Contradiction, nil
		}
		holders := make([]string, len(t.Values))
		for i, v := range t.Values {
			holders[i] = fmt.Sprintf("%%(%s)s", c.bind(fmt.Sprintf("%s%d", key, i), v))
		}
		return fmt.Sprintf("%s %s (%s)", column, t.Op, strings.Join(holders, ", ")), nil

	case Keywords:
		likes := make([]string, 0, len(t.Values))
		for i, kw := range t.Values {
			k := c.bind(fmt.Sprintf("%sLKE_%d_%s", c.prefix, i, name), "%"+kw+"%")
			likes = append(likes, fmt.Sprintf("%s %s %%(%s)s", column, OpLike, k))
		}
		switch len(likes) {
		case 0:
			return "", nil
		case 1:
			return likes[0], nil
		}
		return "(" + strings.Join(likes, " OR ") + ")", nil

	case Interval:
		return c.interval(name, column, key, t)

	case ColumnRef:
		return fmt.Sprintf("%s=%s", column, t.Column), nil

	case Term:
		return "", porm.NewError(porm.KindValidation, op, "unsupported term %T for field %s", t, name)
	}

	if isSequence(t) {
		return "", porm.NewError(porm.KindValidation, op, "sequence value for field %s needs In, NotIn, LikeAny or Range", name)
	}
	return fmt.Sprintf("%s=%%(%s)s", column, c.bind(key, t)), nil
}

func (c *compiler) interval(name, column, key string, t Interval) (string, error) {
	const op = "filter.Parse"
	bounds := []rune(t.Bounds)
	if len(bounds) != 2 {
		return "", porm.NewError(porm.KindOperational, op, "invalid operator: %q", t.Bounds)
	}

	var lowerOp, upperOp string
	switch bounds[0] {
	case '(':
		lowerOp = ">"
	case '[':
		lowerOp = ">="
	default:
		return "", porm.NewError(porm.KindOperational, op, "invalid operator: %q", t.Bounds)
	}
	switch bounds[1] {
	case ')':
		upperOp = "<"
	case ']':
		upperOp = "<="
	default:
		return "", porm.NewError(porm.KindOperational, op, "invalid operator: %q", t.Bounds)
	}

	var parts []string
	if !isZero(t.Lower) {
		k := c.bind(key+lowerOp, t.Lower)
		parts = append(parts, fmt.Sprintf("%s%s%%(%s)s", column, lowerOp, k))
	}
	if !isZero(t.Upper) {
		k := c.bind(key+upperOp, t.Upper)
		parts = append(parts, fmt.Sprintf("%s%s%%(%s)s", column, upperOp, k))
	}
	return strings.Join(parts, " AND "), nil
}

// bind stores v under key and returns the name it used. When an earlier term
// of the same call already holds key, the smallest free key__N is used.
func (c *compiler) bind(key string, v any) string {
	name := key
	for n := 1; ; n++ {
		if _, taken := c.params[name]; !taken {
			break
		}
		name = fmt.Sprintf("%s__%d", key, n)
	}
	c.params[name] = v
	return name
}

func isZero(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).IsZero()
}

func isSequence(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		return rv.Type().Elem().Kind() != reflect.Uint8
	case reflect.Array, reflect.Map:
		return true
	}
	return false
}
