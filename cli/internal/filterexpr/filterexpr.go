// Package filterexpr parses the --where expressions accepted by the porm
// command into filter terms.
//
//	age >= 18 AND name LIKE "%ann%" AND userid IN (1, 2, 3)
//	score WITHIN [20, 40) AND tag LIKE ANY ("go", "sql")
//	UserInfo.userid = @Role.userid
//
// Conditions are joined with AND only, and each field may appear once.
package filterexpr

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	porm "github.com/satishbabariya/porm-go"
	"github.com/satishbabariya/porm-go/query/filter"
)

// Lexer tokenizes filter expressions. Keywords are case-insensitive.
var Lexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Keyword", Pattern: `\b(?i:AND|NOT|IN|LIKE|ANY|WITHIN)\b`},
	{Name: "Ref", Pattern: `@[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*`},
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"|'(?:\\.|[^'\\])*'`},
	{Name: "Number", Pattern: `-?\d+(?:\.\d+)?`},
	{Name: "Op", Pattern: `<>|!=|>=|<=|=|>|<`},
	{Name: "Punct", Pattern: `[()\[\],]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// Expression is the parse tree of a whole expression.
type Expression struct {
	Conditions []*Condition `( @@ ( "AND" @@ )* )?`
}

// Condition is one field predicate.
type Condition struct {
	Pos      lexer.Position
	Field    string    `@Ident`
	Op       string    `( @Op`
	Value    *Value    `  @@`
	Interval *Interval `| "WITHIN" @@`
	Not      bool      `| @"NOT"?`
	Set      *Set      `  ( "IN" @@`
	Pattern  *Pattern  `  | "LIKE" @@ ) )`
}

// Value is a literal or a column reference.
type Value struct {
	Ref    *string `  @Ref`
	String *string `| @String`
	Number *string `| @Number`
}

// Set is a parenthesized value list.
type Set struct {
	Values []*Value `"(" ( @@ ( "," @@ )* )? ")"`
}

// Pattern is a single LIKE pattern or a keyword list.
type Pattern struct {
	Any []string `  "ANY" "(" @String ( "," @String )* ")"`
	One *string  `| @String`
}

// Interval bounds a field in interval notation. Either side may be empty.
type Interval struct {
	Lower string `@( "[" | "(" )`
	From  *Value `@@? ","`
	To    *Value `@@?`
	Upper string `@( "]" | ")" )`
}

var parser = participle.MustBuild[Expression](
	participle.Lexer(Lexer),
	participle.Elide("Whitespace"),
	participle.CaseInsensitive("Keyword"),
	participle.UseLookahead(2),
)

// ParseExpression returns the parse tree of input.
func ParseExpression(input string) (*Expression, error) {
	expr, err := parser.ParseString("where", input)
	if err != nil {
		return nil, porm.Wrap(porm.KindParam, "filterexpr.Parse", err)
	}
	return expr, nil
}

// Parse compiles input into filter terms. An empty input yields empty terms.
func Parse(input string) (filter.Terms, error) {
	terms := filter.Terms{}
	if strings.TrimSpace(input) == "" {
		return terms, nil
	}
	expr, err := ParseExpression(input)
	if err != nil {
		return nil, err
	}
	for _, c := range expr.Conditions {
		if _, dup := terms[c.Field]; dup {
			return nil, porm.NewError(porm.KindParam, "filterexpr.Parse", "%s: field %s appears twice", c.Pos, c.Field)
		}
		t, err := c.Term()
		if err != nil {
			return nil, err
		}
		terms[c.Field] = t
	}
	return terms, nil
}

// Term converts the condition into a filter term.
func (c *Condition) Term() (any, error) {
	const op = "filterexpr.Parse"
	switch {
	case c.Value != nil:
		if c.Value.Ref != nil {
			if c.Op != "=" {
				return nil, porm.NewError(porm.KindParam, op, "%s: column reference needs =, got %s", c.Pos, c.Op)
			}
			return filter.Column(strings.TrimPrefix(*c.Value.Ref, "@")), nil
		}
		v, err := c.Value.Literal()
		if err != nil {
			return nil, err
		}
		if c.Op == "=" {
			return v, nil
		}
		return filter.Cmp(c.Op, v), nil

	case c.Interval != nil:
		lo, err := c.Interval.From.Literal()
		if err != nil {
			return nil, err
		}
		hi, err := c.Interval.To.Literal()
		if err != nil {
			return nil, err
		}
		return filter.Range(lo, hi, c.Interval.Lower+c.Interval.Upper), nil

	case c.Set != nil:
		values := make([]any, 0, len(c.Set.Values))
		for _, sv := range c.Set.Values {
			v, err := sv.Literal()
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		if c.Not {
			return filter.NotIn(values...), nil
		}
		return filter.In(values...), nil

	case c.Pattern != nil:
		if c.Pattern.One != nil {
			if c.Not {
				return filter.NotLike(unquote(*c.Pattern.One)), nil
			}
			return filter.Like(unquote(*c.Pattern.One)), nil
		}
		if c.Not {
			return nil, porm.NewError(porm.KindNotSupported, op, "%s: NOT LIKE ANY", c.Pos)
		}
		keywords := make([]string, len(c.Pattern.Any))
		for i, kw := range c.Pattern.Any {
			keywords[i] = unquote(kw)
		}
		return filter.LikeAny(keywords...), nil
	}
	return nil, porm.NewError(porm.KindParam, op, "%s: empty condition for %s", c.Pos, c.Field)
}

// Literal returns the bound value: a string, an int64 or a float64. A nil
// Value yields nil.
func (v *Value) Literal() (any, error) {
	const op = "filterexpr.Parse"
	switch {
	case v == nil:
		return nil, nil
	case v.String != nil:
		return unquote(*v.String), nil
	case v.Number != nil:
		if strings.Contains(*v.Number, ".") {
			f, err := strconv.ParseFloat(*v.Number, 64)
			if err != nil {
				return nil, porm.Wrap(porm.KindParam, op, err)
			}
			return f, nil
		}
		n, err := strconv.ParseInt(*v.Number, 10, 64)
		if err != nil {
			return nil, porm.Wrap(porm.KindParam, op, err)
		}
		return n, nil
	case v.Ref != nil:
		return nil, porm.NewError(porm.KindParam, op, "column reference %s is only allowed after =", *v.Ref)
	}
	return nil, nil
}

// unquote strips the quotes of a String token. A backslash escapes the
// character that follows it.
func unquote(tok string) string {
	if len(tok) < 2 {
		return tok
	}
	body := tok[1 : len(tok)-1]
	var b strings.Builder
	escaped := false
	for _, r := range body {
		if !escaped && r == '\\' {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}
