// Package filter compiles keyword-style filter terms into parameterized
// WHERE and JOIN ON fragments.
package filter

import (
	"strings"
)

// Operator is a SQL comparison operator.
type Operator string

const (
	OpEq      Operator = "="
	OpNeq     Operator = "<>"
	OpNe      Operator = "!="
	OpGt      Operator = ">"
	OpGte     Operator = ">="
	OpLt      Operator = "<"
	OpLte     Operator = "<="
	OpIn      Operator = "IN"
	OpNotIn   Operator = "NOT IN"
	OpLike    Operator = "LIKE"
	OpNotLike Operator = "NOT LIKE"
)

// comparisons are the operators accepted by Compare terms.
var comparisons = map[Operator]bool{
	OpEq: true, OpNeq: true, OpNe: true,
	OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpLike: true, OpNotLike: true,
}

// ParseOperator normalizes op (case and surrounding space) into an Operator.
func ParseOperator(op string) Operator {
	return Operator(strings.Join(strings.Fields(strings.ToUpper(op)), " "))
}

// Term is a per-field predicate. A Terms value that is not a Term is
// compared for equality, and a nil value is skipped.
type Term interface {
	term()
}

// Compare compares the field to a bound value.
type Compare struct {
	Op    Operator
	Value any
}

// Membership tests the field against a set of bound values.
type Membership struct {
	Op     Operator
	Values []any
}

// Keywords matches the field against any of several %keyword% patterns.
type Keywords struct {
	Values []string
}

// Interval bounds the field in mathematical interval notation. Bounds holds
// the lower character, '(' or '[', followed by the upper one, ')' or ']'.
// A zero Lower or Upper omits that side.
type Interval struct {
	Lower  any
	Upper  any
	Bounds string
}

// ColumnRef compares the field to another column. The reference is emitted
// verbatim, so it must never carry untrusted input.
type ColumnRef struct {
	Column string
}

func (Compare) term()    {}
func (Membership) term() {}
func (Keywords) term()   {}
func (Interval) term()   {}
func (ColumnRef) term()  {}

// Cmp builds a comparison term with an ad-hoc operator such as ">=" or "not like".
func Cmp(op string, v any) Compare {
	return Compare{Op: ParseOperator(op), Value: v}
}

// Eq builds an equality term.
func Eq(v any) Compare { return Compare{Op: OpEq, Value: v} }

// Neq builds an inequality term.
func Neq(v any) Compare { return Compare{Op: OpNeq, Value: v} }

// Gt builds a greater-than term.
func Gt(v any) Compare { return Compare{Op: OpGt, Value: v} }

// Gte builds a greater-or-equal term.
func Gte(v any) Compare { return Compare{Op: OpGte, Value: v} }

// Lt builds a less-than term.
func Lt(v any) Compare { return Compare{Op: OpLt, Value: v} }

// Lte builds a less-or-equal term.
func Lte(v any) Compare { return Compare{Op: OpLte, Value: v} }

// Like builds a LIKE term. The pattern is bound as given.
func Like(pattern string) Compare { return Compare{Op: OpLike, Value: pattern} }

// NotLike builds a NOT LIKE term.
func NotLike(pattern string) Compare { return Compare{Op: OpNotLike, Value: pattern} }

// In builds a set membership term. An empty set matches nothing.
func In(values ...any) Membership { return Membership{Op: OpIn, Values: values} }

// NotIn builds a negated set membership term.
func NotIn(values ...any) Membership { return Membership{Op: OpNotIn, Values: values} }

// InSlice is In for a typed slice.
func InSlice[T any](values []T) Membership {
	return Membership{Op: OpIn, Values: toAny(values)}
}

// NotInSlice is NotIn for a typed slice.
func NotInSlice[T any](values []T) Membership {
	return Membership{Op: OpNotIn, Values: toAny(values)}
}

// LikeAny matches rows where the field contains any of the keywords.
func LikeAny(keywords ...string) Keywords { return Keywords{Values: keywords} }

// Range builds an interval term, e.g. Range(20, 40, "[)") for 20 <= f < 40.
func Range(lower, upper any, bounds string) Interval {
	return Interval{Lower: lower, Upper: upper, Bounds: bounds}
}

// Column builds a column-to-column equality term, used by join conditions.
func Column(ref string) ColumnRef { return ColumnRef{Column: ref} }

// Terms maps field names to predicates.
type Terms map[string]any

// JoinSpec maps a joined table name to terms whose keys are base table
// columns and whose values usually reference the joined table with Column.
type JoinSpec map[string]Terms

func toAny[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
