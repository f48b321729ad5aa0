// Package condition builds printable boolean condition trees.
package condition

import (
	"fmt"
	"reflect"
	"strings"
)

// Operand is a comparison operator.
type Operand string

const (
	EQ    Operand = "="
	NEQ   Operand = "<>"
	GT    Operand = ">"
	GTE   Operand = ">="
	LT    Operand = "<"
	LTE   Operand = "<="
	IN    Operand = "IN"
	NIN   Operand = "NOT IN"
	LIKE  Operand = "LIKE"
	NLIKE Operand = "NOT LIKE"
)

// Relation joins two sides of a Tree.
type Relation string

const (
	AND Relation = "AND"
	OR  Relation = "OR"
)

// Leaf selects a side of a Tree.
type Leaf int

const (
	Right Leaf = iota
	Left
)

// Expr is a Node or a Tree.
type Expr interface {
	fmt.Stringer
	expr()
}

// Node compares one field to a value.
type Node struct {
	Field   string
	Operand Operand
	Value   any
}

// NewNode creates a Node.
func NewNode(field string, op Operand, value any) *Node {
	return &Node{Field: field, Operand: op, Value: value}
}

func (n *Node) String() string {
	return fmt.Sprintf("%s %s %s", n.Field, n.Operand, formatValue(n.Value))
}

func (*Node) expr() {}

// Tree relates two expressions.
type Tree struct {
	Left     Expr
	Relation Relation
	Right    Expr
}

// NewTree creates a Tree.
func NewTree(left Expr, rel Relation, right Expr) *Tree {
	return &Tree{Left: left, Relation: rel, Right: right}
}

func (t *Tree) String() string {
	return fmt.Sprintf("(%s %s %s)", t.Left, t.Relation, t.Right)
}

func (*Tree) expr() {}

// AndCondition replaces the chosen leaf with (leaf AND c).
func (t *Tree) AndCondition(c Expr, leaf Leaf) *Tree {
	return t.graft(c, AND, leaf)
}

// OrCondition replaces the chosen leaf with (leaf OR c).
func (t *Tree) OrCondition(c Expr, leaf Leaf) *Tree {
	return t.graft(c, OR, leaf)
}

func (t *Tree) graft(c Expr, rel Relation, leaf Leaf) *Tree {
	if leaf == Left {
		t.Left = NewTree(t.Left, rel, c)
	} else {
		t.Right = NewTree(t.Right, rel, c)
	}
	return t
}

// Condition is a left-deep chain of expressions started by 1 = 1.
type Condition struct {
	root Expr
}

// New returns an empty Condition.
func New() *Condition {
	return &Condition{}
}

// Expr returns the built expression, or nil when nothing was added.
func (c *Condition) Expr() Expr {
	return c.root
}

func (c *Condition) String() string {
	if c.root == nil {
		return "<nil>"
	}
	return c.root.String()
}

// Add appends e with the given relation.
func (c *Condition) Add(e Expr, rel Relation) *Condition {
	if c.root == nil {
		c.root = NewTree(NewNode("1", EQ, "1"), AND, e)
		return c
	}
	c.root = NewTree(c.root, rel, e)
	return c
}

// AndEq appends field = v with AND.
func (c *Condition) AndEq(field string, v any) *Condition { return c.Add(Eq(field, v), AND) }

// AndNeq appends field <> v with AND.
func (c *Condition) AndNeq(field string, v any) *Condition { return c.Add(Neq(field, v), AND) }

// AndGt appends field > v with AND.
func (c *Condition) AndGt(field string, v any) *Condition { return c.Add(Gt(field, v), AND) }

// AndGte appends field >= v with AND.
func (c *Condition) AndGte(field string, v any) *Condition { return c.Add(Gte(field, v), AND) }

// AndLt appends field < v with AND.
func (c *Condition) AndLt(field string, v any) *Condition { return c.Add(Lt(field, v), AND) }

// AndLte appends field <= v with AND.
func (c *Condition) AndLte(field string, v any) *Condition { return c.Add(Lte(field, v), AND) }

// AndLike appends field LIKE v with AND.
func (c *Condition) AndLike(field, v string) *Condition { return c.Add(Like(field, v), AND) }

// AndNotLike appends field NOT LIKE v with AND.
func (c *Condition) AndNotLike(field, v string) *Condition { return c.Add(NotLike(field, v), AND) }

// AndIn appends field IN (vs) with AND.
func (c *Condition) AndIn(field string, vs ...any) *Condition { return c.Add(In(field, vs...), AND) }

// AndNotIn appends field NOT IN (vs) with AND.
func (c *Condition) AndNotIn(field string, vs ...any) *Condition {
	return c.Add(NotIn(field, vs...), AND)
}

// Eq returns the node field = v.
func Eq(field string, v any) *Node { return NewNode(field, EQ, v) }

// Neq returns the node field <> v.
func Neq(field string, v any) *Node { return NewNode(field, NEQ, v) }

// Gt returns the node field > v.
func Gt(field string, v any) *Node { return NewNode(field, GT, v) }

// Gte returns the node field >= v.
func Gte(field string, v any) *Node { return NewNode(field, GTE, v) }

// Lt returns the node field < v.
func Lt(field string, v any) *Node { return NewNode(field, LT, v) }

// Lte returns the node field <= v.
func Lte(field string, v any) *Node { return NewNode(field, LTE, v) }

// Like returns the node field LIKE v.
func Like(field, v string) *Node { return NewNode(field, LIKE, v) }

// NotLike returns the node field NOT LIKE v.
func NotLike(field, v string) *Node { return NewNode(field, NLIKE, v) }

// In returns the node field IN (vs).
func In(field string, vs ...any) *Node { return NewNode(field, IN, vs) }

// NotIn returns the node field NOT IN (vs).
func NotIn(field string, vs ...any) *Node { return NewNode(field, NIN, vs) }

// And relates c1 and c2 with AND.
func And(c1, c2 Expr) *Tree { return NewTree(c1, AND, c2) }

// Or relates c1 and c2 with OR.
func Or(c1, c2 Expr) *Tree { return NewTree(c1, OR, c2) }

func formatValue(v any) string {
	rv := reflect.ValueOf(v)
	if v == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return fmt.Sprint(v)
	}
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return string(rv.Bytes())
	}
	items := make([]string, rv.Len())
	for i := range items {
		items[i] = fmt.Sprint(rv.Index(i).Interface())
	}
	return "(" + strings.Join(items, ", ") + ")"
}
