package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeString(t *testing.T) {
	tests := []struct {
		name string
		node *Node
		want string
	}{
		{"lt", Lt("abc", 123), "abc < 123"},
		{"gte", Gte("age", 18), "age >= 18"},
		{"like", Like("name", "%bob%"), "name LIKE %bob%"},
		{"in", In("id", 1, 2, 3), "id IN (1, 2, 3)"},
		{"not in", NotIn("id", "a"), "id NOT IN (a)"},
		{"nil", Eq("x", nil), "x = <nil>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.node.String())
		})
	}
}

func TestConditionChain(t *testing.T) {
	c := New().AndLt("abc", 123)
	assert.Equal(t, "(1 = 1 AND abc < 123)", c.String())

	c.AndLt("bca", 321)
	assert.Equal(t, "((1 = 1 AND abc < 123) AND bca < 321)", c.String())
}

func TestEmptyCondition(t *testing.T) {
	c := New()
	assert.Nil(t, c.Expr())
	assert.Equal(t, "<nil>", c.String())
}

func TestTreeGraft(t *testing.T) {
	tree := And(Eq("a", 1), Eq("b", 2))
	assert.Equal(t, "(a = 1 AND b = 2)", tree.String())

	tree.OrCondition(Eq("c", 3), Right)
	assert.Equal(t, "(a = 1 AND (b = 2 OR c = 3))", tree.String())

	tree.AndCondition(Neq("d", 4), Left)
	assert.Equal(t, "((a = 1 AND d <> 4) AND (b = 2 OR c = 3))", tree.String())

	assert.Equal(t, "(x > 1 OR y <= 2)", Or(Gt("x", 1), Lte("y", 2)).String())
}
