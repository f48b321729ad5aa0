package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	porm "github.com/satishbabariya/porm-go"
	"github.com/satishbabariya/porm-go/query/filter"
)

func TestBind(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		params   any
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "nil params untouched",
			query:   "SELECT '100%%' FROM t",
			wantSQL: "SELECT '100%%' FROM t",
		},
		{
			name:     "named",
			query:    "SELECT * FROM t WHERE a=%(a)s AND b IN (%(b0)s, %(b1)s) AND a2=%(a)s",
			params:   map[string]any{"a": 1, "b0": "x", "b1": "y"},
			wantSQL:  "SELECT * FROM t WHERE a=? AND b IN (?, ?) AND a2=?",
			wantArgs: []any{1, "x", "y", 1},
		},
		{
			name:     "named with operator characters",
			query:    "SELECT * FROM t WHERE age>=%(fltr_age>=)s AND age<%(fltr_age<)s",
			params:   map[string]any{"fltr_age>=": 20, "fltr_age<": 40},
			wantSQL:  "SELECT * FROM t WHERE age>=? AND age<?",
			wantArgs: []any{20, 40},
		},
		{
			name:     "positional",
			query:    "INSERT INTO t (a, b) VALUES (%s, %s)",
			params:   []any{1, 2},
			wantSQL:  "INSERT INTO t (a, b) VALUES (?, ?)",
			wantArgs: []any{1, 2},
		},
		{
			name:     "escaped percent",
			query:    "SELECT * FROM t WHERE a LIKE '50%%' AND b=%(b)s",
			params:   map[string]any{"b": true},
			wantSQL:  "SELECT * FROM t WHERE a LIKE '50%' AND b=?",
			wantArgs: []any{true},
		},
		{
			name:     "filter params",
			query:    "SELECT * FROM t WHERE 1=1 AND id=%(fltr_id)s",
			params:   filter.Params{"fltr_id": 7},
			wantSQL:  "SELECT * FROM t WHERE 1=1 AND id=?",
			wantArgs: []any{7},
		},
		{
			name:     "empty map",
			query:    "SELECT 1",
			params:   map[string]any{},
			wantSQL:  "SELECT 1",
			wantArgs: []any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Bind(tt.query, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, q.SQL)
			assert.Equal(t, tt.wantArgs, q.Args)
		})
	}
}

func TestBind_Errors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		params any
		kind   porm.Kind
	}{
		{"missing key", "SELECT %(a)s", map[string]any{}, porm.KindEmpty},
		{"count mismatch", "SELECT %s, %s", []any{1}, porm.KindParam},
		{"mixed named", "SELECT %(a)s, %s", map[string]any{"a": 1}, porm.KindParam},
		{"mixed positional", "SELECT %(a)s, %s", []any{1}, porm.KindParam},
		{"unterminated", "SELECT %(a", map[string]any{"a": 1}, porm.KindParam},
		{"trailing percent", "SELECT 5%", []any{}, porm.KindParam},
		{"bad verb", "SELECT %d", []any{1}, porm.KindParam},
		{"bad params", "SELECT 1", 42, porm.KindParam},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Bind(tt.query, tt.params)
			require.Error(t, err)
			assert.Equal(t, tt.kind, porm.KindOf(err))
		})
	}
}

func TestBind_CachesTemplates(t *testing.T) {
	query := "SELECT * FROM cached WHERE id=%(id)s"
	before := TemplateStats()

	for i := range 3 {
		q, err := Bind(query, map[string]any{"id": i})
		require.NoError(t, err)
		assert.Equal(t, []any{i}, q.Args)
	}

	after := TemplateStats()
	assert.Equal(t, before.Hits+2, after.Hits)
}

func TestMustBind(t *testing.T) {
	assert.Equal(t, "SELECT ?", MustBind("SELECT %s", []any{1}).SQL)
	assert.Panics(t, func() { MustBind("SELECT %s", []any{}) })
}
