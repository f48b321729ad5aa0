package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	porm "github.com/satishbabariya/porm-go"
)

func TestFieldValidate(t *testing.T) {
	local := time.Local
	tests := []struct {
		name  string
		field Field
		in    any
		want  any
	}{
		{"integer from string", Integer("age"), "42", int64(42)},
		{"integer from int", Integer("age"), 7, int64(7)},
		{"integer in range", Integer("age", Range(0, 150)), 150, int64(150)},
		{"varchar from bytes", Varchar("name"), []byte("ann"), "ann"},
		{"varchar from number", Varchar("name"), 12, "12"},
		{"text unbounded", Text("descr"), string(make([]byte, 1000)), string(make([]byte, 1000))},
		{"nil optional", Varchar("name"), nil, nil},
		{"datetime layout", Datetime("created"), "2024-03-01 10:20:30", time.Date(2024, 3, 1, 10, 20, 30, 0, local)},
		{"datetime custom format", Datetime("created", Format("02/01/2006 15:04")), "01/03/2024 10:20", time.Date(2024, 3, 1, 10, 20, 0, 0, local)},
		{"date truncates", Date("day"), time.Date(2024, 3, 1, 10, 20, 30, 0, local), time.Date(2024, 3, 1, 0, 0, 0, 0, local)},
		{"date layout", Date("day"), "2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, local)},
		{"time from timestamp", Time("at"), "1700000000", time.Unix(1700000000, 0)},
		{"json from string", JSON("meta"), `{"a":[1,2]}`, map[string]any{"a": []any{float64(1), float64(2)}}},
		{"json value", JSON("meta"), map[string]any{"a": 1}, map[string]any{"a": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.field.Validate(tt.in)
			require.NoError(t, err)
			if want, ok := tt.want.(time.Time); ok {
				assert.True(t, want.Equal(got.(time.Time)), "got %v", got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFieldValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		in      any
		message string
	}{
		{"required nil", Varchar("email", Required()), nil, "email: is not null but got null"},
		{"not an integer", Integer("age"), "old", "age: old is not integer type"},
		{"out of range", Integer("age", Range(0, 150)), 151, "age: 151 not in [0, 150]"},
		{"too long", Varchar("code", Length(2)), "abc", "code: abc is over size: 2"},
		{"bad datetime", Datetime("created"), 12, "created: 12 is not string type or DATETIME type"},
		{"bad json", JSON("meta"), "{", "meta: invalid JSON document"},
		{"json not serializable", JSON("meta"), func() {}, "is not JSON serializable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.field.Validate(tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, porm.ErrValidation))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestFieldDump(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC)

	v, err := Datetime("created").Dump(at)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01 10:20:30", v)

	v, err = Date("day").Dump(at)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", v)

	v, err = Time("at").Dump(at)
	require.NoError(t, err)
	assert.Equal(t, "10:20:30", v)

	v, err = JSON("meta").Dump(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v)

	v, err = Integer("n").Dump(int64(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	v, err = Varchar("s").Dump(nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestFieldDefaults(t *testing.T) {
	f := Integer("is_active", Default(1))
	assert.True(t, f.HasDefault())
	assert.Equal(t, 1, f.Default())

	n := 0
	g := Integer("seq", DefaultFunc(func() any { n++; return n }))
	assert.True(t, g.HasDefault())
	assert.Equal(t, 1, g.Default())
	assert.Equal(t, 2, g.Default())

	assert.False(t, Varchar("name").HasDefault())
	assert.True(t, Integer("id", PrimaryKey()).IsPK())
	assert.True(t, Varchar("name", Required()).IsRequired())
	assert.Equal(t, TypeText, Text("descr").Type())
}
