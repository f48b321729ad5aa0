package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	porm "github.com/satishbabariya/porm-go"
)

func userSchema() *Schema {
	return MustSchema("PORM", "UserInfo",
		Integer("userid", PrimaryKey(), Required()),
		Varchar("username", Required()),
		Varchar("email", Required()),
		Text("descr"),
		Integer("is_active", Default(1)),
	)
}

func TestNewSchema(t *testing.T) {
	s := userSchema()
	assert.Equal(t, "PORM.UserInfo", s.FullName())
	assert.Equal(t, []string{"userid"}, s.PrimaryKeys())
	assert.Equal(t, []string{"username", "email", "descr", "is_active"}, s.Columns())
	assert.Equal(t, []string{"userid", "username", "email", "descr", "is_active"}, s.Names())
	assert.Equal(t, "PORM.UserInfo.userid", s.QualifiedNames(s.FullName())[0])
	assert.True(t, s.Has("email"))
	assert.False(t, s.Has("password"))

	f, ok := s.Field("descr")
	require.True(t, ok)
	assert.Equal(t, TypeText, f.Type())
}

func TestNewSchema_Errors(t *testing.T) {
	tests := []struct {
		name     string
		database string
		table    string
		fields   []Field
	}{
		{"empty database", "", "t", []Field{Integer("id")}},
		{"empty table", "db", " ", []Field{Integer("id")}},
		{"no fields", "db", "t", nil},
		{"empty field name", "db", "t", []Field{Integer("")}},
		{"duplicate field", "db", "t", []Field{Integer("id"), Varchar("id")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchema(tt.database, tt.table, tt.fields...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, porm.ErrParam))
		})
	}
	assert.Panics(t, func() { MustSchema("db", "t") })
}

func TestSchemaTableName(t *testing.T) {
	s := userSchema()
	assert.Equal(t, "PORM.UserInfo", s.TableName("", ""))
	assert.Equal(t, "ARCHIVE.UserInfo", s.TableName("ARCHIVE", ""))
	assert.Equal(t, "PORM.UserInfo2019", s.TableName("", " UserInfo2019 "))
	assert.Equal(t, "PORM.UserInfo2019", s.TableName("", "PORM.UserInfo2019"))
	assert.Equal(t, "ARCHIVE.Users", s.TableName("ARCHIVE", "Users"))
}

func TestRecordAccessors(t *testing.T) {
	s := userSchema()
	rec, err := s.NewRecord(map[string]any{"username": "ann", "email": "ann@example.com"})
	require.NoError(t, err)

	assert.Equal(t, 3, rec.Len())
	assert.Equal(t, []string{"username", "email", "is_active"}, rec.Names())

	v, err := rec.Get("is_active")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	_, err = rec.Get("descr")
	assert.True(t, errors.Is(err, porm.ErrEmpty))
	_, err = rec.Get("password")
	assert.True(t, errors.Is(err, porm.ErrValidation))
	assert.True(t, errors.Is(rec.Set("password", "x"), porm.ErrValidation))
	assert.True(t, errors.Is(rec.Set("username", nil), porm.ErrValidation))

	require.NoError(t, rec.Set("userid", "9"))
	assert.Equal(t, map[string]any{"userid": int64(9)}, rec.PKFields())
	assert.True(t, rec.Has("userid"))

	cols, err := rec.ColumnFields(false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"username": "ann", "email": "ann@example.com", "is_active": int64(1)}, cols)

	cp := rec.Copy()
	cp.Delete("email")
	assert.False(t, cp.Has("email"))
	assert.True(t, rec.Has("email"))

	assert.JSONEq(t, `{"userid":9,"username":"ann","email":"ann@example.com","is_active":1}`, rec.String())
}

func TestRecordReset(t *testing.T) {
	rec, err := userSchema().Load(map[string]any{"userid": int64(1), "username": "ann", "unknown": 1})
	require.NoError(t, err)
	assert.False(t, rec.Has("is_active"), "Load applies no defaults")

	require.NoError(t, rec.Reset(map[string]any{"userid": 5, "email": "new@example.com", "missing": 1}))
	pk, _ := rec.Get("userid")
	assert.Equal(t, int64(1), pk)
	email, _ := rec.Get("email")
	assert.Equal(t, "new@example.com", email)

	assert.Error(t, rec.Reset(map[string]any{"username": nil}))
}

func TestRecordValidFieldsForSave(t *testing.T) {
	s := MustSchema("PORM", "Event",
		Integer("id", PrimaryKey()),
		JSON("payload"),
		Date("day"),
	)
	rec, err := s.NewRecord(map[string]any{"id": 1, "payload": map[string]any{"k": "v"}, "day": "2024-03-01"})
	require.NoError(t, err)

	saved, err := rec.ValidFields(true)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": int64(1), "payload": `{"k":"v"}`, "day": "2024-03-01"}, saved)

	raw, err := rec.ValidFields(false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "v"}, raw["payload"])
}
