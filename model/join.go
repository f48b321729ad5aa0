package model

import (
	"maps"
	"strings"

	"github.com/satishbabariya/porm-go/query/filter"
)

// Join lists the tables joined to a base table and their ON terms. Tables
// are rendered in the order they were added.
type Join struct {
	tables []string
	terms  map[string]filter.Terms
}

// NewJoin joins joined to base on column equalities. eq maps base columns to
// joined columns; unqualified names are qualified with their table.
func NewJoin(base, joined string, eq map[string]string) *Join {
	j := &Join{terms: map[string]filter.Terms{}}
	return j.Join(base, joined, eq)
}

// Join adds another table, or more equalities to a table already joined.
func (j *Join) Join(base, joined string, eq map[string]string) *Join {
	terms := j.table(joined)
	for baseCol, joinCol := range eq {
		terms[qualify(base, baseCol)] = filter.Column(qualify(joined, joinCol))
	}
	return j
}

// Where adds a bound term to the ON clause of joined, for instance
// Where("db.Role", "db.Role.active", 1).
func (j *Join) Where(joined, column string, term any) *Join {
	j.table(joined)[column] = term
	return j
}

func (j *Join) table(name string) filter.Terms {
	terms, ok := j.terms[name]
	if !ok {
		terms = filter.Terms{}
		j.terms[name] = terms
		j.tables = append(j.tables, name)
	}
	return terms
}

// Tables returns the joined tables in order.
func (j *Join) Tables() []string {
	if j == nil {
		return nil
	}
	return append([]string(nil), j.tables...)
}

// Terms returns the ON terms of a joined table.
func (j *Join) Terms(table string) filter.Terms {
	if j == nil {
		return nil
	}
	return maps.Clone(j.terms[table])
}

// Spec returns the join as a filter.JoinSpec.
func (j *Join) Spec() filter.JoinSpec {
	spec := filter.JoinSpec{}
	for _, t := range j.Tables() {
		spec[t] = j.Terms(t)
	}
	return spec
}

func qualify(table, column string) string {
	if strings.Contains(column, ".") {
		return column
	}
	return table + "." + column
}
