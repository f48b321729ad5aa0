// Package sqlgen renders MySQL statement templates and binds pyformat
// parameters (%(name)s and %s) to driver placeholders.
package sqlgen

import (
	"fmt"
	"strings"
)

// Query is a statement ready for database/sql: SQL uses ? placeholders and
// Args holds the values in placeholder order.
type Query struct {
	SQL  string
	Args []any
}

// Insert renders INSERT [IGNORE] INTO table (cols) VALUES (placeholders).
func Insert(table string, cols []string, ignore bool) string {
	verb := "INSERT"
	if ignore {
		verb = "INSERT IGNORE"
	}
	return fmt.Sprintf("%s INTO %s (%s) VALUES (%s)", verb, table, strings.Join(cols, ", "), Placeholders(cols))
}

// Upsert renders an insert that updates updateCols when the key exists.
// With no updateCols every column is updated.
func Upsert(table string, cols, updateCols []string) string {
	if len(updateCols) == 0 {
		updateCols = cols
	}
	return fmt.Sprintf("%s ON DUPLICATE KEY UPDATE %s", Insert(table, cols, false), Assignments(updateCols, ""))
}

// Select renders SELECT cols FROM table WHERE filter. No columns selects *.
func Select(cols []string, table, filter string) string {
	columns := "*"
	if len(cols) > 0 {
		columns = strings.Join(cols, ", ")
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s", columns, table, filter)
}

// SelectForUpdate is Select with a FOR UPDATE lock.
func SelectForUpdate(cols []string, table, filter string) string {
	return Select(cols, table, filter) + " FOR UPDATE"
}

// Update renders UPDATE table SET assignments WHERE filter.
func Update(table, assignments, filter string) string {
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, assignments, filter)
}

// Delete renders DELETE FROM table WHERE filter.
func Delete(table, filter string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s", table, filter)
}

// Drop renders DROP TABLE [IF EXISTS] table.
func Drop(table string, ifExists bool) string {
	if ifExists {
		return "DROP TABLE IF EXISTS " + table
	}
	return "DROP TABLE " + table
}

// Assignments renders col=%(prefix+col)s pairs separated by ", ".
func Assignments(cols []string, prefix string) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprintf("%s=%%(%s%s)s", col, prefix, col)
	}
	return strings.Join(parts, ", ")
}

// Equalities renders col=%(prefix+col)s pairs joined by AND.
func Equalities(cols []string, prefix string) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprintf("%s=%%(%s%s)s", col, prefix, col)
	}
	return strings.Join(parts, " AND ")
}

// Placeholders renders %(col)s for every column, separated by ", ".
func Placeholders(cols []string) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprintf("%%(%s)s", col)
	}
	return strings.Join(parts, ", ")
}

// JoinClause renders " JOIN table ON (fragment) ", ready to be appended to a
// table expression.
func JoinClause(table, fragment string) string {
	return fmt.Sprintf(" JOIN %s ON (%s) ", table, fragment)
}
