package api

import (
	"context"

	"github.com/satishbabariya/porm-go/query/sqlgen"
)

// Record is one result row keyed by column name.
type Record map[string]any

// Cursor is a fully read statement result. Text columns are returned as
// strings.
type Cursor struct {
	columns      []string
	rows         [][]any
	pos          int
	rowsAffected int64
	lastInsertID int64
}

// NewCursor builds a cursor over already fetched rows.
func NewCursor(columns []string, rows [][]any) *Cursor {
	return &Cursor{columns: columns, rows: rows}
}

// Columns returns the result column names.
func (c *Cursor) Columns() []string {
	return c.columns
}

// RowCount returns the number of fetched rows.
func (c *Cursor) RowCount() int {
	return len(c.rows)
}

// RowsAffected returns the rows changed by a statement without a result set.
func (c *Cursor) RowsAffected() int64 {
	return c.rowsAffected
}

// LastInsertID returns the auto increment id generated by an insert.
func (c *Cursor) LastInsertID() int64 {
	return c.lastInsertID
}

// FetchOne returns the next row.
func (c *Cursor) FetchOne() ([]any, bool) {
	if c.pos >= len(c.rows) {
		return nil, false
	}
	row := c.rows[c.pos]
	c.pos++
	return row, true
}

// FetchMany returns up to n of the remaining rows.
func (c *Cursor) FetchMany(n int) [][]any {
	end := min(len(c.rows), c.pos+max(0, n))
	rows := c.rows[c.pos:end]
	c.pos = end
	return rows
}

// FetchAll returns every remaining row.
func (c *Cursor) FetchAll() [][]any {
	rows := c.rows[c.pos:]
	c.pos = len(c.rows)
	return rows
}

// RecordOne returns the next row as a Record.
func (c *Cursor) RecordOne() (Record, bool) {
	row, ok := c.FetchOne()
	if !ok {
		return nil, false
	}
	return c.record(row), true
}

// Records returns every remaining row as a Record.
func (c *Cursor) Records() []Record {
	rows := c.FetchAll()
	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i] = c.record(row)
	}
	return out
}

func (c *Cursor) record(row []any) Record {
	r := make(Record, len(c.columns))
	for i, col := range c.columns {
		r[col] = row[i]
	}
	return r
}

func queryRows(ctx context.Context, conn Conn, q sqlgen.Query) (*Cursor, error) {
	rows, err := conn.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	cur := &Cursor{columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		cur.rows = append(cur.rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cur, nil
}

func execStmt(ctx context.Context, conn Conn, q sqlgen.Query) (*Cursor, error) {
	res, err := conn.ExecContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, err
	}
	cur := &Cursor{}
	// Drivers that do not report these return errors; the counters stay zero.
	if n, err := res.RowsAffected(); err == nil {
		cur.rowsAffected = n
	}
	if id, err := res.LastInsertId(); err == nil {
		cur.lastInsertID = id
	}
	return cur, nil
}
