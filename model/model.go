package model

import (
	"context"
	"maps"
	"slices"

	"github.com/spf13/cast"

	porm "github.com/satishbabariya/porm-go"
	"github.com/satishbabariya/porm-go/database/api"
	"github.com/satishbabariya/porm-go/query/filter"
	"github.com/satishbabariya/porm-go/query/sqlgen"
)

// updateFilterPrefix prefixes the WHERE parameters of Update and Delete so
// they never collide with SET parameters.
const updateFilterPrefix = "f_"

// DB runs the statements of a Model. *mysql.DB satisfies it.
type DB interface {
	QueryMany(ctx context.Context, query string, params any) ([]api.Record, error)
	QueryOne(ctx context.Context, query string, params any) (api.Record, error)
	InsertOne(ctx context.Context, query string, params any) (*api.Cursor, error)
	InsertMany(ctx context.Context, query string, paramSets []any) (*api.Cursor, error)
	Delete(ctx context.Context, query string, params any) (*api.Cursor, error)
}

// Model binds a schema to a database. Statements run on the connection of
// the context's slot, so calls made inside a transaction join it.
type Model struct {
	schema *Schema
	db     DB
}

// New binds schema to db.
func New(schema *Schema, db DB) *Model {
	return &Model{schema: schema, db: db}
}

// Schema returns the model's schema.
func (m *Model) Schema() *Schema {
	return m.schema
}

// TableName returns the qualified table name, in db when it is not empty.
func (m *Model) TableName(db string) string {
	return m.schema.TableName(db, "")
}

// New creates a record from values, applying field defaults.
func (m *Model) New(values map[string]any) (*Record, error) {
	return m.schema.NewRecord(values)
}

type queryOptions struct {
	columns   []string
	orderBy   string
	database  string
	table     string
	forUpdate bool
	qualify   bool
	join      *Join
	page      int
	size      int
	paged     bool
}

// QueryOption configures the read operations of a Model.
type QueryOption func(*queryOptions)

// Columns selects the returned columns. The default is every declared field
// qualified with the table.
func Columns(cols ...string) QueryOption {
	return func(o *queryOptions) { o.columns = cols }
}

// OrderBy appends an ORDER BY clause, emitted verbatim.
func OrderBy(orderBy string) QueryOption {
	return func(o *queryOptions) { o.orderBy = orderBy }
}

// InDatabase reads from another database holding the same table.
func InDatabase(db string) QueryOption {
	return func(o *queryOptions) { o.database = db }
}

// FromTable reads from another table with the same layout.
func FromTable(table string) QueryOption {
	return func(o *queryOptions) { o.table = table }
}

// ForUpdate locks the selected rows.
func ForUpdate() QueryOption {
	return func(o *queryOptions) { o.forUpdate = true }
}

// QualifyTerms prefixes filter fields with the table name, which joins with
// shared column names need.
func QualifyTerms() QueryOption {
	return func(o *queryOptions) { o.qualify = true }
}

// Joined joins further tables to the read.
func Joined(j *Join) QueryOption {
	return func(o *queryOptions) { o.join = j }
}

// Page limits the read to a 1-indexed page.
func Page(page, size int) QueryOption {
	return func(o *queryOptions) {
		o.page = page
		o.size = size
		o.paged = true
	}
}

func (m *Model) options(opts []QueryOption) queryOptions {
	o := queryOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// source renders the table expression with its joins and the WHERE filter.
// Paging and ordering only apply when withTail is set.
func (m *Model) source(terms filter.Terms, o queryOptions, withTail bool) (string, filter.ParsedResult, error) {
	table := m.schema.TableName(o.database, o.table)

	var popts []filter.Option
	if o.qualify {
		popts = append(popts, filter.WithTable(table))
	}
	if withTail && o.orderBy != "" {
		popts = append(popts, filter.WithOrderBy(o.orderBy))
	}
	if withTail && o.paged {
		popts = append(popts, filter.WithPage(o.page, o.size))
	}
	where, err := filter.Parse(terms, popts...)
	if err != nil {
		return "", filter.ParsedResult{}, err
	}

	results := []filter.ParsedResult{where}
	expr := table
	for _, joined := range o.join.Tables() {
		on, err := filter.ParseJoin(o.join.Terms(joined))
		if err != nil {
			return "", filter.ParsedResult{}, err
		}
		expr += sqlgen.JoinClause(joined, on.Filter())
		results = append(results, on)
	}
	params, err := filter.MergeParams(results...)
	if err != nil {
		return "", filter.ParsedResult{}, err
	}
	return expr, filter.NewParsedResult(params, where.Filter()), nil
}

func (m *Model) query(ctx context.Context, terms filter.Terms, o queryOptions) ([]api.Record, error) {
	table, parsed, err := m.source(terms, o, true)
	if err != nil {
		return nil, err
	}
	cols := o.columns
	if len(cols) == 0 {
		cols = m.schema.QualifiedNames(m.schema.TableName(o.database, o.table))
	}
	stmt := sqlgen.Select(cols, table, parsed.Filter())
	if o.forUpdate {
		stmt = sqlgen.SelectForUpdate(cols, table, parsed.Filter())
	}
	return m.db.QueryMany(ctx, stmt, map[string]any(parsed.Params()))
}

// GetMany returns the records matching terms.
func (m *Model) GetMany(ctx context.Context, terms filter.Terms, opts ...QueryOption) ([]*Record, error) {
	rows, err := m.query(ctx, terms, m.options(opts))
	if err != nil {
		return nil, err
	}
	recs := make([]*Record, 0, len(rows))
	for _, row := range rows {
		rec, err := m.schema.Load(row)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// GetOne returns the first record matching terms, or nil.
func (m *Model) GetOne(ctx context.Context, terms filter.Terms, opts ...QueryOption) (*Record, error) {
	recs, err := m.GetMany(ctx, terms, append(opts, Page(1, 1))...)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

// GetManyAndJoin returns the joined rows matching terms. Rows may carry
// columns of every joined table, so they are returned untyped.
func (m *Model) GetManyAndJoin(ctx context.Context, terms filter.Terms, j *Join, opts ...QueryOption) ([]api.Record, error) {
	o := m.options(opts)
	o.join = j
	return m.query(ctx, terms, o)
}

// Count returns the number of rows matching terms.
func (m *Model) Count(ctx context.Context, terms filter.Terms, opts ...QueryOption) (int64, error) {
	table, parsed, err := m.source(terms, m.options(opts), false)
	if err != nil {
		return 0, err
	}
	stmt := sqlgen.Select([]string{"COUNT(1) AS cnt"}, table, parsed.Filter())
	rec, err := m.db.QueryOne(ctx, stmt, map[string]any(parsed.Params()))
	if err != nil || rec == nil {
		return 0, err
	}
	n, err := cast.ToInt64E(rec["cnt"])
	if err != nil {
		return 0, porm.Wrap(porm.KindDatabase, "model.Count", err)
	}
	return n, nil
}

func (m *Model) insertStmt(rec *Record, ignore bool) (string, map[string]any, error) {
	if err := m.owns(rec); err != nil {
		return "", nil, err
	}
	vals, err := rec.ValidFields(true)
	if err != nil {
		return "", nil, err
	}
	names := rec.Names()
	if len(names) == 0 {
		return "", nil, porm.NewError(porm.KindEmpty, "model.Insert", "record of %s has no active fields", m.schema.table)
	}
	return sqlgen.Insert(m.schema.FullName(), names, ignore), vals, nil
}

func (m *Model) owns(rec *Record) error {
	if rec == nil {
		return porm.NewError(porm.KindEmpty, "model", "nil record")
	}
	if rec.schema != m.schema {
		return porm.NewError(porm.KindValidation, "model", "record of %s given to model of %s", rec.schema.FullName(), m.schema.FullName())
	}
	return nil
}

// Insert writes rec.
func (m *Model) Insert(ctx context.Context, rec *Record) (*api.Cursor, error) {
	stmt, vals, err := m.insertStmt(rec, false)
	if err != nil {
		return nil, err
	}
	return m.db.InsertOne(ctx, stmt, vals)
}

// InsertIgnore writes rec unless it collides with an existing key.
func (m *Model) InsertIgnore(ctx context.Context, rec *Record) (*api.Cursor, error) {
	stmt, vals, err := m.insertStmt(rec, true)
	if err != nil {
		return nil, err
	}
	return m.db.InsertOne(ctx, stmt, vals)
}

// Upsert writes rec, updating updateCols when the key exists. With no
// updateCols every active field is updated.
func (m *Model) Upsert(ctx context.Context, rec *Record, updateCols ...string) (*api.Cursor, error) {
	if _, _, err := m.insertStmt(rec, false); err != nil {
		return nil, err
	}
	names := rec.Names()
	for _, col := range updateCols {
		if !slices.Contains(names, col) {
			if !m.schema.Has(col) {
				return nil, m.schema.unknown("model.Upsert", col)
			}
			return nil, porm.NewError(porm.KindEmpty, "model.Upsert", "update column %s is not set", col)
		}
	}
	vals, err := rec.ValidFields(true)
	if err != nil {
		return nil, err
	}
	return m.db.InsertOne(ctx, sqlgen.Upsert(m.schema.FullName(), names, updateCols), vals)
}

// Update writes the active columns of rec to the rows matching filters. With
// no filters the active primary key fields select the row.
func (m *Model) Update(ctx context.Context, rec *Record, filters map[string]any) (*api.Cursor, error) {
	const op = "model.Update"
	if err := m.owns(rec); err != nil {
		return nil, err
	}
	params, err := rec.ColumnFields(true)
	if err != nil {
		return nil, err
	}
	if len(params) == 0 {
		return nil, porm.NewError(porm.KindEmpty, op, "record of %s has no active columns", m.schema.table)
	}
	if len(filters) == 0 {
		filters = rec.PKFields()
	}
	where, err := m.pkFilter(op, filters, params)
	if err != nil {
		return nil, err
	}

	var cols []string
	for _, name := range rec.Names() {
		if _, ok := params[name]; ok {
			cols = append(cols, name)
		}
	}
	stmt := sqlgen.Update(m.schema.FullName(), sqlgen.Assignments(cols, ""), where)
	return m.db.InsertOne(ctx, stmt, params)
}

// Delete removes the row selected by the active primary key fields of rec.
func (m *Model) Delete(ctx context.Context, rec *Record) (*api.Cursor, error) {
	const op = "model.Delete"
	if err := m.owns(rec); err != nil {
		return nil, err
	}
	params := map[string]any{}
	where, err := m.pkFilter(op, rec.PKFields(), params)
	if err != nil {
		return nil, err
	}
	return m.db.Delete(ctx, sqlgen.Delete(m.schema.FullName(), where), params)
}

// pkFilter renders filters as f_ prefixed equalities and adds their values
// to params.
func (m *Model) pkFilter(op string, filters map[string]any, params map[string]any) (string, error) {
	if len(filters) == 0 {
		return "", porm.NewError(porm.KindEmpty, op, "no filter and no primary key on %s", m.schema.table)
	}
	keys := slices.Sorted(maps.Keys(filters))
	for _, k := range keys {
		params[updateFilterPrefix+k] = filters[k]
	}
	return sqlgen.Equalities(keys, updateFilterPrefix), nil
}

// DeleteMany removes the rows matching terms. Empty terms are refused.
func (m *Model) DeleteMany(ctx context.Context, terms filter.Terms) (*api.Cursor, error) {
	if len(terms) == 0 {
		return nil, porm.NewError(porm.KindEmpty, "model.DeleteMany", "unknown delete terms")
	}
	parsed, err := filter.Parse(terms)
	if err != nil {
		return nil, err
	}
	return m.db.Delete(ctx, sqlgen.Delete(m.schema.FullName(), parsed.Filter()), map[string]any(parsed.Params()))
}

// InsertMany writes recs in one batch. Records with differing active fields
// are written with every declared field, leaving unset ones NULL.
func (m *Model) InsertMany(ctx context.Context, recs []*Record, ignore bool) (*api.Cursor, error) {
	if len(recs) == 0 {
		return nil, nil
	}

	var stmt string
	sets := make([]any, 0, len(recs))
	uniform := true
	for _, rec := range recs {
		s, vals, err := m.insertStmt(rec, ignore)
		if err != nil {
			return nil, err
		}
		if stmt != "" && s != stmt {
			uniform = false
		}
		stmt = s
		sets = append(sets, vals)
	}

	if !uniform {
		names := m.schema.Names()
		stmt = sqlgen.Insert(m.schema.FullName(), names, ignore)
		for i, set := range sets {
			vals := set.(map[string]any)
			for _, name := range names {
				if _, ok := vals[name]; !ok {
					vals[name] = nil
				}
			}
			sets[i] = vals
		}
	}
	return m.db.InsertMany(ctx, stmt, sets)
}

// Drop drops the table.
func (m *Model) Drop(ctx context.Context, ifExists bool) (*api.Cursor, error) {
	return m.db.Delete(ctx, sqlgen.Drop(m.schema.FullName(), ifExists), nil)
}

// Create runs a DDL statement, typically the CREATE TABLE of the schema.
func (m *Model) Create(ctx context.Context, stmt string, params any) (*api.Cursor, error) {
	if stmt == "" {
		return nil, porm.NewError(porm.KindEmpty, "model.Create", "empty statement")
	}
	return m.db.InsertOne(ctx, stmt, params)
}

// Join joins other to this model's table on column equalities.
func (m *Model) Join(other *Schema, eq map[string]string) *Join {
	return NewJoin(m.schema.FullName(), other.FullName(), eq)
}
