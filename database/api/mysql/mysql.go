// Package mysql is the MySQL flavour of the api facade: connection
// configuration, autocommit control, session transactions and the query
// helpers used by the model layer.
package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/hashicorp/go-version"
	"github.com/spf13/cast"

	porm "github.com/satishbabariya/porm-go"
	"github.com/satishbabariya/porm-go/database/api"
)

// MinServerVersion is the oldest server release the facade is tested with.
const MinServerVersion = "5.5.0"

// operational lists server error numbers reported as operational errors.
var operational = map[uint16]bool{
	1044: true, // access denied to database
	1045: true, // access denied for user
	1049: true, // unknown database
	1205: true, // lock wait timeout
	1213: true, // deadlock
	2002: true, // cannot connect through socket
	2003: true, // cannot connect to server
	2006: true, // server has gone away
	2013: true, // lost connection during query
}

// ClassifyError maps driver errors to porm kinds.
func ClassifyError(err error) porm.Kind {
	var myErr *mysqldrv.MySQLError
	if errors.As(err, &myErr) && operational[myErr.Number] {
		return porm.KindOperational
	}
	if errors.Is(err, mysqldrv.ErrInvalidConn) || errors.Is(err, driver.ErrBadConn) {
		return porm.KindInterface
	}
	return api.ClassifyError(err)
}

// DB is a MySQL database facade.
type DB struct {
	*api.DB
	cfg  Config
	pool *sql.DB
}

// New creates a facade for cfg. No connection is opened until first use.
func New(cfg Config, opts ...api.Option) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pool, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, porm.Wrap(porm.KindDatabase, "mysql.New", err)
	}
	return NewWithPool(pool, cfg, opts...), nil
}

// NewWithPool creates a facade over an existing pool.
func NewWithPool(pool *sql.DB, cfg Config, opts ...api.Option) *DB {
	base := []api.Option{
		api.WithName(cfg.DB),
		api.WithErrorClassifier(ClassifyError),
	}
	return &DB{
		DB:   api.New(api.DBConnector(pool), append(base, opts...)...),
		cfg:  cfg,
		pool: pool,
	}
}

// Open creates a facade and checks that the server answers.
func Open(ctx context.Context, cfg Config, opts ...api.Option) (*DB, error) {
	db, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := db.pool.PingContext(ctx); err != nil {
		_ = db.pool.Close()
		return nil, porm.Wrap(ClassifyError(err), "mysql.Open", err)
	}
	return db, nil
}

// Config returns the connection parameters.
func (db *DB) Config() Config {
	return db.cfg
}

// Shutdown closes the slot's connection and the underlying pool.
func (db *DB) Shutdown(ctx context.Context) error {
	if _, err := db.Close(ctx); err != nil {
		return err
	}
	return db.pool.Close()
}

// GetAutocommit reports the session autocommit mode.
func (db *DB) GetAutocommit(ctx context.Context) (bool, error) {
	cur, err := db.ExecuteSQL(ctx, "SELECT @@autocommit", nil)
	if err != nil {
		return false, err
	}
	row, ok := cur.FetchOne()
	if !ok || len(row) == 0 {
		return false, porm.NewError(porm.KindDatabase, "mysql.GetAutocommit", "no autocommit value returned")
	}
	on, err := cast.ToBoolE(row[0])
	if err != nil {
		return false, porm.Wrap(porm.KindDatabase, "mysql.GetAutocommit", err)
	}
	return on, nil
}

// SetAutocommit sets the session autocommit mode.
func (db *DB) SetAutocommit(ctx context.Context, on bool) error {
	v := 0
	if on {
		v = 1
	}
	_, err := db.ExecuteSQL(ctx, fmt.Sprintf("SET AUTOCOMMIT=%d;", v), nil, api.WithCommit(false))
	return err
}

// StartTransaction runs fn in a session transaction with autocommit turned
// off, committing when fn succeeds and rolling back otherwise. The previous
// autocommit mode is restored afterwards. A context without a slot gets one
// for the call, and its connection is closed at the end; a session fn left
// open on that slot is rolled back first.
func (db *DB) StartTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	ctx, release, fresh := db.Acquire(ctx)
	defer release()
	if fresh {
		defer func() {
			if _, cerr := db.Close(ctx); cerr != nil && err == nil {
				err = cerr
			}
		}()
	}

	auto, err := db.GetAutocommit(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if serr := db.SetAutocommit(ctx, auto); serr != nil && err == nil {
			err = serr
		}
	}()

	if err := db.SetAutocommit(ctx, false); err != nil {
		return err
	}
	if _, err := db.SessionStart(ctx); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_, _ = db.SessionRollback(ctx)
			panic(p)
		}
	}()

	if ferr := fn(ctx); ferr != nil {
		db.Logger().Error("transaction failed", "error", ferr)
		if _, rbErr := db.SessionRollback(ctx); rbErr != nil {
			db.Logger().Error("rollback failed", "error", rbErr)
		}
		return ferr
	}
	_, err = db.SessionCommit(ctx)
	return err
}

// CreateTransaction opens a facade for cfg, runs fn in StartTransaction and
// shuts the facade down.
func CreateTransaction(ctx context.Context, cfg Config, fn func(ctx context.Context, db *DB) error, opts ...api.Option) error {
	db, err := New(cfg, opts...)
	if err != nil {
		return err
	}
	ctx, release, _ := db.Acquire(ctx)
	defer release()

	err = db.StartTransaction(ctx, func(ctx context.Context) error {
		return fn(ctx, db)
	})
	if serr := db.Shutdown(ctx); serr != nil && err == nil {
		err = serr
	}
	return err
}

func (db *DB) logFailure(query string, params any, err error) {
	db.Logger().Error("query failed", "sql", query, "params", params, "error", err)
}

// QueryMany runs a query and returns every row.
func (db *DB) QueryMany(ctx context.Context, query string, params any) ([]api.Record, error) {
	cur, err := db.ExecuteSQL(ctx, query, params)
	if err != nil {
		db.logFailure(query, params, err)
		return nil, err
	}
	return cur.Records(), nil
}

// QueryOne runs a query and returns its first row, or nil when there is none.
func (db *DB) QueryOne(ctx context.Context, query string, params any) (api.Record, error) {
	cur, err := db.ExecuteSQL(ctx, query, params)
	if err != nil {
		db.logFailure(query, params, err)
		return nil, err
	}
	rec, _ := cur.RecordOne()
	return rec, nil
}

// Query is QueryMany.
func (db *DB) Query(ctx context.Context, query string, params any) ([]api.Record, error) {
	return db.QueryMany(ctx, query, params)
}

// QueryRows runs a query and returns every row as values in column order.
func (db *DB) QueryRows(ctx context.Context, query string, params any) ([]string, [][]any, error) {
	cur, err := db.ExecuteSQL(ctx, query, params)
	if err != nil {
		db.logFailure(query, params, err)
		return nil, nil, err
	}
	return cur.Columns(), cur.FetchAll(), nil
}

// InsertOne runs a single write statement.
func (db *DB) InsertOne(ctx context.Context, query string, params any) (*api.Cursor, error) {
	cur, err := db.ExecuteSQL(ctx, query, params)
	if err != nil {
		db.logFailure(query, params, err)
		return nil, err
	}
	return cur, nil
}

// InsertMany runs a write statement once per parameter set.
func (db *DB) InsertMany(ctx context.Context, query string, paramSets []any) (*api.Cursor, error) {
	cur, err := db.ExecuteMany(ctx, query, paramSets)
	if err != nil {
		db.logFailure(query, paramSets, err)
		return nil, err
	}
	return cur, nil
}

// Delete runs a delete or drop statement.
func (db *DB) Delete(ctx context.Context, query string, params any) (*api.Cursor, error) {
	cur, err := db.ExecuteSQL(ctx, query, params)
	if err != nil {
		db.logFailure(query, params, err)
		return nil, err
	}
	return cur, nil
}

// ServerVersion returns the server release.
func (db *DB) ServerVersion(ctx context.Context) (*version.Version, error) {
	const op = "mysql.ServerVersion"
	rec, err := db.QueryOne(ctx, "SELECT VERSION() AS version", nil)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, porm.NewError(porm.KindDatabase, op, "no version returned")
	}
	v, err := version.NewVersion(cast.ToString(rec["version"]))
	if err != nil {
		return nil, porm.Wrap(porm.KindDatabase, op, err)
	}
	return v, nil
}

// CheckServerVersion fails with a not supported error when the server is
// older than minimum.
func (db *DB) CheckServerVersion(ctx context.Context, minimum string) (*version.Version, error) {
	const op = "mysql.CheckServerVersion"
	want, err := version.NewVersion(minimum)
	if err != nil {
		return nil, porm.Wrap(porm.KindParam, op, err)
	}
	got, err := db.ServerVersion(ctx)
	if err != nil {
		return nil, err
	}
	if got.Core().LessThan(want) {
		return got, porm.NewError(porm.KindNotSupported, op, "server %s is older than %s", got, want)
	}
	return got, nil
}
