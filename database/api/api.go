// Package api manages connections, transactions and savepoints on top of a
// driver connection and executes pyformat statements through them.
package api

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"log/slog"
	"strings"
	"sync"

	porm "github.com/satishbabariya/porm-go"
	"github.com/satishbabariya/porm-go/internal/debug"
	"github.com/satishbabariya/porm-go/query/sqlgen"
)

// ErrorClassifier maps a driver error to a porm error kind.
type ErrorClassifier func(err error) porm.Kind

// InitFunc runs on every new connection before it is used.
type InitFunc func(ctx context.Context, conn Conn) error

// DB is the connection and transaction aware facade all statements go
// through. A thread safe DB keeps one connection state per Slot; contexts
// without a slot share a default state, except the scoped runners
// (Transaction, Savepoint, Atomic, Run) which give such a context a slot of
// its own for the call.
type DB struct {
	name         string
	connector    Connector
	threadSafe   bool
	autorollback bool
	autoconnect  bool
	deferred     bool
	quote        string
	logger       *slog.Logger
	classify     ErrorClassifier
	initConn     InitFunc
	middlewares  []Middleware

	// mu guards Connect, Close and Init.
	mu     sync.Mutex
	shared *connState
	states sync.Map
}

// Option configures a DB.
type Option func(*DB)

// WithName sets the database name used in log records.
func WithName(name string) Option {
	return func(db *DB) { db.name = name }
}

// WithThreadSafe selects per slot connection state (the default) or a single
// state shared by every context.
func WithThreadSafe(threadSafe bool) Option {
	return func(db *DB) { db.threadSafe = threadSafe }
}

// WithAutorollback rolls back after a failed statement run outside a
// transaction.
func WithAutorollback(autorollback bool) Option {
	return func(db *DB) { db.autorollback = autorollback }
}

// WithAutoconnect opens a connection on first use. It is on by default;
// without it executing on a closed slot is an interface error.
func WithAutoconnect(autoconnect bool) Option {
	return func(db *DB) { db.autoconnect = autoconnect }
}

// WithLogger sets the logger. The default is the package debug logger.
func WithLogger(logger *slog.Logger) Option {
	return func(db *DB) { db.logger = logger }
}

// WithErrorClassifier sets how driver errors are classified.
func WithErrorClassifier(classify ErrorClassifier) Option {
	return func(db *DB) { db.classify = classify }
}

// WithInitConn sets a hook run on every new connection.
func WithInitConn(fn InitFunc) Option {
	return func(db *DB) { db.initConn = fn }
}

// WithMiddleware appends statement middleware.
func WithMiddleware(mw ...Middleware) Option {
	return func(db *DB) { db.middlewares = append(db.middlewares, mw...) }
}

// New creates a DB over connector. A nil connector leaves the DB deferred
// until Init provides one.
func New(connector Connector, opts ...Option) *DB {
	db := &DB{
		connector:   connector,
		threadSafe:  true,
		autoconnect: true,
		deferred:    connector == nil,
		quote:       "`",
		shared:      newConnState(),
		classify:    ClassifyError,
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.logger == nil {
		db.logger = debug.Logger()
	}
	if db.name != "" {
		db.logger = db.logger.With("database", db.name)
	}
	return db
}

// Name returns the database name.
func (db *DB) Name() string {
	return db.name
}

// Logger returns the logger of the DB.
func (db *DB) Logger() *slog.Logger {
	return db.logger
}

// Use appends middleware to the statement chain.
func (db *DB) Use(mw Middleware) {
	db.middlewares = append(db.middlewares, mw)
}

// ClassifyError is the default classifier: closed connections are interface
// errors and everything else is a database error.
func ClassifyError(err error) porm.Kind {
	switch {
	case errors.Is(err, sql.ErrConnDone), errors.Is(err, driver.ErrBadConn):
		return porm.KindInterface
	case errors.Is(err, sql.ErrTxDone):
		return porm.KindOperational
	}
	return porm.KindDatabase
}

func (db *DB) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var perr *porm.Error
	if errors.As(err, &perr) {
		return err
	}
	return porm.Wrap(db.classify(err), op, err)
}

// Init replaces the connector, closing the slot's connection first when it
// is open. A nil connector makes the DB deferred again.
func (db *DB) Init(ctx context.Context, connector Connector) error {
	if !db.IsClosed(ctx) {
		if _, err := db.Close(ctx); err != nil {
			return err
		}
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	db.connector = connector
	db.deferred = connector == nil
	return nil
}

// Connect opens the slot's connection. It reports false when reuseIfOpen is
// set and a connection is already open; without reuseIfOpen an open
// connection is an operational error.
func (db *DB) Connect(ctx context.Context, reuseIfOpen bool) (bool, error) {
	const op = "api.Connect"
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.deferred {
		return false, porm.NewError(porm.KindInterface, op, "database must be initialized before opening a connection")
	}
	st := db.state(ctx)
	if !db.isClosed(ctx, st) {
		if reuseIfOpen {
			return false, nil
		}
		return false, porm.NewError(porm.KindOperational, op, "connection already opened")
	}

	st.reset()
	conn, err := db.connector.Connect(ctx)
	if err != nil {
		return false, db.wrap(op, err)
	}
	if db.initConn != nil {
		if err := db.initConn(ctx, conn); err != nil {
			_ = conn.Close()
			return false, db.wrap(op, err)
		}
	}
	st.setConnection(conn)
	db.logger.Debug("connection opened", "slot", slotID(ctx))
	return true, nil
}

// Close closes the slot's connection and reports whether one was open.
// Closing while a transaction is open is an operational error and leaves the
// connection open.
func (db *DB) Close(ctx context.Context) (bool, error) {
	const op = "api.Close"
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.deferred {
		return false, porm.NewError(porm.KindInterface, op, "database must be initialized before closing a connection")
	}
	st := db.state(ctx)
	if st.depth() > 0 {
		return false, porm.NewError(porm.KindOperational, op, "attempting to close database while transaction is open")
	}

	conn, _ := st.detach()
	isOpen := conn != nil
	var err error
	if isOpen {
		err = db.wrap(op, conn.Close())
		db.logger.Debug("connection closed", "slot", slotID(ctx))
	}
	return isOpen, err
}

// IsClosed reports whether the slot has no open connection. An open
// connection is pinged and transparently reopened when the transport
// dropped; that never changes the result.
func (db *DB) IsClosed(ctx context.Context) bool {
	return db.isClosed(ctx, db.state(ctx))
}

func (db *DB) isClosed(ctx context.Context, st *connState) bool {
	old, closed := st.current()
	if closed {
		return true
	}
	if err := old.PingContext(ctx); err != nil {
		db.logger.Warn("connection lost, reconnecting", "slot", slotID(ctx), "error", err)
		conn, cerr := db.connector.Connect(ctx)
		if cerr != nil {
			db.logger.Error("reconnect failed", "slot", slotID(ctx), "error", cerr)
			return false
		}
		if db.initConn != nil {
			if ierr := db.initConn(ctx, conn); ierr != nil {
				db.logger.Error("reconnect failed", "slot", slotID(ctx), "error", ierr)
				_ = conn.Close()
				return false
			}
		}
		_ = st.replace(old, conn).Close()
	}
	return false
}

// Connection returns the slot's connection, opening it when closed.
func (db *DB) Connection(ctx context.Context) (Conn, error) {
	if db.IsClosed(ctx) {
		if _, err := db.Connect(ctx, true); err != nil {
			return nil, err
		}
	}
	conn, _ := db.state(ctx).current()
	return conn, nil
}

func (db *DB) cursorConn(ctx context.Context) (Conn, error) {
	if db.IsClosed(ctx) {
		if !db.autoconnect {
			return nil, porm.NewError(porm.KindInterface, "api.ExecuteSQL", "database connection not opened")
		}
		if _, err := db.Connect(ctx, true); err != nil {
			return nil, err
		}
	}
	conn, _ := db.state(ctx).current()
	return conn, nil
}

type execOptions struct {
	commit *bool
}

// ExecOption configures one ExecuteSQL call.
type ExecOption func(*execOptions)

// WithCommit forces or suppresses the commit after the statement. Inside a
// transaction no commit is ever issued.
func WithCommit(commit bool) ExecOption {
	return func(o *execOptions) { o.commit = &commit }
}

// ExecuteSQL binds params into query, runs it on the slot's connection and
// returns the materialized result.
//
// Unless WithCommit says otherwise, statements inside a transaction are not
// committed and every other statement that does not start with SELECT is
// committed right away. A failing statement outside a transaction is rolled
// back when autorollback is set; the error is returned unchanged.
func (db *DB) ExecuteSQL(ctx context.Context, query string, params any, opts ...ExecOption) (*Cursor, error) {
	const op = "api.ExecuteSQL"
	db.logger.Debug("execute sql", "sql", query, "params", params)

	o := execOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	inTx := db.InTransaction(ctx)
	commit := !inTx && !isSelect(query)
	if o.commit != nil {
		commit = *o.commit
	}

	q, err := sqlgen.Bind(query, params)
	if err != nil {
		return nil, err
	}
	conn, err := db.cursorConn(ctx)
	if err != nil {
		return nil, err
	}

	cur, err := db.run(ctx, conn, q)
	if err != nil {
		if db.autorollback && !inTx {
			if rbErr := db.Rollback(ctx); rbErr != nil {
				db.logger.Error("autorollback failed", "error", rbErr)
			}
		}
		return nil, db.wrap(op, err)
	}
	if commit && !inTx {
		if err := db.Commit(ctx); err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// ExecuteMany runs query once per parameter set and applies the commit
// policy once at the end. The returned cursor counts the affected rows of
// every run.
func (db *DB) ExecuteMany(ctx context.Context, query string, paramSets []any, opts ...ExecOption) (*Cursor, error) {
	const op = "api.ExecuteMany"
	if len(paramSets) == 0 {
		return nil, porm.NewError(porm.KindEmpty, op, "no parameter sets")
	}

	o := execOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	inTx := db.InTransaction(ctx)
	commit := !inTx && !isSelect(query)
	if o.commit != nil {
		commit = *o.commit
	}

	total := &Cursor{}
	for _, params := range paramSets {
		cur, err := db.ExecuteSQL(ctx, query, params, WithCommit(false))
		if err != nil {
			return nil, err
		}
		total.rowsAffected += cur.rowsAffected
		total.lastInsertID = cur.lastInsertID
	}
	if commit && !inTx {
		if err := db.Commit(ctx); err != nil {
			return nil, err
		}
	}
	return total, nil
}

// Begin opens the slot's connection when needed and starts a transaction.
func (db *DB) Begin(ctx context.Context) error {
	return db.control(ctx, "api.Begin", "BEGIN")
}

// Commit commits the slot's current transaction.
func (db *DB) Commit(ctx context.Context) error {
	return db.control(ctx, "api.Commit", "COMMIT")
}

// Rollback rolls back the slot's current transaction.
func (db *DB) Rollback(ctx context.Context) error {
	return db.control(ctx, "api.Rollback", "ROLLBACK")
}

func (db *DB) control(ctx context.Context, op, stmt string) error {
	conn, err := db.Connection(ctx)
	if err != nil {
		return err
	}
	db.logger.Debug("execute sql", "sql", stmt)
	_, err = db.run(ctx, conn, sqlgen.Query{SQL: stmt})
	return db.wrap(op, err)
}

func (db *DB) run(ctx context.Context, conn Conn, q sqlgen.Query) (*Cursor, error) {
	var cur *Cursor
	err := db.executeWithMiddleware(ctx, q.SQL, q.Args, func() error {
		var err error
		if returnsRows(q.SQL) {
			cur, err = queryRows(ctx, conn, q)
		} else {
			cur, err = execStmt(ctx, conn, q)
		}
		return err
	})
	return cur, err
}

// InTransaction reports whether the slot has an open transaction scope.
func (db *DB) InTransaction(ctx context.Context) bool {
	return db.state(ctx).depth() > 0
}

// TransactionDepth returns the number of open transaction and savepoint
// scopes of the slot.
func (db *DB) TransactionDepth(ctx context.Context) int {
	return db.state(ctx).depth()
}

// PushTransaction pushes s on the slot's scope stack.
func (db *DB) PushTransaction(ctx context.Context, s Scope) {
	db.state(ctx).push(s)
}

// PopTransaction pops the innermost scope of the slot.
func (db *DB) PopTransaction(ctx context.Context) (Scope, bool) {
	return db.state(ctx).pop()
}

// TopTransaction returns the innermost scope of the slot, or nil.
func (db *DB) TopTransaction(ctx context.Context) Scope {
	return db.state(ctx).top()
}

func isSelect(query string) bool {
	q := strings.TrimLeft(query, " \t\r\n(")
	return len(q) >= 6 && strings.EqualFold(q[:6], "select")
}

var rowKeywords = []string{"select", "show", "describe", "desc", "explain", "with", "values", "table"}

func returnsRows(query string) bool {
	q := strings.TrimLeft(query, " \t\r\n(")
	end := strings.IndexAny(q, " \t\r\n(;")
	if end < 0 {
		end = len(q)
	}
	word := strings.ToLower(q[:end])
	for _, kw := range rowKeywords {
		if word == kw {
			return true
		}
	}
	return false
}

func slotID(ctx context.Context) uint64 {
	if s, ok := SlotFrom(ctx); ok {
		return s.id
	}
	return 0
}
