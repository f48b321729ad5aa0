package api

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	porm "github.com/satishbabariya/porm-go"
)

var okResult = sqlmock.NewResult(0, 0)

func newMockDB(t *testing.T, opts ...Option) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return New(DBConnector(sqlDB), opts...), mock
}

// fakeConn is a Conn whose ping result can be switched.
type fakeConn struct {
	pingErr error
	closed  bool
	execs   []string
}

func (c *fakeConn) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	c.execs = append(c.execs, query)
	return driver.RowsAffected(1), nil
}

func (c *fakeConn) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("not supported")
}

func (c *fakeConn) PingContext(context.Context) error { return c.pingErr }

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func countingConnector(conns *[]*fakeConn) Connector {
	var mu sync.Mutex
	return ConnectorFunc(func(context.Context) (Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		c := &fakeConn{}
		*conns = append(*conns, c)
		return c, nil
	})
}

func TestExecuteSQL_CommitPolicy(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := WithSlot(context.Background())

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO t (a) VALUES (?)")).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec("^COMMIT$").WillReturnResult(okResult)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT a, b FROM t WHERE 1=1 AND a=?")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"a", "b"}).AddRow(int64(1), []byte("x")))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM t")).WillReturnResult(sqlmock.NewResult(0, 3))

	cur, err := db.ExecuteSQL(ctx, "INSERT INTO t (a) VALUES (%(a)s)", map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(7), cur.LastInsertID())
	assert.Equal(t, int64(1), cur.RowsAffected())

	cur, err = db.ExecuteSQL(ctx, "SELECT a, b FROM t WHERE 1=1 AND a=%(fltr_a)s", map[string]any{"fltr_a": 1})
	require.NoError(t, err)
	assert.Equal(t, []Record{{"a": int64(1), "b": "x"}}, cur.Records())

	cur, err = db.ExecuteSQL(ctx, "DELETE FROM t", nil, WithCommit(false))
	require.NoError(t, err)
	assert.Equal(t, int64(3), cur.RowsAffected())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteSQL_Autorollback(t *testing.T) {
	db, mock := newMockDB(t, WithAutorollback(true))
	ctx := WithSlot(context.Background())
	boom := errors.New("boom")

	mock.ExpectExec("^UPDATE t").WillReturnError(boom)
	mock.ExpectExec("^ROLLBACK$").WillReturnResult(okResult)

	_, err := db.ExecuteSQL(ctx, "UPDATE t SET a=1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, porm.ErrDatabase)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteSQL_NoAutorollbackInTransaction(t *testing.T) {
	db, mock := newMockDB(t, WithAutorollback(true))
	ctx := WithSlot(context.Background())
	boom := errors.New("boom")

	mock.ExpectExec("^BEGIN$").WillReturnResult(okResult)
	mock.ExpectExec("^UPDATE t").WillReturnError(boom)
	mock.ExpectExec("^ROLLBACK$").WillReturnResult(okResult)

	err := db.Transaction(ctx, func(ctx context.Context) error {
		_, err := db.ExecuteSQL(ctx, "UPDATE t SET a=1", nil)
		return err
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteSQL_BindErrors(t *testing.T) {
	db, _ := newMockDB(t)
	_, err := db.ExecuteSQL(WithSlot(context.Background()), "SELECT %(a)s", map[string]any{})
	assert.True(t, porm.IsEmpty(err))
}

func TestExecuteSQL_NoAutoconnect(t *testing.T) {
	db, _ := newMockDB(t, WithAutoconnect(false))
	_, err := db.ExecuteSQL(WithSlot(context.Background()), "SELECT 1", nil)
	assert.True(t, porm.IsInterface(err))
}

func TestExecuteMany(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := WithSlot(context.Background())

	insert := regexp.QuoteMeta("INSERT INTO t (a) VALUES (?)")
	mock.ExpectExec(insert).WithArgs(1).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insert).WithArgs(2).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("^COMMIT$").WillReturnResult(okResult)

	cur, err := db.ExecuteMany(ctx, "INSERT INTO t (a) VALUES (%(a)s)", []any{
		map[string]any{"a": 1},
		map[string]any{"a": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), cur.RowsAffected())
	assert.Equal(t, int64(2), cur.LastInsertID())
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = db.ExecuteMany(ctx, "INSERT INTO t (a) VALUES (%(a)s)", nil)
	assert.True(t, porm.IsEmpty(err))
}

func TestConnectLifecycle(t *testing.T) {
	var conns []*fakeConn
	db := New(countingConnector(&conns))
	ctx := WithSlot(context.Background())

	assert.True(t, db.IsClosed(ctx))

	opened, err := db.Connect(ctx, false)
	require.NoError(t, err)
	assert.True(t, opened)
	assert.False(t, db.IsClosed(ctx))

	_, err = db.Connect(ctx, false)
	assert.True(t, porm.IsOperational(err))

	opened, err = db.Connect(ctx, true)
	require.NoError(t, err)
	assert.False(t, opened)

	wasOpen, err := db.Close(ctx)
	require.NoError(t, err)
	assert.True(t, wasOpen)
	assert.True(t, conns[0].closed)

	wasOpen, err = db.Close(ctx)
	require.NoError(t, err)
	assert.False(t, wasOpen)
	assert.Len(t, conns, 1)
}

func TestDeferred(t *testing.T) {
	db := New(nil)
	ctx := WithSlot(context.Background())

	_, err := db.Connect(ctx, false)
	assert.True(t, porm.IsInterface(err))
	_, err = db.Close(ctx)
	assert.True(t, porm.IsInterface(err))

	var conns []*fakeConn
	require.NoError(t, db.Init(ctx, countingConnector(&conns)))
	_, err = db.Connect(ctx, false)
	require.NoError(t, err)

	require.NoError(t, db.Init(ctx, nil))
	assert.True(t, conns[0].closed)
	assert.True(t, db.IsClosed(ctx))
}

func TestIsClosed_Reconnects(t *testing.T) {
	var conns []*fakeConn
	db := New(countingConnector(&conns))
	ctx := WithSlot(context.Background())

	_, err := db.Connect(ctx, false)
	require.NoError(t, err)

	conns[0].pingErr = errors.New("server has gone away")
	assert.False(t, db.IsClosed(ctx))
	require.Len(t, conns, 2)
	assert.True(t, conns[0].closed)

	conn, err := db.Connection(ctx)
	require.NoError(t, err)
	assert.Same(t, conns[1], conn)
}

func TestSlotsAreIndependent(t *testing.T) {
	var conns []*fakeConn
	db := New(countingConnector(&conns))
	a := WithSlot(context.Background())
	b := WithSlot(context.Background())

	_, err := db.Connect(a, false)
	require.NoError(t, err)
	_, err = db.Connect(b, false)
	require.NoError(t, err)
	assert.Len(t, conns, 2)
	assert.NotEqual(t, mustSlot(t, a).ID(), mustSlot(t, b).ID())

	shared := New(countingConnector(&conns), WithThreadSafe(false))
	_, err = shared.Connect(a, false)
	require.NoError(t, err)
	_, err = shared.Connect(b, false)
	assert.True(t, porm.IsOperational(err))
}

func mustSlot(t *testing.T, ctx context.Context) *Slot {
	t.Helper()
	s, ok := SlotFrom(ctx)
	require.True(t, ok)
	return s
}

func TestCloseInTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := WithSlot(context.Background())

	mock.ExpectExec("^BEGIN$").WillReturnResult(okResult)
	mock.ExpectExec("^COMMIT$").WillReturnResult(okResult)

	_, err := db.SessionStart(ctx)
	require.NoError(t, err)
	require.True(t, db.InTransaction(ctx))

	_, err = db.Close(ctx)
	assert.True(t, porm.IsOperational(err))
	assert.False(t, db.IsClosed(ctx))

	committed, err := db.SessionCommit(ctx)
	require.NoError(t, err)
	assert.True(t, committed)
	assert.False(t, db.InTransaction(ctx))

	wasOpen, err := db.Close(ctx)
	require.NoError(t, err)
	assert.True(t, wasOpen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var timed []string
	var failed []string
	db, mock := newMockDB(t,
		WithMiddleware(LoggingMiddleware(logger)),
		WithMiddleware(TimingMiddleware(func(q string, d time.Duration) { timed = append(timed, q) })),
	)
	db.Use(ErrorMiddleware(func(q string, err error) { failed = append(failed, q) }))
	ctx := WithSlot(context.Background())

	mock.ExpectQuery("^SELECT 1$").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(int64(1)))
	mock.ExpectQuery("^SELECT 2$").WillReturnError(errors.New("boom"))

	_, err := db.ExecuteSQL(ctx, "SELECT 1", nil)
	require.NoError(t, err)
	_, err = db.ExecuteSQL(ctx, "SELECT 2", nil)
	require.Error(t, err)

	assert.Equal(t, []string{"SELECT 1", "SELECT 2"}, timed)
	assert.Equal(t, []string{"SELECT 2"}, failed)
	assert.Contains(t, buf.String(), "query completed")
	assert.Contains(t, buf.String(), "query failed")
}

func TestStatementKinds(t *testing.T) {
	assert.True(t, isSelect("  select * from t"))
	assert.True(t, isSelect("(SELECT 1)"))
	assert.False(t, isSelect("INSERT INTO t VALUES (1)"))
	assert.False(t, isSelect("sel"))

	assert.True(t, returnsRows("SHOW VARIABLES"))
	assert.True(t, returnsRows("with x as (select 1) select * from x"))
	assert.True(t, returnsRows("SELECT"))
	assert.False(t, returnsRows("SAVEPOINT `s1`;"))
	assert.False(t, returnsRows("selection"))
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, porm.KindInterface, ClassifyError(sql.ErrConnDone))
	assert.Equal(t, porm.KindInterface, ClassifyError(driver.ErrBadConn))
	assert.Equal(t, porm.KindOperational, ClassifyError(sql.ErrTxDone))
	assert.Equal(t, porm.KindDatabase, ClassifyError(errors.New("x")))
}
