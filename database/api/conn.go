package api

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"

	"github.com/satishbabariya/porm-go/query/sqlgen"
)

// Conn is one driver connection. *sql.Conn satisfies it.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PingContext(ctx context.Context) error
	Close() error
}

// Connector opens driver connections.
type Connector interface {
	Connect(ctx context.Context) (Conn, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context) (Conn, error)

// Connect calls f.
func (f ConnectorFunc) Connect(ctx context.Context) (Conn, error) {
	return f(ctx)
}

// DBConnector hands out a dedicated *sql.Conn from db for every slot, so a
// slot keeps the same session for its whole transaction.
func DBConnector(db *sql.DB) Connector {
	return ConnectorFunc(func(ctx context.Context) (Conn, error) {
		return db.Conn(ctx)
	})
}

// Slot identifies one connection state. Goroutines that use a DB
// concurrently must work on different slots.
type Slot struct {
	id uint64
}

// ID returns the slot number.
func (s *Slot) ID() uint64 {
	return s.id
}

type slotKey struct{}

var slotSeq atomic.Uint64

// WithSlot returns a context bound to a fresh slot.
func WithSlot(ctx context.Context) context.Context {
	return context.WithValue(ctx, slotKey{}, &Slot{id: slotSeq.Add(1)})
}

// SlotFrom returns the slot bound to ctx, if any.
func SlotFrom(ctx context.Context) (*Slot, bool) {
	s, ok := ctx.Value(slotKey{}).(*Slot)
	return s, ok
}

// Acquire binds ctx to a fresh slot when it has none and reports whether it
// did. The returned release rolls back and closes whatever a slot created
// here left open, then forgets it; for any other ctx it does nothing. A DB
// that is not thread safe returns ctx unchanged.
func (db *DB) Acquire(ctx context.Context) (context.Context, func(), bool) {
	if _, ok := SlotFrom(ctx); ok || !db.threadSafe {
		return ctx, func() {}, false
	}
	ctx = WithSlot(ctx)
	return ctx, func() { db.release(ctx) }, true
}

// connState is the connection, open flag and scope stacks of one slot. The
// default state is reachable from every goroutine, so all access goes
// through mu.
type connState struct {
	mu           sync.Mutex
	closed       bool
	conn         Conn
	scopes       []*Atomic
	transactions []Scope
}

func newConnState() *connState {
	s := &connState{}
	s.reset()
	return s
}

func (s *connState) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.conn = nil
	s.scopes = nil
	s.transactions = nil
}

func (s *connState) setConnection(conn Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
	s.closed = false
	s.scopes = nil
	s.transactions = nil
}

// current returns the connection and whether the state is closed.
func (s *connState) current() (Conn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn, s.closed
}

// replace swaps old for conn unless another caller already replaced it, and
// returns the connection that lost.
func (s *connState) replace(old, conn Conn) Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.conn != old {
		return conn
	}
	s.conn = conn
	return old
}

// detach resets the state and returns the connection it held, nil when
// closed, with the number of scopes that were still open.
func (s *connState) detach() (Conn, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var conn Conn
	if !s.closed {
		conn = s.conn
	}
	depth := len(s.transactions)
	s.closed = true
	s.conn = nil
	s.scopes = nil
	s.transactions = nil
	return conn, depth
}

func (s *connState) depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}

func (s *connState) push(scope Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, scope)
}

func (s *connState) pop() (Scope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.transactions)
	if n == 0 {
		return nil, false
	}
	scope := s.transactions[n-1]
	s.transactions = s.transactions[:n-1]
	return scope, true
}

func (s *connState) top() Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.transactions); n > 0 {
		return s.transactions[n-1]
	}
	return nil
}

func (s *connState) pushScope(a *Atomic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes = append(s.scopes, a)
}

// popScope pops the innermost Run scope and returns how many remain.
func (s *connState) popScope() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.scopes); n > 0 {
		s.scopes = s.scopes[:n-1]
	}
	return len(s.scopes)
}

// state returns the connection state for ctx. Contexts without a slot, and
// every context of a DB that is not thread safe, share the default state.
func (db *DB) state(ctx context.Context) *connState {
	if !db.threadSafe {
		return db.shared
	}
	slot, ok := SlotFrom(ctx)
	if !ok {
		return db.shared
	}
	if st, ok := db.states.Load(slot); ok {
		return st.(*connState)
	}
	st, _ := db.states.LoadOrStore(slot, newConnState())
	return st.(*connState)
}

// release forgets the state of the slot bound to ctx. A transaction the slot
// left open is rolled back and its connection closed, so the session never
// outlives the slot.
func (db *DB) release(ctx context.Context) {
	slot, ok := SlotFrom(ctx)
	if !ok {
		return
	}
	v, ok := db.states.LoadAndDelete(slot)
	if !ok {
		return
	}
	conn, depth := v.(*connState).detach()
	if conn == nil {
		return
	}
	if depth > 0 {
		db.logger.Warn("rolling back transaction left open", "slot", slot.id, "depth", depth)
		if _, err := db.run(ctx, conn, sqlgen.Query{SQL: "ROLLBACK"}); err != nil {
			db.logger.Error("rollback failed", "slot", slot.id, "error", err)
		}
	}
	if err := conn.Close(); err != nil {
		db.logger.Error("close failed", "slot", slot.id, "error", err)
	}
	db.logger.Debug("connection closed", "slot", slot.id)
}
