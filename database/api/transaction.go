package api

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// Scope is an entry of the transaction stack.
type Scope interface {
	// Enter opens the scope.
	Enter(ctx context.Context) error
	// Exit closes the scope. A non-nil err rolls the scope back and is
	// returned; otherwise the scope is committed.
	Exit(ctx context.Context, err error) error
	// Commit commits the scope, reopening it when begin is set.
	Commit(ctx context.Context, begin bool) error
	// Rollback rolls the scope back, reopening it when begin is set.
	Rollback(ctx context.Context, begin bool) error
}

// Transaction is a real transaction. Only the outermost one issues BEGIN,
// and only the scope that closes the last level commits.
type Transaction struct {
	db *DB
}

// NewTransaction returns a transaction scope.
func (db *DB) NewTransaction() *Transaction {
	return &Transaction{db: db}
}

func (t *Transaction) begin(ctx context.Context) error {
	return t.db.Begin(ctx)
}

// Commit commits the transaction and, with begin, starts a new one.
func (t *Transaction) Commit(ctx context.Context, begin bool) error {
	if err := t.db.Commit(ctx); err != nil {
		return err
	}
	if begin {
		return t.begin(ctx)
	}
	return nil
}

// Rollback rolls the transaction back and, with begin, starts a new one.
func (t *Transaction) Rollback(ctx context.Context, begin bool) error {
	if err := t.db.Rollback(ctx); err != nil {
		return err
	}
	if begin {
		return t.begin(ctx)
	}
	return nil
}

// Enter begins the transaction when no other scope is open and pushes it.
func (t *Transaction) Enter(ctx context.Context) error {
	if t.db.TransactionDepth(ctx) == 0 {
		if err := t.begin(ctx); err != nil {
			return err
		}
	}
	t.db.PushTransaction(ctx, t)
	return nil
}

// Exit rolls back on err, commits when this is the last open scope, and
// pops the transaction in every case. When the commit fails the transaction
// is rolled back and the commit error returned.
func (t *Transaction) Exit(ctx context.Context, err error) error {
	defer t.db.PopTransaction(ctx)

	if err != nil {
		if rbErr := t.Rollback(ctx, false); rbErr != nil {
			t.db.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}
	if t.db.TransactionDepth(ctx) == 1 {
		if cerr := t.Commit(ctx, false); cerr != nil {
			if rbErr := t.Rollback(ctx, false); rbErr != nil {
				return multierror.Append(cerr, rbErr)
			}
			return cerr
		}
	}
	return nil
}

// Savepoint is a named, revertible point inside a transaction.
type Savepoint struct {
	db     *DB
	id     string
	quoted string
}

// NewSavepoint returns a savepoint scope. An empty id generates a unique one.
func (db *DB) NewSavepoint(id string) *Savepoint {
	if id == "" {
		u := uuid.New()
		id = "s" + hex.EncodeToString(u[:])
	}
	return &Savepoint{db: db, id: id, quoted: db.quote + id + db.quote}
}

// ID returns the savepoint identifier.
func (s *Savepoint) ID() string {
	return s.id
}

func (s *Savepoint) exec(ctx context.Context, stmt string) error {
	_, err := s.db.ExecuteSQL(ctx, fmt.Sprintf(stmt, s.quoted), nil, WithCommit(false))
	return err
}

func (s *Savepoint) begin(ctx context.Context) error {
	return s.exec(ctx, "SAVEPOINT %s;")
}

// Commit releases the savepoint and, with begin, sets it again.
func (s *Savepoint) Commit(ctx context.Context, begin bool) error {
	if err := s.exec(ctx, "RELEASE SAVEPOINT %s;"); err != nil {
		return err
	}
	if begin {
		return s.begin(ctx)
	}
	return nil
}

// Rollback rolls back to the savepoint. The savepoint survives a rollback
// to it, so begin has nothing to reopen.
func (s *Savepoint) Rollback(ctx context.Context, begin bool) error {
	return s.exec(ctx, "ROLLBACK TO SAVEPOINT %s;")
}

// Enter sets the savepoint and pushes it.
func (s *Savepoint) Enter(ctx context.Context) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	s.db.PushTransaction(ctx, s)
	return nil
}

// Exit rolls back to the savepoint on err and releases it otherwise. The
// enclosing transaction stays open either way.
func (s *Savepoint) Exit(ctx context.Context, err error) error {
	defer s.db.PopTransaction(ctx)

	if err != nil {
		if rbErr := s.Rollback(ctx, false); rbErr != nil {
			s.db.logger.Error("rollback to savepoint failed", "savepoint", s.id, "error", rbErr)
		}
		return err
	}
	if cerr := s.Commit(ctx, false); cerr != nil {
		if rbErr := s.Rollback(ctx, false); rbErr != nil {
			return multierror.Append(cerr, rbErr)
		}
		return cerr
	}
	return nil
}

// Atomic is a transaction at depth zero and a savepoint below it.
type Atomic struct {
	db     *DB
	helper Scope
}

// NewAtomic returns an atomic scope.
func (db *DB) NewAtomic() *Atomic {
	return &Atomic{db: db}
}

// Enter opens a transaction or a savepoint depending on the current depth.
func (a *Atomic) Enter(ctx context.Context) error {
	if a.db.TransactionDepth(ctx) == 0 {
		a.helper = a.db.NewTransaction()
	} else {
		a.helper = a.db.NewSavepoint("")
	}
	return a.helper.Enter(ctx)
}

// Exit closes the scope opened by Enter.
func (a *Atomic) Exit(ctx context.Context, err error) error {
	return a.helper.Exit(ctx, err)
}

// Commit commits the scope opened by Enter.
func (a *Atomic) Commit(ctx context.Context, begin bool) error {
	return a.helper.Commit(ctx, begin)
}

// Rollback rolls back the scope opened by Enter.
func (a *Atomic) Rollback(ctx context.Context, begin bool) error {
	return a.helper.Rollback(ctx, begin)
}

// Transaction runs fn inside a transaction scope. A context without a slot
// gets a fresh one for the call; its connection is closed afterwards.
func (db *DB) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.scoped(ctx, db.NewTransaction(), fn)
}

// Savepoint runs fn inside a savepoint scope.
func (db *DB) Savepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.scoped(ctx, db.NewSavepoint(""), fn)
}

// Atomic runs fn inside a transaction, or a savepoint when one is already open.
func (db *DB) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.scoped(ctx, db.NewAtomic(), fn)
}

func (db *DB) scoped(ctx context.Context, s Scope, fn func(ctx context.Context) error) error {
	ctx, release, _ := db.Acquire(ctx)
	defer release()
	return runScope(ctx, s, fn)
}

// runScope enters s, runs fn and exits s with fn's error. A panic rolls the
// scope back and is re-raised.
func runScope(ctx context.Context, s Scope, fn func(ctx context.Context) error) error {
	if err := s.Enter(ctx); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = s.Exit(ctx, fmt.Errorf("panic: %v", p))
			panic(p)
		}
	}()

	return s.Exit(ctx, fn(ctx))
}

// Run opens the connection when needed and runs fn inside an atomic scope.
// A context without a slot gets a fresh one for the duration of the call.
// When the last Run scope of the slot exits the connection is closed. If a
// session transaction is still open at that point Close fails; a slot
// created here is then rolled back and closed anyway.
func (db *DB) Run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	const op = "api.Run"
	ctx, release, _ := db.Acquire(ctx)
	defer release()

	if db.IsClosed(ctx) {
		if _, err := db.Connect(ctx, false); err != nil {
			return err
		}
	}

	st := db.state(ctx)
	scope := db.NewAtomic()
	st.pushScope(scope)

	defer func() {
		if st.popScope() > 0 {
			return
		}
		if _, cerr := db.Close(ctx); cerr != nil {
			if err == nil {
				err = cerr
			} else {
				db.logger.Error("close failed", "op", op, "error", cerr)
			}
		}
	}()

	return runScope(ctx, scope, fn)
}

// SessionStart begins a transaction that is finished by SessionCommit or
// SessionRollback.
func (db *DB) SessionStart(ctx context.Context) (*Transaction, error) {
	t := db.NewTransaction()
	if err := t.Enter(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// SessionCommit pops the innermost scope and commits it, beginning a new
// transaction when outer scopes remain. It reports false when no scope was
// open.
func (db *DB) SessionCommit(ctx context.Context) (bool, error) {
	s, ok := db.PopTransaction(ctx)
	if !ok {
		return false, nil
	}
	return true, s.Commit(ctx, db.InTransaction(ctx))
}

// SessionRollback pops the innermost scope and rolls it back, beginning a
// new transaction when outer scopes remain. It reports false when no scope
// was open.
func (db *DB) SessionRollback(ctx context.Context) (bool, error) {
	s, ok := db.PopTransaction(ctx)
	if !ok {
		return false, nil
	}
	return true, s.Rollback(ctx, db.InTransaction(ctx))
}
