package ordersync

import (
	"context"
	"database/sql"
	"errors"
)

// Tx is the part of *sql.Tx the engine uses.
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Commit() error
	Rollback() error
}

// Session is a transactional database handle.
type Session interface {
	Begin(ctx context.Context, opts *sql.TxOptions) (Tx, error)
	Close() error
}

// SessionProvider opens new sessions.
type SessionProvider interface {
	Session(ctx context.Context) (Session, error)
}

var ErrNoSession = errors.New("ordersync: no session source")

// Source tells the engine where its session comes from and whether it owns
// it. Build one with Own or Borrow.
type Source struct {
	provider SessionProvider
	session  Session
	owned    bool
}

// Own makes the engine open a fresh session from p for every call and close
// it afterwards, on success and failure alike.
func Own(p SessionProvider) Source {
	return Source{provider: p, owned: true}
}

// Borrow makes the engine run every call on s. The engine still rolls back
// its own transaction on failure but never closes s.
func Borrow(s Session) Source {
	return Source{session: s}
}

func (s Source) Owned() bool {
	return s.owned
}

// acquire returns the session for one call and the function that releases it.
func (s Source) acquire(ctx context.Context) (Session, func() error, error) {
	if s.owned {
		if s.provider == nil {
			return nil, nil, ErrNoSession
		}
		sess, err := s.provider.Session(ctx)
		if err != nil {
			return nil, nil, err
		}
		return sess, sess.Close, nil
	}

	if s.session == nil {
		return nil, nil, ErrNoSession
	}
	return s.session, func() error { return nil }, nil
}

// DBSession adapts a *sql.DB or *sql.Conn to Session. Closing it closes the
// underlying handle.
type DBSession struct {
	db interface {
		BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
		Close() error
	}
}

func NewDBSession(db *sql.DB) *DBSession {
	return &DBSession{db: db}
}

func NewConnSession(conn *sql.Conn) *DBSession {
	return &DBSession{db: conn}
}

func (s *DBSession) Begin(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *DBSession) Close() error {
	return s.db.Close()
}
