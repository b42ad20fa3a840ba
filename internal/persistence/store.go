// Package persistence provides scoped, optionally transactional sessions over a PostgreSQL pool.
package persistence

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Acquirer hands out a connection for the lifetime of one session.
type Acquirer func(ctx context.Context) (Conn, error)

// Option configures a Store.
type Option func(*Store)

// WithTimeout bounds every session opened through WithSession.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

// WithLogger sets the logger used for session diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store opens sessions against a connection pool.
type Store struct {
	pool    *pgxpool.Pool
	acquire Acquirer
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a store backed by a pgx pool.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := NewWithAcquirer(func(ctx context.Context) (Conn, error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}

		return conn, nil
	}, opts...)
	s.pool = pool

	return s
}

// NewWithAcquirer creates a store that obtains connections from acquire.
func NewWithAcquirer(acquire Acquirer, opts ...Option) *Store {
	s := &Store{
		acquire: acquire,
		logger:  zap.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Open acquires a connection and, when transactional, begins a transaction.
// The caller must Close the returned session.
func (s *Store) Open(ctx context.Context, transactional bool) (*Session, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, &Error{Op: "acquire", Err: err}
	}

	sess := &Session{
		conn:          conn,
		transactional: transactional,
		logger:        s.logger,
	}

	if transactional {
		tx, err := conn.Begin(ctx)
		if err != nil {
			conn.Release()

			return nil, &Error{Op: "begin", Err: err}
		}

		sess.tx = tx
	}

	return sess, nil
}

// WithSession runs fn inside a session and releases it on every exit path.
// A transactional session commits only when fn returns nil, does not panic and
// no statement failed; otherwise it rolls back.
func (s *Store) WithSession(
	ctx context.Context,
	transactional bool,
	fn func(ctx context.Context, sess *Session) error,
) (err error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	sess, err := s.Open(ctx, transactional)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			sess.MarkErrored()
			_ = sess.Close(ctx)

			panic(p)
		}

		if err != nil {
			sess.MarkErrored()
		}

		if closeErr := sess.Close(ctx); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(ctx, sess)
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}

	return s.pool.Ping(ctx)
}

// Shutdown closes the underlying pool.
func (s *Store) Shutdown() error {
	if s.pool != nil {
		s.pool.Close()
	}

	return nil
}
