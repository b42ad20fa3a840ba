package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const terminateTimeout = 5 * time.Second

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Conn is the slice of a pooled connection a session needs.
type Conn interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
	Release()
}

// Result describes the outcome of a mutating statement.
type Result struct {
	RowsAffected int64
	insertedID   int64
	hasID        bool
}

// InsertedID returns the primary key produced by an INSERT ... RETURNING id.
func (r Result) InsertedID() (int64, bool) {
	return r.insertedID, r.hasID
}

// Session is a scoped unit of work over one pooled connection.
// Transactional sessions commit on Close unless marked errored; others auto-commit every statement.
type Session struct {
	conn          Conn
	tx            pgx.Tx
	transactional bool
	errored       bool
	closed        bool
	logger        *zap.Logger
}

// Transactional reports whether the session runs inside a transaction.
func (s *Session) Transactional() bool {
	return s.transactional
}

// Errored reports whether the session will roll back on Close.
func (s *Session) Errored() bool {
	return s.errored
}

// MarkErrored flags the session so Close rolls back.
func (s *Session) MarkErrored() {
	s.errored = true
}

// Execute runs a mutating statement. When the statement returns rows, the first
// column of the first row is reported as the inserted id.
func (s *Session) Execute(ctx context.Context, sql string, args ...any) (Result, error) {
	rows, err := s.query(ctx, "execute", sql, args...)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	var res Result

	if rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return Result{}, s.fail("execute", err)
		}

		if len(values) > 0 {
			res.insertedID, res.hasID = values[0].(int64)
		}
	}

	for rows.Next() {
	}

	rows.Close()

	if err := rows.Err(); err != nil {
		return Result{}, s.fail("execute", err)
	}

	res.RowsAffected = rows.CommandTag().RowsAffected()

	return res, nil
}

// FetchAll returns every row produced by the query.
func (s *Session) FetchAll(ctx context.Context, sql string, args ...any) ([]Row, error) {
	rows, err := s.query(ctx, "fetch all", sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := columnNames(rows)

	var result []Row

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, s.fail("fetch all", err)
		}

		result = append(result, NewRow(columns, values))
	}

	if err := rows.Err(); err != nil {
		return nil, s.fail("fetch all", err)
	}

	return result, nil
}

// FetchOne returns the first row produced by the query, or nil when there is none.
func (s *Session) FetchOne(ctx context.Context, sql string, args ...any) (*Row, error) {
	rows, err := s.query(ctx, "fetch one", sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := columnNames(rows)

	var row *Row

	if rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, s.fail("fetch one", err)
		}

		r := NewRow(columns, values)
		row = &r
	}

	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, s.fail("fetch one", err)
	}

	return row, nil
}

// FetchScalar returns the first column of the first row, or nil when there is none.
func (s *Session) FetchScalar(ctx context.Context, sql string, args ...any) (any, error) {
	row, err := s.FetchOne(ctx, sql, args...)
	if err != nil || row == nil {
		return nil, err
	}

	if len(row.values) == 0 {
		return nil, nil
	}

	return row.values[0], nil
}

// Close ends the transaction, if any, and returns the connection to the pool.
// Closing an already closed session is a no-op.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}

	s.closed = true
	defer s.conn.Release()

	if s.tx == nil {
		return nil
	}

	tx := s.tx
	s.tx = nil

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminateTimeout)
	defer cancel()

	if s.errored {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			return &Error{Op: "rollback", Err: err}
		}

		s.logger.Debug("session rolled back")

		return nil
	}

	if err := tx.Commit(ctx); err != nil {
		return &Error{Op: "commit", Err: err}
	}

	return nil
}

func (s *Session) query(ctx context.Context, op, sql string, args ...any) (pgx.Rows, error) {
	if s.closed {
		return nil, &Error{Op: op, Err: ErrSessionClosed}
	}

	var q querier = s.conn
	if s.tx != nil {
		q = s.tx
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, s.fail(op, err)
	}

	return rows, nil
}

func (s *Session) fail(op string, err error) error {
	s.errored = true

	s.logger.Debug("statement failed", zap.String("op", op), zap.Error(err))

	return &Error{Op: op, Err: err}
}

func columnNames(rows pgx.Rows) []string {
	fields := rows.FieldDescriptions()

	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}

	return names
}
