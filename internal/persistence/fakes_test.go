package persistence_test

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/serroba/turl/internal/persistence"
)

type fakeRows struct {
	pgx.Rows
	columns []string
	data    [][]any
	idx     int
	err     error
	tag     pgconn.CommandTag
	closed  bool
}

func (r *fakeRows) Next() bool {
	if r.idx < len(r.data) {
		r.idx++

		return true
	}

	return false
}

func (r *fakeRows) Values() ([]any, error) {
	return r.data[r.idx-1], nil
}

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	fields := make([]pgconn.FieldDescription, len(r.columns))
	for i, name := range r.columns {
		fields[i] = pgconn.FieldDescription{Name: name}
	}

	return fields
}

func (r *fakeRows) Err() error {
	return r.err
}

func (r *fakeRows) Close() {
	r.closed = true
}

func (r *fakeRows) CommandTag() pgconn.CommandTag {
	return r.tag
}

type fakeTx struct {
	pgx.Tx
	conn        *fakeConn
	commits     int
	rollbacks   int
	commitErr   error
	rollbackErr error
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.conn.Query(ctx, sql, args...)
}

func (t *fakeTx) Commit(_ context.Context) error {
	t.commits++

	return t.commitErr
}

func (t *fakeTx) Rollback(_ context.Context) error {
	t.rollbacks++

	return t.rollbackErr
}

type fakeConn struct {
	results   []*fakeRows
	queryErr  error
	beginErr  error
	commitErr error
	tx        *fakeTx
	queries   []string
	released  int
}

func (c *fakeConn) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	c.queries = append(c.queries, sql)

	if c.queryErr != nil {
		return nil, c.queryErr
	}

	if len(c.results) == 0 {
		return &fakeRows{tag: pgconn.NewCommandTag("SELECT 0")}, nil
	}

	rows := c.results[0]
	c.results = c.results[1:]

	return rows, nil
}

func (c *fakeConn) Begin(_ context.Context) (pgx.Tx, error) {
	if c.beginErr != nil {
		return nil, c.beginErr
	}

	c.tx = &fakeTx{conn: c, commitErr: c.commitErr}

	return c.tx, nil
}

func (c *fakeConn) Release() {
	c.released++
}

func newTestStore(conn *fakeConn, opts ...persistence.Option) *persistence.Store {
	return persistence.NewWithAcquirer(func(_ context.Context) (persistence.Conn, error) {
		return conn, nil
	}, opts...)
}
