package internal

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/lychee-technology/prism"
)

// PgxQuerier is the slice of the pgx API the engine needs. *pgxpool.Pool
// satisfies it, as do the pgxmock pools used in tests.
type PgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PgxConnection adapts a pgx pool (or a single conn) to the Connection
// interface.
type PgxConnection struct {
	q PgxQuerier
}

func NewPgxConnection(q PgxQuerier) *PgxConnection {
	return &PgxConnection{q: q}
}

func (c *PgxConnection) Dialect() prism.Dialect { return prism.DialectPostgres }

func (c *PgxConnection) Query(ctx context.Context, sqlText string, args ...any) (prism.Rows, error) {
	rows, err := c.q.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	fds := rows.FieldDescriptions()
	cols := make([]string, len(fds))
	for i, fd := range fds {
		cols[i] = fd.Name
	}
	return &pgxRows{rows: rows, cols: cols}, nil
}

type pgxRows struct {
	rows pgx.Rows
	cols []string
}

func (r *pgxRows) Columns() []string      { return r.cols }
func (r *pgxRows) Next() bool             { return r.rows.Next() }
func (r *pgxRows) Values() ([]any, error) { return r.rows.Values() }
func (r *pgxRows) Err() error             { return r.rows.Err() }
func (r *pgxRows) Close()                 { r.rows.Close() }
