package internal

import (
	"context"
	"database/sql"

	"github.com/lychee-technology/prism"
)

// SQLConnection adapts a database/sql handle to the Connection interface.
// It serves the mysql, singlestore, sqlite and duckdb paths; postgres goes
// through PgxConnection.
type SQLConnection struct {
	db      *sql.DB
	dialect prism.Dialect
}

func NewSQLConnection(db *sql.DB, dialect prism.Dialect) *SQLConnection {
	return &SQLConnection{db: db, dialect: dialect}
}

func (c *SQLConnection) Dialect() prism.Dialect { return c.dialect }

func (c *SQLConnection) Query(ctx context.Context, sqlText string, args ...any) (prism.Rows, error) {
	rows, err := c.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	return &sqlRows{rows: rows, cols: cols}, nil
}

type sqlRows struct {
	rows *sql.Rows
	cols []string
}

func (r *sqlRows) Columns() []string { return r.cols }
func (r *sqlRows) Next() bool        { return r.rows.Next() }

func (r *sqlRows) Values() ([]any, error) {
	vals := make([]any, len(r.cols))
	ptrs := make([]any, len(r.cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return vals, nil
}

func (r *sqlRows) Err() error { return r.rows.Err() }
func (r *sqlRows) Close()     { r.rows.Close() }
