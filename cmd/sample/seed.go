package main

import (
	"context"
	"database/sql"
	"fmt"
)

// seedSchema creates the demo tables.
func seedSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE departments (id BIGINT PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE employees (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			squad TEXT,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			salary DOUBLE,
			hired_at TIMESTAMP NOT NULL,
			dept_id BIGINT
		)`,
		`CREATE TABLE pr_events (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			actor_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			repo TEXT
		)`,
		`CREATE INDEX employees_squad_idx ON employees (squad)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("seed schema: %w", err)
		}
	}
	return nil
}

// seedDemoRows inserts the built-in dataset used when no CSV is given. Two
// organisations so the tenant scope is visible in results.
func seedDemoRows(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`INSERT INTO departments (id, name) VALUES (1, 'Engineering'), (2, 'Design')`,
		`INSERT INTO employees (id, org_id, name, squad, active, salary, hired_at, dept_id) VALUES
			(1, 42, 'Ada',   'core',  TRUE,  120000, '2024-01-15 09:00:00', 1),
			(2, 42, 'Grace', 'core',  TRUE,  130000, '2024-03-01 09:00:00', 1),
			(3, 42, 'Linus', 'infra', FALSE, 110000, '2023-11-20 09:00:00', 1),
			(4, 42, 'Mary',  'brand', TRUE,   95000, '2024-06-10 09:00:00', 2),
			(5, 77, 'Eve',   'core',  TRUE,  100000, '2024-02-02 09:00:00', 1)`,
		`INSERT INTO pr_events (id, org_id, actor_id, event_type, occurred_at, repo) VALUES
			(1, 42, 'ada',   'opened',   '2026-08-01 10:00:00', 'api'),
			(2, 42, 'ada',   'reviewed', '2026-08-01 11:00:00', 'api'),
			(3, 42, 'ada',   'merged',   '2026-08-01 12:00:00', 'api'),
			(4, 42, 'grace', 'opened',   '2026-08-02 10:00:00', 'web'),
			(5, 42, 'grace', 'closed',   '2026-08-02 15:00:00', 'web'),
			(6, 77, 'eve',   'opened',   '2026-08-03 10:00:00', 'api')`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("seed rows: %w", err)
		}
	}
	return nil
}
