// Package e2e_harness holds lightweight runners for the databases the
// end-to-end tests query against: a disposable Postgres container and an
// embedded DuckDB instance.
package e2e_harness

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lychee-technology/prism"
	"github.com/lychee-technology/prism/internal"
)

// TestHarness manages the external dependencies of the E2E suite.
type TestHarness struct {
	PGContainer testcontainers.Container
	PGDSN       string
	PGDB        *sql.DB
	Duck        *internal.DuckDBClient
}

// StartPostgres starts a postgres container and returns its DSN once the
// server accepts connections. Caller is responsible for StopPostgres.
func (h *TestHarness) StartPostgres(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_USER":     "postgres",
			"POSTGRES_DB":       "postgres",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", err
	}
	h.PGContainer = container

	host, err := container.Host(ctx)
	if err != nil {
		return "", err
	}
	mapped, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", err
	}
	dsn := fmt.Sprintf("postgres://postgres:password@%s:%s/postgres?sslmode=disable", host, mapped.Port())
	h.PGDSN = dsn

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return "", err
	}
	deadline := time.Now().Add(20 * time.Second)
	for {
		if err := db.PingContext(ctx); err == nil {
			h.PGDB = db
			return dsn, nil
		}
		if time.Now().After(deadline) {
			db.Close()
			return "", fmt.Errorf("postgres did not become ready: %w", err)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// StopPostgres stops the Postgres container and closes the DB handle.
func (h *TestHarness) StopPostgres(ctx context.Context) error {
	if h.PGDB != nil {
		h.PGDB.Close()
		h.PGDB = nil
	}
	if h.PGContainer != nil {
		if err := h.PGContainer.Terminate(ctx); err != nil {
			return err
		}
		h.PGContainer = nil
	}
	return nil
}

// StartDuckDB opens an embedded DuckDB client, reusing NewDuckDBClient from
// internal/duckdb_conn.go.
func (h *TestHarness) StartDuckDB(cfg prism.DuckDBConfig) error {
	c, err := internal.NewDuckDBClient(cfg)
	if err != nil {
		return err
	}
	h.Duck = c
	return nil
}

// StopDuckDB closes the duckdb client.
func (h *TestHarness) StopDuckDB() error {
	if h.Duck != nil {
		if err := h.Duck.Close(); err != nil {
			return err
		}
		h.Duck = nil
	}
	return nil
}

// SeedEmployees creates and fills the schema the E2E semantic-layer tests
// query: employees with departments plus a pull-request event stream.
func (h *TestHarness) SeedEmployees(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE departments (id BIGINT PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE employees (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			squad TEXT,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			salary NUMERIC,
			hired_at TIMESTAMP NOT NULL,
			dept_id BIGINT REFERENCES departments(id)
		)`,
		`CREATE TABLE pr_events (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			actor_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			repo TEXT
		)`,
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
			return fmt.Errorf("seed: %w", err)
		}
	}
	return nil
}
