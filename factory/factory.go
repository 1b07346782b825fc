// Package factory assembles the concrete engine behind the prism.Engine
// interface. It is the only package an embedder needs besides the root.
package factory

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lychee-technology/prism"
	"github.com/lychee-technology/prism/internal"
)

// NewEngine creates an engine over a frozen cube registry.
//
// Usage:
//
//	registry := prism.NewCubeRegistry()
//	registry.Register(employeesCube)
//	registry.Register(departmentsCube)
//	if err := registry.Freeze(); err != nil {
//	    // handle error
//	}
//	eng, err := factory.NewEngine(registry, prism.DefaultConfig())
//
// Connections are injected per query through the QueryContext; the engine
// never owns a pool.
func NewEngine(registry *prism.CubeRegistry, config *prism.Config) (prism.Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("cube registry is required")
	}
	if !registry.Frozen() {
		if err := registry.Freeze(); err != nil {
			return nil, fmt.Errorf("freeze cube registry: %w", err)
		}
	}
	if err := internal.ValidateCalculatedMeasures(registry); err != nil {
		return nil, fmt.Errorf("validate calculated measures: %w", err)
	}
	if config == nil {
		config = prism.DefaultConfig()
	}
	return internal.NewEngine(registry, config), nil
}

// NewPostgresConnection wraps a pgx pool as the per-query connection handle.
func NewPostgresConnection(pool *pgxpool.Pool) prism.Connection {
	return internal.NewPgxConnection(pool)
}

// NewDuckDBConnection opens an embedded DuckDB database and returns its
// connection handle plus a close func.
func NewDuckDBConnection(cfg prism.DuckDBConfig) (prism.Connection, func() error, error) {
	client, err := internal.NewDuckDBClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	return client.Connection(), client.Close, nil
}
