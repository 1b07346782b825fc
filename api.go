package prism

import "context"

// Engine is the boundary the embedder (typically an HTTP facade) consumes.
// Implementations are safe for concurrent use; each call is one independent
// query pipeline bounded by the context's connection checkout.
//
// The concrete engine lives in the factory package:
//
//	eng, err := factory.NewEngine(registry, config)
type Engine interface {
	// Metadata returns descriptors of every registered cube: dimensions
	// with types, measures with types, hierarchies, and relationships.
	Metadata() []CubeDescriptor

	// Compile plans the query without executing it, returning the SQL,
	// parameters, numeric-field list and warnings.
	Compile(ctx context.Context, q *SemanticQuery, qctx *QueryContext) (*CompiledQuery, error)

	// DryRun is Compile under the executor's contract: planner output,
	// no execution.
	DryRun(ctx context.Context, q *SemanticQuery, qctx *QueryContext) (*CompiledQuery, error)

	// Execute plans and runs a tabular query. Flow queries must go
	// through ExecuteFlow.
	Execute(ctx context.Context, q *SemanticQuery, qctx *QueryContext) (*ResultSet, error)

	// ExecuteFlow plans and runs a flow query, assembling the tagged
	// node/link rows into a FlowResult.
	ExecuteFlow(ctx context.Context, q *SemanticQuery, qctx *QueryContext) (*FlowResult, error)

	// Explain runs the dialect's EXPLAIN (optionally ANALYZE) over the
	// compiled statement and normalises the output.
	Explain(ctx context.Context, q *SemanticQuery, qctx *QueryContext, analyze bool) (*ExplainResult, error)

	// TableIndexes lists existing indexes for the given tables from the
	// engine's system catalog.
	TableIndexes(ctx context.Context, qctx *QueryContext, tables []string) ([]IndexInfo, error)

	// DistinctValues returns the ordered distinct non-null values of a
	// cube-qualified dimension, capped at limit.
	DistinctValues(ctx context.Context, member string, qctx *QueryContext, limit int) ([]any, error)
}
