package internal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lychee-technology/prism"
)

// Engine wires the planner and executor behind the public Engine interface.
type Engine struct {
	reg     *prism.CubeRegistry
	cfg     *prism.Config
	planner *Planner
	exec    *Executor
}

func NewEngine(reg *prism.CubeRegistry, cfg *prism.Config) *Engine {
	if cfg == nil {
		cfg = prism.DefaultConfig()
	}
	return &Engine{
		reg:     reg,
		cfg:     cfg,
		planner: NewPlanner(reg, cfg),
		exec:    NewExecutor(cfg),
	}
}

func (e *Engine) Metadata() []prism.CubeDescriptor {
	return e.reg.Metadata()
}

func (e *Engine) Compile(ctx context.Context, q *prism.SemanticQuery, qctx *prism.QueryContext) (*prism.CompiledQuery, error) {
	ensureQueryID(qctx)
	started := time.Now()
	plan, err := e.planner.Compile(q, qctx)
	EmitQueryLatency(ctx, "plan", time.Since(started).Milliseconds())
	if err != nil {
		EmitQueryError(ctx, prism.ErrorKind(err))
		zap.S().Debugw("query planning failed", "queryId", qctx.QueryID, "err", err)
		return nil, err
	}
	zap.S().Debugw("query planned",
		"queryId", qctx.QueryID, "paramCount", len(plan.Params), "warnings", len(plan.Warnings))
	return plan, nil
}

// DryRun is planner output under the executor's contract: no execution.
func (e *Engine) DryRun(ctx context.Context, q *prism.SemanticQuery, qctx *prism.QueryContext) (*prism.CompiledQuery, error) {
	return e.Compile(ctx, q, qctx)
}

func (e *Engine) Execute(ctx context.Context, q *prism.SemanticQuery, qctx *prism.QueryContext) (*prism.ResultSet, error) {
	plan, err := e.Compile(ctx, q, qctx)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	rs, err := e.exec.Execute(ctx, plan, qctx)
	EmitQueryLatency(ctx, "execute", time.Since(started).Milliseconds())
	if err != nil {
		EmitQueryError(ctx, prism.ErrorKind(err))
		return nil, err
	}
	EmitRowCount(ctx, string(qctx.Conn.Dialect()), int64(len(rs.Data)))
	return rs, nil
}

func (e *Engine) ExecuteFlow(ctx context.Context, q *prism.SemanticQuery, qctx *prism.QueryContext) (*prism.FlowResult, error) {
	plan, err := e.Compile(ctx, q, qctx)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	fr, err := e.exec.ExecuteFlow(ctx, plan, qctx)
	EmitQueryLatency(ctx, "execute", time.Since(started).Milliseconds())
	if err != nil {
		EmitQueryError(ctx, prism.ErrorKind(err))
		return nil, err
	}
	return fr, nil
}

func (e *Engine) Explain(ctx context.Context, q *prism.SemanticQuery, qctx *prism.QueryContext, analyze bool) (*prism.ExplainResult, error) {
	plan, err := e.Compile(ctx, q, qctx)
	if err != nil {
		return nil, err
	}
	return e.exec.Explain(ctx, plan, qctx, analyze)
}

func (e *Engine) TableIndexes(ctx context.Context, qctx *prism.QueryContext, tables []string) ([]prism.IndexInfo, error) {
	ensureQueryID(qctx)
	return e.exec.TableIndexes(ctx, qctx, tables)
}

func (e *Engine) DistinctValues(ctx context.Context, member string, qctx *prism.QueryContext, limit int) ([]any, error) {
	ensureQueryID(qctx)
	plan, err := e.planner.CompileDistinctValues(member, qctx, limit)
	if err != nil {
		EmitQueryError(ctx, prism.ErrorKind(err))
		return nil, err
	}
	_, rows, err := e.exec.runRaw(ctx, plan.SQL, plan.Params, qctx)
	if err != nil {
		EmitQueryError(ctx, prism.ErrorKind(err))
		return nil, err
	}
	values := make([]any, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 {
			values = append(values, row[0])
		}
	}
	return values, nil
}

func ensureQueryID(qctx *prism.QueryContext) {
	if qctx != nil && qctx.QueryID == "" {
		qctx.QueryID = uuid.NewString()
	}
}
