package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lychee-technology/prism"
)

// Executor runs compiled statements against the context's connection and
// assembles typed results. It is stateless and safe for concurrent use; the
// connection checkout is the only resource it holds, released on every exit
// path by the Rows.Close deferral.
type Executor struct {
	cfg *prism.Config
}

func NewExecutor(cfg *prism.Config) *Executor {
	if cfg == nil {
		cfg = prism.DefaultConfig()
	}
	return &Executor{cfg: cfg}
}

// Execute runs a tabular plan and coerces the columns the planner marked
// numeric. Parameters travel through the driver's binding API; the SQL text
// never carries user literals.
func (e *Executor) Execute(ctx context.Context, plan *prism.CompiledQuery, qctx *prism.QueryContext) (*prism.ResultSet, error) {
	if plan.Flow {
		return nil, prism.NewValidationError(prism.ErrKindFlowInvalidDimension,
			"flow plans must run through ExecuteFlow")
	}
	data, err := e.run(ctx, plan, qctx, func(cols []string, vals []any, numeric map[string]bool) (prism.Row, error) {
		row := make(prism.Row, len(cols))
		for i, col := range cols {
			v := vals[i]
			if numeric[col] && v != nil {
				coerced, cerr := CoerceMeasure(v)
				if cerr != nil {
					return nil, prism.NewExecutionError(prism.ErrKindDriverError,
						fmt.Sprintf("cannot coerce measure column '%s'", col), cerr).
						WithSQL(plan.SQL)
				}
				v = coerced
			}
			row[col] = v
		}
		return row, nil
	})
	if err != nil {
		return nil, err
	}
	return &prism.ResultSet{
		Data:       data,
		Annotation: plan.Annotation,
		Warnings:   plan.Warnings,
	}, nil
}

// ExecuteFlow runs a flow plan and splits the tagged rows into nodes and
// links.
func (e *Executor) ExecuteFlow(ctx context.Context, plan *prism.CompiledQuery, qctx *prism.QueryContext) (*prism.FlowResult, error) {
	if !plan.Flow {
		return nil, prism.NewValidationError(prism.ErrKindFlowInvalidDimension,
			"plan is not a flow query")
	}
	rows, err := e.run(ctx, plan, qctx, func(cols []string, vals []any, _ map[string]bool) (prism.Row, error) {
		row := make(prism.Row, len(cols))
		for i, col := range cols {
			row[col] = vals[i]
		}
		return row, nil
	})
	if err != nil {
		return nil, err
	}

	result := &prism.FlowResult{
		Nodes:    []prism.FlowNode{},
		Links:    []prism.FlowLink{},
		Warnings: plan.Warnings,
	}
	for _, row := range rows {
		switch asString(row["record_type"]) {
		case "node":
			layer, err := asNumber(row["layer"])
			if err != nil {
				return nil, malformedFlowRow("layer", err)
			}
			value, err := asNumber(row["value"])
			if err != nil {
				return nil, malformedFlowRow("value", err)
			}
			result.Nodes = append(result.Nodes, prism.FlowNode{
				ID:    asString(row["node_id"]),
				Name:  asString(row["node_name"]),
				Layer: int(layer),
				Value: value,
			})
		case "link":
			value, err := asNumber(row["value"])
			if err != nil {
				return nil, malformedFlowRow("value", err)
			}
			result.Links = append(result.Links, prism.FlowLink{
				Source: asString(row["source_id"]),
				Target: asString(row["target_id"]),
				Value:  value,
			})
		default:
			return nil, prism.NewExecutionError(prism.ErrKindEmptyResultMalformed,
				"flow row carries no record_type tag", nil).WithSQL(plan.SQL)
		}
	}
	return result, nil
}

type rowMapper func(cols []string, vals []any, numeric map[string]bool) (prism.Row, error)

// run executes the statement under the composed deadline, observing
// cancellation between rows so large result streams abort promptly.
func (e *Executor) run(ctx context.Context, plan *prism.CompiledQuery, qctx *prism.QueryContext, mapRow rowMapper) ([]prism.Row, error) {
	timeout := qctx.Timeout
	if timeout <= 0 {
		timeout = e.cfg.Query.DefaultTimeout
	}
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	started := time.Now()
	if e.cfg.Logging.LogSQL {
		zap.S().Debugw("executing statement",
			"queryId", qctx.QueryID, "sql", plan.SQL, "paramCount", len(plan.Params))
	}

	rows, err := qctx.Conn.Query(ctx, plan.SQL, plan.Params...)
	if err != nil {
		return nil, e.mapError(ctx, err, plan)
	}
	defer rows.Close()

	numeric := make(map[string]bool, len(plan.NumericFields))
	for _, f := range plan.NumericFields {
		numeric[f] = true
	}

	cols := rows.Columns()
	if len(cols) == 0 {
		return nil, prism.NewExecutionError(prism.ErrKindEmptyResultMalformed,
			"driver returned no result columns", nil).WithSQL(plan.SQL)
	}

	data := []prism.Row{}
	for rows.Next() {
		if ctx.Err() != nil {
			return nil, e.mapError(ctx, ctx.Err(), plan)
		}
		vals, verr := rows.Values()
		if verr != nil {
			return nil, e.mapError(ctx, verr, plan)
		}
		if len(vals) != len(cols) {
			return nil, prism.NewExecutionError(prism.ErrKindEmptyResultMalformed,
				fmt.Sprintf("driver returned %d values for %d columns", len(vals), len(cols)), nil).
				WithSQL(plan.SQL)
		}
		row, merr := mapRow(cols, vals, numeric)
		if merr != nil {
			return nil, merr
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, e.mapError(ctx, err, plan)
	}

	zap.S().Debugw("statement finished",
		"queryId", qctx.QueryID, "rows", len(data), "elapsed", time.Since(started))
	return data, nil
}

// mapError classifies a driver failure: deadline and cancellation map to
// their dedicated kinds, everything else wraps as a driver error carrying
// the SQL text and parameter count but never parameter values.
func (e *Executor) mapError(ctx context.Context, err error, plan *prism.CompiledQuery) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return prism.NewTimeoutError(err)
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return prism.NewCancelledError(err)
	default:
		return prism.NewDriverError(plan.SQL, len(plan.Params), err)
	}
}

func malformedFlowRow(col string, cause error) error {
	return prism.NewExecutionError(prism.ErrKindEmptyResultMalformed,
		fmt.Sprintf("flow row column '%s' is not numeric", col), cause)
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprintf("%v", s)
	}
}

func asNumber(v any) (float64, error) {
	coerced, err := CoerceMeasure(v)
	if err != nil {
		return 0, err
	}
	f, ok := coerced.(float64)
	if !ok {
		return 0, fmt.Errorf("value %v is not numeric", v)
	}
	return f, nil
}
