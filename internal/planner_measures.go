package internal

import (
	"fmt"
	"strings"

	"github.com/lychee-technology/prism"
)

// ensureAgg adds an aggregate column for the measure if it is not already
// projected and returns its alias. Hidden columns (dependencies of
// calculated/window measures) reuse the same path.
func (c *compileCtx) ensureAgg(cube *prism.Cube, name string, m prism.Measure) (string, error) {
	alias := cube.Name + "." + name
	if _, ok := c.aggIndex[alias]; ok {
		return alias, nil
	}
	expr, err := c.aggregateExpr(cube, m)
	if err != nil {
		return "", err
	}
	c.aggIndex[alias] = len(c.aggs)
	c.aggs = append(c.aggs, aggCol{alias: alias, expr: expr, measure: m})
	return alias, nil
}

// aggregateExpr builds the aggregate SQL for a simple or statistical
// measure, folding row-level measure filters in via FILTER (WHERE ...) when
// the dialect has it, else a CASE inside the aggregate. Both forms produce
// identical counts.
func (c *compileCtx) aggregateExpr(cube *prism.Cube, m prism.Measure) (fragment, error) {
	var operand fragment
	if m.SQL.SQL != "" {
		var err error
		operand, err = resolveExpression(c.d, cube.Name, m.SQL)
		if err != nil {
			return fragment{}, prism.NewValidationError(prism.ErrKindUnknownField, err.Error())
		}
	} else if m.Type != prism.MeasureCount {
		return fragment{}, prism.NewValidationError(prism.ErrKindUnknownField,
			fmt.Sprintf("cube '%s': %s measure declares no sql", cube.Name, m.Type))
	}

	var pred fragment
	if len(m.Filters) > 0 {
		resolve := func(member string) (fieldRef, error) {
			if !strings.Contains(member, ".") {
				member = cube.Name + "." + member
			}
			return c.dimensionRef(member)
		}
		fb := &filterBuilder{d: c.d, resolve: resolve, now: c.now}
		built, err := fb.Build(prism.And(m.Filters...))
		if err != nil {
			if prism.AsError(err) != nil {
				return fragment{}, err
			}
			return fragment{}, prism.NewValidationError(prism.ErrKindUnknownField, err.Error())
		}
		pred = built
	}
	useFilterClause := pred.SQL != "" && c.d.SupportsFilterClause()
	if pred.SQL != "" && !useFilterClause {
		if m.Type == prism.MeasureCount && operand.SQL == "" {
			operand = fragf("CASE WHEN %s THEN 1 END", pred)
		} else {
			operand = fragf("CASE WHEN %s THEN %s END", pred, operand)
		}
	}

	var agg fragment
	switch m.Type {
	case prism.MeasureCount:
		if operand.SQL == "" {
			agg = lit("COUNT(*)")
		} else {
			agg = fragf("COUNT(%s)", operand)
		}
	case prism.MeasureCountDistinct:
		agg = fragf("COUNT(DISTINCT %s)", operand)
	case prism.MeasureCountDistinctApprox:
		agg = replicateArgs(c.d.ApproxCountDistinct(operand.SQL), operand)
	case prism.MeasureSum:
		agg = fragf("SUM(%s)", operand)
	case prism.MeasureAvg:
		agg = fragf("AVG(%s)", operand)
	case prism.MeasureMin:
		agg = fragf("MIN(%s)", operand)
	case prism.MeasureMax:
		agg = fragf("MAX(%s)", operand)
	case prism.MeasureStdDev:
		sql, err := c.d.StdDev(operand.SQL)
		if err != nil {
			return fragment{}, err
		}
		agg = replicateArgs(sql, operand)
	case prism.MeasureMedian:
		sql, err := c.d.Percentile(0.5, operand.SQL)
		if err != nil {
			return fragment{}, err
		}
		agg = replicateArgs(sql, operand)
	case prism.MeasureP95:
		sql, err := c.d.Percentile(0.95, operand.SQL)
		if err != nil {
			return fragment{}, err
		}
		agg = replicateArgs(sql, operand)
	default:
		return fragment{}, prism.NewValidationError(prism.ErrKindUnsupportedMeasure,
			fmt.Sprintf("measure type '%s' is not an aggregate", m.Type))
	}

	if useFilterClause {
		agg = fragf("%s FILTER (WHERE %s)", agg, pred)
	}
	return agg, nil
}

// emitCalcMeasure parses and renders a calculated-measure template against
// the outer-stage aliases of the aggregation subquery q. Aggregate siblings
// it references are pulled into the inner stage as hidden columns.
func (c *compileCtx) emitCalcMeasure(cube *prism.Cube, name string, m prism.Measure, visiting map[string]bool) (string, error) {
	key := cube.Name + "." + name
	if visiting[key] {
		return "", prism.NewValidationError(prism.ErrKindCalcCycle,
			fmt.Sprintf("calculated measure '%s' references itself through a cycle", key))
	}
	visiting[key] = true
	defer delete(visiting, key)

	node, err := parseCalcExpression(m.SQL.SQL)
	if err != nil {
		return "", prism.NewValidationError(prism.ErrKindCalcUnresolved,
			fmt.Sprintf("calculated measure '%s': %v", key, err))
	}
	return emitCalc(node, func(ref string) (string, error) {
		sibling, ok := cube.Measures[ref]
		if !ok {
			return "", prism.NewValidationError(prism.ErrKindCalcUnresolved,
				fmt.Sprintf("calculated measure '%s' references unknown measure '%s'", key, ref))
		}
		switch sibling.Type {
		case prism.MeasureWindow:
			return "", prism.NewValidationError(prism.ErrKindCalcUnresolved,
				fmt.Sprintf("calculated measure '%s' may not reference window measure '%s'", key, ref))
		case prism.MeasureCalculated:
			inner, err := c.emitCalcMeasure(cube, ref, sibling, visiting)
			if err != nil {
				return "", err
			}
			return "(" + inner + ")", nil
		default:
			alias, err := c.ensureAgg(cube, ref, sibling)
			if err != nil {
				return "", err
			}
			return "q." + c.d.QuoteIdent(alias), nil
		}
	})
}

// ensureWindowSource validates a window measure's source and projects it in
// the inner stage.
func (c *compileCtx) ensureWindowSource(cube *prism.Cube, m prism.Measure) (string, error) {
	spec := m.Window
	if spec == nil {
		return "", prism.NewValidationError(prism.ErrKindIncompatibleWindow,
			fmt.Sprintf("window measure on cube '%s' has no window spec", cube.Name))
	}
	src, ok := cube.Measures[spec.Source]
	if !ok || !src.Type.IsAggregate() {
		return "", prism.NewValidationError(prism.ErrKindIncompatibleWindow,
			fmt.Sprintf("window source '%s' is not an aggregate measure of cube '%s'",
				spec.Source, cube.Name))
	}
	return c.ensureAgg(cube, spec.Source, src)
}

// windowMeasureSQL renders a window measure over the aggregation subquery q.
// The ORDER BY members must be projected dimensions of the same cube so the
// window sees the grouped rows in a defined order.
func (c *compileCtx) windowMeasureSQL(cube *prism.Cube, m prism.Measure) (string, error) {
	spec := m.Window
	srcRef := "q." + c.d.QuoteIdent(cube.Name+"."+spec.Source)

	var orderParts []string
	for _, o := range spec.OrderBy {
		member := o
		if !strings.Contains(member, ".") {
			member = cube.Name + "." + member
		}
		found := false
		for _, dim := range c.dims {
			if dim.member == member {
				orderParts = append(orderParts, "q."+c.d.QuoteIdent(member)+" ASC")
				found = true
				break
			}
		}
		if !found {
			return "", prism.NewValidationError(prism.ErrKindIncompatibleWindow,
				fmt.Sprintf("window orderBy '%s' is not a projected dimension", member))
		}
	}

	if len(orderParts) == 0 && spec.Function != prism.WindowRank {
		return "", prism.NewValidationError(prism.ErrKindIncompatibleWindow,
			fmt.Sprintf("window measure on cube '%s' needs an orderBy over projected dimensions", cube.Name))
	}
	orderClause := "ORDER BY " + strings.Join(orderParts, ", ")

	if spec.Operation != "" && spec.Operation != prism.WindowOpRaw && spec.Function != prism.WindowLag {
		return "", prism.NewValidationError(prism.ErrKindIncompatibleWindow,
			fmt.Sprintf("window operation '%s' requires the lag function", spec.Operation))
	}

	switch spec.Function {
	case prism.WindowLag:
		offset := spec.LagOffset
		if offset <= 0 {
			offset = 1
		}
		lagged := fmt.Sprintf("LAG(%s, %d) OVER (%s)", srcRef, offset, orderClause)
		switch spec.Operation {
		case "", prism.WindowOpRaw:
			return lagged, nil
		case prism.WindowOpDifference:
			return fmt.Sprintf("(%s - %s)", srcRef, lagged), nil
		case prism.WindowOpPercentChange:
			return fmt.Sprintf("((%s - %s) / NULLIF(%s, 0)) * 100", srcRef, lagged, lagged), nil
		default:
			return "", prism.NewValidationError(prism.ErrKindIncompatibleWindow,
				fmt.Sprintf("unknown window operation '%s'", spec.Operation))
		}

	case prism.WindowRank:
		if len(orderParts) == 0 {
			// Rank by the source value itself, largest first.
			orderClause = fmt.Sprintf("ORDER BY %s DESC", srcRef)
		}
		return fmt.Sprintf("RANK() OVER (%s)", orderClause), nil

	case prism.WindowMovingSum:
		return fmt.Sprintf("SUM(%s) OVER (%s %s)", srcRef, orderClause, frameSQL(spec.Frame)), nil

	case prism.WindowMovingAvg:
		return fmt.Sprintf("AVG(%s) OVER (%s %s)", srcRef, orderClause, frameSQL(spec.Frame)), nil

	case prism.WindowRunningTotal:
		return fmt.Sprintf("SUM(%s) OVER (%s ROWS UNBOUNDED PRECEDING)", srcRef, orderClause), nil

	default:
		return "", prism.NewValidationError(prism.ErrKindIncompatibleWindow,
			fmt.Sprintf("unknown window function '%s'", spec.Function))
	}
}

func frameSQL(f *prism.WindowFrame) string {
	if f == nil {
		return "ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW"
	}
	return fmt.Sprintf("ROWS BETWEEN %s AND %s", boundSQL(f.Start, true), boundSQL(f.End, false))
}

func boundSQL(b prism.FrameBound, start bool) string {
	switch {
	case b.Unbounded && start:
		return "UNBOUNDED PRECEDING"
	case b.Unbounded:
		return "UNBOUNDED FOLLOWING"
	case b.Current:
		return "CURRENT ROW"
	case start:
		return fmt.Sprintf("%d PRECEDING", b.Offset)
	default:
		return fmt.Sprintf("%d FOLLOWING", b.Offset)
	}
}
