package internal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lychee-technology/prism"
)

// periodColumn labels comparison-mode rows as current or prior.
const periodColumn = "__period"

// Planner turns semantic queries into parameterised SQL for the dialect of
// the context's connection. A Planner is stateless beyond its registry and
// config; Compile may run concurrently.
type Planner struct {
	reg *prism.CubeRegistry
	cfg *prism.Config
}

func NewPlanner(reg *prism.CubeRegistry, cfg *prism.Config) *Planner {
	if cfg == nil {
		cfg = prism.DefaultConfig()
	}
	return &Planner{reg: reg, cfg: cfg}
}

// Compile validates the query and produces the statement plus projection
// metadata. Flow queries divert to the flow planner after shared validation.
func (p *Planner) Compile(q *prism.SemanticQuery, qctx *prism.QueryContext) (*prism.CompiledQuery, error) {
	if qctx == nil || qctx.Conn == nil {
		return nil, prism.NewValidationError(prism.ErrKindUnknownField,
			"query context carries no connection")
	}
	d, err := DialectFor(qctx.Conn.Dialect())
	if err != nil {
		return nil, err
	}
	if q.Flow != nil {
		return p.compileFlow(q, qctx, d)
	}

	c := &compileCtx{
		p:        p,
		d:        d,
		q:        q,
		qctx:     qctx,
		now:      qctx.EffectiveNow(),
		aggIndex: map[string]int{},
	}
	for _, step := range []func() error{
		c.collectReferences,
		c.planJoins,
		c.buildFrom,
		c.resolveDimensions,
		c.resolveMeasures,
		c.resolveFilters,
	} {
		if err := step(); err != nil {
			return nil, err
		}
	}
	stmt, err := c.assemble()
	if err != nil {
		return nil, err
	}

	sql, params := finalizeSQL(stmt, d)
	return &prism.CompiledQuery{
		SQL:           sql,
		Params:        params,
		NumericFields: c.numericFields(),
		Annotation:    c.annotation(),
		Warnings:      c.warnings,
	}, nil
}

// CompileDistinctValues builds the lookup statement for a single dimension:
// its distinct non-null values under the cube's security predicate.
func (p *Planner) CompileDistinctValues(member string, qctx *prism.QueryContext, limit int) (*prism.CompiledQuery, error) {
	d, err := DialectFor(qctx.Conn.Dialect())
	if err != nil {
		return nil, err
	}
	cube, dim, err := p.reg.ResolveDimension(member)
	if err != nil {
		return nil, err
	}
	expr, err := resolveExpression(d, cube.Name, dim.SQL)
	if err != nil {
		return nil, prism.NewValidationError(prism.ErrKindUnknownField, err.Error())
	}
	from, baseWhere, err := resolveBaseQuery(d, cube, qctx)
	if err != nil {
		return nil, prism.NewValidationError(prism.ErrKindUnknownField, err.Error())
	}
	if limit <= 0 || limit > p.cfg.Query.DistinctValuesLimit {
		limit = p.cfg.Query.DistinctValuesLimit
	}

	where := fragf("%s IS NOT NULL", expr)
	if baseWhere.SQL != "" {
		where = fragf("%s AND %s", baseWhere, where)
	}
	stmt := fragf("SELECT DISTINCT %s AS %s\nFROM %s\nWHERE %s\nORDER BY 1\nLIMIT %s",
		expr, lit(d.QuoteIdent(member)), from, where, lit(strconv.Itoa(limit)))

	sql, params := finalizeSQL(stmt, d)
	return &prism.CompiledQuery{
		SQL:           sql,
		Params:        params,
		NumericFields: nil,
	}, nil
}

// projDim is one projected dimension column of the grouping SELECT.
type projDim struct {
	member      string
	cube        *prism.Cube
	dim         prism.Dimension
	expr        fragment // bucketed for time dimensions
	isTime      bool
	granularity prism.Granularity
}

// aggCol is one aggregate column of the grouping SELECT. Hidden columns feed
// calculated/window measures without appearing in the response.
type aggCol struct {
	alias     string
	expr      fragment
	measure   prism.Measure
	requested bool
}

// outerMeasure is one requested measure in request order; calculated and
// window measures are emitted in the outer stage.
type outerMeasure struct {
	alias   string
	cube    *prism.Cube
	measure prism.Measure
}

// timeDimInfo carries a time-dimension request with its resolved raw
// expression; projected buckets also appear in c.dims.
type timeDimInfo struct {
	req  prism.TimeDimensionRequest
	cube *prism.Cube
	dim  prism.Dimension
	raw  fragment
}

// compareSpec marks the time dimension driving comparison mode.
type compareSpec struct {
	member  string
	raw     fragment
	current resolvedRange
}

type compileCtx struct {
	p    *Planner
	d    Dialect
	q    *prism.SemanticQuery
	qctx *prism.QueryContext
	now  time.Time

	root     string
	required []string
	join     *joinPlan

	from       fragment
	baseWheres []fragment

	dims     []projDim
	timeDims []timeDimInfo
	aggs     []aggCol
	aggIndex map[string]int
	measures []outerMeasure
	twoStage bool

	where  []fragment
	having []fragment

	compare      *compareSpec
	droppedRange map[int]bool // top-level filter indexes folded into compare

	warnings []prism.QueryWarning
}

// collectReferences gathers every cube the query touches and picks the root:
// the first measure's cube, else the first dimension's, else the first time
// dimension's, else the first hinted cube.
func (c *compileCtx) collectReferences() error {
	var ordered []string
	seen := map[string]bool{}
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			ordered = append(ordered, name)
		}
	}
	resolveCube := func(member string) (string, error) {
		cubeName, _ := prism.SplitMember(member)
		if _, ok := c.p.reg.Lookup(cubeName); !ok {
			return "", prism.NewUnknownFieldError(member)
		}
		return cubeName, nil
	}

	for _, m := range c.q.Measures {
		name, err := resolveCube(m)
		if err != nil {
			return err
		}
		add(name)
	}
	for _, dim := range c.q.Dimensions {
		name, err := resolveCube(dim)
		if err != nil {
			return err
		}
		add(name)
	}
	for _, td := range c.q.TimeDimensions {
		name, err := resolveCube(td.Dimension)
		if err != nil {
			return err
		}
		add(name)
	}
	for i := range c.q.Filters {
		for _, member := range c.q.Filters[i].Members() {
			name, err := resolveCube(member)
			if err != nil {
				return err
			}
			add(name)
		}
	}
	for _, name := range c.q.Cubes {
		if _, ok := c.p.reg.Lookup(name); !ok {
			return prism.NewUnknownFieldError(name)
		}
		add(name)
	}

	if len(ordered) == 0 {
		return prism.NewValidationError(prism.ErrKindUnknownField,
			"query references no cubes")
	}
	c.root = ordered[0]
	c.required = ordered[1:]
	return nil
}

func (c *compileCtx) planJoins() error {
	projected := map[string]bool{}
	projectedDims := map[string]bool{}
	for _, m := range c.q.Measures {
		name, _ := prism.SplitMember(m)
		projected[name] = true
	}
	for _, dim := range c.q.Dimensions {
		name, _ := prism.SplitMember(dim)
		projected[name] = true
		projectedDims[name] = true
	}
	for _, td := range c.q.TimeDimensions {
		if td.Granularity == "" {
			continue
		}
		name, _ := prism.SplitMember(td.Dimension)
		projected[name] = true
		projectedDims[name] = true
	}
	pivotHint := map[string]bool{}
	for _, name := range c.q.Cubes {
		pivotHint[name] = true
	}

	plan, err := planJoins(c.p.reg, c.root, c.required, projected, projectedDims, pivotHint)
	if err != nil {
		return err
	}
	c.join = plan
	c.warnings = append(c.warnings, plan.Warnings...)
	return nil
}

// buildFrom resolves every joined cube's base query into the FROM clause and
// collects the base predicates (security scope) for WHERE.
func (c *compileCtx) buildFrom() error {
	rootCube, _ := c.p.reg.Lookup(c.root)
	from, where, err := resolveBaseQuery(c.d, rootCube, c.qctx)
	if err != nil {
		return prism.NewValidationError(prism.ErrKindUnknownField, err.Error())
	}
	parts := []fragment{from}
	if where.SQL != "" {
		c.baseWheres = append(c.baseWheres, where)
	}

	for _, j := range c.join.Joins {
		cube, ok := c.p.reg.Lookup(j.Cube)
		if !ok {
			return prism.NewUnknownFieldError(j.Cube)
		}
		jf, jw, err := resolveBaseQuery(c.d, cube, c.qctx)
		if err != nil {
			return prism.NewValidationError(prism.ErrKindUnknownField, err.Error())
		}

		conds := make([]fragment, len(j.Columns))
		for i, col := range j.Columns {
			conds[i] = lit(fmt.Sprintf("%s.%s = %s.%s",
				c.d.QuoteIdent(j.From), c.d.QuoteIdent(col.SourceColumn),
				c.d.QuoteIdent(j.Cube), c.d.QuoteIdent(col.TargetColumn)))
		}
		kw := "INNER JOIN"
		if j.Left {
			kw = "LEFT JOIN"
		}
		parts = append(parts, fragf(kw+" %s ON %s", jf, concat(" AND ", conds...)))
		if jw.SQL != "" {
			c.baseWheres = append(c.baseWheres, jw)
		}
	}
	c.from = concat("\n", parts...)
	return nil
}

func (c *compileCtx) resolveDimensions() error {
	for _, member := range c.q.Dimensions {
		cube, dim, err := c.p.reg.ResolveDimension(member)
		if err != nil {
			return err
		}
		expr, err := resolveExpression(c.d, cube.Name, dim.SQL)
		if err != nil {
			return prism.NewValidationError(prism.ErrKindUnknownField, err.Error())
		}
		c.dims = append(c.dims, projDim{member: member, cube: cube, dim: dim, expr: expr})
	}

	for _, td := range c.q.TimeDimensions {
		cube, dim, err := c.p.reg.ResolveDimension(td.Dimension)
		if err != nil {
			return err
		}
		if dim.Type != prism.DimensionTypeTime {
			return prism.NewValidationError(prism.ErrKindUnknownField,
				fmt.Sprintf("'%s' is not a time dimension", td.Dimension))
		}
		raw, err := resolveExpression(c.d, cube.Name, dim.SQL)
		if err != nil {
			return prism.NewValidationError(prism.ErrKindUnknownField, err.Error())
		}
		c.timeDims = append(c.timeDims, timeDimInfo{req: td, cube: cube, dim: dim, raw: raw})

		if td.Granularity != "" {
			truncSQL, err := c.d.DateTrunc(td.Granularity, raw.SQL)
			if err != nil {
				return err
			}
			c.dims = append(c.dims, projDim{
				member:      td.Dimension,
				cube:        cube,
				dim:         dim,
				expr:        replicateArgs(truncSQL, raw),
				isTime:      true,
				granularity: td.Granularity,
			})
		}
	}

	if c.d.Name() == prism.DialectSQLite && len(c.timeDims) > 0 {
		c.warnings = append(c.warnings, prism.QueryWarning{
			Code:    prism.WarnDialectBehaviour,
			Message: "sqlite returns time buckets as sortable text, not native timestamps",
		})
	}
	return nil
}

func (c *compileCtx) resolveMeasures() error {
	if len(c.q.Measures) == 0 && len(c.dims) == 0 {
		return prism.NewValidationError(prism.ErrKindUnknownField,
			"query projects no dimensions or measures")
	}
	for _, member := range c.q.Measures {
		cube, m, err := c.p.reg.ResolveMeasure(member)
		if err != nil {
			return err
		}
		_, field := prism.SplitMember(member)
		switch {
		case m.Type.IsAggregate():
			alias, err := c.ensureAgg(cube, field, m)
			if err != nil {
				return err
			}
			c.aggs[c.aggIndex[alias]].requested = true
		case m.Type == prism.MeasureCalculated:
			// Parse eagerly so template errors surface before SQL assembly,
			// and pull aggregate dependencies into the inner stage.
			if _, err := c.emitCalcMeasure(cube, field, m, map[string]bool{}); err != nil {
				return err
			}
			c.twoStage = true
		case m.Type == prism.MeasureWindow:
			if !c.d.SupportsWindowFunctions() {
				return prism.NewValidationError(prism.ErrKindUnsupportedMeasure,
					fmt.Sprintf("%s does not support window functions", c.d.Name()))
			}
			if _, err := c.ensureWindowSource(cube, m); err != nil {
				return err
			}
			c.twoStage = true
		}
		c.measures = append(c.measures, outerMeasure{alias: member, cube: cube, measure: m})
	}
	return nil
}

// resolveFilters routes each top-level filter into WHERE or HAVING, resolves
// time-dimension date ranges, and detects comparison mode.
func (c *compileCtx) resolveFilters() error {
	c.droppedRange = map[int]bool{}

	// Comparison mode: the first time dimension asking for it wins. Its
	// range comes from the request or from a top-level inDateRange filter
	// on the same dimension, which is then removed from WHERE.
	for _, td := range c.timeDims {
		if !td.req.CompareDateRange {
			continue
		}
		rangeValue := td.req.DateRange
		if rangeValue == nil {
			for i := range c.q.Filters {
				f := &c.q.Filters[i]
				if !f.IsGroup() && f.Operator == prism.OpInDateRange && f.Member == td.req.Dimension {
					if len(f.Values) == 1 {
						rangeValue = f.Values[0]
					} else {
						rangeValue = f.Values
					}
					c.droppedRange[i] = true
					break
				}
			}
		}
		if rangeValue == nil {
			return prism.NewValidationError(prism.ErrKindInvalidDateRange,
				fmt.Sprintf("compareDateRange on '%s' needs a date range", td.req.Dimension))
		}
		r, err := parseDateRange(rangeValue, c.now)
		if err != nil {
			return prism.NewValidationError(prism.ErrKindInvalidDateRange, err.Error())
		}
		c.compare = &compareSpec{member: td.req.Dimension, raw: td.raw, current: r}
		break
	}

	for _, td := range c.timeDims {
		if td.req.DateRange == nil {
			continue
		}
		if c.compare != nil && c.compare.member == td.req.Dimension {
			continue
		}
		r, err := parseDateRange(td.req.DateRange, c.now)
		if err != nil {
			return prism.NewValidationError(prism.ErrKindInvalidDateRange, err.Error())
		}
		c.where = append(c.where, rangePredicate(c.d, td.raw, r))
	}

	whereBuilder := &filterBuilder{d: c.d, resolve: c.dimensionRef, now: c.now}
	havingBuilder := &filterBuilder{d: c.d, resolve: c.aggregateRef, now: c.now}

	for i := range c.q.Filters {
		if c.droppedRange[i] {
			continue
		}
		f := c.q.Filters[i]
		measureFilter, err := c.referencesMeasure(f)
		if err != nil {
			return err
		}
		builder, sink := whereBuilder, &c.where
		if measureFilter {
			builder, sink = havingBuilder, &c.having
		}
		frag, err := builder.Build(f)
		if err != nil {
			if prism.AsError(err) != nil {
				return err
			}
			return prism.NewValidationError(prism.ErrKindUnknownField, err.Error())
		}
		if frag.SQL != "" {
			*sink = append(*sink, frag)
		}
	}
	return nil
}

func (c *compileCtx) referencesMeasure(f prism.Filter) (bool, error) {
	for _, member := range f.Members() {
		_, isMeasure, err := c.p.reg.ResolveField(member)
		if err != nil {
			return false, err
		}
		if isMeasure {
			return true, nil
		}
	}
	return false, nil
}

// dimensionRef resolves a filter member against its cube alias (WHERE).
func (c *compileCtx) dimensionRef(member string) (fieldRef, error) {
	cube, dim, err := c.p.reg.ResolveDimension(member)
	if err != nil {
		return fieldRef{}, err
	}
	expr, rerr := resolveExpression(c.d, cube.Name, dim.SQL)
	if rerr != nil {
		return fieldRef{}, prism.NewValidationError(prism.ErrKindUnknownField, rerr.Error())
	}
	return fieldRef{Expr: expr, Type: dim.Type}, nil
}

// aggregateRef resolves a filter member for HAVING: measures become their
// full aggregate expression, dimensions stay as grouped columns.
func (c *compileCtx) aggregateRef(member string) (fieldRef, error) {
	cube, isMeasure, err := c.p.reg.ResolveField(member)
	if err != nil {
		return fieldRef{}, err
	}
	if !isMeasure {
		return c.dimensionRef(member)
	}
	_, field := prism.SplitMember(member)
	m := cube.Measures[field]
	if !m.Type.IsAggregate() {
		return fieldRef{}, prism.NewValidationError(prism.ErrKindUnsupportedMeasure,
			fmt.Sprintf("cannot filter on %s measure '%s'", m.Type, member))
	}
	expr, aerr := c.aggregateExpr(cube, m)
	if aerr != nil {
		return fieldRef{}, aerr
	}
	return fieldRef{Expr: expr, Type: prism.DimensionTypeNumber, IsMeasure: true}, nil
}

// assemble renders the final statement: one aggregation branch, or two
// UNION ALL branches labelled current/prior in comparison mode, followed by
// ORDER BY and LIMIT.
func (c *compileCtx) assemble() (fragment, error) {
	var stmt fragment
	if c.compare == nil {
		branch, err := c.assembleBranch("", resolvedRange{})
		if err != nil {
			return fragment{}, err
		}
		stmt = branch
	} else {
		current, err := c.assembleBranch("current", c.compare.current)
		if err != nil {
			return fragment{}, err
		}
		prior, err := c.assembleBranch("prior", priorPeriod(c.compare.current))
		if err != nil {
			return fragment{}, err
		}
		stmt = concat("\nUNION ALL\n", current, prior)
	}

	tail, err := c.orderAndLimit()
	if err != nil {
		return fragment{}, err
	}
	if tail.SQL != "" {
		stmt = concat("\n", stmt, tail)
	}
	return stmt, nil
}

func (c *compileCtx) assembleBranch(period string, r resolvedRange) (fragment, error) {
	where := append([]fragment(nil), c.baseWheres...)
	where = append(where, c.where...)
	if period != "" {
		where = append(where, rangePredicate(c.d, c.compare.raw, r))
	}

	var innerCols []fragment
	for _, dim := range c.dims {
		innerCols = append(innerCols, fragf("%s AS %s", dim.expr, lit(c.d.QuoteIdent(dim.member))))
	}
	for _, agg := range c.aggs {
		if !c.twoStage && !agg.requested {
			continue
		}
		innerCols = append(innerCols, fragf("%s AS %s", agg.expr, lit(c.d.QuoteIdent(agg.alias))))
	}
	if period != "" && !c.twoStage {
		innerCols = append(innerCols, lit(fmt.Sprintf("'%s' AS %s", period, c.d.QuoteIdent(periodColumn))))
	}

	inner := fragf("SELECT %s\nFROM %s", concat(", ", innerCols...), c.from)
	if len(where) > 0 {
		inner = fragf("%s\nWHERE %s", inner, concat(" AND ", where...))
	}
	if len(c.dims) > 0 {
		ordinals := make([]string, len(c.dims))
		for i := range c.dims {
			ordinals[i] = strconv.Itoa(i + 1)
		}
		inner = fragf("%s\nGROUP BY %s", inner, lit(strings.Join(ordinals, ", ")))
	}
	if len(c.having) > 0 {
		inner = fragf("%s\nHAVING %s", inner, concat(" AND ", c.having...))
	}
	if !c.twoStage {
		return inner, nil
	}

	var outerCols []fragment
	for _, dim := range c.dims {
		quoted := c.d.QuoteIdent(dim.member)
		outerCols = append(outerCols, lit(fmt.Sprintf("q.%s AS %s", quoted, quoted)))
	}
	for _, om := range c.measures {
		col, err := c.outerMeasureCol(om)
		if err != nil {
			return fragment{}, err
		}
		outerCols = append(outerCols, col)
	}
	if period != "" {
		outerCols = append(outerCols, lit(fmt.Sprintf("'%s' AS %s", period, c.d.QuoteIdent(periodColumn))))
	}
	return fragf("SELECT %s\nFROM (\n%s\n) AS q", concat(", ", outerCols...), inner), nil
}

func (c *compileCtx) outerMeasureCol(om outerMeasure) (fragment, error) {
	quoted := c.d.QuoteIdent(om.alias)
	switch {
	case om.measure.Type.IsAggregate():
		return lit(fmt.Sprintf("q.%s AS %s", quoted, quoted)), nil
	case om.measure.Type == prism.MeasureCalculated:
		_, field := prism.SplitMember(om.alias)
		sql, err := c.emitCalcMeasure(om.cube, field, om.measure, map[string]bool{})
		if err != nil {
			return fragment{}, err
		}
		return lit(fmt.Sprintf("%s AS %s", sql, quoted)), nil
	default:
		sql, err := c.windowMeasureSQL(om.cube, om.measure)
		if err != nil {
			return fragment{}, err
		}
		return lit(fmt.Sprintf("%s AS %s", sql, quoted)), nil
	}
}

func (c *compileCtx) orderAndLimit() (fragment, error) {
	allowed := map[string]bool{}
	for _, dim := range c.dims {
		allowed[dim.member] = true
	}
	for _, om := range c.measures {
		allowed[om.alias] = true
	}
	if c.compare != nil {
		allowed[periodColumn] = true
	}

	var parts []string
	if len(c.q.Order) > 0 {
		entries := make([]string, 0, len(c.q.Order))
		for _, o := range c.q.Order {
			if !allowed[o.Member] {
				return fragment{}, prism.NewValidationError(prism.ErrKindInvalidOrderField,
					fmt.Sprintf("order field '%s' is not in the projection", o.Member))
			}
			dir := "ASC"
			if o.Direction == prism.OrderDesc {
				dir = "DESC"
			} else if o.Direction != "" && o.Direction != prism.OrderAsc {
				return fragment{}, prism.NewValidationError(prism.ErrKindInvalidOrderField,
					fmt.Sprintf("order direction '%s' on '%s' is not asc or desc", o.Direction, o.Member))
			}
			entries = append(entries, c.d.QuoteIdent(o.Member)+" "+dir)
		}
		parts = append(parts, "ORDER BY "+strings.Join(entries, ", "))
	}

	if c.q.Offset > 0 && c.q.Limit == 0 {
		return fragment{}, prism.NewValidationError(prism.ErrKindOffsetWithoutLimit,
			"offset requires an explicit limit")
	}
	limit := c.q.Limit
	if limit <= 0 || limit > c.p.cfg.Query.MaxRows {
		if limit > c.p.cfg.Query.MaxRows {
			c.warnings = append(c.warnings, prism.QueryWarning{
				Code:    prism.WarnDialectBehaviour,
				Message: fmt.Sprintf("limit capped at %d rows", c.p.cfg.Query.MaxRows),
			})
			limit = c.p.cfg.Query.MaxRows
		} else {
			limit = c.p.cfg.Query.DefaultLimit
		}
	}
	parts = append(parts, "LIMIT "+strconv.Itoa(limit))
	if c.q.Offset > 0 {
		parts = append(parts, "OFFSET "+strconv.Itoa(c.q.Offset))
	}
	return lit(strings.Join(parts, "\n")), nil
}

func (c *compileCtx) numericFields() []string {
	fields := make([]string, 0, len(c.measures))
	for _, om := range c.measures {
		fields = append(fields, om.alias)
	}
	return fields
}

func (c *compileCtx) annotation() prism.Annotation {
	ann := prism.Annotation{
		Measures:       map[string]prism.FieldAnnotation{},
		Dimensions:     map[string]prism.FieldAnnotation{},
		TimeDimensions: map[string]prism.FieldAnnotation{},
	}
	for _, om := range c.measures {
		ann.Measures[om.alias] = prism.FieldAnnotation{
			Type:        string(om.measure.Type),
			Format:      string(om.measure.Format),
			Title:       fieldTitle(om.measure.Title, om.alias),
			Description: om.measure.Description,
		}
	}
	for _, dim := range c.dims {
		fa := prism.FieldAnnotation{
			Type:        string(dim.dim.Type),
			Title:       fieldTitle(dim.dim.Title, dim.member),
			Description: dim.dim.Description,
		}
		if dim.isTime {
			fa.Granularity = string(dim.granularity)
			ann.TimeDimensions[dim.member] = fa
		} else {
			ann.Dimensions[dim.member] = fa
		}
	}
	return ann
}

func fieldTitle(title, fallback string) string {
	if title != "" {
		return title
	}
	return fallback
}

// replicateArgs rebuilds a fragment whose SQL text embeds the source
// expression one or more times (dialect date truncations repeat their
// operand), duplicating the bind args once per repetition.
func replicateArgs(sql string, src fragment) fragment {
	if len(src.Args) == 0 {
		return lit(sql)
	}
	repeats := strings.Count(sql, "?") / len(src.Args)
	args := make([]any, 0, repeats*len(src.Args))
	for i := 0; i < repeats; i++ {
		args = append(args, src.Args...)
	}
	return fragment{SQL: sql, Args: args}
}
