package internal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lychee-technology/prism"
)

// compileFlow turns a flow query into a chain of CTEs walking an event
// stream backward and forward from a pivot step, ending in a single UNION of
// node and link records tagged by record_type.
func (p *Planner) compileFlow(q *prism.SemanticQuery, qctx *prism.QueryContext, d Dialect) (*prism.CompiledQuery, error) {
	cfg := q.Flow
	if !d.SupportsFlow() {
		return nil, prism.NewValidationError(prism.ErrKindFlowEngineUnsupported,
			fmt.Sprintf("%s does not support flow queries", d.Name()))
	}

	cube, binding, err := p.flowDimension(cfg.BindingKey)
	if err != nil {
		return nil, err
	}
	timeCube, timeDim, err := p.flowDimension(cfg.TimeDimension)
	if err != nil {
		return nil, err
	}
	eventCube, eventDim, err := p.flowDimension(cfg.EventDimension)
	if err != nil {
		return nil, err
	}
	if timeCube.Name != cube.Name || eventCube.Name != cube.Name {
		return nil, prism.NewValidationError(prism.ErrKindFlowInvalidDimension,
			"flow dimensions must all belong to one event-stream cube")
	}
	if !cube.EventStream {
		return nil, prism.NewValidationError(prism.ErrKindFlowInvalidDimension,
			fmt.Sprintf("cube '%s' is not an event stream", cube.Name))
	}
	if timeDim.Type != prism.DimensionTypeTime {
		return nil, prism.NewValidationError(prism.ErrKindFlowInvalidDimension,
			fmt.Sprintf("flow time dimension '%s' is not of type time", cfg.TimeDimension))
	}

	if emptyStartingStep(cfg.StartingStep) {
		return nil, prism.NewValidationError(prism.ErrKindFlowMissingStartingStep,
			"flow query needs a startingStep filter identifying pivot events")
	}
	if cfg.StepsBefore < 0 || cfg.StepsBefore > prism.MaxFlowDepth ||
		cfg.StepsAfter < 0 || cfg.StepsAfter > prism.MaxFlowDepth {
		return nil, prism.NewValidationError(prism.ErrKindFlowDepthOutOfRange,
			fmt.Sprintf("stepsBefore/stepsAfter must be within [0, %d]", prism.MaxFlowDepth))
	}

	mode := cfg.OutputMode
	if mode == "" {
		mode = prism.FlowSankey
	}
	if mode != prism.FlowSankey && mode != prism.FlowSunburst {
		return nil, prism.NewValidationError(prism.ErrKindFlowInvalidDimension,
			fmt.Sprintf("unknown flow output mode '%s'", mode))
	}
	stepsBefore := cfg.StepsBefore
	if mode == prism.FlowSunburst {
		// The sunburst tree grows forward only.
		stepsBefore = 0
	}

	lateral := false
	switch cfg.JoinStrategy {
	case prism.FlowJoinLateral:
		if !d.SupportsLateral() {
			return nil, prism.NewValidationError(prism.ErrKindFlowLateralUnsupported,
				fmt.Sprintf("%s does not support LATERAL joins", d.Name()))
		}
		lateral = true
	case prism.FlowJoinWindow:
	case "", prism.FlowJoinAuto:
		lateral = d.SupportsLateral()
	default:
		return nil, prism.NewValidationError(prism.ErrKindFlowInvalidDimension,
			fmt.Sprintf("unknown flow join strategy '%s'", cfg.JoinStrategy))
	}

	var warnings []prism.QueryWarning
	if depth := maxInt(stepsBefore, cfg.StepsAfter); depth >= p.cfg.Flow.WarnDepth {
		warnings = append(warnings, prism.QueryWarning{
			Code:    prism.WarnFlowDepth,
			Message: fmt.Sprintf("flow depth %d scans the event stream once per layer", depth),
		})
	}

	entityLimit := cfg.EntityLimit
	if entityLimit <= 0 {
		entityLimit = p.cfg.Flow.DefaultEntityLimit
	}

	f := &flowCompiler{
		d:           d,
		cube:        cube,
		qctx:        qctx,
		now:         qctx.EffectiveNow(),
		mode:        mode,
		lateral:     lateral,
		stepsBefore: stepsBefore,
		stepsAfter:  cfg.StepsAfter,
		entityLimit: entityLimit,
	}
	if f.bindingExpr, err = resolveExpression(d, cube.Name, binding.SQL); err != nil {
		return nil, prism.NewValidationError(prism.ErrKindFlowInvalidDimension, err.Error())
	}
	if f.timeExpr, err = resolveExpression(d, cube.Name, timeDim.SQL); err != nil {
		return nil, prism.NewValidationError(prism.ErrKindFlowInvalidDimension, err.Error())
	}
	if f.eventExpr, err = resolveExpression(d, cube.Name, eventDim.SQL); err != nil {
		return nil, prism.NewValidationError(prism.ErrKindFlowInvalidDimension, err.Error())
	}
	if f.baseFrom, f.baseWhere, err = resolveBaseQuery(d, cube, qctx); err != nil {
		return nil, prism.NewValidationError(prism.ErrKindFlowInvalidDimension, err.Error())
	}

	start, err := f.startingPredicate(cfg.StartingStep)
	if err != nil {
		return nil, err
	}
	stmt := f.build(start)

	sql, params := finalizeSQL(stmt, d)
	return &prism.CompiledQuery{
		SQL:           sql,
		Params:        params,
		NumericFields: []string{"value"},
		Warnings:      warnings,
		Flow:          true,
	}, nil
}

func (p *Planner) flowDimension(member string) (*prism.Cube, prism.Dimension, error) {
	cube, dim, err := p.reg.ResolveDimension(member)
	if err != nil {
		return nil, prism.Dimension{}, prism.NewValidationError(prism.ErrKindFlowInvalidDimension,
			fmt.Sprintf("unknown flow dimension '%s'", member))
	}
	return cube, dim, nil
}

func emptyStartingStep(f prism.Filter) bool {
	if f.IsGroup() {
		return len(f.Filters) == 0
	}
	return f.Member == ""
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

type flowCompiler struct {
	d           Dialect
	cube        *prism.Cube
	qctx        *prism.QueryContext
	now         time.Time
	mode        prism.FlowOutputMode
	lateral     bool
	stepsBefore int
	stepsAfter  int
	entityLimit int

	bindingExpr fragment
	timeExpr    fragment
	eventExpr   fragment
	baseFrom    fragment
	baseWhere   fragment
}

// startingPredicate builds the pivot filter. Members may be short names,
// which are qualified against the event-stream cube; references outside it
// are rejected.
func (f *flowCompiler) startingPredicate(filter prism.Filter) (fragment, error) {
	resolve := func(member string) (fieldRef, error) {
		if !strings.Contains(member, ".") {
			member = f.cube.Name + "." + member
		}
		cubeName, field := prism.SplitMember(member)
		if cubeName != f.cube.Name {
			return fieldRef{}, prism.NewValidationError(prism.ErrKindFlowInvalidDimension,
				fmt.Sprintf("startingStep member '%s' is outside cube '%s'", member, f.cube.Name))
		}
		dim, ok := f.cube.Dimensions[field]
		if !ok {
			return fieldRef{}, prism.NewValidationError(prism.ErrKindFlowInvalidDimension,
				fmt.Sprintf("unknown startingStep dimension '%s'", member))
		}
		expr, err := resolveExpression(f.d, f.cube.Name, dim.SQL)
		if err != nil {
			return fieldRef{}, prism.NewValidationError(prism.ErrKindFlowInvalidDimension, err.Error())
		}
		return fieldRef{Expr: expr, Type: dim.Type}, nil
	}

	fb := &filterBuilder{d: f.d, resolve: resolve, now: f.now}
	frag, err := fb.Build(filter)
	if err != nil {
		if prism.AsError(err) != nil {
			return fragment{}, err
		}
		return fragment{}, prism.NewValidationError(prism.ErrKindFlowMissingStartingStep, err.Error())
	}
	if frag.SQL == "" {
		return fragment{}, prism.NewValidationError(prism.ErrKindFlowMissingStartingStep,
			"startingStep filter matched no conditions")
	}
	return frag, nil
}

// build assembles the WITH chain and the final node/link UNION.
func (f *flowCompiler) build(start fragment) fragment {
	where := start
	if f.baseWhere.SQL != "" {
		where = fragf("%s AND %s", f.baseWhere, start)
	}
	ctes := []fragment{fragf(
		"starting_entities AS (\n"+
			"SELECT %s AS binding_key, MIN(%s) AS step_time, %s AS event_type, %s AS event_path\n"+
			"FROM %s\nWHERE %s\nGROUP BY 1, 3, 4\nLIMIT %s\n)",
		f.bindingExpr, f.timeExpr, f.eventExpr, f.eventExpr,
		f.baseFrom, where, lit(strconv.Itoa(f.entityLimit)))}

	for depth := 1; depth <= f.stepsBefore; depth++ {
		ctes = append(ctes, f.stepCTE(-depth))
	}
	for depth := 1; depth <= f.stepsAfter; depth++ {
		ctes = append(ctes, f.stepCTE(depth))
	}
	ctes = append(ctes, f.nodesAgg())
	links, hasLinks := f.linksAgg()
	if hasLinks {
		ctes = append(ctes, links)
	}

	final := lit("SELECT 'node' AS record_type, node_id, node_name, layer, value, NULL AS source_id, NULL AS target_id FROM nodes_agg")
	if hasLinks {
		final = concat("\nUNION ALL\n", final,
			lit("SELECT 'link' AS record_type, NULL AS node_id, NULL AS node_name, NULL AS layer, value, source_id, target_id FROM links_agg"))
	}
	return fragf("WITH %s\n%s", concat(",\n", ctes...), final)
}

// stepCTE walks one layer away from the previous one, picking the single
// nearest event for each previous-layer row. Negative layers walk backward
// in time.
func (f *flowCompiler) stepCTE(layer int) fragment {
	name := layerCTEName(layer)
	prev := layerCTEName(layer + sign(-layer))

	cmp, ord := ">", "ASC"
	if layer < 0 {
		cmp, ord = "<", "DESC"
	}

	if f.lateral {
		path := lit("e.event_type")
		if layer > 0 {
			path = lit("CONCAT(p.event_path, '>', e.event_type)")
		}
		inner := fragf(
			"SELECT %s AS event_type, %s AS step_time\nFROM %s\nWHERE %s%s = p.binding_key AND %s "+cmp+" p.step_time\nORDER BY %s "+ord+"\nLIMIT 1",
			f.eventExpr, f.timeExpr, f.baseFrom,
			f.lateralBaseWhere(), f.bindingExpr, f.timeExpr, f.timeExpr)
		return fragf(
			name+" AS (\nSELECT p.binding_key, e.event_type, e.step_time, %s AS event_path\nFROM "+prev+" p\nCROSS JOIN LATERAL (\n%s\n) e\n)",
			path, inner)
	}

	pathInner := fragf("%s", f.eventExpr)
	if layer > 0 {
		pathInner = fragf("CONCAT(p.event_path, '>', %s)", f.eventExpr)
	}
	// Partitioning includes the previous row's path and timestamp so a
	// binding key with several rows in the previous layer advances each of
	// them, matching what the lateral strategy produces.
	ranked := fragf(
		"SELECT p.binding_key, %s AS event_type, %s AS step_time, %s AS event_path,\n"+
			"ROW_NUMBER() OVER (PARTITION BY p.binding_key, p.event_path, p.step_time ORDER BY %s "+ord+") AS rn\n"+
			"FROM "+prev+" p\nJOIN %s ON %s = p.binding_key AND %s "+cmp+" p.step_time%s",
		f.eventExpr, f.timeExpr, pathInner, f.timeExpr,
		f.baseFrom, f.bindingExpr, f.timeExpr, f.joinBaseWhere())
	return fragf(
		name+" AS (\nSELECT binding_key, event_type, step_time, event_path FROM (\n%s\n) ranked\nWHERE rn = 1\n)",
		ranked)
}

func (f *flowCompiler) lateralBaseWhere() fragment {
	if f.baseWhere.SQL == "" {
		return lit("")
	}
	return fragf("%s AND ", f.baseWhere)
}

func (f *flowCompiler) joinBaseWhere() fragment {
	if f.baseWhere.SQL == "" {
		return lit("")
	}
	return fragf(" AND %s", f.baseWhere)
}

// nodesAgg merges all layers into {node_id, node_name, layer, value}. The
// node id prefixes the layer so the same event at different depths stays
// distinct; sunburst keys on the full path instead of the event type.
func (f *flowCompiler) nodesAgg() fragment {
	key := "event_type"
	if f.mode == prism.FlowSunburst {
		key = "event_path"
	}
	var selects []fragment
	for layer := -f.stepsBefore; layer <= f.stepsAfter; layer++ {
		selects = append(selects, lit(fmt.Sprintf(
			"SELECT CONCAT('%d_', %s) AS node_id, event_type AS node_name, %d AS layer, COUNT(*) AS value FROM %s GROUP BY 1, 2",
			layer, key, layer, layerCTEName(layer))))
	}
	return fragf("nodes_agg AS (\n%s\n)", concat("\nUNION ALL\n", selects...))
}

// linksAgg joins each adjacent layer pair on binding key and counts
// transitions. Node-id composition matches nodesAgg so links reference
// existing nodes.
func (f *flowCompiler) linksAgg() (fragment, bool) {
	key := "event_type"
	if f.mode == prism.FlowSunburst {
		key = "event_path"
	}
	var selects []fragment
	for layer := -f.stepsBefore; layer < f.stepsAfter; layer++ {
		selects = append(selects, lit(fmt.Sprintf(
			"SELECT CONCAT('%d_', a.%s) AS source_id, CONCAT('%d_', b.%s) AS target_id, COUNT(*) AS value "+
				"FROM %s a JOIN %s b ON a.binding_key = b.binding_key GROUP BY 1, 2",
			layer, key, layer+1, key, layerCTEName(layer), layerCTEName(layer+1))))
	}
	if len(selects) == 0 {
		return fragment{}, false
	}
	return fragf("links_agg AS (\n%s\n)", concat("\nUNION ALL\n", selects...)), true
}

func layerCTEName(layer int) string {
	switch {
	case layer < 0:
		return fmt.Sprintf("before_step_%d", -layer)
	case layer > 0:
		return fmt.Sprintf("after_step_%d", layer)
	default:
		return "starting_entities"
	}
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}
