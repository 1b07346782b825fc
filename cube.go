package prism

import (
	"context"
	"time"
)

// DimensionType enumerates the value types a dimension may carry.
type DimensionType string

const (
	DimensionTypeString  DimensionType = "string"
	DimensionTypeNumber  DimensionType = "number"
	DimensionTypeBoolean DimensionType = "boolean"
	DimensionTypeTime    DimensionType = "time"
)

// MeasureType enumerates the aggregation kinds supported on measures.
type MeasureType string

const (
	MeasureCount               MeasureType = "count"
	MeasureCountDistinct       MeasureType = "countDistinct"
	MeasureCountDistinctApprox MeasureType = "countDistinctApprox"
	MeasureSum                 MeasureType = "sum"
	MeasureAvg                 MeasureType = "avg"
	MeasureMin                 MeasureType = "min"
	MeasureMax                 MeasureType = "max"
	MeasureStdDev              MeasureType = "stddev"
	MeasureMedian              MeasureType = "median"
	MeasureP95                 MeasureType = "p95"
	MeasureCalculated          MeasureType = "calculated"
	MeasureWindow              MeasureType = "window"
)

// IsAggregate reports whether the measure type is computed inside the
// grouping SELECT (as opposed to calculated/window post-aggregation stages).
func (t MeasureType) IsAggregate() bool {
	switch t {
	case MeasureCalculated, MeasureWindow:
		return false
	default:
		return true
	}
}

// MeasureFormat is a display hint carried through to result annotations.
type MeasureFormat string

const (
	FormatNumber   MeasureFormat = "number"
	FormatPercent  MeasureFormat = "percent"
	FormatCurrency MeasureFormat = "currency"
)

// WindowFunction enumerates supported window-measure functions.
type WindowFunction string

const (
	WindowLag          WindowFunction = "lag"
	WindowRank         WindowFunction = "rank"
	WindowMovingSum    WindowFunction = "movingSum"
	WindowMovingAvg    WindowFunction = "movingAvg"
	WindowRunningTotal WindowFunction = "runningTotal"
)

// WindowOperation post-processes the window value.
type WindowOperation string

const (
	WindowOpRaw           WindowOperation = "raw"
	WindowOpDifference    WindowOperation = "difference"
	WindowOpPercentChange WindowOperation = "percentChange"
)

// FrameBound is one endpoint of a window frame. Unbounded when Unbounded is
// set, CURRENT ROW when Current is set, otherwise Offset rows.
type FrameBound struct {
	Unbounded bool `json:"unbounded,omitempty"`
	Current   bool `json:"current,omitempty"`
	Offset    int  `json:"offset,omitempty"`
}

// WindowFrame is a ROWS frame specification.
type WindowFrame struct {
	Start FrameBound `json:"start"`
	End   FrameBound `json:"end"`
}

// WindowSpec parameterises a window measure.
type WindowSpec struct {
	Function  WindowFunction  `json:"function"`
	Source    string          `json:"source"` // short name of a sibling aggregate measure
	Operation WindowOperation `json:"operation,omitempty"`
	OrderBy   []string        `json:"orderBy,omitempty"` // short names of sibling dimensions
	Frame     *WindowFrame    `json:"frame,omitempty"`
	LagOffset int             `json:"lagOffset,omitempty"` // lag distance, default 1
}

// Expression is a dialect-neutral SQL reference declared on a dimension or
// measure. SQL is either a bare column name of the cube's base relation or a
// template that may interpolate column references via the {CUBE} alias token.
// Args become bound parameters, in order of their ? placeholders.
type Expression struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args,omitempty"`
}

// Dimension is a groupable or filterable cube attribute.
type Dimension struct {
	Name        string        `json:"name"`
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description,omitempty"`
	SQL         Expression    `json:"sql"`
	Type        DimensionType `json:"type"`
	PrimaryKey  bool          `json:"primaryKey,omitempty"`
}

// Measure is an aggregated cube value.
type Measure struct {
	Name        string        `json:"name"`
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description,omitempty"`
	Type        MeasureType   `json:"type"`
	Format      MeasureFormat `json:"format,omitempty"`

	// SQL is the aggregated expression for simple/statistical measures
	// (empty means COUNT(*) for count), and the arithmetic template over
	// sibling measure names for calculated measures.
	SQL Expression `json:"sql,omitempty"`

	// Window parameterises window measures; nil otherwise.
	Window *WindowSpec `json:"window,omitempty"`

	// Filters are row-level predicates folded into the aggregate
	// (FILTER (WHERE ...) or CASE WHEN equivalent).
	Filters []Filter `json:"filters,omitempty"`

	// DrillMembers lists fields exposed when drilling in on this measure.
	DrillMembers []string `json:"drillMembers,omitempty"`
}

// Relationship is the declared cardinality of a join.
type Relationship string

const (
	BelongsTo Relationship = "belongsTo"
	HasOne    Relationship = "hasOne"
	HasMany   Relationship = "hasMany"
)

// JoinColumn is one equality pair of a join condition.
type JoinColumn struct {
	SourceColumn string `json:"sourceColumn"`
	TargetColumn string `json:"targetColumn"`
}

// Join declares a relationship from the owning cube to TargetCube.
// Targets resolve lazily at registry freeze so cubes may reference each
// other in any registration order.
type Join struct {
	TargetCube   string       `json:"targetCube"`
	Relationship Relationship `json:"relationship"`
	Columns      []JoinColumn `json:"columns"`

	// PreferredFor marks this edge as the preferred first hop when the
	// planner walks toward any of the named cubes.
	PreferredFor []string `json:"preferredFor,omitempty"`
}

// Hierarchy is a named drill-down sequence of dimension names within one
// cube. Metadata only; it does not affect SQL generation.
type Hierarchy struct {
	Name   string   `json:"name"`
	Title  string   `json:"title,omitempty"`
	Levels []string `json:"levels"`
}

// BaseQuery is the result of a cube's base-query builder: the relation the
// cube selects from plus a mandatory predicate (typically the security
// scope). Where may be empty.
type BaseQuery struct {
	From  string     `json:"from"`
	Where Expression `json:"where,omitempty"`
}

// BaseQueryFunc builds the cube's base relation for one query context.
// Implementations must bind security-context values as Args, never inline.
type BaseQueryFunc func(ctx *QueryContext) BaseQuery

// Cube binds a base relation to dimensions, measures and joins.
type Cube struct {
	Name             string                `json:"name"`
	Title            string                `json:"title,omitempty"`
	Description      string                `json:"description,omitempty"`
	ExampleQuestions []string              `json:"exampleQuestions,omitempty"`
	Base             BaseQueryFunc         `json:"-"`
	Dimensions       map[string]Dimension  `json:"dimensions"`
	Measures         map[string]Measure    `json:"measures"`
	Joins            map[string]Join       `json:"joins,omitempty"`
	Hierarchies      map[string]Hierarchy  `json:"hierarchies,omitempty"`

	// EventStream marks the cube as usable by flow queries.
	EventStream bool `json:"eventStream,omitempty"`
}

// SecurityContext carries the per-request tenant scope injected into every
// cube's base predicate.
type SecurityContext struct {
	OrganisationID int64  `json:"organisationId"`
	UserID         string `json:"userId,omitempty"`
}

// QueryContext is created per query and flows through every resolver.
type QueryContext struct {
	Security SecurityContext

	// Conn is the injected database handle. The engine never manages its
	// lifecycle; it only borrows it for the query.
	Conn Connection

	// Now anchors named date ranges ("last 30 days", "this month").
	// Zero means time.Now at planning time.
	Now time.Time

	// Location is the zone named ranges resolve in. Nil means time.Local.
	Location *time.Location

	// Timeout bounds the query wall clock; zero means no engine-side bound.
	Timeout time.Duration

	// QueryID tags log lines for this query. Assigned by the engine when
	// empty.
	QueryID string
}

// EffectiveNow returns the anchor time for date-range resolution.
func (c *QueryContext) EffectiveNow() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	if c.Now.IsZero() {
		return time.Now().In(loc)
	}
	return c.Now.In(loc)
}

// Deadline derives a context honoring the per-query timeout. The returned
// cancel func must always be called.
func (c *QueryContext) Deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return context.WithCancel(ctx)
}
