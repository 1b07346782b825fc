package prism

// Granularity is the time-bucket unit for time dimensions.
type Granularity string

const (
	GranularityYear    Granularity = "year"
	GranularityQuarter Granularity = "quarter"
	GranularityMonth   Granularity = "month"
	GranularityWeek    Granularity = "week"
	GranularityDay     Granularity = "day"
	GranularityHour    Granularity = "hour"
	GranularityMinute  Granularity = "minute"
)

// ValidGranularities lists the accepted units in descending size order.
var ValidGranularities = []Granularity{
	GranularityYear, GranularityQuarter, GranularityMonth,
	GranularityWeek, GranularityDay, GranularityHour, GranularityMinute,
}

// IsValid reports whether g is a recognized unit.
func (g Granularity) IsValid() bool {
	for _, v := range ValidGranularities {
		if g == v {
			return true
		}
	}
	return false
}

// DateRange is either a literal [start, end] pair or a single named range
// string ("last 30 days", "this month", ...). The wire format allows both,
// so the field is a raw JSON-compatible value: string or []string.
type DateRange any

// TimeDimensionRequest addresses a time dimension with optional bucketing,
// range, and comparison range.
type TimeDimensionRequest struct {
	Dimension        string      `json:"dimension"`
	Granularity      Granularity `json:"granularity,omitempty"`
	DateRange        DateRange   `json:"dateRange,omitempty"`
	CompareDateRange bool        `json:"compareDateRange,omitempty"`
}

// OrderDirection is asc or desc.
type OrderDirection string

const (
	OrderAsc  OrderDirection = "asc"
	OrderDesc OrderDirection = "desc"
)

// OrderEntry is one ORDER BY element. Order matters, so the query carries a
// list rather than a map.
type OrderEntry struct {
	Member    string         `json:"member"`
	Direction OrderDirection `json:"direction"`
}

// FlowOutputMode selects the node-id composition of a flow query.
type FlowOutputMode string

const (
	FlowSankey   FlowOutputMode = "sankey"
	FlowSunburst FlowOutputMode = "sunburst"
)

// FlowJoinStrategy selects how per-entity neighbouring events are fetched.
type FlowJoinStrategy string

const (
	FlowJoinAuto    FlowJoinStrategy = "auto"
	FlowJoinLateral FlowJoinStrategy = "lateral"
	FlowJoinWindow  FlowJoinStrategy = "window"
)

// MaxFlowDepth bounds stepsBefore/stepsAfter.
const MaxFlowDepth = 5

// FlowConfig configures a bidirectional step-flow query.
type FlowConfig struct {
	StartingStep   Filter           `json:"startingStep"`
	BindingKey     string           `json:"bindingKey"`
	TimeDimension  string           `json:"timeDimension"`
	EventDimension string           `json:"eventDimension"`
	StepsBefore    int              `json:"stepsBefore"`
	StepsAfter     int              `json:"stepsAfter"`
	OutputMode     FlowOutputMode   `json:"outputMode"`
	EntityLimit    int              `json:"entityLimit,omitempty"`
	JoinStrategy   FlowJoinStrategy `json:"joinStrategy,omitempty"`
}

// SemanticQuery is the declarative request the planner consumes. All field
// references are cube-qualified ("Cube.field").
type SemanticQuery struct {
	Measures       []string               `json:"measures,omitempty"`
	Dimensions     []string               `json:"dimensions,omitempty"`
	TimeDimensions []TimeDimensionRequest `json:"timeDimensions,omitempty"`
	Filters        []Filter               `json:"filters,omitempty"`
	Order          []OrderEntry           `json:"order,omitempty"`
	Limit          int                    `json:"limit,omitempty"`
	Offset         int                    `json:"offset,omitempty"`
	Flow           *FlowConfig            `json:"flow,omitempty"`

	// Cubes hints cube inclusion when no field references them (join-only
	// pivots).
	Cubes []string `json:"cubes,omitempty"`
}

// QueryWarning is a non-fatal notice attached to a plan or result.
type QueryWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Warning codes.
const (
	WarnHasManyFanOut    = "join/has-many-fan-out"
	WarnAmbiguousJoin    = "join/ambiguous-path"
	WarnFlowDepth        = "flow/high-depth"
	WarnDialectBehaviour = "dialect/behaviour"
)

// Row is one result row keyed by cube-qualified column name.
type Row map[string]any

// FieldAnnotation describes one returned field for charting clients.
type FieldAnnotation struct {
	Type        string `json:"type"`
	Format      string `json:"format,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Granularity string `json:"granularity,omitempty"`
}

// Annotation groups field metadata by role.
type Annotation struct {
	Measures       map[string]FieldAnnotation `json:"measures"`
	Dimensions     map[string]FieldAnnotation `json:"dimensions"`
	TimeDimensions map[string]FieldAnnotation `json:"timeDimensions"`
}

// ResultSet is the typed result of Execute.
type ResultSet struct {
	Data       []Row          `json:"data"`
	Annotation Annotation     `json:"annotation"`
	Warnings   []QueryWarning `json:"warnings,omitempty"`
}

// FlowNode is one node of a flow (sankey/sunburst) result. Layer 0 is the
// pivot; negative layers precede it.
type FlowNode struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Layer int     `json:"layer"`
	Value float64 `json:"value"`
}

// FlowLink connects two adjacent-layer flow nodes.
type FlowLink struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Value  float64 `json:"value"`
}

// FlowResult is the assembled output of a flow query.
type FlowResult struct {
	Nodes    []FlowNode     `json:"nodes"`
	Links    []FlowLink     `json:"links"`
	Warnings []QueryWarning `json:"warnings,omitempty"`
}

// CompiledQuery is the planner output: a parameterised statement plus the
// projection metadata the executor needs.
type CompiledQuery struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`

	// NumericFields lists projected columns that are measures; the
	// executor coerces exactly these to native numbers.
	NumericFields []string `json:"numericFields"`

	Annotation Annotation     `json:"annotation"`
	Warnings   []QueryWarning `json:"warnings,omitempty"`

	// Flow is set when the statement is a flow query; the executor then
	// assembles rows into a FlowResult instead of a plain ResultSet.
	Flow bool `json:"flow,omitempty"`
}

// ExplainOperation is one node of the normalised EXPLAIN tree.
type ExplainOperation struct {
	NodeType      string             `json:"nodeType"`
	Relation      string             `json:"relation,omitempty"`
	EstimatedRows float64            `json:"estimatedRows,omitempty"`
	EstimatedCost float64            `json:"estimatedCost,omitempty"`
	ActualRows    float64            `json:"actualRows,omitempty"`
	ActualTime    float64            `json:"actualTime,omitempty"`
	Extra         string             `json:"extra,omitempty"`
	Children      []ExplainOperation `json:"children,omitempty"`
}

// ExplainSummary aggregates headline numbers from the plan.
type ExplainSummary struct {
	RowsProcessed float64  `json:"rowsProcessed"`
	Cost          float64  `json:"cost,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// ExplainSQL carries the analysed statement.
type ExplainSQL struct {
	Text   string `json:"text"`
	Params []any  `json:"params"`
}

// ExplainResult is the normalised output of the EXPLAIN analyzer.
type ExplainResult struct {
	Database   string             `json:"database"`
	SQL        ExplainSQL         `json:"sql"`
	Operations []ExplainOperation `json:"operations"`
	Raw        []string           `json:"raw"`
	Summary    ExplainSummary     `json:"summary"`
}

// IndexInfo describes one index of a touched table.
type IndexInfo struct {
	TableName string   `json:"tableName"`
	IndexName string   `json:"indexName"`
	Columns   []string `json:"columns"`
	Unique    bool     `json:"unique"`
	Primary   bool     `json:"primary"`
}
